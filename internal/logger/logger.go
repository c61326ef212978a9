// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logger wraps logrus behind a small interface so packages log
// structured fields without depending on logrus directly.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New returns a logger writing to stderr. env "production" selects JSON
// output; anything else gets the text formatter. Unknown levels fall back
// to info.
func New(level, env string) Logger {
	return NewWithWriter(level, env, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(level, env string, w io.Writer) Logger {
	l := logrus.New()

	if env == "production" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetOutput(w)

	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return NewWithWriter("panic", "", io.Discard)
}

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields map[string]any) Logger {
	return &logrusLogger{entry: l.entry.WithFields(fields)}
}

// IsDebugEnabled reports whether debug lines would be written.
func IsDebugEnabled(l Logger) bool {
	if ll, ok := l.(*logrusLogger); ok {
		return ll.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
	}
	return false
}
