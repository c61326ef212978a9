// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/pdiddy/worldclim-extractor/internal/table"
)

const previewRows = 5

var (
	successColor = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
)

func printSuccess(format string, args ...any) {
	successColor.Fprintf(os.Stderr, "✓ "+format+"\n", args...)
}

func printFailure(format string, args ...any) {
	failureColor.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

func printInfo(format string, args ...any) {
	infoColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarn(format string, args ...any) {
	warnColor.Fprintf(os.Stderr, "⚠ "+format+"\n", args...)
}

// writePreview prints the header and the first rows of t.
func writePreview(w io.Writer, t *table.Table, rows int) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns(), "\t"))
	n := min(rows, t.Len())
	for i := 0; i < n; i++ {
		fmt.Fprintln(tw, strings.Join(t.Row(i), "\t"))
	}
	if t.Len() > n {
		fmt.Fprintf(tw, "... %d more rows\n", t.Len()-n)
	}
	return tw.Flush()
}
