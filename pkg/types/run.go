// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus indicates how an extraction invocation ended.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run describes one extraction invocation. It carries provenance only;
// no raster values are kept.
type Run struct {
	// ID is assigned by the run ledger.
	ID int64 `json:"id" yaml:"id"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	// InputPath is the table the coordinates were read from.
	InputPath string `json:"input_path" yaml:"input_path"`

	// OutputPath is empty when the run failed before writing.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`

	Variable   string `json:"variable" yaml:"variable"`
	Resolution string `json:"resolution" yaml:"resolution"`

	// Window is the focal window side; 1 means exact pixel sampling.
	Window int `json:"window" yaml:"window"`

	ArchiveURL string `json:"archive_url" yaml:"archive_url"`

	Rows    int      `json:"rows" yaml:"rows"`
	Columns []string `json:"columns" yaml:"columns"`

	Status RunStatus `json:"status" yaml:"status"`

	// Error holds the failure description for failed runs.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
