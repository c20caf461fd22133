// Package output provides JSONL output for `sbatchman list` results, so
// scripted callers can consume one self-contained JSON
// object per line instead of scraping a table (spec §4.6 Query).
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants identify the envelope's payload shape. These
// follow the pattern: sbatchman.<type>.v<version>.
const (
	TypeJob     = "sbatchman.job.v1"
	TypeSummary = "sbatchman.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	Type string          `json:"type"`
	TS   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// JobRecord is the data payload for one queried job row.
type JobRecord struct {
	ID             int64          `json:"id"`
	JobName        string         `json:"job_name"`
	ClusterName    string         `json:"cluster_name"`
	ConfigName     string         `json:"config_name"`
	Status         string         `json:"status"`
	SchedulerJobID string         `json:"scheduler_job_id,omitempty"`
	SubmitTime     time.Time      `json:"submit_time"`
	StartTime      *time.Time     `json:"start_time,omitempty"`
	EndTime        *time.Time     `json:"end_time,omitempty"`
	Archived       bool           `json:"archived"`
	Variables      map[string]any `json:"variables,omitempty"`
}

// SummaryRecord is the data payload emitted after the last job row.
type SummaryRecord struct {
	Count int `json:"count"`
}

var ErrWriterClosed = errors.New("writer is closed")

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
