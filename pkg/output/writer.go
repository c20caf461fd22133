package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/3leaps/sbatchman/pkg/model"
)

// Writer emits one JSON record per line, atomically under concurrent use.
type Writer interface {
	WriteJob(ctx context.Context, j model.Job) error
	WriteSummary(ctx context.Context, s SummaryRecord) error
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Safe for concurrent use: writes are serialized under mu so a line is
// never interleaved with another goroutine's.
type JSONLWriter struct {
	w  io.Writer
	mu sync.Mutex

	closed bool
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: w}
}

func (jw *JSONLWriter) WriteJob(ctx context.Context, j model.Job) error {
	return jw.writeRecord(ctx, TypeJob, JobRecord{
		ID:             j.ID,
		JobName:        j.JobName,
		ClusterName:    j.ClusterName,
		ConfigName:     j.ConfigName,
		Status:         string(j.Status),
		SchedulerJobID: j.SchedulerJobID,
		SubmitTime:     j.SubmitTime,
		StartTime:      j.StartTime,
		EndTime:        j.EndTime,
		Archived:       j.Archived,
		Variables:      j.Variables,
	})
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, s SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, s)
}

// Close marks the writer as closed. The underlying io.Writer is not closed;
// the caller owns its lifetime.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{Type: recordType, TS: time.Now().UTC(), Data: dataBytes}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll loops until all bytes are written, since io.Writer.Write may
// return a short write with a nil error.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
