package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/sbatchman/pkg/model"
)

func TestJSONLWriter_WriteJobEmitsOneLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)
	ctx := context.Background()

	err := w.WriteJob(ctx, model.Job{ID: 1, JobName: "sweep", Status: model.StatusRunning})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, TypeJob, rec.Type)

	var job JobRecord
	require.NoError(t, json.Unmarshal(rec.Data, &job))
	require.Equal(t, int64(1), job.ID)
	require.Equal(t, "running", job.Status)
}

func TestJSONLWriter_ClosedRejectsWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)
	require.NoError(t, w.Close())

	err := w.WriteSummary(context.Background(), SummaryRecord{Count: 0})
	require.ErrorIs(t, err, ErrWriterClosed)
}
