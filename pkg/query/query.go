// Package query composes the Job↔Config↔Cluster SQL predicate spec §4.6
// describes, grounded on pkg/match/filter.go's composable-filter shape but
// targeting a single SQL WHERE clause instead of in-process object filters.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/store"
)

// TimeRange is an inclusive [Lo, Hi] bound; a zero value on either side
// means unbounded on that side.
type TimeRange struct {
	Lo time.Time
	Hi time.Time
}

func (r TimeRange) empty() bool {
	return r.Lo.IsZero() && r.Hi.IsZero()
}

// Filter composes spec §4.6's supported predicates.
type Filter struct {
	Name            string // substring match, case-insensitive
	Status          model.Status
	Cluster         string
	Config          string
	Archived        *bool
	SubmitTimeRange TimeRange
	EndTimeRange    TimeRange
}

// Build renders the filter into a WHERE clause (without the "WHERE"
// keyword) plus its positional arguments, joined against jobs/configs/
// clusters the way pkg/store's job-select queries do.
func (f Filter) Build() (string, []any) {
	var clauses []string
	var args []any

	if f.Name != "" {
		clauses = append(clauses, `LOWER(j.job_name) LIKE ?`)
		args = append(args, "%"+strings.ToLower(f.Name)+"%")
	}
	if f.Status != "" {
		clauses = append(clauses, `j.status = ?`)
		args = append(args, string(f.Status))
	}
	if f.Cluster != "" {
		clauses = append(clauses, `cl.cluster_name = ?`)
		args = append(args, f.Cluster)
	}
	if f.Config != "" {
		clauses = append(clauses, `c.config_name = ?`)
		args = append(args, f.Config)
	}
	if f.Archived != nil {
		clauses = append(clauses, `j.archived = ?`)
		arg := 0
		if *f.Archived {
			arg = 1
		}
		args = append(args, arg)
	}
	if !f.SubmitTimeRange.empty() {
		clause, a := rangeClause("j.submit_time", f.SubmitTimeRange, false)
		clauses = append(clauses, clause)
		args = append(args, a...)
	}
	if !f.EndTimeRange.empty() {
		clause, a := rangeClause("j.end_time", f.EndTimeRange, true)
		clauses = append(clauses, clause)
		args = append(args, a...)
	}

	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

// rangeClause renders `lo <= col <= hi` (both inclusive, spec §4.6). When
// excludeNull is set, rows with a null column are always excluded (the
// end_time_range predicate's documented behavior).
func rangeClause(col string, r TimeRange, excludeNull bool) (string, []any) {
	var parts []string
	var args []any
	if excludeNull {
		parts = append(parts, col+" IS NOT NULL")
	}
	if !r.Lo.IsZero() {
		parts = append(parts, col+" >= ?")
		args = append(args, r.Lo.Format(time.RFC3339Nano))
	}
	if !r.Hi.IsZero() {
		parts = append(parts, col+" <= ?")
		args = append(args, r.Hi.Format(time.RFC3339Nano))
	}
	return "(" + strings.Join(parts, " AND ") + ")", args
}

const baseSelect = `SELECT j.id, j.job_name, j.config_id, j.submit_time, j.start_time, j.end_time,
	j.directory, j.command, j.preprocess, j.postprocess, j.status, j.scheduler_job_id, j.archived, j.variables_json,
	c.config_name, cl.cluster_name, cl.scheduler
	FROM jobs j
	JOIN configs c ON c.id = j.config_id
	JOIN clusters cl ON cl.id = c.cluster_id`

// GetJobs implements spec §4.6: results ordered by submit_time ascending,
// ties broken by id.
func GetJobs(ctx context.Context, s *store.Store, f Filter) ([]model.Job, error) {
	where, args := f.Build()
	q := fmt.Sprintf("%s WHERE %s ORDER BY j.submit_time ASC, j.id ASC", baseSelect, where)

	rows, err := s.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := store.ScanJobRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
