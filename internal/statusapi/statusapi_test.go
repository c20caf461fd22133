package statusapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHandleListJobs_EmptyStore(t *testing.T) {
	s := openTestStore(t)
	srv := New(s)

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "null", rec.Body.String())
}

func TestHandleGetJob_NotFound(t *testing.T) {
	s := openTestStore(t)
	srv := New(s)

	req := httptest.NewRequest(http.MethodGet, "/jobs/999", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetJob_Found(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.UpsertCluster(ctx, model.Cluster{ClusterName: "local1", Scheduler: model.SchedulerLocal})
	require.NoError(t, err)
	cfg, err := s.UpsertConfig(ctx, model.Config{ConfigName: "default", ClusterID: c.ID})
	require.NoError(t, err)
	j, err := s.InsertJob(ctx, model.Job{JobName: "probe", ConfigID: cfg.ID, Command: "true"})
	require.NoError(t, err)

	srv := New(s)
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+strconv.FormatInt(j.ID, 10), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
