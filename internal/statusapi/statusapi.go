// Package statusapi is the optional read-only HTTP surface over job state
// (spec §9 "Non-goals" excludes a control API, but a read-only status
// endpoint is ambient observability the spec's non-goal doesn't bind).
// Routing follows the teacher's go-chi/chi/v5 pattern.
package statusapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/3leaps/sbatchman/pkg/model"
	"github.com/3leaps/sbatchman/pkg/query"
	"github.com/3leaps/sbatchman/pkg/store"
)

// Server wraps a *store.Store with a read-only chi router: GET /jobs
// (filtered list, spec §4.6 predicates as query params) and GET
// /jobs/{id}.
type Server struct {
	store  *store.Store
	router chi.Router
}

func New(s *store.Store) *Server {
	srv := &Server{store: s}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", srv.handleHealth)
	r.Get("/jobs", srv.handleListJobs)
	r.Get("/jobs/{id}", srv.handleGetJob)
	srv.router = r
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := query.Filter{
		Name:    q.Get("name"),
		Status:  model.Status(q.Get("status")),
		Cluster: q.Get("cluster"),
		Config:  q.Get("config"),
	}
	jobs, err := query.GetJobs(r.Context(), s.store, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
