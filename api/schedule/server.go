// Package schedule exposes the planner over HTTP.
//
// Routes:
//
//	GET  /                health text
//	POST /schedule_tasks  plan a request and return the schedule
//	GET  /api/runs        query the run log (bearer token)
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/taskplan/core/logger"
	"github.com/kilianp07/taskplan/core/model"
	"github.com/kilianp07/taskplan/core/planner"
	"github.com/kilianp07/taskplan/core/runlog"
)

// HealthText is returned by GET /.
const HealthText = "Task Scheduler API is running!"

// Server routes HTTP requests to the planner and the run log.
type Server struct {
	cfg     Config
	router  chi.Router
	planner planner.Planner
	store   runlog.Store
	log     logger.Logger
}

// New builds the router. With a nil store /api/runs answers an empty list.
func New(cfg Config, p planner.Planner, store runlog.Store, log logger.Logger) *Server {
	cfg.SetDefaults()
	if store == nil {
		store = runlog.NopStore{}
	}
	s := &Server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		planner: p,
		store:   store,
		log:     logger.OrNop(log),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.log))
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(corsMiddleware(s.cfg.CORSOrigins))
	}

	r.Get("/", s.handleHealth)
	r.Post("/schedule_tasks", s.handleSchedule)
	r.With(bearerAuth(s.cfg.Token)).Get("/api/runs", s.handleRuns)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on cfg.Address until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Address, Handler: s, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("http api listening on %s", s.cfg.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(HealthText))
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req model.Request
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	resp, err := s.planner.Plan(planner.WithSource(r.Context(), "http"), req)
	if err != nil {
		status := http.StatusInternalServerError
		if planner.IsInvalidRequest(err) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q, err := parseRunQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.store.Query(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []runlog.RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func parseRunQuery(r *http.Request) (runlog.Query, error) {
	v := r.URL.Query()
	q := runlog.Query{Source: v.Get("source"), TaskName: v.Get("task")}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errors.New("start must be RFC 3339")
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errors.New("end must be RFC 3339")
		}
		q.End = t
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, errors.New("limit must be a non-negative integer")
		}
		q.Limit = n
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
