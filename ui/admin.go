package ui

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"supptrace/internal/cache"
)

// AdminServer is the operational sidecar: health probes, cache stats and
// profiling, kept off the public API port.
type AdminServer struct {
	router *chi.Mux
	db     *sqlx.DB
	bus    *cache.InvalidationBus
}

// NewAdminServer creates the ops router. db may be nil when running without
// a database (the dev command); readiness then reports degraded.
func NewAdminServer(db *sqlx.DB, bus *cache.InvalidationBus) *AdminServer {
	s := &AdminServer{
		router: chi.NewRouter(),
		db:     db,
		bus:    bus,
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Get("/cachestats", s.handleCacheStats)

	s.router.HandleFunc("/debug/pprof/", pprof.Index)
	s.router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	s.router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	s.router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	s.router.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return s
}

// Handler exposes the router
func (s *AdminServer) Handler() http.Handler {
	return s.router
}

// Start runs the ops listener
func (s *AdminServer) Start(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *AdminServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "database": "not configured"})
		return
	}
	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "database": "ok"})
}

func (s *AdminServer) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	subscribers := 0
	if s.bus != nil {
		subscribers = s.bus.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, map[string]int{"invalidation_subscribers": subscribers})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
