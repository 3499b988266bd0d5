package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/psyche/internal/engine"
	"github.com/lazypower/psyche/internal/store"
)

// Server is the psyche HTTP API server. It exposes the engine's trigger
// points to collaborators (inventory changes, narrative events) and the
// resulting affect for reading.
type Server struct {
	db        *store.DB
	engine    *engine.Engine
	scheduler *engine.Scheduler
	router    chi.Router
	version   string
	started   time.Time
}

// New creates a new Server. scheduler may be nil, in which case the
// scheduler routes answer 503.
func New(db *store.DB, eng *engine.Engine, scheduler *engine.Scheduler, version string) *Server {
	s := &Server{
		db:        db,
		engine:    eng,
		scheduler: scheduler,
		version:   version,
		started:   time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/characters/{characterID}", func(r chi.Router) {
			r.Get("/mood", s.handleGetMood)
			r.Put("/mood", s.handleRecordMood)
			r.Get("/frames", s.handleListFrames)
			r.Post("/frames", s.handleRecordFrame)
			r.Get("/influence", s.handleGetInfluence)
			r.Post("/influence", s.handleComputeInfluence)
			r.Get("/events", s.handleListEvents)
			r.Post("/spread", s.handleSpread)

			r.Get("/inventory", s.handleListInventory)
			r.Post("/inventory", s.handleAddItem)
			r.Delete("/inventory/{itemID}", s.handleRemoveItem)
			r.Post("/inventory/{itemID}/interact", s.handleInteract)
		})

		r.Put("/objects/{objectID}", s.handlePutObject)
		r.Put("/edges", s.handlePutEdge)
		r.Post("/events", s.handlePropagate)

		r.Get("/scheduler/interval", s.handleGetInterval)
		r.Put("/scheduler/interval", s.handleSetInterval)
		r.Post("/scheduler/run", s.handleRunPass)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	}
	if s.scheduler != nil {
		body["scheduler"] = map[string]any{
			"running":     s.scheduler.Running(),
			"interval_ms": s.scheduler.Interval().Milliseconds(),
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
