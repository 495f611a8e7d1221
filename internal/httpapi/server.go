package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ben458-1/URL-Server-Monitor/internal/broadcast"
	"github.com/ben458-1/URL-Server-Monitor/internal/status"
)

// historyWindowMax caps a lookback query at 24h; anything older belongs to
// the external retention sweep anyway.
const (
	historyWindowDefault = 20
	historyWindowMax     = 1440
)

// Server is the read-only query surface plus the live WebSocket feed. All
// writes to targets and results happen elsewhere (admin CRUD, scheduler).
type Server struct {
	log   *zap.Logger
	agg   *status.Aggregator
	hub   *broadcast.Hub
	ready func(context.Context) error
	cors  []string
}

func NewServer(log *zap.Logger, agg *status.Aggregator, hub *broadcast.Hub, ready func(context.Context) error, allowedOrigins []string) *Server {
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}
	return &Server{log: log, agg: agg, hub: hub, ready: ready, cors: allowedOrigins}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/ws", s.handleWS)

	r.Route("/api/health", func(r chi.Router) {
		r.Get("/url/{id}", s.handleCurrent)
		r.Get("/url/{id}/history", s.handleHistory)
		r.Get("/url/{id}/uptime", s.handleUptime)
		r.Get("/all-latest", s.handleCurrentAll)
		r.Get("/stats", s.handleStats)
	})

	return otelhttp.NewHandler(r, "httpapi")
}

func (s *Server) allowedOrigins() []string {
	if len(s.cors) == 0 {
		return []string{"*"}
	}
	return s.cors
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.ready(ctx); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}
	c, err := s.agg.Current(r.Context(), id)
	if errors.Is(err, status.ErrUnknown) {
		writeJSON(w, http.StatusOK, map[string]any{
			"target_id": id,
			"status":    "unknown",
		})
		return
	}
	if err != nil {
		s.serverError(w, "current status", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}
	window, ok := lookbackWindow(w, r)
	if !ok {
		return
	}
	checks, err := s.agg.History(r.Context(), id, window)
	if err != nil {
		s.serverError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(w, r)
	if !ok {
		return
	}
	window, ok := lookbackWindow(w, r)
	if !ok {
		return
	}
	u, err := s.agg.Uptime(r.Context(), id, window)
	if err != nil {
		s.serverError(w, "uptime", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCurrentAll(w http.ResponseWriter, r *http.Request) {
	checks, err := s.agg.CurrentAll(r.Context())
	if err != nil {
		s.serverError(w, "all latest", err)
		return
	}
	writeJSON(w, http.StatusOK, checks)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ov, err := s.agg.Overview(r.Context())
	if err != nil {
		s.serverError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op, zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func targetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "bad target id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func lookbackWindow(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	minutes := historyWindowDefault
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "bad minutes", http.StatusBadRequest)
			return 0, false
		}
		minutes = v
	}
	if minutes < 1 || minutes > historyWindowMax {
		http.Error(w, "minutes must be between 1 and 1440", http.StatusBadRequest)
		return 0, false
	}
	return time.Duration(minutes) * time.Minute, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
