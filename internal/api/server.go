package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"strangers/pkg/interfaces"
	"strangers/pkg/types"
)

// LiveStats provides the matching state snapshot, normally the hub
type LiveStats interface {
	Snapshot(ctx context.Context) (types.LiveStats, error)
}

// MatchLog provides match log health, aggregates and single records
type MatchLog interface {
	HealthCheck(ctx context.Context) error
	GetMatchStats(ctx context.Context) (*types.MatchStats, error)
	GetMatch(ctx context.Context, matchID string) (*types.Match, error)
}

// Registry provides transport connection statistics
type Registry interface {
	GetStats() map[string]int
}

// Server serves the health and stats endpoints. It holds no matching logic.
type Server struct {
	live          LiveStats
	matchLog      MatchLog
	registry      Registry
	allowedOrigin string
	router        *http.ServeMux
	logger        *slog.Logger
}

// NewServer creates the API server. A nil matchLog means the match log is
// disabled.
func NewServer(live LiveStats, matchLog MatchLog, registry Registry, allowedOrigin string) *Server {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	s := &Server{
		live:          live,
		matchLog:      matchLog,
		registry:      registry,
		allowedOrigin: allowedOrigin,
		router:        http.NewServeMux(),
		logger:        slog.Default().With("component", "api"),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/api/stats", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.stats))))
	s.router.Handle("/api/matches/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.match))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

type StatsResponse struct {
	Live    types.LiveStats   `json:"live"`
	Matches *types.MatchStats `json:"matches,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "disabled"
	if s.matchLog != nil {
		dbStatus = "healthy"
		if err := s.matchLog.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			dbStatus = fmt.Sprintf("error: %v", err)
		}
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.registry.GetStats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// GET /api/stats
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	live, err := s.live.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("live stats unavailable", "error", err)
		s.sendError(w, "Matching service unavailable", http.StatusServiceUnavailable)
		return
	}

	response := StatsResponse{Live: live}
	if s.matchLog != nil {
		matches, err := s.matchLog.GetMatchStats(ctx)
		if err != nil {
			s.logger.Error("failed to load match stats", "error", err)
			s.sendError(w, "Failed to load match stats", http.StatusInternalServerError)
			return
		}
		response.Matches = matches
	}

	json.NewEncoder(w).Encode(response)
}

// GET /api/matches/{id}
func (s *Server) match(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.matchLog == nil {
		s.sendError(w, "Match log is disabled", http.StatusNotFound)
		return
	}

	matchID := strings.TrimPrefix(r.URL.Path, "/api/matches/")
	if matchID == "" || strings.Contains(matchID, "/") {
		s.sendError(w, "Match id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	match, err := s.matchLog.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, interfaces.ErrMatchNotFound) {
			s.sendError(w, "Match not found", http.StatusNotFound)
			return
		}
		s.logger.Error("failed to load match", "match", matchID, "error", err)
		s.sendError(w, "Failed to load match", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(match)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// corsMiddleware allows the configured origin only
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if s.allowedOrigin != "*" {
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
