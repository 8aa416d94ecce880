// Package server is the HTTP transport over the RAG core. It stays thin:
// request validation and JSON mapping only, everything else lives below the
// orchestrator.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kvant/advisor/internal/models"
)

const maxQueryLength = 1000

// Core is the part of the orchestrator the transport needs.
type Core interface {
	Answer(ctx context.Context, query string) (models.AnswerResult, error)
	HealthCheck(ctx context.Context) models.HealthReport
	Stats() models.Stats
}

type ChatRequest struct {
	Query string `json:"query"`
}

type ChatResponse struct {
	Response       string  `json:"response"`
	ContextFound   bool    `json:"context_found"`
	ProcessingTime float64 `json:"processing_time"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type Server struct {
	core   Core
	logger *zap.Logger
}

func New(core Core, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{core: core, logger: logger}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	if len([]rune(req.Query)) > maxQueryLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("query must not exceed %d characters", maxQueryLength))
		return
	}

	result, err := s.core.Answer(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, models.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, "query must not be empty")
			return
		}
		s.logger.Error("answer failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:       result.Response,
		ContextFound:   result.ContextFound,
		ProcessingTime: round3(result.ProcessingTime),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.core.HealthCheck(r.Context())

	status := http.StatusOK
	if report.Status == models.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Stats())
}

// ListenAndServe blocks serving the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("http server listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
