// Package httpapi binds the conversation relay to its HTTP surface: the
// conversation and memory CRUD routes, the turn endpoints (sync, SSE and
// websocket), and the legacy one-shot chat relay.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/chat"
	"github.com/antoniostano/chatrelay/internal/config"
	"github.com/antoniostano/chatrelay/internal/engine"
	"github.com/antoniostano/chatrelay/internal/observability"
	"github.com/antoniostano/chatrelay/internal/store"
)

// Header names carrying the trusted, already-validated user identity.
const (
	userIDHeader    = "X-User-ID"
	userEmailHeader = "X-User-Email"
)

type Server struct {
	cfg          config.Config
	store        store.Store
	orchestrator *chat.Orchestrator
	engine       engine.Engine // nil when unconfigured; legacy chat checks this
	metrics      *observability.Metrics
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, st store.Store, orchestrator *chat.Orchestrator, eng engine.Engine, metrics *observability.Metrics, logger *zap.Logger) *Server {
	return &Server{
		cfg:          cfg,
		store:        st,
		orchestrator: orchestrator,
		engine:       eng,
		metrics:      metrics,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	// Legacy relay endpoints predate user identity and stay open.
	r.Post("/chat", s.handleLegacyChat)
	r.Post("/api/chat", s.handleLegacyChat)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/conversations", s.handleListConversations)
			r.Post("/conversations", s.handleCreateConversation)
			r.Get("/conversations/{id}", s.handleGetConversation)
			r.Put("/conversations/{id}", s.handleUpdateConversation)
			r.Delete("/conversations/{id}", s.handleDeleteConversation)

			r.Post("/conversations/{id}/messages", s.handleTurn)
			r.Post("/conversations/{id}/messages/stream", s.handleTurnStream)
			r.Get("/conversations/{id}/ws", s.handleTurnWS)

			r.Get("/memories", s.handleListMemories)
			r.Post("/memories", s.handleAddMemory)
			r.Delete("/memories/{id}", s.handleDeleteMemory)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Backend is running",
	})
}

type ctxKey string

const ctxKeyUserID ctxKey = "user_id"

// requireUser rejects requests without a user identity and upserts the user
// row for those that carry one.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userIDHeader))
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing "+userIDHeader+" header")
			return
		}

		email := strings.TrimSpace(r.Header.Get(userEmailHeader))
		if err := s.store.EnsureUser(r.Context(), userID, email); err != nil {
			s.logger.Error("user upsert failed", zap.String("user_id", userID), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal", "user lookup failed")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyUserID).(string)
	return id
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// respondTurnError maps the orchestrator's error taxonomy onto statuses.
func (s *Server) respondTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, chat.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
	case errors.Is(err, chat.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, chat.ErrConfiguration):
		respondError(w, http.StatusInternalServerError, "configuration_error", err.Error())
	case errors.Is(err, chat.ErrUpstream):
		respondError(w, http.StatusInternalServerError, "upstream_error", err.Error())
	default:
		s.logger.Error("turn failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		// A body with no JSON at all reads as io.EOF; a truncated one reads
		// as io.ErrUnexpectedEOF and must surface as malformed.
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
