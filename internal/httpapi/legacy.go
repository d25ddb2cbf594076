package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/engine"
)

const legacyTurnTemperature = 0.7

// legacyErrorResponse mirrors the error shape of the original relay so
// existing frontends keep working.
type legacyErrorResponse struct {
	Error legacyErrorBody `json:"error"`
}

type legacyErrorBody struct {
	Message string `json:"message"`
}

func respondLegacyError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, legacyErrorResponse{Error: legacyErrorBody{Message: message}})
}

// handleLegacyChat is the original stateless relay: the caller supplies the
// full message array and nothing is persisted.
func (s *Server) handleLegacyChat(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		respondLegacyError(w, http.StatusInternalServerError, "OPENAI_API_KEY environment variable is not set")
		return
	}

	// An absent field and a present-but-wrong one get distinct messages, so
	// decode in two steps.
	var req struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := decodeJSON(r, &req); err != nil || len(req.Messages) == 0 {
		respondLegacyError(w, http.StatusBadRequest, "Missing 'messages' field in request body")
		return
	}
	var messages []engine.Message
	if err := json.Unmarshal(req.Messages, &messages); err != nil || len(messages) == 0 {
		respondLegacyError(w, http.StatusBadRequest, "Messages must be a non-empty array")
		return
	}

	reply, err := s.engine.Complete(r.Context(), engine.Request{
		Messages:    messages,
		Temperature: legacyTurnTemperature,
	})
	if err != nil {
		s.logger.Warn("legacy chat relay failed", zap.Error(err))
		respondLegacyError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"response": reply,
		"message":  reply,
	})
}
