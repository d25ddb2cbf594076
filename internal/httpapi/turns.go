package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/chat"
	"github.com/antoniostano/chatrelay/internal/engine"
)

// Stream framing markers. Once fragments are on the wire, failures arrive as
// a terminal event rather than a status code.
const (
	streamDoneMarker  = "[DONE]"
	streamErrorMarker = "[ERROR]"
)

type turnRequest struct {
	Content     *string             `json:"content"`
	Attachments []engine.Attachment `json:"attachments"`
}

func (s *Server) decodeTurn(r *http.Request) (chat.TurnRequest, error) {
	id, err := pathID(r)
	if err != nil {
		return chat.TurnRequest{}, chat.ErrNotFound
	}

	var req turnRequest
	if err := decodeJSON(r, &req); err != nil || req.Content == nil {
		// Only presence of the content field is checked; empty content is
		// accepted (an attachment-only message, for instance).
		return chat.TurnRequest{}, fmt.Errorf("%w: missing 'content' field", chat.ErrInvalidRequest)
	}

	return chat.TurnRequest{
		ConversationID: id,
		UserID:         userIDFrom(r),
		Content:        *req.Content,
		Attachments:    req.Attachments,
	}, nil
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTurn(r)
	if err != nil {
		s.respondTurnError(w, err)
		return
	}

	reply, err := s.orchestrator.HandleTurn(r.Context(), req)
	if err != nil {
		s.respondTurnError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"response": reply,
		"message":  reply,
	})
}

func (s *Server) handleTurnStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeTurn(r)
	if err != nil {
		s.respondTurnError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	// Headers are committed lazily so pre-stream failures still map onto
	// plain HTTP statuses.
	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	_, err = s.orchestrator.StreamTurn(r.Context(), req, func(delta string) error {
		begin()
		if err := writeSSEData(w, delta); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !started {
			s.respondTurnError(w, err)
			return
		}
		_ = writeSSEData(w, streamErrorMarker+err.Error())
		flusher.Flush()
		return
	}

	begin()
	_ = writeSSEData(w, streamDoneMarker)
	flusher.Flush()
}

// writeSSEData emits one event, splitting multi-line fragments across data
// lines per the SSE wire format.
func writeSSEData(w http.ResponseWriter, payload string) error {
	for _, line := range strings.Split(payload, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

type wsTurnEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleTurnWS serves streaming turns over a websocket: the client sends one
// JSON turn request per frame, the server answers with delta frames and a
// terminal done or error frame.
func (s *Server) handleTurnWS(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	userID := userIDFrom(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var req turnRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Content == nil {
			_ = conn.WriteJSON(wsTurnEvent{Type: "error", Error: "missing 'content' field"})
			continue
		}

		reply, err := s.orchestrator.StreamTurn(ctx, chat.TurnRequest{
			ConversationID: id,
			UserID:         userID,
			Content:        *req.Content,
			Attachments:    req.Attachments,
		}, func(delta string) error {
			return conn.WriteJSON(wsTurnEvent{Type: "delta", Text: delta})
		})
		if err != nil {
			s.logger.Warn("websocket turn failed",
				zap.Int64("conversation_id", id),
				zap.Error(err),
			)
			if werr := conn.WriteJSON(wsTurnEvent{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(wsTurnEvent{Type: "done", Text: reply}); err != nil {
			return
		}
	}
}
