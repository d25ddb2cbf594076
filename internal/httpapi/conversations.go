package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/store"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListConversations(r.Context(), userIDFrom(r))
	if err != nil {
		s.logger.Error("listing conversations failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "listing conversations failed")
		return
	}
	if list == nil {
		list = []store.Conversation{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	conv, err := s.store.CreateConversation(r.Context(), userIDFrom(r), strings.TrimSpace(req.Title))
	if err != nil {
		s.logger.Error("creating conversation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "creating conversation failed")
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	conv, msgs, err := s.store.GetConversationWithMessages(r.Context(), id, userIDFrom(r))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("loading conversation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "loading conversation failed")
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":         conv.ID,
		"user_id":    conv.UserID,
		"title":      conv.Title,
		"created_at": conv.CreatedAt,
		"updated_at": conv.UpdatedAt,
		"messages":   msgs,
	})
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	var req struct {
		Title *string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Title == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing 'title' field")
		return
	}

	conv, err := s.store.UpdateConversationTitle(r.Context(), id, userIDFrom(r), *req.Title)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("updating conversation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "updating conversation failed")
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	ok, err := s.store.DeleteConversation(r.Context(), id, userIDFrom(r))
	if err != nil {
		s.logger.Error("deleting conversation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "deleting conversation failed")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
