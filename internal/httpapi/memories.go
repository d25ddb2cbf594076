package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/antoniostano/chatrelay/internal/store"
)

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListMemories(r.Context(), userIDFrom(r))
	if err != nil {
		s.logger.Error("listing memories failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "listing memories failed")
		return
	}
	if list == nil {
		list = []store.Memory{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content *string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Content == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing 'content' field")
		return
	}

	m, err := s.store.AddMemory(r.Context(), userIDFrom(r), *req.Content)
	if err != nil {
		s.logger.Error("adding memory failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "adding memory failed")
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "memory not found")
		return
	}

	ok, err := s.store.DeleteMemory(r.Context(), id, userIDFrom(r))
	if err != nil {
		s.logger.Error("deleting memory failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "deleting memory failed")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "memory not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
