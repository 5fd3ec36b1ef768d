package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req chatRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	answer, err := s.deps.Chat.Ask(r.Context(), id, *req.Question, req.Model)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, answer)
}

// Conversations are keyed by the raw path value, so history survives for
// ids the article cache no longer knows.

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conversation, err := s.deps.History.GetConversation(r.Context(), id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"conversation": conversation,
		"article_id":   id,
	})
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.History.ClearConversation(r.Context(), id); err != nil {
		s.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Chat history cleared successfully",
	})
}
