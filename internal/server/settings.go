package server

import (
	"net/http"

	"newsreader/internal/ai"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, s.deps.Settings.Get())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings ai.Settings
	if err := parseJSON(w, r, &settings); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.deps.Settings.Save(settings); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.log.WithField("models", len(settings.Models)).Info("Settings updated")
	RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Settings updated successfully",
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"models":        s.deps.Settings.Models(),
		"default_model": s.deps.Settings.DefaultModel(),
	})
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, s.deps.Settings.Get().Prompts)
}
