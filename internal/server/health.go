package server

import "net/http"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"service":    "newsreader",
		"cache_info": s.deps.Cache.Info(),
	})
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, s.deps.Cache.Info())
}

// handleCacheRefresh reloads the articles and drops the cached settings so
// hand edits to either document take effect.
func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings != nil {
		s.deps.Settings.ClearCache()
	}
	articles := s.deps.Cache.Articles(r.Context(), true)
	RespondJSON(w, http.StatusOK, map[string]any{
		"message":       "Cache refreshed successfully",
		"article_count": len(articles),
	})
}
