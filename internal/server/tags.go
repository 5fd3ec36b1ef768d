package server

import (
	"net/http"

	"newsreader/internal/query"
	"newsreader/internal/tags"
)

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	all := query.AllTags(s.deps.Cache.Articles(r.Context(), false), tags.BasicTags)
	RespondJSON(w, http.StatusOK, map[string][]string{"tags": all})
}

func (s *Server) handleTagCategories(w http.ResponseWriter, r *http.Request) {
	all := query.AllTags(s.deps.Cache.Articles(r.Context(), false), tags.BasicTags)
	RespondJSON(w, http.StatusOK, query.Categories(all))
}
