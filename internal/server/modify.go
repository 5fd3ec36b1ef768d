package server

import (
	"net/http"

	"newsreader/internal/tags"
)

// edit runs one article mutation, then refreshes the cache. A false result
// from the store means the article does not exist: values are validated
// before reaching it.
func (s *Server) edit(w http.ResponseWriter, r *http.Request, id int, apply func() (bool, error), response any) {
	ok, err := apply()
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if !ok {
		s.handleError(w, r, notFound("article %d not found", id))
		return
	}
	s.deps.Cache.UpdateAfterModification(r.Context())
	RespondJSON(w, http.StatusOK, response)
}

func (s *Server) handleUpdateRating(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req ratingRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	rating := *req.Rating
	s.edit(w, r, id, func() (bool, error) {
		return s.deps.Editor.UpdateRating(r.Context(), id, rating)
	}, map[string]any{"message": "Rating updated successfully", "rating": rating})
}

func (s *Server) handleAddReadingTime(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req readingTimeRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	seconds := *req.Seconds
	s.edit(w, r, id, func() (bool, error) {
		return s.deps.Editor.AddReadingTime(r.Context(), id, seconds)
	}, map[string]any{"message": "Reading time added successfully", "seconds_added": seconds})
}

func (s *Server) handleUpdateComments(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req commentsRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	comments := *req.Comments
	s.edit(w, r, id, func() (bool, error) {
		return s.deps.Editor.UpdateComments(r.Context(), id, comments)
	}, map[string]any{"message": "Comments updated successfully", "comments": comments})
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req tagsRequest
	if err := decodeValid(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	normalized := tags.NormalizeList(*req.Tags)
	s.edit(w, r, id, func() (bool, error) {
		return s.deps.Editor.UpdateTags(r.Context(), id, normalized)
	}, map[string]any{"message": "Tags updated successfully", "tags": normalized})
}
