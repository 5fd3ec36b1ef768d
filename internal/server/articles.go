package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	"newsreader/internal/cache"
	"newsreader/internal/domain"
	"newsreader/internal/query"
)

// decodeValid decodes the body into req and validates it.
func decodeValid(w http.ResponseWriter, r *http.Request, req validation.Validatable) error {
	if err := parseJSON(w, r, req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// articleID parses the {id} path parameter.
func articleID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, notFound("article %q not found", raw)
	}
	return id, nil
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, s.deps.Cache.Articles(r.Context(), false))
}

func (s *Server) handlePaginatedArticles(w http.ResponseWriter, r *http.Request) {
	req := rangeRequest{Start: defaultStart, End: defaultEnd}
	if err := decodeValid(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	articles, info := s.deps.Cache.Paginated(r.Context(), req.Start, req.End)
	RespondJSON(w, http.StatusOK, struct {
		Articles   []domain.Article `json:"articles"`
		Pagination cache.Range      `json:"pagination"`
	}{articles, info})
}

func (s *Server) handlePaginatedTitles(w http.ResponseWriter, r *http.Request) {
	req := titlesRequest{Page: defaultPage, PerPage: defaultPerPage, SortBy: cache.SortByDate}
	if err := decodeValid(w, r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	titles, info := s.deps.Cache.PaginatedTitles(r.Context(), req.Page, req.PerPage, req.SortBy, strings.TrimSpace(req.Search))
	RespondJSON(w, http.StatusOK, struct {
		Titles     []domain.TitleView `json:"titles"`
		Pagination cache.Page         `json:"pagination"`
	}{titles, info})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	article, ok := s.deps.Cache.ArticleByID(r.Context(), id)
	if !ok {
		s.handleError(w, r, notFound("article %d not found", id))
		return
	}
	RespondJSON(w, http.StatusOK, article)
}

func (s *Server) handleUnpretreated(w http.ResponseWriter, r *http.Request) {
	pending := query.Unpretreated(s.deps.Cache.Articles(r.Context(), false))
	RespondJSON(w, http.StatusOK, map[string]any{
		"unpretreat_articles": pending,
		"count":               len(pending),
	})
}

func (s *Server) handleLength(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, s.deps.Cache.Count(r.Context()))
}

// handleFilterArticles accepts repeated or comma separated tags and an
// optional min_rating.
func (s *Server) handleFilterArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var wanted []string
	for _, v := range q["tags"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				wanted = append(wanted, t)
			}
		}
	}

	articles := query.FilterByTags(s.deps.Cache.Articles(r.Context(), false), wanted)

	if raw := q.Get("min_rating"); raw != "" {
		minRating, err := strconv.Atoi(raw)
		if err != nil {
			s.handleError(w, r, invalid("min_rating must be an integer"))
			return
		}
		articles = query.FilterByRating(articles, minRating)
	}

	RespondJSON(w, http.StatusOK, articles)
}

// handlePretreat starts a pretreatment pass in the background.
func (s *Server) handlePretreat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pretreater == nil {
		RespondError(w, http.StatusNotFound, "pretreatment is not available")
		return
	}
	go s.runPretreatment()
	RespondJSON(w, http.StatusAccepted, map[string]string{"message": "Articles pretreatment initiated"})
}

func (s *Server) runPretreatment() {
	stats, err := s.deps.Pretreater.PretreatAll(s.background)
	log := s.log.WithFields(logrus.Fields{
		"pending":   stats.Pending,
		"processed": stats.Processed,
		"failed":    stats.Failed,
	})
	if err != nil {
		log.WithError(err).Warn("Pretreatment did not complete")
	} else {
		log.Info("Pretreatment finished")
	}
	if stats.Processed > 0 {
		s.deps.Cache.UpdateAfterModification(s.background)
	}
}
