package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
	"newsreader/internal/jsonfile"
	"newsreader/internal/tags"
)

// ArticleStore owns the on-disk article collection. Every read and write of
// persisted article state goes through it.
//
// Writes are serialized by a single mutex that is held across the whole
// load-modify-save sequence of a mutation, so concurrent mutations inside one
// process never lose updates.
type ArticleStore struct {
	path string
	log  logrus.FieldLogger
	now  func() time.Time

	mu sync.Mutex
}

// NewArticleStore creates a store backed by the JSON document at path.
func NewArticleStore(path string, logger logrus.FieldLogger) *ArticleStore {
	return &ArticleStore{
		path: path,
		log:  logger.WithField("component", "article_store"),
		now:  time.Now,
	}
}

// Path returns the backing document path.
func (s *ArticleStore) Path() string { return s.path }

// readRaw decodes the document without touching IDs.
func (s *ArticleStore) readRaw() ([]domain.Article, error) {
	var articles []domain.Article
	found, err := jsonfile.Read(s.path, &articles)
	if err != nil {
		return nil, err
	}
	if !found || articles == nil {
		return []domain.Article{}, nil
	}
	return articles, nil
}

// Read loads the collection and re-stamps IDs. Unlike Load it reports
// unreadable or corrupt documents to the caller. A missing document is an
// empty collection.
func (s *ArticleStore) Read(ctx context.Context) ([]domain.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	articles, err := s.readRaw()
	if err != nil {
		return nil, err
	}
	stamp(articles)
	return articles, nil
}

// Load returns the full collection with IDs re-stamped to their position.
// A missing or corrupt document yields an empty collection; corruption is
// logged, never returned.
func (s *ArticleStore) Load(ctx context.Context) []domain.Article {
	articles, err := s.Read(ctx)
	if err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("Failed to load articles, treating collection as empty")
		return []domain.Article{}
	}
	return articles
}

// loadForWrite is Load for callers that save afterwards. A corrupt document
// is renamed aside before it can be overwritten; if that fails the write is
// refused.
func (s *ArticleStore) loadForWrite(ctx context.Context) ([]domain.Article, error) {
	articles, err := s.Read(ctx)
	if err == nil {
		return articles, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	log := s.log.WithError(err).WithField("path", s.path)
	if errors.Is(err, jsonfile.ErrCorrupt) {
		backup, setErr := jsonfile.SetAside(s.path, s.now())
		if setErr != nil {
			log.WithField("set_aside_error", setErr.Error()).Error("Corrupt article document could not be set aside")
			return nil, &StorageError{Op: "set aside corrupt articles", Err: setErr}
		}
		log = log.WithField("backup", backup)
	}
	log.Warn("Failed to load articles, treating collection as empty")
	return []domain.Article{}, nil
}

// Save re-stamps IDs, normalizes tags and atomically replaces the document.
func (s *ArticleStore) Save(ctx context.Context, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, articles)
}

func (s *ArticleStore) saveLocked(ctx context.Context, articles []domain.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	stamp(articles)
	for i := range articles {
		articles[i].Tags = tags.NormalizeList(articles[i].Tags)
	}
	if err := jsonfile.Write(s.path, articles); err != nil {
		s.log.WithError(err).WithField("path", s.path).Error("Failed to save articles")
		return &StorageError{Op: "save articles", Err: err}
	}
	s.log.WithField("article_count", len(articles)).Debug("Articles saved")
	return nil
}

// stamp sets every record's ID to its index and backfills nil tag slices.
func stamp(articles []domain.Article) {
	for i := range articles {
		articles[i].ID = i
		if articles[i].Tags == nil {
			articles[i].Tags = []string{}
		}
	}
}

// EnsureIDs rewrites the document when any stored ID differs from its
// position. It is idempotent and safe to call after out-of-band edits.
func (s *ArticleStore) EnsureIDs(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	articles, err := s.readRaw()
	if err != nil {
		s.log.WithError(err).Warn("Cannot verify article IDs, document unreadable")
		return nil
	}

	drifted := 0
	for i := range articles {
		if articles[i].ID != i {
			drifted++
		}
	}
	if drifted == 0 {
		return nil
	}

	if err := s.saveLocked(ctx, articles); err != nil {
		return err
	}
	s.log.WithField("updated", drifted).Info("Re-stamped article IDs")
	return nil
}

// AddNewArticles appends the candidates whose title and URL are both unseen
// and returns how many were appended.
func (s *ArticleStore) AddNewArticles(ctx context.Context, candidates []domain.Article) (int, error) {
	added, err := s.InsertNew(ctx, candidates)
	return len(added), err
}

// InsertNew is AddNewArticles returning the appended records with their
// assigned IDs. Candidates are rejected when either their title or their URL
// already exists, including earlier candidates of the same batch.
func (s *ArticleStore) InsertNew(ctx context.Context, candidates []domain.Article) ([]domain.Article, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadForWrite(ctx)
	if err != nil {
		return nil, err
	}
	titles := make(map[string]struct{}, len(existing)+len(candidates))
	urls := make(map[string]struct{}, len(existing)+len(candidates))
	for _, a := range existing {
		titles[a.Title] = struct{}{}
		urls[a.URL] = struct{}{}
	}

	var added []domain.Article
	for _, c := range candidates {
		if _, ok := titles[c.Title]; ok {
			continue
		}
		if _, ok := urls[c.URL]; ok {
			continue
		}
		titles[c.Title] = struct{}{}
		urls[c.URL] = struct{}{}

		rec := c.Clone()
		if rec.UID == "" {
			rec.UID = uuid.NewString()
		}
		if rec.ScrapedDate == "" {
			rec.ScrapedDate = s.now().Format(domain.ScrapedDateLayout)
		}
		rec.Tags = tags.NormalizeList(rec.Tags)
		existing = append(existing, rec)
		added = append(added, rec)
	}

	if len(added) == 0 {
		return nil, nil
	}

	if err := s.saveLocked(ctx, existing); err != nil {
		return nil, err
	}

	first := len(existing) - len(added)
	for i := range added {
		added[i].ID = first + i
	}
	s.log.WithFields(logrus.Fields{
		"added":      len(added),
		"candidates": len(candidates),
		"total":      len(existing),
	}).Info("Added new articles")
	return added, nil
}

// mutate loads the collection, applies fn to the record at id and saves.
// It returns false without saving when id is out of range or fn declines.
func (s *ArticleStore) mutate(ctx context.Context, id int, op string, fn func(a *domain.Article) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	articles, err := s.loadForWrite(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if id < 0 || id >= len(articles) {
		s.log.WithFields(logrus.Fields{"article_id": id, "op": op}).Debug("Invalid article ID")
		return false, nil
	}
	if !fn(&articles[id]) {
		return false, nil
	}
	if err := s.saveLocked(ctx, articles); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	s.log.WithFields(logrus.Fields{"article_id": id, "op": op}).Info("Article updated")
	return true, nil
}

// UpdateRating sets the rating of article id. Ratings outside [1,5] are
// rejected without touching storage.
func (s *ArticleStore) UpdateRating(ctx context.Context, id, rating int) (bool, error) {
	if rating < 1 || rating > 5 {
		return false, nil
	}
	return s.mutate(ctx, id, "update rating", func(a *domain.Article) bool {
		r := rating
		a.Rating = &r
		return true
	})
}

// AddReadingTime adds seconds to the article's accumulated reading time.
func (s *ArticleStore) AddReadingTime(ctx context.Context, id, seconds int) (bool, error) {
	if seconds < 0 {
		return false, nil
	}
	return s.mutate(ctx, id, "add reading time", func(a *domain.Article) bool {
		a.TimeSpent += seconds
		return true
	})
}

// UpdateComments overwrites the article's comments.
func (s *ArticleStore) UpdateComments(ctx context.Context, id int, comments string) (bool, error) {
	return s.mutate(ctx, id, "update comments", func(a *domain.Article) bool {
		a.Comments = comments
		return true
	})
}

// UpdateTags replaces the article's tags with their normalized form.
func (s *ArticleStore) UpdateTags(ctx context.Context, id int, list []string) (bool, error) {
	normalized := tags.NormalizeList(list)
	return s.mutate(ctx, id, "update tags", func(a *domain.Article) bool {
		a.Tags = normalized
		return true
	})
}

// MarkPretreated flags the article as processed by the AI pipeline.
func (s *ArticleStore) MarkPretreated(ctx context.Context, id int) (bool, error) {
	return s.mutate(ctx, id, "mark pretreated", func(a *domain.Article) bool {
		a.HasBeenPretreat = true
		return true
	})
}

// ApplyPretreatment stores the AI output for article id: content is
// replaced, tags are merged into the existing ones and the record is marked
// pretreated. The update is skipped when the record at id no longer has the
// expected URL.
func (s *ArticleStore) ApplyPretreatment(ctx context.Context, id int, url, content string, suggested []string) (bool, error) {
	return s.mutate(ctx, id, "apply pretreatment", func(a *domain.Article) bool {
		if a.URL != url {
			return false
		}
		a.Content = content
		a.Tags = tags.Merge(a.Tags, suggested...)
		a.HasBeenPretreat = true
		return true
	})
}
