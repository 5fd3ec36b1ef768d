package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"newsreader/internal/ai"
	"newsreader/internal/domain"
	"newsreader/internal/scraper"
)

// ErrAllSourcesFailed is returned when no source could be scraped.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Stats summarises one ingestion run.
type Stats struct {
	Scraped      map[domain.Source]int
	SourceErrors int
	Added        int
	Published    int
	Pretreat     ai.PretreatStats
	Duration     time.Duration
}

type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithPretreater(p Pretreater) Option { return func(s *Service) { s.pretreater = p } }

// Service scrapes every source, stores what is new and hands the new
// articles to the side channels.
type Service struct {
	store      ArticleStore
	sources    []Source
	cache      CacheRefresher
	publisher  Publisher
	notifier   Notifier
	pretreater Pretreater
	log        logrus.FieldLogger
}

func NewService(store ArticleStore, sources []Source, cache CacheRefresher, logger logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		sources: sources,
		cache:   cache,
		log:     logger.WithField("component", "ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs a single scrape, store and pretreat cycle.
func (s *Service) RunOnce(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{Scraped: make(map[domain.Source]int, len(s.sources))}

	seen := scraper.NewSeen(s.store.Load(ctx))

	var candidates []domain.Article
	for _, src := range s.sources {
		log := s.log.WithField("source", src.Name())
		found, err := src.Scrape(ctx, seen)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.SourceErrors++
			log.WithError(err).Error("Scrape failed")
			continue
		}
		stats.Scraped[src.Name()] = len(found)
		candidates = append(candidates, found...)
	}
	if len(s.sources) > 0 && stats.SourceErrors == len(s.sources) {
		return stats, ErrAllSourcesFailed
	}

	if len(candidates) > 0 {
		added, err := s.store.InsertNew(ctx, candidates)
		if err != nil {
			return stats, fmt.Errorf("store new articles: %w", err)
		}
		stats.Added = len(added)
		if len(added) > 0 {
			s.cache.UpdateAfterModification(ctx)
			stats.Published = s.publish(ctx, added)
			s.notify(ctx, added)
		}
	}

	if err := s.pretreat(ctx, stats); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	s.log.WithFields(logrus.Fields{
		"added":         stats.Added,
		"source_errors": stats.SourceErrors,
		"pretreated":    stats.Pretreat.Processed,
		"duration_ms":   stats.Duration.Milliseconds(),
	}).Info("Ingestion run finished")
	return stats, nil
}

func (s *Service) publish(ctx context.Context, added []domain.Article) int {
	if s.publisher == nil {
		return 0
	}
	n := 0
	for i := range added {
		if err := s.publisher.Publish(ctx, &added[i]); err != nil {
			s.log.WithError(err).WithField("url", added[i].URL).Warn("Failed to publish article event")
			continue
		}
		n++
	}
	return n
}

func (s *Service) notify(ctx context.Context, added []domain.Article) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyNewArticles(ctx, added); err != nil {
		s.log.WithError(err).Warn("Failed to notify new articles")
	}
}

func (s *Service) pretreat(ctx context.Context, stats *Stats) error {
	if s.pretreater == nil {
		return nil
	}
	ps, err := s.pretreater.PretreatAll(ctx)
	stats.Pretreat = ps
	switch {
	case errors.Is(err, ai.ErrPretreatmentRunning):
		s.log.Info("Pretreatment already running, skipped")
	case errors.Is(err, ai.ErrModelNotConfigured):
		s.log.WithError(err).Warn("Pretreatment skipped")
	case err != nil:
		return fmt.Errorf("pretreat: %w", err)
	}
	if ps.Processed > 0 {
		s.cache.UpdateAfterModification(ctx)
	}
	return nil
}
