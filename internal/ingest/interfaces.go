package ingest

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"newsreader/internal/ai"
	"newsreader/internal/domain"
	"newsreader/internal/scraper"
)

type ArticleStore interface {
	Load(ctx context.Context) []domain.Article
	InsertNew(ctx context.Context, candidates []domain.Article) ([]domain.Article, error)
}

type Source interface {
	Name() domain.Source
	Scrape(ctx context.Context, seen *scraper.Seen) ([]domain.Article, error)
}

type Pretreater interface {
	PretreatAll(ctx context.Context) (ai.PretreatStats, error)
}

type CacheRefresher interface {
	UpdateAfterModification(ctx context.Context)
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article) error
	Close() error
}

type Notifier interface {
	NotifyNewArticles(ctx context.Context, articles []domain.Article) error
}
