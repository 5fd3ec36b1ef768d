package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"newsreader/internal/ai"
	"newsreader/internal/cache"
	"newsreader/internal/domain"
)

// ArticleCache is the read side of the article collection.
type ArticleCache interface {
	Articles(ctx context.Context, forceRefresh bool) []domain.Article
	ArticleByID(ctx context.Context, id int) (domain.Article, bool)
	Paginated(ctx context.Context, start, end int) ([]domain.Article, cache.Range)
	PaginatedTitles(ctx context.Context, page, perPage int, sortBy, search string) ([]domain.TitleView, cache.Page)
	Count(ctx context.Context) int
	Info() cache.Info
	UpdateAfterModification(ctx context.Context)
}

// ArticleEditor applies user edits to stored articles.
type ArticleEditor interface {
	UpdateRating(ctx context.Context, id, rating int) (bool, error)
	AddReadingTime(ctx context.Context, id, seconds int) (bool, error)
	UpdateComments(ctx context.Context, id int, comments string) (bool, error)
	UpdateTags(ctx context.Context, id int, list []string) (bool, error)
}

// ChatHistory reads and clears article conversations.
type ChatHistory interface {
	GetConversation(ctx context.Context, articleID string) ([]domain.ChatMessage, error)
	ClearConversation(ctx context.Context, articleID string) error
}

type ChatAsker interface {
	Ask(ctx context.Context, id int, question, modelName string) (ai.ChatAnswer, error)
}

type Pretreater interface {
	PretreatAll(ctx context.Context) (ai.PretreatStats, error)
}

// FeedConfig describes the RSS channel.
type FeedConfig struct {
	Title       string
	Link        string
	Description string
}

type Config struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	Feed           FeedConfig
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Cache      ArticleCache
	Editor     ArticleEditor
	History    ChatHistory
	Chat       ChatAsker
	Settings   *ai.SettingsManager
	Pretreater Pretreater
}

// Server exposes the article API under /api.
type Server struct {
	router *chi.Mux
	deps   Deps
	cfg    Config
	log    logrus.FieldLogger

	// background is the parent of work that outlives a request.
	background context.Context
}

func New(deps Deps, cfg Config, logger logrus.FieldLogger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		router:     chi.NewRouter(),
		deps:       deps,
		cfg:        cfg,
		log:        logger.WithField("component", "http"),
		background: context.Background(),
	}
	s.setupRoutes()
	return s
}

// WithBackground sets the context that asynchronous jobs started by
// requests run under, typically the application lifetime.
func (s *Server) WithBackground(ctx context.Context) *Server {
	s.background = ctx
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/articles", s.handleListArticles)
		r.Post("/articles", s.handlePaginatedArticles)
		r.Get("/articles/filter", s.handleFilterArticles)
		r.Post("/titles", s.handlePaginatedTitles)
		r.Get("/article/{id}", s.handleGetArticle)
		r.Get("/unpretreat", s.handleUnpretreated)
		r.Get("/length", s.handleLength)
		r.Get("/pretreat", s.handlePretreat)

		r.Route("/articles/{id}", func(r chi.Router) {
			r.Put("/rating", s.handleUpdateRating)
			r.Post("/reading-time", s.handleAddReadingTime)
			r.Put("/comments", s.handleUpdateComments)
			r.Put("/tags", s.handleUpdateTags)

			r.Post("/chat", s.handleChat)
			r.Get("/chat/history", s.handleChatHistory)
			r.Delete("/chat/clear", s.handleClearChat)
		})

		r.Get("/tags", s.handleTags)
		r.Get("/tags/categories", s.handleTagCategories)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
		r.Get("/settings/models", s.handleModels)
		r.Get("/settings/prompts", s.handlePrompts)

		r.Get("/health", s.handleHealth)
		r.Get("/cache/status", s.handleCacheStatus)
		r.Post("/cache/refresh", s.handleCacheRefresh)

		r.Get("/rss.xml", s.handleRSS)
	})
}

// Handler returns the router wrapped with CORS for the configured origins.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
	})
	return c.Handler(s.router)
}
