package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsreader/internal/ai"
	"newsreader/internal/cache"
	"newsreader/internal/domain"
	"newsreader/internal/storage"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func intPtr(v int) *int { return &v }

type testEnv struct {
	t       *testing.T
	handler http.Handler
	store   *storage.ArticleStore
	llm     *httptest.Server
	reply   func() (int, string)

	// settingsPath is the settings document behind the server.
	settingsPath string
}

// setupServer wires the real stores, cache and chat service against a fake
// LLM endpoint.
func setupServer(t *testing.T, pretreater Pretreater) *testEnv {
	t.Helper()
	dir := t.TempDir()
	log := quietLogger()

	env := &testEnv{t: t, reply: func() (int, string) { return http.StatusOK, "Réponse du modèle" }}
	env.llm = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, content := env.reply()
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = io.WriteString(w, content)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(env.llm.Close)

	env.store = storage.NewArticleStore(filepath.Join(dir, "articles.json"), log)
	require.NoError(t, env.store.Save(context.Background(), []domain.Article{
		{Title: "Nouvelle IA générative", URL: "https://tc/1", Content: "Contenu IA", Tags: []string{"ia"},
			Source: domain.SourceTechCrunch, Date: "2024-05-01", Rating: intPtr(4), HasBeenPretreat: true,
			ScrapedDate: "2024-05-01 10:00:00"},
		{Title: "Vote au Parlement européen", URL: "https://fi/1", Content: "Contenu vote", Tags: []string{"politique", "parlement"},
			Source: domain.SourceFranceInfo, Date: "2024-05-03", ScrapedDate: "2024-05-03 10:00:00"},
		{Title: "Robot chef", URL: "https://tc/2", Content: "Contenu robot", Tags: []string{"ia", "robotique"},
			Source: domain.SourceTechCrunch, Rating: intPtr(2), ScrapedDate: "2024-05-04 10:00:00"},
	}))

	articleCache := cache.New(env.store, time.Minute, log)
	history := storage.NewJSONChatStore(filepath.Join(dir, "chat.json"), log)

	env.settingsPath = filepath.Join(dir, "settings.json")
	settings := ai.NewSettingsManager(env.settingsPath, log)
	s := ai.DefaultSettings()
	s.Models = []ai.Model{{Name: ai.DefaultModelName, ID: "mistral-small-latest", URL: env.llm.URL, APIKey: "k", LLM: "mistral"}}
	require.NoError(t, settings.Save(s))

	chat := ai.NewChatService(articleCache, history, settings, ai.NewClient(5*time.Second, log), log)

	deps := Deps{
		Cache:    articleCache,
		Editor:   env.store,
		History:  history,
		Chat:     chat,
		Settings: settings,
	}
	if pretreater != nil {
		deps.Pretreater = pretreater
	}
	srv := New(deps, Config{
		CORSOrigins: []string{"*"},
		Feed:        FeedConfig{Title: "Newsreader", Link: "http://localhost:5000", Description: "test feed"},
	}, log)
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertProblem(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	p := decode[ProblemDetail](t, rec)
	assert.Equal(t, status, p.Status)
	assert.NotEmpty(t, p.Detail)
}

func TestListAndLength(t *testing.T) {
	env := setupServer(t, nil)

	rec := env.do(http.MethodGet, "/api/articles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Article](t, rec), 3)

	rec = env.do(http.MethodGet, "/api/length", nil)
	assert.Equal(t, 3, decode[int](t, rec))
}

func TestPaginatedArticles(t *testing.T) {
	env := setupServer(t, nil)

	type response struct {
		Articles   []domain.Article `json:"articles"`
		Pagination cache.Range      `json:"pagination"`
	}

	got := decode[response](t, env.do(http.MethodPost, "/api/articles", map[string]int{"start": 2, "end": 10}))
	require.Len(t, got.Articles, 2)
	assert.Equal(t, 1, got.Articles[0].ID)
	assert.Equal(t, cache.Range{Start: 2, End: 3, Total: 3, Returned: 2}, got.Pagination)

	got = decode[response](t, env.do(http.MethodPost, "/api/articles", nil))
	assert.Equal(t, 3, got.Pagination.Returned, "defaults to 1..20")

	assertProblem(t, env.do(http.MethodPost, "/api/articles", map[string]int{"start": 0, "end": 5}), http.StatusBadRequest)
	assertProblem(t, env.do(http.MethodPost, "/api/articles", map[string]int{"start": 3, "end": 2}), http.StatusBadRequest)
	assertProblem(t, env.do(http.MethodPost, "/api/articles", `{"start":"one"}`), http.StatusBadRequest)
}

func TestPaginatedTitles(t *testing.T) {
	env := setupServer(t, nil)

	type response struct {
		Titles     []domain.TitleView `json:"titles"`
		Pagination cache.Page         `json:"pagination"`
	}

	got := decode[response](t, env.do(http.MethodPost, "/api/titles", map[string]any{"page": 1, "per_page": 2, "sort_by": "date"}))
	require.Len(t, got.Titles, 2)
	assert.Equal(t, 1, got.Titles[0].ID, "newest publication date first")
	assert.Equal(t, 0, got.Titles[1].ID)
	assert.Equal(t, cache.Page{Page: 1, PerPage: 2, Total: 3, Returned: 2, SortBy: "date"}, got.Pagination)

	got = decode[response](t, env.do(http.MethodPost, "/api/titles", map[string]any{"sort_by": "order", "search": "parlement"}))
	require.Len(t, got.Titles, 1)
	assert.Equal(t, "Vote au Parlement européen", got.Titles[0].Title)

	rec := env.do(http.MethodPost, "/api/titles", `{"page":9223372036854775807,"per_page":2,"sort_by":"order"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[response](t, rec)
	assert.Empty(t, got.Titles)
	assert.Equal(t, 3, got.Pagination.Total)

	assertProblem(t, env.do(http.MethodPost, "/api/titles", map[string]any{"sort_by": "name"}), http.StatusBadRequest)
	assertProblem(t, env.do(http.MethodPost, "/api/titles", map[string]any{"page": 0}), http.StatusBadRequest)
	assertProblem(t, env.do(http.MethodPost, "/api/titles", map[string]any{"per_page": -1}), http.StatusBadRequest)
}

func TestGetArticle(t *testing.T) {
	env := setupServer(t, nil)

	rec := env.do(http.MethodGet, "/api/article/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Vote au Parlement européen", decode[domain.Article](t, rec).Title)

	assertProblem(t, env.do(http.MethodGet, "/api/article/9", nil), http.StatusNotFound)
	assertProblem(t, env.do(http.MethodGet, "/api/article/abc", nil), http.StatusNotFound)
}

func TestUnpretreatedAndFilter(t *testing.T) {
	env := setupServer(t, nil)

	pending := decode[map[string]any](t, env.do(http.MethodGet, "/api/unpretreat", nil))
	assert.EqualValues(t, 2, pending["count"])

	got := decode[[]domain.Article](t, env.do(http.MethodGet, "/api/articles/filter?tags=robotique&tags=parlement", nil))
	assert.Len(t, got, 2)

	got = decode[[]domain.Article](t, env.do(http.MethodGet, "/api/articles/filter?tags=ia&min_rating=3", nil))
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].ID)

	got = decode[[]domain.Article](t, env.do(http.MethodGet, "/api/articles/filter", nil))
	assert.Len(t, got, 3)

	assertProblem(t, env.do(http.MethodGet, "/api/articles/filter?min_rating=high", nil), http.StatusBadRequest)
}

func TestModifications(t *testing.T) {
	env := setupServer(t, nil)

	rec := env.do(http.MethodPut, "/api/articles/1/rating", map[string]int{"rating": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	article := decode[domain.Article](t, env.do(http.MethodGet, "/api/article/1", nil))
	require.NotNil(t, article.Rating)
	assert.Equal(t, 5, *article.Rating, "cache refreshed after the edit")

	for _, body := range []any{map[string]int{"rating": 0}, map[string]int{"rating": 6}, map[string]string{}, `{"rating":"5"}`} {
		assertProblem(t, env.do(http.MethodPut, "/api/articles/1/rating", body), http.StatusBadRequest)
	}
	assertProblem(t, env.do(http.MethodPut, "/api/articles/9/rating", map[string]int{"rating": 3}), http.StatusNotFound)

	for range 2 {
		rec = env.do(http.MethodPost, "/api/articles/2/reading-time", map[string]int{"seconds": 30})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.EqualValues(t, 30, decode[map[string]any](t, rec)["seconds_added"])
	assert.Equal(t, 60, decode[domain.Article](t, env.do(http.MethodGet, "/api/article/2", nil)).TimeSpent)
	assertProblem(t, env.do(http.MethodPost, "/api/articles/2/reading-time", map[string]int{"seconds": -1}), http.StatusBadRequest)

	rec = env.do(http.MethodPut, "/api/articles/0/comments", map[string]string{"comments": "à relire"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "à relire", decode[domain.Article](t, env.do(http.MethodGet, "/api/article/0", nil)).Comments)
	assertProblem(t, env.do(http.MethodPut, "/api/articles/0/comments", map[string]any{}), http.StatusBadRequest)

	rec = env.do(http.MethodPut, "/api/articles/0/tags", map[string][]string{"tags": {"  Santé ", "santé", "IA"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"santé", "ia"}, decode[map[string]any](t, rec)["tags"])
	assert.Equal(t, []string{"santé", "ia"}, decode[domain.Article](t, env.do(http.MethodGet, "/api/article/0", nil)).Tags)
	assertProblem(t, env.do(http.MethodPut, "/api/articles/0/tags", `{"tags":[1,2]}`), http.StatusBadRequest)
}

func TestChat(t *testing.T) {
	env := setupServer(t, nil)

	rec := env.do(http.MethodPost, "/api/articles/0/chat", map[string]string{"question": "De quoi parle l'article ?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	answer := decode[ai.ChatAnswer](t, rec)
	assert.True(t, answer.Success)
	assert.Equal(t, "Réponse du modèle", answer.Answer)
	assert.Equal(t, "Nouvelle IA générative", answer.ArticleTitle)

	type history struct {
		Success      bool                 `json:"success"`
		Conversation []domain.ChatMessage `json:"conversation"`
		ArticleID    string               `json:"article_id"`
	}
	h := decode[history](t, env.do(http.MethodGet, "/api/articles/0/chat/history", nil))
	require.Len(t, h.Conversation, 2)
	assert.Equal(t, domain.MessageTypeUser, h.Conversation[0].Type)
	assert.Equal(t, domain.MessageTypeAI, h.Conversation[1].Type)
	assert.Equal(t, "0", h.ArticleID)

	rec = env.do(http.MethodDelete, "/api/articles/0/chat/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	h = decode[history](t, env.do(http.MethodGet, "/api/articles/0/chat/history", nil))
	assert.Empty(t, h.Conversation)
	assert.NotNil(t, h.Conversation)
}

func TestChat_Errors(t *testing.T) {
	env := setupServer(t, nil)

	assertProblem(t, env.do(http.MethodPost, "/api/articles/0/chat", map[string]string{}), http.StatusBadRequest)
	assertProblem(t, env.do(http.MethodPost, "/api/articles/0/chat", map[string]string{"question": "   "}), http.StatusBadRequest)
	assertProblem(t, env.do(http.MethodPost, "/api/articles/0/chat", map[string]string{"question": "q", "model": "gpt"}), http.StatusBadRequest)
	assertProblem(t, env.do(http.MethodPost, "/api/articles/42/chat", map[string]string{"question": "q"}), http.StatusNotFound)

	env.reply = func() (int, string) { return http.StatusInternalServerError, "boom" }
	assertProblem(t, env.do(http.MethodPost, "/api/articles/0/chat", map[string]string{"question": "q"}), http.StatusBadGateway)

	h := decode[map[string]any](t, env.do(http.MethodGet, "/api/articles/0/chat/history", nil))
	assert.Empty(t, h["conversation"], "failed questions are not recorded")
}

func TestSettings(t *testing.T) {
	env := setupServer(t, nil)

	got := decode[ai.Settings](t, env.do(http.MethodGet, "/api/settings", nil))
	require.Len(t, got.Models, 1)

	models := decode[map[string]any](t, env.do(http.MethodGet, "/api/settings/models", nil))
	assert.Equal(t, ai.DefaultModelName, models["default_model"])

	prompts := decode[map[string]string](t, env.do(http.MethodGet, "/api/settings/prompts", nil))
	assert.Contains(t, prompts, ai.PromptChat)
	assert.Contains(t, prompts, ai.PromptArticleProcessing)

	assertProblem(t, env.do(http.MethodPut, "/api/settings", map[string]any{"models": got.Models}), http.StatusBadRequest)
	assertProblem(t, env.do(http.MethodPut, "/api/settings", "not json"), http.StatusBadRequest)

	got.Models = append(got.Models, ai.Model{Name: "large", ID: "mistral-large", URL: "https://api.mistral.ai/v1/chat/completions"})
	rec := env.do(http.MethodPut, "/api/settings", got)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	again := decode[ai.Settings](t, env.do(http.MethodGet, "/api/settings", nil))
	assert.Len(t, again.Models, 2)
}

func TestTags(t *testing.T) {
	env := setupServer(t, nil)

	all := decode[map[string][]string](t, env.do(http.MethodGet, "/api/tags", nil))
	assert.Equal(t, []string{"ia", "parlement", "politique", "robotique"}, all["tags"])

	type organized struct {
		Categories map[string]struct {
			MainTag string   `json:"main_tag"`
			SubTags []string `json:"sub_tags"`
			HasMain bool     `json:"has_main"`
		} `json:"categories"`
		BasicTags []string `json:"basic_tags"`
		OtherTags []string `json:"other_tags"`
	}
	org := decode[organized](t, env.do(http.MethodGet, "/api/tags/categories", nil))
	require.Contains(t, org.Categories, "politique")
	assert.Equal(t, []string{"parlement"}, org.Categories["politique"].SubTags)
	assert.True(t, org.Categories["ia"].HasMain)
	assert.Equal(t, []string{"robotique"}, org.OtherTags)
}

func TestHealthAndCache(t *testing.T) {
	env := setupServer(t, nil)

	health := decode[map[string]any](t, env.do(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "healthy", health["status"])

	// Hand edit the settings document behind the server's back.
	edited := decode[ai.Settings](t, env.do(http.MethodGet, "/api/settings", nil))
	edited.Models = append(edited.Models, ai.Model{Name: "edited", ID: "edited", URL: "https://example.com/v1"})
	raw, err := json.Marshal(edited)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.settingsPath, raw, 0o644))

	stale := decode[ai.Settings](t, env.do(http.MethodGet, "/api/settings", nil))
	assert.Len(t, stale.Models, 1, "settings are served from memory")

	refreshed := decode[map[string]any](t, env.do(http.MethodPost, "/api/cache/refresh", nil))
	assert.EqualValues(t, 3, refreshed["article_count"])

	reloaded := decode[ai.Settings](t, env.do(http.MethodGet, "/api/settings", nil))
	assert.Len(t, reloaded.Models, 2, "refresh re-reads the settings document")

	info := decode[cache.Info](t, env.do(http.MethodGet, "/api/cache/status", nil))
	assert.Equal(t, 3, info.Size)
	assert.True(t, info.Valid)
	assert.Equal(t, 60.0, info.DurationSecs)
}

func TestRSS(t *testing.T) {
	env := setupServer(t, nil)

	rec := env.do(http.MethodGet, "/api/rss.xml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<rss")
	assert.Contains(t, body, "Robot chef")
	assert.Less(t, strings.Index(body, "Robot chef"), strings.Index(body, "Nouvelle IA générative"), "latest first")
}

func TestGenerateRSSFeed_Truncates(t *testing.T) {
	long := strings.Repeat("é", feedDescriptionLen+10)
	rss, err := GenerateRSSFeed([]domain.Article{{Title: "T", URL: "https://x", Content: long}}, FeedConfig{Title: "F", Link: "http://l"}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, rss, strings.Repeat("é", feedDescriptionLen)+"...")
	assert.NotContains(t, rss, strings.Repeat("é", feedDescriptionLen+1))
}

type signalPretreater struct {
	done chan struct{}
}

func (p *signalPretreater) PretreatAll(context.Context) (ai.PretreatStats, error) {
	close(p.done)
	return ai.PretreatStats{}, nil
}

func TestPretreat(t *testing.T) {
	p := &signalPretreater{done: make(chan struct{})}
	env := setupServer(t, p)

	rec := env.do(http.MethodGet, "/api/pretreat", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("pretreatment was not started")
	}
}

func TestPretreat_Unavailable(t *testing.T) {
	env := setupServer(t, nil)
	assertProblem(t, env.do(http.MethodGet, "/api/pretreat", nil), http.StatusNotFound)
}

func TestCORSPreflight(t *testing.T) {
	env := setupServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/articles", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// deadlineAsker records the deadline of the request context it is given.
type deadlineAsker struct {
	deadline time.Time
	ok       bool
}

func (a *deadlineAsker) Ask(ctx context.Context, id int, question, modelName string) (ai.ChatAnswer, error) {
	a.deadline, a.ok = ctx.Deadline()
	return ai.ChatAnswer{Success: true, Answer: "ok", Question: question}, nil
}

func TestRequestTimeout(t *testing.T) {
	for name, tc := range map[string]struct {
		configured time.Duration
		want       time.Duration
	}{
		"configured": {configured: 3 * time.Minute, want: 3 * time.Minute},
		"default":    {want: 60 * time.Second},
	} {
		t.Run(name, func(t *testing.T) {
			asker := &deadlineAsker{}
			srv := New(Deps{Chat: asker}, Config{RequestTimeout: tc.configured}, quietLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/articles/0/chat", strings.NewReader(`{"question":"q"}`))
			rec := httptest.NewRecorder()
			start := time.Now()
			srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.True(t, asker.ok)
			assert.WithinDuration(t, start.Add(tc.want), asker.deadline, 5*time.Second)
		})
	}
}
