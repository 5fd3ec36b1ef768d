package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
	"newsreader/internal/tags"
)

// ErrPretreatmentRunning is returned when a pass is already in progress.
var ErrPretreatmentRunning = errors.New("pretreatment already running")

// ArticleRepository is the slice of the article store used by pretreatment.
type ArticleRepository interface {
	Load(ctx context.Context) []domain.Article
	ApplyPretreatment(ctx context.Context, id int, url, content string, suggested []string) (bool, error)
}

// Completer sends a chat-completions request to a model.
type Completer interface {
	Complete(ctx context.Context, model Model, req CompletionRequest) (string, error)
}

// PretreatStats summarizes one pretreatment pass.
type PretreatStats struct {
	Pending   int `json:"pending"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Pretreater rewrites and tags articles that were not processed yet.
type Pretreater struct {
	store    ArticleRepository
	settings *SettingsManager
	llm      Completer
	log      logrus.FieldLogger

	running sync.Mutex
}

// NewPretreater wires a Pretreater.
func NewPretreater(store ArticleRepository, settings *SettingsManager, llm Completer, logger logrus.FieldLogger) *Pretreater {
	return &Pretreater{
		store:    store,
		settings: settings,
		llm:      llm,
		log:      logger.WithField("component", "pretreater"),
	}
}

// PretreatAll processes every article with has_been_pretreat=false using the
// default model. The LLM call runs without holding the store lock; its result
// is applied only if the record still has the same URL. A failed LLM call
// leaves the article untouched so a later pass retries it. Storage failures
// abort the pass.
func (p *Pretreater) PretreatAll(ctx context.Context) (PretreatStats, error) {
	if !p.running.TryLock() {
		return PretreatStats{}, ErrPretreatmentRunning
	}
	defer p.running.Unlock()

	var stats PretreatStats
	modelName := p.settings.DefaultModel()
	model, ok := p.settings.Model(modelName)
	if !ok {
		return stats, fmt.Errorf("%w: %s", ErrModelNotConfigured, modelName)
	}
	template := p.settings.Prompt(PromptArticleProcessing)

	for id, a := range p.store.Load(ctx) {
		if a.HasBeenPretreat {
			continue
		}
		stats.Pending++
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		log := p.log.WithFields(logrus.Fields{"article_id": id, "title": a.Title})
		content, suggested, err := p.process(ctx, model, template, a)
		if err != nil {
			stats.Failed++
			log.WithError(err).Warn("Pretreatment failed, article left for a later pass")
			continue
		}

		applied, err := p.store.ApplyPretreatment(ctx, id, a.URL, content, suggested)
		if err != nil {
			return stats, fmt.Errorf("apply pretreatment to article %d: %w", id, err)
		}
		if !applied {
			stats.Skipped++
			log.Warn("Article changed during pretreatment, skipped")
			continue
		}
		stats.Processed++
		log.WithField("tags", suggested).Info("Article pretreated")
	}

	p.log.WithFields(logrus.Fields{
		"pending":   stats.Pending,
		"processed": stats.Processed,
		"failed":    stats.Failed,
		"skipped":   stats.Skipped,
	}).Info("Pretreatment pass finished")
	return stats, nil
}

// process asks the model to rewrite a and returns the new content and the
// suggested tags, the source's required tag included.
func (p *Pretreater) process(ctx context.Context, model Model, template string, a domain.Article) (string, []string, error) {
	system := fillTemplate(template, map[string]string{
		"tags": tags.PromptList(tags.ForSource(a.Source)),
	})
	answer, err := p.llm.Complete(ctx, model, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: "Pretreat the following article content:\n\n" + a.Content},
		},
	})
	if err != nil {
		return "", nil, err
	}

	content, suggested := ExtractContentAndTags(answer)
	if strings.TrimSpace(content) == "" {
		return "", nil, &UpstreamError{Status: 200, Err: errors.New("empty content in answer")}
	}
	if required := tags.RequiredTag(a.Source); required != "" {
		suggested = append(suggested, required)
	}
	return content, suggested, nil
}
