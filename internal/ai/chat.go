package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
)

const (
	chatMaxTokens   = 1000
	chatTemperature = 0.7
)

// ArticleLookup resolves an article by positional ID.
type ArticleLookup interface {
	ArticleByID(ctx context.Context, id int) (domain.Article, bool)
}

// ConversationStore records answered questions.
type ConversationStore interface {
	AddExchange(ctx context.Context, articleID, question, answer, model string) ([]domain.ChatMessage, error)
}

// ChatAnswer is the result of a successful question.
type ChatAnswer struct {
	Success      bool   `json:"success"`
	Answer       string `json:"answer"`
	ArticleTitle string `json:"article_title"`
	ModelUsed    string `json:"model_used"`
	Question     string `json:"question"`
}

// ChatService answers questions about a single article and keeps the
// conversation history.
type ChatService struct {
	articles ArticleLookup
	history  ConversationStore
	settings *SettingsManager
	llm      Completer
	log      logrus.FieldLogger
}

// NewChatService wires a ChatService.
func NewChatService(articles ArticleLookup, history ConversationStore, settings *SettingsManager, llm Completer, logger logrus.FieldLogger) *ChatService {
	return &ChatService{
		articles: articles,
		history:  history,
		settings: settings,
		llm:      llm,
		log:      logger.WithField("component", "chat"),
	}
}

// Ask sends question about article id to modelName, or to the configured chat
// model when modelName is empty. The question and the answer are recorded
// together, and only when the model answered.
func (s *ChatService) Ask(ctx context.Context, id int, question, modelName string) (ChatAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return ChatAnswer{}, &domain.ValidationError{Message: "question cannot be empty"}
	}

	article, ok := s.articles.ArticleByID(ctx, id)
	if !ok {
		return ChatAnswer{}, &domain.NotFoundError{Message: fmt.Sprintf("article %d not found", id)}
	}

	if modelName == "" {
		modelName = s.settings.ChatModel()
	}
	model, ok := s.settings.Model(modelName)
	if !ok {
		return ChatAnswer{}, &domain.ValidationError{Message: fmt.Sprintf("model %q not found in configuration", modelName)}
	}

	prompt := fillTemplate(s.settings.Prompt(PromptChat), map[string]string{
		"article_content": article.Content,
		"article_title":   article.Title,
		"article_source":  article.Source.String(),
		"user_question":   question,
	})
	temperature := chatTemperature
	answer, err := s.llm.Complete(ctx, model, CompletionRequest{
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   chatMaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return ChatAnswer{}, err
	}

	if _, err := s.history.AddExchange(ctx, strconv.Itoa(id), question, answer, modelName); err != nil {
		return ChatAnswer{}, fmt.Errorf("record exchange: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"article_id":      id,
		"model":           modelName,
		"question_length": len(question),
		"answer_length":   len(answer),
	}).Info("Chat question answered")

	return ChatAnswer{
		Success:      true,
		Answer:       answer,
		ArticleTitle: article.Title,
		ModelUsed:    modelName,
		Question:     question,
	}, nil
}
