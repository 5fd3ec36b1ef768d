// Package ai talks to the configured LLM endpoints: article pretreatment and
// per-article chat.
package ai

import (
	"fmt"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
	"newsreader/internal/jsonfile"
)

// Prompt names stored in Settings.Prompts.
const (
	PromptArticleProcessing = "article_processing"
	PromptChat              = "chat"
)

// Model is one configured LLM endpoint.
type Model struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	URL    string `json:"url"`
	APIKey string `json:"apikey"`
	LLM    string `json:"llm"`
}

// Validate implements validation.Validatable.
func (m Model) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.ID, validation.Required),
		validation.Field(&m.URL, validation.Required, is.URL),
	)
}

// Settings is the user-editable AI configuration document.
type Settings struct {
	Prompts      map[string]string `json:"prompts"`
	Models       []Model           `json:"models"`
	DefaultModel string            `json:"default_model,omitempty"`
	ChatModel    string            `json:"chat_model,omitempty"`
}

// Validate implements validation.Validatable.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Prompts,
			validation.Required,
			validation.Map(
				validation.Key(PromptArticleProcessing, validation.Required),
				validation.Key(PromptChat, validation.Required),
			).AllowExtraKeys(),
		),
		validation.Field(&s.Models, validation.Required),
	)
}

func (s Settings) clone() Settings {
	c := Settings{
		Prompts:      make(map[string]string, len(s.Prompts)),
		Models:       append([]Model(nil), s.Models...),
		DefaultModel: s.DefaultModel,
		ChatModel:    s.ChatModel,
	}
	for k, v := range s.Prompts {
		c.Prompts[k] = v
	}
	return c
}

// DefaultModelName is used when the settings document names no default.
const DefaultModelName = "mistral small"

// DefaultSettings returns the built-in configuration used while no settings
// document exists.
func DefaultSettings() Settings {
	return Settings{
		Prompts: map[string]string{
			PromptArticleProcessing: "Tu vas recevoir un article. Fais un résumé et réécris-le de manière structurée. " +
				"Termine ta réponse par une ligne TAGS:[tag1, tag2] en choisissant parmi {tags}.",
			PromptChat: "Tu es un assistant IA spécialisé dans l'analyse d'articles. " +
				"Réponds aux questions basées sur l'article fourni.\n\n" +
				"Titre : {article_title}\nSource : {article_source}\n\n{article_content}\n\n" +
				"Question : {user_question}",
		},
		Models: []Model{{
			Name: DefaultModelName,
			ID:   "mistral-small-latest",
			URL:  "https://api.mistral.ai/v1/chat/completions",
			LLM:  "mistral",
		}},
		DefaultModel: DefaultModelName,
	}
}

// SettingsManager loads the settings document once and serves it from
// memory until Save replaces it.
type SettingsManager struct {
	path string
	log  logrus.FieldLogger

	mu     sync.RWMutex
	cached *Settings
}

// NewSettingsManager creates a manager for the document at path.
func NewSettingsManager(path string, logger logrus.FieldLogger) *SettingsManager {
	return &SettingsManager{
		path: path,
		log:  logger.WithField("component", "settings"),
	}
}

// Get returns the current settings. A missing or unreadable document yields
// DefaultSettings, which is not cached so a later document is picked up.
func (m *SettingsManager) Get() Settings {
	m.mu.RLock()
	if m.cached != nil {
		s := m.cached.clone()
		m.mu.RUnlock()
		return s
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached != nil {
		return m.cached.clone()
	}

	var s Settings
	found, err := jsonfile.Read(m.path, &s)
	switch {
	case err != nil:
		m.log.WithError(err).Warn("Failed to load settings, using defaults")
		return DefaultSettings()
	case !found:
		m.log.WithField("path", m.path).Debug("Settings file not found, using defaults")
		return DefaultSettings()
	}
	m.cached = &s
	return s.clone()
}

// Save validates and persists s, then replaces the cached copy.
func (m *SettingsManager) Save(s Settings) error {
	if err := s.Validate(); err != nil {
		return &domain.ValidationError{Message: fmt.Sprintf("invalid settings: %v", err)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := jsonfile.Write(m.path, s); err != nil {
		m.log.WithError(err).Error("Failed to save settings")
		return fmt.Errorf("save settings: %w", err)
	}
	c := s.clone()
	m.cached = &c
	m.log.Info("Settings saved")
	return nil
}

// ClearCache forces the next Get to re-read the document.
func (m *SettingsManager) ClearCache() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

// Prompt returns the named prompt template, or "" when absent.
func (m *SettingsManager) Prompt(kind string) string {
	return m.Get().Prompts[kind]
}

// Models returns the configured models.
func (m *SettingsManager) Models() []Model {
	return m.Get().Models
}

// Model looks a model up by name.
func (m *SettingsManager) Model(name string) (Model, bool) {
	for _, mod := range m.Get().Models {
		if mod.Name == name {
			return mod, true
		}
	}
	return Model{}, false
}

// DefaultModel returns the model name used for pretreatment.
func (m *SettingsManager) DefaultModel() string {
	if s := m.Get(); s.DefaultModel != "" {
		return s.DefaultModel
	}
	return DefaultModelName
}

// ChatModel returns the model name used for chat when the caller names none.
func (m *SettingsManager) ChatModel() string {
	if s := m.Get(); s.ChatModel != "" {
		return s.ChatModel
	}
	return m.DefaultModel()
}
