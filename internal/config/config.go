package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"newsreader/internal/scraper"
)

const (
	ChatBackendJSON   = "json"
	ChatBackendBadger = "badger"
)

// Config holds all configuration for the application.
// Values are read by viper from configs/config.yaml, a .env file or the
// environment (DATA_DIR, CACHE_DURATION, TELEGRAM_BOT_TOKEN...).
type Config struct {
	DataDir      string `mapstructure:"data_dir"`
	ArticlesFile string `mapstructure:"articles_file"`
	ChatFile     string `mapstructure:"chat_file"`
	SettingsFile string `mapstructure:"settings_file"`
	ChatBackend  string `mapstructure:"chat_backend"`
	BadgerPath   string `mapstructure:"badger_path"`

	CacheDuration time.Duration `mapstructure:"cache_duration"`

	ScrapeEnabled  bool          `mapstructure:"scrape_enabled"`
	ScrapeInterval time.Duration `mapstructure:"scrape_interval"`
	ErrorBackoff   time.Duration `mapstructure:"error_backoff"`
	ListingTimeout time.Duration `mapstructure:"listing_timeout"`
	ArticleTimeout time.Duration `mapstructure:"article_timeout"`
	RequestDelay   time.Duration `mapstructure:"request_delay"`
	UseBrowser     bool          `mapstructure:"use_browser"`

	LLMTimeout     time.Duration `mapstructure:"llm_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	LogLevel    string   `mapstructure:"log_level"`

	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   int64  `mapstructure:"telegram_chat_id"`

	RabbitMQURL        string `mapstructure:"rabbitmq_url"`
	RabbitMQExchange   string `mapstructure:"rabbitmq_exchange"`
	RabbitMQRoutingKey string `mapstructure:"rabbitmq_routing_key"`
	RabbitMQQueue      string `mapstructure:"rabbitmq_queue"`

	FeedTitle       string `mapstructure:"feed_title"`
	FeedLink        string `mapstructure:"feed_link"`
	FeedDescription string `mapstructure:"feed_description"`
}

var scrapeDefaults = scraper.DefaultOptions()

var defaults = map[string]any{
	"data_dir":             "./data",
	"articles_file":        "",
	"chat_file":            "",
	"settings_file":        "",
	"chat_backend":         ChatBackendJSON,
	"badger_path":          "",
	"cache_duration":       60 * time.Second,
	"scrape_enabled":       true,
	"scrape_interval":      30 * time.Minute,
	"error_backoff":        60 * time.Second,
	"listing_timeout":      scrapeDefaults.ListingTimeout,
	"article_timeout":      scrapeDefaults.ArticleTimeout,
	"request_delay":        scrapeDefaults.RequestDelay,
	"use_browser":          false,
	"llm_timeout":          60 * time.Second,
	"request_timeout":      90 * time.Second,
	"port":                 5000,
	"cors_origins":         []string{"*"},
	"log_level":            "info",
	"telegram_bot_token":   "",
	"telegram_chat_id":     0,
	"rabbitmq_url":         "",
	"rabbitmq_exchange":    "news",
	"rabbitmq_routing_key": "article.created",
	"rabbitmq_queue":       "articles",
	"feed_title":           "Newsreader",
	"feed_link":            "http://localhost:5000",
	"feed_description":     "Latest TechCrunch AI and France Info Europe articles",
}

// LoadConfig reads config.yaml from path, then lets a .env file and the
// environment override it. A missing config file is not an error.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyDerivedDefaults places unset file paths under DataDir.
func (c *Config) applyDerivedDefaults() {
	if c.ArticlesFile == "" {
		c.ArticlesFile = filepath.Join(c.DataDir, "articles.json")
	}
	if c.ChatFile == "" {
		c.ChatFile = filepath.Join(c.DataDir, "chat_history.json")
	}
	if c.SettingsFile == "" {
		c.SettingsFile = filepath.Join(c.DataDir, "settings.json")
	}
	if c.BadgerPath == "" {
		c.BadgerPath = filepath.Join(c.DataDir, "chat_badger")
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.ChatBackend, validation.Required, validation.In(ChatBackendJSON, ChatBackendBadger)),
		validation.Field(&c.CacheDuration, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ScrapeInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ErrorBackoff, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ListingTimeout, validation.Required),
		validation.Field(&c.ArticleTimeout, validation.Required),
		validation.Field(&c.RequestDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.LLMTimeout, validation.Required),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(c.LLMTimeout).Error("must be no less than llm_timeout")),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.LogLevel, validation.By(func(any) error {
			_, err := logrus.ParseLevel(c.LogLevel)
			return err
		})),
	)
}

// Level returns the configured logrus level, InfoLevel if unparsable.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// ScraperOptions returns the network settings shared by the scrapers.
func (c Config) ScraperOptions() scraper.Options {
	return scraper.Options{
		ListingTimeout: c.ListingTimeout,
		ArticleTimeout: c.ArticleTimeout,
		RequestDelay:   c.RequestDelay,
	}
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
