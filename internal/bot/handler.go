package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
)

const (
	latestCount     = 5
	maxNotifyListed = 10
)

// ArticleSource provides the current article collection.
type ArticleSource interface {
	Articles(ctx context.Context, force bool) []domain.Article
}

// messageSender is the subset of *tgbot.Bot used to talk to chats.
type messageSender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// Notifier announces new articles on a Telegram chat and answers a few
// commands.
type Notifier struct {
	bot      *tgbot.Bot
	sender   messageSender
	chatID   int64
	articles ArticleSource
	log      logrus.FieldLogger
}

// NewNotifier creates the Telegram bot. New articles are announced on chatID;
// a zero chatID disables announcements but keeps the commands.
func NewNotifier(token string, chatID int64, articles ArticleSource, logger logrus.FieldLogger) (*Notifier, error) {
	log := logger.WithField("component", "bot")

	b, err := tgbot.New(token)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	n := newNotifier(b, chatID, articles, log)
	n.bot = b
	n.registerHandlers()

	log.Info("Telegram bot initialized")
	return n, nil
}

func newNotifier(sender messageSender, chatID int64, articles ArticleSource, log logrus.FieldLogger) *Notifier {
	return &Notifier{
		sender:   sender,
		chatID:   chatID,
		articles: articles,
		log:      log,
	}
}

func (n *Notifier) registerHandlers() {
	n.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, n.startHandler)
	n.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/latest", tgbot.MatchTypeExact, n.latestHandler)
}

// Start polls Telegram until ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	n.log.Info("Starting Telegram bot polling...")
	n.bot.Start(ctx)
	n.log.Info("Telegram bot polling stopped.")
}

// NotifyNewArticles posts the titles and links of freshly ingested articles.
func (n *Notifier) NotifyNewArticles(ctx context.Context, articles []domain.Article) error {
	if n.chatID == 0 || len(articles) == 0 {
		return nil
	}
	if err := n.send(ctx, n.chatID, formatNewArticles(articles)); err != nil {
		return fmt.Errorf("notify new articles: %w", err)
	}
	n.log.WithField("count", len(articles)).Info("Announced new articles")
	return nil
}

func (n *Notifier) send(ctx context.Context, chatID int64, text string) error {
	_, err := n.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}

func (n *Notifier) startHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	log := n.log.WithFields(logrus.Fields{"chat_id": update.Message.Chat.ID, "command": "/start"})
	log.Info("Received /start command")

	text := "Welcome! New TechCrunch AI and France Info Europe articles are posted here. Send /latest for the most recent ones."
	if err := n.send(ctx, update.Message.Chat.ID, text); err != nil {
		log.WithError(err).Error("Failed to send welcome message")
	}
}

func (n *Notifier) latestHandler(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	log := n.log.WithFields(logrus.Fields{"chat_id": update.Message.Chat.ID, "command": "/latest"})

	latest := latestArticles(n.articles.Articles(ctx, false), latestCount)
	text := "No articles stored yet."
	if len(latest) > 0 {
		text = formatList("Latest articles:", latest, len(latest))
	}
	if err := n.send(ctx, update.Message.Chat.ID, text); err != nil {
		log.WithError(err).Error("Failed to send latest articles")
	}
}

// latestArticles returns up to n articles, most recently stored first.
func latestArticles(all []domain.Article, n int) []domain.Article {
	sorted := append([]domain.Article(nil), all...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func formatNewArticles(articles []domain.Article) string {
	header := fmt.Sprintf("%d new article(s):", len(articles))
	return formatList(header, articles, maxNotifyListed)
}

func formatList(header string, articles []domain.Article, limit int) string {
	var sb strings.Builder
	sb.WriteString(header)
	for i, a := range articles {
		if i == limit {
			fmt.Fprintf(&sb, "\n... and %d more", len(articles)-limit)
			break
		}
		fmt.Fprintf(&sb, "\n\n[%s] %s\n%s", a.Source, a.Title, a.URL)
	}
	return sb.String()
}
