package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
)

// ActionCreate is the only action emitted: articles are announced once, when
// they are first stored.
const ActionCreate = "create"

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    channel
	exchange   string
	routingKey string
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewRabbitMQ(cfg Config, logger logrus.FieldLogger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	fail := func(step string, err error) (*RabbitMQ, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fail("bind queue", err)
	}

	r := newRabbitMQ(ch, cfg, logger)
	r.conn = conn
	r.log.WithFields(logrus.Fields{
		"exchange":    cfg.Exchange,
		"queue":       cfg.QueueName,
		"routing_key": cfg.RoutingKey,
	}).Info("Connected to RabbitMQ")
	return r, nil
}

func newRabbitMQ(ch channel, cfg Config, logger logrus.FieldLogger) *RabbitMQ {
	return &RabbitMQ{
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		log:        logger.WithField("component", "publisher"),
		now:        time.Now,
	}
}

// ArticleMessage is the JSON body of every event.
type ArticleMessage struct {
	Action    string         `json:"action"`
	Article   domain.Article `json:"article"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publish sends a persistent "create" event for article.
func (r *RabbitMQ) Publish(ctx context.Context, article *domain.Article) error {
	now := r.now()
	body, err := json.Marshal(ArticleMessage{
		Action:    ActionCreate,
		Article:   *article,
		Timestamp: now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    article.UID,
		Body:         body,
		Timestamp:    now,
	})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.log.WithFields(logrus.Fields{"article_id": article.ID, "url": article.URL}).Debug("Published article")
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
