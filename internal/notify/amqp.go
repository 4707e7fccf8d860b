package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AllNotifications binds a queue to every notification routing key.
const AllNotifications = "notify.#"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends notifications to a topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, n.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if c, ok := p.ch.(*amqp.Channel); ok && c != nil {
		_ = c.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	Bindings []string
	Prefetch int
}

// Consumer reads notifications from a durable queue and hands them to a
// Notifier. Messages that cannot be decoded are dropped; delivery failures
// are requeued.
type Consumer struct {
	cfg  ConsumerConfig
	next Notifier
	log  *zap.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(cfg ConsumerConfig, next Notifier, log *zap.Logger) *Consumer {
	if len(cfg.Bindings) == 0 {
		cfg.Bindings = []string{AllNotifications}
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}
	return &Consumer{cfg: cfg, next: next, log: log}
}

func (c *Consumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	fail := func(format string, err error) error {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf(format, err)
	}

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue: %w", err)
	}
	for _, key := range c.cfg.Bindings {
		if err := ch.QueueBind(q.Name, key, c.cfg.Exchange, false, nil); err != nil {
			return fail("bind queue: %w", err)
		}
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fail("set qos: %w", err)
	}

	c.conn = conn
	c.ch = ch
	return nil
}

func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var n Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		c.log.Warn("dropping undecodable notification",
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
		return
	}

	if err := c.next.Notify(ctx, n); err != nil {
		c.log.Error("notification delivery failed, requeueing",
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
