// Package events publishes order events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"worldtrip/internal/core"
)

// DefaultExchange receives every order event.
const DefaultExchange = "order_events"

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements core.EventPublisher on a fanout exchange.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	conn     io.Closer
	exchange string
	now      func() time.Time
}

var _ core.EventPublisher = (*Publisher)(nil)

// NewPublisher declares exchange as a durable fanout and returns a publisher bound to ch.
func NewPublisher(ch Channel, exchange string) (*Publisher, error) {
	if ch == nil {
		return nil, errors.New("amqp channel required")
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}, nil
}

// Publish sends event as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, event core.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Type, err)
	}
	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Type:         event.Type,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Publish(p.exchange, "", false, false, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.exchange, err)
	}
	return nil
}

// Exchange returns the exchange name.
func (p *Publisher) Exchange() string { return p.exchange }

// Close closes the channel and, when the publisher dialed it, the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

// DialConfig controls how Dial connects to the broker.
type DialConfig struct {
	URL        string
	Exchange   string
	MaxRetries int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

var dialAMQP = func(url string) (*amqp.Connection, error) { return amqp.Dial(url) }

// Dial connects to the broker, retrying until MaxRetries attempts have failed
// or ctx is done, and returns a publisher owning the connection.
func Dial(ctx context.Context, cfg DialConfig) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp url required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		conn, err := dialAMQP(cfg.URL)
		if err == nil {
			ch, err := conn.Channel()
			if err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("open amqp channel: %w", err)
			}
			pub, err := NewPublisher(ch, cfg.Exchange)
			if err != nil {
				_ = conn.Close()
				return nil, err
			}
			pub.conn = conn
			logger.Info("connected to amqp broker", "exchange", pub.exchange)
			return pub, nil
		}
		lastErr = err
		logger.Warn("amqp dial failed", "attempt", attempt, "max_attempts", cfg.MaxRetries, "error", err)
		if attempt == cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}
	return nil, fmt.Errorf("amqp dial after %d attempts: %w", cfg.MaxRetries, lastErr)
}
