package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// =============================================================================
// AMQPNotifier
// =============================================================================

// Default routing for the lifecycle stream.
const (
	DefaultExchange     = "mphai.raina.exchange"
	DefaultExchangeType = "topic"
	DefaultStreamKey    = "iba.artifact.generated"
	DefaultReadyKey     = "iba.artifacts.ready"
)

// AMQPConfig configures the exchange events are published to.
type AMQPConfig struct {
	URL          string
	Exchange     string
	ExchangeType string
	// StreamKey routes every lifecycle event.
	StreamKey string
	// ReadyKey routes the final blueprint-ready event.
	ReadyKey string
}

func (c *AMQPConfig) applyDefaults() {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.ExchangeType == "" {
		c.ExchangeType = DefaultExchangeType
	}
	if c.StreamKey == "" {
		c.StreamKey = DefaultStreamKey
	}
	if c.ReadyKey == "" {
		c.ReadyKey = DefaultReadyKey
	}
}

// amqpChannel is the subset of *amqp.Channel the notifier uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes events as persistent JSON messages to a durable
// exchange.
type AMQPNotifier struct {
	cfg  AMQPConfig
	conn *amqp.Connection

	mu sync.Mutex
	ch amqpChannel
}

// DialAMQP connects to the broker, opens a channel and declares the exchange.
func DialAMQP(cfg AMQPConfig) (*AMQPNotifier, error) {
	cfg.applyDefaults()

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	n, err := newAMQPNotifier(cfg, ch)
	if err != nil {
		conn.Close()
		return nil, err
	}
	n.conn = conn
	return n, nil
}

func newAMQPNotifier(cfg AMQPConfig, ch amqpChannel) (*AMQPNotifier, error) {
	cfg.applyDefaults()
	if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return &AMQPNotifier{cfg: cfg, ch: ch}, nil
}

// RoutingKey returns the key an event is published under.
func (n *AMQPNotifier) RoutingKey(event Event) string {
	if event.Type == EventBlueprintReady {
		return n.cfg.ReadyKey
	}
	return n.cfg.StreamKey
}

// Notify implements Notifier.
func (n *AMQPNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
		Body:         body,
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.PublishWithContext(ctx, n.cfg.Exchange, n.RoutingKey(event), false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	err := n.ch.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
