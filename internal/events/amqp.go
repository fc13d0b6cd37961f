package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const dialTimeout = 5 * time.Second

// AMQP publishes messages to a durable topic exchange.
type AMQP struct {
	conn     *amqp.Connection
	exchange string
	log      *zap.Logger

	mu sync.Mutex // guards ch
	ch *amqp.Channel
}

var _ Publisher = (*AMQP)(nil)

// NewAMQP dials url and declares exchange as a durable topic exchange.
func NewAMQP(url, exchange string, log *zap.Logger) (*AMQP, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // args
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	log.Info("amqp publisher ready", zap.String("exchange", exchange))
	return &AMQP{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

// Publish sends msg as a persistent JSON message.
func (a *AMQP) Publish(ctx context.Context, routingKey string, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", routingKey, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.ch.PublishWithContext(
		ctx,
		a.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    msg.OccurredAt,
			Type:         routingKey,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Close closes the channel and the connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ch != nil {
		_ = a.ch.Close()
	}
	return a.conn.Close()
}

// New returns an AMQP publisher when url is set and Nop otherwise.
func New(url, exchange string, log *zap.Logger) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}
	return NewAMQP(url, exchange, log)
}
