package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// BrokerPublisher sends raw payloads to a message broker.
type BrokerPublisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// AMQPPublisher publishes events to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zerolog.Logger
	mu       sync.Mutex
}

// NewAMQPPublisher connects and declares the exchange.
func NewAMQPPublisher(url, exchange string, logger *zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info().Str("exchange", exchange).Msg("RabbitMQ publisher connected")

	return &AMQPPublisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Publish sends a message to the exchange with the given routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.Debug().Str("routing_key", routingKey).Int("size", len(payload)).Msg("message published")
	return nil
}

// Close closes the publisher connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("error closing channel")
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// AMQPForwarder copies bus events to a broker so other services can react
// to schedule changes and regenerations.
type AMQPForwarder struct {
	publisher   BrokerPublisher
	logger      *zerolog.Logger
	unsubscribe []func()
}

// NewAMQPForwarder subscribes to every topic of the bus.
func NewAMQPForwarder(bus *Bus, publisher BrokerPublisher, logger *zerolog.Logger) *AMQPForwarder {
	f := &AMQPForwarder{publisher: publisher, logger: logger}
	for _, topic := range []string{TopicScheduleUpdated, TopicAvailabilityRegenerated} {
		f.unsubscribe = append(f.unsubscribe, bus.Subscribe(topic, f.forward))
	}
	return f
}

func (f *AMQPForwarder) forward(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return f.publisher.Publish(ctx, event.Topic, body)
}

// Close detaches from the bus and closes the broker connection.
func (f *AMQPForwarder) Close() error {
	for _, unsub := range f.unsubscribe {
		unsub()
	}
	return f.publisher.Close()
}
