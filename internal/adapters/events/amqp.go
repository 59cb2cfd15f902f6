package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "storefinder.events"

// AMQPBroker publishes to a durable RabbitMQ topic exchange with the
// message topic as routing key.
type AMQPBroker struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	timeout  time.Duration
}

// NewAMQPBroker dials url and declares the exchange.
// PRE: url is an amqp:// URL
// POST: Returns a broker holding an open channel; caller must Close it
func NewAMQPBroker(url, exchange string) (*AMQPBroker, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
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
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}
	return &AMQPBroker{conn: conn, ch: ch, exchange: exchange, timeout: 5 * time.Second}, nil
}

// Send publishes msg as a persistent JSON message.
// Channels are not safe for concurrent publishing, so sends are serialised.
func (b *AMQPBroker) Send(ctx context.Context, msg Message) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn.IsClosed() {
		return "", fmt.Errorf("amqp publish %s: connection closed", msg.Topic)
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	err := b.ch.PublishWithContext(ctx,
		b.exchange, // exchange
		msg.Topic,  // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         msg.Topic,
			Headers:      amqp.Table{"key": msg.Key},
			Timestamp:    time.Now().UTC(),
			Body:         msg.Body,
		})
	if err != nil {
		return "", fmt.Errorf("amqp publish %s: %w", msg.Topic, err)
	}
	return msg.ID, nil
}

// Close closes the channel and connection.
func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ch.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}
