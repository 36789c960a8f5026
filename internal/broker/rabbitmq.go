package broker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rabbitmq/rabbitmq-stream-go-client/pkg/stream"
)

// QueuePush holds push requests for receivers that were offline at send
// time. Durable: a restart must not lose queued notifications.
const QueuePush = "chat.push_requests"

// Client wraps one AMQP connection plus an optional stream environment for
// the event journal.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	// StreamEnv is nil when no stream URI was configured.
	StreamEnv *stream.Environment
}

// NewClient connects to RabbitMQ and declares the push queue. streamURI
// may be empty, in which case the journal stays disabled.
func NewClient(amqpURL, streamURI string) (*Client, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		QueuePush, // name
		true,      // durable
		false,     // auto-deleted
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare push queue: %w", err)
	}

	c := &Client{conn: conn, channel: ch}

	if streamURI != "" {
		env, err := stream.NewEnvironment(stream.NewEnvironmentOptions().SetUri(streamURI))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create stream environment: %w", err)
		}
		c.StreamEnv = env
	}

	return c, nil
}

// PublishPush enqueues a push request for the push worker.
func (c *Client) PublishPush(ctx context.Context, body any) error {
	bytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal push request: %w", err)
	}

	return c.channel.PublishWithContext(ctx,
		"",        // default exchange
		QueuePush, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         bytes,
		},
	)
}

// ConsumePush delivers queued push requests with manual acknowledgement.
func (c *Client) ConsumePush() (<-chan amqp.Delivery, error) {
	msgs, err := c.channel.Consume(
		QueuePush, // queue
		"",        // consumer tag
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register push consumer: %w", err)
	}
	return msgs, nil
}

func (c *Client) Close() {
	if c.StreamEnv != nil {
		c.StreamEnv.Close()
	}
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
