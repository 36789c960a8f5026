// Package journal publishes coordinator events to a RabbitMQ stream as a
// replayable audit trail for ops tooling. It is strictly best-effort: a nil
// journal and a failing publish are both silent no-ops from the caller's
// point of view.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat_relay/internal/broker"
	"chat_relay/internal/domain"

	"github.com/google/uuid"
	"github.com/rabbitmq/rabbitmq-stream-go-client/pkg/amqp"
	"github.com/rabbitmq/rabbitmq-stream-go-client/pkg/stream"
)

type Journal struct {
	producer *stream.Producer
	log      *slog.Logger
}

// New declares the stream and attaches a producer. The client must have a
// stream environment configured.
func New(client *broker.Client, streamName string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	if client.StreamEnv == nil {
		return nil, fmt.Errorf("no stream environment configured")
	}

	err := client.StreamEnv.DeclareStream(streamName, &stream.StreamOptions{
		MaxLengthBytes: stream.ByteCapacity{}.GB(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare stream: %w", err)
	}

	producer, err := client.StreamEnv.NewProducer(streamName, stream.NewProducerOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create stream producer: %w", err)
	}
	return &Journal{producer: producer, log: log}, nil
}

// Record publishes one event. Safe to call on a nil Journal; errors are
// logged and swallowed.
func (j *Journal) Record(eventType string, payload any) {
	if j == nil {
		return
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		j.log.Warn("failed to marshal journal payload", "type", eventType, "error", err)
		return
	}
	event := domain.JournalEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}
	bytes, err := json.Marshal(event)
	if err != nil {
		j.log.Warn("failed to marshal journal event", "type", eventType, "error", err)
		return
	}

	if err := j.producer.Send(amqp.NewMessage(bytes)); err != nil {
		j.log.Warn("failed to publish journal event", "type", eventType, "error", err)
	}
}

func (j *Journal) Close() {
	if j == nil {
		return
	}
	if err := j.producer.Close(); err != nil {
		j.log.Warn("failed to close journal producer", "error", err)
	}
}
