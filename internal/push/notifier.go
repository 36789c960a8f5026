// Package push is the notification fallback: when a message cannot be
// delivered live, a push request is queued and a worker submits it to the
// receiver's registered Web Push endpoint. The whole path is best-effort
// and asynchronous relative to the send that triggered it.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"chat_relay/internal/store"
)

// Request is the unit of work handed to the push worker.
type Request struct {
	Receiver     string          `json:"receiver"`
	Sender       string          `json:"sender"`
	Body         string          `json:"body"`
	Subscription json.RawMessage `json:"subscription"`
}

// Publisher enqueues push requests. Implemented by broker.Client.
type Publisher interface {
	PublishPush(ctx context.Context, body any) error
}

// Service looks up the receiver's fallback endpoint and queues a push
// request when one is registered. No endpoint means no-op: the message is
// already durably persisted and will surface on the next history fetch.
type Service struct {
	users store.Users
	queue Publisher
	log   *slog.Logger
}

func NewService(users store.Users, queue Publisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, queue: queue, log: log}
}

func (s *Service) Notify(ctx context.Context, receiver, sender, body string) error {
	sub, err := s.users.Subscription(ctx, receiver)
	if err != nil {
		return fmt.Errorf("failed to look up push subscription: %w", err)
	}
	if len(sub) == 0 {
		return nil
	}

	req := Request{
		Receiver:     receiver,
		Sender:       sender,
		Body:         body,
		Subscription: sub,
	}
	if err := s.queue.PublishPush(ctx, req); err != nil {
		return fmt.Errorf("failed to queue push request: %w", err)
	}
	s.log.Debug("push request queued", "receiver", receiver)
	return nil
}
