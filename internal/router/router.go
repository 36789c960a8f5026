// Package router is the delivery state machine: it persists outbound
// messages, decides reachability via the session registry, delivers live
// or defers to the notification fallback, and drives the delivered/read
// status transitions.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"chat_relay/internal/domain"
	"chat_relay/internal/journal"
	"chat_relay/internal/registry"
	"chat_relay/internal/store"

	"github.com/google/uuid"
)

// Notifier is the fallback invoked when the receiver is unreachable.
// Implementations are best-effort; the router logs and swallows their
// errors.
type Notifier interface {
	Notify(ctx context.Context, receiver, sender, body string) error
}

type Router struct {
	store    store.Gateway
	registry *registry.Registry
	notifier Notifier
	journal  *journal.Journal
	log      *slog.Logger
}

func New(gw store.Gateway, reg *registry.Registry, notifier Notifier, jrnl *journal.Journal, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		store:    gw,
		registry: reg,
		notifier: notifier,
		journal:  jrnl,
		log:      log,
	}
}

// Send persists the message, then delivers it live if the receiver is
// registered, or hands it to the fallback otherwise. The returned record
// carries the final delivered flag and is echoed to the sender by the
// caller. Only a persistence failure makes Send fail; a missing receiver
// or a failing fallback does not.
func (r *Router) Send(ctx context.Context, sender, receiver, body string) (*domain.Message, error) {
	msg, err := r.store.Append(ctx, sender, receiver, body)
	if err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}
	r.journal.Record(domain.EventTypeMessageCreated, msg)

	if sess, ok := r.registry.Lookup(receiver); ok {
		// Hand-off to the transport of an online recipient is what
		// "delivered" means; no client acknowledgement is involved.
		msg.Delivered = true
		if err := sess.Deliver(domain.EventNewMessage, msg); err == nil {
			if err := r.store.MarkDelivered(ctx, msg.ID); err != nil {
				// The receiver already has the message; keep the
				// in-memory flag and let the store lag behind.
				r.log.Warn("failed to persist delivered flag", "id", msg.ID, "error", err)
			}
			return msg, nil
		}
		msg.Delivered = false
		r.log.Warn("live hand-off failed, falling back", "receiver", receiver)
	}

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, receiver, sender, body); err != nil {
			r.log.Warn("notification fallback failed", "receiver", receiver, "error", err)
		}
	}
	return msg, nil
}

// MarkRead records the read receipts for messages addressed to reader and
// forwards the receipt to the original sender if still connected. A sender
// who is offline simply misses the live receipt; there is no queuing.
func (r *Router) MarkRead(ctx context.Context, reader string, ids []uuid.UUID, originalSender string) error {
	if err := r.store.MarkRead(ctx, ids, reader); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	receipt := domain.ReadReceipt{MessageIDs: ids, Reader: reader}
	r.journal.Record(domain.EventTypeMessageRead, receipt)

	if sess, ok := r.registry.Lookup(originalSender); ok {
		if err := sess.Deliver(domain.EventMessagesRead, receipt); err != nil {
			r.log.Warn("failed to deliver read receipt", "sender", originalSender, "error", err)
		}
	}
	return nil
}
