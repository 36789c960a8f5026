// Package store is the gateway to the durable message and user records.
// The coordinator treats it as an external append/query collaborator; the
// contract it relies on is atomic appends, store-assigned ids and
// timestamps, and receiver-constrained read updates.
package store

import (
	"context"

	"chat_relay/internal/domain"

	"github.com/google/uuid"
)

// Gateway persists and queries message records.
type Gateway interface {
	// Append assigns an id and timestamp, persists the record atomically
	// and returns it with delivered=false, read=false.
	Append(ctx context.Context, sender, receiver, body string) (*domain.Message, error)

	// MarkDelivered flips delivered on the matching record. Records
	// already delivered are left untouched.
	MarkDelivered(ctx context.Context, id uuid.UUID) error

	// MarkRead flips read (and delivered, preserving the read-implies-
	// delivered invariant) on matching records addressed to receiver.
	// Records addressed to anyone else are never touched, whatever ids
	// are passed in.
	MarkRead(ctx context.Context, ids []uuid.UUID, receiver string) error

	// Conversation returns all records between the two users, both
	// directions, ordered by timestamp ascending.
	Conversation(ctx context.Context, userA, userB string) ([]domain.Message, error)
}

// Users persists user rows: credentials hash, presence bookkeeping and the
// out-of-band push subscription used as the notification fallback endpoint.
type Users interface {
	EnsureUser(ctx context.Context, username, passwordHash string) (*domain.User, error)
	SetOnline(ctx context.Context, username string, online bool) error
	List(ctx context.Context, exclude string) ([]domain.User, error)
	SaveSubscription(ctx context.Context, username string, subscription []byte) error

	// Subscription returns the stored push subscription, or nil if the
	// user never registered one.
	Subscription(ctx context.Context, username string) ([]byte, error)
}
