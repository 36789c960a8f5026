package store

import (
	"context"
	"database/sql"
	"fmt"

	"chat_relay/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Postgres implements Gateway and Users on top of database/sql.
// See schema.sql for the expected tables.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, sender, receiver, body string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:       uuid.New(),
		Sender:   sender,
		Receiver: receiver,
		Body:     body,
	}

	// Single INSERT so the append is atomic; the timestamp comes from the
	// store's clock to keep ordering consistent across connections.
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, sender, receiver, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, msg.ID, msg.Sender, msg.Receiver, msg.Body).Scan(&msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

func (s *Postgres) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET delivered = TRUE
		WHERE id = $1 AND delivered = FALSE
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}
	return nil
}

func (s *Postgres) MarkRead(ctx context.Context, ids []uuid.UUID, receiver string) error {
	// Constrained to the requesting receiver so nobody can mark another
	// user's inbound messages as read. Delivered is set alongside read.
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET read = TRUE, delivered = TRUE
		WHERE id = ANY($1) AND receiver = $2 AND read = FALSE
	`, pq.Array(ids), receiver)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

func (s *Postgres) Conversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, receiver, body, created_at, delivered, read
		FROM messages
		WHERE (sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1)
		ORDER BY created_at ASC
	`, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Receiver, &msg.Body, &msg.Timestamp, &msg.Delivered, &msg.Read); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *Postgres) EnsureUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING username, is_online, last_seen
	`, username, passwordHash).Scan(&u.Username, &u.IsOnline, &u.LastSeen)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return &u, nil
}

func (s *Postgres) SetOnline(ctx context.Context, username string, online bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_online = $2, last_seen = NOW()
		WHERE username = $1
	`, username, online)
	if err != nil {
		return fmt.Errorf("failed to set online status: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, exclude string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, is_online, last_seen FROM users
		WHERE username != $1
		ORDER BY username
	`, exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Username, &u.IsOnline, &u.LastSeen); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Postgres) SaveSubscription(ctx context.Context, username string, subscription []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET push_subscription = $2 WHERE username = $1
	`, username, subscription)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *Postgres) Subscription(ctx context.Context, username string) ([]byte, error) {
	var sub []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT push_subscription FROM users WHERE username = $1
	`, username).Scan(&sub)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return sub, nil
}
