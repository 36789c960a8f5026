package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat_relay/internal/domain"

	"github.com/google/uuid"
)

// Memory is an in-process Gateway and Users implementation used by tests
// and local development. Timestamps are taken from a monotonic counter so
// append order and timestamp order always agree, as the Postgres gateway
// guarantees.
type Memory struct {
	mu       sync.Mutex
	messages []domain.Message
	users    map[string]*memoryUser
	clock    time.Time
}

type memoryUser struct {
	user         domain.User
	passwordHash string
	subscription []byte
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]*memoryUser),
		clock: time.Now().UTC(),
	}
}

func (s *Memory) Append(_ context.Context, sender, receiver, body string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock = s.clock.Add(time.Microsecond)
	msg := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Receiver:  receiver,
		Body:      body,
		Timestamp: s.clock,
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *Memory) MarkDelivered(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Delivered = true
		}
	}
	return nil
}

func (s *Memory) MarkRead(_ context.Context, ids []uuid.UUID, receiver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	for i := range s.messages {
		if wanted[s.messages[i].ID] && s.messages[i].Receiver == receiver {
			s.messages[i].Read = true
			s.messages[i].Delivered = true
		}
	}
	return nil
}

func (s *Memory) Conversation(_ context.Context, userA, userB string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, msg := range s.messages {
		if (msg.Sender == userA && msg.Receiver == userB) || (msg.Sender == userB && msg.Receiver == userA) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Message returns a copy of the stored record, for assertions in tests.
func (s *Memory) Message(id uuid.UUID) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return domain.Message{}, false
}

func (s *Memory) EnsureUser(_ context.Context, username, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		u = &memoryUser{
			user:         domain.User{Username: username, LastSeen: time.Now().UTC()},
			passwordHash: passwordHash,
		}
		s.users[username] = u
	}
	out := u.user
	return &out, nil
}

func (s *Memory) SetOnline(_ context.Context, username string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		u.user.IsOnline = online
		u.user.LastSeen = time.Now().UTC()
	}
	return nil
}

func (s *Memory) List(_ context.Context, exclude string) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for name, u := range s.users {
		if name != exclude {
			out = append(out, u.user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Memory) SaveSubscription(_ context.Context, username string, subscription []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		u.subscription = subscription
	}
	return nil
}

func (s *Memory) Subscription(_ context.Context, username string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		return u.subscription, nil
	}
	return nil, nil
}
