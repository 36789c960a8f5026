package presence

import (
	"sync"
	"testing"

	"chat_relay/internal/domain"
	"chat_relay/internal/registry"

	"github.com/stretchr/testify/require"
)

type delivered struct {
	eventType string
	payload   any
}

type fakeSession struct {
	mu     sync.Mutex
	events []delivered
}

func (s *fakeSession) Deliver(eventType string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, delivered{eventType, payload})
	return nil
}

func (s *fakeSession) Close() {}

func (s *fakeSession) received() []delivered {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivered(nil), s.events...)
}

func TestAnnounce_SkipsOriginator(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	alice := &fakeSession{}
	bob := &fakeSession{}
	carol := &fakeSession{}
	reg.Register("alice", alice)
	reg.Register("bob", bob)
	reg.Register("carol", carol)

	b := NewBroadcaster(reg, nil)
	b.Announce("alice", true)

	req.Empty(alice.received())
	for _, other := range []*fakeSession{bob, carol} {
		events := other.received()
		req.Len(events, 1)
		req.Equal(domain.EventUserOnline, events[0].eventType)
		req.Equal("alice", events[0].payload)
	}
}

func TestAnnounce_Offline(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	bob := &fakeSession{}
	reg.Register("bob", bob)

	NewBroadcaster(reg, nil).Announce("alice", false)

	events := bob.received()
	req.Len(events, 1)
	req.Equal(domain.EventUserOffline, events[0].eventType)
}

func TestRelayTyping_DeliversToReceiverOnly(t *testing.T) {
	req := require.New(t)
	reg := registry.New()
	bob := &fakeSession{}
	carol := &fakeSession{}
	reg.Register("bob", bob)
	reg.Register("carol", carol)

	NewBroadcaster(reg, nil).RelayTyping("alice", "bob", true)

	events := bob.received()
	req.Len(events, 1)
	req.Equal(domain.EventUserTyping, events[0].eventType)
	req.Equal(domain.TypingNotice{User: "alice", IsTyping: true}, events[0].payload)
	req.Empty(carol.received())
}

func TestRelayTyping_AbsentReceiverIsSilentlyDropped(t *testing.T) {
	// No receiver registered: nothing to assert beyond not panicking and
	// not delivering anywhere.
	reg := registry.New()
	alice := &fakeSession{}
	reg.Register("alice", alice)

	NewBroadcaster(reg, nil).RelayTyping("alice", "bob", true)

	require.Empty(t, alice.received())
}
