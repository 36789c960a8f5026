// Package presence announces connect/disconnect transitions to the other
// connected users and relays ephemeral typing state. Everything here is
// best-effort: no acknowledgement, no retry, no persistence.
package presence

import (
	"log/slog"

	"chat_relay/internal/domain"
	"chat_relay/internal/registry"
)

type Broadcaster struct {
	registry *registry.Registry
	log      *slog.Logger
}

func NewBroadcaster(reg *registry.Registry, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &Broadcaster{registry: reg, log: log}
}

// Announce broadcasts a userOnline or userOffline event to every session
// except the originator's. Callers guard against duplicate announcements
// for the same transition by consulting the registry outcome first.
func (b *Broadcaster) Announce(username string, online bool) {
	eventType := domain.EventUserOffline
	if online {
		eventType = domain.EventUserOnline
	}
	for name, sess := range b.registry.Snapshot() {
		if name == username {
			continue
		}
		if err := sess.Deliver(eventType, username); err != nil {
			b.log.Debug("presence broadcast dropped", "to", name, "error", err)
		}
	}
}

// RelayTyping forwards a typing indicator to the addressed receiver.
// Typing state is inherently lossy: if the receiver is not registered the
// indicator is silently dropped.
func (b *Broadcaster) RelayTyping(sender, receiver string, isTyping bool) {
	sess, ok := b.registry.Lookup(receiver)
	if !ok {
		return
	}
	notice := domain.TypingNotice{User: sender, IsTyping: isTyping}
	if err := sess.Deliver(domain.EventUserTyping, notice); err != nil {
		b.log.Debug("typing relay dropped", "to", receiver, "error", err)
	}
}
