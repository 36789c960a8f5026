// Package ws is the realtime transport: one websocket connection per
// client, a read pump that dispatches inbound events to the coordinator
// components, and a write pump that drains the per-connection send buffer.
package ws

import (
	"log/slog"
	"net/http"

	"chat_relay/internal/auth"
	"chat_relay/internal/journal"
	"chat_relay/internal/presence"
	"chat_relay/internal/registry"
	"chat_relay/internal/router"
	"chat_relay/internal/store"

	"github.com/gorilla/websocket"
)

type Server struct {
	upgrader websocket.Upgrader

	auth     auth.Validator
	registry *registry.Registry
	router   *router.Router
	presence *presence.Broadcaster
	users    store.Users
	journal  *journal.Journal
	log      *slog.Logger
}

func NewServer(v auth.Validator, reg *registry.Registry, rtr *router.Router, pres *presence.Broadcaster, users store.Users, jrnl *journal.Journal, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for demo
			},
		},
		auth:     v,
		registry: reg,
		router:   rtr,
		presence: pres,
		users:    users,
		journal:  jrnl,
		log:      log,
	}
}

// HandleWS upgrades the request and runs the connection until it closes.
// Connections start unauthenticated; routing only begins after a valid
// authenticate event.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket", "error", err)
		return
	}

	client := newClient(s, conn)
	go client.writePump()
	client.readPump()
}
