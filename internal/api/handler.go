// Package api exposes the HTTP surface around the coordinator: login and
// logout, conversation history, the REST mark-read twin, and push
// subscription registration.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"chat_relay/internal/auth"
	"chat_relay/internal/domain"
	"chat_relay/internal/store"

	"github.com/google/uuid"
)

type Handler struct {
	auth     *auth.Manager
	gateway  store.Gateway
	users    store.Users
	accounts map[string]string
	log      *slog.Logger
}

func New(mgr *auth.Manager, gw store.Gateway, users store.Users, accounts map[string]string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		auth:     mgr,
		gateway:  gw,
		users:    users,
		accounts: accounts,
		log:      log,
	}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", enableCORS(h.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", enableCORS(h.withAuth(h.handleLogout)))
	mux.HandleFunc("GET /api/messages/users", enableCORS(h.withAuth(h.handleUsers)))
	mux.HandleFunc("GET /api/messages/{otherUser}", enableCORS(h.withAuth(h.handleHistory)))
	mux.HandleFunc("POST /api/messages/mark-read", enableCORS(h.withAuth(h.handleMarkRead)))
	mux.HandleFunc("POST /api/subscribe", enableCORS(h.withAuth(h.handleSubscribe)))
	mux.HandleFunc("OPTIONS /api/", enableCORS(func(w http.ResponseWriter, r *http.Request) {}))
}

type ctxKey int

const claimsKey ctxKey = 0

func claimsFrom(r *http.Request) *auth.Claims {
	return r.Context().Value(claimsKey).(*auth.Claims)
}

func (h *Handler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{"missing token"})
			return
		}
		claims, err := h.auth.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{"invalid token"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

type errorBody struct {
	Message string `json:"message"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid body"})
		return
	}

	// Only the two predefined accounts may log in.
	pass, ok := h.accounts[req.Username]
	if !ok || pass != req.Password {
		writeJSON(w, http.StatusUnauthorized, errorBody{"Invalid credentials"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error("failed to hash password", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"Server error"})
		return
	}
	user, err := h.users.EnsureUser(r.Context(), req.Username, hash)
	if err != nil {
		h.log.Error("failed to ensure user", "user", req.Username, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"Server error"})
		return
	}
	if err := h.users.SetOnline(r.Context(), req.Username, true); err != nil {
		h.log.Warn("failed to set online status", "user", req.Username, "error", err)
	}

	token, err := h.auth.Issue(user.Username, user.Username)
	if err != nil {
		h.log.Error("failed to issue token", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"Server error"})
		return
	}

	user.IsOnline = true
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if err := h.users.SetOnline(r.Context(), claims.Username, false); err != nil {
		h.log.Warn("failed to set offline status", "user", claims.Username, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	users, err := h.users.List(r.Context(), claims.Username)
	if err != nil {
		h.log.Error("failed to list users", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"Server error"})
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	other := r.PathValue("otherUser")

	messages, err := h.gateway.Conversation(r.Context(), claims.Username, other)
	if err != nil {
		h.log.Error("failed to fetch conversation", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"Server error"})
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var req struct {
		MessageIDs []uuid.UUID `json:"messageIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid body"})
		return
	}

	if err := h.gateway.MarkRead(r.Context(), req.MessageIDs, claims.Username); err != nil {
		h.log.Error("failed to mark messages read", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"Server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Messages marked as read"})
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var req struct {
		Subscription json.RawMessage `json:"subscription"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Subscription) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid body"})
		return
	}

	if err := h.users.SaveSubscription(r.Context(), claims.Username, req.Subscription); err != nil {
		h.log.Error("failed to save subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"Server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Subscription saved"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}
