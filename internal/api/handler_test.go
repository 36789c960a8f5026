package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat_relay/internal/auth"
	"chat_relay/internal/domain"
	"chat_relay/internal/store"

	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) (*httptest.Server, *store.Memory, *auth.Manager) {
	t.Helper()
	mem := store.NewMemory()
	mgr := auth.NewManager("test-secret", time.Hour)
	accounts := map[string]string{"alice": "pass-a", "bob": "pass-b"}

	mux := http.NewServeMux()
	New(mgr, mem, mem, accounts, nil).Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, mem, mgr
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func login(t *testing.T, ts *httptest.Server, username, password string) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, username, out.User.Username)
	require.True(t, out.User.IsOnline)
	return out.Token
}

func TestLogin_RejectsUnknownCredentials(t *testing.T) {
	req := require.New(t)
	ts, _, _ := newTestAPI(t)

	for _, body := range []map[string]string{
		{"username": "alice", "password": "wrong"},
		{"username": "mallory", "password": "pass-a"},
	} {
		resp := postJSON(t, ts.URL+"/api/auth/login", "", body)
		resp.Body.Close()
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestLogin_IssuesUsableToken(t *testing.T) {
	req := require.New(t)
	ts, _, mgr := newTestAPI(t)

	token := login(t, ts, "alice", "pass-a")
	claims, err := mgr.Validate(token)
	req.NoError(err)
	req.Equal("alice", claims.Username)
}

func TestHistoryAndUsers(t *testing.T) {
	req := require.New(t)
	ts, mem, _ := newTestAPI(t)

	tokenA := login(t, ts, "alice", "pass-a")
	login(t, ts, "bob", "pass-b")

	mem.Append(context.Background(), "alice", "bob", "hi")
	mem.Append(context.Background(), "bob", "alice", "hello")

	resp, err := http.DefaultClient.Do(authedGet(t, ts.URL+"/api/messages/bob", tokenA))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var history []domain.Message
	req.NoError(json.NewDecoder(resp.Body).Decode(&history))
	req.Len(history, 2)
	req.Equal("hi", history[0].Body)
	req.Equal("hello", history[1].Body)

	resp, err = http.DefaultClient.Do(authedGet(t, ts.URL+"/api/messages/users", tokenA))
	req.NoError(err)
	defer resp.Body.Close()

	var users []domain.User
	req.NoError(json.NewDecoder(resp.Body).Decode(&users))
	req.Len(users, 1)
	req.Equal("bob", users[0].Username)
}

func TestMarkRead_ScopedToRequester(t *testing.T) {
	req := require.New(t)
	ts, mem, _ := newTestAPI(t)

	tokenB := login(t, ts, "bob", "pass-b")
	msg, _ := mem.Append(context.Background(), "alice", "bob", "hi")
	foreign, _ := mem.Append(context.Background(), "alice", "carol", "psst")

	resp := postJSON(t, ts.URL+"/api/messages/mark-read", tokenB, map[string]any{
		"messageIds": []string{msg.ID.String(), foreign.ID.String()},
	})
	resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	stored, _ := mem.Message(msg.ID)
	req.True(stored.Read)
	other, _ := mem.Message(foreign.ID)
	req.False(other.Read)
}

func TestSubscribe_StoresFallbackEndpoint(t *testing.T) {
	req := require.New(t)
	ts, mem, _ := newTestAPI(t)

	token := login(t, ts, "alice", "pass-a")
	resp := postJSON(t, ts.URL+"/api/subscribe", token, map[string]any{
		"subscription": map[string]string{"endpoint": "https://push.example/abc"},
	})
	resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	sub, err := mem.Subscription(context.Background(), "alice")
	req.NoError(err)
	req.JSONEq(`{"endpoint":"https://push.example/abc"}`, string(sub))
}

func TestEndpointsRequireAuth(t *testing.T) {
	req := require.New(t)
	ts, _, _ := newTestAPI(t)

	resp, err := http.Get(ts.URL + "/api/messages/users")
	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/subscribe", "", map[string]any{"subscription": map[string]string{}})
	resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func authedGet(t *testing.T, url, token string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
