package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	mgr := NewManager("test-secret", time.Hour)

	token, err := mgr.Issue("alice", "alice")
	req.NoError(err)

	claims, err := mgr.Validate(token)
	req.NoError(err)
	req.Equal("alice", claims.Username)
	req.Equal("alice", claims.UserID)
}

func TestValidate_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	mgr := NewManager("test-secret", -time.Minute)

	token, err := mgr.Issue("alice", "alice")
	req.NoError(err)

	_, err = mgr.Validate(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestValidate_RejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	token, err := NewManager("secret-one", time.Hour).Issue("alice", "alice")
	req.NoError(err)

	_, err = NewManager("secret-two", time.Hour).Validate(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestValidate_RejectsGarbage(t *testing.T) {
	_, err := NewManager("test-secret", time.Hour).Validate("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	req := require.New(t)
	hash, err := HashPassword("hunter2")
	req.NoError(err)
	req.NotEqual("hunter2", hash)

	req.True(ComparePassword("hunter2", hash))
	req.False(ComparePassword("wrong", hash))
}
