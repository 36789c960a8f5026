package push

import (
	"context"
	"errors"
	"testing"

	"chat_relay/internal/store"

	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	published []any
	err       error
}

func (p *fakePublisher) PublishPush(_ context.Context, body any) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, body)
	return nil
}

func TestNotify_NoEndpointIsANoOp(t *testing.T) {
	req := require.New(t)
	mem := store.NewMemory()
	ctx := context.Background()
	mem.EnsureUser(ctx, "bob", "hash")

	queue := &fakePublisher{}
	svc := NewService(mem, queue, nil)

	req.NoError(svc.Notify(ctx, "bob", "alice", "hi"))
	req.Empty(queue.published)
}

func TestNotify_QueuesRequestWhenEndpointRegistered(t *testing.T) {
	req := require.New(t)
	mem := store.NewMemory()
	ctx := context.Background()
	mem.EnsureUser(ctx, "bob", "hash")
	sub := []byte(`{"endpoint":"https://push.example/abc"}`)
	req.NoError(mem.SaveSubscription(ctx, "bob", sub))

	queue := &fakePublisher{}
	svc := NewService(mem, queue, nil)

	req.NoError(svc.Notify(ctx, "bob", "alice", "hi"))
	req.Len(queue.published, 1)

	got := queue.published[0].(Request)
	req.Equal("bob", got.Receiver)
	req.Equal("alice", got.Sender)
	req.Equal("hi", got.Body)
	req.JSONEq(string(sub), string(got.Subscription))
}

func TestNotify_PublishFailurePropagates(t *testing.T) {
	req := require.New(t)
	mem := store.NewMemory()
	ctx := context.Background()
	mem.EnsureUser(ctx, "bob", "hash")
	req.NoError(mem.SaveSubscription(ctx, "bob", []byte(`{"endpoint":"x"}`)))

	svc := NewService(mem, &fakePublisher{err: errors.New("broker down")}, nil)

	// The router logs and swallows this; the notifier itself reports it.
	req.Error(svc.Notify(ctx, "bob", "alice", "hi"))
}
