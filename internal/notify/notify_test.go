package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocal_DeliversToSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewLocal(4, discardLogger())
	ch, err := n.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, n.Notify(ctx, "A1"))

	select {
	case id := <-ch:
		assert.Equal(t, "A1", id)
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestLocal_DropsWhenFull(t *testing.T) {
	n := NewLocal(1, discardLogger())
	require.NoError(t, n.Notify(context.Background(), "A1"))
	require.NoError(t, n.Notify(context.Background(), "A2"))
	assert.Len(t, n.ch, 1)
}

func TestNop_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Nop{}.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, Nop{}.Notify(ctx, "A1"))
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestRedis_DegradesWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	r := NewRedisWithClient(context.Background(), client, "", 200*time.Millisecond, discardLogger())
	defer func() { _ = r.Close() }()

	assert.True(t, r.Degraded())
	assert.NoError(t, r.Notify(context.Background(), "A1"))
}

func TestRedis_PublishSubscribe(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available")
	}

	r := NewRedisWithClient(ctx, client, "writing-eval:test", time.Second, discardLogger())
	defer func() { _ = r.Close() }()

	ch, err := r.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Notify(ctx, "A1"))

	select {
	case id := <-ch:
		assert.Equal(t, "A1", id)
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}
