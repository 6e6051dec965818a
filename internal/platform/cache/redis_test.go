package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	_, client := setupTestRedis(t)
	s := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "chart:1", []byte(`{"id":"1"}`), time.Minute))

	got, err := s.Get(ctx, "chart:1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(got))

	require.NoError(t, s.Delete(ctx, "chart:1", "chart:missing"))
	_, err = s.Get(ctx, "chart:1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_Miss(t *testing.T) {
	_, client := setupTestRedis(t)
	_, err := NewRedisStore(client).Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "catalog", []byte("[]"), 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL("catalog"))

	mr.FastForward(31 * time.Second)
	_, err := s.Get(ctx, "catalog")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_DeleteNoKeys(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.NoError(t, NewRedisStore(client).Delete(context.Background()))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
	return nil
}

func (r *recordingInvalidator) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func TestRedisPublisher_SubscribeRelay(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := &recordingInvalidator{}
	done := make(chan error, 1)
	go func() {
		done <- Subscribe(ctx, client, "", target, zerolog.Nop())
	}()

	pub := NewRedisPublisher(client, "")
	require.Eventually(t, func() bool {
		if err := pub.Invalidate(ctx, "chart:7", "patient:3"); err != nil {
			return false
		}
		return len(target.seen()) >= 2
	}, 2*time.Second, 20*time.Millisecond)

	seen := target.seen()
	assert.Equal(t, "chart:7", seen[0])
	assert.Equal(t, "patient:3", seen[1])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
}
