package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker(time.Minute)
	unlock, err := l.Lock(context.Background(), "produtos.json")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "produtos.json")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// other keys are independent
	other, err := l.Lock(context.Background(), "outro.json")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "produtos.json")
	require.NoError(t, err)
	again()
}

func TestLocalLocker_WaitIsBoundedWithoutDeadline(t *testing.T) {
	l := NewLocalLocker(30 * time.Millisecond)
	unlock, err := l.Lock(context.Background(), "produtos.json")
	require.NoError(t, err)
	defer unlock()

	// a context that never ends must not queue forever
	start := time.Now()
	_, err = l.Lock(context.WithoutCancel(context.Background()), "produtos.json")
	require.ErrorIs(t, err, ErrLockTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRedisLocker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLocker(client, time.Second, 30*time.Millisecond)
	l.poll = 5 * time.Millisecond

	unlock, err := l.Lock(context.Background(), "produtos.json")
	require.NoError(t, err)
	assert.True(t, mr.Exists("catalog:lock:produtos.json"))

	_, err = l.Lock(context.Background(), "produtos.json")
	require.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	assert.False(t, mr.Exists("catalog:lock:produtos.json"))

	unlock2, err := l.Lock(context.Background(), "produtos.json")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ReleaseKeepsForeignLease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLocker(client, time.Second, 0)
	unlock, err := l.Lock(context.Background(), "produtos.json")
	require.NoError(t, err)

	// lease expired and another holder took it
	require.NoError(t, mr.Set("catalog:lock:produtos.json", "someone-else"))
	unlock()
	got, err := mr.Get("catalog:lock:produtos.json")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
