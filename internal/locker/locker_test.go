package locker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[keys[0]] == args[0] {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLocker(t *testing.T) {
	fake := newFakeRedis()
	l := newRedisLocker(fake)
	l.wait = 30 * time.Millisecond
	l.poll = 5 * time.Millisecond

	unlock, err := l.Lock(context.Background(), "p1")
	require.NoError(t, err)
	assert.Contains(t, fake.values, keyNamespace+"p1")

	_, err = l.Lock(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	other, err := l.Lock(context.Background(), "p2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.NotContains(t, fake.values, keyNamespace+"p1")

	again, err := l.Lock(context.Background(), "p1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_SetError(t *testing.T) {
	fake := newFakeRedis()
	fake.setErr = errors.New("connection refused")
	l := newRedisLocker(fake)

	_, err := l.Lock(context.Background(), "p1")
	assert.Error(t, err)
}

func TestLocalLocker_Serializes(t *testing.T) {
	l := NewLocalLocker()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "p1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&maxSeen) {
				atomic.StoreInt32(&maxSeen, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "p1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "p1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
