// Package locker сериализует операции над одной покупкой.
package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout возвращается, если блокировку не удалось получить за отведённое время.
var ErrLockTimeout = errors.New("lock wait timeout")

const keyNamespace = "rewardadmin:lock:"

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Locker выдаёт взаимоисключающую блокировку по ключу.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type cmdable interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLocker реализует блокировку через SET NX с TTL, общая для всех экземпляров сервиса.
type RedisLocker struct {
	client cmdable
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewRedisLocker подключается к Redis по URL и проверяет соединение.
func NewRedisLocker(ctx context.Context, url string) (*RedisLocker, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}

	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	return newRedisLocker(raw), raw, nil
}

func newRedisLocker(client cmdable) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    30 * time.Second,
		wait:   5 * time.Second,
		poll:   50 * time.Millisecond,
	}
}

// Lock ждёт освобождения ключа не дольше wait.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := keyNamespace + key
	token := uuid.NewString()

	deadline := time.NewTimer(l.wait)
	defer deadline.Stop()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					_ = l.client.Eval(releaseCtx, releaseScript, []string{k}, token).Err()
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-time.After(l.poll):
		}
	}
}

// LocalLocker реализует блокировку в пределах одного процесса.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocalLocker создаёт блокировку в памяти процесса.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{})}
}

// Lock ждёт освобождения ключа или отмены контекста.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
