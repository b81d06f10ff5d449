// Package locks provides the distributed mutex the coordinator takes out
// around a table's read-modify-write cycle, so two server processes never
// apply conflicting moves to the same game. Adapted from the teacher's
// internal/locks/manager.go.
package locks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockTimeout     = errors.New("timeout acquiring table lock")
	ErrLockNotHeld     = errors.New("lock not held by this instance")
	ErrLockAlreadyHeld = errors.New("lock already held by another instance")
)

const (
	// DefaultLockTTL bounds how long one server can hold a table's lock
	// before Redis force-expires it, so a crashed instance never wedges
	// a table shut forever.
	DefaultLockTTL = 15 * time.Second
	// DefaultAcquireTimeout is how long a caller waits for a contended lock.
	DefaultAcquireTimeout = 5 * time.Second
	DefaultRetryAttempts  = 3
	// OrphanedLockAge is the idle time after which a lock key is assumed to
	// belong to a dead process and is force-cleared.
	OrphanedLockAge = 60 * time.Second
)

// Manager hands out locks keyed "lock:game:{id}".
type Manager struct {
	redis      *redis.Client
	instanceID string
}

// Lock is a held lock; release it when the read-modify-write cycle ends.
type Lock struct {
	key        string
	value      string
	manager    *Manager
	ttl        time.Duration
	acquiredAt time.Time
}

func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{redis: redisClient, instanceID: uuid.New().String()}
}

// AcquireGameLock takes out the lock for one table's state, retrying with
// backoff while another instance holds it.
func (m *Manager) AcquireGameLock(ctx context.Context, tableID string) (*Lock, error) {
	return m.acquire(ctx, fmt.Sprintf("game:%s", tableID), DefaultLockTTL)
}

func (m *Manager) acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, DefaultAcquireTimeout)
	defer cancel()

	lockValue := fmt.Sprintf("%s:%s", m.instanceID, uuid.New().String())
	lockKey := fmt.Sprintf("lock:%s", key)

	var lastErr error
	for attempt := 0; attempt < DefaultRetryAttempts; attempt++ {
		select {
		case <-acquireCtx.Done():
			return nil, ErrLockTimeout
		default:
		}

		acquired, err := m.redis.SetNX(acquireCtx, lockKey, lockValue, ttl).Result()
		if err != nil {
			lastErr = fmt.Errorf("redis error: %w", err)
			time.Sleep(m.backoff(attempt))
			continue
		}

		if acquired {
			return &Lock{key: lockKey, value: lockValue, manager: m, ttl: ttl, acquiredAt: time.Now()}, nil
		}

		if err := m.cleanOrphan(acquireCtx, lockKey); err != nil {
			log.Printf("[LOCK] orphan check failed for %s: %v", lockKey, err)
		}
		lastErr = ErrLockAlreadyHeld

		select {
		case <-acquireCtx.Done():
			return nil, ErrLockTimeout
		case <-time.After(m.backoff(attempt)):
		}
	}

	if lastErr == nil {
		lastErr = ErrLockTimeout
	}
	return nil, lastErr
}

// Release drops the lock, refusing if it's no longer held by this instance
// (it may have expired and been reacquired elsewhere).
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return ErrLockNotHeld
	}

	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, l.manager.redis, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if result == int64(0) {
		return ErrLockNotHeld
	}
	return nil
}

// Extend pushes the lock's expiry out by additionalTTL, for a holder whose
// work runs longer than DefaultLockTTL.
func (l *Lock) Extend(ctx context.Context, additionalTTL time.Duration) error {
	if l == nil {
		return ErrLockNotHeld
	}

	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("expire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, l.manager.redis, []string{l.key}, l.value, int(additionalTTL.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	if result == int64(0) {
		return ErrLockNotHeld
	}
	l.ttl += additionalTTL
	return nil
}

func (m *Manager) cleanOrphan(ctx context.Context, lockKey string) error {
	idleTime, err := m.redis.ObjectIdleTime(ctx, lockKey).Result()
	if err != nil {
		return nil
	}
	if idleTime > OrphanedLockAge {
		if _, err := m.redis.Del(ctx, lockKey).Result(); err != nil {
			return fmt.Errorf("delete orphaned lock: %w", err)
		}
		log.Printf("[LOCK] cleared orphaned lock %s (idle %v)", lockKey, idleTime)
	}
	return nil
}

func (m *Manager) backoff(attempt int) time.Duration {
	backoff := time.Duration(250*(1<<attempt)) * time.Millisecond
	if backoff > 2*time.Second {
		backoff = 2 * time.Second
	}
	return backoff
}

// CleanupOrphanedLocks sweeps every lock key, clearing anything left behind
// by a process that died mid-hold. The server's startup sequence does not
// call it.
func (m *Manager) CleanupOrphanedLocks(ctx context.Context) (int, error) {
	keys, err := m.redis.Keys(ctx, "lock:*").Result()
	if err != nil {
		return 0, fmt.Errorf("list locks: %w", err)
	}

	cleaned := 0
	for _, key := range keys {
		if err := m.cleanOrphan(ctx, key); err != nil {
			log.Printf("[LOCK] cleanup failed for %s: %v", key, err)
			continue
		}
		exists, _ := m.redis.Exists(ctx, key).Result()
		if exists == 0 {
			cleaned++
		}
	}
	return cleaned, nil
}
