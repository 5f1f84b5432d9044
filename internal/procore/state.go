package procore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateTTL bounds how long a user may take on the Procore login page.
const StateTTL = 10 * time.Minute

// StateStore issues OAuth state values and accepts each one exactly once.
type StateStore interface {
	Issue(ctx context.Context) (string, error)
	// Consume reports whether state was issued, unexpired and unused, and
	// burns it either way.
	Consume(ctx context.Context, state string) (bool, error)
}

func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MemoryStateStore keeps states in process memory. Fine for a single API
// instance; use RedisStateStore when running several.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *MemoryStateStore) Issue(_ context.Context) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for s, exp := range m.states {
		if now.After(exp) {
			delete(m.states, s)
		}
	}
	m.states[state] = now.Add(m.ttl)
	return state, nil
}

func (m *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.states[state]
	if !ok {
		return false, nil
	}
	delete(m.states, state)
	return !m.now().After(exp), nil
}

// RedisStateStore shares states between API replicas. Expiry is left to
// Redis.
type RedisStateStore struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisStateStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{rdb: rdb, ttl: ttl, prefix: "qcboard:oauth_state:"}
}

func (r *RedisStateStore) Issue(ctx context.Context) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}
	ok, err := r.rdb.SetNX(ctx, r.prefix+state, "1", r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	if !ok {
		return "", errors.New("store state: collision")
	}
	return state, nil
}

func (r *RedisStateStore) Consume(ctx context.Context, state string) (bool, error) {
	err := r.rdb.GetDel(ctx, r.prefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume state: %w", err)
	}
	return true, nil
}
