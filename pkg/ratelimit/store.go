package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists rate limit state per resource bucket.
type Store interface {
	// Load returns the state of resource, or nil when nothing is recorded.
	Load(ctx context.Context, resource string) (*State, error)

	// Save records state under state.Resource.
	Save(ctx context.Context, state *State) error
}

// MemoryStore keeps rate limit state in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory [Store].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Load implements [Store].
func (m *MemoryStore) Load(_ context.Context, resource string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[resource]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// Save implements [Store].
func (m *MemoryStore) Save(_ context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	m.mu.Lock()
	m.states[state.Resource] = *state
	m.mu.Unlock()
	return nil
}

// AnonymousPrincipal is the key segment of unauthenticated clients.
const AnonymousPrincipal = "anonymous"

// RedisStore shares rate limit state between processes through Redis.
// GitHub counts requests per token, so windows are keyed by principal and
// only clients using the same token see the same window.
type RedisStore struct {
	redis     *redis.Client
	principal string
}

// NewRedisStore creates a Redis-backed [Store] for principal, the identity
// of the credentials in use. An empty principal is the anonymous window.
func NewRedisStore(redisClient *redis.Client, principal string) *RedisStore {
	if principal == "" {
		principal = AnonymousPrincipal
	}
	return &RedisStore{redis: redisClient, principal: principal}
}

// redisKey returns gh:rate_limit:<principal>:<resource>.
func redisKey(principal, resource string) string {
	return RedisKeyPrefix + principal + ":" + resource
}

// Load implements [Store].
func (r *RedisStore) Load(ctx context.Context, resource string) (*State, error) {
	fields, err := r.redis.HGetAll(ctx, redisKey(r.principal, resource)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	state := &State{Resource: resource}
	if state.Limit, err = strconv.Atoi(fields["limit"]); err != nil {
		return nil, fmt.Errorf("parse limit: %w", err)
	}
	if state.Remaining, err = strconv.Atoi(fields["remaining"]); err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	reset, err := strconv.ParseInt(fields["reset"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reset: %w", err)
	}
	state.ResetAt = time.Unix(reset, 0)

	if raw := fields["last_update"]; raw != "" {
		if state.LastUpdate, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return state, nil
}

// Save implements [Store]. The hash expires shortly after the window resets.
func (r *RedisStore) Save(ctx context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}

	key := redisKey(r.principal, state.Resource)

	pipe := r.redis.TxPipeline()
	pipe.HSet(ctx, key,
		"limit", state.Limit,
		"remaining", state.Remaining,
		"reset", state.ResetAt.Unix(),
		"last_update", state.LastUpdate.Format(time.RFC3339Nano),
	)
	pipe.ExpireAt(ctx, key, state.ResetAt.Add(time.Minute))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}
