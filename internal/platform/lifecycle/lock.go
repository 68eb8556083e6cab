package lifecycle

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetcompliance/platform/pkg/database"
	"github.com/fleetcompliance/platform/pkg/errors"
)

// Locker serializes activation attempts for a single (tenant, vehicle[,
// permit_type]) key so two concurrent activations cannot both pass the
// overlap guard before either commits (§4.5 "serialized activation path").
// The partial-unique index is the final authority either way; Locker only
// turns a guaranteed database error into a fast, pre-write rejection.
type Locker interface {
	// WithLock runs fn while holding an exclusive lock on key, scoped to
	// the lifetime of the call. Implementations must release the lock even
	// if fn panics or returns an error.
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// lockKey builds the serialization key for a vehicle-scoped activation,
// optionally narrowed by permit_type for permits (policies have none).
func lockKey(tenantID, vehicleID, permitType string) string {
	if permitType == "" {
		return "vehicle:" + tenantID + ":" + vehicleID
	}
	return "vehicle:" + tenantID + ":" + vehicleID + ":" + permitType
}

// PostgresLocker takes a transaction-scoped advisory lock inside the caller's
// already-open WithTenantRLS transaction, so the lock is released
// automatically on commit or rollback — no separate unlock path to forget.
// This is the primary implementation: no extra infrastructure dependency
// beyond the database already in use.
type PostgresLocker struct {
	db *database.DB
}

// NewPostgresLocker creates a Locker backed by pg_advisory_xact_lock.
func NewPostgresLocker(db *database.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

// WithLock must be called from inside an already-open WithTenantRLS
// transaction: pg_advisory_xact_lock needs a transaction to bind its
// lifetime to, and the lifecycle engine always calls Locker from within one.
func (l *PostgresLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	lockID := int64(hashKey(key))

	if _, err := l.db.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return fmt.Errorf("acquiring advisory lock for %s: %w", key, err)
	}
	return fn(ctx)
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// RedisLocker is an alternate Locker for deployments fronting multiple
// Postgres read replicas, where a session-scoped Postgres advisory lock
// taken on one replica connection would not serialize writers talking to a
// different one. The engine's guard logic is identical regardless of which
// Locker is wired in.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a Locker backed by a Redis SET NX lock, held for at
// most ttl before it self-expires (a crashed holder must not wedge the key
// forever).
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// WithLock acquires a SET NX lock for key, runs fn, and always releases the
// lock afterward. Failure to acquire (another activation is already in
// flight for this key) surfaces as errors.Locked rather than blocking.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	redisKey := "lifecycle:lock:" + key

	ok, err := l.client.SetNX(ctx, redisKey, "1", l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquiring redis lock for %s: %w", key, err)
	}
	if !ok {
		return errors.Locked(fmt.Sprintf("a concurrent activation is already in progress for %s", key))
	}
	defer l.client.Del(ctx, redisKey)

	return fn(ctx)
}
