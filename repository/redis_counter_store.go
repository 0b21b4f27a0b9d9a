package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/amirphl/raiot-portal/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisFieldCount         = "count"
	redisFieldLastGenerated = "lastGenerated"
	redisFieldCreatedAt     = "createdAt"
	redisFieldUpdatedAt     = "updatedAt"
)

// RedisCounterStore keeps each counter in a hash and commits through WATCH/MULTI/EXEC.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
	policy RetryPolicy
}

func NewRedisCounterStore(client *redis.Client, keyPrefix string, policy RetryPolicy) *RedisCounterStore {
	return &RedisCounterStore{client: client, prefix: keyPrefix, policy: policy.normalized()}
}

func (s *RedisCounterStore) Backend() string {
	return BackendRedis
}

func (s *RedisCounterStore) key(name string) string {
	return s.prefix + "counter:" + name
}

func (s *RedisCounterStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx CounterTx) error) error {
	return runWithRetry(ctx, s.policy, BackendRedis, func(ctx context.Context) error {
		return s.attempt(ctx, fn)
	})
}

func (s *RedisCounterStore) attempt(ctx context.Context, fn func(ctx context.Context, tx CounterTx) error) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		view := &redisCounterTx{
			store:   s,
			tx:      tx,
			watched: make(map[string]bool),
			pending: make(map[string]*models.SequenceCounter),
		}
		if err := fn(ctx, view); err != nil {
			return err
		}
		if len(view.pending) == 0 {
			return nil
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, c := range view.pending {
				pipe.HSet(ctx, key, encodeRedisCounter(c))
			}
			return nil
		})
		return err
	})
	return classifyRedisError(err)
}

func (s *RedisCounterStore) Peek(ctx context.Context, name string) (*models.SequenceCounter, error) {
	fields, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return nil, classifyRedisError(fmt.Errorf("failed to read counter %q: %w", name, err))
	}
	return decodeRedisCounter(name, fields)
}

type redisCounterTx struct {
	store   *RedisCounterStore
	tx      *redis.Tx
	watched map[string]bool
	pending map[string]*models.SequenceCounter
}

func (t *redisCounterTx) watch(ctx context.Context, key string) error {
	if t.watched[key] {
		return nil
	}
	if err := t.tx.Watch(ctx, key).Err(); err != nil {
		return classifyRedisError(fmt.Errorf("failed to watch %q: %w", key, err))
	}
	t.watched[key] = true
	return nil
}

func (t *redisCounterTx) Get(ctx context.Context, name string) (*models.SequenceCounter, error) {
	key := t.store.key(name)
	if c, ok := t.pending[key]; ok {
		return c.Clone(), nil
	}
	if err := t.watch(ctx, key); err != nil {
		return nil, err
	}
	fields, err := t.tx.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, classifyRedisError(fmt.Errorf("failed to read counter %q: %w", name, err))
	}
	return decodeRedisCounter(name, fields)
}

func (t *redisCounterTx) Create(ctx context.Context, counter *models.SequenceCounter) error {
	key := t.store.key(counter.Name)
	if err := t.watch(ctx, key); err != nil {
		return err
	}
	n, err := t.tx.Exists(ctx, key).Result()
	if err != nil {
		return classifyRedisError(fmt.Errorf("failed to check counter %q: %w", counter.Name, err))
	}
	if n > 0 {
		return fmt.Errorf("%w: counter %q already exists", ErrTxConflict, counter.Name)
	}

	now := time.Now().UTC()
	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = now
	}
	counter.UpdatedAt = now
	t.pending[key] = counter.Clone()
	return nil
}

func (t *redisCounterTx) Update(ctx context.Context, counter *models.SequenceCounter) error {
	key := t.store.key(counter.Name)
	if !t.watched[key] {
		return fmt.Errorf("counter %q was not read in this transaction", counter.Name)
	}
	counter.UpdatedAt = time.Now().UTC()
	t.pending[key] = counter.Clone()
	return nil
}

func encodeRedisCounter(c *models.SequenceCounter) map[string]any {
	last := ""
	if c.LastGenerated != nil {
		last = *c.LastGenerated
	}
	return map[string]any{
		redisFieldCount:         c.Count,
		redisFieldLastGenerated: last,
		redisFieldCreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339Nano),
		redisFieldUpdatedAt:     c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeRedisCounter(name string, fields map[string]string) (*models.SequenceCounter, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	count, err := strconv.ParseInt(fields[redisFieldCount], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("counter %q has malformed count %q: %w", name, fields[redisFieldCount], err)
	}

	c := &models.SequenceCounter{Name: name, Count: count}
	if last := fields[redisFieldLastGenerated]; last != "" {
		c.LastGenerated = &last
	}
	if t, err := time.Parse(time.RFC3339Nano, fields[redisFieldCreatedAt]); err == nil {
		c.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields[redisFieldUpdatedAt]); err == nil {
		c.UpdatedAt = t
	}
	return c, nil
}

func classifyRedisError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %w", ErrTxConflict, err)
	}
	if errors.Is(err, ErrTxConflict) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
