package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/raiot-portal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractPolicy keeps tests fast while still giving contended writers room to finish
var contractPolicy = RetryPolicy{
	MaxAttempts:     200,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func increment(ctx context.Context, store CounterStore, name string) (int64, error) {
	var n int64
	err := store.RunTransaction(ctx, func(ctx context.Context, tx CounterTx) error {
		c, err := tx.Get(ctx, name)
		if err != nil {
			return err
		}
		if c == nil {
			n = 1
			return tx.Create(ctx, &models.SequenceCounter{Name: name, Count: 1})
		}
		c.Count++
		n = c.Count
		return tx.Update(ctx, c)
	})
	return n, err
}

func uniqueCounterName(t *testing.T) string {
	return fmt.Sprintf("test_%d", time.Now().UnixNano())
}

// runCounterStoreContract exercises behaviour every CounterStore backend must share.
// newStore must return a store whose retry budget is at least contractPolicy's.
func runCounterStoreContract(t *testing.T, store CounterStore, lowBudget CounterStore) {
	ctx := context.Background()

	t.Run("PeekMissing", func(t *testing.T) {
		c, err := store.Peek(ctx, uniqueCounterName(t))
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("ColdStartThenIncrement", func(t *testing.T) {
		name := uniqueCounterName(t)

		n, err := increment(ctx, store, name)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = increment(ctx, store, name)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		c, err := store.Peek(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, int64(2), c.Count)
		assert.False(t, c.UpdatedAt.IsZero())
	})

	t.Run("LastGeneratedRoundTrip", func(t *testing.T) {
		name := uniqueCounterName(t)
		id := "RAIoT00001"

		err := store.RunTransaction(ctx, func(ctx context.Context, tx CounterTx) error {
			return tx.Create(ctx, &models.SequenceCounter{Name: name, Count: 1, LastGenerated: &id})
		})
		require.NoError(t, err)

		c, err := store.Peek(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, c)
		require.NotNil(t, c.LastGenerated)
		assert.Equal(t, id, *c.LastGenerated)
	})

	t.Run("CallbackErrorCommitsNothing", func(t *testing.T) {
		name := uniqueCounterName(t)
		_, err := increment(ctx, store, name)
		require.NoError(t, err)

		boom := errors.New("boom")
		calls := 0
		err = store.RunTransaction(ctx, func(ctx context.Context, tx CounterTx) error {
			calls++
			c, err := tx.Get(ctx, name)
			if err != nil {
				return err
			}
			c.Count = 100
			if err := tx.Update(ctx, c); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)

		c, err := store.Peek(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Count)
	})

	t.Run("ConflictExhaustsRetries", func(t *testing.T) {
		name := uniqueCounterName(t)
		_, err := increment(ctx, store, name)
		require.NoError(t, err)

		attempts := 0
		err = lowBudget.RunTransaction(ctx, func(ctx context.Context, tx CounterTx) error {
			attempts++
			c, err := tx.Get(ctx, name)
			if err != nil {
				return err
			}
			// a competing writer commits between our read and our write
			if _, err := increment(context.Background(), store, name); err != nil {
				return err
			}
			c.Count++
			return tx.Update(ctx, c)
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTxAborted)
		assert.ErrorIs(t, err, ErrTxConflict)
		assert.Equal(t, 3, attempts)

		c, err := store.Peek(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(1+attempts), c.Count)
	})

	t.Run("ConcurrentIncrementsAreUnique", func(t *testing.T) {
		name := uniqueCounterName(t)
		const workers = 50

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			values  []int64
			aborted atomic.Int32
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := increment(ctx, store, name)
				if err != nil {
					if !errors.Is(err, ErrTxAborted) {
						t.Errorf("unexpected error: %v", err)
					}
					aborted.Add(1)
					return
				}
				mu.Lock()
				values = append(values, n)
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, workers, len(values)+int(aborted.Load()))
		require.NotEmpty(t, values)

		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		for i, v := range values {
			assert.Equal(t, int64(i+1), v, "values must be gap free and unique")
		}

		c, err := store.Peek(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(len(values)), c.Count)
	})
}
