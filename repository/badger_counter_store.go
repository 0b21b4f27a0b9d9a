package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/raiot-portal/models"
	"github.com/dgraph-io/badger/v4"
)

const badgerCounterKeyPrefix = "counter/"

// BadgerCounterStore is an embedded counter store for single-node deployments and tests.
// Badger transactions are serializable snapshot transactions, so a commit fails with
// badger.ErrConflict when a key read by the transaction was written by another one.
type BadgerCounterStore struct {
	db     *badger.DB
	policy RetryPolicy
}

// OpenBadgerCounterStore opens a store at dir. An empty dir keeps everything in memory.
func OpenBadgerCounterStore(dir string, policy RetryPolicy) (*BadgerCounterStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger at %q: %w", ErrStoreUnavailable, dir, err)
	}
	return &BadgerCounterStore{db: db, policy: policy.normalized()}, nil
}

func (s *BadgerCounterStore) Close() error {
	return s.db.Close()
}

func (s *BadgerCounterStore) Backend() string {
	return BackendBadger
}

func (s *BadgerCounterStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx CounterTx) error) error {
	return runWithRetry(ctx, s.policy, BackendBadger, func(ctx context.Context) error {
		return s.attempt(ctx, fn)
	})
}

func (s *BadgerCounterStore) attempt(ctx context.Context, fn func(ctx context.Context, tx CounterTx) error) error {
	if s.db.IsClosed() {
		return fmt.Errorf("%w: badger is closed", ErrStoreUnavailable)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(ctx, &badgerCounterTx{txn: txn})
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrTxConflict, err)
	}
	return err
}

func (s *BadgerCounterStore) Peek(ctx context.Context, name string) (*models.SequenceCounter, error) {
	if s.db.IsClosed() {
		return nil, fmt.Errorf("%w: badger is closed", ErrStoreUnavailable)
	}
	var counter *models.SequenceCounter
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		counter, err = readBadgerCounter(txn, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counter, nil
}

type badgerCounterTx struct {
	txn *badger.Txn
}

func badgerCounterKey(name string) []byte {
	return []byte(badgerCounterKeyPrefix + name)
}

func readBadgerCounter(txn *badger.Txn, name string) (*models.SequenceCounter, error) {
	item, err := txn.Get(badgerCounterKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read counter %q: %w", name, err)
	}

	var counter models.SequenceCounter
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &counter)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode counter %q: %w", name, err)
	}
	return &counter, nil
}

func (t *badgerCounterTx) Get(ctx context.Context, name string) (*models.SequenceCounter, error) {
	return readBadgerCounter(t.txn, name)
}

func (t *badgerCounterTx) Create(ctx context.Context, counter *models.SequenceCounter) error {
	existing, err := readBadgerCounter(t.txn, counter.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: counter %q already exists", ErrTxConflict, counter.Name)
	}

	now := time.Now().UTC()
	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = now
	}
	counter.UpdatedAt = now
	return t.write(counter)
}

func (t *badgerCounterTx) Update(ctx context.Context, counter *models.SequenceCounter) error {
	counter.UpdatedAt = time.Now().UTC()
	return t.write(counter)
}

func (t *badgerCounterTx) write(counter *models.SequenceCounter) error {
	val, err := json.Marshal(counter)
	if err != nil {
		return fmt.Errorf("failed to encode counter %q: %w", counter.Name, err)
	}
	if err := t.txn.Set(badgerCounterKey(counter.Name), val); err != nil {
		return fmt.Errorf("failed to write counter %q: %w", counter.Name, err)
	}
	return nil
}
