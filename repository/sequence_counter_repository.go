// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/amirphl/raiot-portal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgresCounterStore keeps counters in the sequence_counters table.
// Updates are compare-and-set on the count observed by Get, so two writers
// that read the same value cannot both commit.
type PostgresCounterStore struct {
	db     *gorm.DB
	policy RetryPolicy
}

func NewPostgresCounterStore(db *gorm.DB, policy RetryPolicy) *PostgresCounterStore {
	return &PostgresCounterStore{db: db, policy: policy.normalized()}
}

func (s *PostgresCounterStore) Backend() string {
	return BackendPostgres
}

func (s *PostgresCounterStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx CounterTx) error) error {
	return runWithRetry(ctx, s.policy, BackendPostgres, func(ctx context.Context) error {
		return s.attempt(ctx, fn)
	})
}

func (s *PostgresCounterStore) attempt(ctx context.Context, fn func(ctx context.Context, tx CounterTx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	// once begun, the attempt runs to commit or rollback even if the caller goes away
	tx := s.db.WithContext(context.WithoutCancel(ctx)).Begin()
	if tx.Error != nil {
		return classifyPostgresError(fmt.Errorf("failed to begin counter transaction: %w", tx.Error))
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	view := &postgresCounterTx{tx: tx, observed: make(map[string]int64)}
	if err := fn(context.WithValue(ctx, TxContextKey, tx), view); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return classifyPostgresError(fmt.Errorf("failed to commit counter transaction: %w", err))
	}
	return nil
}

func (s *PostgresCounterStore) Peek(ctx context.Context, name string) (*models.SequenceCounter, error) {
	var counter models.SequenceCounter
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classifyPostgresError(fmt.Errorf("failed to read counter %q: %w", name, err))
	}
	return &counter, nil
}

type postgresCounterTx struct {
	tx       *gorm.DB
	observed map[string]int64
}

func (t *postgresCounterTx) Get(ctx context.Context, name string) (*models.SequenceCounter, error) {
	var counter models.SequenceCounter
	err := t.tx.Where("name = ?", name).Take(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classifyPostgresError(fmt.Errorf("failed to read counter %q: %w", name, err))
	}
	t.observed[name] = counter.Count
	return &counter, nil
}

func (t *postgresCounterTx) Create(ctx context.Context, counter *models.SequenceCounter) error {
	now := time.Now().UTC()
	if counter.CreatedAt.IsZero() {
		counter.CreatedAt = now
	}
	counter.UpdatedAt = now

	if err := t.tx.Create(counter).Error; err != nil {
		return classifyPostgresError(fmt.Errorf("failed to create counter %q: %w", counter.Name, err))
	}
	t.observed[counter.Name] = counter.Count
	return nil
}

func (t *postgresCounterTx) Update(ctx context.Context, counter *models.SequenceCounter) error {
	prev, ok := t.observed[counter.Name]
	if !ok {
		return fmt.Errorf("counter %q was not read in this transaction", counter.Name)
	}

	counter.UpdatedAt = time.Now().UTC()
	res := t.tx.Model(&models.SequenceCounter{}).
		Where("name = ? AND count = ?", counter.Name, prev).
		Updates(map[string]any{
			"count":          counter.Count,
			"last_generated": counter.LastGenerated,
			"updated_at":     counter.UpdatedAt,
		})
	if res.Error != nil {
		return classifyPostgresError(fmt.Errorf("failed to update counter %q: %w", counter.Name, res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: counter %q changed since it was read", ErrTxConflict, counter.Name)
	}
	t.observed[counter.Name] = counter.Count
	return nil
}

// classifyPostgresError maps driver errors onto ErrTxConflict and ErrStoreUnavailable.
func classifyPostgresError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505", pgErr.Code == "40001", pgErr.Code == "40P01":
			return fmt.Errorf("%w: %w", ErrTxConflict, err)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "53300":
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
