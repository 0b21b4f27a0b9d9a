// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/raiot-portal/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// Counter store backends
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
)

var (
	// ErrTxConflict reports that another writer committed a change to a record read by the transaction
	ErrTxConflict = errors.New("transaction conflict")
	// ErrTxAborted is returned once the retry budget for conflicting writers is exhausted
	ErrTxAborted = errors.New("transaction aborted")
	// ErrStoreUnavailable reports that the backing store could not be reached
	ErrStoreUnavailable = errors.New("store unavailable")
)

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CounterTx is the view of counter records available inside a counter transaction.
// Update is only valid for a record previously read through Get in the same transaction.
type CounterTx interface {
	Get(ctx context.Context, name string) (*models.SequenceCounter, error)
	Create(ctx context.Context, counter *models.SequenceCounter) error
	Update(ctx context.Context, counter *models.SequenceCounter) error
}

// CounterStore runs optimistic transactions against named counter records.
//
// RunTransaction re-runs fn from scratch whenever the commit detects a conflicting
// writer, up to the store's retry budget, after which it fails with ErrTxAborted.
// Errors returned by fn are not retried unless they wrap ErrTxConflict.
// Nothing is committed unless RunTransaction returns nil.
type CounterStore interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx CounterTx) error) error
	// Peek reads a counter outside any transaction; the result may be stale.
	Peek(ctx context.Context, name string) (*models.SequenceCounter, error)
	Backend() string
}

// MemberRepository defines operations for club members
type MemberRepository interface {
	Repository[models.Member, models.MemberFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	ByEmail(ctx context.Context, email string) (*models.Member, error)
	ByUniqueID(ctx context.Context, uniqueID string) (*models.Member, error)
	UpdateProfile(ctx context.Context, member *models.Member) error
	// AssignUniqueID records uniqueID only if the member has none yet.
	// It reports false when another writer assigned one first.
	AssignUniqueID(ctx context.Context, memberID uint, uniqueID string, assignedAt time.Time) (bool, error)
	// ListPendingUniqueID returns active members with a complete profile and no unique ID, ordered by id.
	ListPendingUniqueID(ctx context.Context, afterID uint, limit int) ([]*models.Member, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByMember(ctx context.Context, memberID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
}
