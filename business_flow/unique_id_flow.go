package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/raiot-portal/app/dto"
	"github.com/amirphl/raiot-portal/models"
	"github.com/amirphl/raiot-portal/repository"
	"github.com/amirphl/raiot-portal/utils"
)

// UniqueIDFlow hands out sequential member identifiers
type UniqueIDFlow interface {
	// Allocate commits the next counter value and returns its formatted identifier.
	Allocate(ctx context.Context) (string, error)
	// AllocateAndAssign gives memberID an identifier unless it already has one.
	AllocateAndAssign(ctx context.Context, memberID uint) (*AssignResult, error)
	// Status reports the counter state. The result may be stale.
	Status(ctx context.Context) (*dto.CounterStatusResponse, error)
	// Reconcile assigns identifiers to eligible members that are still missing one.
	Reconcile(ctx context.Context, batchSize int) (*ReconcileReport, error)
}

type AssignResult struct {
	MemberID        uint
	UniqueID        string
	AlreadyAssigned bool
}

// UniqueIDConfig names the counter record and the identifier format
type UniqueIDConfig struct {
	CounterName string
	Format      UniqueIDFormat
}

// UniqueIDFlowImpl implements UniqueIDFlow on top of a CounterStore
type UniqueIDFlowImpl struct {
	store      repository.CounterStore
	memberRepo repository.MemberRepository
	auditRepo  repository.AuditLogRepository
	cfg        UniqueIDConfig
	logger     *log.Logger

	reconcileMu sync.Mutex
}

// NewUniqueIDFlow creates a new unique ID flow instance
func NewUniqueIDFlow(
	store repository.CounterStore,
	memberRepo repository.MemberRepository,
	auditRepo repository.AuditLogRepository,
	cfg UniqueIDConfig,
	logger *log.Logger,
) UniqueIDFlow {
	if cfg.CounterName == "" {
		cfg.CounterName = models.UniqueIDCounterName
	}
	if cfg.Format.Prefix == "" && cfg.Format.Width == 0 {
		cfg.Format = DefaultUniqueIDFormat()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &UniqueIDFlowImpl{
		store:      store,
		memberRepo: memberRepo,
		auditRepo:  auditRepo,
		cfg:        cfg,
		logger:     logger,
	}
}

func (f *UniqueIDFlowImpl) Allocate(ctx context.Context) (string, error) {
	start := time.Now()
	id, err := f.allocate(ctx)
	uniqueIDAllocationDuration.Observe(time.Since(start).Seconds())
	uniqueIDAllocations.WithLabelValues(allocationResult(err)).Inc()
	return id, err
}

func (f *UniqueIDFlowImpl) allocate(ctx context.Context) (string, error) {
	var id string
	err := f.store.RunTransaction(ctx, func(ctx context.Context, tx repository.CounterTx) error {
		id = ""

		counter, err := tx.Get(ctx, f.cfg.CounterName)
		if err != nil {
			return err
		}

		create := counter == nil
		if create {
			counter = &models.SequenceCounter{Name: f.cfg.CounterName}
		}

		next := counter.Count + 1
		formatted := f.cfg.Format.Format(next)
		counter.Count = next
		counter.LastGenerated = &formatted

		if create {
			err = tx.Create(ctx, counter)
		} else {
			err = tx.Update(ctx, counter)
		}
		if err != nil {
			return err
		}

		id = formatted
		return nil
	})
	if err != nil {
		return "", translateStoreError(err)
	}
	return id, nil
}

func translateStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrTxAborted):
		return NewBusinessError("UNIQUE_ID_TRANSACTION_ABORTED", "Unique ID allocation aborted after repeated conflicts",
			fmt.Errorf("%w: %w", ErrTransactionAborted, err))
	case errors.Is(err, repository.ErrStoreUnavailable):
		return NewBusinessError("COUNTER_STORE_UNAVAILABLE", "Counter store is unavailable",
			fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	default:
		return NewBusinessError("UNIQUE_ID_ALLOCATION_FAILED", "Unique ID allocation failed", err)
	}
}

func (f *UniqueIDFlowImpl) AllocateAndAssign(ctx context.Context, memberID uint) (*AssignResult, error) {
	member, err := f.memberRepo.ByID(ctx, memberID)
	if err != nil {
		return nil, NewBusinessError("MEMBER_FETCH_FAILED", "Failed to fetch member", err)
	}
	if member == nil {
		return nil, NewBusinessError("MEMBER_NOT_FOUND", "Member not found", ErrMemberNotFound)
	}

	if member.HasUniqueID() {
		return &AssignResult{MemberID: member.ID, UniqueID: *member.UniqueID, AlreadyAssigned: true}, nil
	}

	if err := checkUniqueIDEligibility(member); err != nil {
		return nil, err
	}

	id, err := f.Allocate(ctx)
	if err != nil {
		errMsg := err.Error()
		f.createAuditLog(context.WithoutCancel(ctx), member, models.AuditActionUniqueIDAllocationFailed,
			"Unique ID allocation failed", false, &errMsg, nil)
		return nil, err
	}

	// the counter has committed; the assignment must not be cut short by the caller
	writeCtx := context.WithoutCancel(ctx)

	assigned, err := f.memberRepo.AssignUniqueID(writeCtx, member.ID, id, utils.UTCNow())
	if err != nil {
		f.recordOrphan(writeCtx, member, id, err)
		return nil, NewBusinessError("UNIQUE_ID_ASSIGNMENT_FAILED", "Failed to record unique ID",
			&AssignmentError{OrphanedID: id, Err: err})
	}

	if !assigned {
		f.recordOrphan(writeCtx, member, id, errors.New("member was assigned a unique id concurrently"))

		current, err := f.memberRepo.ByID(writeCtx, member.ID)
		if err != nil {
			return nil, NewBusinessError("MEMBER_FETCH_FAILED", "Failed to fetch member", err)
		}
		if current == nil {
			return nil, NewBusinessError("MEMBER_NOT_FOUND", "Member not found", ErrMemberNotFound)
		}
		if !current.HasUniqueID() {
			return nil, NewBusinessError("UNIQUE_ID_ASSIGNMENT_FAILED", "Failed to record unique ID",
				&AssignmentError{OrphanedID: id, Err: errors.New("assignment affected no rows")})
		}
		return &AssignResult{MemberID: current.ID, UniqueID: *current.UniqueID, AlreadyAssigned: true}, nil
	}

	msg := fmt.Sprintf("Unique ID %s assigned to member %d", id, member.ID)
	f.createAuditLog(writeCtx, member, models.AuditActionUniqueIDAssigned, msg, true, nil,
		map[string]any{"unique_id": id})

	return &AssignResult{MemberID: member.ID, UniqueID: id}, nil
}

func checkUniqueIDEligibility(m *models.Member) error {
	if !utils.IsTrue(m.IsActive) {
		return NewBusinessError("MEMBER_INACTIVE", "Member is inactive", ErrMemberInactive)
	}
	if m.IsGuest() {
		return NewBusinessError("MEMBER_NOT_ELIGIBLE", "Guests do not receive a unique ID", ErrMemberNotEligible)
	}
	if missing := m.MissingProfileFields(); len(missing) > 0 {
		return NewBusinessError("PROFILE_INCOMPLETE", fmt.Sprintf("Profile is missing: %v", missing), ErrProfileIncomplete)
	}
	return nil
}

func (f *UniqueIDFlowImpl) recordOrphan(ctx context.Context, member *models.Member, id string, cause error) {
	uniqueIDOrphaned.Inc()
	f.logger.Printf("unique-id: %s orphaned for member id=%d: %v", id, member.ID, cause)

	errMsg := cause.Error()
	msg := fmt.Sprintf("Unique ID %s allocated but not recorded for member %d", id, member.ID)
	f.createAuditLog(ctx, member, models.AuditActionUniqueIDOrphaned, msg, false, &errMsg,
		map[string]any{"unique_id": id})
}

func (f *UniqueIDFlowImpl) Status(ctx context.Context) (*dto.CounterStatusResponse, error) {
	counter, err := f.store.Peek(ctx, f.cfg.CounterName)
	if err != nil {
		return nil, translateStoreError(err)
	}

	resp := &dto.CounterStatusResponse{
		Backend:     f.store.Backend(),
		Name:        f.cfg.CounterName,
		NextPreview: f.cfg.Format.Format(1),
	}
	if counter != nil {
		resp.Initialized = true
		resp.Count = counter.Count
		resp.LastGenerated = counter.LastGenerated
		resp.NextPreview = f.cfg.Format.Format(counter.Count + 1)
		if !counter.UpdatedAt.IsZero() {
			resp.UpdatedAt = utils.TimeToUTCPtr(&counter.UpdatedAt)
		}
	}
	return resp, nil
}

// createAuditLog never fails the caller; a write error is only logged
func (f *UniqueIDFlowImpl) createAuditLog(ctx context.Context, member *models.Member, action, description string, success bool, errorMsg *string, metadata map[string]any) {
	var memberID *uint
	if member != nil {
		memberID = &member.ID
	}

	audit := &models.AuditLog{
		MemberID:     memberID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		ErrorMessage: errorMsg,
	}
	if requestID := utils.RequestIDFromContext(ctx); requestID != "" {
		audit.RequestID = &requestID
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			audit.Metadata = raw
		}
	}

	if err := f.auditRepo.Save(ctx, audit); err != nil {
		f.logger.Printf("unique-id: failed to write %s audit log for member id=%d: %v", action, utils.Deref(memberID), err)
	}
}
