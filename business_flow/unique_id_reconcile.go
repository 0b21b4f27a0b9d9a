package businessflow

import (
	"context"
	"fmt"
)

const DefaultReconcileBatchSize = 100

// ReconcileReport summarises one reconciliation pass
type ReconcileReport struct {
	Scanned  int
	Assigned int
	Skipped  int
	Failed   int
	Orphaned []string
}

// Reconcile walks members whose profile is complete but who hold no unique ID,
// oldest first, and runs AllocateAndAssign for each. It stops early when the
// counter store is unavailable. Concurrent calls in the same process are rejected.
func (f *UniqueIDFlowImpl) Reconcile(ctx context.Context, batchSize int) (*ReconcileReport, error) {
	if !f.reconcileMu.TryLock() {
		return nil, NewBusinessError("RECONCILE_IN_PROGRESS", "Reconciliation is already running", ErrReconcileInProgress)
	}
	defer f.reconcileMu.Unlock()

	if batchSize <= 0 {
		batchSize = DefaultReconcileBatchSize
	}

	report := &ReconcileReport{}
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		members, err := f.memberRepo.ListPendingUniqueID(ctx, afterID, batchSize)
		if err != nil {
			return report, NewBusinessError("RECONCILE_LIST_FAILED", "Failed to list members pending a unique ID", err)
		}

		for _, m := range members {
			afterID = m.ID
			report.Scanned++

			res, err := f.AllocateAndAssign(ctx, m.ID)
			switch {
			case err != nil:
				report.Failed++
				if id, ok := OrphanedID(err); ok {
					report.Orphaned = append(report.Orphaned, id)
				}
				f.logger.Printf("reconcile: member id=%d failed: %v", m.ID, err)
				if IsStoreUnavailable(err) {
					return report, err
				}
			case res.AlreadyAssigned:
				report.Skipped++
			default:
				report.Assigned++
			}
		}

		if len(members) < batchSize {
			break
		}
	}

	f.logger.Printf("reconcile: %s", report)
	return report, nil
}

func (r *ReconcileReport) String() string {
	return fmt.Sprintf("scanned=%d assigned=%d skipped=%d failed=%d orphaned=%d",
		r.Scanned, r.Assigned, r.Skipped, r.Failed, len(r.Orphaned))
}
