// Package scheduler runs background jobs on a fixed interval
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	businessflow "github.com/amirphl/raiot-portal/business_flow"
)

const defaultReconcileInterval = 5 * time.Minute

// Reconciler is the part of UniqueIDFlow the scheduler needs
type Reconciler interface {
	Reconcile(ctx context.Context, batchSize int) (*businessflow.ReconcileReport, error)
}

// ReconcileScheduler periodically assigns unique IDs to complete profiles that are still missing one
type ReconcileScheduler struct {
	reconciler Reconciler
	logger     *log.Logger
	interval   time.Duration
	batchSize  int
}

func NewReconcileScheduler(reconciler Reconciler, logger *log.Logger, interval time.Duration, batchSize int) *ReconcileScheduler {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	if batchSize <= 0 {
		batchSize = businessflow.DefaultReconcileBatchSize
	}
	return &ReconcileScheduler{
		reconciler: reconciler,
		logger:     logger,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Start runs a pass immediately and then on every tick. The returned func stops
// the loop and waits for an in-flight pass to return.
func (s *ReconcileScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// RunOnce performs a single reconciliation pass
func (s *ReconcileScheduler) RunOnce(ctx context.Context) (*businessflow.ReconcileReport, error) {
	return s.reconciler.Reconcile(ctx, s.batchSize)
}

func (s *ReconcileScheduler) runOnce(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	switch {
	case businessflow.IsReconcileInProgress(err):
		s.logger.Printf("scheduler: reconcile skipped, previous pass still running")
	case err != nil:
		s.logger.Printf("scheduler: reconcile failed: %v", err)
		if report != nil {
			s.logger.Printf("scheduler: partial reconcile %s", report)
		}
	case report.Scanned > 0:
		s.logger.Printf("scheduler: reconcile %s", report)
	}
}
