package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	businessflow "github.com/amirphl/raiot-portal/business_flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReconciler struct {
	calls     atomic.Int32
	batchSize atomic.Int32
	err       error
}

func (r *countingReconciler) Reconcile(ctx context.Context, batchSize int) (*businessflow.ReconcileReport, error) {
	r.calls.Add(1)
	r.batchSize.Store(int32(batchSize))
	if r.err != nil {
		return &businessflow.ReconcileReport{Scanned: 1, Failed: 1}, r.err
	}
	return &businessflow.ReconcileReport{Scanned: 2, Assigned: 2}, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReconcileSchedulerRunsImmediatelyAndOnTick(t *testing.T) {
	rec := &countingReconciler{}
	out := &syncBuffer{}
	s := NewReconcileScheduler(rec, log.New(out, "", 0), 10*time.Millisecond, 7)

	stop := s.Start(context.Background())
	require.Eventually(t, func() bool { return rec.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()

	calls := rec.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, rec.calls.Load(), "no passes after stop returns")
	assert.Equal(t, int32(7), rec.batchSize.Load())
	assert.Contains(t, out.String(), "assigned=2")
}

func TestReconcileSchedulerRunOnce(t *testing.T) {
	rec := &countingReconciler{}
	s := NewReconcileScheduler(rec, log.New(&syncBuffer{}, "", 0), 0, 0)

	report, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Assigned)
	assert.Equal(t, int32(businessflow.DefaultReconcileBatchSize), rec.batchSize.Load())
	assert.Equal(t, defaultReconcileInterval, s.interval)
}

func TestReconcileSchedulerLogsFailures(t *testing.T) {
	rec := &countingReconciler{err: errors.New("counter store unavailable")}
	out := &syncBuffer{}
	s := NewReconcileScheduler(rec, log.New(out, "", 0), time.Hour, 10)

	stop := s.Start(context.Background())
	require.Eventually(t, func() bool { return rec.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Contains(t, out.String(), "reconcile failed: counter store unavailable")
	assert.Contains(t, out.String(), "partial reconcile")
}
