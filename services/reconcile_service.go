package services

import (
	"context"
	"log"
	"sync"
	"time"

	"ridepool_server/models"
)

// RemoteAction is the caller-supplied authoritative write for an operation.
// It returns nil on success and an error on any failure; the engine never
// inspects the error kind. Classification into a taxonomy is the caller's
// concern before the error reaches the engine.
type RemoteAction func(ctx context.Context) error

// Notifier receives exactly one event per completed operation
type Notifier interface {
	OperationSucceeded(op models.Operation)
	OperationFailed(op models.Operation, err error)
}

// ReconciliationEngine applies an operation to the overlay synchronously,
// runs the remote action in the background, and on completion either confirms
// the edit or rolls it back. It is the sole writer of the overlay and journal.
type ReconciliationEngine struct {
	Overlay  *OptimisticOverlay
	Journal  *OperationJournal
	Notifier Notifier

	// Hold windows and the remote timeout are injectable for tests
	SuccessHold   time.Duration
	FailureHold   time.Duration
	RemoteTimeout time.Duration

	inflight sync.WaitGroup
}

func NewReconciliationEngine(overlay *OptimisticOverlay, journal *OperationJournal, notifier Notifier) *ReconciliationEngine {
	return &ReconciliationEngine{
		Overlay:       overlay,
		Journal:       journal,
		Notifier:      notifier,
		SuccessHold:   models.SuccessHoldWindow,
		FailureHold:   models.FailureHoldWindow,
		RemoteTimeout: models.OperationTimeout,
	}
}

// ExecuteOptimistically journals the operation, applies its optimistic edit,
// and launches the remote action. Both the journal entry and the overlay edit
// are visible before this returns; the remote action runs in the background.
// Resubmitting an operation id that is already tracked (pending or terminal)
// is a no-op and returns false before any overlay mutation.
func (e *ReconciliationEngine) ExecuteOptimistically(ctx context.Context, op models.Operation, remote RemoteAction) bool {
	if _, submitted := e.Journal.Submit(op); !submitted {
		return false
	}
	e.Overlay.Apply(op)
	log.Printf("Starting optimistic operation: %s", op.ID())

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		// The operation is fire-and-forget: it must outlive the caller's
		// request context, bounded only by the operation timeout.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.RemoteTimeout)
		defer cancel()

		if err := remote(rctx); err != nil {
			e.handleFailure(op, err)
			return
		}
		e.handleSuccess(op)
	}()
	return true
}

func (e *ReconciliationEngine) handleSuccess(op models.Operation) {
	log.Printf("Operation succeeded: %s", op.ID())

	e.Journal.Transition(op.ID(), models.OperationState{
		Operation: op,
		Status:    models.OperationSuccess,
	})

	switch op.(type) {
	case models.LeaveGroup, models.DeleteGroup:
		e.Overlay.ClearRemoval(op.GroupID())
	}

	if e.Notifier != nil {
		e.Notifier.OperationSucceeded(op)
	}

	// Keep the success state visible briefly, then evict it and drop the
	// overlay entry: the store has confirmed, so the server snapshot owns
	// this group from here on. The drop is skipped while another pending
	// operation targets the same group, so its unconfirmed edit is not
	// erased from the merged view.
	time.AfterFunc(e.SuccessHold, func() {
		e.Journal.Evict(op.ID())
		if !e.Journal.HasPendingFor(op.GroupID()) {
			e.Overlay.DropGroup(op.GroupID())
		}
	})
}

func (e *ReconciliationEngine) handleFailure(op models.Operation, err error) {
	log.Printf("Operation failed: %s, error: %v", op.ID(), err)

	e.Overlay.Rollback(op)
	e.Journal.Transition(op.ID(), models.OperationState{
		Operation:   op,
		Status:      models.OperationFailed,
		Error:       err.Error(),
		ShouldRetry: true,
	})

	if e.Notifier != nil {
		e.Notifier.OperationFailed(op, err)
	}

	time.AfterFunc(e.FailureHold, func() {
		e.Journal.Evict(op.ID())
	})
}

// Wait blocks until every in-flight remote action has completed. Hold-window
// evictions may still be scheduled when it returns.
func (e *ReconciliationEngine) Wait() {
	e.inflight.Wait()
}
