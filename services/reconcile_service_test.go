package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ridepool_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (n *recordingNotifier) OperationSucceeded(op models.Operation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, op.ID())
}

func (n *recordingNotifier) OperationFailed(op models.Operation, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, op.ID())
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes), len(n.failures)
}

func newTestEngine(t *testing.T) (*ReconciliationEngine, *recordingNotifier) {
	t.Helper()
	overlay := NewOptimisticOverlay()
	t.Cleanup(overlay.Close)

	notifier := &recordingNotifier{}
	engine := NewReconciliationEngine(overlay, NewOperationJournal(), notifier)
	engine.SuccessHold = 50 * time.Millisecond
	engine.FailureHold = 50 * time.Millisecond
	engine.RemoteTimeout = time.Second
	return engine, notifier
}

func TestCreateConfirmEvict(t *testing.T) {
	engine, notifier := newTestEngine(t)
	op := createOp(testGroup("g1", "u1"))

	submitted := engine.ExecuteOptimistically(context.Background(), op, func(ctx context.Context) error {
		return nil
	})
	require.True(t, submitted)

	// The edit is visible before the remote action completes
	view := engine.Overlay.MergedView(nil, time.Now())
	require.Len(t, view, 1)
	assert.Equal(t, "g1", view[0].GroupID)

	// The operation reaches Success
	require.Eventually(t, func() bool {
		state, found := engine.Journal.Get(op.ID())
		return found && state.Status == models.OperationSuccess
	}, time.Second, 5*time.Millisecond)

	// After the hold window the journal entry and the redundant overlay entry are gone
	require.Eventually(t, func() bool {
		_, found := engine.Journal.Get(op.ID())
		return !found
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, found := engine.Overlay.OptimisticGroup("g1")
		return !found
	}, time.Second, 5*time.Millisecond)

	successes, failures := notifier.counts()
	assert.Equal(t, 1, successes, "exactly one confirmation per operation")
	assert.Equal(t, 0, failures)
}

func TestJoinFailureRollsBack(t *testing.T) {
	engine, notifier := newTestEngine(t)

	engine.Overlay.Apply(createOp(testGroup("g2", "u1", "u2")))

	join := models.JoinGroup{
		OperationMeta: models.NewOperationMeta(),
		TargetGroupID: "g2",
		UserID:        "u3",
		UserName:      "Sara",
	}
	engine.ExecuteOptimistically(context.Background(), join, func(ctx context.Context) error {
		return errors.New("network error")
	})

	// Optimistic join is visible immediately
	got, _ := engine.Overlay.OptimisticGroup("g2")
	require.Equal(t, 3, got.MemberCount)

	// Rollback restores the exact prior state and records the failure
	require.Eventually(t, func() bool {
		state, found := engine.Journal.Get(join.ID())
		return found && state.Status == models.OperationFailed
	}, time.Second, 5*time.Millisecond)

	got, _ = engine.Overlay.OptimisticGroup("g2")
	assert.Equal(t, 2, got.MemberCount)
	assert.NotContains(t, got.Members, "u3")

	state, _ := engine.Journal.Get(join.ID())
	assert.Equal(t, "network error", state.Error)
	assert.True(t, state.ShouldRetry)

	engine.Wait()
	successes, failures := notifier.counts()
	assert.Equal(t, 0, successes)
	assert.Equal(t, 1, failures, "exactly one failure notification per operation")
}

func TestResubmittingKnownOperationIsNoop(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.SuccessHold = time.Minute

	engine.Overlay.Apply(createOp(testGroup("g1", "u1")))

	join := models.JoinGroup{
		OperationMeta: models.NewOperationMeta(),
		TargetGroupID: "g1",
		UserID:        "u2",
	}

	block := make(chan struct{})
	first := engine.ExecuteOptimistically(context.Background(), join, func(ctx context.Context) error {
		<-block
		return nil
	})
	second := engine.ExecuteOptimistically(context.Background(), join, func(ctx context.Context) error {
		return nil
	})
	close(block)

	require.True(t, first)
	assert.False(t, second, "a replayed operation id must not run again")

	got, _ := engine.Overlay.OptimisticGroup("g1")
	assert.Equal(t, 2, got.MemberCount, "the replay must not mutate the overlay a second time")
	engine.Wait()
}

func TestLeaveSuccessClearsPendingRemoval(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.Overlay.Apply(createOp(testGroup("g1", "u1", "u2")))

	leave := models.LeaveGroup{
		OperationMeta: models.NewOperationMeta(),
		TargetGroupID: "g1",
		UserID:        "u2",
	}
	engine.ExecuteOptimistically(context.Background(), leave, func(ctx context.Context) error {
		return nil
	})

	// Pending removal masks the group until the store confirms
	snap := engine.Overlay.Snapshot()
	assert.Contains(t, snap.PendingRemovals, "g1")

	require.Eventually(t, func() bool {
		_, removed := engine.Overlay.Snapshot().PendingRemovals["g1"]
		return !removed
	}, time.Second, 5*time.Millisecond)
}

func TestRemoteTimeoutIsAnOrdinaryFailure(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.RemoteTimeout = 30 * time.Millisecond

	engine.Overlay.Apply(createOp(testGroup("g1", "u1")))

	join := models.JoinGroup{
		OperationMeta: models.NewOperationMeta(),
		TargetGroupID: "g1",
		UserID:        "u2",
	}
	engine.ExecuteOptimistically(context.Background(), join, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.Eventually(t, func() bool {
		state, found := engine.Journal.Get(join.ID())
		return found && state.Status == models.OperationFailed
	}, time.Second, 5*time.Millisecond)

	got, _ := engine.Overlay.OptimisticGroup("g1")
	assert.Equal(t, 1, got.MemberCount, "a timed-out join must roll back")
}

func TestRemoteOutlivesCallerContext(t *testing.T) {
	engine, notifier := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	op := createOp(testGroup("g1", "u1"))

	started := make(chan struct{})
	engine.ExecuteOptimistically(ctx, op, func(rctx context.Context) error {
		close(started)
		select {
		case <-rctx.Done():
			return rctx.Err()
		case <-time.After(20 * time.Millisecond):
			return nil
		}
	})

	<-started
	cancel() // the caller's request ends; the operation must keep going

	engine.Wait()
	successes, _ := notifier.counts()
	assert.Equal(t, 1, successes, "fire-and-forget operations must not inherit request cancellation")
}

func TestSuccessEvictionSparesPendingEditOnSameGroup(t *testing.T) {
	engine, _ := newTestEngine(t)

	create := createOp(testGroup("g1", "u1"))
	engine.ExecuteOptimistically(context.Background(), create, func(ctx context.Context) error {
		return nil
	})

	// A second operation on the same group is still pending when the
	// create's hold window elapses; its optimistic edit must survive.
	block := make(chan struct{})
	join := models.JoinGroup{
		OperationMeta: models.NewOperationMeta(),
		TargetGroupID: "g1",
		UserID:        "u2",
		UserName:      "Sara",
	}
	engine.ExecuteOptimistically(context.Background(), join, func(ctx context.Context) error {
		<-block
		return nil
	})

	// Wait out the create's eviction
	require.Eventually(t, func() bool {
		_, found := engine.Journal.Get(create.ID())
		return !found
	}, time.Second, 5*time.Millisecond)

	got, found := engine.Overlay.OptimisticGroup("g1")
	require.True(t, found, "the overlay entry must not be dropped under a pending operation")
	assert.Equal(t, 2, got.MemberCount)

	// Once the join completes and its hold elapses, the entry is dropped
	close(block)
	require.Eventually(t, func() bool {
		_, found := engine.Overlay.OptimisticGroup("g1")
		return !found
	}, time.Second, 5*time.Millisecond)
}

func TestOperationsOnDifferentGroupsDoNotInterfere(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.SuccessHold = time.Minute // keep the confirmed entry around for the assertion

	engine.Overlay.Apply(createOp(testGroup("a", "u1")))
	engine.Overlay.Apply(createOp(testGroup("b", "u1")))

	joinA := models.JoinGroup{OperationMeta: models.NewOperationMeta(), TargetGroupID: "a", UserID: "u2"}
	joinB := models.JoinGroup{OperationMeta: models.NewOperationMeta(), TargetGroupID: "b", UserID: "u3"}

	engine.ExecuteOptimistically(context.Background(), joinA, func(ctx context.Context) error {
		return errors.New("boom")
	})
	engine.ExecuteOptimistically(context.Background(), joinB, func(ctx context.Context) error {
		return nil
	})
	engine.Wait()

	a, _ := engine.Overlay.OptimisticGroup("a")
	b, _ := engine.Overlay.OptimisticGroup("b")
	assert.Equal(t, 1, a.MemberCount, "failed join on a rolled back")
	assert.Equal(t, 2, b.MemberCount, "successful join on b kept")
}
