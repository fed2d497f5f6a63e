package services

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"ridepool_server/models"
)

// OverlaySnapshot is an immutable point-in-time view of the overlay state.
// Readers must not mutate it; every mutation publishes a fresh copy.
type OverlaySnapshot struct {
	Groups          map[string]models.Group
	PendingRemovals map[string]struct{}
}

type overlayMutation struct {
	mutate func(groups map[string]models.Group, removals map[string]struct{})
	done   chan struct{}
}

// OptimisticOverlay holds the speculative group edits layered over the last
// known server truth. All mutations funnel through a single owning goroutine
// reading a channel, which serializes concurrent operations on the same group
// instead of letting them race on a shared map entry. Apply and Rollback block
// until the mutation is acknowledged, so the caller's next read of the merged
// view reflects the edit.
type OptimisticOverlay struct {
	mutations chan overlayMutation
	snapshot  atomic.Pointer[OverlaySnapshot]
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewOptimisticOverlay() *OptimisticOverlay {
	o := &OptimisticOverlay{
		mutations: make(chan overlayMutation),
		stop:      make(chan struct{}),
	}
	o.snapshot.Store(&OverlaySnapshot{
		Groups:          map[string]models.Group{},
		PendingRemovals: map[string]struct{}{},
	})
	go o.run()
	return o
}

// run owns the overlay maps. Nothing else touches them.
func (o *OptimisticOverlay) run() {
	groups := map[string]models.Group{}
	removals := map[string]struct{}{}

	for {
		select {
		case m := <-o.mutations:
			m.mutate(groups, removals)
			o.publish(groups, removals)
			close(m.done)
		case <-o.stop:
			return
		}
	}
}

func (o *OptimisticOverlay) publish(groups map[string]models.Group, removals map[string]struct{}) {
	snap := &OverlaySnapshot{
		Groups:          make(map[string]models.Group, len(groups)),
		PendingRemovals: make(map[string]struct{}, len(removals)),
	}
	for id, g := range groups {
		snap.Groups[id] = g.Copy()
	}
	for id := range removals {
		snap.PendingRemovals[id] = struct{}{}
	}
	o.snapshot.Store(snap)
}

func (o *OptimisticOverlay) submit(mutate func(groups map[string]models.Group, removals map[string]struct{})) {
	m := overlayMutation{mutate: mutate, done: make(chan struct{})}
	select {
	case o.mutations <- m:
		<-m.done
	case <-o.stop:
	}
}

// Close stops the owning goroutine. Pending snapshot reads stay valid.
func (o *OptimisticOverlay) Close() {
	o.stopOnce.Do(func() { close(o.stop) })
}

// Apply performs the synchronous optimistic edit for an operation
func (o *OptimisticOverlay) Apply(op models.Operation) {
	o.submit(func(groups map[string]models.Group, removals map[string]struct{}) {
		applyEdit(op, groups, removals)
	})
	log.Printf("Applied optimistic edit for operation %s (group %s)", op.ID(), op.GroupID())
}

// Rollback reverses the optimistic edit after a remote failure
func (o *OptimisticOverlay) Rollback(op models.Operation) {
	o.submit(func(groups map[string]models.Group, removals map[string]struct{}) {
		rollbackEdit(op, groups, removals)
	})
	log.Printf("Rolled back optimistic edit for operation %s (group %s)", op.ID(), op.GroupID())
}

// ClearRemoval drops a confirmed leave/delete from the pending-removal mask
func (o *OptimisticOverlay) ClearRemoval(groupID string) {
	o.submit(func(groups map[string]models.Group, removals map[string]struct{}) {
		delete(removals, groupID)
	})
}

// DropGroup removes a now-redundant overlay entry once the server owns the
// group again (after the success hold window).
func (o *OptimisticOverlay) DropGroup(groupID string) {
	o.submit(func(groups map[string]models.Group, removals map[string]struct{}) {
		delete(groups, groupID)
	})
}

// Clear wipes all optimistic state, for full-refresh scenarios
func (o *OptimisticOverlay) Clear() {
	o.submit(func(groups map[string]models.Group, removals map[string]struct{}) {
		for id := range groups {
			delete(groups, id)
		}
		for id := range removals {
			delete(removals, id)
		}
	})
}

// Snapshot returns the current immutable overlay state
func (o *OptimisticOverlay) Snapshot() *OverlaySnapshot {
	return o.snapshot.Load()
}

// IsGroupOptimistic reports whether the group has unconfirmed local edits
func (o *OptimisticOverlay) IsGroupOptimistic(groupID string) bool {
	snap := o.Snapshot()
	if _, found := snap.Groups[groupID]; found {
		return true
	}
	_, removed := snap.PendingRemovals[groupID]
	return removed
}

// OptimisticGroup returns the speculative value for a group, if any
func (o *OptimisticOverlay) OptimisticGroup(groupID string) (models.Group, bool) {
	g, found := o.Snapshot().Groups[groupID]
	return g, found
}

// MergedView combines the server snapshot with the overlay: server groups not
// pending removal, overlay entries winning over server values, plus unconfirmed
// creations the server does not know yet. Groups past their TTL are filtered
// here at read time, even if the sweeper has not deleted them yet. Ordering is
// unspecified; callers sort as needed.
func (o *OptimisticOverlay) MergedView(serverGroups []models.Group, now time.Time) []models.Group {
	snap := o.Snapshot()
	merged := make(map[string]models.Group, len(serverGroups)+len(snap.Groups))

	for _, g := range serverGroups {
		if _, removed := snap.PendingRemovals[g.GroupID]; removed {
			continue
		}
		merged[g.GroupID] = g
	}
	for id, g := range snap.Groups {
		if _, removed := snap.PendingRemovals[id]; removed {
			continue
		}
		merged[id] = g
	}

	view := make([]models.Group, 0, len(merged))
	for _, g := range merged {
		if g.IsExpired(now) {
			continue
		}
		view = append(view, g)
	}
	return view
}

// applyEdit is the one-case-per-variant optimistic mutation. The switch is
// exhaustive over the sealed operation set; an unknown variant is a bug.
func applyEdit(op models.Operation, groups map[string]models.Group, removals map[string]struct{}) {
	switch op := op.(type) {
	case models.CreateGroup:
		groups[op.OptimisticGroup.GroupID] = op.OptimisticGroup.Copy()

	case models.JoinGroup:
		if g, found := groups[op.TargetGroupID]; found {
			g = g.Copy()
			g.Members[op.UserID] = true
			g.MemberDetails[op.UserID] = models.MemberInfo{Name: op.UserName, JoinedAt: op.Timestamp}
			g.MemberCount++
			groups[op.TargetGroupID] = g
		}

	case models.LeaveGroup:
		removals[op.TargetGroupID] = struct{}{}
		if g, found := groups[op.TargetGroupID]; found {
			g = g.Copy()
			delete(g.Members, op.UserID)
			delete(g.MemberDetails, op.UserID)
			if g.MemberCount > 0 {
				g.MemberCount--
			}
			groups[op.TargetGroupID] = g
		}

	case models.UpdateGroup:
		groups[op.TargetGroupID] = op.UpdatedGroup.Copy()

	case models.DeleteGroup:
		delete(groups, op.TargetGroupID)
		removals[op.TargetGroupID] = struct{}{}

	default:
		panic(fmt.Sprintf("unhandled operation type %T", op))
	}
}

// rollbackEdit is the algebraic inverse of applyEdit where the prior state is
// recoverable. UpdateGroup and DeleteGroup retain no pre-image, so their
// rollback only clears bookkeeping; the next server snapshot restores truth.
func rollbackEdit(op models.Operation, groups map[string]models.Group, removals map[string]struct{}) {
	switch op := op.(type) {
	case models.CreateGroup:
		delete(groups, op.OptimisticGroup.GroupID)

	case models.JoinGroup:
		// Reverses by group presence, not by whether the apply mutated:
		// a join applied while the group was absent is a no-op, but if the
		// group entered the overlay before the failure this still removes
		// the user and decrements. Mirrors the source behavior.
		if g, found := groups[op.TargetGroupID]; found {
			g = g.Copy()
			delete(g.Members, op.UserID)
			delete(g.MemberDetails, op.UserID)
			if g.MemberCount > 0 {
				g.MemberCount--
			}
			groups[op.TargetGroupID] = g
		}

	case models.LeaveGroup:
		delete(removals, op.TargetGroupID)
		if g, found := groups[op.TargetGroupID]; found {
			g = g.Copy()
			g.Members[op.UserID] = true
			// The removed MemberInfo is not retained; the server snapshot
			// restores the details on the next merge.
			g.MemberCount++
			groups[op.TargetGroupID] = g
		}

	case models.UpdateGroup:
		// No pre-image retained.

	case models.DeleteGroup:
		delete(removals, op.TargetGroupID)

	default:
		panic(fmt.Sprintf("unhandled operation type %T", op))
	}
}
