package services

import (
	"log"
	"sync"

	"ridepool_server/models"
)

// OperationJournal tracks every in-flight operation by its idempotence token.
// Entries are created Pending, move exactly once to a terminal state, and are
// evicted after their hold window. The reconciliation engine is the only
// writer; observers read point-in-time snapshots.
type OperationJournal struct {
	mu      sync.Mutex
	entries map[string]models.OperationState
}

func NewOperationJournal() *OperationJournal {
	return &OperationJournal{entries: make(map[string]models.OperationState)}
}

// Submit records a new Pending entry for the operation. If the id is already
// known the existing state is returned untouched and ok is false, which makes
// replays of a submitted or terminal operation a no-op for the caller.
func (j *OperationJournal) Submit(op models.Operation) (models.OperationState, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if existing, found := j.entries[op.ID()]; found {
		log.Printf("Ignoring duplicate submission of operation %s (status: %s)", op.ID(), existing.Status)
		return existing, false
	}

	state := models.OperationState{Operation: op, Status: models.OperationPending}
	j.entries[op.ID()] = state
	return state, true
}

// Transition moves a Pending entry to the given terminal state. A missing or
// already-terminal entry is logged and left unchanged.
func (j *OperationJournal) Transition(operationID string, state models.OperationState) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	existing, found := j.entries[operationID]
	if !found {
		log.Printf("No pending operation found for transition: %s", operationID)
		return false
	}
	if existing.Terminal() {
		log.Printf("Ignoring transition of terminal operation %s (status: %s)", operationID, existing.Status)
		return false
	}
	if !state.Terminal() {
		log.Printf("Rejecting non-terminal transition for operation %s", operationID)
		return false
	}

	j.entries[operationID] = state
	return true
}

// Evict removes an entry after its hold window
func (j *OperationJournal) Evict(operationID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.entries, operationID)
}

// Get returns the tracked state for an operation id
func (j *OperationJournal) Get(operationID string) (models.OperationState, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	state, found := j.entries[operationID]
	return state, found
}

// HasPendingFor reports whether any still-pending operation targets the group
func (j *OperationJournal) HasPendingFor(groupID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, state := range j.entries {
		if state.Status == models.OperationPending && state.Operation.GroupID() == groupID {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of every tracked operation, for in-flight indicators
func (j *OperationJournal) Snapshot() map[string]models.OperationState {
	j.mu.Lock()
	defer j.mu.Unlock()

	snapshot := make(map[string]models.OperationState, len(j.entries))
	for id, state := range j.entries {
		snapshot[id] = state
	}
	return snapshot
}
