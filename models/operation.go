package models

import (
	"time"

	"github.com/google/uuid"
)

// Operation describes a single pending mutation against a ride group. The set
// of implementations is closed: CreateGroup, JoinGroup, LeaveGroup,
// UpdateGroup and DeleteGroup. Replaying an operation whose id already reached
// a terminal state is a no-op.
type Operation interface {
	// ID returns the idempotence token for this operation
	ID() string
	// GroupID returns the group the operation targets
	GroupID() string
	// OccurredAt returns when the operation was built (informational only)
	OccurredAt() int64

	isOperation()
}

// OperationMeta carries the fields shared by every operation variant
type OperationMeta struct {
	OperationID string `json:"operationId"`
	Timestamp   int64  `json:"timestamp"`
}

// NewOperationMeta mints a fresh operation id
func NewOperationMeta() OperationMeta {
	return OperationMeta{
		OperationID: uuid.New().String(),
		Timestamp:   time.Now().UnixMilli(),
	}
}

func (m OperationMeta) ID() string        { return m.OperationID }
func (m OperationMeta) OccurredAt() int64 { return m.Timestamp }

// CreateGroup inserts a brand-new group into the optimistic view
type CreateGroup struct {
	OperationMeta
	OptimisticGroup Group  `json:"optimisticGroup"`
	UserID          string `json:"userId"`
}

func (op CreateGroup) GroupID() string { return op.OptimisticGroup.GroupID }
func (CreateGroup) isOperation()       {}

// JoinGroup adds a member to an existing group
type JoinGroup struct {
	OperationMeta
	TargetGroupID string `json:"groupId"`
	UserID        string `json:"userId"`
	UserName      string `json:"userName"`
}

func (op JoinGroup) GroupID() string { return op.TargetGroupID }
func (JoinGroup) isOperation()       {}

// LeaveGroup removes a member from a group
type LeaveGroup struct {
	OperationMeta
	TargetGroupID string `json:"groupId"`
	UserID        string `json:"userId"`
}

func (op LeaveGroup) GroupID() string { return op.TargetGroupID }
func (LeaveGroup) isOperation()       {}

// UpdateGroup replaces a group's data wholesale
type UpdateGroup struct {
	OperationMeta
	TargetGroupID string `json:"groupId"`
	UpdatedGroup  Group  `json:"updatedGroup"`
}

func (op UpdateGroup) GroupID() string { return op.TargetGroupID }
func (UpdateGroup) isOperation()       {}

// DeleteGroup removes a group entirely
type DeleteGroup struct {
	OperationMeta
	TargetGroupID string `json:"groupId"`
	UserID        string `json:"userId"`
}

func (op DeleteGroup) GroupID() string { return op.TargetGroupID }
func (DeleteGroup) isOperation()       {}

// OperationStatus is the lifecycle phase of a tracked operation
type OperationStatus string

const (
	OperationPending OperationStatus = "pending"
	OperationSuccess OperationStatus = "success"
	OperationFailed  OperationStatus = "failed"
)

// OperationState tracks one operation from submission until eviction. It is
// created Pending and transitions exactly once to Success or Failed.
type OperationState struct {
	Operation   Operation       `json:"operation"`
	Status      OperationStatus `json:"status"`
	ServerData  any             `json:"serverData,omitempty"`
	Error       string          `json:"error,omitempty"`
	ShouldRetry bool            `json:"shouldRetry,omitempty"`
}

// Terminal reports whether the state can no longer transition
func (s OperationState) Terminal() bool {
	return s.Status == OperationSuccess || s.Status == OperationFailed
}
