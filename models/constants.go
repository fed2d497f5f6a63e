package models

import "time"

// GroupsTable is the DynamoDB table name for ride groups
const GroupsTable = "RideGroups"

// Group lifecycle constants
const (
	// GroupTTL is the fixed lifespan of a group, set once at creation
	GroupTTL = 30 * time.Minute

	// DefaultMaxMembers is the group capacity when none is given
	DefaultMaxMembers = 4

	// SweepInterval is how often the sweeper deletes expired groups
	SweepInterval = 5 * time.Minute
)

// Proximity constants
const (
	// EarthRadiusMeters is the radius used by the haversine distance
	EarthRadiusMeters = 6371000.0

	// DefaultSearchRadiusMeters bounds the nearby-groups search
	DefaultSearchRadiusMeters = 500.0
)

// Reconciliation constants
const (
	// OperationTimeout bounds a single remote action
	OperationTimeout = 30 * time.Second

	// SuccessHoldWindow keeps a succeeded operation visible before eviction
	SuccessHoldWindow = 2 * time.Second

	// FailureHoldWindow keeps a failed operation visible before eviction
	FailureHoldWindow = 5 * time.Second
)
