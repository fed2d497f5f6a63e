package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Group defines the structure for a shared ride group
type Group struct {
	GroupID         string                `dynamodbav:"groupId" json:"groupId"`
	CreatorID       string                `dynamodbav:"creatorId" json:"creatorId"`
	CreatorName     string                `dynamodbav:"creatorName,omitempty" json:"creatorName,omitempty"`
	DestinationName string                `dynamodbav:"destinationName" json:"destinationName"`
	PickupLat       float64               `dynamodbav:"pickupLat" json:"pickupLat"`
	PickupLng       float64               `dynamodbav:"pickupLng" json:"pickupLng"`
	CreatedAt       int64                 `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt       int64                 `dynamodbav:"expiresAt" json:"expiresAt"`
	MaxMembers      int                   `dynamodbav:"maxMembers" json:"maxMembers"`
	Members         map[string]bool       `dynamodbav:"members,omitempty" json:"members,omitempty"`
	MemberDetails   map[string]MemberInfo `dynamodbav:"memberDetails,omitempty" json:"memberDetails,omitempty"`
	MemberCount     int                   `dynamodbav:"memberCount" json:"memberCount"`
}

// MemberInfo is a small profile snapshot stored per group member
type MemberInfo struct {
	Name     string `dynamodbav:"name" json:"name"`
	Phone    string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Avatar   string `dynamodbav:"avatar,omitempty" json:"avatar,omitempty"`
	JoinedAt int64  `dynamodbav:"joinedAt" json:"joinedAt"`
}

// NewGroup creates a group owned by the given user. The expiry is fixed at
// creation time and never recomputed.
func NewGroup(creatorID, creatorName, destinationName string, pickupLat, pickupLng float64) Group {
	now := time.Now().UnixMilli()
	return Group{
		GroupID:         uuid.New().String(),
		CreatorID:       creatorID,
		CreatorName:     creatorName,
		DestinationName: destinationName,
		PickupLat:       pickupLat,
		PickupLng:       pickupLng,
		CreatedAt:       now,
		ExpiresAt:       now + GroupTTL.Milliseconds(),
		MaxMembers:      DefaultMaxMembers,
		Members:         map[string]bool{creatorID: true},
		MemberDetails:   map[string]MemberInfo{creatorID: {Name: creatorName, JoinedAt: now}},
		MemberCount:     1,
	}
}

// IsExpired reports whether the group has outlived its TTL at the given time.
// Evaluated at read time so views stay fresh even before the sweeper runs.
func (g Group) IsExpired(now time.Time) bool {
	return now.UnixMilli() > g.ExpiresAt
}

// DistanceMeters returns the haversine great-circle distance from the given
// point to the group's pickup location.
func (g Group) DistanceMeters(lat, lng float64) float64 {
	lat1 := lat * math.Pi / 180
	lat2 := g.PickupLat * math.Pi / 180
	dLat := (g.PickupLat - lat) * math.Pi / 180
	dLng := (g.PickupLng - lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// IsWithinRadius reports whether the group's pickup point lies within
// radiusMeters of the given reference point.
func (g Group) IsWithinRadius(lat, lng, radiusMeters float64) bool {
	return g.DistanceMeters(lat, lng) <= radiusMeters
}

// Copy returns a deep copy of the group so overlay snapshots never share the
// member maps with callers.
func (g Group) Copy() Group {
	members := make(map[string]bool, len(g.Members))
	for id, present := range g.Members {
		members[id] = present
	}
	details := make(map[string]MemberInfo, len(g.MemberDetails))
	for id, info := range g.MemberDetails {
		details[id] = info
	}
	g.Members = members
	g.MemberDetails = details
	return g
}
