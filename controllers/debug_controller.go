package controllers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"ridepool_server/models"
	"ridepool_server/services"
)

// SweepRunner triggers one authoritative cleanup pass
type SweepRunner interface {
	SweepOnce(ctx context.Context, now time.Time) (services.SweepReport, error)
}

// DebugController exposes the shared-secret administrative surface over the
// raw stored groups: listing, stats, and a manual cleanup trigger.
type DebugController struct {
	Store   services.GroupLister
	Sweeper SweepRunner
	Key     string
}

// NewDebugController creates a new DebugController instance
func NewDebugController(store services.GroupLister, sweeper SweepRunner, key string) *DebugController {
	return &DebugController{Store: store, Sweeper: sweeper, Key: key}
}

type debugGroupEntry struct {
	ID              string `json:"id"`
	DestinationName string `json:"destinationName"`
	MemberCount     int    `json:"memberCount"`
	CreatedAt       int64  `json:"createdAt"`
	ExpiresAt       int64  `json:"expiresAt"`
	IsExpired       bool   `json:"isExpired"`
	Location        latLng `json:"location"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Handle dispatches on the action query parameter after checking the debug key
func (dc *DebugController) Handle(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("debug_key")
	if key == "" {
		key = r.Header.Get("X-Debug-Key")
	}
	if dc.Key == "" || key != dc.Key {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":   "Unauthorized",
			"message": "Invalid debug key",
		})
		return
	}

	action := r.URL.Query().Get("action")
	if action == "" {
		action = "list"
	}

	switch action {
	case "list":
		dc.handleList(w, r)
	case "stats":
		dc.handleStats(w, r)
	case "cleanup":
		dc.handleCleanup(w, r)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid action"})
	}
}

// effectiveExpiry mirrors the sweeper's fallback for groups stored without an
// explicit expiry
func effectiveExpiry(g models.Group) int64 {
	if g.ExpiresAt != 0 {
		return g.ExpiresAt
	}
	return g.CreatedAt + models.GroupTTL.Milliseconds()
}

func (dc *DebugController) handleList(w http.ResponseWriter, r *http.Request) {
	groups, err := dc.Store.ListGroups(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	now := time.Now().UnixMilli()
	entries := make([]debugGroupEntry, 0, len(groups))
	activeCount := 0
	expiredCount := 0

	for _, g := range groups {
		expiresAt := effectiveExpiry(g)
		isExpired := now > expiresAt
		if isExpired {
			expiredCount++
		} else {
			activeCount++
		}
		entries = append(entries, debugGroupEntry{
			ID:              g.GroupID,
			DestinationName: g.DestinationName,
			MemberCount:     g.MemberCount,
			CreatedAt:       g.CreatedAt,
			ExpiresAt:       expiresAt,
			IsExpired:       isExpired,
			Location:        latLng{Lat: g.PickupLat, Lng: g.PickupLng},
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups":       entries,
		"count":        len(entries),
		"activeCount":  activeCount,
		"expiredCount": expiredCount,
	})
}

func (dc *DebugController) handleStats(w http.ResponseWriter, r *http.Request) {
	groups, err := dc.Store.ListGroups(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	now := time.Now().UnixMilli()
	totalGroups := len(groups)
	activeGroups := 0
	expiredGroups := 0
	totalMembers := 0

	for _, g := range groups {
		totalMembers += g.MemberCount
		if now > effectiveExpiry(g) {
			expiredGroups++
		} else {
			activeGroups++
		}
	}

	averageMemberCount := 0.0
	if totalGroups > 0 {
		averageMemberCount = math.Round(float64(totalMembers)/float64(totalGroups)*100) / 100
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalGroups":        totalGroups,
		"activeGroups":       activeGroups,
		"expiredGroups":      expiredGroups,
		"averageMemberCount": averageMemberCount,
		"lastUpdated":        now,
	})
}

func (dc *DebugController) handleCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := dc.Sweeper.SweepOnce(r.Context(), time.Now())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       fmt.Sprintf("Cleaned up %d expired groups", report.DeletedCount),
		"deletedCount":  report.DeletedCount,
		"deletedGroups": report.DeletedGroups,
	})
}
