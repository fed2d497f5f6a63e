package services

import (
	"context"
	"sort"
	"time"

	"ridepool_server/models"
)

// GroupLister is the read side of the authoritative store
type GroupLister interface {
	ListGroups(ctx context.Context) ([]models.Group, error)
}

// MatchService finds joinable groups near a rider. It is a read-only consumer
// of the merged view and never mutates overlay state.
type MatchService struct {
	Groups  GroupLister
	Overlay *OptimisticOverlay
}

func NewMatchService(groups GroupLister, overlay *OptimisticOverlay) *MatchService {
	return &MatchService{Groups: groups, Overlay: overlay}
}

// MergedGroups returns the current merged view: server truth overlaid with
// unconfirmed local edits, expired groups filtered out.
func (s *MatchService) MergedGroups(ctx context.Context) ([]models.Group, error) {
	serverGroups, err := s.Groups.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	return s.Overlay.MergedView(serverGroups, time.Now()), nil
}

// NearbyGroups returns merged-view groups whose pickup point lies within
// radiusMeters of the given location, closest first. A non-positive radius
// falls back to the default search radius.
func (s *MatchService) NearbyGroups(ctx context.Context, lat, lng, radiusMeters float64) ([]models.Group, error) {
	if radiusMeters <= 0 {
		radiusMeters = models.DefaultSearchRadiusMeters
	}

	merged, err := s.MergedGroups(ctx)
	if err != nil {
		return nil, err
	}

	nearby := make([]models.Group, 0, len(merged))
	for _, g := range merged {
		if g.IsWithinRadius(lat, lng, radiusMeters) {
			nearby = append(nearby, g)
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters(lat, lng) < nearby[j].DistanceMeters(lat, lng)
	})
	return nearby, nil
}
