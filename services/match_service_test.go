package services

import (
	"context"
	"testing"

	"ridepool_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	groups []models.Group
}

func (s *staticLister) ListGroups(ctx context.Context) ([]models.Group, error) {
	return s.groups, nil
}

func TestNearbyGroupsFiltersAndSorts(t *testing.T) {
	overlay := NewOptimisticOverlay()
	defer overlay.Close()

	near := testGroup("near", "u1")
	near.PickupLat, near.PickupLng = 9.0110, 38.7613 // ~22m away

	edge := testGroup("edge", "u2")
	edge.PickupLat, edge.PickupLng = 9.0140, 38.7613 // ~355m away

	far := testGroup("far", "u3")
	far.PickupLat, far.PickupLng = 9.0300, 38.7613 // ~2km away

	match := NewMatchService(&staticLister{groups: []models.Group{far, edge, near}}, overlay)

	got, err := match.NearbyGroups(context.Background(), 9.0108, 38.7613, 0)
	require.NoError(t, err)

	require.Len(t, got, 2, "groups beyond the default radius are excluded")
	assert.Equal(t, "near", got[0].GroupID, "results are ordered closest first")
	assert.Equal(t, "edge", got[1].GroupID)
}

func TestNearbyGroupsSeesOptimisticCreations(t *testing.T) {
	overlay := NewOptimisticOverlay()
	defer overlay.Close()

	created := testGroup("unconfirmed", "u1")
	created.PickupLat, created.PickupLng = 9.0110, 38.7613
	overlay.Apply(createOp(created))

	match := NewMatchService(&staticLister{}, overlay)

	got, err := match.NearbyGroups(context.Background(), 9.0108, 38.7613, models.DefaultSearchRadiusMeters)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "unconfirmed", got[0].GroupID)
}
