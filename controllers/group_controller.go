package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"ridepool_server/models"
	"ridepool_server/services"

	"github.com/gorilla/mux"
)

// GroupStore is the authoritative store surface the controller wraps into
// remote actions for the reconciliation engine
type GroupStore interface {
	CreateGroup(ctx context.Context, group models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	AddMember(ctx context.Context, groupID, userID, userName string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	UpdateGroup(ctx context.Context, group models.Group) error
	DeleteGroup(ctx context.Context, groupID, userID string) error
}

// GroupController handles HTTP requests for ride group operations. Mutating
// endpoints submit operations through the reconciliation engine and answer
// with the optimistic result before the store confirms.
type GroupController struct {
	Engine *services.ReconciliationEngine
	Store  GroupStore
	Match  *services.MatchService
}

// NewGroupController creates a new GroupController instance
func NewGroupController(engine *services.ReconciliationEngine, store GroupStore, match *services.MatchService) *GroupController {
	return &GroupController{Engine: engine, Store: store, Match: match}
}

// operationMeta honors a caller-supplied operation id, minting one otherwise
func operationMeta(operationID string) models.OperationMeta {
	meta := models.NewOperationMeta()
	if operationID != "" {
		meta.OperationID = operationID
	}
	return meta
}

func (gc *GroupController) respondSubmitted(w http.ResponseWriter, op models.Operation, submitted bool, payload interface{}) {
	if !submitted {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"operationId": op.ID(),
			"message":     "Operation already submitted",
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"operationId": op.ID(),
		"result":      payload,
	})
}

// CreateGroup handles creating a new ride group optimistically
func (gc *GroupController) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CreatorID       string  `json:"creatorId"`
		CreatorName     string  `json:"creatorName"`
		DestinationName string  `json:"destinationName"`
		PickupLat       float64 `json:"pickupLat"`
		PickupLng       float64 `json:"pickupLng"`
		OperationID     string  `json:"operationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.CreatorID == "" || body.DestinationName == "" {
		http.Error(w, "creatorId and destinationName are required", http.StatusBadRequest)
		return
	}

	group := models.NewGroup(body.CreatorID, body.CreatorName, body.DestinationName, body.PickupLat, body.PickupLng)
	op := models.CreateGroup{
		OperationMeta:   operationMeta(body.OperationID),
		OptimisticGroup: group,
		UserID:          body.CreatorID,
	}

	submitted := gc.Engine.ExecuteOptimistically(r.Context(), op, func(ctx context.Context) error {
		return gc.Store.CreateGroup(ctx, group)
	})
	gc.respondSubmitted(w, op, submitted, group)
}

// JoinGroup handles joining an existing group optimistically
func (gc *GroupController) JoinGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]

	var body struct {
		UserID      string `json:"userId"`
		UserName    string `json:"userName"`
		OperationID string `json:"operationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	op := models.JoinGroup{
		OperationMeta: operationMeta(body.OperationID),
		TargetGroupID: groupID,
		UserID:        body.UserID,
		UserName:      body.UserName,
	}

	submitted := gc.Engine.ExecuteOptimistically(r.Context(), op, func(ctx context.Context) error {
		return gc.Store.AddMember(ctx, groupID, body.UserID, body.UserName)
	})
	gc.respondSubmitted(w, op, submitted, map[string]string{"groupId": groupID, "userId": body.UserID})
}

// LeaveGroup handles leaving a group optimistically
func (gc *GroupController) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]

	var body struct {
		UserID      string `json:"userId"`
		OperationID string `json:"operationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	op := models.LeaveGroup{
		OperationMeta: operationMeta(body.OperationID),
		TargetGroupID: groupID,
		UserID:        body.UserID,
	}

	submitted := gc.Engine.ExecuteOptimistically(r.Context(), op, func(ctx context.Context) error {
		return gc.Store.RemoveMember(ctx, groupID, body.UserID)
	})
	gc.respondSubmitted(w, op, submitted, map[string]string{"groupId": groupID, "userId": body.UserID})
}

// UpdateGroup handles replacing a group's data optimistically
func (gc *GroupController) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]

	var body struct {
		Group       models.Group `json:"group"`
		OperationID string       `json:"operationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Group.GroupID != groupID {
		http.Error(w, "group id mismatch", http.StatusBadRequest)
		return
	}

	op := models.UpdateGroup{
		OperationMeta: operationMeta(body.OperationID),
		TargetGroupID: groupID,
		UpdatedGroup:  body.Group,
	}

	submitted := gc.Engine.ExecuteOptimistically(r.Context(), op, func(ctx context.Context) error {
		return gc.Store.UpdateGroup(ctx, body.Group)
	})
	gc.respondSubmitted(w, op, submitted, body.Group)
}

// DeleteGroup handles deleting a group optimistically
func (gc *GroupController) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	op := models.DeleteGroup{
		OperationMeta: operationMeta(r.URL.Query().Get("operationId")),
		TargetGroupID: groupID,
		UserID:        userID,
	}

	submitted := gc.Engine.ExecuteOptimistically(r.Context(), op, func(ctx context.Context) error {
		return gc.Store.DeleteGroup(ctx, groupID, userID)
	})
	gc.respondSubmitted(w, op, submitted, map[string]string{"groupId": groupID})
}

// ListGroups returns the merged view: server truth overlaid with unconfirmed
// edits, expired groups filtered. With lat/lng it narrows to nearby groups.
func (gc *GroupController) ListGroups(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if query.Get("lat") != "" && query.Get("lng") != "" {
		lat, errLat := strconv.ParseFloat(query.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(query.Get("lng"), 64)
		if errLat != nil || errLng != nil {
			http.Error(w, "lat and lng must be numbers", http.StatusBadRequest)
			return
		}
		radius, _ := strconv.ParseFloat(query.Get("radius"), 64)

		groups, err := gc.Match.NearbyGroups(r.Context(), lat, lng, radius)
		if err != nil {
			http.Error(w, "Failed to fetch groups: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"groups": groups, "count": len(groups)})
		return
	}

	groups, err := gc.Match.MergedGroups(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch groups: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"groups": groups, "count": len(groups)})
}

// ListOperations returns the journal snapshot, for in-flight indicators
func (gc *GroupController) ListOperations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operations": gc.Engine.Journal.Snapshot(),
	})
}
