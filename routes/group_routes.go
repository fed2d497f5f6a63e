package routes

import (
	"ridepool_server/controllers"
	"ridepool_server/services"

	"github.com/gorilla/mux"
)

// RegisterGroupRoutes sets up routes for ride group operations under /api/groups
func RegisterGroupRoutes(r *mux.Router, engine *services.ReconciliationEngine, store controllers.GroupStore, match *services.MatchService) {
	controller := controllers.NewGroupController(engine, store, match)

	groupRouter := r.PathPrefix("/api/groups").Subrouter()

	groupRouter.HandleFunc("", controller.ListGroups).Methods("GET")
	groupRouter.HandleFunc("", controller.CreateGroup).Methods("POST")
	groupRouter.HandleFunc("/operations", controller.ListOperations).Methods("GET")
	groupRouter.HandleFunc("/{groupId}/join", controller.JoinGroup).Methods("POST")
	groupRouter.HandleFunc("/{groupId}/leave", controller.LeaveGroup).Methods("POST")
	groupRouter.HandleFunc("/{groupId}", controller.UpdateGroup).Methods("PUT")
	groupRouter.HandleFunc("/{groupId}", controller.DeleteGroup).Methods("DELETE")
}
