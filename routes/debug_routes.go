package routes

import (
	"ridepool_server/controllers"
	"ridepool_server/services"

	"github.com/gorilla/mux"
)

// RegisterDebugRoutes sets up the shared-secret administrative endpoint
func RegisterDebugRoutes(r *mux.Router, store services.GroupLister, sweeper controllers.SweepRunner, debugKey string) {
	controller := controllers.NewDebugController(store, sweeper, debugKey)

	r.HandleFunc("/debug/groups", controller.Handle).Methods("GET", "POST")
}
