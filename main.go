package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"ridepool_server/controllers"
	"ridepool_server/models"
	"ridepool_server/routes"
	"ridepool_server/services"
	"ridepool_server/socket"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	// Initialize DynamoDB client and services
	log.Println("Initializing DynamoDB client...")
	dynamoClient := services.InitializeDynamoDBClient()
	dynamoService := &services.DynamoService{Client: dynamoClient}
	log.Println("DynamoDB client initialized.")

	groupsTable := getEnv("GROUPS_TABLE", models.GroupsTable)
	groupService := &services.GroupService{Dynamo: dynamoService, Table: groupsTable}

	// Socket.IO notification fan-out
	notifications := socket.NewNotificationServer()
	go func() {
		if err := notifications.Serve(); err != nil {
			log.Printf("Socket.IO server error: %v", err)
		}
	}()
	defer notifications.Close()

	// Reconciliation engine: overlay + journal constructed once, injected everywhere
	overlay := services.NewOptimisticOverlay()
	defer overlay.Close()
	journal := services.NewOperationJournal()
	engine := services.NewReconciliationEngine(overlay, journal, notifications)
	matchService := services.NewMatchService(groupService, overlay)

	// Authoritative expiration sweep, on its own schedule
	sweeper := services.NewSweeperService(dynamoService, groupsTable, services.NewSweepArchiveService())
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.Start(sweepCtx)

	// Set up the server port
	port := getEnv("PORT", "8080")
	log.Printf("Using server port: %s\n", port)

	// Initialize the router
	r := mux.NewRouter()

	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.Handle("/socket.io/", notifications.Server)

	// Register routes
	routes.RegisterGroupRoutes(r, engine, groupService, matchService)
	routes.RegisterDebugRoutes(r, groupService, sweeper, os.Getenv("DEBUG_KEY"))

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Adjust for specific domains if needed
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Debug-Key"},
		AllowCredentials: true,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", port)
	log.Fatal(http.ListenAndServe(":"+port, corsHandler))
}
