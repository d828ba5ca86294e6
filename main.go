package main

import (
	"net/http"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"compliancedocs/config/database"
	"compliancedocs/pkg/logger"
	"compliancedocs/router"
	"compliancedocs/socket"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	db := database.Connect()
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Sugar.Fatalf("Failed to run schema migration: %v", err)
	}

	// The hub fans domain events out to connected reviewers/contributors.
	hub := socket.NewHub(db)
	go hub.Run()

	handler, svc := router.Setup(db, hub)

	// Background expiry sweep, in addition to the on-demand endpoint.
	go svc.ExpiryWorker(time.Hour)

	logger.Sugar.Info("Compliance folder engine listening on :8080")
	if err := http.ListenAndServe(":8080", handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
