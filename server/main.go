package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tokgraph/tokgraph/server/internal/auth"
	"github.com/tokgraph/tokgraph/server/internal/database"
	"github.com/tokgraph/tokgraph/server/internal/handlers"
	"github.com/tokgraph/tokgraph/server/internal/middleware"
)

func main() {
	addUser := flag.String("adduser", "", "Create a user with the given name, print their API key, and exit")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	// Load configuration from environment
	port := getEnv("PORT", "8080")
	dbPath := getEnv("DB_PATH", "./tokgraph.db")

	db, err := database.Open(dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	if *addUser != "" {
		createUser(db, *addUser)
		return
	}

	h := handlers.New(db)
	limiter := middleware.NewIPRateLimiter(rate.Limit(5), 20)
	limiter.TrustForwardedFor = getEnv("TRUST_PROXY", "") == "true"

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.Health)
	mux.Handle("/api/submit", middleware.RequireAPIKey(db, http.HandlerFunc(h.Submit)))
	mux.Handle("/api/export", middleware.RequireAPIKey(db, http.HandlerFunc(h.Export)))

	handler := middleware.SecurityHeaders(limiter.Limit(mux))

	addr := ":" + port
	log.WithFields(log.Fields{"addr": addr, "db": dbPath}).Info("starting tokgraph-server")

	if err := http.ListenAndServe(addr, handler); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

func createUser(db *database.DB, name string) {
	userID := uuid.NewString()
	key, hash, err := auth.GenerateKey(userID)
	if err != nil {
		log.WithError(err).Fatal("failed to generate API key")
	}

	user := &database.User{
		ID:         userID,
		Name:       name,
		APIKeyHash: hash,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.CreateUser(user); err != nil {
		log.WithError(err).Fatal("failed to create user")
	}

	fmt.Printf("User created: %s (%s)\n", name, userID)
	fmt.Printf("API key (shown once, store it now): %s\n", key)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
