package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"medtracker-go/internal/handlers"
	"medtracker-go/internal/metrics"
	"medtracker-go/internal/models"
	"medtracker-go/internal/notify"
	"medtracker-go/internal/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	// Redis Configuration (live event feed)
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDBStr := os.Getenv("REDIS_DB")
	redisDB := 0
	if redisDBStr != "" {
		if db, err := strconv.Atoi(redisDBStr); err == nil {
			redisDB = db
		}
	}

	eventStore := store.NewRedisStore(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// PostgreSQL Configuration
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pgStore, err := store.NewPostgresStore(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	ctx := context.Background()
	if err := pgStore.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// NFC tracking auth token
	authToken := os.Getenv("MEDTRACKER_TOKEN")
	if authToken == "" {
		authToken, err = models.GenerateToken()
		if err != nil {
			log.Fatalf("Failed to generate auth token: %v", err)
		}
		log.Printf("Generated temporary auth token: %s", authToken)
		log.Println("Set MEDTRACKER_TOKEN environment variable for production use")
	}

	// VAPID keys for web push
	vapidPrivateKey := os.Getenv("VAPID_PRIVATE_KEY")
	vapidPublicKey := os.Getenv("VAPID_PUBLIC_KEY")
	if vapidPrivateKey == "" || vapidPublicKey == "" {
		log.Println("VAPID keys not found in environment. Generating new keys...")
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			// The dispatcher refuses to send without keys, everything else
			// keeps working.
			log.Printf("Failed to generate VAPID keys: %v (push notifications disabled)", err)
		} else {
			vapidPrivateKey = privateKey
			vapidPublicKey = publicKey
			log.Printf("Generated VAPID Keys:\nVAPID_PRIVATE_KEY=%s\nVAPID_PUBLIC_KEY=%s\n(Add these to your .env file to persist them)", privateKey, publicKey)
		}
	}

	subscriber := os.Getenv("MEDTRACKER_SUBSCRIBER")
	if subscriber == "" {
		subscriber = "mailto:medtracker@localhost"
	}
	alertOutOfStock := os.Getenv("MEDTRACKER_ALERT_OUT_OF_STOCK") == "true"

	// Reminder subsystem
	m := metrics.New("medtracker")
	dispatcher := notify.NewDispatcher(pgStore, vapidPrivateKey, vapidPublicKey, subscriber, m)
	evaluator := notify.NewEvaluator(pgStore, pgStore, eventStore, dispatcher, m, alertOutOfStock)
	scheduler := notify.NewScheduler(evaluator, m)
	scheduler.Start()

	h := handlers.NewHandler(pgStore, eventStore, dispatcher, scheduler, m, authToken)

	// Tracking and status routes
	http.HandleFunc("/track", h.TrackHandler)
	http.HandleFunc("/status", h.StatusHandler)
	http.HandleFunc("/settings", h.SettingsHandler)
	http.HandleFunc("/history", h.HistoryHandler)

	// Push notification routes
	http.HandleFunc("/subscribe", h.SubscribeHandler)
	http.HandleFunc("/vapid-public-key", h.VAPIDKeyHandler)
	http.HandleFunc("/test-notification", h.TestNotificationHandler)

	// Live feed and operational routes
	http.HandleFunc("/events", h.SSEHandler)
	http.HandleFunc("/events/recent", h.RecentEventsHandler)
	http.HandleFunc("/health", h.HealthHandler)
	http.Handle("/metrics", promhttp.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Listening on :" + port)
	log.Printf("NFC URL: http://localhost:%s/track?med_id=daily_pill&token=%s", port, authToken)

	go func() {
		if err := http.ListenAndServe(":"+port, nil); err != nil {
			log.Fatal(err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	scheduler.Stop()
	log.Println("Shutting down")
}
