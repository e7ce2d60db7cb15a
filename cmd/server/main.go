package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"rl-verifier/cmd"
	"rl-verifier/internal/api"
	"rl-verifier/internal/config"
	"rl-verifier/internal/database"
	"rl-verifier/internal/logging"
	"rl-verifier/internal/messaging"
	"rl-verifier/internal/verifier"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
)

func createServer(registry *verifier.Registry, db *gorm.DB, publisher messaging.Publisher, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Code verification runs one sandbox submission per test case.
	r.Use(middleware.Timeout(5 * time.Minute))

	apiHandler := api.NewRewardService(registry, db, publisher)
	apiHandler.AddRoutes(r)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	log.Println("Starting RL verifier server...")

	cmd.LoadEnvFile()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	logging.Setup(cfg.LogLevel, true)

	db, err := database.Open(cfg.DatabaseURL, cfg.AppDataDir)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	registry := verifier.NewRegistry(cfg.VerifierSettings())
	slog.Info("verifiers registered", "types", registry.SupportedTypes(), "format_verifier", cfg.UseFormatVerifier)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher, reciever := cmd.CreateEventQueue(cfg)

	// The recorder outlives the http server so events from in-flight requests
	// are still recorded during shutdown.
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()
	recorderDone := make(chan struct{})
	if reciever != nil {
		recorder := messaging.NewRecorder(db, reciever)
		go func() {
			defer close(recorderDone)
			recorder.Run(recorderCtx)
		}()
	} else {
		close(recorderDone)
	}

	server := createServer(registry, db, publisher, cfg.Port)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}
	}()

	slog.Info("rl verifier listening", "port", cfg.Port, "app_data_dir", cfg.AppDataDir)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v", cfg.Port, err)
	}
	<-shutdownDone

	// Closing the publisher closes an in-memory queue, which lets the recorder
	// finish what is buffered. RabbitMQ keeps unacked events for redelivery.
	if publisher != nil {
		publisher.Close()
	}
	if _, inMemory := reciever.(*messaging.InMemoryQueue); !inMemory {
		stopRecorder()
	}
	select {
	case <-recorderDone:
	case <-time.After(30 * time.Second):
		log.Println("Timed out waiting for reward recorder")
		stopRecorder()
		<-recorderDone
	}
	if reciever != nil {
		reciever.Close()
	}

	log.Println("Server stopped.")
}
