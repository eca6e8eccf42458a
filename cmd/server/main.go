package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/rpattn/bitemporal/internal/activityloader"
	"github.com/rpattn/bitemporal/internal/api"
	"github.com/rpattn/bitemporal/internal/config"
	"github.com/rpattn/bitemporal/internal/db"
	"github.com/rpattn/bitemporal/internal/export"
	"github.com/rpattn/bitemporal/internal/middleware"
	"github.com/rpattn/bitemporal/internal/repository"
	"github.com/rpattn/bitemporal/internal/temporal"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadDBConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn.Pool, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	documents, err := temporal.Register(temporal.TypeConfig{
		EntityTable:   "documents",
		EntityColumns: []string{"id", "title", "body", "status", "vclock"},
		Fields: []temporal.FieldConfig{
			{Name: "title", SQLType: "text"},
			{Name: "body", SQLType: "text"},
			{Name: "status", SQLType: "text"},
		},
		ActivityTable: "document_activity",
		// Prefer the per-request dataloader when a request attached one;
		// fall back to a direct batch query otherwise.
		ActivityLoader: func(ctx context.Context, q temporal.Querier, ids []uuid.UUID) (map[uuid.UUID]any, error) {
			if loader := middleware.ActivityLoaderFromContext(ctx); loader != nil {
				return activityloader.LoadMany(ctx, loader, ids)
			}
			return activityloader.Batch(ctx, q, ids)
		},
	})
	if err != nil {
		log.Fatalf("Failed to register documents: %v", err)
	}

	notes, err := temporal.Register(temporal.TypeConfig{
		EntityTable:   "notes",
		EntityColumns: []string{"id", "title", "vclock"},
		Fields: []temporal.FieldConfig{
			{Name: "title", SQLType: "text"},
		},
	})
	if err != nil {
		log.Fatalf("Failed to register notes: %v", err)
	}

	for _, t := range []*temporal.Type{documents, notes} {
		if err := t.EnsureSchema(ctx, conn.Pool); err != nil {
			log.Fatalf("Failed to ensure temporal schema: %v", err)
		}
	}

	docRepo := repository.NewDocumentRepository(conn, documents)
	noteRepo := repository.NewNoteRepository(conn, notes)
	exporter := export.NewService(documents, conn.Pool)

	handler := api.NewHandler(docRepo, noteRepo, exporter)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	wrapped := middleware.LoggingMiddleware(
		middleware.ActivityLoaderMiddleware(conn.Pool)(handler),
	)

	server := &http.Server{
		Addr:         ":8080",
		Handler:      corsHandler.Handler(wrapped),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("Starting server on :8080")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
