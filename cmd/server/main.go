package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rpattn/equipreg/internal/config"
	"github.com/rpattn/equipreg/internal/db"
	"github.com/rpattn/equipreg/internal/domain"
	"github.com/rpattn/equipreg/internal/exporter"
	"github.com/rpattn/equipreg/internal/importer"
	"github.com/rpattn/equipreg/internal/middleware"
	"github.com/rpattn/equipreg/internal/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database, cfg.Server.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	uow := repository.NewUnitOfWork(conn.Pool, logger)
	runRepo := repository.NewImportRunRepository(conn.Pool)
	controllerRepo := repository.NewControllerRepository(conn.Pool)

	importService := importer.NewService(uow, runRepo, logger)
	exportService := exporter.NewService(controllerRepo, logger)

	importDefaults := domain.ImportOptions{
		DuplicateHandling:   domain.DuplicateSkip,
		BackgroundThreshold: cfg.Import.BackgroundThreshold,
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	logged := middleware.LoggingMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/api/imports", importer.NewHTTPHandler(importService, importDefaults))
	mux.Handle("/api/imports/", importer.NewHTTPHandler(importService, importDefaults))
	mux.Handle("/api/exports/controllers", exporter.NewHTTPHandler(exportService, cfg.Export.RowLimit))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(logged(mux)),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
