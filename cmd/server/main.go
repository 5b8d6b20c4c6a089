// Command server runs the phenotype evaluation HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/VarenyaJ/P5/internal/api"
	"github.com/VarenyaJ/P5/internal/config"
	"github.com/VarenyaJ/P5/internal/database"
	"github.com/VarenyaJ/P5/internal/logging"
	"github.com/VarenyaJ/P5/internal/storage"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	log.Printf("Starting P5 evaluation server on %s:%d (storage: %s)",
		cfg.Server.Host, cfg.Server.Port, cfg.Storage.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store storage.Store
		db    *database.DB
	)
	switch cfg.Storage.Backend {
	case "postgres":
		runner, err := database.NewMigrationRunner(
			configManager.PostgresURL(), cfg.Storage.Postgres.MigrationsPath, logger)
		if err != nil {
			log.Fatalf("Failed to prepare migrations: %v", err)
		}
		if err := runner.Up(); err != nil {
			log.Fatalf("Failed to migrate report schema: %v", err)
		}
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("closing migration runner")
		}

		pg := cfg.Storage.Postgres
		db, err = database.NewConnection(ctx, database.Config{
			Host:        pg.Host,
			Port:        pg.Port,
			Database:    pg.Database,
			Username:    pg.Username,
			Password:    pg.Password,
			SSLMode:     pg.SSLMode,
			MaxConns:    pg.MaxConns,
			MinConns:    pg.MinConns,
			MaxConnLife: pg.ConnMaxLifetime,
			MaxConnIdle: pg.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to connect to report database: %v", err)
		}
		defer db.Close()

		store, err = storage.NewPostgresStoreFromDSN(configManager.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to open report store: %v", err)
		}
	default:
		store, err = storage.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open report store: %v", err)
		}
	}
	defer store.Close()

	server := api.NewServer(cfg, logger, store, db)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	log.Println("Server stopped")
}
