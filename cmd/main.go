package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/desertthunder/stepsync/internal/services"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/store"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	ctx := context.Background()

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var kv store.Store
	if db, err := shared.NewDatabase(config.Database.Path); err != nil {
		logger.Debug("local store unavailable until setup runs", "error", err)
	} else {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			logger.Debug("local store unavailable until setup runs", "error", err)
			db.Close()
		} else {
			s := store.OpenDB(db)
			kv = s
			defer s.Close()
		}
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	auth := services.NewAuthenticator(config.Auth, httpClient)
	remote := services.NewDocumentService(config.Remote.BaseURL, config.Remote.Project, httpClient, auth)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: "config.toml",
		Store:      kv,
		Remote:     remote,
		Auth:       auth,
		OAuth:      auth,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	runner.restoreSession(ctx)

	app := &cli.Command{
		Name:     "stepsync",
		Usage:    "Offline-tolerant sync for dance figures and choreographies",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
