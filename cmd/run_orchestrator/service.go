package main

import (
	"context"
	"fmt"
	"log"

	"github.com/atelier-labs/hypothesis-runner/internal/config"
	"github.com/atelier-labs/hypothesis-runner/internal/db"
	"github.com/atelier-labs/hypothesis-runner/internal/db/memory"
	"github.com/atelier-labs/hypothesis-runner/internal/orchestration"
	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// loadConfig merges the optional JSON config file with the environment.
func loadConfig(configPath string) (*config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildService constructs the orchestration core over the configured store.
// The returned cleanup closes the database pool when one was opened.
func buildService(ctx context.Context, cfg *config.Config) (*orchestration.Service, func(), error) {
	var store orchestration.Store
	cleanup := func() {}

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store = database
		cleanup = database.Close
	} else {
		log.Println("DATABASE_URL not set; using in-memory store (state is not durable)")
		store = memory.NewStore()
	}

	extra := orchestration.TransitionTable{}
	for from, tos := range cfg.ExtraTransitions {
		for _, to := range tos {
			extra[types.Status(from)] = append(extra[types.Status(from)], types.Status(to))
		}
	}

	svc := orchestration.NewService(store, orchestration.ServiceConfig{
		TotalSlots:       cfg.TotalSlots,
		IdempotencyTTL:   cfg.IdempotencyTTL(),
		ExtraTransitions: extra,
		Sink:             orchestration.LogSink{},
	})
	return svc, cleanup, nil
}
