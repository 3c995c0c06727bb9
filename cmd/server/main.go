// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// postmeet API server
//
// Entry point for the post-meeting automation service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Builds the oracle adapter, gate, mail transports and sync connectors
//  4. Serves the HTTP API, health and metrics endpoints
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/postmeet/internal/assets"
	"github.com/bcem/postmeet/internal/config"
	"github.com/bcem/postmeet/internal/connectors"
	"github.com/bcem/postmeet/internal/dedup"
	"github.com/bcem/postmeet/internal/dispatch"
	"github.com/bcem/postmeet/internal/events"
	"github.com/bcem/postmeet/internal/gate"
	"github.com/bcem/postmeet/internal/journal"
	"github.com/bcem/postmeet/internal/mail"
	"github.com/bcem/postmeet/internal/models"
	"github.com/bcem/postmeet/internal/oracle"
	"github.com/bcem/postmeet/internal/pipeline"
	"github.com/bcem/postmeet/internal/server"
	"github.com/bcem/postmeet/internal/session"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting postmeet service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"model", cfg.Oracle.Model,
		"oracle_rps", cfg.Oracle.RateLimit,
		"port", cfg.Port,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	publisher := events.NewPublisher(rdb, cfg.EventsQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Journal (Postgres) ---
	store, err := journal.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise journal", "error", err)
		os.Exit(1)
	}

	// --- Oracle ---
	gen, err := oracle.NewGeminiGenerator(ctx, cfg.Oracle)
	if err != nil {
		slog.Error("failed to create oracle client", "error", err)
		os.Exit(1)
	}
	adapter := oracle.NewAdapter(gen, cfg.Oracle.RateLimit, cfg.Oracle.Burst)

	// --- Sync Connectors ---
	calendar, err := connectors.NewCalendar(cfg.Providers.CalendarBaseURL, cfg.TimeZone)
	if err != nil {
		slog.Error("failed to create calendar connector", "error", err)
		os.Exit(1)
	}
	tasks := connectors.NewTasks(cfg.Providers.TasksBaseURL)

	// --- Pipeline ---
	svc := pipeline.NewService(pipeline.Config{
		Gate: gate.New(adapter),
		Senders: func(ctx context.Context, s *models.Session) dispatch.Sender {
			return mail.ForSession(ctx, cfg.Providers, s, time.Now())
		},
		Calendar: calendar,
		Tasks:    tasks,
		Journal:  store,
		Events:   publisher,
	})

	// --- HTTP API ---
	api := server.New(server.Config{
		Pipeline:    svc,
		Sessions:    session.NewStore(rdb, cfg.SessionPrefix),
		Submissions: dedup.NewGuard(rdb, cfg.SubmissionTTL),
		Assets:      assets.NewDriveLister(cfg.Providers.DriveBaseURL),
		Checks: map[string]server.Pinger{
			"redis":    publisher,
			"postgres": store,
		},
	})

	ready, err := server.Serve(ctx, cfg.Port, api)
	if err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("postmeet service ready", "port", cfg.Port)

	// --- Graceful Shutdown ---
	<-ctx.Done()
	slog.Info("received shutdown signal")

	// Shutdown waits for in-flight requests, so claimed sends finish.
	<-api.Stopped()
	slog.Info("postmeet service stopped")
}
