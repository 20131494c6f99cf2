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

// DineLine call service
//
// Entry point for the call-completion service. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to PostgreSQL, Redis and the order-event broker
//  3. Serves the voice provider webhook and /health
//  4. Handles graceful shutdown on SIGTERM/SIGINT, draining in-flight calls
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/dineline/callsvc/internal/app"
	"github.com/dineline/callsvc/internal/config"
	"github.com/dineline/callsvc/internal/webhook"
)

func main() {
	// Structured JSON logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("starting DineLine call service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	slog.Info("configuration loaded",
		"port", cfg.Port,
		"handler_timeout", cfg.HandlerTimeout,
		"backfill_delays", cfg.BackfillDelays,
		"events_driver", cfg.EventsDriver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise service", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	health := func(w http.ResponseWriter, r *http.Request) {
		if err := a.Health(r.Context()); err != nil {
			slog.Warn("health check failed", "error", err)
			http.Error(w, err.Error()+" unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	}

	handler := webhook.NewHandler(a.Pipeline, cfg.HandlerTimeout)
	ready, done, err := webhook.Serve(ctx, cfg.Port, handler, health)
	if err != nil {
		slog.Error("failed to start webhook server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("call service ready")

	<-ctx.Done()
	slog.Info("received shutdown signal")
	<-done

	slog.Info("call service stopped")
}
