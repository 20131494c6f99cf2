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

// Package app connects the service's stores, API clients and brokers and
// assembles the call pipeline. Both the server and the replay command
// start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/dineline/callsvc/internal/backfill"
	"github.com/dineline/callsvc/internal/config"
	"github.com/dineline/callsvc/internal/dedup"
	"github.com/dineline/callsvc/internal/extract"
	"github.com/dineline/callsvc/internal/functions"
	"github.com/dineline/callsvc/internal/notify"
	"github.com/dineline/callsvc/internal/orders"
	"github.com/dineline/callsvc/internal/pipeline"
	"github.com/dineline/callsvc/internal/provider"
	"github.com/dineline/callsvc/internal/queue"
	"github.com/dineline/callsvc/internal/summarize"
	"github.com/dineline/callsvc/internal/tenant"
)

const apiTimeout = 30 * time.Second

// App holds the connected collaborators.
type App struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Tenants   *tenant.PGStore
	Orders    *orders.PGStore
	Resolver  *tenant.Resolver
	Calls     *provider.Client
	Claims    *dedup.Filter
	Notifier  *notify.Notifier // nil when no email API key is configured
	Publisher queue.Publisher
	Pipeline  *pipeline.Pipeline
}

// New connects to PostgreSQL, Redis and the configured event broker and
// builds the pipeline.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	// --- PostgreSQL ---
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create Postgres pool: %w", err)
	}
	a.Pool = pool
	if err := pool.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	if a.Tenants, err = tenant.NewPGStore(ctx, pool); err != nil {
		a.Close()
		return nil, err
	}
	if a.Orders, err = orders.NewPGStore(ctx, pool); err != nil {
		a.Close()
		return nil, err
	}

	// --- Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	a.Redis = redis.NewClient(opt)
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}
	slog.Info("connected to Redis")
	a.Claims = dedup.NewFilter(a.Redis)

	// --- Order events ---
	if a.Publisher, err = newPublisher(ctx, cfg, a.Redis); err != nil {
		a.Close()
		return nil, err
	}

	// --- API clients ---
	a.Calls = provider.NewClient(bearerClient(ctx, cfg.VapiAPIKey), cfg.VapiBaseURL)
	if cfg.VapiAPIKey == "" {
		slog.Warn("VAPI_API_KEY not set, call backfill will fail")
	}

	var summarizer extract.Summarizer
	if cfg.LLMAPIKey != "" {
		summarizer = summarize.NewClient(bearerClient(ctx, cfg.LLMAPIKey), cfg.LLMBaseURL, cfg.LLMModel)
	} else {
		slog.Warn("OPENAI_API_KEY not set, summaries use templates only")
	}

	var notifier pipeline.Notifier
	if cfg.EmailAPIKey != "" {
		a.Notifier = notify.New(notify.Config{
			Sender:       notify.NewClient(bearerClient(ctx, cfg.EmailAPIKey), cfg.EmailBaseURL),
			Claims:       a.Claims,
			From:         cfg.EmailFrom,
			DashboardURL: cfg.AppURL,
			Attempts:     cfg.NotifyAttempts,
			BaseDelay:    cfg.NotifyBaseDelay,
		})
		notifier = a.Notifier
	} else {
		slog.Warn("RESEND_API_KEY not set, kitchen tickets disabled")
	}

	// --- Pipeline ---
	a.Resolver = tenant.NewResolver(a.Tenants)
	a.Pipeline = pipeline.New(pipeline.Deps{
		Tenants:   a.Resolver,
		Backfill:  backfill.New(backfill.Config{Client: a.Calls, Delays: cfg.BackfillDelays}),
		Extractor: extract.New(summarizer),
		Orders:    a.Orders,
		Persister: orders.NewPersister(a.Orders, a.Resolver),
		Notifier:  notifier,
		Functions: functions.NewResponder(a.Tenants, nil),
		Publisher: a.Publisher,
	})
	return a, nil
}

// Health pings PostgreSQL and Redis.
func (a *App) Health(ctx context.Context) error {
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := a.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

// Close releases every connection. It is safe on a partially built App.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			slog.Warn("failed to close event publisher", "error", err)
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func newPublisher(ctx context.Context, cfg *config.Config, rdb *redis.Client) (queue.Publisher, error) {
	switch cfg.EventsDriver {
	case config.DriverAMQP:
		conn, err := queue.DialWithRetry(ctx, queue.DialOptions{
			URL:           cfg.AMQPURL,
			RetryAttempts: 5,
			Delay:         time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to AMQP broker: %w", err)
		}
		pub, err := queue.NewAMQPPublisher(conn, cfg.EventsExchange)
		if err != nil {
			conn.Close()
			return nil, err
		}
		slog.Info("order events go to AMQP", "exchange", cfg.EventsExchange)
		return pub, nil
	case config.DriverRedis:
		slog.Info("order events go to Redis", "queue", cfg.EventsQueue)
		return queue.NewRedisPublisher(rdb, cfg.EventsQueue), nil
	}
	slog.Info("order events disabled")
	return queue.Nop{}, nil
}

// bearerClient returns an HTTP client that sends key as a bearer token.
func bearerClient(ctx context.Context, key string) *http.Client {
	base := &http.Client{Timeout: apiTimeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: key,
		TokenType:   "Bearer",
	}))
}
