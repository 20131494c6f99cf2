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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Event sink drivers.
const (
	DriverRedis = "redis"
	DriverAMQP  = "amqp"
	DriverNone  = "none"
)

// Config holds all configuration for the call service.
type Config struct {
	// Server
	Port           int
	HandlerTimeout time.Duration
	LogLevel       slog.Level

	// PostgreSQL
	DatabaseURL string

	// Redis (ticket claims, events)
	RedisURL string

	// Order events
	EventsDriver   string
	EventsQueue    string
	EventsExchange string
	AMQPURL        string

	// Voice provider call API
	VapiBaseURL string
	VapiAPIKey  string

	// Summarization
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Kitchen email
	EmailBaseURL string
	EmailAPIKey  string
	EmailFrom    string

	// Dashboard links in kitchen tickets
	AppURL string

	BackfillDelays  []time.Duration
	NotifyAttempts  int
	NotifyBaseDelay time.Duration
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Server struct {
		Port           int    `yaml:"port"`
		HandlerTimeout string `yaml:"handler_timeout"`
		LogLevel       string `yaml:"log_level"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Events struct {
		Driver   string `yaml:"driver"`
		Queue    string `yaml:"queue"`
		Exchange string `yaml:"exchange"`
		AMQPURL  string `yaml:"amqp_url"`
	} `yaml:"events"`
	Vapi struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"vapi"`
	LLM struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
	} `yaml:"llm"`
	Email struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		From    string `yaml:"from"`
	} `yaml:"email"`
	App struct {
		URL string `yaml:"url"`
	} `yaml:"app"`
	Backfill struct {
		Delays []string `yaml:"delays"`
	} `yaml:"backfill"`
	Notify struct {
		Attempts  int    `yaml:"attempts"`
		BaseDelay string `yaml:"base_delay"`
	} `yaml:"notify"`
}

// Load reads configuration from CONFIG_PATH (default
// /app/config/config.yaml) and the environment.
func Load() (*Config, error) {
	return LoadFile(envOrDefault("CONFIG_PATH", "/app/config/config.yaml"))
}

// LoadFile reads configuration from path. A missing file is not an error;
// every setting has an environment fallback.
func LoadFile(path string) (*Config, error) {
	var raw rawConfig

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("config file not found, using environment", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	default:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	cfg := &Config{
		Port:           firstPositive(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
		HandlerTimeout: durationOr(raw.Server.HandlerTimeout, envOrDefaultDuration("HANDLER_TIMEOUT", 60*time.Second)),
		DatabaseURL:    firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		RedisURL:       firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		EventsDriver:   strings.ToLower(firstNonEmpty(raw.Events.Driver, envOrDefault("EVENTS_DRIVER", DriverRedis))),
		EventsQueue:    firstNonEmpty(raw.Events.Queue, envOrDefault("EVENTS_QUEUE", "orders")),
		EventsExchange: firstNonEmpty(raw.Events.Exchange, envOrDefault("EVENTS_EXCHANGE", "dineline.orders")),
		AMQPURL:        firstNonEmpty(raw.Events.AMQPURL, os.Getenv("AMQP_URL")),
		VapiBaseURL:    firstNonEmpty(raw.Vapi.BaseURL, envOrDefault("VAPI_BASE_URL", "https://api.vapi.ai")),
		VapiAPIKey:     firstNonEmpty(raw.Vapi.APIKey, os.Getenv("VAPI_API_KEY")),
		LLMBaseURL:     firstNonEmpty(raw.LLM.BaseURL, os.Getenv("OPENAI_BASE_URL")),
		LLMAPIKey:      firstNonEmpty(raw.LLM.APIKey, os.Getenv("OPENAI_API_KEY")),
		LLMModel:       firstNonEmpty(raw.LLM.Model, os.Getenv("OPENAI_MODEL")),
		EmailBaseURL:   firstNonEmpty(raw.Email.BaseURL, os.Getenv("RESEND_BASE_URL")),
		EmailAPIKey:    firstNonEmpty(raw.Email.APIKey, os.Getenv("RESEND_API_KEY")),
		EmailFrom:      firstNonEmpty(raw.Email.From, os.Getenv("RESEND_FROM")),
		AppURL:         firstNonEmpty(raw.App.URL, os.Getenv("APP_URL")),
		NotifyAttempts: firstPositive(raw.Notify.Attempts, envOrDefaultInt("NOTIFY_ATTEMPTS", 3)),
	}
	cfg.NotifyBaseDelay = durationOr(raw.Notify.BaseDelay, envOrDefaultDuration("NOTIFY_BASE_DELAY", time.Second))

	level := firstNonEmpty(raw.Server.LogLevel, envOrDefault("LOG_LEVEL", "info"))
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	delays := raw.Backfill.Delays
	if len(delays) == 0 {
		delays = strings.Split(envOrDefault("BACKFILL_DELAYS", "0s,3s,5s"), ",")
	}
	for _, s := range delays {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid backfill delay %q", s)
		}
		cfg.BackfillDelays = append(cfg.BackfillDelays, d)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and the timeout budget.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (database.url or DATABASE_URL)")
	}

	switch c.EventsDriver {
	case DriverRedis, DriverNone:
	case DriverAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("events driver %q requires AMQP_URL", DriverAMQP)
		}
	default:
		return fmt.Errorf("unknown events driver %q", c.EventsDriver)
	}

	// Backfill sleeps happen inside the webhook request.
	if total := c.BackfillTotal(); c.HandlerTimeout <= total {
		return fmt.Errorf("handler timeout %s must exceed total backfill delay %s", c.HandlerTimeout, total)
	}
	return nil
}

// BackfillTotal is the sum of the backfill delays.
func (c *Config) BackfillTotal() time.Duration {
	var total time.Duration
	for _, d := range c.BackfillDelays {
		total += d
	}
	return total
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func durationOr(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
