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

// Package webhook receives the voice provider's server messages. Every
// delivery is processed inside the request and acknowledged with HTTP 200,
// so the provider never retries a call that is already being handled.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dineline/callsvc/internal/payload"
	"github.com/dineline/callsvc/internal/pipeline"
)

const maxBodyBytes = 5 << 20

// EventHandler processes one normalized event.
type EventHandler interface {
	Handle(ctx context.Context, ev payload.Event) pipeline.Reply
}

// Handler serves the webhook endpoint.
type Handler struct {
	events  EventHandler
	timeout time.Duration
}

// NewHandler creates a webhook handler. timeout bounds the processing of
// one delivery, backfill waits included.
func NewHandler(events EventHandler, timeout time.Duration) *Handler {
	return &Handler{events: events, timeout: timeout}
}

// ServeWebhook handles provider deliveries.
//
//   - OPTIONS is a CORS preflight and always succeeds
//   - a body that is not a JSON object is acknowledged with an error flag
//   - everything else is normalized and handed to the pipeline
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusOK, pipeline.Ack{OK: true})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		slog.Error("failed to read webhook body", "error", err)
		reply(w, pipeline.Invalid())
		return
	}

	ev, err := payload.Parse(body)
	if err != nil {
		slog.Warn("webhook body is not valid JSON", "body_len", len(body), "error", err)
		reply(w, pipeline.Invalid())
		return
	}

	// Work already committed stands even if the provider hangs up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	start := time.Now()
	rep := h.events.Handle(ctx, ev)
	slog.Debug("webhook handled",
		"event", fmt.Sprintf("%T", ev),
		"call_id", ev.Route().CallID,
		"status", rep.Status,
		"duration", time.Since(start),
	)
	reply(w, rep)
}

func reply(w http.ResponseWriter, rep pipeline.Reply) {
	writeJSON(w, rep.Status, rep.Body)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}

// Serve starts the HTTP server on the given port with the webhook routes
// and, when health is non-nil, a /health endpoint. It binds the port
// immediately and signals readiness via the returned channel. The server
// drains in-flight deliveries when ctx is cancelled.
func Serve(ctx context.Context, port int, handler *Handler, health http.HandlerFunc) (<-chan struct{}, <-chan struct{}, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/vapi/webhook", handler.ServeWebhook)
	mux.HandleFunc("/webhook", handler.ServeWebhook)
	if health != nil {
		mux.HandleFunc("/health", health)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      handler.timeout + 10*time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("bind webhook port %d: %w", port, err)
	}

	ready := make(chan struct{})
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), handler.timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("webhook server shutdown error", "error", err)
		}
	}()

	go func() {
		defer close(done)
		slog.Info("webhook server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("webhook server error", "error", err)
		}
	}()

	return ready, done, nil
}
