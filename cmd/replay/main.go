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

// DineLine call replay command
//
// Re-runs the completion pipeline for one call by fetching it from the
// provider's call API. Used when a webhook delivery was lost or processed
// with incomplete data. Order creation is idempotent, so replaying a call
// that already has an order only reports the existing order.
//
// Usage:
//
//	go run ./cmd/replay/ --call <call-id> [--tenant <restaurant-id>] [--resend-ticket [--force]]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/dineline/callsvc/internal/app"
	"github.com/dineline/callsvc/internal/config"
	"github.com/dineline/callsvc/internal/notify"
	"github.com/dineline/callsvc/internal/payload"
	"github.com/dineline/callsvc/internal/pipeline"
	"github.com/dineline/callsvc/internal/provider"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	callFlag := flag.String("call", "", "Provider call id to replay (required)")
	tenantFlag := flag.String("tenant", "", "Restaurant id (optional; resolved from the call when empty)")
	resendFlag := flag.Bool("resend-ticket", false, "Send the kitchen ticket for an existing order if it was never delivered")
	forceFlag := flag.Bool("force", false, "With --resend-ticket, send even if a ticket was already delivered")
	timeoutFlag := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	if *callFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --call is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	os.Exit(run(cfg, *callFlag, *tenantFlag, *resendFlag, *forceFlag, *timeoutFlag))
}

// run replays one call and returns the process exit code: 0 when an order
// exists, 2 when the pipeline acked with a warning, 1 on failure.
func run(cfg *config.Config, callID, tenantID string, resend, force bool, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		return 1
	}
	defer a.Close()

	call, err := a.Calls.GetCall(ctx, callID)
	if err != nil {
		slog.Error("failed to fetch call", "call_id", callID, "error", err)
		return 1
	}

	slog.Info("replaying call",
		"call_id", call.ID,
		"status", call.Status,
		"has_transcript", call.Transcript != "",
	)

	rep := a.Pipeline.Handle(ctx, completionFromCall(call, tenantID))
	ack, _ := rep.Body.(pipeline.Ack)

	code := 0
	if resend && ack.Duplicate && ack.OrderID != "" {
		if err := resendTicket(ctx, a, call, tenantID, force); err != nil {
			slog.Error("failed to resend kitchen ticket", "order_id", ack.OrderID, "error", err)
			code = 1
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep.Body); err != nil {
		slog.Error("failed to write result", "error", err)
		return 1
	}

	if ack.Warning != "" {
		return 2
	}
	return code
}

// completionFromCall builds the completion event a webhook delivery would
// have carried for call.
func completionFromCall(call *provider.Call, tenantID string) *payload.CompletionEvent {
	if tenantID == "" {
		if id, ok := call.Metadata["restaurantId"].(string); ok {
			tenantID = id
		}
	}
	return &payload.CompletionEvent{
		Routing: payload.Routing{
			CallID:           call.ID,
			CallerNumber:     call.CallerNumber,
			PhoneNumberID:    call.PhoneNumberID,
			AssistantID:      call.AssistantID,
			MetadataTenantID: tenantID,
		},
		Source:         "replay",
		Transcript:     call.Transcript,
		Summary:        call.Summary,
		StructuredData: call.StructuredData,
		RecordingURL:   call.RecordingURL,
		StartedAt:      call.StartedAt,
		EndedAt:        call.EndedAt,
		EndedReason:    call.EndedReason,
	}
}

func resendTicket(ctx context.Context, a *app.App, call *provider.Call, tenantID string, force bool) error {
	if a.Notifier == nil {
		return fmt.Errorf("kitchen tickets are disabled")
	}

	res, err := a.Resolver.Resolve(ctx, completionFromCall(call, tenantID).Routing)
	if err != nil {
		return err
	}
	t, err := a.Resolver.Load(ctx, res)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("restaurant %s not found", res.TenantID)
	}
	order, err := a.Orders.FindByCall(ctx, res.TenantID, call.ID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("no order for call %s", call.ID)
	}

	if force {
		if err := a.Claims.Release(ctx, notify.ClaimKey(order.ID)); err != nil {
			return err
		}
	}
	out, err := a.Notifier.Notify(ctx, t, order)
	if err != nil {
		return err
	}
	if out.Skipped {
		slog.Info("kitchen ticket was already delivered; use --force to send again", "order_id", order.ID)
	}
	return nil
}
