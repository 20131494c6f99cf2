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

// Package backfill fills call fields that a completion webhook left out by
// polling the provider's call API until the data settles.
package backfill

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dineline/callsvc/internal/models"
	"github.com/dineline/callsvc/internal/provider"
)

// DefaultDelays are the waits before each call-query attempt. The first
// query goes out at once.
var DefaultDelays = []time.Duration{0, 3 * time.Second, 5 * time.Second}

// CallGetter fetches a call from the provider.
type CallGetter interface {
	GetCall(ctx context.Context, callID string) (*provider.Call, error)
}

// Fetcher runs the bounded retry loop.
type Fetcher struct {
	client CallGetter
	delays []time.Duration
	sleep  func(context.Context, time.Duration) error
}

// Config holds dependencies for the fetcher.
type Config struct {
	Client CallGetter
	Delays []time.Duration
	// Sleep waits between attempts. Tests replace it to avoid real delays.
	Sleep func(context.Context, time.Duration) error
}

// Result summarises one Fill run.
type Result struct {
	Attempts int
	Filled   []string
	Missing  []string
}

// New creates a backfill fetcher.
func New(cfg Config) *Fetcher {
	delays := cfg.Delays
	if len(delays) == 0 {
		delays = DefaultDelays
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return &Fetcher{
		client: cfg.Client,
		delays: delays,
		sleep:  sleep,
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// TotalDelay is the longest Fill can spend sleeping.
func (f *Fetcher) TotalDelay() time.Duration {
	var total time.Duration
	for _, d := range f.delays {
		total += d
	}
	return total
}

// Fill fetches missing fields of o in place. It stops early once transcript
// and caller number are both known. It never fails; whatever could not be
// found stays empty.
func (f *Fetcher) Fill(ctx context.Context, o *models.CallOutcome) Result {
	var res Result
	if len(o.Missing()) == 0 {
		return res
	}
	if o.CallID == "" {
		res.Missing = o.Missing()
		return res
	}

	slog.Info("backfilling call data",
		"call_id", o.CallID,
		"missing", o.Missing(),
	)

	for i, delay := range f.delays {
		last := i == len(f.delays)-1

		if delay > 0 {
			if err := f.sleep(ctx, delay); err != nil {
				slog.Warn("backfill interrupted", "call_id", o.CallID, "error", err)
				break
			}
		}

		res.Attempts++
		call, err := f.client.GetCall(ctx, o.CallID)
		if errors.Is(err, provider.ErrNotFound) {
			if last {
				slog.Warn("call not found on final attempt", "call_id", o.CallID)
				break
			}
			slog.Info("call not ready, retrying",
				"call_id", o.CallID,
				"attempt", res.Attempts,
			)
			continue
		}
		if err != nil {
			slog.Warn("call query failed, proceeding with known data",
				"call_id", o.CallID,
				"attempt", res.Attempts,
				"error", err,
			)
			break
		}

		res.Filled = append(res.Filled, merge(o, call)...)
		if o.HasRequired() {
			break
		}
	}

	res.Missing = o.Missing()
	slog.Info("backfill finished",
		"call_id", o.CallID,
		"attempts", res.Attempts,
		"filled", res.Filled,
		"still_missing", res.Missing,
	)
	return res
}

// merge copies fields from call into o where o has none. It returns the
// names of the fields it filled.
func merge(o *models.CallOutcome, call *provider.Call) []string {
	var filled []string
	if o.Transcript == "" && call.Transcript != "" {
		o.Transcript = call.Transcript
		filled = append(filled, "transcript")
	}
	if o.StructuredData == nil && len(call.StructuredData) > 0 {
		o.StructuredData = call.StructuredData
		filled = append(filled, "structured_data")
	}
	if o.CallerNumber == "" && call.CallerNumber != "" {
		o.CallerNumber = call.CallerNumber
		filled = append(filled, "caller_number")
	}
	if o.RecordingURL == "" && call.RecordingURL != "" {
		o.RecordingURL = call.RecordingURL
		filled = append(filled, "recording_url")
	}
	if o.EndedAt.IsZero() && !call.EndedAt.IsZero() {
		o.EndedAt = call.EndedAt
		filled = append(filled, "ended_at")
	}
	if o.StartedAt.IsZero() && !call.StartedAt.IsZero() {
		o.StartedAt = call.StartedAt
	}
	if o.Summary == "" && call.Summary != "" {
		o.Summary = call.Summary
	}
	if o.EndedReason == "" {
		o.EndedReason = call.EndedReason
	}
	return filled
}
