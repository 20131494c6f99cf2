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

// Package extract turns a reconciled call into order fields. Provider
// structured data is trusted first, then deterministic text patterns, then
// a single summarization request.
package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dineline/callsvc/internal/models"
)

// Fallback summaries.
const (
	DefaultSummary = "Call completed - review transcript for details"
	customerWord   = "customer"
	timeTBD        = "time TBD"
)

// Summarizer generates a summary and extracts order fields from a transcript
// in one request.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, partial models.OrderData) (*models.CallSummary, error)
}

// Extractor derives order fields from a call outcome.
type Extractor struct {
	summarizer Summarizer
}

// New creates an extractor. summarizer may be nil, in which case summaries
// are always templated.
func New(summarizer Summarizer) *Extractor {
	return &Extractor{summarizer: summarizer}
}

// Result is the extracted order content.
type Result struct {
	Data    models.OrderData
	Summary string
	// ItemsSource records where the items came from: "structured",
	// "summary", "transcript", "llm", "llm_summary" or "".
	ItemsSource string
	UsedLLM     bool
}

// Extract builds order fields for o. The summarizer is called at most once.
func (e *Extractor) Extract(ctx context.Context, o *models.CallOutcome) Result {
	var res Result
	d := &res.Data

	if o.StructuredData != nil {
		*d = FromStructured(o.StructuredData)
		if len(d.Items) > 0 {
			res.ItemsSource = "structured"
		}
	} else if o.Transcript != "" {
		d.Intent, d.OrderType = InferKind(o.Transcript)
	}

	if d.RequestedTime == "" {
		if t, ok := RequestedTime(o.Transcript); ok {
			d.RequestedTime = t
		}
	}
	if d.CustomerName == "" {
		if name, ok := CustomerName(o.Transcript, o.Summary); ok {
			d.CustomerName = name
		}
	}
	if d.CustomerPhone == "" {
		d.CustomerPhone = o.CallerNumber
	}
	NormalizeKind(d)

	if len(d.Items) == 0 {
		if items := Items(o.Summary); len(items) > 0 {
			d.Items, res.ItemsSource = items, "summary"
		} else if items := Items(o.Transcript); len(items) > 0 {
			d.Items, res.ItemsSource = items, "transcript"
		}
	}

	res.Summary = o.Summary
	needLLM := o.Transcript != "" && (res.Summary == "" || len(d.Items) == 0 || d.CustomerName == "")
	if needLLM && e.summarizer != nil {
		res.UsedLLM = true
		s, err := e.summarizer.Summarize(ctx, o.Transcript, *d)
		if err != nil {
			slog.Warn("summarization failed, using templated summary",
				"call_id", o.CallID,
				"error", err,
			)
			if res.Summary == "" {
				res.Summary = FailureSummary(*d)
			}
			return res
		}
		e.apply(&res, s)
	}

	if res.Summary == "" {
		if o.Transcript == "" && isEmpty(*d) {
			res.Summary = DefaultSummary
		} else {
			res.Summary = TemplateSummary(*d)
		}
	}
	return res
}

func (e *Extractor) apply(res *Result, s *models.CallSummary) {
	d := &res.Data
	if res.Summary == "" {
		res.Summary = s.Summary
	}
	if d.CustomerName == "" && ValidName(s.CustomerName) {
		d.CustomerName = s.CustomerName
	}
	if len(d.Items) == 0 && len(s.Items) > 0 {
		d.Items, res.ItemsSource = s.Items, "llm"
	}
	if len(d.Items) == 0 {
		if items := Items(s.Summary); len(items) > 0 {
			d.Items, res.ItemsSource = items, "llm_summary"
		}
	}
}

// NormalizeKind reconciles intent and order type. Pickup and delivery always
// win over a reservation intent; an order with no type is a pickup.
func NormalizeKind(d *models.OrderData) {
	switch d.OrderType {
	case models.OrderTypePickup, models.OrderTypeDelivery:
		d.Intent = models.IntentOrder
	case models.OrderTypeReservation:
		d.Intent = models.IntentReservation
	default:
		if d.Intent == models.IntentReservation {
			d.OrderType = models.OrderTypeReservation
		}
	}
	if d.Intent == "" {
		d.Intent = models.IntentOrder
	}
	if d.Intent == models.IntentOrder && d.OrderType == models.OrderTypeNone {
		d.OrderType = models.OrderTypePickup
	}
}

// TemplateSummary builds a summary from known fields, e.g.
// "Order for Sam: 2 item(s), pickup".
func TemplateSummary(d models.OrderData) string {
	name := orDefault(d.CustomerName, customerWord)
	if d.Intent == models.IntentReservation {
		return fmt.Sprintf("Reservation for %s: %s", name, orDefault(d.RequestedTime, timeTBD))
	}
	return fmt.Sprintf("%s for %s: %d item(s), %s", requestWord(d.Intent), name, len(d.Items), orDefault(string(d.OrderType), string(models.OrderTypePickup)))
}

// FailureSummary is used when the summarization service fails.
func FailureSummary(d models.OrderData) string {
	name := orDefault(d.CustomerName, customerWord)
	if d.Intent == models.IntentReservation {
		return fmt.Sprintf("Reservation received: %s, %s", name, orDefault(d.RequestedTime, timeTBD))
	}
	return fmt.Sprintf("%s received: %s, %s", requestWord(d.Intent), name, orDefault(string(d.OrderType), string(models.OrderTypePickup)))
}

func requestWord(i models.Intent) string {
	if i == models.IntentOrder || i == "" {
		return "Order"
	}
	return "Request"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func isEmpty(d models.OrderData) bool {
	return d.CustomerName == "" && d.RequestedTime == "" &&
		d.DeliveryAddress == "" && len(d.Items) == 0 && d.SpecialInstructions == ""
}
