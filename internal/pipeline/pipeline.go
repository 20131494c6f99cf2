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

// Package pipeline routes normalized webhook events: hours checks are
// answered inline, completed calls become orders and kitchen tickets, and
// everything else is acknowledged.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dineline/callsvc/internal/backfill"
	"github.com/dineline/callsvc/internal/extract"
	"github.com/dineline/callsvc/internal/functions"
	"github.com/dineline/callsvc/internal/models"
	"github.com/dineline/callsvc/internal/notify"
	"github.com/dineline/callsvc/internal/orders"
	"github.com/dineline/callsvc/internal/payload"
	"github.com/dineline/callsvc/internal/queue"
	"github.com/dineline/callsvc/internal/tenant"
)

// Acknowledgement warnings.
const (
	WarnUnresolved    = "Could not resolve restaurantId"
	WarnNoCallID      = "Missing call id"
	WarnTenantMissing = "Restaurant not found"
	WarnNotCreated    = "Failed to create order"
)

type TenantResolver interface {
	Resolve(ctx context.Context, rt payload.Routing) (*tenant.Resolution, error)
	Load(ctx context.Context, res *tenant.Resolution) (*models.Tenant, error)
}

type Backfiller interface {
	Fill(ctx context.Context, o *models.CallOutcome) backfill.Result
}

type Extractor interface {
	Extract(ctx context.Context, o *models.CallOutcome) extract.Result
}

type OrderFinder interface {
	FindByCall(ctx context.Context, tenantID, callID string) (*models.Order, error)
}

type Persister interface {
	Persist(ctx context.Context, t *models.Tenant, o *models.CallOutcome, ex extract.Result) (*orders.Result, error)
}

type Notifier interface {
	Notify(ctx context.Context, t *models.Tenant, o *models.Order) (notify.Result, error)
}

type Responder interface {
	Respond(ctx context.Context, tenantID, name string) (*functions.HoursResult, error)
}

// Deps are the pipeline's collaborators. Orders and Publisher are optional.
type Deps struct {
	Tenants   TenantResolver
	Backfill  Backfiller
	Extractor Extractor
	Orders    OrderFinder
	Persister Persister
	Notifier  Notifier
	Functions Responder
	Publisher queue.Publisher
}

// Pipeline handles one event at a time. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	Deps
}

// New creates a pipeline.
func New(d Deps) *Pipeline {
	if d.Publisher == nil {
		d.Publisher = queue.Nop{}
	}
	return &Pipeline{Deps: d}
}

// Ack is the JSON acknowledgement returned to the provider.
type Ack struct {
	OK             bool   `json:"ok"`
	OrderID        string `json:"orderId,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	Warning        string `json:"warning,omitempty"`
	Message        string `json:"message,omitempty"`
	Status         string `json:"status,omitempty"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Error          string `json:"error,omitempty"`
}

// FunctionResult wraps a function-call answer.
type FunctionResult struct {
	Result *functions.HoursResult `json:"result"`
}

// FunctionError is returned for unknown function names.
type FunctionError struct {
	Error        string `json:"error"`
	FunctionName string `json:"functionName"`
}

// Reply is an HTTP status and JSON body.
type Reply struct {
	Status int
	Body   any
}

func ack(a Ack) Reply {
	a.OK = true
	return Reply{Status: http.StatusOK, Body: a}
}

// Invalid acknowledges a body that could not be decoded.
func Invalid() Reply {
	return ack(Ack{Error: "Invalid JSON"})
}

// Handle processes ev. Every path except an unknown function name replies
// 200 so the provider never retries.
func (p *Pipeline) Handle(ctx context.Context, ev payload.Event) Reply {
	switch e := ev.(type) {
	case *payload.StatusEvent:
		if e.Transcript != "" {
			p.detectGoodbye(e.Route().CallID, e.Transcript)
		}
		return ack(Ack{Status: e.Status})
	case *payload.TranscriptEvent:
		if e.Partial {
			return ack(Ack{TranscriptType: "partial"})
		}
	}

	rt := ev.Route()
	res, err := p.Tenants.Resolve(ctx, rt)
	if err != nil {
		slog.Error("could not resolve restaurant",
			"call_id", rt.CallID,
			"phone_number_id", rt.PhoneNumberID,
			"assistant_id", rt.AssistantID,
			"caller", rt.CallerNumber,
			"error", err,
		)
		if fc, ok := ev.(*payload.FunctionCallEvent); ok {
			return p.functionCall(ctx, "", fc)
		}
		return ack(Ack{Warning: WarnUnresolved})
	}

	switch e := ev.(type) {
	case *payload.FunctionCallEvent:
		return p.functionCall(ctx, res.TenantID, e)
	case *payload.CompletionEvent:
		return p.complete(ctx, res, e)
	case *payload.TranscriptEvent:
		p.detectGoodbye(rt.CallID, e.Text)
	case *payload.UnrecognizedEvent:
		slog.Debug("unhandled event type", "type", e.Type, "call_id", rt.CallID)
	}
	return ack(Ack{})
}

// functionCall answers a tool call. An empty tenantID means resolution
// failed, which is answered with the fail-open result.
func (p *Pipeline) functionCall(ctx context.Context, tenantID string, e *payload.FunctionCallEvent) Reply {
	slog.Info("function call received", "function", e.Name, "tenant_id", tenantID)

	if tenantID == "" && e.Name == functions.CheckHours {
		return Reply{Status: http.StatusOK, Body: FunctionResult{Result: functions.FailOpen()}}
	}
	out, err := p.Functions.Respond(ctx, tenantID, e.Name)
	if errors.Is(err, functions.ErrUnknownFunction) {
		return Reply{Status: http.StatusBadRequest, Body: FunctionError{Error: "Unknown function", FunctionName: e.Name}}
	}
	if err != nil {
		out = functions.FailOpen()
	}
	return Reply{Status: http.StatusOK, Body: FunctionResult{Result: out}}
}

// complete turns a finished call into at most one order.
func (p *Pipeline) complete(ctx context.Context, res *tenant.Resolution, e *payload.CompletionEvent) Reply {
	outcome := e.Outcome(res.TenantID)
	log := slog.With("call_id", outcome.CallID, "tenant_id", res.TenantID, "source", e.Source)

	if outcome.CallID == "" {
		log.Warn("completion event without call id, skipping")
		return ack(Ack{Warning: WarnNoCallID})
	}

	if p.Orders != nil {
		existing, err := p.Orders.FindByCall(ctx, res.TenantID, outcome.CallID)
		if err != nil {
			log.Warn("order lookup failed", "error", err)
		}
		if existing != nil {
			log.Info("order already exists", "order_id", existing.ID)
			return ack(Ack{Message: "Order already exists", OrderID: existing.ID, Duplicate: true})
		}
	}

	t, err := p.Tenants.Load(ctx, res)
	if err != nil || t == nil {
		log.Error("restaurant not found", "error", err)
		return ack(Ack{Warning: WarnTenantMissing})
	}

	p.Backfill.Fill(ctx, outcome)

	ex := p.Extractor.Extract(ctx, outcome)
	log.Info("order extracted",
		"intent", ex.Data.Intent,
		"order_type", ex.Data.OrderType,
		"items", len(ex.Data.Items),
		"items_source", ex.ItemsSource,
		"used_llm", ex.UsedLLM,
	)

	pr, err := p.Persister.Persist(ctx, t, outcome, ex)
	if err != nil {
		log.Error("failed to create order", "error", err)
		return ack(Ack{Warning: WarnNotCreated})
	}
	if pr.Duplicate {
		return ack(Ack{Message: "Order already exists (duplicate prevented)", OrderID: pr.Order.ID, Duplicate: true})
	}

	p.notify(ctx, t, pr.Order)
	p.publish(ctx, pr.Order)

	return ack(Ack{OrderID: pr.Order.ID})
}

func (p *Pipeline) notify(ctx context.Context, t *models.Tenant, o *models.Order) {
	if p.Notifier == nil {
		return
	}
	_, err := p.Notifier.Notify(ctx, t, o)
	switch {
	case errors.Is(err, notify.ErrNoRecipients):
		slog.Info("no kitchen emails configured, skipping ticket", "order_id", o.ID, "tenant_id", t.ID)
	case err != nil:
		slog.Error("kitchen ticket failed", "order_id", o.ID, "tenant_id", t.ID, "error", err)
	}
}

func (p *Pipeline) publish(ctx context.Context, o *models.Order) {
	if err := p.Publisher.Publish(ctx, queue.NewOrderCreated(o)); err != nil {
		slog.Warn("failed to publish order event", "order_id", o.ID, "error", err)
	}
}

var goodbyes = []string{"goodbye", "take care", "thank you for calling"}

// detectGoodbye logs when the last transcript line closes the call. The
// provider ends the call itself.
func (p *Pipeline) detectGoodbye(callID, transcript string) bool {
	lines := strings.Split(strings.TrimSpace(transcript), "\n")
	last := strings.ToLower(lines[len(lines)-1])
	for _, g := range goodbyes {
		if strings.Contains(last, g) {
			slog.Info("assistant said goodbye", "call_id", callID)
			return true
		}
	}
	return false
}
