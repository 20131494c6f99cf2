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

// Package orders creates exactly one order per completed call.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dineline/callsvc/internal/extract"
	"github.com/dineline/callsvc/internal/models"
)

// ErrMissingCallID is returned when there is no call id to key the order on.
var ErrMissingCallID = errors.New("missing call id")

// Store is the order persistence the persister needs.
type Store interface {
	FindByCall(ctx context.Context, tenantID, callID string) (*models.Order, error)
	Insert(ctx context.Context, o *models.Order) (bool, error)
}

// InboundHealer backfills a tenant's inbound number after an order is written.
type InboundHealer interface {
	HealInboundNumber(ctx context.Context, t *models.Tenant, caller string)
}

// Persister writes orders idempotently.
type Persister struct {
	store  Store
	healer InboundHealer
	newID  func() string
}

// NewPersister creates a persister. healer may be nil.
func NewPersister(store Store, healer InboundHealer) *Persister {
	return &Persister{
		store:  store,
		healer: healer,
		newID:  uuid.NewString,
	}
}

// Result is the outcome of Persist.
type Result struct {
	Order     *models.Order
	Duplicate bool
}

// Persist creates the order for call o under tenant t. A second call for the
// same call id returns the existing order with Duplicate set.
func (p *Persister) Persist(ctx context.Context, t *models.Tenant, o *models.CallOutcome, ex extract.Result) (*Result, error) {
	if o.CallID == "" {
		return nil, ErrMissingCallID
	}

	existing, err := p.store.FindByCall(ctx, o.TenantID, o.CallID)
	if err != nil {
		slog.Warn("duplicate pre-check failed, attempting insert",
			"call_id", o.CallID,
			"error", err,
		)
	}
	if existing != nil {
		slog.Info("order already exists for call",
			"call_id", o.CallID,
			"order_id", existing.ID,
		)
		return &Result{Order: existing, Duplicate: true}, nil
	}

	order := p.build(o, ex)
	inserted, err := p.store.Insert(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	if !inserted {
		// Lost a race with a concurrent delivery of the same call.
		existing, err := p.store.FindByCall(ctx, o.TenantID, o.CallID)
		if err != nil {
			return nil, fmt.Errorf("refetch order after conflict: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("order for call %s conflicted but was not found", o.CallID)
		}
		return &Result{Order: existing, Duplicate: true}, nil
	}

	slog.Info("order created",
		"order_id", order.ID,
		"tenant_id", order.TenantID,
		"call_id", order.CallID,
		"intent", order.Intent,
		"order_type", order.OrderType,
		"items", len(order.Items),
	)

	if p.healer != nil {
		p.healer.HealInboundNumber(ctx, t, o.CallerNumber)
	}
	return &Result{Order: order}, nil
}

func (p *Persister) build(o *models.CallOutcome, ex extract.Result) *models.Order {
	d := ex.Data
	instructions := d.SpecialInstructions
	if d.Allergies != "" && !strings.Contains(strings.ToLower(instructions), strings.ToLower(d.Allergies)) {
		instructions = strings.TrimSpace(instructions + "\nAllergies: " + d.Allergies)
	}
	return &models.Order{
		ID:                  p.newID(),
		TenantID:            o.TenantID,
		Status:              models.StatusNew,
		Intent:              d.Intent,
		OrderType:           d.OrderType,
		CustomerName:        d.CustomerName,
		CustomerPhone:       d.CustomerPhone,
		DeliveryAddress:     d.DeliveryAddress,
		RequestedTime:       d.RequestedTime,
		Items:               d.Items,
		SpecialInstructions: instructions,
		Summary:             ex.Summary,
		Transcript:          o.Transcript,
		RecordingURL:        o.RecordingURL,
		RawPayload:          d,
		CallID:              o.CallID,
		FromNumber:          o.CallerNumber,
		ToNumber:            o.CalledNumber,
		StartedAt:           o.StartedAt,
		EndedAt:             o.EndedAt,
	}
}
