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

// Package tenant maps webhook routing identifiers to the owning restaurant.
package tenant

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/dineline/callsvc/internal/models"
	"github.com/dineline/callsvc/internal/payload"
)

// ErrUnresolved is returned when no routing key matches a restaurant.
var ErrUnresolved = errors.New("tenant unresolved")

var e164 = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ValidE164 reports whether number looks like an E.164 phone number.
func ValidE164(number string) bool {
	return e164.MatchString(number)
}

// Store is the subset of restaurant persistence the resolver needs.
type Store interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Tenant, error)
	FindByInboundNumber(ctx context.Context, number string) (*models.Tenant, error)
	FindByAssistantID(ctx context.Context, assistantID string) (*models.Tenant, error)
	BackfillInboundNumber(ctx context.Context, id, number string) (bool, error)
}

// Resolution method names, used in logs.
const (
	ViaMetadata      = "metadata"
	ViaPhoneNumberID = "phone_number_id"
	ViaInboundNumber = "inbound_number"
	ViaAssistantID   = "assistant_id"
)

// Resolution is a successfully resolved tenant. Tenant is nil when the id
// came from event metadata and the record has not been loaded.
type Resolution struct {
	TenantID string
	Tenant   *models.Tenant
	Via      string
}

// Resolver walks the routing-key priority chain.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the restaurant that owns the event, or ErrUnresolved.
// Store errors at one step are logged and the next step is tried.
func (r *Resolver) Resolve(ctx context.Context, rt payload.Routing) (*Resolution, error) {
	if rt.MetadataTenantID != "" {
		return &Resolution{TenantID: rt.MetadataTenantID, Via: ViaMetadata}, nil
	}

	type step struct {
		via  string
		key  string
		find func(context.Context, string) (*models.Tenant, error)
	}
	steps := []step{
		{ViaPhoneNumberID, rt.PhoneNumberID, r.store.FindByPhoneNumberID},
	}
	// Only a well-formed caller number is used as a key; anything else may
	// be the callee's own line or provider noise.
	if ValidE164(rt.CallerNumber) {
		steps = append(steps, step{ViaInboundNumber, rt.CallerNumber, r.store.FindByInboundNumber})
	}
	steps = append(steps, step{ViaAssistantID, rt.AssistantID, r.store.FindByAssistantID})

	for _, s := range steps {
		if s.key == "" {
			continue
		}
		t, err := s.find(ctx, s.key)
		if err != nil {
			slog.Warn("tenant lookup failed",
				"via", s.via,
				"call_id", rt.CallID,
				"error", err,
			)
			continue
		}
		if t == nil {
			continue
		}
		r.HealInboundNumber(ctx, t, rt.CallerNumber)
		return &Resolution{TenantID: t.ID, Tenant: t, Via: s.via}, nil
	}

	return nil, ErrUnresolved
}

// HealInboundNumber stores caller as the tenant's inbound number when the
// tenant has none, caller is a valid E.164 number and no other tenant owns
// it. Failures are logged.
func (r *Resolver) HealInboundNumber(ctx context.Context, t *models.Tenant, caller string) {
	if t == nil || t.InboundNumber != "" || !ValidE164(caller) {
		return
	}
	owner, err := r.store.FindByInboundNumber(ctx, caller)
	if err != nil {
		slog.Warn("inbound number owner lookup failed",
			"tenant_id", t.ID,
			"error", err,
		)
		return
	}
	if owner != nil && owner.ID != t.ID {
		slog.Warn("inbound number already owned by another tenant, not backfilling",
			"tenant_id", t.ID,
			"owner_id", owner.ID,
			"number", caller,
		)
		return
	}
	updated, err := r.store.BackfillInboundNumber(ctx, t.ID, caller)
	if err != nil {
		slog.Warn("inbound number backfill failed",
			"tenant_id", t.ID,
			"error", err,
		)
		return
	}
	if updated {
		t.InboundNumber = caller
		slog.Info("inbound number backfilled",
			"tenant_id", t.ID,
			"number", caller,
		)
	}
}

// Load returns the full tenant record for res, fetching it if needed.
func (r *Resolver) Load(ctx context.Context, res *Resolution) (*models.Tenant, error) {
	if res.Tenant != nil {
		return res.Tenant, nil
	}
	t, err := r.store.GetByID(ctx, res.TenantID)
	if err != nil {
		return nil, err
	}
	res.Tenant = t
	return t, nil
}
