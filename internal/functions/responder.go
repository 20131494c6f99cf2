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

// Package functions answers the voice assistant's server-side tool calls
// during a live call.
package functions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dineline/callsvc/internal/models"
)

// CheckHours is the only function the assistant may call.
const CheckHours = "checkRestaurantHours"

// ErrUnknownFunction is returned for function names the responder does not
// implement.
var ErrUnknownFunction = errors.New("unknown function")

// TenantGetter loads a restaurant record.
type TenantGetter interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
}

// HoursResult is the payload spoken back by the assistant.
type HoursResult struct {
	IsOpen              bool   `json:"isOpen"`
	CurrentTime         string `json:"currentTime,omitempty"`
	Timezone            string `json:"timezone,omitempty"`
	Hours               string `json:"hours,omitempty"`
	FormattedHours      string `json:"formattedHours,omitempty"`
	OpeningTime         string `json:"openingTime,omitempty"`
	ClosingTime         string `json:"closingTime,omitempty"`
	CanTakeOrders       bool   `json:"canTakeOrders"`
	CanTakeReservations bool   `json:"canTakeReservations"`
	Message             string `json:"message"`
}

// FailOpen is returned whenever the hours cannot be evaluated. Turning a
// caller away costs more than one order needing manual correction.
func FailOpen() *HoursResult {
	return &HoursResult{
		IsOpen:              true,
		Message:             "Unable to check hours, proceeding as open",
		FormattedHours:      "Unknown",
		CanTakeOrders:       true,
		CanTakeReservations: true,
	}
}

// Responder evaluates function calls against tenant configuration.
type Responder struct {
	tenants TenantGetter
	now     func() time.Time
}

// NewResponder creates a responder. now may be nil.
func NewResponder(tenants TenantGetter, now func() time.Time) *Responder {
	if now == nil {
		now = time.Now
	}
	return &Responder{tenants: tenants, now: now}
}

// Respond runs the named function for tenantID. Only ErrUnknownFunction is
// ever returned; every other failure produces the fail-open result.
func (r *Responder) Respond(ctx context.Context, tenantID, name string) (*HoursResult, error) {
	if name != CheckHours {
		slog.Warn("unknown function call", "function", name, "tenant_id", tenantID)
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}

	t, err := r.tenants.GetByID(ctx, tenantID)
	if err != nil || t == nil {
		slog.Error("hours check: failed to load restaurant", "tenant_id", tenantID, "error", err)
		return FailOpen(), nil
	}

	res, err := CheckRestaurantHours(t, r.now())
	if err != nil {
		slog.Error("hours check failed", "tenant_id", tenantID, "error", err)
		return FailOpen(), nil
	}
	slog.Info("hours checked", "tenant_id", tenantID, "is_open", res.IsOpen)
	return res, nil
}

// CheckRestaurantHours evaluates t's opening hours at instant now.
func CheckRestaurantHours(t *models.Tenant, now time.Time) (*HoursResult, error) {
	loc, tz, err := loadLocation(t.Timezone)
	if err != nil {
		return nil, err
	}
	hours, err := ParseHours(t.HoursOpen, t.HoursClose)
	if err != nil {
		return nil, err
	}

	local := now.In(loc)
	open := hours.IsOpen(local)
	current := local.Format("3:04 PM")

	res := &HoursResult{
		IsOpen:              open,
		CurrentTime:         current,
		Timezone:            tz,
		Hours:               hours.String(),
		OpeningTime:         t.HoursOpen,
		ClosingTime:         t.HoursClose,
		CanTakeOrders:       open || t.AfterHoursTakeOrders,
		CanTakeReservations: t.ReservationsEnabled || open,
	}
	if open {
		res.Message = fmt.Sprintf("Restaurant is currently OPEN (current time: %s %s). Hours: %s.", current, tz, res.Hours)
		return res, nil
	}
	res.Message = fmt.Sprintf("Restaurant is currently CLOSED (current time: %s %s). Hours: %s.", current, tz, res.Hours)
	if t.AfterHoursTakeOrders {
		res.Message += " Can take orders for tomorrow."
	}
	if t.ReservationsEnabled {
		res.Message += " Can still take reservations."
	}
	return res, nil
}
