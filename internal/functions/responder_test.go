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

package functions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dineline/callsvc/internal/models"
)

type stubTenants struct {
	tenant *models.Tenant
	err    error
}

func (s stubTenants) GetByID(_ context.Context, _ string) (*models.Tenant, error) {
	return s.tenant, s.err
}

func at(t *testing.T, tz, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return ts
}

func TestHours_IsOpen(t *testing.T) {
	tests := []struct {
		name        string
		open, close string
		now         string
		want        bool
	}{
		{"inside day window", "09:00", "17:00", "2025-03-04 12:00", true},
		{"at opening", "09:00", "17:00", "2025-03-04 09:00", true},
		{"at closing", "09:00", "17:00", "2025-03-04 17:00", false},
		{"before opening", "09:00:00", "17:00:00", "2025-03-04 08:59", false},
		{"overnight late evening", "18:00", "02:00", "2025-03-04 23:30", true},
		{"overnight after midnight", "18:00", "02:00", "2025-03-05 01:15", true},
		{"overnight morning", "18:00", "02:00", "2025-03-05 10:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHours(tt.open, tt.close)
			if err != nil {
				t.Fatalf("ParseHours: %v", err)
			}
			if got := h.IsOpen(at(t, "UTC", tt.now)); got != tt.want {
				t.Errorf("IsOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHours_String(t *testing.T) {
	tests := []struct {
		open, close, want string
	}{
		{"09:00", "17:00", "9:00 AM - 5:00 PM"},
		{"00:00", "12:30", "12:00 AM - 12:30 PM"},
		{"11:15:00", "23:45:00", "11:15 AM - 11:45 PM"},
	}
	for _, tt := range tests {
		h, err := ParseHours(tt.open, tt.close)
		if err != nil {
			t.Fatalf("ParseHours(%q, %q): %v", tt.open, tt.close, err)
		}
		if got := h.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseHours_Invalid(t *testing.T) {
	for _, v := range []string{"", "9", "nine:00", "10:75", "1:2:3:4"} {
		if _, err := ParseHours(v, "17:00"); err == nil {
			t.Errorf("ParseHours(%q) should fail", v)
		}
	}
}

func TestCheckRestaurantHours(t *testing.T) {
	tn := &models.Tenant{
		HoursOpen:            "11:00",
		HoursClose:           "22:00",
		Timezone:             "America/Chicago",
		AfterHoursTakeOrders: true,
	}

	open, err := CheckRestaurantHours(tn, at(t, "America/Chicago", "2025-06-10 12:05"))
	if err != nil {
		t.Fatalf("CheckRestaurantHours: %v", err)
	}
	if !open.IsOpen || !open.CanTakeOrders || !open.CanTakeReservations {
		t.Errorf("unexpected open result %+v", open)
	}
	if open.CurrentTime != "12:05 PM" || open.Hours != "11:00 AM - 10:00 PM" {
		t.Errorf("unexpected formatting %+v", open)
	}

	closed, err := CheckRestaurantHours(tn, at(t, "America/Chicago", "2025-06-10 23:00"))
	if err != nil {
		t.Fatalf("CheckRestaurantHours: %v", err)
	}
	if closed.IsOpen || !closed.CanTakeOrders || closed.CanTakeReservations {
		t.Errorf("unexpected closed result %+v", closed)
	}
	if !strings.Contains(closed.Message, "CLOSED") || !strings.Contains(closed.Message, "Can take orders for tomorrow.") {
		t.Errorf("unexpected message %q", closed.Message)
	}
}

func TestRespond_FailsOpenOnLookupError(t *testing.T) {
	r := NewResponder(stubTenants{err: errors.New("connection refused")}, nil)

	res, err := r.Respond(context.Background(), "r1", CheckHours)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !res.IsOpen || !res.CanTakeOrders || !res.CanTakeReservations || res.FormattedHours != "Unknown" {
		t.Errorf("expected fail-open result, got %+v", res)
	}
}

func TestRespond_FailsOpenOnBadConfig(t *testing.T) {
	tn := &models.Tenant{HoursOpen: "late", HoursClose: "22:00"}
	res, err := NewResponder(stubTenants{tenant: tn}, nil).Respond(context.Background(), "r1", CheckHours)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !res.IsOpen {
		t.Error("expected fail-open result")
	}
}

func TestRespond_UsesClock(t *testing.T) {
	tn := &models.Tenant{HoursOpen: "09:00", HoursClose: "17:00", Timezone: "UTC"}
	now := func() time.Time { return time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC) }

	res, err := NewResponder(stubTenants{tenant: tn}, now).Respond(context.Background(), "r1", CheckHours)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.IsOpen || res.CanTakeOrders {
		t.Errorf("expected closed, got %+v", res)
	}
}

func TestRespond_UnknownFunction(t *testing.T) {
	_, err := NewResponder(stubTenants{}, nil).Respond(context.Background(), "r1", "bookTable")
	if !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("expected ErrUnknownFunction, got %v", err)
	}
}
