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

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dineline/callsvc/internal/models"
)

func sampleTenant() *models.Tenant {
	return &models.Tenant{
		ID:            "r1",
		Name:          "Luigi's",
		Timezone:      "America/New_York",
		KitchenEmails: []string{"kitchen@luigis.test"},
	}
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:              "o1",
		Intent:          models.IntentOrder,
		OrderType:       models.OrderTypeDelivery,
		CustomerName:    "Sarah",
		CustomerPhone:   "+15551234567",
		DeliveryAddress: "12 Oak St",
		Items: []models.OrderItem{
			{Name: "margherita pizza", Qty: models.Qty(2), Notes: "extra basil"},
		},
		Summary:      "Sarah ordered two pizzas for delivery.",
		RecordingURL: "https://rec.test/a.wav",
		StartedAt:    time.Date(2025, 1, 7, 23, 30, 0, 0, time.UTC),
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		name string
		o    models.Order
		want string
	}{
		{"delivery", models.Order{OrderType: models.OrderTypeDelivery}, "New Phone Order — R — Delivery"},
		{"pickup", models.Order{OrderType: models.OrderTypePickup}, "New Phone Order — R — Pickup"},
		{"reservation type", models.Order{OrderType: models.OrderTypeReservation}, "New Phone Reservation — R"},
		{"reservation intent", models.Order{Intent: models.IntentReservation}, "New Phone Reservation — R"},
		{"pickup beats reservation intent", models.Order{Intent: models.IntentReservation, OrderType: models.OrderTypePickup}, "New Phone Order — R — Pickup"},
		{"untyped", models.Order{Intent: models.IntentOrder}, "New Phone Order — R — Order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Subject("R", &tt.o); got != tt.want {
				t.Errorf("Subject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender_Delivery(t *testing.T) {
	tk, err := Render(sampleTenant(), sampleOrder(), "https://app.test/")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		"Luigi's",
		"Order Type: Delivery",
		"Requested Time: ASAP",
		"Name: Sarah",
		"Delivery Address:\n  12 Oak St",
		"  - 2x margherita pizza (extra basil)",
		"Call Summary:",
		"Recording: https://rec.test/a.wav",
		"View in Dashboard: https://app.test/orders/o1",
		"Jan 7, 2025 6:30 PM EST",
	} {
		if !strings.Contains(tk.Text, want) {
			t.Errorf("text ticket missing %q:\n%s", want, tk.Text)
		}
	}
	if !strings.Contains(tk.HTML, "Luigi&#39;s") {
		t.Error("html ticket should escape the restaurant name")
	}
	if !strings.Contains(tk.HTML, "https://app.test/orders/o1") {
		t.Error("html ticket missing dashboard link")
	}
}

func TestRender_PickupDefaults(t *testing.T) {
	o := &models.Order{ID: "o2", Intent: models.IntentOrder, OrderType: models.OrderTypePickup, DeliveryAddress: "ignored"}
	tk, err := Render(sampleTenant(), o, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"Name: Not provided", "Phone: Not provided", "(No items specified)"} {
		if !strings.Contains(tk.Text, want) {
			t.Errorf("text ticket missing %q", want)
		}
	}
	for _, unwanted := range []string{"Delivery Address", "View in Dashboard", "Special Instructions"} {
		if strings.Contains(tk.Text, unwanted) {
			t.Errorf("text ticket should not contain %q", unwanted)
		}
	}
}

func TestClient_Send(t *testing.T) {
	var got Email
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	id, err := NewClient(srv.Client(), srv.URL).Send(context.Background(), Email{
		From: DefaultFrom, To: []string{"k@test"}, Subject: "s", HTML: "<p>h</p>", Text: "h",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "msg_1" {
		t.Errorf("id = %q", id)
	}
	if got.Subject != "s" || len(got.To) != 1 || got.Text != "h" {
		t.Errorf("unexpected body %+v", got)
	}
}

func TestClient_SendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid from address"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client(), srv.URL).Send(context.Background(), Email{})
	var se *SendError
	if !errors.As(err, &se) {
		t.Fatalf("expected SendError, got %v", err)
	}
	if se.Message != "invalid from address" || se.Temporary() {
		t.Errorf("unexpected error %+v", se)
	}
}

type fakeSender struct {
	mu    sync.Mutex
	errs  []error
	sent  []Email
	calls int
}

func (f *fakeSender) Send(_ context.Context, e Email) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	f.sent = append(f.sent, e)
	return "msg", nil
}

type fakeClaims struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (f *fakeClaims) Claim(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeClaims) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	f.released = append(f.released, key)
	return nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	return nil
}

func TestNotify_RetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{errs: []error{
		&SendError{StatusCode: 503, Message: "busy"},
		errors.New("connection reset"),
	}}
	rec := &sleepRecorder{}
	n := New(Config{Sender: sender, Sleep: rec.sleep})

	res, err := n.Notify(context.Background(), sampleTenant(), sampleOrder())
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if res.Attempts != 3 || len(sender.sent) != 1 {
		t.Errorf("attempts=%d sent=%d", res.Attempts, len(sender.sent))
	}
	if len(rec.slept) != 2 || rec.slept[0] != time.Second || rec.slept[1] != 2*time.Second {
		t.Errorf("unexpected sleeps %v", rec.slept)
	}
	if sender.sent[0].From != DefaultFrom || sender.sent[0].To[0] != "kitchen@luigis.test" {
		t.Errorf("unexpected email %+v", sender.sent[0])
	}
}

func TestNotify_PermanentFailureStopsAndReleases(t *testing.T) {
	sender := &fakeSender{errs: []error{&SendError{StatusCode: 422, Message: "bad"}}}
	claims := &fakeClaims{}
	rec := &sleepRecorder{}
	n := New(Config{Sender: sender, Claims: claims, Sleep: rec.sleep})

	res, err := n.Notify(context.Background(), sampleTenant(), sampleOrder())
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Attempts != 1 || len(rec.slept) != 0 {
		t.Errorf("attempts=%d sleeps=%d", res.Attempts, len(rec.slept))
	}
	if len(claims.released) != 1 || claims.released[0] != "ticket:o1" {
		t.Errorf("claim not released: %v", claims.released)
	}
}

func TestNotify_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("timeout")
	sender := &fakeSender{errs: []error{boom, boom, boom}}
	rec := &sleepRecorder{}
	n := New(Config{Sender: sender, Sleep: rec.sleep})

	res, err := n.Notify(context.Background(), sampleTenant(), sampleOrder())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped timeout, got %v", err)
	}
	if res.Attempts != 3 || len(rec.slept) != 2 {
		t.Errorf("attempts=%d sleeps=%d", res.Attempts, len(rec.slept))
	}
}

func TestNotify_SentOncePerOrder(t *testing.T) {
	sender := &fakeSender{}
	claims := &fakeClaims{}
	n := New(Config{Sender: sender, Claims: claims, Sleep: (&sleepRecorder{}).sleep})

	for i := 0; i < 2; i++ {
		if _, err := n.Notify(context.Background(), sampleTenant(), sampleOrder()); err != nil {
			t.Fatalf("Notify #%d: %v", i, err)
		}
	}
	if len(sender.sent) != 1 {
		t.Errorf("expected one email, got %d", len(sender.sent))
	}
}

func TestNotify_NoRecipients(t *testing.T) {
	sender := &fakeSender{}
	tn := sampleTenant()
	tn.KitchenEmails = nil

	_, err := New(Config{Sender: sender}).Notify(context.Background(), tn, sampleOrder())
	if !errors.Is(err, ErrNoRecipients) {
		t.Errorf("expected ErrNoRecipients, got %v", err)
	}
	if sender.calls != 0 {
		t.Error("nothing should be sent")
	}
}
