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

package tenant

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dineline/callsvc/internal/models"
	"github.com/dineline/callsvc/internal/payload"
)

type mockStore struct {
	mu         sync.Mutex
	tenants    []*models.Tenant
	failOn     map[string]error
	lookups    []string
	backfilled map[string]string
}

func newMockStore(tenants ...*models.Tenant) *mockStore {
	return &mockStore{
		tenants:    tenants,
		failOn:     make(map[string]error),
		backfilled: make(map[string]string),
	}
}

func (m *mockStore) find(via, key string, match func(*models.Tenant) bool) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, via+":"+key)
	if err := m.failOn[via]; err != nil {
		return nil, err
	}
	for _, t := range m.tenants {
		if match(t) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetByID(_ context.Context, id string) (*models.Tenant, error) {
	return m.find("id", id, func(t *models.Tenant) bool { return t.ID == id })
}

func (m *mockStore) FindByPhoneNumberID(_ context.Context, key string) (*models.Tenant, error) {
	return m.find(ViaPhoneNumberID, key, func(t *models.Tenant) bool { return t.PhoneNumberID == key })
}

func (m *mockStore) FindByInboundNumber(_ context.Context, key string) (*models.Tenant, error) {
	return m.find(ViaInboundNumber, key, func(t *models.Tenant) bool { return t.InboundNumber == key })
}

func (m *mockStore) FindByAssistantID(_ context.Context, key string) (*models.Tenant, error) {
	return m.find(ViaAssistantID, key, func(t *models.Tenant) bool { return t.AssistantID == key })
}

func (m *mockStore) BackfillInboundNumber(_ context.Context, id, number string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.ID == id && t.InboundNumber == "" {
			t.InboundNumber = number
			m.backfilled[id] = number
			return true, nil
		}
	}
	return false, nil
}

func TestValidE164(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"+15551234567", true},
		{"15551234567", true},
		{"+442071838750", true},
		{"+0123456", false},
		{"555-123-4567", false},
		{"+1", false},
		{"+1234567890123456", false},
		{"", false},
		{"anonymous", false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			if got := ValidE164(tt.number); got != tt.want {
				t.Errorf("ValidE164(%q) = %v, want %v", tt.number, got, tt.want)
			}
		})
	}
}

// priorityTenants returns fresh fixtures; healing mutates them.
func priorityTenants() []*models.Tenant {
	return []*models.Tenant{
		{ID: "a", PhoneNumberID: "pn-a"},
		{ID: "b", InboundNumber: "+15550001111"},
		{ID: "c", AssistantID: "asst-c"},
	}
}

func TestResolve_Priority(t *testing.T) {

	tests := []struct {
		name    string
		routing payload.Routing
		wantID  string
		wantVia string
	}{
		{
			name:    "metadata wins",
			routing: payload.Routing{MetadataTenantID: "meta", PhoneNumberID: "pn-a"},
			wantID:  "meta",
			wantVia: ViaMetadata,
		},
		{
			name:    "phone number id before inbound number",
			routing: payload.Routing{PhoneNumberID: "pn-a", CallerNumber: "+15550001111", AssistantID: "asst-c"},
			wantID:  "a",
			wantVia: ViaPhoneNumberID,
		},
		{
			name:    "inbound number before assistant",
			routing: payload.Routing{PhoneNumberID: "pn-unknown", CallerNumber: "+15550001111", AssistantID: "asst-c"},
			wantID:  "b",
			wantVia: ViaInboundNumber,
		},
		{
			name:    "assistant last",
			routing: payload.Routing{AssistantID: "asst-c"},
			wantID:  "c",
			wantVia: ViaAssistantID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(newMockStore(priorityTenants()...))
			res, err := r.Resolve(context.Background(), tt.routing)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.TenantID != tt.wantID || res.Via != tt.wantVia {
				t.Errorf("got %s via %s, want %s via %s", res.TenantID, res.Via, tt.wantID, tt.wantVia)
			}
		})
	}
}

// TestResolve_InvalidCallerSkipped verifies a malformed caller number is
// never used as a lookup key.
func TestResolve_InvalidCallerSkipped(t *testing.T) {
	store := newMockStore(&models.Tenant{ID: "x", InboundNumber: "555-1234"})
	r := NewResolver(store)

	_, err := r.Resolve(context.Background(), payload.Routing{CallerNumber: "555-1234"})
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("err = %v, want ErrUnresolved", err)
	}
	for _, l := range store.lookups {
		if l == ViaInboundNumber+":555-1234" {
			t.Error("invalid caller number was used as a lookup key")
		}
	}
}

func TestResolve_StoreErrorFallsThrough(t *testing.T) {
	store := newMockStore(&models.Tenant{ID: "c", AssistantID: "asst-c"})
	store.failOn[ViaPhoneNumberID] = errors.New("connection reset")
	r := NewResolver(store)

	res, err := r.Resolve(context.Background(), payload.Routing{PhoneNumberID: "pn", AssistantID: "asst-c"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.TenantID != "c" {
		t.Errorf("TenantID = %q, want c", res.TenantID)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	r := NewResolver(newMockStore())
	if _, err := r.Resolve(context.Background(), payload.Routing{}); !errors.Is(err, ErrUnresolved) {
		t.Errorf("err = %v, want ErrUnresolved", err)
	}
}

func TestResolve_HealsInboundNumber(t *testing.T) {
	unset := &models.Tenant{ID: "a", AssistantID: "asst-a"}
	set := &models.Tenant{ID: "b", AssistantID: "asst-b", InboundNumber: "+15550000000"}
	store := newMockStore(unset, set)
	r := NewResolver(store)

	if _, err := r.Resolve(context.Background(), payload.Routing{AssistantID: "asst-a", CallerNumber: "+15551112222"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(context.Background(), payload.Routing{AssistantID: "asst-b", CallerNumber: "+15553334444"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(context.Background(), payload.Routing{AssistantID: "asst-a", CallerNumber: "+15559999999"}); err != nil {
		t.Fatal(err)
	}

	if got := store.backfilled["a"]; got != "+15551112222" {
		t.Errorf("tenant a backfilled = %q, want first caller only", got)
	}
	if _, ok := store.backfilled["b"]; ok {
		t.Error("tenant b already had a number and must not be overwritten")
	}
}

func TestResolve_MetadataDoesNotHeal(t *testing.T) {
	store := newMockStore(&models.Tenant{ID: "a"})
	r := NewResolver(store)
	res, err := r.Resolve(context.Background(), payload.Routing{MetadataTenantID: "a", CallerNumber: "+15551112222"})
	if err != nil {
		t.Fatal(err)
	}
	if len(store.backfilled) != 0 {
		t.Error("metadata resolution must not backfill")
	}
	tn, err := r.Load(context.Background(), res)
	if err != nil || tn == nil || tn.ID != "a" {
		t.Errorf("Load = %v, %v", tn, err)
	}
}

func TestResolve_HealSkipsNumberOwnedElsewhere(t *testing.T) {
	a := &models.Tenant{ID: "a", PhoneNumberID: "pn-a"}
	b := &models.Tenant{ID: "b", InboundNumber: "+15550001111"}
	store := newMockStore(a, b)
	r := NewResolver(store)

	res, err := r.Resolve(context.Background(), payload.Routing{PhoneNumberID: "pn-a", CallerNumber: "+15550001111"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.TenantID != "a" {
		t.Fatalf("TenantID = %q, want a", res.TenantID)
	}
	if len(store.backfilled) != 0 {
		t.Errorf("backfilled = %v, want none", store.backfilled)
	}
	if a.InboundNumber != "" || b.InboundNumber != "+15550001111" {
		t.Errorf("tenants changed: a=%q b=%q", a.InboundNumber, b.InboundNumber)
	}
	if res.Tenant.InboundNumber != "" {
		t.Errorf("resolved tenant InboundNumber = %q, want empty", res.Tenant.InboundNumber)
	}
}
