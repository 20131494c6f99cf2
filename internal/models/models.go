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

// Package models defines the data structures shared across the call service.
package models

import "time"

// OrderStatus is the kitchen workflow state of an order.
type OrderStatus string

const (
	StatusNew        OrderStatus = "new"
	StatusInProgress OrderStatus = "in_progress"
	StatusCompleted  OrderStatus = "completed"
)

// Intent is what the caller wanted from the call.
type Intent string

const (
	IntentOrder       Intent = "order"
	IntentReservation Intent = "reservation"
	IntentInfo        Intent = "info"
)

// OrderType distinguishes pickup, delivery and table reservations.
// The zero value means the type is unknown.
type OrderType string

const (
	OrderTypeNone        OrderType = ""
	OrderTypePickup      OrderType = "pickup"
	OrderTypeDelivery    OrderType = "delivery"
	OrderTypeReservation OrderType = "reservation"
)

// Tenant is a restaurant account. The routing keys (inbound number,
// assistant id, phone-number id) are each owned by at most one tenant.
type Tenant struct {
	ID                   string
	Name                 string
	InboundNumber        string // E.164; empty when not yet known
	AssistantID          string
	PhoneNumberID        string
	HoursOpen            string // "HH:MM" or "HH:MM:SS"
	HoursClose           string
	Timezone             string // IANA name
	AfterHoursTakeOrders bool
	ReservationsEnabled  bool
	KitchenEmails        []string
	KnowledgeBase        string
}

// OrderItem is a single line on a kitchen ticket.
type OrderItem struct {
	Name  string `json:"name"`
	Qty   *int   `json:"qty,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Qty returns a pointer to n for building items.
func Qty(n int) *int {
	return &n
}

// OrderData is the order as understood from the call, before it is
// persisted. It is stored verbatim as the order's raw payload.
type OrderData struct {
	CustomerName        string      `json:"customer_name,omitempty"`
	CustomerPhone       string      `json:"customer_phone,omitempty"`
	OrderType           OrderType   `json:"order_type,omitempty"`
	RequestedTime       string      `json:"requested_time,omitempty"`
	DeliveryAddress     string      `json:"delivery_address,omitempty"`
	Items               []OrderItem `json:"items,omitempty"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
	Allergies           string      `json:"allergies,omitempty"`
	Intent              Intent      `json:"intent,omitempty"`
}

// CallOutcome is the reconciled, in-memory view of one completed call.
// Empty strings and a nil StructuredData mean "not known".
type CallOutcome struct {
	TenantID       string
	CallID         string
	CallerNumber   string
	CalledNumber   string
	Transcript     string
	Summary        string // provider-generated summary, if any
	StructuredData map[string]any
	RecordingURL   string
	StartedAt      time.Time
	EndedAt        time.Time
	EndedReason    string
}

// Missing lists the backfillable fields that are still unknown.
func (o *CallOutcome) Missing() []string {
	var missing []string
	if o.Transcript == "" {
		missing = append(missing, "transcript")
	}
	if o.StructuredData == nil {
		missing = append(missing, "structured_data")
	}
	if o.CallerNumber == "" {
		missing = append(missing, "caller_number")
	}
	if o.RecordingURL == "" {
		missing = append(missing, "recording_url")
	}
	if o.EndedAt.IsZero() {
		missing = append(missing, "ended_at")
	}
	return missing
}

// HasRequired reports whether the two fields the pipeline needs most
// (transcript and caller number) are present.
func (o *CallOutcome) HasRequired() bool {
	return o.Transcript != "" && o.CallerNumber != ""
}

// Order is the durable record of one completed call.
type Order struct {
	ID                  string      `json:"id"`
	TenantID            string      `json:"restaurant_id"`
	Status              OrderStatus `json:"status"`
	Intent              Intent      `json:"intent"`
	OrderType           OrderType   `json:"order_type,omitempty"`
	CustomerName        string      `json:"customer_name,omitempty"`
	CustomerPhone       string      `json:"customer_phone,omitempty"`
	DeliveryAddress     string      `json:"delivery_address,omitempty"`
	RequestedTime       string      `json:"requested_time,omitempty"`
	Items               []OrderItem `json:"items,omitempty"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
	Summary             string      `json:"ai_summary,omitempty"`
	Transcript          string      `json:"transcript_text,omitempty"`
	RecordingURL        string      `json:"audio_url,omitempty"`
	RawPayload          OrderData   `json:"raw_payload"`
	CallID              string      `json:"vapi_conversation_id"`
	FromNumber          string      `json:"from_number,omitempty"`
	ToNumber            string      `json:"to_number,omitempty"`
	StartedAt           time.Time   `json:"started_at"`
	EndedAt             time.Time   `json:"ended_at"`
	CreatedAt           time.Time   `json:"created_at"`
}

// IsReservation reports whether the order is a table reservation. An
// explicit pickup or delivery type always wins over a reservation intent.
func (o *Order) IsReservation() bool {
	switch o.OrderType {
	case OrderTypePickup, OrderTypeDelivery:
		return false
	case OrderTypeReservation:
		return true
	}
	return o.Intent == IntentReservation
}

// CallSummary is what the summarization service returns for a transcript.
type CallSummary struct {
	Summary      string      `json:"summary"`
	CustomerName string      `json:"customer_name,omitempty"`
	Items        []OrderItem `json:"items,omitempty"`
}
