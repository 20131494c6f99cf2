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

// Package queue publishes order events for downstream consumers such as
// kitchen display screens. Redis lists and AMQP topic exchanges are supported.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dineline/callsvc/internal/models"
)

// Event types.
const (
	TypeOrderCreated = "order.created.v1"
)

const producer = "callsvc"

// Meta describes an event.
type Meta struct {
	CorrelationID *string   `json:"correlation_id,omitempty"`
	ID            string    `json:"id"`
	Producer      *string   `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

// Envelope is the wire format of every published event.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// OrderCreated is the payload of order.created.v1.
type OrderCreated struct {
	OrderID       string             `json:"order_id"`
	RestaurantID  string             `json:"restaurant_id"`
	CallID        string             `json:"call_id"`
	Intent        models.Intent      `json:"intent"`
	OrderType     models.OrderType   `json:"order_type,omitempty"`
	CustomerName  string             `json:"customer_name,omitempty"`
	CustomerPhone string             `json:"customer_phone,omitempty"`
	RequestedTime string             `json:"requested_time,omitempty"`
	Items         []models.OrderItem `json:"items"`
	Summary       string             `json:"summary,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Publisher sends event envelopes to a broker.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// NewOrderCreated builds the order.created.v1 envelope for o. The call id
// is used as correlation id.
func NewOrderCreated(o *models.Order) Envelope {
	p := producer
	cid := o.CallID
	items := o.Items
	if items == nil {
		items = []models.OrderItem{}
	}
	return Envelope{
		Meta: Meta{
			CorrelationID: &cid,
			ID:            uuid.NewString(),
			Producer:      &p,
			Time:          time.Now().UTC(),
			Type:          TypeOrderCreated,
		},
		Data: OrderCreated{
			OrderID:       o.ID,
			RestaurantID:  o.TenantID,
			CallID:        o.CallID,
			Intent:        o.Intent,
			OrderType:     o.OrderType,
			CustomerName:  o.CustomerName,
			CustomerPhone: o.CustomerPhone,
			RequestedTime: o.RequestedTime,
			Items:         items,
			Summary:       o.Summary,
			CreatedAt:     o.CreatedAt,
		},
	}
}

// Nop discards events. It is used when no events driver is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }
func (Nop) Close() error                            { return nil }
