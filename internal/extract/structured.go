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

package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/dineline/callsvc/internal/models"
)

// FromStructured maps provider structured data onto OrderData. Values of the
// wrong type are ignored.
func FromStructured(sd map[string]any) models.OrderData {
	var d models.OrderData
	if sd == nil {
		return d
	}
	d.CustomerName = stringField(sd, "customer_name", "customerName")
	d.CustomerPhone = stringField(sd, "customer_phone", "customerPhone")
	d.OrderType = ParseOrderType(stringField(sd, "order_type", "orderType"))
	d.RequestedTime = stringField(sd, "requested_time", "requestedTime")
	d.DeliveryAddress = stringField(sd, "delivery_address", "deliveryAddress")
	d.SpecialInstructions = stringField(sd, "special_instructions", "specialInstructions")
	d.Allergies = stringField(sd, "allergies")
	d.Intent = ParseIntent(stringField(sd, "intent"))
	if raw, ok := sd["items"]; ok {
		d.Items = ParseItems(raw)
	}
	return d
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// ParseOrderType maps free-form order type values onto the known types.
func ParseOrderType(s string) models.OrderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pickup", "pick-up", "pick up", "takeout", "take out", "carry out", "carryout":
		return models.OrderTypePickup
	case "delivery":
		return models.OrderTypeDelivery
	case "reservation":
		return models.OrderTypeReservation
	}
	return models.OrderTypeNone
}

// ParseIntent maps an intent value; unknown values are left empty.
func ParseIntent(s string) models.Intent {
	switch models.Intent(strings.ToLower(strings.TrimSpace(s))) {
	case models.IntentOrder:
		return models.IntentOrder
	case models.IntentReservation:
		return models.IntentReservation
	case models.IntentInfo:
		return models.IntentInfo
	}
	return ""
}

// ParseItems decodes a structured-data items value. Lists are used as is; a
// string holding an encoded list is decoded, and any other non-empty string
// becomes a single item with that name.
func ParseItems(raw any) []models.OrderItem {
	switch v := raw.(type) {
	case []any:
		return itemList(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			switch d := decoded.(type) {
			case []any:
				return itemList(d)
			case map[string]any:
				return itemList([]any{d})
			}
		}
		return []models.OrderItem{{Name: s}}
	case map[string]any:
		return itemList([]any{v})
	}
	return nil
}

func itemList(list []any) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(list))
	for _, el := range list {
		switch e := el.(type) {
		case string:
			if s := strings.TrimSpace(e); s != "" {
				items = append(items, models.OrderItem{Name: s})
			}
		case map[string]any:
			name := stringField(e, "name", "item")
			if name == "" {
				continue
			}
			item := models.OrderItem{Name: name, Notes: stringField(e, "notes", "modifiers")}
			if q, ok := quantity(e["qty"]); ok {
				item.Qty = models.Qty(q)
			} else if q, ok := quantity(e["quantity"]); ok {
				item.Qty = models.Qty(q)
			}
			items = append(items, item)
		}
	}
	return items
}

func quantity(v any) (int, bool) {
	switch q := v.(type) {
	case float64:
		if q > 0 && q == math.Trunc(q) {
			return int(q), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(q)); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
