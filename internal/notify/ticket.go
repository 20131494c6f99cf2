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
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/dineline/callsvc/internal/models"
)

const notProvided = "Not provided"

// Ticket is a rendered kitchen notification.
type Ticket struct {
	Subject string
	HTML    string
	Text    string
}

type ticketData struct {
	Restaurant      string
	TypeLabel       string
	RequestedTime   string
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	Items           []ticketItem
	Instructions    string
	Summary         string
	Received        string
	RecordingURL    string
	DashboardURL    string
}

type ticketItem struct {
	Qty   int
	Name  string
	Notes string
}

// typeLabel names the order kind. Explicit pickup/delivery types win over
// a reservation intent.
func typeLabel(o *models.Order) string {
	switch {
	case o.OrderType == models.OrderTypeDelivery:
		return "Delivery"
	case o.OrderType == models.OrderTypePickup:
		return "Pickup"
	case o.IsReservation():
		return "Reservation"
	}
	return "Order"
}

// Subject returns the notification subject for o.
func Subject(restaurant string, o *models.Order) string {
	if typeLabel(o) == "Reservation" {
		return fmt.Sprintf("New Phone Reservation — %s", restaurant)
	}
	return fmt.Sprintf("New Phone Order — %s — %s", restaurant, typeLabel(o))
}

// Render builds the kitchen ticket for o. dashboardBase may be empty.
func Render(t *models.Tenant, o *models.Order, dashboardBase string) (*Ticket, error) {
	d := ticketData{
		Restaurant:    t.Name,
		TypeLabel:     typeLabel(o),
		RequestedTime: firstNonEmpty(o.RequestedTime, o.RawPayload.RequestedTime, "ASAP"),
		CustomerName:  firstNonEmpty(o.CustomerName, o.RawPayload.CustomerName, notProvided),
		CustomerPhone: firstNonEmpty(o.CustomerPhone, o.RawPayload.CustomerPhone, o.FromNumber, notProvided),
		Instructions:  firstNonEmpty(o.SpecialInstructions, o.RawPayload.SpecialInstructions),
		Summary:       o.Summary,
		Received:      receivedAt(o, t.Timezone),
		RecordingURL:  o.RecordingURL,
	}
	if o.OrderType == models.OrderTypeDelivery {
		d.DeliveryAddress = firstNonEmpty(o.DeliveryAddress, o.RawPayload.DeliveryAddress)
	}
	if dashboardBase != "" {
		d.DashboardURL = strings.TrimRight(dashboardBase, "/") + "/orders/" + o.ID
	}

	items := o.Items
	if len(items) == 0 {
		items = o.RawPayload.Items
	}
	for _, it := range items {
		ti := ticketItem{Name: it.Name, Notes: it.Notes}
		if it.Qty != nil {
			ti.Qty = *it.Qty
		}
		d.Items = append(d.Items, ti)
	}

	var html, text bytes.Buffer
	if err := htmlTicket.Execute(&html, d); err != nil {
		return nil, fmt.Errorf("render html ticket: %w", err)
	}
	if err := textTicket.Execute(&text, d); err != nil {
		return nil, fmt.Errorf("render text ticket: %w", err)
	}
	return &Ticket{
		Subject: Subject(t.Name, o),
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}

func receivedAt(o *models.Order, tz string) string {
	ts := o.StartedAt
	if ts.IsZero() {
		ts = o.CreatedAt
	}
	if ts.IsZero() {
		return ""
	}
	if loc, err := time.LoadLocation(tz); err == nil && tz != "" {
		ts = ts.In(loc)
	}
	return ts.Format("Jan 2, 2006 3:04 PM MST")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var textTicket = texttemplate.Must(texttemplate.New("text").Parse(`
{{.Restaurant}}

Order Type: {{.TypeLabel}}
Requested Time: {{.RequestedTime}}

Customer Information:
  Name: {{.CustomerName}}
  Phone: {{.CustomerPhone}}
{{if .DeliveryAddress}}
Delivery Address:
  {{.DeliveryAddress}}
{{end}}
Items:
{{- range .Items}}
  - {{if .Qty}}{{.Qty}}x {{end}}{{.Name}}{{if .Notes}} ({{.Notes}}){{end}}
{{- else}}
  (No items specified)
{{- end}}
{{if .Instructions}}
Special Instructions:
  {{.Instructions}}
{{end}}{{if .Summary}}
Call Summary:
  {{.Summary}}
{{end}}
Call Details:
{{- if .Received}}
  Time: {{.Received}}
{{- end}}
{{- if .RecordingURL}}
  Recording: {{.RecordingURL}}
{{- end}}
{{if .DashboardURL}}
View in Dashboard: {{.DashboardURL}}
{{end}}`))

var htmlTicket = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"></head>
  <body style="margin:0;padding:0;background:#FFF8DC;font-family:Arial,sans-serif;color:#654321;">
    <table role="presentation" width="100%" style="background:#FFF8DC;padding:24px;"><tr><td align="center">
      <table role="presentation" width="100%" style="max-width:640px;background:#FFFFFF;border:1px solid #DEB887;border-radius:18px;">
        <tr><td style="padding:20px 24px;border-bottom:1px solid #DEB887;">
          <div style="font-size:20px;font-weight:800;color:#8B4513;">Kitchen Ticket</div>
          <div style="display:inline-block;margin-top:6px;padding:6px 10px;background:#FFE4B5;border-radius:999px;font-weight:700;font-size:12px;text-transform:uppercase;">{{.TypeLabel}}</div>
          <div style="margin-top:6px;color:#A0522D;font-size:14px;">{{.Restaurant}}</div>
        </td></tr>
        <tr><td style="padding:20px 24px;border-bottom:1px solid #DEB887;">
          <div style="font-size:12px;color:#A0522D;text-transform:uppercase;">Customer</div>
          <div style="margin-top:6px;font-weight:700;">{{.CustomerName}}</div>
          <div style="margin-top:4px;color:#A0522D;font-size:14px;">{{.CustomerPhone}}</div>
          <div style="margin-top:14px;font-size:12px;color:#A0522D;text-transform:uppercase;">Requested Time</div>
          <div style="margin-top:6px;font-weight:700;">{{.RequestedTime}}</div>
          {{- if .DeliveryAddress}}
          <div style="margin-top:14px;font-size:12px;color:#A0522D;text-transform:uppercase;">Delivery Address</div>
          <div style="margin-top:4px;font-weight:600;">{{.DeliveryAddress}}</div>
          {{- end}}
        </td></tr>
        <tr><td style="padding:20px 24px;border-bottom:1px solid #DEB887;">
          <div style="font-size:12px;color:#A0522D;text-transform:uppercase;">Items</div>
          <ul style="list-style:none;padding:0;margin:10px 0 0 0;">
          {{- range .Items}}
            <li style="padding:6px 0;border-bottom:1px dashed #DEB887;"><span style="font-weight:600;">{{if .Qty}}{{.Qty}}x {{end}}{{.Name}}</span>{{if .Notes}}<span style="color:#A0522D;"> ({{.Notes}})</span>{{end}}</li>
          {{- else}}
            <li style="padding:6px 0;color:#A0522D;">No items specified</li>
          {{- end}}
          </ul>
        </td></tr>
        {{- if or .Instructions .Summary}}
        <tr><td style="padding:20px 24px;border-bottom:1px solid #DEB887;">
          {{- if .Instructions}}
          <div style="font-size:12px;color:#A0522D;text-transform:uppercase;">Special Instructions</div>
          <div style="margin-top:6px;font-weight:600;">{{.Instructions}}</div>
          {{- end}}
          {{- if .Summary}}
          <div style="margin-top:12px;font-size:12px;color:#A0522D;text-transform:uppercase;">Call Summary</div>
          <div style="margin-top:6px;line-height:1.5;">{{.Summary}}</div>
          {{- end}}
        </td></tr>
        {{- end}}
        <tr><td style="padding:20px 24px;">
          {{- if .Received}}<span style="color:#A0522D;font-size:14px;">Received: <strong>{{.Received}}</strong></span>{{end}}
          {{- if .RecordingURL}} <a href="{{.RecordingURL}}" style="padding:10px 14px;border:1px solid #DEB887;border-radius:12px;color:#8B4513;text-decoration:none;font-weight:700;">Listen to Recording</a>{{end}}
          {{- if .DashboardURL}} <a href="{{.DashboardURL}}" style="padding:10px 14px;background:#FF8C42;color:#fff;border-radius:12px;text-decoration:none;font-weight:700;">View in Dashboard</a>{{end}}
        </td></tr>
      </table>
    </td></tr></table>
  </body>
</html>`))
