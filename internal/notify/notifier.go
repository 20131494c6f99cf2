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

// Package notify renders kitchen tickets for new orders and emails them to
// the restaurant's kitchen addresses.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dineline/callsvc/internal/models"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = time.Second
)

// ErrNoRecipients is returned when the tenant has no kitchen addresses.
var ErrNoRecipients = errors.New("no kitchen recipients configured")

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, e Email) (string, error)
}

// Claimer guards the send so a ticket goes out at most once per order.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Config holds the notifier's collaborators and settings.
type Config struct {
	Sender       Sender
	Claims       Claimer // optional
	From         string
	DashboardURL string
	Attempts     int
	BaseDelay    time.Duration
	Sleep        func(ctx context.Context, d time.Duration) error
}

// Notifier sends kitchen tickets.
type Notifier struct {
	sender       Sender
	claims       Claimer
	from         string
	dashboardURL string
	attempts     int
	baseDelay    time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// New creates a notifier, filling defaults for zero settings.
func New(cfg Config) *Notifier {
	n := &Notifier{
		sender:       cfg.Sender,
		claims:       cfg.Claims,
		from:         cfg.From,
		dashboardURL: cfg.DashboardURL,
		attempts:     cfg.Attempts,
		baseDelay:    cfg.BaseDelay,
		sleep:        cfg.Sleep,
	}
	if n.from == "" {
		n.from = DefaultFrom
	}
	if n.attempts <= 0 {
		n.attempts = DefaultAttempts
	}
	if n.baseDelay <= 0 {
		n.baseDelay = DefaultBaseDelay
	}
	if n.sleep == nil {
		n.sleep = sleep
	}
	return n
}

// Result describes what Notify did.
type Result struct {
	MessageID string
	Attempts  int
	Skipped   bool // ticket was already sent for this order
}

// Notify renders and sends the kitchen ticket for o. Transient failures are
// retried with doubling delays; the ticket claim is released when every
// attempt fails so a later replay may try again.
func (n *Notifier) Notify(ctx context.Context, t *models.Tenant, o *models.Order) (Result, error) {
	var res Result
	if t == nil || len(t.KitchenEmails) == 0 {
		return res, ErrNoRecipients
	}

	ticket, err := Render(t, o, n.dashboardURL)
	if err != nil {
		return res, err
	}

	key := ClaimKey(o.ID)
	if n.claims != nil {
		ok, err := n.claims.Claim(ctx, key)
		switch {
		case err != nil:
			slog.Warn("ticket claim unavailable, sending anyway", "order_id", o.ID, "error", err)
		case !ok:
			slog.Info("kitchen ticket already sent", "order_id", o.ID)
			res.Skipped = true
			return res, nil
		}
	}

	email := Email{
		From:    n.from,
		To:      t.KitchenEmails,
		Subject: ticket.Subject,
		HTML:    ticket.HTML,
		Text:    ticket.Text,
	}

	delay := n.baseDelay
	for attempt := 1; attempt <= n.attempts; attempt++ {
		res.Attempts = attempt
		id, sendErr := n.sender.Send(ctx, email)
		if sendErr == nil {
			res.MessageID = id
			slog.Info("kitchen ticket sent",
				"order_id", o.ID,
				"tenant_id", t.ID,
				"recipients", len(t.KitchenEmails),
				"message_id", id,
				"attempts", attempt,
			)
			return res, nil
		}
		err = sendErr

		var se *SendError
		if errors.As(sendErr, &se) && !se.Temporary() {
			break
		}
		if attempt == n.attempts {
			break
		}
		slog.Warn("kitchen ticket send failed, retrying",
			"order_id", o.ID,
			"attempt", attempt,
			"delay", delay,
			"error", sendErr,
		)
		if sleepErr := n.sleep(ctx, delay); sleepErr != nil {
			err = sleepErr
			break
		}
		delay *= 2
	}

	if n.claims != nil {
		if relErr := n.claims.Release(context.WithoutCancel(ctx), key); relErr != nil {
			slog.Warn("failed to release ticket claim", "order_id", o.ID, "error", relErr)
		}
	}
	return res, fmt.Errorf("send kitchen ticket: %w", err)
}

// ClaimKey is the dedup key guarding the ticket for orderID.
func ClaimKey(orderID string) string {
	return "ticket:" + orderID
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
