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

package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dineline/callsvc/internal/models"
)

// PGStore persists orders in Postgres. The (restaurant_id,
// vapi_conversation_id) unique constraint is the idempotency key.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates an order store backed by the given Postgres pool.
// It ensures the orders table exists on creation.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	s := &PGStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure order schema: %w", err)
	}
	slog.Info("order store initialised")
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id                   TEXT PRIMARY KEY,
			restaurant_id        TEXT NOT NULL,
			status               TEXT NOT NULL DEFAULT 'new',
			intent               TEXT NOT NULL DEFAULT 'order',
			order_type           TEXT,
			customer_name        TEXT,
			customer_phone       TEXT,
			delivery_address     TEXT,
			requested_time       TEXT,
			items                JSONB NOT NULL DEFAULT '[]',
			special_instructions TEXT,
			ai_summary           TEXT,
			transcript_text      TEXT,
			audio_url            TEXT,
			raw_payload          JSONB,
			vapi_conversation_id TEXT NOT NULL,
			from_number          TEXT,
			to_number            TEXT,
			started_at           TIMESTAMPTZ,
			ended_at             TIMESTAMPTZ,
			created_at           TIMESTAMPTZ DEFAULT NOW(),
			updated_at           TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(restaurant_id, vapi_conversation_id)
		);
		CREATE INDEX IF NOT EXISTS idx_orders_restaurant_created ON orders(restaurant_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	`)
	return err
}

const selectOrder = `
	SELECT id, restaurant_id, status, intent, COALESCE(order_type, ''),
	       COALESCE(customer_name, ''), COALESCE(customer_phone, ''),
	       COALESCE(delivery_address, ''), COALESCE(requested_time, ''),
	       items, COALESCE(special_instructions, ''), COALESCE(ai_summary, ''),
	       COALESCE(transcript_text, ''), COALESCE(audio_url, ''), raw_payload,
	       vapi_conversation_id, COALESCE(from_number, ''), COALESCE(to_number, ''),
	       started_at, ended_at, created_at
	FROM orders`

// FindByCall returns the order for a call, or nil if none exists.
func (s *PGStore) FindByCall(ctx context.Context, tenantID, callID string) (*models.Order, error) {
	row := s.pool.QueryRow(ctx, selectOrder+`
		WHERE restaurant_id = $1 AND vapi_conversation_id = $2
	`, tenantID, callID)
	return scanOrder(row)
}

// Insert writes o. It reports false without error when an order for the
// same call already exists.
func (s *PGStore) Insert(ctx context.Context, o *models.Order) (bool, error) {
	items := o.Items
	if items == nil {
		items = []models.OrderItem{}
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO orders
			(id, restaurant_id, status, intent, order_type, customer_name, customer_phone,
			 delivery_address, requested_time, items, special_instructions, ai_summary,
			 transcript_text, audio_url, raw_payload, vapi_conversation_id, from_number,
			 to_number, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (restaurant_id, vapi_conversation_id) DO NOTHING
		RETURNING created_at
	`,
		o.ID, o.TenantID, o.Status, o.Intent, nullIfEmpty(string(o.OrderType)),
		nullIfEmpty(o.CustomerName), nullIfEmpty(o.CustomerPhone),
		nullIfEmpty(o.DeliveryAddress), nullIfEmpty(o.RequestedTime),
		items, nullIfEmpty(o.SpecialInstructions), nullIfEmpty(o.Summary),
		nullIfEmpty(o.Transcript), nullIfEmpty(o.RecordingURL), o.RawPayload,
		o.CallID, nullIfEmpty(o.FromNumber), nullIfEmpty(o.ToNumber),
		nullTime(o.StartedAt), nullTime(o.EndedAt),
	).Scan(&o.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o                  models.Order
		orderType          string
		startedAt, endedAt *time.Time
		raw                *models.OrderData
	)
	err := row.Scan(
		&o.ID, &o.TenantID, &o.Status, &o.Intent, &orderType,
		&o.CustomerName, &o.CustomerPhone,
		&o.DeliveryAddress, &o.RequestedTime,
		&o.Items, &o.SpecialInstructions, &o.Summary,
		&o.Transcript, &o.RecordingURL, &raw,
		&o.CallID, &o.FromNumber, &o.ToNumber,
		&startedAt, &endedAt, &o.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.OrderType = models.OrderType(orderType)
	if raw != nil {
		o.RawPayload = *raw
	}
	if startedAt != nil {
		o.StartedAt = *startedAt
	}
	if endedAt != nil {
		o.EndedAt = *endedAt
	}
	return &o, nil
}
