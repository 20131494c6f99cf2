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
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dineline/callsvc/internal/models"
)

// PGStore reads and heals restaurant routing keys in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a tenant store backed by the given Postgres pool.
// It ensures the restaurants table exists on creation.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	s := &PGStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure restaurant schema: %w", err)
	}
	slog.Info("tenant store initialised")
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS restaurants (
			id                      TEXT PRIMARY KEY,
			name                    TEXT NOT NULL,
			inbound_number_e164     TEXT UNIQUE,
			vapi_assistant_id       TEXT UNIQUE,
			vapi_phone_number_id    TEXT UNIQUE,
			hours_open              TEXT DEFAULT '',
			hours_close             TEXT DEFAULT '',
			timezone                TEXT DEFAULT 'America/New_York',
			after_hours_take_orders BOOLEAN DEFAULT FALSE,
			reservations_enabled    BOOLEAN DEFAULT FALSE,
			kitchen_emails          TEXT[] NOT NULL DEFAULT '{}',
			knowledge_base          TEXT DEFAULT '',
			created_at              TIMESTAMPTZ DEFAULT NOW(),
			updated_at              TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

const selectTenant = `
	SELECT id, name, COALESCE(inbound_number_e164, ''),
	       COALESCE(vapi_assistant_id, ''), COALESCE(vapi_phone_number_id, ''),
	       COALESCE(hours_open, ''), COALESCE(hours_close, ''), COALESCE(timezone, ''),
	       COALESCE(after_hours_take_orders, FALSE), COALESCE(reservations_enabled, FALSE),
	       kitchen_emails, COALESCE(knowledge_base, '')
	FROM restaurants`

// GetByID returns the restaurant with the given id, or nil if none exists.
func (s *PGStore) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	return scanTenant(s.pool.QueryRow(ctx, selectTenant+` WHERE id = $1`, id))
}

// FindByPhoneNumberID looks a restaurant up by its provider phone-number id.
func (s *PGStore) FindByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Tenant, error) {
	return scanTenant(s.pool.QueryRow(ctx, selectTenant+` WHERE vapi_phone_number_id = $1`, phoneNumberID))
}

// FindByInboundNumber looks a restaurant up by its E.164 inbound number.
func (s *PGStore) FindByInboundNumber(ctx context.Context, number string) (*models.Tenant, error) {
	return scanTenant(s.pool.QueryRow(ctx, selectTenant+` WHERE inbound_number_e164 = $1`, number))
}

// FindByAssistantID looks a restaurant up by its provider assistant id.
func (s *PGStore) FindByAssistantID(ctx context.Context, assistantID string) (*models.Tenant, error) {
	return scanTenant(s.pool.QueryRow(ctx, selectTenant+` WHERE vapi_assistant_id = $1`, assistantID))
}

// BackfillInboundNumber stores number on the restaurant only if none is set.
// It reports whether a row was updated.
func (s *PGStore) BackfillInboundNumber(ctx context.Context, id, number string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE restaurants
		SET inbound_number_e164 = $1, updated_at = NOW()
		WHERE id = $2 AND inbound_number_e164 IS NULL
	`, number, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(
		&t.ID, &t.Name, &t.InboundNumber,
		&t.AssistantID, &t.PhoneNumberID,
		&t.HoursOpen, &t.HoursClose, &t.Timezone,
		&t.AfterHoursTakeOrders, &t.ReservationsEnabled,
		&t.KitchenEmails, &t.KnowledgeBase,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
