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

// Package provider queries the voice provider's call API for call data that
// a webhook delivery left out.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// ErrNotFound is returned when the provider has no record of the call yet.
var ErrNotFound = errors.New("call not found")

// Client retrieves calls from the provider API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a call-query client. httpClient is expected to attach
// the provider API key (see cmd/server).
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// GetCall fetches one call by id. It returns ErrNotFound on 404 and an
// error for any other non-200 response.
func (c *Client) GetCall(ctx context.Context, callID string) (*Call, error) {
	u := fmt.Sprintf("%s/call/%s", c.baseURL, url.PathEscape(callID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Debug("call not yet available", "call_id", callID)
		return nil, ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider API returned HTTP %d for call %s", resp.StatusCode, callID)
	}

	call, err := parseCall(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse call: %w", err)
	}
	call.ID = firstNonEmpty(call.ID, callID)
	return call, nil
}
