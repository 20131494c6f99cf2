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

// Package summarize asks a chat-completion API for a call summary and the
// order fields it can extract from the transcript, in a single request.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dineline/callsvc/internal/models"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	// FallbackSummary is used when the model returns no summary text.
	FallbackSummary = "Order received - review transcript for details"

	temperature = 0.3
	maxTokens   = 400
)

var rejectedNames = map[string]bool{
	"delivery": true, "pickup": true, "customer": true, "user": true, "caller": true,
}

// Client calls the chat-completion endpoint. Authentication is handled by
// the supplied http.Client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewClient creates a summarization client.
func NewClient(httpClient *http.Client, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Summarize sends one request and validates the returned JSON object.
func (c *Client) Summarize(ctx context.Context, transcript string, partial models.OrderData) (*models.CallSummary, error) {
	known, err := json.MarshalIndent(partial, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal order data: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPrompt, transcript, known)},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
		Temperature:    temperature,
		MaxTokens:      maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summarize request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(respBody, &ae) == nil && ae.Error.Message != "" {
			return nil, fmt.Errorf("completion API error (%d): %s", resp.StatusCode, ae.Error.Message)
		}
		return nil, fmt.Errorf("completion API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("empty completion")
	}

	out, err := Validate([]byte(cr.Choices[0].Message.Content))
	if err != nil {
		return nil, err
	}

	slog.Debug("call summarized",
		"customer_name", out.CustomerName,
		"items", len(out.Items),
		"summary_len", len(out.Summary),
	)
	return out, nil
}

// Validate checks a model reply against the expected shape. Malformed JSON
// is an error; individual bad fields are dropped or defaulted.
func Validate(content []byte) (*models.CallSummary, error) {
	var raw map[string]any
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("malformed summary JSON: %w", err)
	}

	out := &models.CallSummary{Summary: FallbackSummary}
	if s, ok := raw["summary"].(string); ok && strings.TrimSpace(s) != "" {
		out.Summary = strings.TrimSpace(s)
	}
	if n, ok := raw["customer_name"].(string); ok {
		n = strings.TrimSpace(n)
		if n != "" && !rejectedNames[strings.ToLower(n)] {
			out.CustomerName = n
		}
	}
	if list, ok := raw["items"].([]any); ok {
		for _, el := range list {
			m, ok := el.(map[string]any)
			if !ok {
				continue
			}
			name, ok := m["name"].(string)
			if !ok || strings.TrimSpace(name) == "" {
				continue
			}
			qty := 1
			if q, ok := m["qty"].(float64); ok && q > 0 {
				qty = int(q)
			}
			item := models.OrderItem{Name: strings.TrimSpace(name), Qty: models.Qty(qty)}
			if notes, ok := m["notes"].(string); ok {
				item.Notes = strings.TrimSpace(notes)
			}
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

const systemPrompt = `You are a restaurant order summarization assistant. Generate a summary and extract customer name and items from phone call transcripts. Return only valid JSON.`

const userPrompt = `You are summarizing a restaurant phone order/reservation call. Generate a summary AND extract structured data in ONE response.

Transcript:
%s

Existing order data (may be incomplete):
%s

Return a JSON object with this exact structure:
{
  "summary": "A concise summary of the call (2-3 sentences) covering order type, customer name, items, requested time and delivery address if applicable.",
  "customer_name": "The caller's name if mentioned, or null. Never an order term like 'delivery' or 'pickup'.",
  "items": [{"qty": 1, "name": "margarita pizza", "notes": "extra basil"}]
}

Rules:
- items lists food ordered; for reservations use the party size, e.g. {"qty": 4, "name": "Table for 4"}.
- Return an empty items array when nothing was ordered.
- Never put prices, totals or addresses in items.
- qty is a number and defaults to 1.`
