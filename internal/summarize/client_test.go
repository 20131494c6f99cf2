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

package summarize

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dineline/callsvc/internal/models"
)

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != DefaultModel || req.ResponseFormat["type"] != "json_object" {
			t.Errorf("request = %+v", req)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "two tacos") {
			t.Errorf("transcript missing from prompt")
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(content))
			return
		}
		resp := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestSummarize_Success(t *testing.T) {
	srv := completionServer(t, http.StatusOK,
		`{"summary":"Ana ordered two tacos for pickup.","customer_name":"Ana","items":[{"qty":2,"name":"tacos"}]}`)
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "")
	out, err := c.Summarize(context.Background(), "Caller: two tacos please", models.OrderData{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out.CustomerName != "Ana" || len(out.Items) != 1 || *out.Items[0].Qty != 2 {
		t.Errorf("out = %+v", out)
	}
}

func TestSummarize_APIError(t *testing.T) {
	srv := completionServer(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`)
	defer srv.Close()

	_, err := NewClient(srv.Client(), srv.URL, "").Summarize(context.Background(), "two tacos", models.OrderData{})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("err = %v", err)
	}
}

func TestSummarize_MalformedContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `Sure! Here is the summary`)
	defer srv.Close()

	if _, err := NewClient(srv.Client(), srv.URL, "").Summarize(context.Background(), "two tacos", models.OrderData{}); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantSummary string
		wantName    string
		wantItems   int
		wantErr     bool
	}{
		{"full", `{"summary":" ok ","customer_name":"Sam","items":[{"name":"a"}]}`, "ok", "Sam", 1, false},
		{"rejected name", `{"summary":"x","customer_name":"Pickup"}`, "x", "", 0, false},
		{"null name", `{"summary":"x","customer_name":null}`, "x", "", 0, false},
		{"missing summary", `{"items":[]}`, FallbackSummary, "", 0, false},
		{"bad items filtered", `{"summary":"x","items":[{"qty":2},{"name":5},"soup",{"name":"rice","qty":-3}]}`, "x", "", 1, false},
		{"malformed", `{"summary":`, "", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Validate([]byte(tt.content))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if out.Summary != tt.wantSummary || out.CustomerName != tt.wantName || len(out.Items) != tt.wantItems {
				t.Errorf("out = %+v", out)
			}
		})
	}
}

func TestValidate_DefaultQty(t *testing.T) {
	out, err := Validate([]byte(`{"summary":"x","items":[{"name":"rice","qty":-3}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if *out.Items[0].Qty != 1 {
		t.Errorf("qty = %d, want 1", *out.Items[0].Qty)
	}
}
