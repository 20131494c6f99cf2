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

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetCall_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call/call-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id":"call-1",
			"customer":{"number":"+15551234567"},
			"artifact":{"transcript":"AI: hi\nUser: two soups","recording":{"mono":{"combinedUrl":"https://rec/1.wav"}}},
			"analysis":{"summary":"Ordered soup","structuredData":{"customer_name":"Sam"}},
			"endedAt":"2026-01-07T19:04:00Z",
			"endedReason":"customer-ended-call"
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)
	call, err := c.GetCall(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if call.CallerNumber != "+15551234567" {
		t.Errorf("CallerNumber = %q", call.CallerNumber)
	}
	if !strings.Contains(call.Transcript, "two soups") {
		t.Errorf("Transcript = %q", call.Transcript)
	}
	if call.RecordingURL != "https://rec/1.wav" {
		t.Errorf("RecordingURL = %q", call.RecordingURL)
	}
	if call.StructuredData["customer_name"] != "Sam" {
		t.Errorf("StructuredData = %v", call.StructuredData)
	}
	if call.Summary != "Ordered soup" {
		t.Errorf("Summary = %q", call.Summary)
	}
	if call.EndedAt.IsZero() || call.EndedReason != "customer-ended-call" {
		t.Errorf("EndedAt = %v, EndedReason = %q", call.EndedAt, call.EndedReason)
	}
}

func TestGetCall_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client(), srv.URL).GetCall(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetCall_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client(), srv.URL).GetCall(context.Background(), "c")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want non-404 error", err)
	}
}

func TestParseCall_MessagesTranscript(t *testing.T) {
	body := `{"id":"c","fromNumber":"+15550000000","messages":[
		{"role":"system","message":""},
		{"role":"bot","message":"Thanks for calling."},
		{"role":"user","message":"I'd like a pizza"},
		{"role":"tool","content":"ok"}
	]}`
	call, err := parseCall(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	want := "Assistant: Thanks for calling.\nCaller: I'd like a pizza\nSystem: ok"
	if call.Transcript != want {
		t.Errorf("Transcript = %q, want %q", call.Transcript, want)
	}
	if call.CallerNumber != "+15550000000" {
		t.Errorf("CallerNumber = %q", call.CallerNumber)
	}
}

func TestParseCall_TranscriptStringWinsOverMessages(t *testing.T) {
	call, err := parseCall(strings.NewReader(`{"transcript":"full","messages":[{"role":"user","message":"x"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if call.Transcript != "full" {
		t.Errorf("Transcript = %q", call.Transcript)
	}
}
