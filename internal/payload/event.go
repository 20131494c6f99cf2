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

// Package payload classifies voice-provider webhook bodies into typed events.
// Two envelope generations are accepted: {"message":{"type":...}} and the
// older flat {"event":...} shape.
package payload

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dineline/callsvc/internal/models"
)

// Completion marker carried by status-update messages when a call ends.
const StatusEnded = "ended"

// Function-call and completion event names across both envelopes.
const (
	typeFunctionCall    = "function-call"
	typeStatusUpdate    = "status-update"
	typeTranscript      = "transcript"
	typeEndOfCallReport = "end-of-call-report"

	legacyCompleted = "conversation.completed"
	legacyUpdated   = "conversation.updated"
)

// Routing holds the identifiers used to find the owning tenant.
type Routing struct {
	CallID           string
	CallerNumber     string
	CalledNumber     string
	PhoneNumberID    string
	AssistantID      string
	MetadataTenantID string
}

// Event is one classified webhook delivery.
type Event interface {
	Route() Routing
	event()
}

// FunctionCallEvent is an in-call tool invocation that needs a synchronous answer.
type FunctionCallEvent struct {
	Routing
	Name       string
	Parameters map[string]any
}

// StatusEvent is a non-terminal status update. Ended calls are reported as
// CompletionEvent instead.
type StatusEvent struct {
	Routing
	Status     string
	Transcript string
}

// TranscriptEvent is a transcript fragment. Partial fragments are ignorable.
type TranscriptEvent struct {
	Routing
	Partial bool
	Role    string
	Text    string
}

// CompletionEvent marks the end of a call and carries whatever call data the
// delivery included. Empty fields are filled later by backfill.
type CompletionEvent struct {
	Routing
	Source         string // message type or legacy event name
	Transcript     string
	Summary        string
	StructuredData map[string]any
	RecordingURL   string
	StartedAt      time.Time
	EndedAt        time.Time
	EndedReason    string
}

// UnrecognizedEvent is any delivery that is none of the above.
type UnrecognizedEvent struct {
	Routing
	Type string
}

func (e *FunctionCallEvent) Route() Routing { return e.Routing }
func (e *StatusEvent) Route() Routing       { return e.Routing }
func (e *TranscriptEvent) Route() Routing   { return e.Routing }
func (e *CompletionEvent) Route() Routing   { return e.Routing }
func (e *UnrecognizedEvent) Route() Routing { return e.Routing }

func (*FunctionCallEvent) event() {}
func (*StatusEvent) event()       {}
func (*TranscriptEvent) event()   {}
func (*CompletionEvent) event()   {}
func (*UnrecognizedEvent) event() {}

// Ignorable reports whether ev needs no processing beyond an acknowledgement.
func Ignorable(ev Event) bool {
	switch e := ev.(type) {
	case *StatusEvent:
		return true
	case *TranscriptEvent:
		return e.Partial
	}
	return false
}

// Parse decodes a webhook body and classifies it.
func Parse(body []byte) (Event, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode webhook body: not a JSON object")
	}
	return Normalize(raw), nil
}

// Normalize classifies a decoded webhook body.
func Normalize(raw map[string]any) Event {
	routing := routingOf(raw)

	kind, _ := First(raw, []Resolver[string]{Str("message", "type")})
	if kind == "" {
		kind, _ = First(raw, []Resolver[string]{Str("event")})
	}

	switch kind {
	case typeFunctionCall:
		fc, _ := First(raw, []Resolver[map[string]any]{
			Obj("message", "functionCall"),
			Obj("functionCall"),
		})
		name, _ := Str("name")(fc)
		params, _ := Obj("parameters")(fc)
		return &FunctionCallEvent{Routing: routing, Name: name, Parameters: params}

	case typeStatusUpdate:
		status, _ := First(raw, []Resolver[string]{Str("message", "status"), Str("status")})
		if status == StatusEnded {
			return completion(raw, routing, kind)
		}
		return &StatusEvent{Routing: routing, Status: status}

	case legacyUpdated:
		transcript, _ := First(raw, TranscriptChain)
		return &StatusEvent{Routing: routing, Status: "in-progress", Transcript: transcript}

	case typeTranscript:
		tt, _ := First(raw, []Resolver[string]{Str("message", "transcriptType"), Str("transcriptType")})
		role, _ := First(raw, []Resolver[string]{Str("message", "role"), Str("role")})
		text, _ := First(raw, []Resolver[string]{Str("message", "transcript"), Str("transcript")})
		return &TranscriptEvent{
			Routing: routing,
			Partial: strings.EqualFold(tt, "partial"),
			Role:    role,
			Text:    text,
		}

	case typeEndOfCallReport, legacyCompleted:
		return completion(raw, routing, kind)
	}

	return &UnrecognizedEvent{Routing: routing, Type: kind}
}

func routingOf(raw map[string]any) Routing {
	var r Routing
	r.CallID, _ = First(raw, CallIDChain)
	r.CallerNumber, _ = First(raw, CallerNumberChain)
	r.CalledNumber, _ = First(raw, CalledNumberChain)
	r.PhoneNumberID, _ = First(raw, PhoneNumberIDChain)
	r.AssistantID, _ = First(raw, AssistantIDChain)
	r.MetadataTenantID, _ = First(raw, MetadataTenantChain)
	return r
}

func completion(raw map[string]any, routing Routing, source string) *CompletionEvent {
	ev := &CompletionEvent{Routing: routing, Source: source}
	ev.Transcript, _ = First(raw, TranscriptChain)
	ev.Summary, _ = First(raw, SummaryChain)
	ev.StructuredData, _ = First(raw, StructuredDataChain)
	ev.RecordingURL, _ = First(raw, RecordingURLChain)
	ev.StartedAt, _ = First(raw, StartedAtChain)
	ev.EndedAt, _ = First(raw, EndedAtChain)
	ev.EndedReason, _ = First(raw, EndedReasonChain)
	return ev
}

// Outcome converts the event into a call outcome for tenantID.
func (e *CompletionEvent) Outcome(tenantID string) *models.CallOutcome {
	return &models.CallOutcome{
		TenantID:       tenantID,
		CallID:         e.CallID,
		CallerNumber:   e.CallerNumber,
		CalledNumber:   e.CalledNumber,
		Transcript:     e.Transcript,
		Summary:        e.Summary,
		StructuredData: e.StructuredData,
		RecordingURL:   e.RecordingURL,
		StartedAt:      e.StartedAt,
		EndedAt:        e.EndedAt,
		EndedReason:    e.EndedReason,
	}
}
