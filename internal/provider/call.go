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
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dineline/callsvc/internal/payload"
)

// Call is the subset of a provider call resource the service uses. Empty
// fields were absent from the response.
type Call struct {
	ID             string
	Transcript     string
	Summary        string
	StructuredData map[string]any
	CallerNumber   string
	RecordingURL   string
	StartedAt      time.Time
	EndedAt        time.Time
	EndedReason    string
	Status         string
	AssistantID    string
	PhoneNumberID  string
	Metadata       map[string]any
}

var (
	callTranscript = []payload.Resolver[string]{
		payload.Str("transcript"),
		payload.Str("fullTranscript"),
		payload.Str("transcription"),
		payload.Str("artifact", "transcript"),
		messagesTranscript("messages"),
		messagesTranscript("artifact", "messages"),
	}
	callStructuredData = []payload.Resolver[map[string]any]{
		payload.Obj("structuredData"),
		payload.Obj("artifact", "structuredData"),
		payload.Obj("analysis", "structuredData"),
		payload.Obj("data"),
	}
	callCaller = []payload.Resolver[string]{
		payload.Str("customer", "number"),
		payload.Str("fromNumber"),
		payload.Str("from_number"),
	}
	callRecording = []payload.Resolver[string]{
		payload.Str("artifact", "recordingUrl"),
		payload.Recording("artifact", "recording"),
		payload.Str("recordingUrl"),
		payload.Recording("recording"),
		payload.Str("recording_url"),
		payload.Str("call", "recordingUrl"),
		payload.Recording("call", "recording"),
	}
	callSummary = []payload.Resolver[string]{
		payload.Str("analysis", "summary"),
		payload.Str("summary"),
	}
)

func parseCall(body io.Reader) (*Call, error) {
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode call: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode call: empty body")
	}

	c := &Call{}
	c.ID, _ = payload.Str("id")(raw)
	c.Transcript, _ = payload.First(raw, callTranscript)
	c.Summary, _ = payload.First(raw, callSummary)
	c.StructuredData, _ = payload.First(raw, callStructuredData)
	c.CallerNumber, _ = payload.First(raw, callCaller)
	c.RecordingURL, _ = payload.First(raw, callRecording)
	c.StartedAt, _ = payload.Time("startedAt")(raw)
	c.EndedAt, _ = payload.Time("endedAt")(raw)
	c.EndedReason, _ = payload.Str("endedReason")(raw)
	c.Status, _ = payload.Str("status")(raw)
	c.AssistantID, _ = payload.Str("assistantId")(raw)
	c.PhoneNumberID, _ = payload.Str("phoneNumberId")(raw)
	c.Metadata, _ = payload.First(raw, []payload.Resolver[map[string]any]{
		payload.Obj("metadata"),
		payload.Obj("assistant", "metadata"),
	})
	return c, nil
}

// messagesTranscript builds a speaker-labelled transcript from a message list.
func messagesTranscript(path ...string) payload.Resolver[string] {
	return func(raw map[string]any) (string, bool) {
		var cur any = raw
		for _, key := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				return "", false
			}
			cur = m[key]
		}
		list, ok := cur.([]any)
		if !ok {
			return "", false
		}

		var lines []string
		for _, item := range list {
			msg, ok := item.(map[string]any)
			if !ok {
				continue
			}
			text, _ := payload.First(msg, []payload.Resolver[string]{
				payload.Str("transcript"),
				payload.Str("message"),
				payload.Str("content"),
				payload.Str("text"),
			})
			if strings.TrimSpace(text) == "" {
				continue
			}
			role, _ := msg["role"].(string)
			lines = append(lines, speaker(role)+": "+strings.TrimSpace(text))
		}
		if len(lines) == 0 {
			return "", false
		}
		return strings.Join(lines, "\n"), true
	}
}

func speaker(role string) string {
	switch role {
	case "user", "customer":
		return "Caller"
	case "assistant", "bot":
		return "Assistant"
	}
	return "System"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
