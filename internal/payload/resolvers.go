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

package payload

import (
	"strings"
	"time"
)

// Resolver extracts one field from a raw webhook body. It reports false when
// the location it reads is absent, empty or of the wrong type.
type Resolver[T any] func(raw map[string]any) (T, bool)

// First applies the resolvers in order and returns the first match.
func First[T any](raw map[string]any, chain []Resolver[T]) (T, bool) {
	for _, r := range chain {
		if v, ok := r(raw); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// lookup walks nested objects along path.
func lookup(raw map[string]any, path ...string) (any, bool) {
	var cur any = raw
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Str resolves a non-blank string at path.
func Str(path ...string) Resolver[string] {
	return func(raw map[string]any) (string, bool) {
		v, ok := lookup(raw, path...)
		if !ok {
			return "", false
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}
}

// Obj resolves a non-empty object at path.
func Obj(path ...string) Resolver[map[string]any] {
	return func(raw map[string]any) (map[string]any, bool) {
		v, ok := lookup(raw, path...)
		if !ok {
			return nil, false
		}
		m, ok := v.(map[string]any)
		if !ok || len(m) == 0 {
			return nil, false
		}
		return m, true
	}
}

// Time resolves an RFC 3339 timestamp at path.
func Time(path ...string) Resolver[time.Time] {
	str := Str(path...)
	return func(raw map[string]any) (time.Time, bool) {
		s, ok := str(raw)
		if !ok {
			return time.Time{}, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}
}

// Recording resolves a recording reference at path. The provider has sent
// it both as a bare URL and as an object carrying one of several URL keys.
func Recording(path ...string) Resolver[string] {
	return func(raw map[string]any) (string, bool) {
		v, ok := lookup(raw, path...)
		if !ok {
			return "", false
		}
		switch rec := v.(type) {
		case string:
			if strings.TrimSpace(rec) != "" {
				return rec, true
			}
		case map[string]any:
			return First(rec, []Resolver[string]{
				Str("stereoUrl"),
				Str("mono", "combinedUrl"),
				Str("url"),
				Str("recordingUrl"),
			})
		}
		return "", false
	}
}

// Field chains. Paths under "message" cover the current envelope; top-level
// paths cover the older flat envelope.
var (
	CallIDChain = []Resolver[string]{
		Str("message", "call", "id"),
		Str("message", "conversation_id"),
		Str("conversation_id"),
		Str("call", "id"),
	}

	CallerNumberChain = []Resolver[string]{
		Str("message", "call", "customer", "number"),
		Str("message", "customer", "number"),
		Str("phoneNumber"),
		Str("call", "customer", "number"),
		Str("customer", "number"),
	}

	CalledNumberChain = []Resolver[string]{
		Str("message", "phoneNumber", "number"),
		Str("message", "call", "phoneNumber", "number"),
		Str("phoneNumber", "number"),
	}

	PhoneNumberIDChain = []Resolver[string]{
		Str("message", "phoneNumber", "id"),
		Str("message", "call", "phoneNumberId"),
		Str("message", "phoneNumberId"),
		Str("phoneNumber", "id"),
		Str("phoneNumberId"),
	}

	AssistantIDChain = []Resolver[string]{
		Str("message", "assistant", "id"),
		Str("message", "call", "assistantId"),
		Str("metadata", "assistantId"),
		Str("assistantId"),
		Str("assistant", "id"),
		Str("call", "assistantId"),
	}

	MetadataTenantChain = []Resolver[string]{
		Str("message", "assistant", "metadata", "restaurantId"),
		Str("message", "metadata", "restaurantId"),
		Str("message", "call", "metadata", "restaurantId"),
		Str("metadata", "restaurantId"),
	}

	TranscriptChain = []Resolver[string]{
		Str("message", "artifact", "transcript"),
		Str("message", "transcript"),
		Str("message", "summary", "transcript"),
		Str("message", "report", "transcript"),
		Str("transcript"),
	}

	StructuredDataChain = []Resolver[map[string]any]{
		Obj("message", "artifact", "structuredData"),
		Obj("message", "structuredData"),
		Obj("message", "summary", "structuredData"),
		Obj("message", "report", "structuredData"),
		Obj("message", "analysis", "structuredData"),
		Obj("structuredData"),
	}

	SummaryChain = []Resolver[string]{
		Str("message", "analysis", "summary"),
		Str("message", "summary"),
		Str("message", "report", "summary"),
		Str("summary"),
	}

	RecordingURLChain = []Resolver[string]{
		Str("message", "artifact", "recordingUrl"),
		Str("message", "call", "artifact", "recordingUrl"),
		Recording("message", "artifact", "recording"),
		Recording("message", "call", "artifact", "recording"),
		Str("message", "recordingUrl"),
		Recording("message", "recording"),
		Str("message", "report", "recordingUrl"),
		Str("message", "call", "recordingUrl"),
		Recording("message", "call", "recording"),
		Str("recordingUrl"),
		Recording("recording"),
		Str("recording_url"),
	}

	StartedAtChain = []Resolver[time.Time]{
		Time("message", "call", "startedAt"),
		Time("message", "startedAt"),
		Time("startedAt"),
	}

	EndedAtChain = []Resolver[time.Time]{
		Time("message", "call", "endedAt"),
		Time("message", "endedAt"),
		Time("endedAt"),
	}

	EndedReasonChain = []Resolver[string]{
		Str("message", "endedReason"),
		Str("message", "call", "endedReason"),
		Str("endedReason"),
	}
)
