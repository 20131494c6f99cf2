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

package extract

import (
	"regexp"
	"strings"

	"github.com/dineline/callsvc/internal/models"
)

const months = `january|february|march|april|may|june|july|august|september|october|november|december`

var (
	monthDayTimeRe = regexp.MustCompile(`(?i)(` + months + `)\s+(\d{1,2})(?:st|nd|rd|th)?\s+(?:at\s+)?(\d{1,2}):?(\d{2})?\s*(am|pm)`)
	timeIsRe       = regexp.MustCompile(`(?i)(?:reservation\s+)?time\s+(?:is\s+)?(?:set\s+for\s+)?(\d{1,2}):?(\d{2})?\s*(am|pm)`)
	relativeTimeRe = regexp.MustCompile(`(?i)(tomorrow|today)\s+(?:at\s+)?(\d{1,2}):?(\d{2})?\s*(am|pm)`)
	clockTimeRe    = regexp.MustCompile(`(?i)(\d{1,2}):?(\d{2})?\s*(am|pm)`)

	transcriptNameRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i:(?:user|customer|caller)'?s?\s+)?(?i:name\s+is)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	}
	summaryNameRes = []*regexp.Regexp{
		transcriptNameRes[0],
		regexp.MustCompile(`(?i:order|reservation)\s+for\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)(?:\s|:|$)`),
		regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+(?i:ordered|requested|called)`),
	}

	excludedNameWords = []string{"delivery", "pickup", "pick-up", "carry out", "takeout", "take out", "asap", "order", "reservation"}

	reservationWords = []string{"reservation", "reserve", "book a table", "table for"}
	orderWords       = []string{"order", "pickup", "delivery", "i want", "i'd like"}
)

// RequestedTime finds a requested date/time phrase in text and formats it,
// e.g. "January 7 at 7:30 PM", "tomorrow at 6:00 PM" or "7:30 PM".
func RequestedTime(text string) (string, bool) {
	if m := monthDayTimeRe.FindStringSubmatch(text); m != nil {
		return titleCase(m[1]) + " " + m[2] + " at " + clock(m[3], m[4], m[5]), true
	}
	if m := timeIsRe.FindStringSubmatch(text); m != nil {
		return clock(m[1], m[2], m[3]), true
	}
	if m := relativeTimeRe.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1]) + " at " + clock(m[2], m[3], m[4]), true
	}
	if m := clockTimeRe.FindStringSubmatch(text); m != nil {
		return clock(m[1], m[2], m[3]), true
	}
	return "", false
}

func clock(hour, minute, period string) string {
	if minute == "" {
		minute = "00"
	}
	if period == "" {
		period = "pm"
	}
	return hour + ":" + minute + " " + strings.ToUpper(period)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

// CustomerName looks for a caller's name in the transcript, then in the
// summary. Order terms such as "pickup" are never returned as names.
func CustomerName(transcript, summary string) (string, bool) {
	if name, ok := firstName(transcript, transcriptNameRes); ok {
		return name, true
	}
	return firstName(summary, summaryNameRes)
}

func firstName(text string, res []*regexp.Regexp) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, re := range res {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if ValidName(name) {
			return name, true
		}
	}
	return "", false
}

// ValidName reports whether s can be used as a customer name.
func ValidName(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" {
		return false
	}
	for _, w := range excludedNameWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

// InferKind classifies a transcript by keyword when no structured data
// says what the caller wanted.
func InferKind(transcript string) (models.Intent, models.OrderType) {
	lower := strings.ToLower(transcript)
	switch {
	case containsAny(lower, reservationWords):
		return models.IntentReservation, models.OrderTypeReservation
	case containsAny(lower, orderWords):
		return models.IntentOrder, models.OrderTypePickup
	}
	return models.IntentInfo, models.OrderTypeNone
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
