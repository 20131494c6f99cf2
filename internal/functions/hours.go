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

package functions

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone applies to restaurants without a configured zone.
const DefaultTimezone = "America/New_York"

// clock is a time of day in minutes after midnight.
type clock int

// parseClock accepts "HH:MM" and "HH:MM:SS".
func parseClock(s string) (clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return clock(h*60 + m), nil
}

func (c clock) on(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, int(c)/60, int(c)%60, 0, 0, day.Location())
}

func (c clock) String() string {
	h, m := int(c)/60%24, int(c)%60
	period := "AM"
	if h >= 12 {
		period = "PM"
	}
	dh := h % 12
	if dh == 0 {
		dh = 12
	}
	return fmt.Sprintf("%d:%02d %s", dh, m, period)
}

// Hours is a restaurant's daily opening window. A close at or before the
// open time means the window ends the following day.
type Hours struct {
	Open  clock
	Close clock
}

// ParseHours parses an open/close pair.
func ParseHours(opens, closes string) (Hours, error) {
	o, err := parseClock(opens)
	if err != nil {
		return Hours{}, err
	}
	c, err := parseClock(closes)
	if err != nil {
		return Hours{}, err
	}
	return Hours{Open: o, Close: c}, nil
}

// IsOpen reports whether now falls inside the window. now must already be in
// the restaurant's location.
func (h Hours) IsOpen(now time.Time) bool {
	for _, day := range []time.Time{now, now.AddDate(0, 0, -1)} {
		start := h.Open.on(day)
		end := h.Close.on(day)
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
		if !now.Before(start) && now.Before(end) {
			return true
		}
	}
	return false
}

// String formats the window as "9:00 AM - 5:00 PM".
func (h Hours) String() string {
	return h.Open.String() + " - " + h.Close.String()
}

func loadLocation(tz string) (*time.Location, string, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, tz, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, tz, nil
}
