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
	"strconv"
	"strings"

	"github.com/dineline/callsvc/internal/models"
)

var (
	itemsOrderedRe  = regexp.MustCompile(`(?i)items?\s+ordered[:\s]+(.+?)(?:\s+total|$|\.)`)
	orderIncludesRe = regexp.MustCompile(`(?i)order\s+includes?[:\s]+(.+?)(?:\s+total|$|\.)`)
	orderedTwoRe    = regexp.MustCompile(`(?i)ordered\s+(\d+)\s+(?:orders?\s+of\s+)?(.+?)\s+and\s+(\d+)\s+(?:orders?\s+of\s+)?(.+?)(?:\s+for\s+|\s+total|$|\.)`)
	orderedOneRe    = regexp.MustCompile(`(?i)ordered\s+(\d+)\s+(?:orders?\s+of\s+)?(.+?)(?:\s+for\s+|\s+total|$|\.)`)
	itemsListRe     = regexp.MustCompile(`(?i)\bitems?[:\s]+([^$]+?)(?:\s+total|$|\.)`)

	splitRe     = regexp.MustCompile(`\s+and\s+|\s*,\s*`)
	leadQtyRe   = regexp.MustCompile(`(?i)^(\d+|one|two|three|four|five|six|seven|eight|nine|ten)\s+(.+)$`)
	trailPunct  = regexp.MustCompile(`[.,;:!?]+$`)
	priceWordRe = regexp.MustCompile(`(?i)\b(total|cost|price|amount|dollars?|cents?|usd)\b`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// Items runs the item patterns against text in a fixed order and returns
// the first non-empty result. It is deterministic for a given input.
func Items(text string) []models.OrderItem {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, p := range []func(string) []models.OrderItem{
		listAfter(itemsOrderedRe, 0),
		listAfter(orderIncludesRe, 0),
		orderedCounts,
		listAfter(itemsListRe, 3),
	} {
		if items := p(text); len(items) > 0 {
			return items
		}
	}
	return nil
}

// listAfter matches re and splits its first group into items. Fragments
// shorter than minLen are dropped.
func listAfter(re *regexp.Regexp, minLen int) func(string) []models.OrderItem {
	return func(text string) []models.OrderItem {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return nil
		}
		var items []models.OrderItem
		for _, frag := range splitRe.Split(strings.TrimSpace(m[1]), -1) {
			frag = strings.TrimSpace(frag)
			if len(frag) < minLen || len(frag) == 0 || looksLikePrice(frag) {
				continue
			}
			if item, ok := parseFragment(frag); ok {
				items = append(items, item)
			}
		}
		return items
	}
}

// orderedCounts handles "ordered N [orders of] X [and M Y]".
func orderedCounts(text string) []models.OrderItem {
	var pairs [][2]string
	if m := orderedTwoRe.FindStringSubmatch(text); m != nil {
		pairs = append(pairs, [2]string{m[1], m[2]}, [2]string{m[3], m[4]})
	} else if m := orderedOneRe.FindStringSubmatch(text); m != nil {
		pairs = append(pairs, [2]string{m[1], m[2]})
	}

	var items []models.OrderItem
	for _, p := range pairs {
		name := cleanName(p[1])
		lower := strings.ToLower(name)
		if name == "" || looksLikePrice(name) || strings.Contains(lower, "delivery") || strings.Contains(lower, "address") {
			continue
		}
		qty, _ := strconv.Atoi(p[0])
		items = append(items, models.OrderItem{Name: name, Qty: models.Qty(qty)})
	}
	return items
}

func parseFragment(frag string) (models.OrderItem, bool) {
	qty := 1
	name := frag
	if m := leadQtyRe.FindStringSubmatch(frag); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			qty = n
		} else {
			qty = numberWords[strings.ToLower(m[1])]
		}
		name = m[2]
	}
	name = cleanName(name)
	if name == "" {
		return models.OrderItem{}, false
	}
	return models.OrderItem{Name: name, Qty: models.Qty(qty)}, true
}

func cleanName(s string) string {
	return strings.TrimSpace(trailPunct.ReplaceAllString(strings.TrimSpace(s), ""))
}

func looksLikePrice(s string) bool {
	return strings.ContainsAny(s, "$€£") || priceWordRe.MatchString(s)
}
