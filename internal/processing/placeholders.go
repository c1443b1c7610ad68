// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package processing

import (
	"regexp"
	"strings"
)

// Placeholders understood in template cells.
const (
	InsertStationFrom   = "{INSERT_STATION_FROM}"
	InsertStationTo     = "{INSERT_STATION_TO}"
	InsertCountry       = "{INSERT_COUNTRY}"
	InsertCriterionType = "{INSERT_CRITERION_TYPE}"
	InsertLanguageCode  = "{INSERT_LANGUAGE_CODE}"
	InsertCategory      = "{INSERT_CATEGORY}"
	InsertTicketPrice   = "{INSERT_TICKET_PRICE}"
	InsertTargetLoc     = "{INSERT_TARGET_LOCATION}"
)

// ticketPriceLine matches a whole line that mentions the ticket price.
var ticketPriceLine = regexp.MustCompile(`.*` + regexp.QuoteMeta(InsertTicketPrice) + `.*`)

// formatName fills {NAME} fields from values. Unknown fields are left as
// they are; "{{" and "}}" are literal braces.
func formatName(s string, values map[string]string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			name := s[i+1 : i+1+end]
			if v, ok := values[name]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(s[i : i+2+end])
			}
			i += 1 + end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// replaceAll applies strings.ReplaceAll to every string cell of r.
func (r record) replaceAll(old, new string) {
	for k, v := range r {
		if s, ok := v.(string); ok {
			r[k] = strings.ReplaceAll(s, old, new)
		}
	}
}

// blankTicketPrice removes every line that mentions the ticket price.
func (r record) blankTicketPrice() {
	for k, v := range r {
		if s, ok := v.(string); ok && strings.Contains(s, InsertTicketPrice) {
			r[k] = ticketPriceLine.ReplaceAllString(s, "")
		}
	}
}
