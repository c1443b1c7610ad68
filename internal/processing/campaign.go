// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package processing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// copiedPrefixes are new-campaign columns copied verbatim into every
// generated campaign row.
var copiedPrefixes = []string{
	"Exclude Location",
	"Include Location",
	"Include Language",
	"Exclude Language",
	"Sitelink",
}

func hasCopiedPrefix(col string) bool {
	for _, p := range copiedPrefixes {
		if strings.HasPrefix(col, p) {
			return true
		}
	}
	return false
}

// targetLocation joins the non-empty Include Location* values with "-",
// or returns "Worldwide".
func targetLocation(f Frame, nc record) string {
	var parts []string
	for _, c := range f.Columns {
		if strings.HasPrefix(c, "Include Location") {
			if v := nc.str(c); v != "" {
				parts = append(parts, v)
			}
		}
	}
	if len(parts) == 0 {
		return "Worldwide"
	}
	return strings.Join(parts, "-")
}

// campaignName fills the campaign name placeholders.
func campaignName(name any, nc record, languageCode, location string) any {
	s, ok := name.(string)
	if !ok {
		return name
	}
	return formatName(s, map[string]string{
		"INSERT_COUNTRY":         nc.str("Country"),
		"INSERT_STATION_FROM":    nc.str("Station From"),
		"INSERT_STATION_TO":      nc.str("Station To"),
		"INSERT_CATEGORY":        nc.str("Category"),
		"INSERT_LANGUAGE_CODE":   languageCode,
		"INSERT_TARGET_LOCATION": location,
	})
}

// ProcessCampaignData creates one campaign per new-campaign row and
// matching template row (same language code).
func ProcessCampaignData(template, newCampaign Frame) (Frame, error) {
	template = template.clone()
	newCampaign = newCampaign.clone()
	upperLanguageCodes(&newCampaign)
	validCodes := upperLanguageCodes(&template)
	if err := validateLanguageCodes(newCampaign, validCodes, "Campaigns"); err != nil {
		return Frame{}, err
	}

	out := Frame{Columns: append([]string(nil), template.Columns...)}
	for _, c := range newCampaign.Columns {
		if hasCopiedPrefix(c) && !out.Has(c) {
			out.Columns = append(out.Columns, c)
		}
	}

	for i := range newCampaign.Rows {
		nc := newCampaign.record(i)
		location := targetLocation(newCampaign, nc)
		for j := range template.Rows {
			tr := template.record(j)
			if tr.str("Language Code") != nc.str("Language Code") {
				continue
			}
			row := tr.copy()
			for _, c := range newCampaign.Columns {
				if hasCopiedPrefix(c) {
					row[c] = nc[c]
				}
			}
			row["Campaign Name"] = campaignName(row["Campaign Name"], nc, row.str("Language Code"), location)

			var err error
			if row["Search Network"], err = coerceBool(row["Search Network"]); err != nil {
				return Frame{}, err
			}
			if row["Google Search Network"], err = coerceBool(row["Google Search Network"]); err != nil {
				return Frame{}, err
			}
			if row["Default max. CPC"], err = coerceFloat(row["Default max. CPC"], "Default max. CPC"); err != nil {
				return Frame{}, err
			}
			out.appendRecord(row)
		}
	}
	return out, nil
}

// coerceBool accepts bools, numbers and "true"/"false" in any case. Other
// non-empty text counts as true, like a spreadsheet checkbox with a value.
func coerceBool(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "false", "0":
			return false, nil
		default:
			return true, nil
		}
	default:
		return nil, &InputError{Msg: fmt.Sprintf("Cannot interpret %v as a boolean.", v)}
	}
}

// coerceFloat parses numbers given as text with decimal so "1.20" and
// "1.2" give the same value. An empty cell stays empty.
func coerceFloat(v any, col string) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return nil, &InputError{Msg: fmt.Sprintf("%s should be a number, found '%s'.", col, t)}
		}
		f, _ := d.Float64()
		return f, nil
	default:
		return nil, &InputError{Msg: fmt.Sprintf("%s should be a number, found '%s'.", col, cellString(v))}
	}
}

// clone copies the rows so callers' frames are not modified.
func (f Frame) clone() Frame {
	out := Frame{Columns: append([]string(nil), f.Columns...), Rows: make([][]any, len(f.Rows))}
	for i, r := range f.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}
