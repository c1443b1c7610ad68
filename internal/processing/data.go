// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package processing

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Target resources handled by ProcessData and ValidateOutput.
const (
	ResourceAd       = "ad"
	ResourceKeyword  = "keyword"
	ResourceCampaign = "campaign"
)

// transferCategories keep the outbound stations in the headlines of both directions.
var transferCategories = map[string]bool{"Transfer": true}

// helperColumns are used for matching and never appear in the output.
var helperColumns = []string{
	"Language Code",
	"Category",
	"Target Category",
	"Ad Group Category",
	"Real Category",
}

var fold = cases.Fold()

// sameCategory compares categories case-insensitively.
func sameCategory(a, b string) bool {
	return fold.String(a) == fold.String(b)
}

// withCategories adds the Ad Group Category and Real Category columns when
// the campaigns and ad groups sheet does not carry them. Every merged row
// is repeated once per distinct new campaign category.
func withCategories(merged, newCampaign Frame) Frame {
	if merged.Has("Ad Group Category") && merged.Has("Real Category") {
		return merged
	}
	if merged.Has("Ad Group Category") {
		out := merged.clone()
		src := out.Index("Ad Group Category")
		out.Columns = append(out.Columns, "Real Category")
		for i, r := range out.Rows {
			out.Rows[i] = append(r, r[src])
		}
		return out
	}

	var categories []any
	seen := map[string]bool{}
	for _, v := range newCampaign.Column("Category") {
		if k := cellString(v); !seen[k] {
			seen[k] = true
			categories = append(categories, v)
		}
	}
	out := Frame{Columns: append([]string(nil), merged.Columns...)}
	out.Columns = append(out.Columns, "Ad Group Category")
	addReal := !merged.Has("Real Category")
	if addReal {
		out.Columns = append(out.Columns, "Real Category")
	}
	for _, r := range merged.Rows {
		for _, c := range categories {
			row := append(append([]any(nil), r...), c)
			if addReal {
				row = append(row, c)
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// innerMerge joins left and right on the given columns. Rows come out in
// left order, then right order. Columns are the left columns followed by
// the right non-key columns; other shared names get _x and _y suffixes.
func innerMerge(left, right Frame, on []string) (Frame, error) {
	keys := map[string]bool{}
	for _, k := range on {
		if !left.Has(k) || !right.Has(k) {
			return Frame{}, &InputError{Msg: fmt.Sprintf("Column '%s' is needed to match the sheets but is missing.", k)}
		}
		keys[k] = true
	}
	shared := map[string]bool{}
	for _, c := range right.Columns {
		if !keys[c] && left.Has(c) {
			shared[c] = true
		}
	}

	out := Frame{}
	for _, c := range left.Columns {
		if shared[c] {
			c += "_x"
		}
		out.Columns = append(out.Columns, c)
	}
	var rightIdx []int
	for j, c := range right.Columns {
		if keys[c] {
			continue
		}
		if shared[c] {
			c += "_y"
		}
		out.Columns = append(out.Columns, c)
		rightIdx = append(rightIdx, j)
	}

	leftKey := make([]int, len(on))
	rightKey := make([]int, len(on))
	for i, k := range on {
		leftKey[i], rightKey[i] = left.Index(k), right.Index(k)
	}
	for _, lr := range left.Rows {
		for _, rr := range right.Rows {
			match := true
			for i := range on {
				if cellString(lr[leftKey[i]]) != cellString(rr[rightKey[i]]) {
					match = false
					break
				}
			}
			if !match {
				continue
			}
			row := append([]any(nil), lr...)
			for _, j := range rightIdx {
				row = append(row, rr[j])
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// ProcessData expands the ad or keyword template for every new campaign.
// merged is the campaigns and ad groups sheet the templates are joined to.
func ProcessData(merged, template, newCampaign Frame, resource string) (Frame, error) {
	if resource != ResourceAd && resource != ResourceKeyword {
		return Frame{}, &InputError{Msg: fmt.Sprintf("Invalid target resource '%s'. Expected one of ['ad', 'keyword'].", resource)}
	}
	merged = withCategories(merged.clone(), newCampaign)
	template = template.clone()
	newCampaign = newCampaign.clone()
	upperLanguageCodes(&merged)
	upperLanguageCodes(&template)
	upperLanguageCodes(&newCampaign)

	on := []string{"Language Code"}
	if resource == ResourceAd && merged.Has("Match Type") && template.Has("Match Type") {
		on = append(on, "Match Type")
	}
	joined, err := innerMerge(merged, template, on)
	if err != nil {
		return Frame{}, err
	}

	filtered := Frame{Columns: joined.Columns}
	for i, r := range joined.Rows {
		rec := joined.record(i)
		cat := rec["Category"]
		if cat == nil || cellString(cat) == "" || sameCategory(rec.str("Real Category"), cellString(cat)) {
			filtered.Rows = append(filtered.Rows, r)
		}
	}

	valid := map[string]bool{}
	for _, v := range filtered.Column("Language Code") {
		valid[cellString(v)] = true
	}
	if err := validateLanguageCodes(newCampaign, valid, resource); err != nil {
		return Frame{}, err
	}

	out := Frame{Columns: append([]string(nil), filtered.Columns...)}
	for i := range newCampaign.Rows {
		nc := newCampaign.record(i)
		for j := range filtered.Rows {
			tr := filtered.record(j)
			if tr.str("Language Code") != nc.str("Language Code") || tr.str("Ad Group Category") != nc.str("Category") {
				continue
			}
			for _, row := range processRow(newCampaign, nc, tr, resource) {
				out.appendRecord(row)
			}
		}
		out.DropDuplicates()
	}

	out.Drop(helperColumns...)
	if resource == ResourceKeyword {
		out.Drop("Keyword Match Type")
	}
	out.DropDuplicates()
	out.SortBy("Campaign Name", "Ad Group Name")
	return out, nil
}

type stations struct {
	from, to, finalURL string
}

// processRow returns the rows generated from one template row for both
// travel directions.
func processRow(newCampaign Frame, nc, tr record, resource string) []record {
	if resource == ResourceKeyword &&
		strings.ToLower(tr.str("Negative")) == "false" &&
		tr.str("Keyword Match Type") != tr.str("Match Type") {
		return nil
	}

	dirs := []stations{
		{from: nc.str("Station From"), to: nc.str("Station To")},
		{from: nc.str("Station To"), to: nc.str("Station From")},
	}
	if resource == ResourceAd {
		dirs[0].finalURL = nc.str("Final Url From")
		dirs[1].finalURL = nc.str("Final Url To")
	}

	location := targetLocation(newCampaign, nc)
	var rows []record
	for _, st := range dirs {
		row := tr.copy()
		row["Campaign Name"] = campaignName(row["Campaign Name"], nc, row.str("Language Code"), location)
		if transferCategories[row.str("Category")] {
			replaceHeadlines(row, dirs[0])
		}
		replaceValues(row, nc, st)

		switch resource {
		case ResourceAd:
			row["Final URL"] = st.finalURL
		case ResourceKeyword:
			if strings.ToLower(row.str("Negative")) == "true" {
				row["Match Type"] = row["Keyword Match Type"]
				if strings.Contains(row.str("Level"), "Campaign") {
					row["Ad Group Name"] = nil
				}
			} else if strings.ToLower(row.str("Target Category")) == "false" && row.str("Match Type") == "Exact" {
				if kw, ok := row["Keyword"].(string); ok {
					row["Keyword"] = strings.TrimSpace(strings.ReplaceAll(kw, InsertCategory, ""))
				}
			}
		}

		row.replaceAll(InsertCategory, row.str("Real Category"))
		rows = append(rows, row)
	}
	return rows
}

func replaceHeadlines(row record, st stations) {
	for k, v := range row {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(k, "Headline") {
			continue
		}
		s = strings.ReplaceAll(s, InsertStationFrom, st.from)
		row[k] = strings.ReplaceAll(s, InsertStationTo, st.to)
	}
}

func replaceValues(row, nc record, st stations) {
	row.replaceAll(InsertCountry, nc.str("Country"))
	row.replaceAll(InsertStationFrom, st.from)
	row.replaceAll(InsertStationTo, st.to)
	row.replaceAll(InsertCriterionType, row.str("Match Type"))
	if price := nc.str("Ticket Price"); price != "" {
		row.replaceAll(InsertTicketPrice, price)
	} else {
		row.blankTicketPrice()
	}
}
