// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package processing

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Ad platform limits.
const (
	MinHeadlines    = 3
	MaxHeadlines    = 15
	MinDescriptions = 2
	MaxDescriptions = 4

	MaxHeadlineLength    = 30
	MaxDescriptionLength = 90
	MaxPathLength        = 15

	MaxSitelinkTextLength        = 25
	MaxSitelinkDescriptionLength = 35
)

// IssuesColumn is prepended to validated frames that have problems.
const IssuesColumn = "Issues"

// ValidateOutput checks generated rows against the ad platform limits. The
// result starts with an Issues column when at least one row has a problem.
// Keyword rows are not checked.
func ValidateOutput(f Frame, resource string) Frame {
	var check func(Frame, record) string
	switch resource {
	case ResourceAd:
		check = adIssues
	case ResourceCampaign:
		check = campaignIssues
	default:
		return f
	}

	out := f.clone()
	issues := make([]string, len(out.Rows))
	found := false
	for i := range out.Rows {
		issues[i] = check(out, out.record(i))
		found = found || issues[i] != ""
	}
	if !found {
		return out
	}
	out.InsertColumn(0, IssuesColumn, "")
	for i := range out.Rows {
		out.Rows[i][0] = issues[i]
	}
	return out
}

// HasIssues reports whether f carries an Issues column.
func HasIssues(f Frame) bool { return f.Has(IssuesColumn) }

func columnsContaining(f Frame, part string) []string {
	var out []string
	for _, c := range f.Columns {
		if strings.Contains(c, part) {
			out = append(out, c)
		}
	}
	return out
}

// nonEmpty returns the non-empty cells of cols as strings.
func nonEmpty(r record, cols []string) []string {
	var out []string
	for _, c := range cols {
		if s := r.str(c); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasDuplicates(vals []string) bool {
	seen := map[string]bool{}
	for _, v := range vals {
		if seen[v] {
			return true
		}
		seen[v] = true
	}
	return false
}

func adIssues(f Frame, r record) string {
	var b strings.Builder
	headlineCols := columnsContaining(f, "Headline")
	descriptionCols := columnsContaining(f, "Description")
	headlines := nonEmpty(r, headlineCols)
	descriptions := nonEmpty(r, descriptionCols)

	if hasDuplicates(headlines) {
		b.WriteString("Duplicate headlines found.\n")
	}
	if hasDuplicates(descriptions) {
		b.WriteString("Duplicate descriptions found.\n")
	}

	switch n := len(headlines); {
	case n < MinHeadlines:
		fmt.Fprintf(&b, "Minimum %d headlines are required, found %d.\n", MinHeadlines, n)
	case n > MaxHeadlines:
		fmt.Fprintf(&b, "Maximum %d headlines are allowed, found %d.\n", MaxHeadlines, n)
	}
	switch n := len(descriptions); {
	case n < MinDescriptions:
		fmt.Fprintf(&b, "Minimum %d descriptions are required, found %d.\n", MinDescriptions, n)
	case n > MaxDescriptions:
		fmt.Fprintf(&b, "Maximum %d descriptions are allowed, found %d.\n", MaxDescriptions, n)
	}

	for _, c := range headlineCols {
		if n := utf8.RuneCountInString(r.str(c)); n > MaxHeadlineLength {
			fmt.Fprintf(&b, "Headline length should be less than %d characters, found %d in column %s.\n", MaxHeadlineLength, n, c)
		}
	}
	for _, c := range descriptionCols {
		if n := utf8.RuneCountInString(r.str(c)); n > MaxDescriptionLength {
			fmt.Fprintf(&b, "Description length should be less than %d characters, found %d in column %s.\n", MaxDescriptionLength, n, c)
		}
	}
	for _, c := range []string{"Path 1", "Path 2"} {
		if n := utf8.RuneCountInString(r.str(c)); n > MaxPathLength {
			fmt.Fprintf(&b, "%s length should be less than %d characters, found %d.\n", c, MaxPathLength, n)
		}
	}
	if r.str("Final URL") == "" {
		b.WriteString("Final URL is missing.\n")
	}
	return b.String()
}

func campaignIssues(f Frame, r record) string {
	var b strings.Builder
	for _, c := range f.Columns {
		if !strings.HasPrefix(c, "Sitelink") || !strings.HasSuffix(c, "Text") {
			continue
		}
		text := r.str(c)
		if text == "" {
			continue
		}
		urlCol := strings.ReplaceAll(c, "Text", "Final URL")
		if r.str(urlCol) == "" {
			fmt.Fprintf(&b, "%s is missing.\n", urlCol)
		}
		if n := utf8.RuneCountInString(text); n > MaxSitelinkTextLength {
			fmt.Fprintf(&b, "Sitelink text length should be less than %d characters, found %d in column %s.\n", MaxSitelinkTextLength, n, c)
		}
		descCol := strings.ReplaceAll(c, "Text", "Description")
		for i := 1; i <= 2; i++ {
			if n := utf8.RuneCountInString(r.str(fmt.Sprintf("%s %d", descCol, i))); n > MaxSitelinkDescriptionLength {
				fmt.Fprintf(&b, "Sitelink description length should be less than %d characters, found %d in column %s %d.\n", MaxSitelinkDescriptionLength, n, descCol, i)
			}
		}
	}
	return b.String()
}
