// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package processing

import (
	"fmt"
	"strings"
)

// Mandatory columns per sheet.
var (
	CampaignTemplateColumns = []string{
		"Campaign Name", "Language Code", "Campaign Budget",
		"Search Network", "Google Search Network", "Default max. CPC",
	}
	KeywordTemplateColumns = []string{
		"Keyword", "Keyword Match Type", "Level", "Negative", "Language Code", "Category",
	}
	AdTemplateColumns = []string{
		"Language Code", "Category", "Final URL",
		"Headline 1", "Headline 2", "Headline 3",
		"Description Line 1", "Description Line 2", "Path 1", "Path 2",
	}
	// MergedColumns are needed to join the merged campaigns and ad groups
	// sheet to a template.
	MergedColumns      = []string{"Language Code"}
	NewCampaignColumns = []string{
		"Country", "Station From", "Station To", "Final Url From", "Final Url To",
		"Language Code", "Category",
	}
)

// ValidateInput reports duplicate column names and missing mandatory
// columns of the sheet called name. The result is empty when f is usable.
func ValidateInput(f Frame, mandatory []string, name string) string {
	msg := ""
	seen := map[string]bool{}
	for _, c := range f.Columns {
		if seen[c] {
			msg = fmt.Sprintf("Duplicate columns found in the %s data.\nPlease provide unique column names.\n", name)
			break
		}
		seen[c] = true
	}
	for _, c := range mandatory {
		if !seen[c] {
			msg += fmt.Sprintf("Mandatory columns missing in the %s data.\nPlease provide the following columns: %s\n", name, pyList(mandatory))
			break
		}
	}
	return msg
}

// validateLanguageCodes fails when rows of newCampaign use a language code
// that the table has no data for.
func validateLanguageCodes(newCampaign Frame, valid map[string]bool, table string) error {
	var invalid []string
	seen := map[string]bool{}
	for _, v := range newCampaign.Column("Language Code") {
		lc := cellString(v)
		if !valid[lc] && !seen[lc] {
			seen[lc] = true
			invalid = append(invalid, lc)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	quoted := make([]string, len(invalid))
	for i, lc := range invalid {
		quoted[i] = "'" + lc + "'"
	}
	return &InputError{Msg: fmt.Sprintf(`Table: '%s' currently does NOT have any data for the following language codes:
    [%s].

    Please provide data for the above language codes or choose a different language code.
    `, table, strings.Join(quoted, " "))}
}

// upperLanguageCodes uppercases the Language Code column in place and
// returns the distinct codes.
func upperLanguageCodes(f *Frame) map[string]bool {
	codes := map[string]bool{}
	j := f.Index("Language Code")
	if j < 0 {
		return codes
	}
	for _, r := range f.Rows {
		if r[j] != nil {
			r[j] = strings.ToUpper(cellString(r[j]))
		}
		codes[cellString(r[j])] = true
	}
	return codes
}
