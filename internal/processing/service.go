// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package processing

import "fmt"

// SheetValues is a sheet as exchanged with clients: header row first.
type SheetValues struct {
	Values        [][]any `json:"values"`
	IssuesPresent bool    `json:"issues_present"`
}

// CampaignRequest asks for campaigns generated from a campaign template.
type CampaignRequest struct {
	Template    SheetValues `json:"template_sheet_values"`
	NewCampaign SheetValues `json:"new_campaign_sheet_values"`
}

// DataRequest asks for ads or keywords generated from a template.
type DataRequest struct {
	Template                SheetValues `json:"template_sheet_values"`
	NewCampaign             SheetValues `json:"new_campaign_sheet_values"`
	MergedCampaignsAdGroups SheetValues `json:"merged_campaigns_ad_groups_sheet_values"`
	Resource                string      `json:"target_resource"`
}

// ValidateRequest asks for generated rows to be checked.
type ValidateRequest struct {
	Values   SheetValues `json:"values"`
	Resource string      `json:"target_resource"`
}

const tooFewRows = "Both template and new campaign data should have at least two rows"

var templateNames = map[string]string{
	ResourceCampaign: "campaign template",
	ResourceAd:       "ad template",
	ResourceKeyword:  "keyword template",
}

var templateColumns = map[string][]string{
	ResourceCampaign: CampaignTemplateColumns,
	ResourceAd:       AdTemplateColumns,
	ResourceKeyword:  KeywordTemplateColumns,
}

// frames checks both sheets and converts them.
func frames(template, newCampaign SheetValues, resource string) (Frame, Frame, error) {
	if len(template.Values) < 2 || len(newCampaign.Values) < 2 {
		return Frame{}, Frame{}, &InputError{Msg: tooFewRows}
	}
	tf, err := FromValues(template.Values)
	if err != nil {
		return Frame{}, Frame{}, err
	}
	nf, err := FromValues(newCampaign.Values)
	if err != nil {
		return Frame{}, Frame{}, err
	}
	msg := ValidateInput(nf, NewCampaignColumns, "new campaign")
	msg += ValidateInput(tf, templateColumns[resource], templateNames[resource])
	if msg != "" {
		return Frame{}, Frame{}, &InputError{Msg: msg}
	}
	return tf, nf, nil
}

func sheet(f Frame) SheetValues {
	return SheetValues{Values: f.Values(), IssuesPresent: HasIssues(f)}
}

// ProcessCampaignRequest validates the sheets, generates the campaigns and
// checks them.
func ProcessCampaignRequest(req CampaignRequest) (SheetValues, error) {
	tf, nf, err := frames(req.Template, req.NewCampaign, ResourceCampaign)
	if err != nil {
		return SheetValues{}, err
	}
	out, err := ProcessCampaignData(tf, nf)
	if err != nil {
		return SheetValues{}, err
	}
	return sheet(ValidateOutput(out, ResourceCampaign)), nil
}

// ProcessDataRequest validates the sheets, generates ads or keywords and
// checks them.
func ProcessDataRequest(req DataRequest) (SheetValues, error) {
	if _, ok := templateNames[req.Resource]; !ok || req.Resource == ResourceCampaign {
		return SheetValues{}, &InputError{Msg: fmt.Sprintf("Invalid target resource '%s'. Expected one of ['ad', 'keyword'].", req.Resource)}
	}
	tf, nf, err := frames(req.Template, req.NewCampaign, req.Resource)
	if err != nil {
		return SheetValues{}, err
	}
	merged, err := FromValues(req.MergedCampaignsAdGroups.Values)
	if err != nil {
		return SheetValues{}, err
	}
	if msg := ValidateInput(merged, MergedColumns, "merged campaigns and ad groups"); msg != "" {
		return SheetValues{}, &InputError{Msg: msg}
	}
	out, err := ProcessData(merged, tf, nf, req.Resource)
	if err != nil {
		return SheetValues{}, err
	}
	return sheet(ValidateOutput(out, req.Resource)), nil
}

// ValidateValues checks already generated rows.
func ValidateValues(req ValidateRequest) (SheetValues, error) {
	if _, ok := templateNames[req.Resource]; !ok {
		return SheetValues{}, &InputError{Msg: fmt.Sprintf("Invalid target resource '%s'. Expected one of ['ad', 'campaign', 'keyword'].", req.Resource)}
	}
	f, err := FromValues(req.Values.Values)
	if err != nil {
		return SheetValues{}, err
	}
	return sheet(ValidateOutput(f, req.Resource)), nil
}
