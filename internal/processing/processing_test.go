package processing

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mustFrame(t *testing.T, values ...[]any) Frame {
	t.Helper()
	f, err := FromValues(values)
	if err != nil {
		t.Fatalf("FromValues: %v", err)
	}
	return f
}

func TestValidateInput(t *testing.T) {
	mandatory := []string{"Country", "Station From", "Station To"}
	cases := []struct {
		name string
		cols []any
		want string
	}{
		{"ok", row("Country", "Station From", "Station To"), ""},
		{"duplicate", row("Country", "Station From", "Station To", "Country"),
			"Duplicate columns found in the test data.\nPlease provide unique column names.\n"},
		{"missing", row("Country", "Station From"),
			"Mandatory columns missing in the test data.\nPlease provide the following columns: ['Country', 'Station From', 'Station To']\n"},
		{"both", row("Country", "Country"),
			"Duplicate columns found in the test data.\nPlease provide unique column names.\n" +
				"Mandatory columns missing in the test data.\nPlease provide the following columns: ['Country', 'Station From', 'Station To']\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := mustFrame(t, tc.cols)
			if got := ValidateInput(f, mandatory, "test"); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatName(t *testing.T) {
	values := map[string]string{"INSERT_COUNTRY": "India", "INSERT_STATION_FROM": "Delhi"}
	cases := map[string]string{
		"{INSERT_COUNTRY} - {INSERT_STATION_FROM}": "India - Delhi",
		"{INSERT_UNKNOWN} {INSERT_COUNTRY}":        "{INSERT_UNKNOWN} India",
		"{{literal}} {INSERT_COUNTRY}":             "{literal} India",
		"no placeholders":                          "no placeholders",
		"open {INSERT_COUNTRY":                     "open {INSERT_COUNTRY",
	}
	for in, want := range cases {
		if got := formatName(in, values); got != want {
			t.Errorf("formatName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromValues_RowLongerThanHeader(t *testing.T) {
	_, err := FromValues([][]any{row("a"), row(1, 2)})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestFrame_SortByNilLast(t *testing.T) {
	f := mustFrame(t, row("A", "B"), row("x", nil), row("x", "b"), row("a", "z"))
	f.SortBy("A", "B")
	want := [][]any{row("a", "z"), row("x", "b"), row("x", nil)}
	if !reflect.DeepEqual(f.Rows, want) {
		t.Fatalf("rows = %v, want %v", f.Rows, want)
	}
}

func TestProcessCampaignData_UnknownLanguageCode(t *testing.T) {
	template := mustFrame(t, row("Campaign Name", "Language Code"), row("x", "en"))
	nc := mustFrame(t, row("Language Code"), row("de"), row("EN"), row("fr"))
	_, err := ProcessCampaignData(template, nc)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Table: 'Campaigns'") || !strings.Contains(err.Error(), "['DE' 'FR']") {
		t.Fatalf("unexpected message: %s", err)
	}
}

func TestProcessCampaignData_TargetLocationAndPrefixes(t *testing.T) {
	template := mustFrame(t,
		row("Campaign Name", "Language Code", "Search Network", "Google Search Network", "Default max. CPC"),
		row("{INSERT_TARGET_LOCATION} {INSERT_LANGUAGE_CODE}", "de", "TRUE", "", "0.50"),
	)
	nc := mustFrame(t,
		row("Country", "Station From", "Station To", "Category", "Language Code", "Include Location 1", "Include Location 2", "Sitelink 1 Text"),
		row("Germany", "Berlin", "Munich", "Bus", "DE", "Berlin", "Munich", "Tickets"),
		row("Germany", "Berlin", "Hamburg", "Bus", "de", nil, "", nil),
	)
	got, err := ProcessCampaignData(template, nc)
	if err != nil {
		t.Fatalf("ProcessCampaignData: %v", err)
	}
	wantCols := []string{"Campaign Name", "Language Code", "Search Network", "Google Search Network", "Default max. CPC",
		"Include Location 1", "Include Location 2", "Sitelink 1 Text"}
	if !reflect.DeepEqual(got.Columns, wantCols) {
		t.Fatalf("columns = %v", got.Columns)
	}
	want := [][]any{
		row("Berlin-Munich DE", "DE", true, false, 0.5, "Berlin", "Munich", "Tickets"),
		row("Worldwide DE", "DE", true, false, 0.5, nil, "", nil),
	}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Fatalf("rows = %#v", got.Rows)
	}
}

func TestCoerceFloat_Invalid(t *testing.T) {
	for _, v := range []any{"abc", "1,5", true} {
		if _, err := coerceFloat(v, "Default max. CPC"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("coerceFloat(%#v): expected input error, got %v", v, err)
		}
	}
}

func TestCoerceFloat_BlankStaysEmpty(t *testing.T) {
	for _, v := range []any{nil, "", "  "} {
		got, err := coerceFloat(v, "Default max. CPC")
		if err != nil || got != nil {
			t.Errorf("coerceFloat(%#v) = %#v, %v; want nil, nil", v, got, err)
		}
	}

	template := mustFrame(t,
		row("Campaign Name", "Language Code", "Search Network", "Google Search Network", "Default max. CPC"),
		row("{INSERT_STATION_FROM}", "en", "TRUE", "TRUE", ""),
	)
	nc := mustFrame(t,
		row("Country", "Station From", "Station To", "Category", "Language Code"),
		row("India", "Delhi", "Mumbai", "Bus", "EN"),
	)
	got, err := ProcessCampaignData(template, nc)
	if err != nil {
		t.Fatalf("ProcessCampaignData: %v", err)
	}
	if cpc := got.Rows[0][4]; cpc != nil {
		t.Fatalf("Default max. CPC = %#v, want nil", cpc)
	}
}

func adTemplate(t *testing.T, category, headline2 string) Frame {
	t.Helper()
	return mustFrame(t,
		row("Language Code", "Category", "Final URL", "Headline 1", "Headline 2", "Headline 3",
			"Description Line 1", "Description Line 2", "Path 1", "Path 2"),
		row("EN", category, "", "{INSERT_STATION_FROM} to {INSERT_STATION_TO}", headline2, "Book now",
			"Description 1", "Description 2", "p1", "p2"),
	)
}

func adMerged(t *testing.T) Frame {
	t.Helper()
	return mustFrame(t,
		row("Campaign Name", "Language Code", "Ad Group Name", "Match Type"),
		row("{INSERT_STATION_FROM}-{INSERT_STATION_TO}", "EN", "{INSERT_STATION_FROM} - {INSERT_STATION_TO}", "Exact"),
	)
}

func TestProcessData_TransferKeepsFirstDirectionInHeadlines(t *testing.T) {
	nc := mustFrame(t,
		row("Country", "Station From", "Station To", "Final Url From", "Final Url To", "Language Code", "Category"),
		row("India", "Delhi", "Mumbai", "https://a", "https://b", "EN", "Transfer"),
	)
	got, err := ProcessData(adMerged(t), adTemplate(t, "Transfer", "Cheap"), nc, ResourceAd)
	if err != nil {
		t.Fatalf("ProcessData: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("rows = %d", got.Len())
	}
	for i := 0; i < got.Len(); i++ {
		if h := got.Get(i, "Headline 1"); h != "Delhi to Mumbai" {
			t.Fatalf("row %d headline = %v", i, h)
		}
	}
}

func TestProcessData_MissingTicketPriceBlanksLine(t *testing.T) {
	nc := mustFrame(t,
		row("Country", "Station From", "Station To", "Final Url From", "Final Url To", "Language Code", "Category"),
		row("India", "Delhi", "Mumbai", "https://a", "https://b", "EN", "Bus"),
	)
	got, err := ProcessData(adMerged(t), adTemplate(t, "", "From {INSERT_TICKET_PRICE}"), nc, ResourceAd)
	if err != nil {
		t.Fatalf("ProcessData: %v", err)
	}
	if h := got.Get(0, "Headline 2"); h != "" {
		t.Fatalf("headline 2 = %q", h)
	}
	if h := got.Get(0, "Headline 1"); h != "Delhi to Mumbai" {
		t.Fatalf("headline 1 = %v", h)
	}
	if h := got.Get(1, "Headline 1"); h != "Mumbai to Delhi" {
		t.Fatalf("headline 1 reversed = %v", h)
	}

	checked := ValidateOutput(got, ResourceAd)
	issue := checked.Get(0, IssuesColumn)
	if issue != "Minimum 3 headlines are required, found 2.\n" {
		t.Fatalf("issues = %q", issue)
	}
}

func TestProcessData_CategoryFilterIgnoresCase(t *testing.T) {
	nc := mustFrame(t,
		row("Country", "Station From", "Station To", "Final Url From", "Final Url To", "Language Code", "Category"),
		row("India", "Delhi", "Mumbai", "https://a", "https://b", "EN", "Bus"),
	)
	template := mustFrame(t,
		row("Keyword", "Keyword Match Type", "Level", "Negative", "Language Code", "Category"),
		row("{INSERT_CATEGORY} {INSERT_STATION_TO}", "Exact", "", "False", "EN", "BUS"),
		row("train {INSERT_STATION_TO}", "Exact", "", "False", "EN", "Train"),
	)
	merged := mustFrame(t,
		row("Campaign Name", "Language Code", "Ad Group Name", "Match Type", "Target Category"),
		row("C", "EN", "G {INSERT_STATION_FROM}", "Exact", "False"),
	)
	got, err := ProcessData(merged, template, nc, ResourceKeyword)
	if err != nil {
		t.Fatalf("ProcessData: %v", err)
	}
	want := []any{"Mumbai", "Delhi"}
	if !reflect.DeepEqual(got.Column("Keyword"), want) {
		t.Fatalf("keywords = %v, want %v", got.Column("Keyword"), want)
	}
}

func TestInnerMerge_SuffixesSharedColumns(t *testing.T) {
	left := mustFrame(t, row("k", "v"), row("1", "a"), row("2", "b"))
	right := mustFrame(t, row("k", "v", "w"), row("2", "c", "d"), row("1", "e", "f"))
	got, err := innerMerge(left, right, []string{"k"})
	if err != nil {
		t.Fatalf("innerMerge: %v", err)
	}
	if want := []string{"k", "v_x", "v_y", "w"}; !reflect.DeepEqual(got.Columns, want) {
		t.Fatalf("columns = %v", got.Columns)
	}
	want := [][]any{row("1", "a", "e", "f"), row("2", "b", "c", "d")}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Fatalf("rows = %v", got.Rows)
	}
}

func TestInnerMerge_MissingKey(t *testing.T) {
	left := mustFrame(t, row("Campaign Name", "Match Type"), row("c", "Exact"))
	right := mustFrame(t, row("Language Code", "Keyword"), row("EN", "k"))
	_, err := innerMerge(left, right, []string{"Language Code"})
	if !errors.Is(err, ErrInvalidInput) || !strings.Contains(err.Error(), "'Language Code'") {
		t.Fatalf("expected input error naming the key, got %v", err)
	}
}

func TestValidateOutput_AdCounts(t *testing.T) {
	f := mustFrame(t,
		row("Final URL", "Headline 1", "Headline 2", "Description 1", "Path 1", "Path 2"),
		row(nil, "Same", "Same", "d", strings.Repeat("p", 16), nil),
	)
	got := ValidateOutput(f, ResourceAd)
	want := "Duplicate headlines found.\n" +
		"Minimum 3 headlines are required, found 2.\n" +
		"Minimum 2 descriptions are required, found 1.\n" +
		"Path 1 length should be less than 15 characters, found 16.\n" +
		"Final URL is missing.\n"
	if got.Get(0, IssuesColumn) != want {
		t.Fatalf("issues = %q", got.Get(0, IssuesColumn))
	}
	if f.Has(IssuesColumn) {
		t.Fatalf("input frame was modified")
	}
}

func TestValidateOutput_KeywordUnchanged(t *testing.T) {
	f := mustFrame(t, row("Keyword"), row("x"))
	if got := ValidateOutput(f, ResourceKeyword); got.Has(IssuesColumn) {
		t.Fatalf("keywords are not validated")
	}
}
