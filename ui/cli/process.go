// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gsheets-app/google-sheets/internal/processing"
	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the campaign processing on CSV exports of the sheets",
	Long: `Runs the same processing as the HTTP endpoints on sheets exported as CSV.
The first row of each file is the header. The result is written as CSV, or
as the JSON response body with --format json.`,
}

var processCampaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Generate campaigns from the campaign template",
	RunE: func(cmd *cobra.Command, args []string) error {
		template, newCampaign, err := readProcessInputs(cmd)
		if err != nil {
			return err
		}
		out, err := processing.ProcessCampaignRequest(processing.CampaignRequest{
			Template:    template,
			NewCampaign: newCampaign,
		})
		if err != nil {
			return err
		}
		return writeProcessOutput(cmd, out)
	},
}

func newProcessDataCmd(resource string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   resource,
		Short: fmt.Sprintf("Generate %ss from the %s template and the merged campaigns/ad groups", resource, resource),
		RunE: func(cmd *cobra.Command, args []string) error {
			template, newCampaign, err := readProcessInputs(cmd)
			if err != nil {
				return err
			}
			mergedFile, _ := cmd.Flags().GetString("merged")
			merged, err := readSheetCSV(mergedFile)
			if err != nil {
				return err
			}
			out, err := processing.ProcessDataRequest(processing.DataRequest{
				Template:                template,
				NewCampaign:             newCampaign,
				MergedCampaignsAdGroups: merged,
				Resource:                resource,
			})
			if err != nil {
				return err
			}
			return writeProcessOutput(cmd, out)
		},
	}
	cmd.Flags().String("merged", "", "Merged campaigns and ad groups CSV")
	_ = cmd.MarkFlagRequired("merged")
	return cmd
}

func init() {
	pf := processCmd.PersistentFlags()
	pf.String("template", "", "Template CSV")
	pf.String("new-campaign", "", "New campaign CSV")
	pf.StringP("output", "o", "-", "Output file (- for stdout)")
	pf.String("format", "csv", "Output format: csv or json")
	_ = processCmd.MarkPersistentFlagRequired("template")
	_ = processCmd.MarkPersistentFlagRequired("new-campaign")

	processCmd.AddCommand(
		processCampaignCmd,
		newProcessDataCmd(processing.ResourceAd),
		newProcessDataCmd(processing.ResourceKeyword),
	)
}

func readProcessInputs(cmd *cobra.Command) (processing.SheetValues, processing.SheetValues, error) {
	templateFile, _ := cmd.Flags().GetString("template")
	newCampaignFile, _ := cmd.Flags().GetString("new-campaign")
	template, err := readSheetCSV(templateFile)
	if err != nil {
		return processing.SheetValues{}, processing.SheetValues{}, err
	}
	newCampaign, err := readSheetCSV(newCampaignFile)
	if err != nil {
		return processing.SheetValues{}, processing.SheetValues{}, err
	}
	return template, newCampaign, nil
}

// readSheetCSV loads a sheet export. Rows may have fewer cells than the
// header, as in the Sheets API.
func readSheetCSV(path string) (processing.SheetValues, error) {
	f, err := os.Open(path)
	if err != nil {
		return processing.SheetValues{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return processing.SheetValues{}, fmt.Errorf("read %s: %w", path, err)
	}
	values := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, cell := range rec {
			row[j] = cell
		}
		values[i] = row
	}
	return processing.SheetValues{Values: values}, nil
}

func writeProcessOutput(cmd *cobra.Command, out processing.SheetValues) error {
	path, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	w := stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "csv":
		if err := writeSheetCSV(w, out.Values); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (want csv or json)", format)
	}
	if out.IssuesPresent {
		fmt.Fprintln(cmd.ErrOrStderr(), "Some rows have issues, see the Issues column.")
	}
	return nil
}

func writeSheetCSV(w io.Writer, values [][]any) error {
	cw := csv.NewWriter(w)
	for _, row := range values {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = cellString(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
