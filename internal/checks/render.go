// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package checks

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	nameStyle    = lipgloss.NewStyle().Width(16)
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	outputStyle  = lipgloss.NewStyle().PaddingLeft(4).Foreground(lipgloss.Color("244"))
)

func statusStyle(s Status) lipgloss.Style {
	switch s {
	case StatusPassed:
		return passedStyle
	case StatusFailed:
		return failedStyle
	default:
		return skippedStyle
	}
}

// Render formats results as a table, one line per tool followed by the
// output of failed tools.
func Render(results []Result) string {
	var b strings.Builder
	for _, r := range results {
		line := nameStyle.Render(r.Tool.Name) + statusStyle(r.Status).Render(string(r.Status))
		if r.Duration > 0 {
			line += fmt.Sprintf("  %s", r.Duration.Round(time.Millisecond))
		}
		if r.Status == StatusSkipped || (r.Err != nil && r.Output == "") {
			if r.Err != nil {
				line += "  (" + r.Err.Error() + ")"
			}
		}
		b.WriteString(line + "\n")
		if r.Status == StatusFailed && r.Output != "" {
			b.WriteString(outputStyle.Render(r.Output) + "\n")
		}
	}
	return b.String()
}
