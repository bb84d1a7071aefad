package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format selects the report rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("unknown format")

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatText):
		return FormatText, nil
	case string(FormatJSON):
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, value)
	}
}

var titleCaser = cases.Title(language.English)

// ruleTitle renders a rule identifier for human output: "n_plus_one" becomes
// "N Plus One".
func ruleTitle(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// Render formats a report.
func Render(report *Report, format Format) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case FormatText:
		return renderText(report), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func renderText(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "laralint report for %s\n", report.BasePath)
	fmt.Fprintf(&b, "files scanned: %d (skipped: %d)\n\n",
		report.Summary.FilesScanned, report.Summary.FilesSkipped)

	for _, result := range report.Results {
		fmt.Fprintf(&b, "[%s] %s\n", result.Status, ruleTitle(result.Analyzer))
		for _, issue := range result.Issues {
			fmt.Fprintf(&b, "  %s:%d [%s/%s] %s\n",
				issue.File, issue.Line, issue.Code, issue.Severity, issue.Message)
			if issue.Recommendation != "" {
				fmt.Fprintf(&b, "    -> %s\n", issue.Recommendation)
			}
		}
	}

	fmt.Fprintf(&b, "\n%d issue(s), %d failed rule(s)\n",
		report.Summary.IssueCount, report.Summary.FailedRules)
	return b.String()
}
