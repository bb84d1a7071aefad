// Package analyzer defines the rule-engine core: the Analyzer interface
// every rule implements, the issue/report data model, and the suppression
// pre-pass shared by all rules.
package analyzer

import (
	"sort"
	"time"

	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/registry"
)

// Severity grades a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Status is the per-analyzer verdict.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Issue is one finding. Metadata carries analyzer-specific structured facts.
type Issue struct {
	Code           string         `json:"code"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	Recommendation string         `json:"recommendation,omitempty"`
	File           string         `json:"file"`
	Line           int            `json:"line"`
	EndLine        int            `json:"endLine,omitempty"`
	Excerpt        string         `json:"excerpt,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Context is the shared, read-only state handed to every analyzer.
type Context struct {
	Registry *registry.Registry
}

// Analyzer is one independent rule check. Implementations must be safe for
// concurrent Analyze calls on different files.
type Analyzer interface {
	Name() string
	// FailSeverity is the threshold at or above which an issue fails the
	// run; below it the analyzer only reaches warning status.
	FailSeverity() Severity
	Analyze(file *phpast.File, sup *Suppressions, ctx *Context) []Issue
}

// Result aggregates one analyzer's findings across the whole run.
type Result struct {
	Analyzer string  `json:"analyzer"`
	Status   Status  `json:"status"`
	Issues   []Issue `json:"issues,omitempty"`
}

// Summary totals a run.
type Summary struct {
	FilesScanned int `json:"filesScanned"`
	FilesSkipped int `json:"filesSkipped"`
	IssueCount   int `json:"issueCount"`
	FailedRules  int `json:"failedRules"`
}

// Report is the run output.
type Report struct {
	SchemaVersion string    `json:"schemaVersion"`
	GeneratedAt   time.Time `json:"generatedAt"`
	BasePath      string    `json:"basePath"`
	Results       []Result  `json:"results"`
	Summary       Summary   `json:"summary"`
}

const SchemaVersion = "1.0.0"

// Failed reports whether any analyzer failed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}

// StatusFor derives an analyzer status from its issues and fail threshold.
func StatusFor(issues []Issue, failAt Severity) Status {
	if len(issues) == 0 {
		return StatusPassed
	}
	for _, issue := range issues {
		if issue.Severity.AtLeast(failAt) {
			return StatusFailed
		}
	}
	return StatusWarning
}

// SortIssues orders issues deterministically: file, line, code, message.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
}
