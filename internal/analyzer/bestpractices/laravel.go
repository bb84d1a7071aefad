// Package bestpractices implements the performance and architecture rules:
// lazy-load detection, query-builder mixing, transaction coverage and the
// smaller single-pattern checks.
package bestpractices

import (
	"strings"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

// writeCalls are the query methods that mutate rows.
var writeCalls = map[string]bool{
	"create": true, "insert": true, "insertGetId": true, "insertOrIgnore": true,
	"update": true, "updateOrCreate": true, "updateOrInsert": true,
	"delete": true, "destroy": true, "forceDelete": true, "truncate": true,
	"save": true, "saveMany": true,
	"firstOrCreate": true, "increment": true, "decrement": true,
	"upsert": true, "attach": true, "detach": true, "sync": true,
	"touch": true, "restore": true,
}

// dbFacadeQueryCalls are the DB facade entry points that touch the database
// when invoked directly.
var dbFacadeQueryCalls = map[string]bool{
	"table": true, "select": true, "selectOne": true, "scalar": true,
	"insert": true, "update": true, "delete": true,
	"statement": true, "unprepared": true, "affectingStatement": true,
}

func isDBFacade(name string) bool {
	switch strings.TrimPrefix(name, "\\") {
	case "DB", "Illuminate\\Support\\Facades\\DB":
		return true
	}
	return false
}

// resolver adapts the analyzer context to the scope walker; a missing
// registry disables model-aware provenance instead of crashing.
func resolver(ctx *analyzer.Context) scope.Resolver {
	if ctx == nil || ctx.Registry == nil {
		return nil
	}
	return ctx.Registry
}

func shortName(fqcn string) string {
	if i := strings.LastIndex(fqcn, "\\"); i >= 0 {
		return fqcn[i+1:]
	}
	return fqcn
}

// newIssue fills the location fields shared by every rule in this package.
func newIssue(file *phpast.File, code string, sev analyzer.Severity, line, endLine int) analyzer.Issue {
	return analyzer.Issue{
		Code:     code,
		Severity: sev,
		File:     file.Path,
		Line:     line,
		EndLine:  endLine,
		Excerpt:  file.Excerpt(line, endLine),
	}
}
