// Package security implements the injection and error-handling safety rules.
package security

import (
	"fmt"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

const codeRawSQL = "sql_injection.tainted_raw_sql"

// rawMethodSinks are builder methods whose string argument is spliced into
// SQL verbatim.
var rawMethodSinks = map[string]bool{
	"whereRaw": true, "orWhereRaw": true, "selectRaw": true,
	"orderByRaw": true, "havingRaw": true, "groupByRaw": true,
	"fromRaw": true, "raw": true,
}

// rawFacadeSinks are DB facade entry points taking raw SQL.
var rawFacadeSinks = map[string]bool{
	"raw": true, "select": true, "selectOne": true, "insert": true,
	"update": true, "delete": true, "statement": true, "unprepared": true,
	"scalar": true, "affectingStatement": true,
}

// SQLInjection flags raw-SQL sinks whose argument is built by string
// concatenation or interpolation. Literal-only arguments pass; a bare
// variable is accepted as an unknowable (false negatives over false
// positives).
type SQLInjection struct {
	extraSinks map[string]bool
}

func NewSQLInjection(bag config.AnalyzerConfig) *SQLInjection {
	extra := map[string]bool{}
	for _, sink := range bag.AdditionalSinks {
		extra[sink] = true
	}
	return &SQLInjection{extraSinks: extra}
}

func (a *SQLInjection) Name() string { return "sql_injection" }

func (a *SQLInjection) FailSeverity() analyzer.Severity { return analyzer.SeverityHigh }

func (a *SQLInjection) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	v := &sqlVisitor{rule: a, file: file, sup: sup}
	scope.Walk(file.Root, v, nil)
	return v.issues
}

type sqlVisitor struct {
	scope.Base
	rule   *SQLInjection
	file   *phpast.File
	sup    *analyzer.Suppressions
	issues []analyzer.Issue
}

func (v *sqlVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	var name string
	var args []ast.Vertex
	switch call := n.(type) {
	case *ast.ExprMethodCall:
		name, args = phpast.IdentString(call.Method), call.Args
		if !rawMethodSinks[name] && !v.rule.extraSinks[name] {
			return true
		}
	case *ast.ExprStaticCall:
		name, args = phpast.IdentString(call.Call), call.Args
		class := strings.TrimPrefix(phpast.NameString(call.Class), "\\")
		if class != "DB" && class != "Illuminate\\Support\\Facades\\DB" {
			return true
		}
		if !rawFacadeSinks[name] && !v.rule.extraSinks[name] {
			return true
		}
	default:
		return true
	}

	sql := phpast.ArgExpr(args, 0)
	if sql == nil || !taintedSQL(sql) {
		return true
	}
	if v.sup.Suppressed(v.rule.Name(), sc.CurrentClassName()) {
		return true
	}
	line := phpast.Line(n)
	issue := analyzer.Issue{
		Code:           codeRawSQL,
		Severity:       analyzer.SeverityCritical,
		Message:        fmt.Sprintf("Raw SQL passed to %s() is built from interpolated or concatenated input", name),
		Recommendation: "Use parameter bindings (? placeholders with a bindings array) instead of splicing values into the SQL string",
		File:           v.file.Path,
		Line:           line,
		EndLine:        phpast.EndLine(n),
		Excerpt:        v.file.Excerpt(line, phpast.EndLine(n)),
		Metadata:       map[string]any{"sink": name},
	}
	v.issues = append(v.issues, issue)
	return true
}

// taintedSQL reports whether an SQL argument mixes non-literal input into
// the string: interpolation inside a double-quoted string, or concatenation
// with anything dynamic.
func taintedSQL(expr ast.Vertex) bool {
	switch n := expr.(type) {
	case *ast.ScalarEncapsed:
		for _, part := range n.Parts {
			if _, ok := part.(*ast.ScalarEncapsedStringPart); !ok {
				return true
			}
		}
		return false
	case *ast.ExprBinaryConcat:
		return dynamicOperand(n.Left) || dynamicOperand(n.Right) ||
			taintedSQL(n.Left) || taintedSQL(n.Right)
	}
	return false
}

func dynamicOperand(expr ast.Vertex) bool {
	switch expr.(type) {
	case *ast.ExprVariable, *ast.ExprPropertyFetch, *ast.ExprNullsafePropertyFetch,
		*ast.ExprArrayDimFetch, *ast.ExprMethodCall, *ast.ExprNullsafeMethodCall,
		*ast.ExprStaticCall, *ast.ExprFunctionCall:
		return true
	}
	return false
}
