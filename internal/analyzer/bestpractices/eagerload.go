package bestpractices

import (
	"fmt"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

const codeEagerLoadCount = "eager_load_count.too_many"

const defaultMaxRelations = 5

// EagerLoad flags with() calls loading more relations than a query usually
// needs at once. Low confidence by design: it only ever reaches warning
// status.
type EagerLoad struct {
	maxRelations int
}

func NewEagerLoad(bag config.AnalyzerConfig) *EagerLoad {
	a := &EagerLoad{maxRelations: defaultMaxRelations}
	if bag.MaxRelations != nil {
		a.maxRelations = *bag.MaxRelations
	}
	return a
}

func (a *EagerLoad) Name() string { return "eager_load_count" }

func (a *EagerLoad) FailSeverity() analyzer.Severity { return analyzer.SeverityHigh }

func (a *EagerLoad) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	v := &eagerLoadVisitor{rule: a, file: file, sup: sup}
	scope.Walk(file.Root, v, resolver(ctx))
	return v.issues
}

type eagerLoadVisitor struct {
	scope.Base
	rule   *EagerLoad
	file   *phpast.File
	sup    *analyzer.Suppressions
	issues []analyzer.Issue
}

func (v *eagerLoadVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	var name string
	var args []ast.Vertex
	switch call := n.(type) {
	case *ast.ExprMethodCall:
		name, args = phpast.IdentString(call.Method), call.Args
	case *ast.ExprStaticCall:
		name, args = phpast.IdentString(call.Call), call.Args
	default:
		return true
	}
	if name != "with" {
		return true
	}
	relations := phpast.StringArgs(args)
	if len(relations) <= v.rule.maxRelations {
		return true
	}
	if v.sup.Suppressed(v.rule.Name(), sc.CurrentClassName()) {
		return true
	}
	line := phpast.Line(n)
	issue := newIssue(v.file, codeEagerLoadCount, analyzer.SeverityLow, line, line)
	issue.Message = fmt.Sprintf("with() eager loads %d relations in a single query", len(relations))
	issue.Recommendation = "Split the query, or load rarely used relations lazily where they are needed"
	issue.Metadata = map[string]any{"relations": relations}
	v.issues = append(v.issues, issue)
	return true
}
