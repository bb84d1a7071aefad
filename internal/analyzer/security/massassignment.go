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

const codeMassAssignment = "mass_assignment.request_all"

// massAssignmentTargets consume an attribute array wholesale.
var massAssignmentTargets = map[string]bool{
	"create": true, "forceCreate": true, "update": true,
	"fill": true, "forceFill": true, "insert": true,
}

// MassAssignment flags request->all() forwarded straight into create/update/
// fill calls, which lets a client set any column the model does not guard.
type MassAssignment struct{}

func NewMassAssignment(config.AnalyzerConfig) *MassAssignment { return &MassAssignment{} }

func (a *MassAssignment) Name() string { return "mass_assignment" }

func (a *MassAssignment) FailSeverity() analyzer.Severity { return analyzer.SeverityHigh }

func (a *MassAssignment) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	v := &massVisitor{rule: a, file: file, sup: sup}
	scope.Walk(file.Root, v, nil)
	return v.issues
}

type massVisitor struct {
	scope.Base
	rule   *MassAssignment
	file   *phpast.File
	sup    *analyzer.Suppressions
	issues []analyzer.Issue
}

func (v *massVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
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
	if !massAssignmentTargets[name] {
		return true
	}
	if !requestAll(phpast.ArgExpr(args, 0)) {
		return true
	}
	if v.sup.Suppressed(v.rule.Name(), sc.CurrentClassName()) {
		return true
	}
	line := phpast.Line(n)
	issue := analyzer.Issue{
		Code:           codeMassAssignment,
		Severity:       analyzer.SeverityHigh,
		Message:        fmt.Sprintf("%s() receives the full request input", name),
		Recommendation: "Pass validated data instead: $request->validated() or $request->only([...])",
		File:           v.file.Path,
		Line:           line,
		EndLine:        phpast.EndLine(n),
		Excerpt:        v.file.Excerpt(line, line),
		Metadata:       map[string]any{"call": name},
	}
	v.issues = append(v.issues, issue)
	return true
}

// requestAll matches $request->all() (and $xyzRequest->all()) as the
// argument expression.
func requestAll(expr ast.Vertex) bool {
	chain, ok := phpast.FlattenChain(expr)
	if !ok || len(chain.Calls) != 1 || chain.Calls[0].Name != "all" {
		return false
	}
	if len(chain.Calls[0].Args) > 0 {
		// $request->all('name') narrows the input; not wholesale.
		return false
	}
	return strings.HasSuffix(strings.ToLower(chain.RootVar), "request")
}
