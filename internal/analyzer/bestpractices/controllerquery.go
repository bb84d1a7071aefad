package bestpractices

import (
	"fmt"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

const (
	codeQueryInController   = "query_in_controller.in_controller"
	codeQueryInRouteClosure = "query_in_controller.route_closure"
)

// defaultSimpleReadMaxChain is the call-chain length at or below which a
// route-closure read is tolerated. Inherited constant, kept configurable
// rather than treated as a law.
const defaultSimpleReadMaxChain = 2

var routeFacades = map[string]bool{
	"Route": true, "Illuminate\\Support\\Facades\\Route": true,
}

var routeMethods = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true,
	"delete": true, "options": true, "any": true, "match": true, "fallback": true,
}

// ControllerQuery flags query chains written directly inside controller
// classes and non-trivial queries inside route closures; both belong in a
// repository, scope or action class.
type ControllerQuery struct {
	simpleReadMax int
}

func NewControllerQuery(bag config.AnalyzerConfig) *ControllerQuery {
	a := &ControllerQuery{simpleReadMax: defaultSimpleReadMaxChain}
	if bag.SimpleReadMaxChain != nil {
		a.simpleReadMax = *bag.SimpleReadMaxChain
	}
	return a
}

func (a *ControllerQuery) Name() string { return "query_in_controller" }

func (a *ControllerQuery) FailSeverity() analyzer.Severity { return analyzer.SeverityHigh }

func (a *ControllerQuery) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	v := &controllerVisitor{
		rule:     a,
		file:     file,
		sup:      sup,
		ctx:      ctx,
		routeArg: map[ast.Vertex]bool{},
		consumed: map[ast.Vertex]bool{},
	}
	scope.Walk(file.Root, v, resolver(ctx))
	return v.issues
}

type controllerVisitor struct {
	scope.Base
	rule   *ControllerQuery
	file   *phpast.File
	sup    *analyzer.Suppressions
	ctx    *analyzer.Context
	issues []analyzer.Issue

	routeArg     map[ast.Vertex]bool // closures registered as route handlers
	routeClosure int                 // depth of route-handler closures
	consumed     map[ast.Vertex]bool
}

func (v *controllerVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	switch node := n.(type) {
	case *ast.ExprClosure, *ast.ExprArrowFunction:
		if v.routeArg[n] {
			v.routeClosure++
		}
	case *ast.ExprStaticCall:
		v.markRouteHandlers(node)
		v.enterCall(n, sc)
	case *ast.ExprMethodCall, *ast.ExprNullsafeMethodCall:
		v.enterCall(n, sc)
	}
	return true
}

func (v *controllerVisitor) LeaveNode(n ast.Vertex, sc *scope.Tracker) {
	switch n.(type) {
	case *ast.ExprClosure, *ast.ExprArrowFunction:
		if v.routeArg[n] {
			v.routeClosure--
		}
	}
}

// markRouteHandlers remembers closure arguments of Route registration calls
// so queries inside them are judged by the route-closure rule.
func (v *controllerVisitor) markRouteHandlers(call *ast.ExprStaticCall) {
	class := strings.TrimPrefix(phpast.NameString(call.Class), "\\")
	if !routeFacades[class] || !routeMethods[phpast.IdentString(call.Call)] {
		return
	}
	for i := range call.Args {
		expr := phpast.ArgExpr(call.Args, i)
		switch expr.(type) {
		case *ast.ExprClosure, *ast.ExprArrowFunction:
			v.routeArg[expr] = true
		}
	}
}

func (v *controllerVisitor) enterCall(n ast.Vertex, sc *scope.Tracker) {
	if v.consumed[n] {
		return
	}
	chain, ok := phpast.FlattenChain(n)
	if !ok {
		return
	}
	for i := 0; i < len(chain.Calls)-1; i++ {
		v.consumed[chain.Calls[i].Node] = true
	}
	if !v.isQuery(chain, sc) {
		return
	}

	class := sc.CurrentClassName()
	line := phpast.Line(n)

	switch {
	case v.routeClosure > 0:
		if v.simpleRead(chain) {
			return
		}
		if v.sup.Suppressed(v.rule.Name(), class) {
			return
		}
		issue := newIssue(v.file, codeQueryInRouteClosure, analyzer.SeverityMedium, line, phpast.EndLine(n))
		issue.Message = "Non-trivial query inside a route closure"
		issue.Recommendation = "Move the query into a controller action or dedicated query class"
		v.issues = append(v.issues, issue)

	case strings.HasSuffix(class, "Controller"):
		if v.sup.Suppressed(v.rule.Name(), class) {
			return
		}
		issue := newIssue(v.file, codeQueryInController, analyzer.SeverityMedium, line, phpast.EndLine(n))
		issue.Message = fmt.Sprintf("Query built directly in controller %s", class)
		issue.Recommendation = "Move the query into a repository, model scope or action class"
		issue.Metadata = map[string]any{"class": class}
		v.issues = append(v.issues, issue)
	}
}

func (v *controllerVisitor) isQuery(chain *phpast.Chain, sc *scope.Tracker) bool {
	executes := false
	for _, call := range chain.Calls {
		if scope.IsTerminalCall(call.Name) || writeCalls[call.Name] {
			executes = true
			break
		}
	}
	if !executes {
		return false
	}
	switch {
	case chain.RootClass != "":
		if isDBFacade(chain.RootClass) {
			return dbFacadeQueryCalls[chain.Calls[0].Name]
		}
		return v.ctx.Registry != nil && v.ctx.Registry.IsModel(sc.ResolveName(chain.RootClass))
	case chain.RootVar != "":
		p, ok := sc.Lookup(chain.RootVar)
		return ok && (p.Kind == scope.ProvEloquentBuilder || p.Kind == scope.ProvQueryBuilder)
	}
	return false
}

// simpleRead reports whether a chain is a short read-only lookup: at most
// the configured number of links, ending in a terminal read, no writes.
func (v *controllerVisitor) simpleRead(chain *phpast.Chain) bool {
	if len(chain.Calls) > v.rule.simpleReadMax {
		return false
	}
	for _, call := range chain.Calls {
		if writeCalls[call.Name] {
			return false
		}
	}
	last, ok := chain.Last()
	return ok && scope.IsTerminalCall(last.Name)
}
