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
	codeLazyLoad    = "n_plus_one.lazy_load"
	codeQueryInLoop = "n_plus_one.query_in_loop"
)

// defaultAttributes are property names treated as plain columns, never as
// relationships, when they terminate an access chain.
var defaultAttributes = []string{
	"id", "name", "title", "slug", "email", "password", "status", "type",
	"value", "count", "body", "content", "description", "price", "amount",
	"created_at", "updated_at", "deleted_at",
}

// NPlusOne flags relationship accesses inside loops over query results that
// were not covered by an eager-load set, and any query executed from a loop
// body.
type NPlusOne struct {
	attributes map[string]bool
}

func NewNPlusOne(bag config.AnalyzerConfig) *NPlusOne {
	attrs := map[string]bool{}
	for _, name := range defaultAttributes {
		attrs[name] = true
	}
	for _, name := range bag.AttributeAllowlist {
		attrs[name] = true
	}
	return &NPlusOne{attributes: attrs}
}

func (a *NPlusOne) Name() string { return "n_plus_one" }

func (a *NPlusOne) FailSeverity() analyzer.Severity { return analyzer.SeverityMedium }

func (a *NPlusOne) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	v := &nPlusOneVisitor{
		rule:     a,
		file:     file,
		sup:      sup,
		ctx:      ctx,
		envs:     []map[string]querySource{{}},
		pending:  map[ast.Vertex]*loopCtx{},
		consumed: map[ast.Vertex]bool{},
	}
	scope.Walk(file.Root, v, resolver(ctx))
	return v.issues
}

// querySource describes what a variable or expression holds when it came
// from a query chain: the model behind it and the eager-load set the chain
// carried.
type querySource struct {
	model string
	eager map[string]bool
}

// loopCtx is one active loop during traversal. Relationship tracking only
// applies to foreach loops over a recognized query source; the query-in-loop
// check applies to every loop body.
type loopCtx struct {
	varName  string
	src      querySource
	track    bool
	body     ast.Vertex
	reported map[string]bool
	guards   map[string]bool
}

type nPlusOneVisitor struct {
	scope.Base
	rule   *NPlusOne
	file   *phpast.File
	sup    *analyzer.Suppressions
	ctx    *analyzer.Context
	issues []analyzer.Issue

	envs     []map[string]querySource
	pending  map[ast.Vertex]*loopCtx
	loops    []*loopCtx
	consumed map[ast.Vertex]bool
}

func (v *nPlusOneVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	if lc, ok := v.pending[n]; ok {
		delete(v.pending, n)
		v.loops = append(v.loops, lc)
	}

	switch node := n.(type) {
	case *ast.StmtClassMethod, *ast.StmtFunction, *ast.ExprClosure, *ast.ExprArrowFunction:
		v.envs = append(v.envs, map[string]querySource{})

	case *ast.ExprAssign:
		if name := phpast.VarName(node.Var); name != "" {
			v.env()[name] = v.sourceOf(node.Expr, sc)
		}

	case *ast.StmtForeach:
		v.enterForeach(node, sc)

	case *ast.StmtFor:
		v.pendLoop(node.Stmt)
	case *ast.StmtWhile:
		v.pendLoop(node.Stmt)
	case *ast.StmtDo:
		v.pendLoop(node.Stmt)

	case *ast.ExprMethodCall, *ast.ExprNullsafeMethodCall, *ast.ExprStaticCall:
		v.enterCall(n, sc)

	case *ast.ExprPropertyFetch, *ast.ExprNullsafePropertyFetch:
		v.enterFetch(n, sc)
	}
	return true
}

func (v *nPlusOneVisitor) LeaveNode(n ast.Vertex, sc *scope.Tracker) {
	if len(v.loops) > 0 && v.loops[len(v.loops)-1].body == n {
		v.loops = v.loops[:len(v.loops)-1]
	}
	switch n.(type) {
	case *ast.StmtClassMethod, *ast.StmtFunction, *ast.ExprClosure, *ast.ExprArrowFunction:
		v.envs = v.envs[:len(v.envs)-1]
	}
}

func (v *nPlusOneVisitor) env() map[string]querySource {
	return v.envs[len(v.envs)-1]
}

func (v *nPlusOneVisitor) pendLoop(body ast.Vertex) {
	if body == nil {
		return
	}
	v.pending[body] = &loopCtx{body: body, reported: map[string]bool{}, guards: map[string]bool{}}
}

func (v *nPlusOneVisitor) enterForeach(node *ast.StmtForeach, sc *scope.Tracker) {
	if node.Stmt == nil {
		return
	}
	lc := &loopCtx{
		varName:  phpast.VarName(node.Var),
		src:      v.sourceOf(node.Expr, sc),
		body:     node.Stmt,
		reported: map[string]bool{},
		guards:   map[string]bool{},
	}
	lc.track = lc.varName != "" && lc.src.model != ""
	v.pending[node.Stmt] = lc
}

// sourceOf resolves an iterated or assigned expression to its query source:
// a variable copy, or a call chain rooted at a model class or a builder held
// in a variable. The eager-load set is the union of every with() and load()
// in the chain.
func (v *nPlusOneVisitor) sourceOf(expr ast.Vertex, sc *scope.Tracker) querySource {
	if name := phpast.VarName(expr); name != "" {
		return v.env()[name]
	}

	chain, ok := phpast.FlattenChain(expr)
	if !ok || len(chain.Calls) == 0 {
		return querySource{}
	}

	var src querySource
	switch {
	case chain.RootClass != "" && !isDBFacade(chain.RootClass):
		fqcn := sc.ResolveName(chain.RootClass)
		if v.ctx.Registry != nil && v.ctx.Registry.IsModel(fqcn) {
			src.model = fqcn
		}
	case chain.RootVar != "":
		base := v.env()[chain.RootVar]
		if base.model == "" {
			if p, ok := sc.Lookup(chain.RootVar); ok && p.Kind == scope.ProvEloquentBuilder {
				base.model = p.Model
			}
		}
		src.model = base.model
		for rel := range base.eager {
			src = addEager(src, rel)
		}
	}
	if src.model == "" {
		return querySource{}
	}

	for _, call := range chain.Calls {
		if call.Name == "with" || call.Name == "load" {
			for _, rel := range phpast.StringArgs(call.Args) {
				src = addEager(src, rel)
			}
		}
	}
	return src
}

func addEager(src querySource, rel string) querySource {
	if src.eager == nil {
		src.eager = map[string]bool{}
	}
	src.eager[rel] = true
	return src
}

// enterCall handles the query-in-loop check and relationLoaded() guards. It
// only examines the outermost node of each call chain; inner links are marked
// consumed so they are not re-flattened when the walk reaches them.
func (v *nPlusOneVisitor) enterCall(n ast.Vertex, sc *scope.Tracker) {
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

	if chain.RootVar != "" && len(chain.Calls) == 1 && chain.Calls[0].Name == "relationLoaded" {
		if rel, ok := phpast.StringLiteral(phpast.ArgExpr(chain.Calls[0].Args, 0)); ok {
			for i := len(v.loops) - 1; i >= 0; i-- {
				if v.loops[i].varName == chain.RootVar {
					v.loops[i].guards[rel] = true
					break
				}
			}
		}
		return
	}

	if len(v.loops) == 0 || !v.isQueryChain(chain, sc) {
		return
	}

	issue := newIssue(v.file, codeQueryInLoop, analyzer.SeverityHigh, phpast.Line(n), phpast.EndLine(n))
	issue.Message = "Query executed inside a loop body"
	issue.Recommendation = "Move the query out of the loop, or batch it with whereIn() / eager loading"
	v.report(issue, sc)
}

// isQueryChain reports whether a chain actually reaches the database: a
// model-rooted or builder-rooted chain ending in a terminal or write call,
// or a direct DB facade query.
func (v *nPlusOneVisitor) isQueryChain(chain *phpast.Chain, sc *scope.Tracker) bool {
	executes := false
	for _, call := range chain.Calls {
		if scope.IsTerminalCall(call.Name) || writeCalls[call.Name] {
			executes = true
			break
		}
	}

	switch {
	case chain.RootClass != "":
		if isDBFacade(chain.RootClass) {
			return dbFacadeQueryCalls[chain.Calls[0].Name]
		}
		fqcn := sc.ResolveName(chain.RootClass)
		return executes && v.ctx.Registry != nil && v.ctx.Registry.IsModel(fqcn)
	case chain.RootVar != "":
		p, ok := sc.Lookup(chain.RootVar)
		if !ok {
			return false
		}
		return executes && (p.Kind == scope.ProvEloquentBuilder || p.Kind == scope.ProvQueryBuilder)
	}
	return false
}

// enterFetch evaluates a property-access chain on a tracked loop variable
// against the loop's eager-load set.
func (v *nPlusOneVisitor) enterFetch(n ast.Vertex, sc *scope.Tracker) {
	if v.consumed[n] {
		return
	}
	root, path, ok := phpast.PropertyPath(n)
	v.consumeInnerFetches(n)
	if !ok {
		return
	}

	var lc *loopCtx
	for i := len(v.loops) - 1; i >= 0; i-- {
		if v.loops[i].track && v.loops[i].varName == root {
			lc = v.loops[i]
			break
		}
	}
	if lc == nil {
		return
	}

	segs := append([]string{}, path...)
	for len(segs) > 0 && v.rule.attributes[segs[len(segs)-1]] {
		segs = segs[:len(segs)-1]
	}
	if len(segs) == 0 {
		return
	}

	dotted := strings.Join(segs, ".")
	if lc.reported[dotted] || lc.guards[dotted] || coveredBy(lc.src.eager, dotted) {
		return
	}
	lc.reported[dotted] = true

	issue := newIssue(v.file, codeLazyLoad, analyzer.SeverityMedium, phpast.Line(n), phpast.EndLine(n))
	issue.Message = fmt.Sprintf("Relationship '%s' is lazy-loaded inside a loop over %s results",
		dotted, shortName(lc.src.model))
	issue.Recommendation = fmt.Sprintf("Eager load it with ->with('%s') before iterating", dotted)
	issue.Metadata = map[string]any{"relation": dotted, "model": lc.src.model}
	v.report(issue, sc)
}

func (v *nPlusOneVisitor) consumeInnerFetches(n ast.Vertex) {
	for {
		switch fetch := n.(type) {
		case *ast.ExprPropertyFetch:
			n = fetch.Var
		case *ast.ExprNullsafePropertyFetch:
			n = fetch.Var
		default:
			return
		}
		v.consumed[n] = true
	}
}

// coveredBy reports whether an eager-load set covers a dotted relation path.
// A member covers itself and every prefix of itself: with('user.team')
// covers both user and user.team.
func coveredBy(eager map[string]bool, dotted string) bool {
	for member := range eager {
		if member == dotted || strings.HasPrefix(member, dotted+".") {
			return true
		}
	}
	return false
}

func (v *nPlusOneVisitor) report(issue analyzer.Issue, sc *scope.Tracker) {
	if v.sup.Suppressed(v.rule.Name(), sc.CurrentClassName()) {
		return
	}
	v.issues = append(v.issues, issue)
}
