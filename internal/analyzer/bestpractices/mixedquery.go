package bestpractices

import (
	"fmt"
	"sort"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

const (
	codeMixedSameTable = "mixed_query_builder.same_table"
	codeMixedSpread    = "mixed_query_builder.spread"
)

const defaultMixedThreshold = 2

// MixedQuery flags classes that touch the same table through both Eloquent
// and the raw query builder, which applies global scopes, casts and model
// events to only one of the two paths.
type MixedQuery struct {
	threshold   int
	whitelist   map[string]bool
	countToBase bool
}

func NewMixedQuery(bag config.AnalyzerConfig) *MixedQuery {
	a := &MixedQuery{threshold: defaultMixedThreshold, whitelist: map[string]bool{}}
	if bag.Threshold != nil {
		a.threshold = *bag.Threshold
	}
	if bag.CountToBase != nil {
		a.countToBase = *bag.CountToBase
	}
	for _, name := range bag.Whitelist {
		a.whitelist[name] = true
	}
	return a
}

func (a *MixedQuery) Name() string { return "mixed_query_builder" }

func (a *MixedQuery) FailSeverity() analyzer.Severity { return analyzer.SeverityHigh }

func (a *MixedQuery) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	v := &mixedVisitor{
		rule:     a,
		file:     file,
		sup:      sup,
		ctx:      ctx,
		consumed: map[ast.Vertex]bool{},
	}
	scope.Walk(file.Root, v, resolver(ctx))
	return v.issues
}

// tableUse records the first sighting of one access style against one table.
type tableUse struct {
	line  int
	model string
}

// classUsage accumulates per-class access styles; emission happens when the
// class is left so both maps are complete.
type classUsage struct {
	name     string
	fqcn     string
	line     int
	eloquent map[string]tableUse
	raw      map[string]tableUse
}

type mixedVisitor struct {
	scope.Base
	rule   *MixedQuery
	file   *phpast.File
	sup    *analyzer.Suppressions
	ctx    *analyzer.Context
	issues []analyzer.Issue

	classes  []*classUsage
	consumed map[ast.Vertex]bool
}

func (v *mixedVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	switch node := n.(type) {
	case *ast.StmtClass:
		v.pushClass(phpast.IdentString(node.Name), n, sc)
	case *ast.StmtTrait:
		v.pushClass(phpast.IdentString(node.Name), n, sc)
	case *ast.ExprMethodCall, *ast.ExprNullsafeMethodCall, *ast.ExprStaticCall:
		v.enterCall(n, sc)
	}
	return true
}

func (v *mixedVisitor) LeaveNode(n ast.Vertex, sc *scope.Tracker) {
	switch n.(type) {
	case *ast.StmtClass, *ast.StmtTrait:
		if len(v.classes) > 0 {
			v.emit(v.classes[len(v.classes)-1])
			v.classes = v.classes[:len(v.classes)-1]
		}
	}
}

func (v *mixedVisitor) pushClass(name string, n ast.Vertex, sc *scope.Tracker) {
	fqcn := name
	if sc.Namespace != "" && name != "" {
		fqcn = sc.Namespace + "\\" + name
	}
	v.classes = append(v.classes, &classUsage{
		name:     name,
		fqcn:     fqcn,
		line:     phpast.Line(n),
		eloquent: map[string]tableUse{},
		raw:      map[string]tableUse{},
	})
}

func (v *mixedVisitor) current() *classUsage {
	if len(v.classes) == 0 {
		return nil
	}
	return v.classes[len(v.classes)-1]
}

// enterCall classifies one call chain as Eloquent or raw usage. Relationship
// chains ($instance->relation()->where(...)) are left unresolved on purpose:
// mapping them to a table needs type inference this tool does not attempt.
func (v *mixedVisitor) enterCall(n ast.Vertex, sc *scope.Tracker) {
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
	usage := v.current()
	if usage == nil {
		return
	}
	line := phpast.Line(n)

	switch {
	case chain.RootClass != "":
		if isDBFacade(chain.RootClass) {
			if tableCall, ok := chain.FindCall("table"); ok {
				if table, ok := phpast.StringLiteral(phpast.ArgExpr(tableCall.Args, 0)); ok {
					recordUse(usage.raw, table, tableUse{line: line})
				}
			}
			return
		}
		v.recordModel(usage, sc.ResolveName(chain.RootClass), chain, line)

	case chain.RootVar != "":
		p, ok := sc.Lookup(chain.RootVar)
		if !ok {
			return
		}
		switch p.Kind {
		case scope.ProvEloquentBuilder, scope.ProvModelClass:
			v.recordModel(usage, p.Model, chain, line)
		case scope.ProvQueryBuilder:
			if p.Table != "" {
				recordUse(usage.raw, p.Table, tableUse{line: line})
			}
		}
	}
}

func (v *mixedVisitor) recordModel(usage *classUsage, fqcn string, chain *phpast.Chain, line int) {
	if fqcn == "" || v.ctx.Registry == nil || !v.ctx.Registry.IsModel(fqcn) {
		return
	}
	table, ok := v.ctx.Registry.ResolveTable(fqcn)
	if !ok {
		return
	}
	recordUse(usage.eloquent, table, tableUse{line: line, model: fqcn})
	if v.rule.countToBase && chain.HasCall("toBase", "getQuery") {
		recordUse(usage.raw, table, tableUse{line: line, model: fqcn})
	}
}

func recordUse(m map[string]tableUse, table string, use tableUse) {
	if _, seen := m[table]; !seen {
		m[table] = use
	}
}

func (v *mixedVisitor) emit(usage *classUsage) {
	if usage.name == "" {
		return
	}
	if v.rule.whitelist[usage.name] || v.rule.whitelist[usage.fqcn] {
		return
	}
	if v.sup.Suppressed(v.rule.Name(), usage.name) {
		return
	}

	tables := make([]string, 0, len(usage.raw))
	for table := range usage.raw {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	collided := false
	for _, table := range tables {
		el, both := usage.eloquent[table]
		if !both {
			continue
		}
		collided = true
		raw := usage.raw[table]
		issue := newIssue(v.file, codeMixedSameTable, analyzer.SeverityHigh, raw.line, raw.line)
		issue.Message = fmt.Sprintf("Table '%s' is accessed through both Eloquent (%s) and the query builder in class %s",
			table, shortName(el.model), usage.name)
		issue.Recommendation = fmt.Sprintf("Use %s consistently so global scopes, casts and model events apply to every query", shortName(el.model))
		issue.Metadata = map[string]any{
			"table": table, "model": el.model,
			"eloquentLine": el.line, "queryBuilderLine": raw.line,
		}
		v.issues = append(v.issues, issue)
	}
	if collided || len(usage.eloquent) == 0 {
		return
	}

	// Raw tables with no corresponding model (framework tables like jobs
	// or sessions) never count toward the spread threshold.
	var modeled []string
	for _, table := range tables {
		if _, ok := v.ctx.Registry.TableModel(table); ok {
			modeled = append(modeled, table)
		}
	}
	if len(modeled) <= v.rule.threshold {
		return
	}
	issue := newIssue(v.file, codeMixedSpread, analyzer.SeverityMedium, usage.line, usage.line)
	issue.Message = fmt.Sprintf("Class %s mixes Eloquent with query-builder access to %d model-backed tables",
		usage.name, len(modeled))
	issue.Recommendation = "Pick one query interface per class, or move raw queries behind a dedicated repository"
	issue.Metadata = map[string]any{"tables": modeled}
	v.issues = append(v.issues, issue)
}
