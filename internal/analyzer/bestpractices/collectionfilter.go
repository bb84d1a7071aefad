package bestpractices

import (
	"fmt"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

const codeCollectionFilter = "collection_filtering.post_fetch"

// collectionFilterCalls narrow a result set after it was already fetched.
var collectionFilterCalls = map[string]bool{
	"filter": true, "where": true, "whereStrict": true, "whereIn": true,
	"first": true, "firstWhere": true, "reject": true, "search": true,
	"sortBy": true, "sortByDesc": true, "take": true, "slice": true,
}

// fetchAllCalls materialize the complete result set.
var fetchAllCalls = map[string]bool{"get": true, "all": true}

// CollectionFilter flags query chains that fetch every row and then filter
// the collection in PHP instead of pushing the constraint into SQL.
type CollectionFilter struct{}

func NewCollectionFilter(config.AnalyzerConfig) *CollectionFilter { return &CollectionFilter{} }

func (a *CollectionFilter) Name() string { return "collection_filtering" }

func (a *CollectionFilter) FailSeverity() analyzer.Severity { return analyzer.SeverityMedium }

func (a *CollectionFilter) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	v := &collectionFilterVisitor{
		rule:     a,
		file:     file,
		sup:      sup,
		ctx:      ctx,
		consumed: map[ast.Vertex]bool{},
	}
	scope.Walk(file.Root, v, resolver(ctx))
	return v.issues
}

type collectionFilterVisitor struct {
	scope.Base
	rule   *CollectionFilter
	file   *phpast.File
	sup    *analyzer.Suppressions
	ctx    *analyzer.Context
	issues []analyzer.Issue

	consumed map[ast.Vertex]bool
}

func (v *collectionFilterVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	switch n.(type) {
	case *ast.ExprMethodCall, *ast.ExprNullsafeMethodCall, *ast.ExprStaticCall:
	default:
		return true
	}
	if v.consumed[n] {
		return true
	}
	chain, ok := phpast.FlattenChain(n)
	if !ok {
		return true
	}
	for i := 0; i < len(chain.Calls)-1; i++ {
		v.consumed[chain.Calls[i].Node] = true
	}

	filterName, line, ok := v.postFetchFilter(chain, sc)
	if !ok {
		return true
	}
	if v.sup.Suppressed(v.rule.Name(), sc.CurrentClassName()) {
		return true
	}
	issue := newIssue(v.file, codeCollectionFilter, analyzer.SeverityMedium, line, line)
	issue.Message = fmt.Sprintf("Collection %s() runs in PHP on a fully fetched result set", filterName)
	issue.Recommendation = "Apply the constraint in the query (->where() before ->get()) so the database does the filtering"
	issue.Metadata = map[string]any{"call": filterName}
	v.issues = append(v.issues, issue)
	return true
}

// postFetchFilter finds a filter-style call that follows a fetch-all call,
// either inside one chain or on a variable holding fetched model results.
func (v *collectionFilterVisitor) postFetchFilter(chain *phpast.Chain, sc *scope.Tracker) (string, int, bool) {
	fetched := false
	if chain.RootVar != "" {
		if p, ok := sc.Lookup(chain.RootVar); ok && p.Kind == scope.ProvModelClass {
			fetched = true
		}
	}

	queryRoot := fetched
	if chain.RootClass != "" {
		if isDBFacade(chain.RootClass) {
			queryRoot = chain.HasCall("table")
		} else if v.ctx.Registry != nil {
			queryRoot = v.ctx.Registry.IsModel(sc.ResolveName(chain.RootClass))
		}
	} else if !fetched && chain.RootVar != "" {
		if p, ok := sc.Lookup(chain.RootVar); ok &&
			(p.Kind == scope.ProvEloquentBuilder || p.Kind == scope.ProvQueryBuilder) {
			queryRoot = true
		}
	}
	if !queryRoot {
		return "", 0, false
	}

	for _, call := range chain.Calls {
		if fetched && collectionFilterCalls[call.Name] {
			return call.Name, phpast.Line(call.Node), true
		}
		if fetchAllCalls[call.Name] {
			fetched = true
		}
	}
	return "", 0, false
}
