package bestpractices

import (
	"fmt"
	"path/filepath"

	"github.com/VKCOM/php-parser/pkg/ast"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

const codeUnprotectedWrites = "missing_transaction.unprotected_writes"

const defaultWriteThreshold = 2

// defaultTransactionExcludes are file roles where bulk unprotected writes
// are expected and intentional.
var defaultTransactionExcludes = []string{
	"**/database/seeders/**",
	"**/database/factories/**",
	"**/database/migrations/**",
	"**/tests/**",
}

// nonDurableFacades write somewhere other than the relational store; calls
// rooted at them never count as write sites.
var nonDurableFacades = map[string]bool{
	"Cache": true, "Session": true, "Storage": true, "Redis": true,
	"Cookie": true, "Queue": true, "Bus": true, "Event": true,
	"Log": true, "Mail": true, "Notification": true, "File": true,
	"Artisan": true, "Http": true,
}

// Transaction flags methods that perform several database writes without a
// transactional boundary around them.
type Transaction struct {
	threshold int
	excludes  []string
}

func NewTransaction(bag config.AnalyzerConfig) *Transaction {
	a := &Transaction{
		threshold: defaultWriteThreshold,
		excludes:  append(append([]string{}, defaultTransactionExcludes...), bag.ExcludePaths...),
	}
	if bag.Threshold != nil {
		a.threshold = *bag.Threshold
	}
	return a
}

func (a *Transaction) Name() string { return "missing_transaction" }

func (a *Transaction) FailSeverity() analyzer.Severity { return analyzer.SeverityMedium }

func (a *Transaction) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	path := filepath.ToSlash(file.Path)
	for _, pattern := range a.excludes {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return nil
		}
	}
	v := &transactionVisitor{
		rule:     a,
		file:     file,
		sup:      sup,
		ctx:      ctx,
		consumed: map[ast.Vertex]bool{},
	}
	scope.Walk(file.Root, v, resolver(ctx))
	return v.issues
}

// span is an inclusive protected line range.
type span struct{ start, end int }

func (s span) contains(line int) bool { return line >= s.start && line <= s.end }

// methodCtx accumulates write sites and protected regions for one method or
// free function; closures inside it report into the same context.
type methodCtx struct {
	name    string
	class   string
	line    int
	writes  []int
	regions []span
	begins  []int
	endLine int
}

type transactionVisitor struct {
	scope.Base
	rule   *Transaction
	file   *phpast.File
	sup    *analyzer.Suppressions
	ctx    *analyzer.Context
	issues []analyzer.Issue

	methods  []*methodCtx
	consumed map[ast.Vertex]bool
}

func (v *transactionVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	switch node := n.(type) {
	case *ast.StmtClassMethod:
		v.methods = append(v.methods, &methodCtx{
			name:    phpast.IdentString(node.Name),
			class:   sc.CurrentClassName(),
			line:    phpast.Line(n),
			endLine: phpast.EndLine(n),
		})
	case *ast.StmtFunction:
		v.methods = append(v.methods, &methodCtx{
			name:    phpast.IdentString(node.Name),
			line:    phpast.Line(n),
			endLine: phpast.EndLine(n),
		})
	case *ast.ExprMethodCall, *ast.ExprNullsafeMethodCall, *ast.ExprStaticCall:
		v.enterCall(n, sc)
	}
	return true
}

func (v *transactionVisitor) LeaveNode(n ast.Vertex, sc *scope.Tracker) {
	switch n.(type) {
	case *ast.StmtClassMethod, *ast.StmtFunction:
		if len(v.methods) > 0 {
			v.emit(v.methods[len(v.methods)-1])
			v.methods = v.methods[:len(v.methods)-1]
		}
	}
}

func (v *transactionVisitor) current() *methodCtx {
	if len(v.methods) == 0 {
		return nil
	}
	return v.methods[len(v.methods)-1]
}

func (v *transactionVisitor) enterCall(n ast.Vertex, sc *scope.Tracker) {
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
	m := v.current()
	if m == nil {
		return
	}

	if isDBFacade(chain.RootClass) {
		switch chain.Calls[0].Name {
		case "transaction":
			// Only the closure argument handed to the transaction call is
			// protected, never a closure that merely appears nearby.
			if body := closureArg(chain.Calls[0].Args); body != nil {
				m.regions = append(m.regions, span{phpast.Line(body), phpast.EndLine(body)})
			}
			return
		case "beginTransaction":
			m.begins = append(m.begins, phpast.Line(n))
			return
		case "commit", "rollBack", "rollback":
			if len(m.begins) > 0 {
				begin := m.begins[len(m.begins)-1]
				m.begins = m.begins[:len(m.begins)-1]
				m.regions = append(m.regions, span{begin, phpast.Line(n)})
			}
			return
		}
	}

	if v.isWriteChain(chain, sc) {
		m.writes = append(m.writes, phpast.Line(n))
	}
}

// isWriteChain reports whether a chain mutates the relational store: any
// write-vocabulary call on a chain rooted at a model class, a variable, a
// property-held instance, a new model instance, or the DB facade.
// Non-durable facades (cache, session, queue, storage) are excluded
// wholesale.
func (v *transactionVisitor) isWriteChain(chain *phpast.Chain, sc *scope.Tracker) bool {
	mutates := false
	for _, call := range chain.Calls {
		if writeCalls[call.Name] {
			mutates = true
			break
		}
	}
	if !mutates {
		return false
	}

	switch {
	case chain.RootClass != "":
		if isDBFacade(chain.RootClass) {
			return true
		}
		return !nonDurableFacades[shortName(chain.RootClass)]
	case chain.RootVar != "", chain.RootProp, chain.RootNew:
		return true
	}
	return false
}

func closureArg(args []ast.Vertex) ast.Vertex {
	expr := phpast.ArgExpr(args, 0)
	switch expr.(type) {
	case *ast.ExprClosure, *ast.ExprArrowFunction:
		return expr
	}
	return nil
}

func (v *transactionVisitor) emit(m *methodCtx) {
	if m.name == "" {
		return
	}
	// A begin with no commit in the same method protects through to the
	// method end rather than flagging everything after it.
	for _, begin := range m.begins {
		m.regions = append(m.regions, span{begin, m.endLine})
	}

	unprotected := 0
	first := 0
	for _, line := range m.writes {
		covered := false
		for _, region := range m.regions {
			if region.contains(line) {
				covered = true
				break
			}
		}
		if !covered {
			if unprotected == 0 {
				first = line
			}
			unprotected++
		}
	}
	if unprotected < v.rule.threshold {
		return
	}
	if v.sup.Suppressed(v.rule.Name(), m.class) {
		return
	}

	issue := newIssue(v.file, codeUnprotectedWrites, analyzer.SeverityMedium, first, first)
	issue.Message = fmt.Sprintf("Method %s performs %d write operations outside a transaction", m.name, unprotected)
	issue.Recommendation = "Wrap the writes in DB::transaction(fn () => ...) so they commit or roll back together"
	issue.Metadata = map[string]any{"method": m.name, "unprotectedWrites": unprotected}
	v.issues = append(v.issues, issue)
}
