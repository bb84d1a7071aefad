package scope

import (
	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/phpast"
)

// Resolver answers class questions during traversal. The model registry
// satisfies it; a nil Resolver simply disables model-aware provenance.
type Resolver interface {
	IsModel(fqcn string) bool
	BaseChain(fqcn string) []string
}

// Visitor is the callback surface analyzers implement. EnterNode returning
// false skips the node's children; LeaveNode always fires, so the scope stack
// stays balanced no matter what the visited code looks like.
type Visitor interface {
	EnterNode(n ast.Vertex, sc *Tracker) bool
	LeaveNode(n ast.Vertex, sc *Tracker)
}

// Base is a no-op Visitor for embedding.
type Base struct{}

func (Base) EnterNode(ast.Vertex, *Tracker) bool { return true }
func (Base) LeaveNode(ast.Vertex, *Tracker)      {}

// terminalCalls end a query chain and materialize results.
var terminalCalls = map[string]bool{
	"get": true, "first": true, "firstOrFail": true, "find": true,
	"findOrFail": true, "all": true, "pluck": true, "count": true,
	"sum": true, "max": true, "min": true, "avg": true, "exists": true,
	"paginate": true, "simplePaginate": true, "cursorPaginate": true,
	"cursor": true, "value": true, "sole": true,
}

// Walk traverses a parsed file while maintaining a Tracker, delegating every
// node to v with the current scope attached.
func Walk(root ast.Vertex, v Visitor, r Resolver) {
	w := &walker{tracker: NewTracker(), visitor: v, resolver: r}
	phpast.Walk(root, w)
}

type walker struct {
	tracker  *Tracker
	visitor  Visitor
	resolver Resolver
}

func (w *walker) Enter(n ast.Vertex) bool {
	switch node := n.(type) {
	case *ast.StmtNamespace:
		w.tracker.Namespace = phpast.NameString(node.Name)
		w.tracker.Imports = map[string]string{}
	case *ast.StmtUseList:
		w.collectImports(node)
	case *ast.StmtGroupUseList:
		w.collectGroupImports(node)
	case *ast.StmtClass:
		name := phpast.IdentString(node.Name)
		kind := KindClass
		if name == "" {
			kind = KindAnonClass
		}
		w.tracker.push(&Frame{Kind: kind, Name: name, Chain: w.baseChain(node)})
	case *ast.StmtInterface:
		w.tracker.push(&Frame{Kind: KindClass, Name: phpast.IdentString(node.Name)})
	case *ast.StmtTrait:
		w.tracker.push(&Frame{Kind: KindClass, Name: phpast.IdentString(node.Name)})
	case *ast.StmtClassMethod:
		w.tracker.push(&Frame{Kind: KindMethod, Name: phpast.IdentString(node.Name)})
	case *ast.StmtFunction:
		w.tracker.push(&Frame{Kind: KindFunction, Name: phpast.IdentString(node.Name)})
	case *ast.ExprClosure:
		w.tracker.push(&Frame{Kind: KindClosure})
	case *ast.ExprArrowFunction:
		w.tracker.push(&Frame{Kind: KindClosure})
	case *ast.ExprAssign:
		if name := phpast.VarName(node.Var); name != "" {
			w.tracker.Bind(name, w.Infer(node.Expr))
		}
	}
	return w.visitor.EnterNode(n, w.tracker)
}

func (w *walker) Leave(n ast.Vertex) {
	w.visitor.LeaveNode(n, w.tracker)
	switch n.(type) {
	case *ast.StmtClass, *ast.StmtInterface, *ast.StmtTrait,
		*ast.StmtClassMethod, *ast.StmtFunction,
		*ast.ExprClosure, *ast.ExprArrowFunction:
		w.tracker.pop()
	}
}

func (w *walker) collectImports(list *ast.StmtUseList) {
	for _, use := range list.Uses {
		useNode, ok := use.(*ast.StmtUse)
		if !ok {
			continue
		}
		name := phpast.NameString(useNode.Use)
		alias := phpast.IdentString(useNode.Alias)
		if alias == "" {
			if i := lastBackslash(name); i >= 0 {
				alias = name[i+1:]
			} else {
				alias = name
			}
		}
		if alias != "" && name != "" {
			w.tracker.Imports[alias] = name
		}
	}
}

// collectGroupImports expands a grouped use statement
// (use App\Models\{Post, User as Account};) into individual imports.
func (w *walker) collectGroupImports(list *ast.StmtGroupUseList) {
	prefix := phpast.NameString(list.Prefix)
	if prefix == "" {
		return
	}
	for _, use := range list.Uses {
		useNode, ok := use.(*ast.StmtUse)
		if !ok {
			continue
		}
		name := phpast.NameString(useNode.Use)
		if name == "" {
			continue
		}
		alias := phpast.IdentString(useNode.Alias)
		if alias == "" {
			if i := lastBackslash(name); i >= 0 {
				alias = name[i+1:]
			} else {
				alias = name
			}
		}
		w.tracker.Imports[alias] = prefix + "\\" + name
	}
}

func (w *walker) baseChain(node *ast.StmtClass) []string {
	if node.Extends == nil || w.resolver == nil {
		return nil
	}
	parent := w.tracker.ResolveName(phpast.NameString(node.Extends))
	if parent == "" {
		return nil
	}
	chain := w.resolver.BaseChain(parent)
	if chain == nil {
		return []string{parent}
	}
	return append([]string{parent}, chain...)
}

// Infer computes the provenance of an assigned expression: a plain variable
// copy, or a call chain rooted at a model class, an Eloquent builder held in
// a variable, or the DB facade with a literal table.
func (w *walker) Infer(expr ast.Vertex) Provenance {
	if name := phpast.VarName(expr); name != "" {
		if p, ok := w.tracker.Lookup(name); ok {
			return p
		}
		return Provenance{}
	}

	chain, ok := phpast.FlattenChain(expr)
	if !ok || len(chain.Calls) == 0 {
		return Provenance{}
	}
	last, _ := chain.Last()

	switch {
	case chain.RootClass != "":
		fqcn := w.tracker.ResolveName(chain.RootClass)
		if isDBFacade(chain.RootClass) {
			if tableCall, ok := chain.FindCall("table"); ok {
				if table, ok := phpast.StringLiteral(phpast.ArgExpr(tableCall.Args, 0)); ok {
					return Provenance{Kind: ProvQueryBuilder, Table: table}
				}
			}
			return Provenance{}
		}
		if w.resolver != nil && w.resolver.IsModel(fqcn) {
			if terminalCalls[last.Name] {
				return Provenance{Kind: ProvModelClass, Model: fqcn}
			}
			return Provenance{Kind: ProvEloquentBuilder, Model: fqcn}
		}
	case chain.RootVar != "":
		if p, ok := w.tracker.Lookup(chain.RootVar); ok && p.Kind == ProvEloquentBuilder {
			if terminalCalls[last.Name] {
				return Provenance{Kind: ProvModelClass, Model: p.Model}
			}
			return p
		}
		if p, ok := w.tracker.Lookup(chain.RootVar); ok && p.Kind == ProvQueryBuilder {
			return p
		}
	}
	return Provenance{}
}

func isDBFacade(name string) bool {
	switch name {
	case "DB", "\\DB", "Illuminate\\Support\\Facades\\DB", "\\Illuminate\\Support\\Facades\\DB":
		return true
	}
	return false
}

// IsTerminalCall reports whether a call name materializes query results.
func IsTerminalCall(name string) bool { return terminalCalls[name] }

func lastBackslash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\\' {
			return i
		}
	}
	return -1
}
