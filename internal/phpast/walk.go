package phpast

import (
	"github.com/VKCOM/php-parser/pkg/ast"
)

// Visitor receives balanced Enter/Leave callbacks during a depth-first walk.
// Enter returning false skips the node's children; Leave is still called.
type Visitor interface {
	Enter(n ast.Vertex) bool
	Leave(n ast.Vertex)
}

type inspector func(ast.Vertex) bool

func (f inspector) Enter(n ast.Vertex) bool { return f(n) }
func (f inspector) Leave(n ast.Vertex)      {}

// Inspect walks the tree calling fn for every node; fn returning false skips
// that node's children.
func Inspect(node ast.Vertex, fn func(ast.Vertex) bool) {
	Walk(node, inspector(fn))
}

// Walk traverses the tree depth-first with strictly balanced Enter/Leave
// pairs. Node kinds outside the switch below are treated as leaves, which
// keeps the analysis conservative: an unmodelled construct can hide a finding
// but never invent one.
func Walk(node ast.Vertex, v Visitor) {
	if node == nil {
		return
	}
	if !v.Enter(node) {
		v.Leave(node)
		return
	}
	for _, child := range children(node) {
		Walk(child, v)
	}
	v.Leave(node)
}

func children(node ast.Vertex) []ast.Vertex {
	switch n := node.(type) {
	case *ast.Root:
		return n.Stmts
	case *ast.StmtNamespace:
		return n.Stmts
	case *ast.StmtStmtList:
		return n.Stmts
	case *ast.StmtClass:
		return n.Stmts
	case *ast.StmtInterface:
		return n.Stmts
	case *ast.StmtTrait:
		return n.Stmts
	case *ast.StmtClassMethod:
		return []ast.Vertex{n.Stmt}
	case *ast.StmtFunction:
		return n.Stmts
	case *ast.StmtPropertyList:
		return n.Props
	case *ast.StmtProperty:
		return []ast.Vertex{n.Expr}
	case *ast.StmtExpression:
		return []ast.Vertex{n.Expr}
	case *ast.StmtReturn:
		return []ast.Vertex{n.Expr}
	case *ast.StmtEcho:
		return n.Exprs
	case *ast.StmtIf:
		out := []ast.Vertex{n.Cond, n.Stmt}
		out = append(out, n.ElseIf...)
		return append(out, n.Else)
	case *ast.StmtElseIf:
		return []ast.Vertex{n.Cond, n.Stmt}
	case *ast.StmtElse:
		return []ast.Vertex{n.Stmt}
	case *ast.StmtForeach:
		return []ast.Vertex{n.Expr, n.Key, n.Var, n.Stmt}
	case *ast.StmtFor:
		out := append([]ast.Vertex{}, n.Init...)
		out = append(out, n.Cond...)
		out = append(out, n.Loop...)
		return append(out, n.Stmt)
	case *ast.StmtWhile:
		return []ast.Vertex{n.Cond, n.Stmt}
	case *ast.StmtDo:
		return []ast.Vertex{n.Stmt, n.Cond}
	case *ast.StmtTry:
		out := append([]ast.Vertex{}, n.Stmts...)
		out = append(out, n.Catches...)
		return append(out, n.Finally)
	case *ast.StmtCatch:
		return n.Stmts
	case *ast.StmtFinally:
		return n.Stmts
	case *ast.StmtThrow:
		return []ast.Vertex{n.Expr}
	case *ast.StmtSwitch:
		return append([]ast.Vertex{n.Cond}, n.Cases...)
	case *ast.StmtCase:
		return append([]ast.Vertex{n.Cond}, n.Stmts...)
	case *ast.StmtDefault:
		return n.Stmts
	case *ast.ExprMatch:
		return append([]ast.Vertex{n.Expr}, n.Arms...)
	case *ast.MatchArm:
		return append(append([]ast.Vertex{}, n.Exprs...), n.ReturnExpr)
	case *ast.StmtUnset:
		return n.Vars
	case *ast.ExprAssign:
		return []ast.Vertex{n.Var, n.Expr}
	case *ast.ExprAssignConcat:
		return []ast.Vertex{n.Var, n.Expr}
	case *ast.ExprAssignCoalesce:
		return []ast.Vertex{n.Var, n.Expr}
	case *ast.ExprMethodCall:
		return append([]ast.Vertex{n.Var}, n.Args...)
	case *ast.ExprNullsafeMethodCall:
		return append([]ast.Vertex{n.Var}, n.Args...)
	case *ast.ExprStaticCall:
		return append([]ast.Vertex{n.Class}, n.Args...)
	case *ast.ExprFunctionCall:
		return append([]ast.Vertex{n.Function}, n.Args...)
	case *ast.ExprNew:
		return append([]ast.Vertex{n.Class}, n.Args...)
	case *ast.Argument:
		return []ast.Vertex{n.Expr}
	case *ast.ExprPropertyFetch:
		return []ast.Vertex{n.Var}
	case *ast.ExprNullsafePropertyFetch:
		return []ast.Vertex{n.Var}
	case *ast.ExprStaticPropertyFetch:
		return []ast.Vertex{n.Class}
	case *ast.ExprArrayDimFetch:
		return []ast.Vertex{n.Var, n.Dim}
	case *ast.ExprArray:
		return n.Items
	case *ast.ExprArrayItem:
		return []ast.Vertex{n.Key, n.Val}
	case *ast.ExprClosure:
		return n.Stmts
	case *ast.ExprArrowFunction:
		return []ast.Vertex{n.Expr}
	case *ast.ExprTernary:
		return []ast.Vertex{n.Cond, n.IfTrue, n.IfFalse}
	case *ast.ExprBooleanNot:
		return []ast.Vertex{n.Expr}
	case *ast.ExprIsset:
		return n.Vars
	case *ast.ExprEmpty:
		return []ast.Vertex{n.Expr}
	case *ast.ExprBinaryConcat:
		return []ast.Vertex{n.Left, n.Right}
	case *ast.ExprBinaryBooleanAnd:
		return []ast.Vertex{n.Left, n.Right}
	case *ast.ExprBinaryBooleanOr:
		return []ast.Vertex{n.Left, n.Right}
	case *ast.ExprBinaryCoalesce:
		return []ast.Vertex{n.Left, n.Right}
	case *ast.ExprBinaryEqual:
		return []ast.Vertex{n.Left, n.Right}
	case *ast.ExprBinaryNotEqual:
		return []ast.Vertex{n.Left, n.Right}
	case *ast.ExprBinaryIdentical:
		return []ast.Vertex{n.Left, n.Right}
	case *ast.ExprBinaryNotIdentical:
		return []ast.Vertex{n.Left, n.Right}
	case *ast.ScalarEncapsed:
		return n.Parts
	}
	return nil
}
