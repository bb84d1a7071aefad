package phpast

import (
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"
	"github.com/VKCOM/php-parser/pkg/token"
)

// NameString extracts a class or function name from a name-like node.
// Fully-qualified names keep their leading backslash.
func NameString(node ast.Vertex) string {
	switch n := node.(type) {
	case *ast.Name:
		return joinParts(n.Parts)
	case *ast.NameFullyQualified:
		return "\\" + joinParts(n.Parts)
	case *ast.Identifier:
		return string(n.Value)
	}
	return ""
}

func joinParts(parts []ast.Vertex) string {
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if namePart, ok := part.(*ast.NamePart); ok {
			names = append(names, string(namePart.Value))
		}
	}
	return strings.Join(names, "\\")
}

// IdentString extracts the value of an identifier node.
func IdentString(node ast.Vertex) string {
	if ident, ok := node.(*ast.Identifier); ok {
		return string(ident.Value)
	}
	return ""
}

// VarName extracts a variable name without the $ sigil. Dynamic variable
// names ($$x) yield "".
func VarName(node ast.Vertex) string {
	if v, ok := node.(*ast.ExprVariable); ok {
		return strings.TrimPrefix(IdentString(v.Name), "$")
	}
	return ""
}

// StringLiteral extracts the unquoted value of a plain string scalar.
func StringLiteral(node ast.Vertex) (string, bool) {
	s, ok := node.(*ast.ScalarString)
	if !ok {
		return "", false
	}
	val := string(s.Value)
	if len(val) >= 2 && (val[0] == '\'' || val[0] == '"') {
		val = val[1 : len(val)-1]
	}
	return val, true
}

// ClassConstName extracts "User" from a User::class expression.
func ClassConstName(node ast.Vertex) (string, bool) {
	fetch, ok := node.(*ast.ExprClassConstFetch)
	if !ok {
		return "", false
	}
	if IdentString(fetch.Const) != "class" {
		return "", false
	}
	name := NameString(fetch.Class)
	if name == "" {
		return "", false
	}
	return name, true
}

// ArgExpr unwraps the i-th call argument. Named arguments are returned in
// declaration order, which is good enough for the literal-only extraction the
// analyzers do.
func ArgExpr(args []ast.Vertex, i int) ast.Vertex {
	if i < 0 || i >= len(args) {
		return nil
	}
	if arg, ok := args[i].(*ast.Argument); ok {
		return arg.Expr
	}
	return nil
}

// StringArgs collects the relationship-path literals of a loading call:
// a single string, a variadic list of strings, or the string keys of an
// associative array (closure constraints are opaque and ignored).
func StringArgs(args []ast.Vertex) []string {
	var out []string
	for i := range args {
		expr := ArgExpr(args, i)
		if expr == nil {
			continue
		}
		if val, ok := StringLiteral(expr); ok {
			out = append(out, val)
			continue
		}
		if arr, ok := expr.(*ast.ExprArray); ok {
			for _, item := range arr.Items {
				arrayItem, ok := item.(*ast.ExprArrayItem)
				if !ok {
					continue
				}
				if arrayItem.Key != nil {
					if key, ok := StringLiteral(arrayItem.Key); ok {
						out = append(out, key)
					}
					continue
				}
				if val, ok := StringLiteral(arrayItem.Val); ok {
					out = append(out, val)
				}
			}
		}
	}
	return out
}

// Comments returns the raw comment strings attached before a token.
func Comments(tok *token.Token) []string {
	if tok == nil {
		return nil
	}
	var out []string
	for _, ff := range tok.FreeFloating {
		id := ff.ID.String()
		if id == "T_COMMENT" || id == "T_DOC_COMMENT" {
			out = append(out, string(ff.Value))
		}
	}
	return out
}

// Call is one link of a flattened method-call chain.
type Call struct {
	Name string
	Args []ast.Vertex
	Node ast.Vertex
}

// Chain is a left-to-right view over an expression like
// User::where('a', 1)->orderBy('b')->get(). Exactly one of RootVar,
// RootClass, RootFunc or RootProp is set; for static and function roots the
// root invocation itself appears as Calls[0].
type Chain struct {
	RootVar   string
	RootClass string
	RootFunc  string
	RootProp  bool // rooted at a property fetch, e.g. $this->repo->...
	RootNew   bool
	Calls     []Call
}

// HasCall reports whether any link of the chain matches one of the names.
func (c *Chain) HasCall(names ...string) bool {
	for _, call := range c.Calls {
		for _, name := range names {
			if call.Name == name {
				return true
			}
		}
	}
	return false
}

// FindCall returns the first link matching name.
func (c *Chain) FindCall(name string) (Call, bool) {
	for _, call := range c.Calls {
		if call.Name == name {
			return call, true
		}
	}
	return Call{}, false
}

// Last returns the final link of the chain.
func (c *Chain) Last() (Call, bool) {
	if len(c.Calls) == 0 {
		return Call{}, false
	}
	return c.Calls[len(c.Calls)-1], true
}

// FlattenChain flattens nested method calls into source order. It returns
// false for receivers it cannot follow (array accesses, call results of
// other chains, dynamic names).
func FlattenChain(node ast.Vertex) (*Chain, bool) {
	var calls []Call
	cur := node

	for {
		switch n := cur.(type) {
		case *ast.ExprMethodCall:
			name := IdentString(n.Method)
			if name == "" {
				return nil, false
			}
			calls = append([]Call{{Name: name, Args: n.Args, Node: n}}, calls...)
			cur = n.Var
		case *ast.ExprNullsafeMethodCall:
			name := IdentString(n.Method)
			if name == "" {
				return nil, false
			}
			calls = append([]Call{{Name: name, Args: n.Args, Node: n}}, calls...)
			cur = n.Var
		case *ast.ExprStaticCall:
			name := IdentString(n.Call)
			class := NameString(n.Class)
			if name == "" || class == "" {
				return nil, false
			}
			calls = append([]Call{{Name: name, Args: n.Args, Node: n}}, calls...)
			return &Chain{RootClass: class, Calls: calls}, true
		case *ast.ExprFunctionCall:
			name := NameString(n.Function)
			if name == "" {
				return nil, false
			}
			calls = append([]Call{{Name: name, Args: n.Args, Node: n}}, calls...)
			return &Chain{RootFunc: name, Calls: calls}, true
		case *ast.ExprVariable:
			name := VarName(n)
			if name == "" {
				return nil, false
			}
			return &Chain{RootVar: name, Calls: calls}, true
		case *ast.ExprPropertyFetch:
			return &Chain{RootProp: true, Calls: calls}, true
		case *ast.ExprNew:
			return &Chain{RootNew: true, Calls: calls}, true
		default:
			return nil, false
		}
	}
}

// PropertyPath flattens a static property-access chain like
// $post->user->team->name into its root variable and dot segments. The walk
// stops at the first dynamic segment or method call.
func PropertyPath(node ast.Vertex) (rootVar string, path []string, ok bool) {
	cur := node
	for {
		switch n := cur.(type) {
		case *ast.ExprPropertyFetch:
			name := IdentString(n.Prop)
			if name == "" {
				return "", nil, false
			}
			path = append([]string{name}, path...)
			cur = n.Var
		case *ast.ExprNullsafePropertyFetch:
			name := IdentString(n.Prop)
			if name == "" {
				return "", nil, false
			}
			path = append([]string{name}, path...)
			cur = n.Var
		case *ast.ExprVariable:
			rootVar = VarName(n)
			return rootVar, path, rootVar != "" && len(path) > 0
		default:
			return "", nil, false
		}
	}
}
