// Package registry maps Eloquent model classes to their database tables.
// It is built once per analysis run by scanning the configured model
// directories, then treated as read-only by every per-file analyzer, which
// makes it safe for concurrent readers.
package registry

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

// defaultOrmBases are the classes whose descendants count as models. A plain
// class with a $table property is not a model.
var defaultOrmBases = []string{
	"Illuminate\\Database\\Eloquent\\Model",
	"Illuminate\\Foundation\\Auth\\User",
	"Illuminate\\Database\\Eloquent\\Relations\\Pivot",
	"Model",
	"Authenticatable",
	"Pivot",
}

// Options configures a registry build.
type Options struct {
	// ModelPaths are directories scanned recursively for model classes.
	// Missing directories are skipped, not errors.
	ModelPaths []string
	// TableMappings force a table for a fully-qualified class name,
	// bypassing resolution.
	TableMappings map[string]string
	// OrmBases extends the set of known ORM base classes.
	OrmBases []string
	// CachePath, when set, enables the on-disk snapshot keyed by the
	// scanned file set.
	CachePath string
}

type classInfo struct {
	Name        string `json:"name"`
	Parent      string `json:"parent,omitempty"`
	TableProp   string `json:"tableProp,omitempty"`
	TableMethod string `json:"tableMethod,omitempty"`
	// Dynamic marks a table override whose value is not a literal. It
	// shadows the pluralization fallback and makes the class unresolvable.
	Dynamic bool `json:"dynamic,omitempty"`
}

// Registry answers "what table does class X map to" and "is class X a
// model". Zero models found is a valid, empty registry.
type Registry struct {
	classes  map[string]*classInfo
	ormBases map[string]bool
	mappings map[string]string
	byTable  map[string]string
}

// Build scans the model paths and resolves every class found. Individual
// files that fail to parse are skipped; the result is always at least an
// empty registry.
func Build(opts Options) *Registry {
	r := newRegistry(opts)

	if opts.CachePath != "" {
		if cached := loadCache(opts); cached != nil {
			return cached
		}
	}

	for _, root := range opts.ModelPaths {
		r.scanDir(root)
	}
	r.index()

	if opts.CachePath != "" {
		storeCache(opts, r)
	}
	return r
}

func newRegistry(opts Options) *Registry {
	r := &Registry{
		classes:  map[string]*classInfo{},
		ormBases: map[string]bool{},
		mappings: map[string]string{},
		byTable:  map[string]string{},
	}
	for _, base := range defaultOrmBases {
		r.ormBases[base] = true
	}
	for _, base := range opts.OrmBases {
		r.ormBases[base] = true
	}
	for class, table := range opts.TableMappings {
		r.mappings[strings.TrimPrefix(class, "\\")] = table
	}
	return r
}

func (r *Registry) scanDir(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			base := filepath.Base(path)
			if base == "vendor" || base == "node_modules" || (strings.HasPrefix(base, ".") && path != root) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".php") {
			return nil
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		r.scanSource(path, source)
		return nil
	})
}

func (r *Registry) scanSource(path string, source []byte) {
	file, err := phpast.Parse(path, source)
	if err != nil {
		return
	}
	collector := &modelCollector{registry: r}
	scope.Walk(file.Root, collector, nil)
}

// modelCollector records every class declaration with its parent (resolved
// through the file's imports) and any table override found in its own body.
type modelCollector struct {
	scope.Base
	registry *Registry
}

func (c *modelCollector) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	class, ok := n.(*ast.StmtClass)
	if !ok {
		return true
	}
	name := phpast.IdentString(class.Name)
	if name == "" {
		return true
	}

	info := &classInfo{Name: sc.ResolveName(name)}
	if class.Extends != nil {
		info.Parent = sc.ResolveName(phpast.NameString(class.Extends))
	}
	c.collectTableOverrides(class, info)
	c.registry.classes[info.Name] = info
	return true
}

func (c *modelCollector) collectTableOverrides(class *ast.StmtClass, info *classInfo) {
	for _, stmt := range class.Stmts {
		switch node := stmt.(type) {
		case *ast.StmtPropertyList:
			for _, prop := range node.Props {
				propNode, ok := prop.(*ast.StmtProperty)
				if !ok || phpast.VarName(propNode.Var) != "table" {
					continue
				}
				if propNode.Expr == nil {
					continue
				}
				if val, ok := phpast.StringLiteral(propNode.Expr); ok {
					info.TableProp = val
				} else {
					info.Dynamic = true
				}
			}
		case *ast.StmtClassMethod:
			if phpast.IdentString(node.Name) != "getTable" {
				continue
			}
			if val, ok := unconditionalReturnLiteral(node); ok {
				info.TableMethod = val
			} else {
				info.Dynamic = true
			}
		}
	}
}

// unconditionalReturnLiteral matches a method whose whole body is a single
// return of a string literal. Anything else cannot be trusted statically.
func unconditionalReturnLiteral(method *ast.StmtClassMethod) (string, bool) {
	list, ok := method.Stmt.(*ast.StmtStmtList)
	if !ok || len(list.Stmts) != 1 {
		return "", false
	}
	ret, ok := list.Stmts[0].(*ast.StmtReturn)
	if !ok {
		return "", false
	}
	return phpast.StringLiteral(ret.Expr)
}

func (r *Registry) index() {
	r.byTable = map[string]string{}
	for name := range r.classes {
		if table, ok := r.ResolveTable(name); ok {
			if _, exists := r.byTable[table]; !exists {
				r.byTable[table] = name
			}
		}
	}
	for class, table := range r.mappings {
		r.byTable[table] = class
	}
}

// BaseChain returns the ordered ancestor list for a class, stopping at the
// first unresolvable external symbol or on a cycle.
func (r *Registry) BaseChain(fqcn string) []string {
	fqcn = strings.TrimPrefix(fqcn, "\\")
	var chain []string
	seen := map[string]bool{fqcn: true}
	cur := r.classes[fqcn]
	for cur != nil && cur.Parent != "" {
		if seen[cur.Parent] {
			// Inheritance cycle in the scanned code: stop resolving.
			break
		}
		chain = append(chain, cur.Parent)
		seen[cur.Parent] = true
		cur = r.classes[cur.Parent]
	}
	return chain
}

// IsModel reports whether the class transitively descends from a known ORM
// base class.
func (r *Registry) IsModel(fqcn string) bool {
	fqcn = strings.TrimPrefix(fqcn, "\\")
	if _, ok := r.classes[fqcn]; !ok {
		return false
	}
	for _, ancestor := range r.BaseChain(fqcn) {
		if r.isOrmBase(ancestor) {
			return true
		}
	}
	return false
}

func (r *Registry) isOrmBase(name string) bool {
	if r.ormBases[name] {
		return true
	}
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		return r.ormBases[name[i+1:]]
	}
	return false
}

// ResolveTable resolves the table for a model class. Precedence, highest
// first: configured mapping, getTable() literal, $table literal, nearest
// ancestor override, pluralized snake_case of the unqualified class name.
// A dynamic override with no literal fallback makes the class unresolvable.
func (r *Registry) ResolveTable(fqcn string) (string, bool) {
	fqcn = strings.TrimPrefix(fqcn, "\\")
	if table, ok := r.mappings[fqcn]; ok {
		return table, true
	}
	if !r.IsModel(fqcn) {
		return "", false
	}

	for _, name := range append([]string{fqcn}, r.BaseChain(fqcn)...) {
		info, ok := r.classes[name]
		if !ok {
			break
		}
		if info.TableMethod != "" {
			return info.TableMethod, true
		}
		if info.TableProp != "" {
			return info.TableProp, true
		}
		if info.Dynamic {
			return "", false
		}
	}
	return TableName(shortName(fqcn)), true
}

// TableModel is the reverse lookup: the model class owning a table, if any.
func (r *Registry) TableModel(table string) (string, bool) {
	class, ok := r.byTable[table]
	return class, ok
}

// Len reports how many classes were recorded during the scan.
func (r *Registry) Len() int { return len(r.classes) }

func shortName(fqcn string) string {
	if i := strings.LastIndexByte(fqcn, '\\'); i >= 0 {
		return fqcn[i+1:]
	}
	return fqcn
}
