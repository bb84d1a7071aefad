// Package scope tracks lexical context during a single-file traversal:
// namespace, enclosing class with its resolved base-class chain, enclosing
// method or closure, and per-scope variable provenance. Every analyzer that
// needs context consumes one Tracker instead of re-walking the tree.
package scope

// Kind classifies one lexical nesting level.
type Kind int

const (
	KindFile Kind = iota
	KindNamespace
	KindClass
	KindAnonClass
	KindMethod
	KindFunction
	KindClosure
)

// ProvKind discriminates what a variable is known to hold.
type ProvKind int

const (
	ProvUnknown ProvKind = iota
	// ProvModelClass: a materialized query result (collection/model) whose
	// origin model is Provenance.Model.
	ProvModelClass
	// ProvEloquentBuilder: an unterminated Eloquent query builder for
	// Provenance.Model.
	ProvEloquentBuilder
	// ProvQueryBuilder: a raw builder for table Provenance.Table.
	ProvQueryBuilder
	// ProvTransactionProtected: a value produced inside a
	// transaction-wrapping closure.
	ProvTransactionProtected
)

// Provenance is the lightweight tag attached to a variable binding.
type Provenance struct {
	Kind  ProvKind
	Model string
	Table string
}

// Frame is one entry of the scope stack. Variable bindings live only on
// method, function and closure frames; entering a nested closure starts with
// an empty table so stale outer provenance can never leak in.
type Frame struct {
	Kind     Kind
	Name     string
	Chain    []string // resolved ancestor classes, class frames only
	bindings map[string]Provenance
}

func (f *Frame) holdsBindings() bool {
	return f.Kind == KindMethod || f.Kind == KindFunction || f.Kind == KindClosure
}

// Tracker is the stack of frames for the file being traversed.
type Tracker struct {
	Namespace string
	Imports   map[string]string

	frames []*Frame
}

func NewTracker() *Tracker {
	return &Tracker{
		Imports: map[string]string{},
		frames:  []*Frame{{Kind: KindFile}},
	}
}

func (t *Tracker) push(f *Frame) {
	if f.holdsBindings() {
		f.bindings = map[string]Provenance{}
	}
	t.frames = append(t.frames, f)
}

func (t *Tracker) pop() {
	if len(t.frames) > 1 {
		t.frames = t.frames[:len(t.frames)-1]
	}
}

// Depth reports the current stack depth, file frame included.
func (t *Tracker) Depth() int { return len(t.frames) }

// CurrentClass returns the innermost class frame, or nil outside any class.
func (t *Tracker) CurrentClass() *Frame {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if t.frames[i].Kind == KindClass || t.frames[i].Kind == KindAnonClass {
			return t.frames[i]
		}
	}
	return nil
}

// CurrentClassName returns the name of the innermost named class, or "".
// Anonymous classes have no name and never match name-based exemptions.
func (t *Tracker) CurrentClassName() string {
	if f := t.CurrentClass(); f != nil {
		return f.Name
	}
	return ""
}

// ClassChain returns the resolved ancestor list of the innermost class.
// The chain stops at the first ancestor defined outside the analyzed set;
// that is not an error, just the end of what is knowable.
func (t *Tracker) ClassChain() []string {
	if f := t.CurrentClass(); f != nil {
		return f.Chain
	}
	return nil
}

// CurrentMethod returns the name of the innermost method or function, or "".
func (t *Tracker) CurrentMethod() string {
	for i := len(t.frames) - 1; i >= 0; i-- {
		switch t.frames[i].Kind {
		case KindMethod, KindFunction:
			return t.frames[i].Name
		}
	}
	return ""
}

// InClosure reports whether the innermost binding scope is a closure.
func (t *Tracker) InClosure() bool {
	f := t.bindingFrame()
	return f != nil && f.Kind == KindClosure
}

func (t *Tracker) bindingFrame() *Frame {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if t.frames[i].holdsBindings() {
			return t.frames[i]
		}
	}
	return nil
}

// Bind attaches provenance to a variable in the innermost binding scope.
func (t *Tracker) Bind(name string, p Provenance) {
	if f := t.bindingFrame(); f != nil && name != "" {
		f.bindings[name] = p
	}
}

// Lookup resolves a variable strictly against the innermost binding scope.
func (t *Tracker) Lookup(name string) (Provenance, bool) {
	f := t.bindingFrame()
	if f == nil {
		return Provenance{}, false
	}
	p, ok := f.bindings[name]
	return p, ok
}

// ResolveName expands a class name as written in source to its
// fully-qualified form using the file's imports and current namespace.
// The returned name carries no leading backslash.
func (t *Tracker) ResolveName(name string) string {
	if name == "" {
		return ""
	}
	if name[0] == '\\' {
		return name[1:]
	}
	head := name
	if i := indexByte(name, '\\'); i >= 0 {
		head = name[:i]
	}
	if full, ok := t.Imports[head]; ok {
		if head == name {
			return full
		}
		return full + name[len(head):]
	}
	if t.Namespace != "" {
		return t.Namespace + "\\" + name
	}
	return name
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
