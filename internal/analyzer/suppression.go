package analyzer

import (
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/phpast"
)

// Suppression markers are structured comments recognized uniformly by every
// rule:
//
//	// @laralint-ignore              (before a class: all rules, that class)
//	// @laralint-ignore n_plus_one   (before a class: one rule, that class)
//	// @laralint-ignore-file         (anywhere in a comment: all rules)
//	// @laralint-ignore-file sql_injection
const (
	markerFile  = "@laralint-ignore-file"
	markerClass = "@laralint-ignore"
)

// Suppressions is the per-file result of the suppression pre-pass. Analyzers
// consult it before reporting; they never parse markers themselves.
type Suppressions struct {
	fileAll    bool
	fileRules  map[string]bool
	classAll   map[string]bool
	classRules map[string]map[string]bool
}

// ScanSuppressions collects markers from the file header comments and from
// the doc comments immediately preceding each class declaration. A marker on
// one class never affects a sibling class in the same file.
func ScanSuppressions(file *phpast.File) *Suppressions {
	s := &Suppressions{
		fileRules:  map[string]bool{},
		classAll:   map[string]bool{},
		classRules: map[string]map[string]bool{},
	}
	s.scanFileComments(file.Source)
	phpast.Inspect(file.Root, func(n ast.Vertex) bool {
		class, ok := n.(*ast.StmtClass)
		if !ok {
			return true
		}
		name := phpast.IdentString(class.Name)
		if name == "" {
			return true
		}
		for _, comment := range classComments(class) {
			s.applyClassMarker(name, comment)
		}
		return true
	})
	return s
}

// Suppressed reports whether a rule is muted for the given class ("" when
// the finding is not attached to any class).
func (s *Suppressions) Suppressed(rule, class string) bool {
	if s == nil {
		return false
	}
	if s.fileAll || s.fileRules[rule] {
		return true
	}
	if class == "" {
		return false
	}
	if s.classAll[class] {
		return true
	}
	return s.classRules[class][rule]
}

func (s *Suppressions) scanFileComments(source []byte) {
	for _, line := range strings.Split(string(source), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "//") && !strings.HasPrefix(trimmed, "#") &&
			!strings.HasPrefix(trimmed, "/*") && !strings.HasPrefix(trimmed, "*") {
			continue
		}
		if rule, ok := markerRule(trimmed, markerFile); ok {
			if rule == "" {
				s.fileAll = true
			} else {
				s.fileRules[rule] = true
			}
		}
	}
}

func (s *Suppressions) applyClassMarker(class, comment string) {
	for _, line := range strings.Split(comment, "\n") {
		if _, ok := markerRule(line, markerFile); ok {
			// File markers are handled by the source scan; a class doc
			// comment carrying one is still file-wide, not class-scoped.
			continue
		}
		rule, ok := markerRule(line, markerClass)
		if !ok {
			continue
		}
		if rule == "" {
			s.classAll[class] = true
			continue
		}
		if s.classRules[class] == nil {
			s.classRules[class] = map[string]bool{}
		}
		s.classRules[class][rule] = true
	}
}

// markerRule extracts the optional rule name following a marker. It returns
// ok=false when the marker is absent.
func markerRule(line, marker string) (string, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(marker):]
	if rest != "" && rest[0] == '-' {
		// Longer marker; not this one.
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", true
	}
	rule := strings.Trim(fields[0], "*/")
	if rule == "" {
		return "", true
	}
	return rule, true
}

func classComments(class *ast.StmtClass) []string {
	var out []string
	out = append(out, phpast.Comments(class.ClassTkn)...)
	for _, mod := range class.Modifiers {
		if ident, ok := mod.(*ast.Identifier); ok {
			out = append(out, phpast.Comments(ident.IdentifierTkn)...)
		}
	}
	return out
}
