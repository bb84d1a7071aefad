package phpast

import (
	"errors"
	"fmt"

	"github.com/VKCOM/php-parser/pkg/ast"
	"github.com/VKCOM/php-parser/pkg/conf"
	perrors "github.com/VKCOM/php-parser/pkg/errors"
	"github.com/VKCOM/php-parser/pkg/parser"
	"github.com/VKCOM/php-parser/pkg/version"
)

// ErrParse marks a file whose source could not be turned into a clean syntax
// tree. Callers are expected to skip the file and continue the run.
var ErrParse = errors.New("php parse failure")

// File is one parsed PHP source file.
type File struct {
	Path   string
	Source []byte
	Root   ast.Vertex
}

// Parse parses PHP source (PHP 8 grammar). Any syntax error recorded by the
// parser counts as a parse failure: a partially parsed tree is worse for the
// analyzers than no tree at all.
func Parse(path string, source []byte) (*File, error) {
	var parserErrors []*perrors.Error

	rootNode, err := parser.Parse(source, conf.Config{
		Version: &version.Version{Major: 8, Minor: 0},
		ErrorHandlerFunc: func(e *perrors.Error) {
			parserErrors = append(parserErrors, e)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	if len(parserErrors) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrParse, path, parserErrors[0].String())
	}

	return &File{Path: path, Source: source, Root: rootNode}, nil
}

// Line returns the starting source line of a node, or 0 when the node carries
// no position.
func Line(n ast.Vertex) int {
	if n == nil {
		return 0
	}
	if pos := n.GetPosition(); pos != nil {
		return pos.StartLine
	}
	return 0
}

// EndLine returns the ending source line of a node, or 0.
func EndLine(n ast.Vertex) int {
	if n == nil {
		return 0
	}
	if pos := n.GetPosition(); pos != nil {
		return pos.EndLine
	}
	return 0
}

// Excerpt returns the source lines [start, end] (1-indexed, inclusive).
func (f *File) Excerpt(start, end int) string {
	if f == nil || start < 1 || end < start {
		return ""
	}
	line := 1
	from := -1
	for i := 0; i <= len(f.Source); i++ {
		if line == start && from < 0 {
			from = i
		}
		if i == len(f.Source) {
			if from < 0 {
				return ""
			}
			return string(f.Source[from:])
		}
		if f.Source[i] == '\n' {
			if line == end {
				if from < 0 {
					return ""
				}
				return string(f.Source[from:i])
			}
			line++
		}
	}
	return ""
}
