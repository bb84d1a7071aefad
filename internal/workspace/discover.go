// Package workspace handles source file discovery and the optional watch
// mode over a scanned project tree.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultSkipDirs are never descended into, regardless of configuration.
var defaultSkipDirs = map[string]struct{}{
	"vendor":       {},
	"node_modules": {},
	"storage":      {},
	".git":         {},
	".idea":        {},
}

// Discover walks the configured sub-paths under base and returns every PHP
// source file, sorted for deterministic reports. Exclude patterns are glob
// matched against the slash-separated path relative to base. A sub-path
// that does not exist is skipped, not an error.
func Discover(base string, paths []string, exclude []string) ([]string, error) {
	seen := map[string]struct{}{}
	var files []string

	for _, sub := range paths {
		root := filepath.Join(base, sub)
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if _, skip := defaultSkipDirs[d.Name()]; skip {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ".php") {
				return nil
			}
			if excluded(base, path, exclude) {
				return nil
			}
			if _, dup := seen[path]; !dup {
				seen[path] = struct{}{}
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func excluded(base, path string, patterns []string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
