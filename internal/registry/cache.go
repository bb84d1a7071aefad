package registry

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// snapshot is the on-disk form of a registry build, keyed by a hash of the
// scanned file set so any model change invalidates it.
type snapshot struct {
	Key     string                `json:"key"`
	Classes map[string]*classInfo `json:"classes"`
}

func cacheKey(opts Options) string {
	digest := xxhash.New()
	paths := append([]string{}, opts.ModelPaths...)
	sort.Strings(paths)
	for _, root := range paths {
		_, _ = digest.WriteString(root)
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".php") {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			_, _ = digest.WriteString(fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()))
			return nil
		})
	}
	return fmt.Sprintf("%016x", digest.Sum64())
}

func loadCache(opts Options) *Registry {
	data, err := os.ReadFile(opts.CachePath)
	if err != nil {
		return nil
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil
	}
	if snap.Key != cacheKey(opts) || snap.Classes == nil {
		return nil
	}
	r := newRegistry(opts)
	r.classes = snap.Classes
	r.index()
	return r
}

func storeCache(opts Options, r *Registry) {
	snap := snapshot{Key: cacheKey(opts), Classes: r.classes}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if dir := filepath.Dir(opts.CachePath); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	_ = os.WriteFile(opts.CachePath, data, 0o644)
}

// ClearCache removes a registry snapshot. Tests use it to force a rescan.
func ClearCache(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
