package workspace

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte("<?php\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func relative(t *testing.T, base string, files []string) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(base, f)
		if err != nil {
			t.Fatalf("rel %s: %v", f, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestDiscoverFindsPHPSources(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "app", "Models", "User.php"))
	writeFile(t, filepath.Join(base, "app", "Services", "OrderService.php"))
	writeFile(t, filepath.Join(base, "routes", "web.php"))
	writeFile(t, filepath.Join(base, "app", "notes.txt"))

	files, err := Discover(base, []string{"app", "routes"}, nil)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}

	want := []string{
		"app/Models/User.php",
		"app/Services/OrderService.php",
		"routes/web.php",
	}
	if got := relative(t, base, files); !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverSkipsVendorAndStorage(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "app", "Models", "User.php"))
	writeFile(t, filepath.Join(base, "app", "vendor", "lib", "Lib.php"))
	writeFile(t, filepath.Join(base, "app", "storage", "cached.php"))
	writeFile(t, filepath.Join(base, "app", "node_modules", "pkg", "index.php"))

	files, err := Discover(base, []string{"app"}, nil)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	want := []string{"app/Models/User.php"}
	if got := relative(t, base, files); !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverExcludeGlobs(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "app", "Models", "User.php"))
	writeFile(t, filepath.Join(base, "app", "Generated", "Proxy.php"))

	files, err := Discover(base, []string{"app"}, []string{"app/Generated/**"})
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	want := []string{"app/Models/User.php"}
	if got := relative(t, base, files); !reflect.DeepEqual(got, want) {
		t.Errorf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverMissingSubPathTolerated(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "app", "User.php"))

	files, err := Discover(base, []string{"app", "database"}, nil)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Discover found %d files, want 1", len(files))
	}
}

func TestDiscoverResultIsSorted(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "app", "Zebra.php"))
	writeFile(t, filepath.Join(base, "app", "Alpha.php"))
	writeFile(t, filepath.Join(base, "app", "Middle.php"))

	files, err := Discover(base, []string{"app"}, nil)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if !sort.StringsAreSorted(files) {
		t.Errorf("Discover result is not sorted: %v", files)
	}
}
