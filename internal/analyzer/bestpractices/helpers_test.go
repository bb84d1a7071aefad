package bestpractices

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/registry"
)

// testRegistry builds a registry with the handful of models the fixtures
// reference.
func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	models := map[string]string{
		"User":    "",
		"Post":    "",
		"Order":   "",
		"Payment": "",
		"Comment": "",
	}
	for name := range models {
		src := `<?php
namespace App\Models;

use Illuminate\Database\Eloquent\Model;

class ` + name + ` extends Model
{
}
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".php"), []byte(src), 0o644))
	}
	return registry.Build(registry.Options{ModelPaths: []string{dir}})
}

// analyzeAt runs one analyzer over inline PHP source under a given file path.
func analyzeAt(t *testing.T, a analyzer.Analyzer, reg *registry.Registry, path, src string) []analyzer.Issue {
	t.Helper()
	file, err := phpast.Parse(path, []byte(src))
	require.NoError(t, err)
	sup := analyzer.ScanSuppressions(file)
	return a.Analyze(file, sup, &analyzer.Context{Registry: reg})
}

func analyze(t *testing.T, a analyzer.Analyzer, reg *registry.Registry, src string) []analyzer.Issue {
	t.Helper()
	return analyzeAt(t, a, reg, "app/Services/Fixture.php", src)
}

func codes(issues []analyzer.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Code)
	}
	return out
}
