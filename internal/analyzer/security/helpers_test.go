package security

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/phpast"
)

// analyzeSrc runs one analyzer over inline PHP source. The security rules are
// registry-free, so the context stays empty.
func analyzeSrc(t *testing.T, a analyzer.Analyzer, src string) []analyzer.Issue {
	t.Helper()
	file, err := phpast.Parse("app/Services/Fixture.php", []byte(src))
	require.NoError(t, err)
	sup := analyzer.ScanSuppressions(file)
	return a.Analyze(file, sup, &analyzer.Context{})
}
