// Package runner assembles the analyzer battery and executes a full scan:
// registry pre-pass, file discovery, parallel per-file analysis, report.
package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/analyzer/bestpractices"
	"github.com/doITmagic/laralint/internal/analyzer/security"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/registry"
	"github.com/doITmagic/laralint/internal/workspace"
)

// Analyzers constructs the enabled battery in report order.
func Analyzers(cfg *config.Config) []analyzer.Analyzer {
	all := []analyzer.Analyzer{
		bestpractices.NewNPlusOne(cfg.Rule("n_plus_one")),
		bestpractices.NewMixedQuery(cfg.Rule("mixed_query_builder")),
		bestpractices.NewTransaction(cfg.Rule("missing_transaction")),
		bestpractices.NewCollectionFilter(cfg.Rule("collection_filtering")),
		bestpractices.NewControllerQuery(cfg.Rule("query_in_controller")),
		bestpractices.NewEnvCall(cfg.Rule("env_outside_config")),
		bestpractices.NewEagerLoad(cfg.Rule("eager_load_count")),
		security.NewSQLInjection(cfg.Rule("sql_injection")),
		security.NewGenericCatch(cfg.Rule("generic_exception_catch")),
		security.NewMassAssignment(cfg.Rule("mass_assignment")),
	}
	enabled := make([]analyzer.Analyzer, 0, len(all))
	for _, a := range all {
		if cfg.RuleEnabled(a.Name()) {
			enabled = append(enabled, a)
		}
	}
	return enabled
}

// Run performs one complete scan with the battery derived from cfg.
func Run(ctx context.Context, cfg *config.Config) (*analyzer.Report, error) {
	return RunWith(ctx, cfg, Analyzers(cfg))
}

// RunWith performs one complete scan with an explicit battery. The registry
// is built once, single-threaded, then shared read-only across the file
// fan-out. Unreadable and unparseable files are skipped, never fatal.
func RunWith(ctx context.Context, cfg *config.Config, analyzers []analyzer.Analyzer) (*analyzer.Report, error) {
	reg := registry.Build(registry.Options{
		ModelPaths:    joinPaths(cfg.BasePath, cfg.ModelPaths),
		TableMappings: cfg.TableMappings,
		CachePath:     cfg.RegistryCache,
	})
	actx := &analyzer.Context{Registry: reg}

	files, err := workspace.Discover(cfg.BasePath, cfg.Paths, cfg.Exclude)
	if err != nil {
		return nil, err
	}

	var (
		mu           sync.Mutex
		issuesByRule = map[string][]analyzer.Issue{}
		scanned      int
		skipped      int
	)

	g, gctx := errgroup.WithContext(ctx)
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g.SetLimit(workers)

	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			local, ok := analyzeFile(path, analyzers, actx)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				skipped++
				return nil
			}
			scanned++
			for name, issues := range local {
				issuesByRule[name] = append(issuesByRule[name], issues...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &analyzer.Report{
		SchemaVersion: analyzer.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		BasePath:      cfg.BasePath,
	}
	report.Summary.FilesScanned = scanned
	report.Summary.FilesSkipped = skipped
	for _, a := range analyzers {
		issues := issuesByRule[a.Name()]
		analyzer.SortIssues(issues)
		status := analyzer.StatusFor(issues, a.FailSeverity())
		report.Results = append(report.Results, analyzer.Result{
			Analyzer: a.Name(),
			Status:   status,
			Issues:   issues,
		})
		report.Summary.IssueCount += len(issues)
		if status == analyzer.StatusFailed {
			report.Summary.FailedRules++
		}
	}
	return report, nil
}

func analyzeFile(path string, analyzers []analyzer.Analyzer, actx *analyzer.Context) (map[string][]analyzer.Issue, bool) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	file, err := phpast.Parse(path, source)
	if err != nil {
		return nil, false
	}
	sup := analyzer.ScanSuppressions(file)
	local := map[string][]analyzer.Issue{}
	for _, a := range analyzers {
		if issues := a.Analyze(file, sup, actx); len(issues) > 0 {
			local[a.Name()] = append(local[a.Name()], issues...)
		}
	}
	return local, true
}

func joinPaths(base string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			out = append(out, p)
			continue
		}
		out = append(out, filepath.Join(base, p))
	}
	return out
}
