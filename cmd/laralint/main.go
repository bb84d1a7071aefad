package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/runner"
	"github.com/doITmagic/laralint/internal/workspace"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func main() {
	// Logs go to stderr; the report owns stdout.
	log.SetOutput(os.Stderr)

	var (
		pathFlag     = flag.String("path", "", "project base path (overrides config)")
		configFlag   = flag.String("config", "laralint.yaml", "configuration file")
		formatFlag   = flag.String("format", "", "report format: text or json (overrides config)")
		analyzerFlag = flag.String("analyzer", "", "comma-separated analyzer names to run (default: all enabled)")
		watchFlag    = flag.Bool("watch", false, "re-run analysis when PHP files change")
		versionFlag  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("laralint %s (commit %s, built %s)\n", Version, Commit, Date)
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *pathFlag != "" {
		cfg.BasePath = *pathFlag
	}
	if *formatFlag != "" {
		cfg.Output.Format = *formatFlag
	}

	format, err := analyzer.ParseFormat(cfg.Output.Format)
	if err != nil {
		log.Fatalf("Invalid output format: %v", err)
	}

	battery, err := selectAnalyzers(cfg, *analyzerFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *watchFlag || cfg.Watch.Enabled {
		runWatch(ctx, cfg, battery, format)
		return
	}

	failed, err := runOnce(ctx, cfg, battery, format)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	if failed {
		os.Exit(1)
	}
}

func selectAnalyzers(cfg *config.Config, filter string) ([]analyzer.Analyzer, error) {
	battery := runner.Analyzers(cfg)
	if filter == "" {
		return battery, nil
	}
	want := map[string]bool{}
	for _, name := range strings.Split(filter, ",") {
		if name = strings.TrimSpace(name); name != "" {
			want[name] = true
		}
	}
	var selected []analyzer.Analyzer
	for _, a := range battery {
		if want[a.Name()] {
			selected = append(selected, a)
			delete(want, a.Name())
		}
	}
	for name := range want {
		return nil, fmt.Errorf("unknown or disabled analyzer %q", name)
	}
	return selected, nil
}

func runOnce(ctx context.Context, cfg *config.Config, battery []analyzer.Analyzer, format analyzer.Format) (bool, error) {
	report, err := runner.RunWith(ctx, cfg, battery)
	if err != nil {
		return false, err
	}
	out, err := analyzer.Render(report, format)
	if err != nil {
		return false, err
	}
	fmt.Print(out)
	return report.Failed(), nil
}

func runWatch(ctx context.Context, cfg *config.Config, battery []analyzer.Analyzer, format analyzer.Format) {
	if _, err := runOnce(ctx, cfg, battery, format); err != nil {
		log.Printf("[ERROR] Analysis failed: %v", err)
	}

	debounce := time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fw, err := workspace.NewFileWatcher(cfg.BasePath, debounce, func() {
		if _, err := runOnce(ctx, cfg, battery, format); err != nil {
			log.Printf("[ERROR] Analysis failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to create watcher: %v", err)
	}
	fw.Start()

	<-ctx.Done()
	fw.Stop()
}
