// laralint-mcp exposes the analyzer as an MCP tool over stdio, so an agent
// can ask for a structured report on a Laravel project.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/runner"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// AnalyzeProjectInput defines the typed input for the analyze_project tool.
type AnalyzeProjectInput struct {
	Path      string   `json:"path"`
	Config    string   `json:"config,omitempty"`
	Analyzers []string `json:"analyzers,omitempty"`
}

// AnalyzeProjectOutput defines the typed output for the analyze_project tool.
type AnalyzeProjectOutput struct {
	Report *analyzer.Report `json:"report"`
}

func main() {
	// Keep stdout clean for the MCP stdio protocol.
	log.SetOutput(os.Stderr)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "laralint",
		Version: Version,
	}, nil)

	mcp.AddTool[AnalyzeProjectInput, AnalyzeProjectOutput](server, &mcp.Tool{
		Name:        "analyze_project",
		Description: "Scan a Laravel/PHP project for anti-patterns (N+1 queries, mixed query builders, missing transactions, SQL injection and more) and return a structured report.",
	}, analyzeProject)

	log.Printf("laralint MCP server started (stdio mode)")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("Server terminated: %v", err)
	}
}

func analyzeProject(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeProjectInput) (*mcp.CallToolResult, AnalyzeProjectOutput, error) {
	configPath := input.Config
	if configPath == "" {
		configPath = "laralint.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, AnalyzeProjectOutput{}, err
	}
	if input.Path != "" {
		cfg.BasePath = input.Path
	}

	battery := runner.Analyzers(cfg)
	if len(input.Analyzers) > 0 {
		want := map[string]bool{}
		for _, name := range input.Analyzers {
			want[name] = true
		}
		var selected []analyzer.Analyzer
		for _, a := range battery {
			if want[a.Name()] {
				selected = append(selected, a)
			}
		}
		battery = selected
	}

	report, err := runner.RunWith(ctx, cfg, battery)
	if err != nil {
		return nil, AnalyzeProjectOutput{}, err
	}
	return nil, AnalyzeProjectOutput{Report: report}, nil
}
