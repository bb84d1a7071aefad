package bestpractices

import (
	"path/filepath"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

const codeEnvOutsideConfig = "env_outside_config.env_call"

// EnvCall flags env() calls outside the config/ directory. Once the config
// is cached, env() returns null everywhere else, so such reads break in
// production without failing in development.
type EnvCall struct{}

func NewEnvCall(config.AnalyzerConfig) *EnvCall { return &EnvCall{} }

func (a *EnvCall) Name() string { return "env_outside_config" }

func (a *EnvCall) FailSeverity() analyzer.Severity { return analyzer.SeverityMedium }

func (a *EnvCall) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	if inConfigDir(file.Path) {
		return nil
	}
	v := &envVisitor{rule: a, file: file, sup: sup}
	scope.Walk(file.Root, v, resolver(ctx))
	return v.issues
}

func inConfigDir(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "config" {
			return true
		}
	}
	return false
}

type envVisitor struct {
	scope.Base
	rule   *EnvCall
	file   *phpast.File
	sup    *analyzer.Suppressions
	issues []analyzer.Issue
}

func (v *envVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	call, ok := n.(*ast.ExprFunctionCall)
	if !ok {
		return true
	}
	if strings.TrimPrefix(phpast.NameString(call.Function), "\\") != "env" {
		return true
	}
	if v.sup.Suppressed(v.rule.Name(), sc.CurrentClassName()) {
		return true
	}
	line := phpast.Line(n)
	issue := newIssue(v.file, codeEnvOutsideConfig, analyzer.SeverityMedium, line, line)
	issue.Message = "env() called outside the config directory"
	issue.Recommendation = "Read the value through config() and declare it in a config file"
	if key, ok := phpast.StringLiteral(phpast.ArgExpr(call.Args, 0)); ok {
		issue.Metadata = map[string]any{"key": key}
	}
	v.issues = append(v.issues, issue)
	return true
}
