package security

import (
	"fmt"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/laralint/internal/analyzer"
	"github.com/doITmagic/laralint/internal/config"
	"github.com/doITmagic/laralint/internal/phpast"
	"github.com/doITmagic/laralint/internal/scope"
)

const (
	codeBroadCatch = "generic_exception_catch.broad_catch"
	codeEmptyCatch = "generic_exception_catch.swallowed"
)

// GenericCatch flags catch blocks that trap \Exception or \Throwable. Low
// confidence by design, so findings only ever reach warning status; an empty
// catch body is reported separately because it also hides the failure.
type GenericCatch struct{}

func NewGenericCatch(config.AnalyzerConfig) *GenericCatch { return &GenericCatch{} }

func (a *GenericCatch) Name() string { return "generic_exception_catch" }

func (a *GenericCatch) FailSeverity() analyzer.Severity { return analyzer.SeverityHigh }

func (a *GenericCatch) Analyze(file *phpast.File, sup *analyzer.Suppressions, ctx *analyzer.Context) []analyzer.Issue {
	v := &catchVisitor{rule: a, file: file, sup: sup}
	scope.Walk(file.Root, v, nil)
	return v.issues
}

type catchVisitor struct {
	scope.Base
	rule   *GenericCatch
	file   *phpast.File
	sup    *analyzer.Suppressions
	issues []analyzer.Issue
}

func (v *catchVisitor) EnterNode(n ast.Vertex, sc *scope.Tracker) bool {
	catch, ok := n.(*ast.StmtCatch)
	if !ok {
		return true
	}
	caught := genericType(catch)
	if caught == "" {
		return true
	}
	if v.sup.Suppressed(v.rule.Name(), sc.CurrentClassName()) {
		return true
	}

	line := phpast.Line(n)
	issue := analyzer.Issue{
		Code:           codeBroadCatch,
		Severity:       analyzer.SeverityMedium,
		Message:        fmt.Sprintf("catch (%s) traps every failure, including programming errors", caught),
		Recommendation: "Catch the specific exception types this block can actually handle",
		File:           v.file.Path,
		Line:           line,
		EndLine:        phpast.EndLine(n),
		Excerpt:        v.file.Excerpt(line, line),
		Metadata:       map[string]any{"caught": caught},
	}
	if len(catch.Stmts) == 0 {
		issue.Code = codeEmptyCatch
		issue.Message = fmt.Sprintf("catch (%s) swallows the failure silently", caught)
		issue.Recommendation = "Handle the exception, rethrow it, or at least log it"
	}
	v.issues = append(v.issues, issue)
	return true
}

// genericType returns the first \Exception or \Throwable entry of a catch
// type list.
func genericType(catch *ast.StmtCatch) string {
	for _, t := range catch.Types {
		name := strings.TrimPrefix(phpast.NameString(t), "\\")
		switch name {
		case "Exception", "Throwable":
			return name
		}
	}
	return ""
}
