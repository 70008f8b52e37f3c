// Package report generates submission-ready Markdown reports for triaged
// findings, pulling in PoC evidence when it exists.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/scottbrough/bugbounty-framework/pkg/llm"
	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

const reportSystemPrompt = "You are an expert bug bounty report writer. Create a detailed and concise HackerOne-style report " +
	"using the following structure:\n\n" +
	"# Vulnerability Report\n" +
	"## Affected Host\n" +
	"## Summary\n" +
	"## Steps to Reproduce\n" +
	"## Impact\n" +
	"## PoC\n" +
	"## Recommended Remediation\n"

type Engine struct {
	store    *store.Store
	provider llm.Provider
	logger   *slog.Logger
}

func New(st *store.Store, provider llm.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, provider: provider, logger: logger}
}

// Run writes one report per triaged finding into
// workspace/<target>/reports/ and advances those findings to 'reported'.
// A failed finding is logged and skipped.
func (e *Engine) Run(ctx context.Context, target, workspaceDir string) (int, error) {
	findings, err := e.store.FindingsByStatus(ctx, target, store.StatusTriaged)
	if err != nil {
		return 0, err
	}
	if len(findings) == 0 {
		return 0, nil
	}

	reportsDir := filepath.Join(workspaceDir, target, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return 0, err
	}

	written := 0
	for _, f := range findings {
		poc := e.loadPoC(workspaceDir, target, f.Host)

		user := fmt.Sprintf("Host: %s\nVulnerability: %s\nSeverity: %s\nConfidence: %.2f\nDate Triaged: %s\nPoC:\n%s",
			f.Host, f.Vulnerability, f.Severity, f.Confidence, f.Date, poc)

		e.logger.Info("generating report", "host", f.Host, "finding_id", f.ID)
		content, err := e.provider.Complete(ctx, reportSystemPrompt, user)
		if err != nil {
			e.logger.Warn("failed to generate report", "host", f.Host, "error", err)
			continue
		}

		path := filepath.Join(reportsDir, fileName(f.Host))
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			e.logger.Warn("failed to save report", "host", f.Host, "error", err)
			continue
		}
		if err := e.store.MarkReported(ctx, f.ID); err != nil {
			e.logger.Warn("failed to update finding status", "finding_id", f.ID, "error", err)
		}
		written++
	}
	return written, nil
}

func (e *Engine) loadPoC(workspaceDir, target, host string) string {
	clean := strings.ReplaceAll(strings.TrimPrefix(host, "https://"), "/", "_")
	path := filepath.Join(workspaceDir, target, "poc", "poc_"+clean+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		return "(No PoC file found for this host)"
	}
	return string(data)
}

func fileName(host string) string {
	clean := strings.ReplaceAll(strings.TrimPrefix(host, "https://"), "/", "_")
	return "report_" + clean + ".md"
}
