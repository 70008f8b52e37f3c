package attack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/scottbrough/bugbounty-framework/pkg/llm"
)

const pocSystemPrompt = "You are a senior penetration tester. Given a target, vulnerability description, payloads, " +
	"and suggested tools, generate a step-by-step proof of concept (PoC). " +
	"Respond in this Markdown structure:\n\n" +
	"# PoC for <host>\n" +
	"## Summary\n" +
	"- Chain: <chain_description>\n" +
	"- Tools: <tools>\n" +
	"- Payloads: <payloads>\n" +
	"## Steps\n" +
	"1. <Step-by-step instructions>\n" +
	"2. Include curl commands or requests snippets\n" +
	"## Success Signals\n" +
	"- Describe what to look for to confirm success"

// PoCGenerator renders proof-of-concept documents from an attack plan.
type PoCGenerator struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewPoCGenerator(provider llm.Provider, logger *slog.Logger) *PoCGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PoCGenerator{provider: provider, logger: logger}
}

// Run reads the target's attack plan and writes one PoC markdown file per
// entry under workspace/<target>/poc/. A failed entry is logged and skipped.
func (g *PoCGenerator) Run(ctx context.Context, target, workspaceDir string) (int, error) {
	planFile := PlanPath(workspaceDir, target)
	data, err := os.ReadFile(planFile)
	if err != nil {
		return 0, fmt.Errorf("no attack plan found at %s: %w", planFile, err)
	}

	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse attack plan: %w", err)
	}

	pocDir := filepath.Join(workspaceDir, target, "poc")
	if err := os.MkdirAll(pocDir, 0755); err != nil {
		return 0, err
	}

	written := 0
	for _, entry := range entries {
		host, _ := entry["host"].(string)
		if host == "" {
			g.logger.Warn("plan entry missing host, skipping")
			continue
		}

		request, err := json.Marshal(map[string]any{
			"host":            host,
			"vulnerability":   entry["chain_description"],
			"tools":           entry["tools"],
			"payloads":        entry["payloads"],
			"success_signals": entry["success_signals"],
		})
		if err != nil {
			continue
		}

		g.logger.Info("generating PoC", "host", host)
		poc, err := g.provider.Complete(ctx, pocSystemPrompt, string(request))
		if err != nil {
			g.logger.Warn("failed to generate PoC", "host", host, "error", err)
			continue
		}

		path := filepath.Join(pocDir, PoCFileName(host))
		if err := os.WriteFile(path, []byte(poc), 0644); err != nil {
			g.logger.Warn("failed to save PoC", "host", host, "error", err)
			continue
		}
		written++
	}
	return written, nil
}

// PoCFileName maps a host to its PoC artifact name.
func PoCFileName(host string) string {
	clean := strings.ReplaceAll(strings.TrimPrefix(host, "https://"), "/", "_")
	return "poc_" + clean + ".md"
}
