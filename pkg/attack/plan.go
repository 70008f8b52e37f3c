// Package attack turns triaged findings into exploitation plans and
// proof-of-concept write-ups via the analysis capability.
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
	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

// maxFindingsPerPlan bounds the payload for one planning request.
const maxFindingsPerPlan = 25

const planSystemPrompt = "You are an expert bug bounty hunter. Given a list of hosts and suspected vulnerabilities, " +
	"create an attack plan. For each host, identify how the findings could be chained together, " +
	"what tools or payloads should be used, and what indicators of success to look for. " +
	"Return JSON structured like this:\n\n" +
	"{ host, chain_description, tools, payloads, success_signals }"

type Planner struct {
	store    *store.Store
	provider llm.Provider
	logger   *slog.Logger
}

func NewPlanner(st *store.Store, provider llm.Provider, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{store: st, provider: provider, logger: logger}
}

// planInput is the per-finding payload for planning.
type planInput struct {
	Host          string  `json:"host"`
	Vulnerability string  `json:"vulnerability"`
	Severity      string  `json:"severity"`
	Confidence    float64 `json:"confidence"`
}

// Run builds an attack plan for a target's triaged findings and writes it to
// workspace/<target>/attack_plan.json. Returns the number of plan entries.
func (p *Planner) Run(ctx context.Context, target, workspaceDir string) (int, error) {
	findings, err := p.store.FindingsByStatus(ctx, target, store.StatusTriaged)
	if err != nil {
		return 0, err
	}
	if len(findings) == 0 {
		return 0, nil
	}
	if len(findings) > maxFindingsPerPlan {
		findings = findings[:maxFindingsPerPlan]
	}

	inputs := make([]planInput, len(findings))
	for i, f := range findings {
		inputs[i] = planInput{
			Host:          f.Host,
			Vulnerability: f.Vulnerability,
			Severity:      f.Severity,
			Confidence:    f.Confidence,
		}
	}
	payload, err := json.Marshal(inputs)
	if err != nil {
		return 0, err
	}

	p.logger.Info("requesting attack plan", "target", target, "findings", len(inputs))
	content, err := p.provider.CompleteJSON(ctx, planSystemPrompt, string(payload))
	if err != nil {
		return 0, fmt.Errorf("plan request: %w", err)
	}

	entries, err := decodeEntries(content)
	if err != nil {
		return 0, fmt.Errorf("decode plan response: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	out := PlanPath(workspaceDir, target)
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return 0, err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return 0, fmt.Errorf("write attack plan: %w", err)
	}
	p.logger.Info("attack plan saved", "path", out, "entries", len(entries))
	return len(entries), nil
}

// PlanPath is where a target's attack plan lives.
func PlanPath(workspaceDir, target string) string {
	return filepath.Join(workspaceDir, target, "attack_plan.json")
}

// decodeEntries accepts either a bare array of plan objects or a single
// object (wrapped), matching the shapes the capability produces.
func decodeEntries(content string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(content)

	var entries []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &entries); err == nil {
		return entries, nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, err
	}
	for _, key := range []string{"plan", "plans", "hosts", "results"} {
		if arr, ok := obj[key].([]any); ok {
			out := make([]map[string]any, 0, len(arr))
			for _, v := range arr {
				if m, ok := v.(map[string]any); ok {
					out = append(out, m)
				}
			}
			return out, nil
		}
	}
	return []map[string]any{obj}, nil
}
