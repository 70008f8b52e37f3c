// Package triage sends freshly discovered live hosts to the analysis
// capability and records the prioritized results as triaged findings.
package triage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/scottbrough/bugbounty-framework/pkg/llm"
	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

// maxHostsPerRequest bounds the payload sent to the capability.
const maxHostsPerRequest = 20

func systemPrompt(target string) string {
	return fmt.Sprintf("You are an elite bug bounty triage assistant. "+
		"Analyze this list of live hosts for %s. "+
		"Prioritize which targets are most likely to yield valuable vulnerabilities. "+
		"For each, return JSON with: host, likely_vuln, severity (low/med/high), "+
		"confidence (0-1), and recommend one test/tool.", target)
}

// ItemResult is the explicit per-item outcome of saving one triaged host.
type ItemResult struct {
	Host string
	ID   int64
	Err  error
}

// Summary reports one triage run.
type Summary struct {
	HostsSent int
	Saved     int
	Failed    int
	Items     []ItemResult
}

type Triager struct {
	store    *store.Store
	provider llm.Provider
	logger   *slog.Logger
}

func New(st *store.Store, provider llm.Provider, logger *slog.Logger) *Triager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Triager{store: st, provider: provider, logger: logger}
}

// LoadHosts reads one host per line, skipping blanks.
func LoadHosts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var hosts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			hosts = append(hosts, line)
		}
	}
	return hosts, scanner.Err()
}

// Run triages the hosts in hostsFile for the target and inserts the results
// as findings with status 'triaged'. Individual save failures are collected,
// not fatal.
func (t *Triager) Run(ctx context.Context, target, hostsFile string) (*Summary, error) {
	hosts, err := LoadHosts(hostsFile)
	if err != nil {
		return nil, fmt.Errorf("load hosts: %w", err)
	}
	if len(hosts) == 0 {
		return &Summary{}, nil
	}
	if len(hosts) > maxHostsPerRequest {
		hosts = hosts[:maxHostsPerRequest]
	}

	payload, err := json.Marshal(hosts)
	if err != nil {
		return nil, err
	}

	t.logger.Info("sending hosts for triage", "target", target, "hosts", len(hosts))
	content, err := t.provider.CompleteJSON(ctx, systemPrompt(target), string(payload))
	if err != nil {
		return nil, fmt.Errorf("triage request: %w", err)
	}

	items, err := decodeItems(content)
	if err != nil {
		return nil, fmt.Errorf("decode triage response: %w", err)
	}

	summary := &Summary{HostsSent: len(hosts)}
	now := time.Now().Format(time.RFC3339)
	for _, item := range items {
		host, _ := item["host"].(string)
		if host == "" {
			t.logger.Warn("triage item missing host, skipping", "item", item)
			summary.Failed++
			continue
		}
		f := store.Finding{
			Target:        target,
			Host:          host,
			Vulnerability: stringValue(item["likely_vuln"]),
			Severity:      stringValue(item["severity"]),
			Confidence:    floatValue(item["confidence"]),
			Date:          now,
			Status:        store.StatusTriaged,
		}
		id, err := t.store.InsertFinding(ctx, f)
		res := ItemResult{Host: host, ID: id, Err: err}
		if err != nil {
			t.logger.Warn("failed to save triaged finding", "host", host, "error", err)
			summary.Failed++
		} else {
			summary.Saved++
		}
		summary.Items = append(summary.Items, res)
	}
	return summary, nil
}

// decodeItems accepts the shapes the capability actually produces: a bare
// array of objects, a single object, or an object wrapping a results array.
func decodeItems(content string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(content)

	var items []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return items, nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, err
	}
	for _, key := range []string{"results", "hosts", "findings"} {
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
	if _, ok := obj["host"]; ok {
		return []map[string]any{obj}, nil
	}
	return nil, fmt.Errorf("unrecognized triage response shape")
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func floatValue(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return 0
}
