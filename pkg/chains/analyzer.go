package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/scottbrough/bugbounty-framework/pkg/llm"
)

const chainSystemPrompt = `You are an expert penetration tester specializing in vulnerability chaining.

For each host with multiple vulnerabilities, analyze how they could be combined into attack chains
that result in higher severity impacts. Focus on realistic, practical attack chains.

Consider these chain patterns:
1. Authentication bypass + privilege escalation
2. Information disclosure + authentication bypass
3. XSS + CSRF + privilege escalation
4. SSRF + internal service access + RCE
5. SQL injection + authentication bypass + data access

For each chain, provide:
- A concise name for the chain
- Description of how vulnerabilities connect
- Step-by-step attack path
- Individual findings used (include IDs)
- Original severities of individual findings
- Combined severity (low/medium/high/critical)
- Technical details with specific endpoints/parameters
- Business impact explaining the real-world consequences
- Evidence requirements to demonstrate the chain

Return JSON with an array of chain objects.`

// maxConcurrentBatches caps the analysis worker pool; batches share no
// mutable state until persistence, so independent batches may be in flight
// at once.
const maxConcurrentBatches = 4

// Candidate is one raw chain object as returned by the model, before
// normalization.
type Candidate map[string]any

// BatchResult is the outcome of analyzing one batch: either a candidate
// list or an error. Errors here are soft; the batch is skipped and the run
// continues.
type BatchResult struct {
	Batch      Batch
	Candidates []Candidate
	Err        error
}

// Analyzer submits batches to the analysis capability and decodes the
// responses. One attempt per batch, no automatic retry.
type Analyzer struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewAnalyzer(provider llm.Provider, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{provider: provider, logger: logger}
}

// findingSummary is the per-finding payload sent to the model.
type findingSummary struct {
	ID            int64   `json:"id"`
	Vulnerability string  `json:"vulnerability"`
	Severity      string  `json:"severity"`
	Confidence    float64 `json:"confidence"`
}

// batchPayload serializes a batch as host -> findings. encoding/json sorts
// map keys, so the payload is reproducible for a given batch.
func batchPayload(b Batch) (string, error) {
	m := make(map[string][]findingSummary, len(b.Hosts))
	for _, hf := range b.Hosts {
		summaries := make([]findingSummary, len(hf.Findings))
		for i, f := range hf.Findings {
			summaries[i] = findingSummary{
				ID:            f.ID,
				Vulnerability: f.Vulnerability,
				Severity:      f.Severity,
				Confidence:    f.Confidence,
			}
		}
		m[hf.Host] = summaries
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func userPrompt(target, payload string) string {
	return fmt.Sprintf(`Analyze these vulnerabilities for %s and identify viable chains:

%s

Focus on realistic attack chains that a real attacker could exploit.
Return a JSON array of chain objects, one for each viable chain you identify.`, target, payload)
}

// AnalyzeBatches runs every batch through the provider with a bounded
// worker pool and returns results indexed by batch order. Cancellation
// stops dispatching new batches; in-flight batches finish on their own.
func (a *Analyzer) AnalyzeBatches(ctx context.Context, target string, batches []Batch) []BatchResult {
	results := make([]BatchResult, len(batches))

	concurrency := maxConcurrentBatches
	if len(batches) < concurrency {
		concurrency = len(batches)
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			results[i] = BatchResult{Batch: b, Err: fmt.Errorf("batch not dispatched: %w", err)}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, b Batch) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = a.analyzeOne(ctx, target, b)
		}(i, b)
	}
	wg.Wait()
	return results
}

func (a *Analyzer) analyzeOne(ctx context.Context, target string, b Batch) BatchResult {
	payload, err := batchPayload(b)
	if err != nil {
		return BatchResult{Batch: b, Err: fmt.Errorf("encode batch %d: %w", b.Index, err)}
	}

	a.logger.Info("analyzing batch", "batch", b.Index, "hosts", b.Size())
	content, err := a.provider.CompleteJSON(ctx, chainSystemPrompt, userPrompt(target, payload))
	if err != nil {
		return BatchResult{Batch: b, Err: fmt.Errorf("analyze batch %d: %w", b.Index, err)}
	}

	candidates, err := extractCandidates(content)
	if err != nil {
		return BatchResult{Batch: b, Err: fmt.Errorf("decode batch %d response: %w", b.Index, err)}
	}
	return BatchResult{Batch: b, Candidates: candidates}
}

// extractCandidates resolves the accepted wire shapes into a candidate
// list: an object with a "chains" array, an object with a "results" array,
// or a bare top-level array. First successful decode wins; anything else is
// a soft failure for the batch.
func extractCandidates(content string) ([]Candidate, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response body")
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil {
		for _, key := range []string{"chains", "results"} {
			raw, ok := envelope[key]
			if !ok {
				continue
			}
			var candidates []Candidate
			if err := json.Unmarshal(raw, &candidates); err != nil {
				return nil, fmt.Errorf("%q is not an array of objects: %w", key, err)
			}
			return candidates, nil
		}
		return nil, fmt.Errorf("object response has neither a %q nor a %q array", "chains", "results")
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(trimmed), &candidates); err != nil {
		return nil, fmt.Errorf("response is neither a JSON object nor an array: %w", err)
	}
	return candidates, nil
}
