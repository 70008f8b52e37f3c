package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

func TestExtractCandidatesAcceptsBothWireShapes(t *testing.T) {
	object := `{"chains": [{"host": "a", "name": "c1"}, {"host": "b", "name": "c2"}]}`
	results := `{"results": [{"host": "a", "name": "c1"}, {"host": "b", "name": "c2"}]}`
	bare := `[{"host": "a", "name": "c1"}, {"host": "b", "name": "c2"}]`

	fromObject, err := extractCandidates(object)
	require.NoError(t, err)
	fromResults, err := extractCandidates(results)
	require.NoError(t, err)
	fromBare, err := extractCandidates(bare)
	require.NoError(t, err)

	// Equivalent content normalizes identically regardless of shape.
	require.Equal(t, fromObject, fromBare)
	require.Equal(t, fromObject, fromResults)
	require.Len(t, fromObject, 2)
	require.Equal(t, "c1", fromObject[0]["name"])
}

func TestExtractCandidatesRejectsOtherShapes(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"not json", "here are your chains: chain one..."},
		{"empty", "   "},
		{"object without chains or results", `{"data": []}`},
		{"chains not an array", `{"chains": "none"}`},
		{"scalar", `42`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := extractCandidates(tc.content)
			require.Error(t, err)
		})
	}
}

func TestExtractCandidatesEmptyChainsArray(t *testing.T) {
	candidates, err := extractCandidates(`{"chains": []}`)
	require.NoError(t, err)
	require.Empty(t, candidates)
}

func TestBatchPayloadIsDeterministic(t *testing.T) {
	b := Batch{Hosts: []store.HostFindings{
		{Host: "b.acme.io", Findings: []store.Finding{{ID: 3, Vulnerability: "XSS", Severity: "med", Confidence: 0.7}}},
		{Host: "a.acme.io", Findings: []store.Finding{{ID: 1, Vulnerability: "IDOR", Severity: "low", Confidence: 0.5}}},
	}}

	first, err := batchPayload(b)
	require.NoError(t, err)
	second, err := batchPayload(b)
	require.NoError(t, err)
	require.Equal(t, first, second)

	var decoded map[string][]findingSummary
	require.NoError(t, json.Unmarshal([]byte(first), &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, int64(1), decoded["a.acme.io"][0].ID)
}

// scriptedProvider returns canned responses keyed by call order.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
}

func (p *scriptedProvider) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return "", fmt.Errorf("no scripted response for call %d", i)
}

func (p *scriptedProvider) Complete(ctx context.Context, system, user string) (string, error) {
	return p.CompleteJSON(ctx, system, user)
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (p *scriptedProvider) Close() error                                     { return nil }

func TestAnalyzeBatchesSoftFailureIsolatedPerBatch(t *testing.T) {
	provider := &scriptedProvider{
		responses: []string{
			`{"chains": [{"host": "a", "finding_ids": [1, 2]}]}`,
			`this is not JSON at all`,
		},
	}
	a := NewAnalyzer(provider, testLogger())

	batches := []Batch{
		{Index: 0, Hosts: []store.HostFindings{hostWith("a", 2)}},
		{Index: 1, Hosts: []store.HostFindings{hostWith("b", 2)}},
	}

	// Single worker so the scripted responses line up with batch order.
	results := make([]BatchResult, 0, len(batches))
	for _, b := range batches {
		results = append(results, a.analyzeOne(context.Background(), "acme.io", b))
	}

	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Candidates, 1)
	require.Error(t, results[1].Err)
	require.Nil(t, results[1].Candidates)
}

func TestAnalyzeBatchesStopsDispatchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{}
	a := NewAnalyzer(provider, testLogger())
	results := a.AnalyzeBatches(ctx, "acme.io", []Batch{
		{Index: 0, Hosts: []store.HostFindings{hostWith("a", 2)}},
	})

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	require.Zero(t, provider.calls)
}
