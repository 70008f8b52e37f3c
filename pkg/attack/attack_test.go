package attack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProvider struct {
	response string
	err      error
	calls    int
}

func (p *fakeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	p.calls++
	return p.response, p.err
}

func (p *fakeProvider) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	return p.Complete(ctx, system, user)
}

func (p *fakeProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (p *fakeProvider) Close() error                                     { return nil }

func TestDecodeEntriesShapes(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"bare array", `[{"host": "a"}, {"host": "b"}]`, 2},
		{"plan wrapper", `{"plan": [{"host": "a"}]}`, 1},
		{"results wrapper", `{"results": [{"host": "a"}, {"host": "b"}]}`, 2},
		{"single object wrapped", `{"host": "a", "tools": "ffuf"}`, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := decodeEntries(tc.content)
			require.NoError(t, err)
			require.Len(t, entries, tc.want)
		})
	}
}

func TestDecodeEntriesRejectsNonJSON(t *testing.T) {
	_, err := decodeEntries("try fuzzing the login form")
	require.Error(t, err)
}

func TestPoCFileName(t *testing.T) {
	require.Equal(t, "poc_a.acme.io.md", PoCFileName("a.acme.io"))
	require.Equal(t, "poc_a.acme.io_admin.md", PoCFileName("https://a.acme.io/admin"))
}

func TestPlannerRunWritesPlan(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "attack.db"), testLogger())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.InsertFinding(ctx, store.Finding{
		Target: "acme.io", Host: "a.acme.io", Vulnerability: "IDOR",
		Severity: "med", Confidence: 0.8, Date: "2025-01-01T00:00:00Z",
		Status: store.StatusTriaged,
	})
	require.NoError(t, err)

	provider := &fakeProvider{response: `{"plan": [
		{"host": "a.acme.io", "chain_description": "IDOR to takeover", "tools": "ffuf"}
	]}`}

	ws := t.TempDir()
	planner := NewPlanner(st, provider, testLogger())
	n, err := planner.Run(ctx, "acme.io", ws)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	data, err := os.ReadFile(PlanPath(ws, "acme.io"))
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "a.acme.io", entries[0]["host"])
}

func TestPlannerRunNoTriagedFindings(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "attack.db"), testLogger())
	require.NoError(t, err)
	defer st.Close()

	provider := &fakeProvider{}
	planner := NewPlanner(st, provider, testLogger())
	n, err := planner.Run(context.Background(), "acme.io", t.TempDir())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, provider.calls)
}

func TestPoCGeneratorRun(t *testing.T) {
	ws := t.TempDir()
	planDir := filepath.Join(ws, "acme.io")
	require.NoError(t, os.MkdirAll(planDir, 0755))
	plan := `[
		{"host": "a.acme.io", "chain_description": "IDOR to takeover"},
		{"chain_description": "no host, skipped"}
	]`
	require.NoError(t, os.WriteFile(PlanPath(ws, "acme.io"), []byte(plan), 0644))

	provider := &fakeProvider{response: "# PoC for a.acme.io\n## Steps\n1. curl ..."}
	gen := NewPoCGenerator(provider, testLogger())

	n, err := gen.Run(context.Background(), "acme.io", ws)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, provider.calls)

	data, err := os.ReadFile(filepath.Join(ws, "acme.io", "poc", "poc_a.acme.io.md"))
	require.NoError(t, err)
	require.Contains(t, string(data), "# PoC for a.acme.io")
}

func TestPoCGeneratorRunMissingPlan(t *testing.T) {
	gen := NewPoCGenerator(&fakeProvider{}, testLogger())
	_, err := gen.Run(context.Background(), "acme.io", t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no attack plan found")
}
