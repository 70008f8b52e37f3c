package triage

import (
	"context"
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
	lastUser string
}

func (p *fakeProvider) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	p.lastUser = user
	return p.response, p.err
}

func (p *fakeProvider) Complete(ctx context.Context, system, user string) (string, error) {
	return p.CompleteJSON(ctx, system, user)
}

func (p *fakeProvider) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (p *fakeProvider) Close() error                                     { return nil }

func writeHostsFile(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "live_hosts.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestLoadHostsSkipsBlanks(t *testing.T) {
	path := writeHostsFile(t, "a.acme.io\n\n  \nb.acme.io\n")
	hosts, err := LoadHosts(path)
	require.NoError(t, err)
	require.Equal(t, []string{"a.acme.io", "b.acme.io"}, hosts)
}

func TestDecodeItemsShapes(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"bare array", `[{"host": "a"}, {"host": "b"}]`, 2},
		{"results wrapper", `{"results": [{"host": "a"}]}`, 1},
		{"hosts wrapper", `{"hosts": [{"host": "a"}]}`, 1},
		{"findings wrapper", `{"findings": [{"host": "a"}, {"host": "b"}]}`, 2},
		{"single object", `{"host": "a", "severity": "low"}`, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := decodeItems(tc.content)
			require.NoError(t, err)
			require.Len(t, items, tc.want)
		})
	}
}

func TestDecodeItemsRejectsUnknownShapes(t *testing.T) {
	for _, content := range []string{`{"data": []}`, `"just a string"`, `not json`} {
		_, err := decodeItems(content)
		require.Error(t, err)
	}
}

func TestRunSavesTriagedFindings(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "triage.db"), testLogger())
	require.NoError(t, err)
	defer st.Close()

	provider := &fakeProvider{response: `[
		{"host": "a.acme.io", "likely_vuln": "IDOR", "severity": "med", "confidence": 0.8},
		{"likely_vuln": "no host on this one"},
		{"host": "b.acme.io", "likely_vuln": "XSS", "severity": "low", "confidence": "0.4"}
	]`}

	tr := New(st, provider, testLogger())
	summary, err := tr.Run(context.Background(), "acme.io", writeHostsFile(t, "a.acme.io\nb.acme.io\n"))
	require.NoError(t, err)

	require.Equal(t, 2, summary.HostsSent)
	require.Equal(t, 2, summary.Saved)
	require.Equal(t, 1, summary.Failed)
	require.Contains(t, provider.lastUser, "a.acme.io")

	findings, err := st.FindingsByStatus(context.Background(), "acme.io", store.StatusTriaged)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	require.Equal(t, "IDOR", findings[0].Vulnerability)
	require.Equal(t, 0.8, findings[0].Confidence)
	// String confidence still parses.
	require.Equal(t, 0.4, findings[1].Confidence)
}

func TestRunEmptyHostsFileIsNoop(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "triage.db"), testLogger())
	require.NoError(t, err)
	defer st.Close()

	provider := &fakeProvider{}
	tr := New(st, provider, testLogger())
	summary, err := tr.Run(context.Background(), "acme.io", writeHostsFile(t, "\n"))
	require.NoError(t, err)
	require.Zero(t, summary.HostsSent)
	require.Empty(t, provider.lastUser)
}
