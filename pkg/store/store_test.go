package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedFinding(t *testing.T, st *Store, target, host, severity, status string) int64 {
	t.Helper()
	id, err := st.InsertFinding(context.Background(), Finding{
		Target:        target,
		Host:          host,
		Vulnerability: "test vuln",
		Severity:      severity,
		Confidence:    0.8,
		Date:          "2025-01-01T00:00:00Z",
		Status:        status,
	})
	require.NoError(t, err)
	return id
}

func TestMigrationIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "migrate.db")

	st, err := Open(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Reopening reruns the schema init and the ROI column additions;
	// existing columns must be tolerated.
	st, err = Open(path, testLogger())
	require.NoError(t, err)
	defer st.Close()

	_, err = st.db.Exec(`SELECT time_spent, payout, hourly_rate FROM findings LIMIT 1`)
	require.NoError(t, err)
}

func TestTriagedFindingsByHostGroupsAndOrders(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seedFinding(t, st, "acme.io", "a.acme.io", "low", StatusTriaged)
	seedFinding(t, st, "acme.io", "b.acme.io", "low", StatusTriaged)
	seedFinding(t, st, "acme.io", "a.acme.io", "med", StatusTriaged)
	seedFinding(t, st, "acme.io", "c.acme.io", "high", StatusNew) // not triaged
	seedFinding(t, st, "other.io", "x.other.io", "low", StatusTriaged)

	grouped, err := st.TriagedFindingsByHost(ctx, "acme.io")
	require.NoError(t, err)

	require.Len(t, grouped, 2)
	require.Equal(t, "a.acme.io", grouped[0].Host)
	require.Len(t, grouped[0].Findings, 2)
	require.Equal(t, "b.acme.io", grouped[1].Host)
	require.Len(t, grouped[1].Findings, 1)
}

func TestSaveChainsPersistsAndFlipsStatus(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id1 := seedFinding(t, st, "acme.io", "a.acme.io", "low", StatusTriaged)
	id2 := seedFinding(t, st, "acme.io", "a.acme.io", "med", StatusTriaged)
	id3 := seedFinding(t, st, "acme.io", "b.acme.io", "low", StatusTriaged)

	results, err := st.SaveChains(ctx, "acme.io", []Chain{{
		Host:               "a.acme.io",
		Name:               "Auth bypass chain",
		FindingIDs:         []int64{id1, id2},
		OriginalSeverities: []string{"low", "med"},
		CombinedSeverity:   "high",
		IdentifiedAt:       "2025-01-02T00:00:00Z",
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, PersistInserted, results[0].Outcome)

	findings, err := st.FindingsForTarget(ctx, "acme.io")
	require.NoError(t, err)
	statuses := make(map[int64]string)
	for _, f := range findings {
		statuses[f.ID] = f.Status
	}
	require.Equal(t, StatusChained, statuses[id1])
	require.Equal(t, StatusChained, statuses[id2])
	// A finding never referenced stays triaged.
	require.Equal(t, StatusTriaged, statuses[id3])

	chains, err := st.ChainsForTarget(ctx, "acme.io")
	require.NoError(t, err)
	require.Len(t, chains, 1)
	require.Equal(t, []int64{id1, id2}, chains[0].FindingIDs)
	require.Equal(t, []string{"low", "med"}, chains[0].OriginalSeverities)
}

func TestSaveChainsIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id1 := seedFinding(t, st, "acme.io", "a.acme.io", "low", StatusTriaged)
	id2 := seedFinding(t, st, "acme.io", "a.acme.io", "med", StatusTriaged)

	chain := Chain{
		Host:               "a.acme.io",
		FindingIDs:         []int64{id1, id2},
		OriginalSeverities: []string{"low", "med"},
		CombinedSeverity:   "high",
	}

	_, err := st.SaveChains(ctx, "acme.io", []Chain{chain})
	require.NoError(t, err)

	// Same logical chain with reversed id order: still a duplicate.
	chain.FindingIDs = []int64{id2, id1}
	chain.OriginalSeverities = []string{"med", "low"}
	results, err := st.SaveChains(ctx, "acme.io", []Chain{chain})
	require.NoError(t, err)
	require.Equal(t, PersistDuplicate, results[0].Outcome)

	chains, err := st.ChainsForTarget(ctx, "acme.io")
	require.NoError(t, err)
	require.Len(t, chains, 1)
}

func TestSaveChainsDuplicateWithinOneBatch(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id1 := seedFinding(t, st, "acme.io", "a.acme.io", "low", StatusTriaged)
	id2 := seedFinding(t, st, "acme.io", "a.acme.io", "med", StatusTriaged)

	chain := Chain{
		Host:             "a.acme.io",
		FindingIDs:       []int64{id1, id2},
		CombinedSeverity: "high",
	}
	results, err := st.SaveChains(ctx, "acme.io", []Chain{chain, chain})
	require.NoError(t, err)
	require.Equal(t, PersistInserted, results[0].Outcome)
	require.Equal(t, PersistDuplicate, results[1].Outcome)
}

func TestMarkChainedIsMonotonic(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// A finding still in 'new' must not jump to 'chained'.
	id := seedFinding(t, st, "acme.io", "a.acme.io", "low", StatusNew)
	id2 := seedFinding(t, st, "acme.io", "a.acme.io", "med", StatusTriaged)

	_, err := st.SaveChains(ctx, "acme.io", []Chain{{
		Host:             "a.acme.io",
		FindingIDs:       []int64{id, id2},
		CombinedSeverity: "high",
	}})
	require.NoError(t, err)

	findings, err := st.FindingsForTarget(ctx, "acme.io")
	require.NoError(t, err)
	for _, f := range findings {
		switch f.ID {
		case id:
			require.Equal(t, StatusNew, f.Status)
		case id2:
			require.Equal(t, StatusChained, f.Status)
		}
	}
}

func TestListTargets(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seedFinding(t, st, "acme.io", "a.acme.io", "low", StatusTriaged)
	seedFinding(t, st, "acme.io", "b.acme.io", "low", StatusTriaged)
	seedFinding(t, st, "zeta.io", "z.zeta.io", "high", StatusNew)

	targets, err := st.ListTargets(ctx)
	require.NoError(t, err)
	require.Equal(t, []TargetSummary{
		{Target: "acme.io", FindingCount: 2},
		{Target: "zeta.io", FindingCount: 1},
	}, targets)
}

func TestUpdateROI(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id := seedFinding(t, st, "acme.io", "a.acme.io", "low", StatusTriaged)
	require.NoError(t, st.UpdateROI(ctx, id, 2.5, 500, 200))

	findings, err := st.FindingsForTarget(ctx, "acme.io")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.True(t, findings[0].TimeSpent.Valid)
	require.Equal(t, 2.5, findings[0].TimeSpent.Float64)
	require.Equal(t, 500.0, findings[0].Payout.Float64)
	require.Equal(t, 200.0, findings[0].HourlyRate.Float64)
}

func TestChainIdentityKeySortsIDs(t *testing.T) {
	a := Chain{FindingIDs: []int64{3, 1, 2}}
	b := Chain{FindingIDs: []int64{1, 2, 3}}
	require.Equal(t, a.IdentityKey(), b.IdentityKey())
	require.Equal(t, "1,2,3", b.IdentityKey())
}

func TestMarkReported(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	triaged := seedFinding(t, st, "acme.io", "a.acme.io", "low", StatusTriaged)
	fresh := seedFinding(t, st, "acme.io", "b.acme.io", "low", StatusNew)

	require.NoError(t, st.MarkReported(ctx, triaged))
	require.NoError(t, st.MarkReported(ctx, fresh))

	findings, err := st.FindingsForTarget(ctx, "acme.io")
	require.NoError(t, err)
	for _, f := range findings {
		switch f.ID {
		case triaged:
			require.Equal(t, StatusReported, f.Status)
		case fresh:
			require.Equal(t, StatusNew, f.Status)
		}
	}
}
