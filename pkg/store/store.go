// Package store is the persistent finding store: a sqlite database holding
// findings and the attack chains derived from them.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the sqlite database. Writes are serialized through a single
// connection so one batch's transaction never interleaves with another's.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the database at path and applies the
// schema and the ROI column migration.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ListTargets enumerates targets that have findings, with counts.
func (s *Store) ListTargets(ctx context.Context) ([]TargetSummary, error) {
	var out []TargetSummary
	err := s.db.SelectContext(ctx, &out,
		`SELECT target, COUNT(*) AS finding_count FROM findings GROUP BY target ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return out, nil
}

// InsertFinding stores a new finding. The caller sets status; the triage
// stage inserts with status 'triaged'.
func (s *Store) InsertFinding(ctx context.Context, f Finding) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO findings (target, host, vulnerability, severity, confidence, date, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Target, f.Host, f.Vulnerability, f.Severity, f.Confidence, f.Date, f.Status)
	if err != nil {
		return 0, fmt.Errorf("insert finding for %s: %w", f.Host, err)
	}
	return res.LastInsertId()
}

// TriagedFindingsByHost fetches all triaged findings for a target grouped by
// host. Host order follows first appearance in the query (ordered by id), so
// the grouping is reproducible across runs given identical store contents.
func (s *Store) TriagedFindingsByHost(ctx context.Context, target string) ([]HostFindings, error) {
	var rows []Finding
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM findings WHERE target = ? AND status = ? ORDER BY id`,
		target, StatusTriaged)
	if err != nil {
		return nil, fmt.Errorf("fetch triaged findings for %s: %w", target, err)
	}

	index := make(map[string]int)
	var grouped []HostFindings
	for _, f := range rows {
		i, ok := index[f.Host]
		if !ok {
			i = len(grouped)
			index[f.Host] = i
			grouped = append(grouped, HostFindings{Host: f.Host})
		}
		grouped[i].Findings = append(grouped[i].Findings, f)
	}
	return grouped, nil
}

// FindingsByStatus returns a target's findings in the given status, oldest
// first.
func (s *Store) FindingsByStatus(ctx context.Context, target, status string) ([]Finding, error) {
	var rows []Finding
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM findings WHERE target = ? AND status = ? ORDER BY id`,
		target, status)
	if err != nil {
		return nil, fmt.Errorf("fetch %s findings for %s: %w", status, target, err)
	}
	return rows, nil
}

// FindingsForTarget returns every finding for a target, newest first (the
// ROI tracker's listing order).
func (s *Store) FindingsForTarget(ctx context.Context, target string) ([]Finding, error) {
	var rows []Finding
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM findings WHERE target = ? ORDER BY date DESC`, target)
	if err != nil {
		return nil, fmt.Errorf("fetch findings for %s: %w", target, err)
	}
	return rows, nil
}

// FindingIDSet returns the set of finding ids known for a target.
func (s *Store) FindingIDSet(ctx context.Context, target string) (map[int64]struct{}, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM findings WHERE target = ?`, target)
	if err != nil {
		return nil, fmt.Errorf("fetch finding ids for %s: %w", target, err)
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// PersistOutcome classifies what happened to one chain during SaveChains.
type PersistOutcome string

const (
	PersistInserted  PersistOutcome = "inserted"
	PersistDuplicate PersistOutcome = "duplicate"
	PersistFailed    PersistOutcome = "failed"
)

// PersistResult is the per-chain outcome of a batch persist.
type PersistResult struct {
	Chain   Chain
	Outcome PersistOutcome
	Err     error
}

// SaveChains persists one batch's normalized chains in a single transaction
// and flips each referenced finding from 'triaged' to 'chained'. Persisting
// the same logical chain twice (same target, host, sorted finding ids) is a
// no-op recorded as a duplicate. On transaction failure nothing from the
// batch is persisted.
func (s *Store) SaveChains(ctx context.Context, target string, chains []Chain) ([]PersistResult, error) {
	results := make([]PersistResult, 0, len(chains))
	if len(chains) == 0 {
		return results, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin chain transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := existingChainKeys(ctx, tx, target)
	if err != nil {
		return nil, err
	}

	for _, c := range chains {
		c.Target = target
		key := c.Host + "|" + c.IdentityKey()
		if _, dup := existing[key]; dup {
			s.logger.Debug("chain already persisted, skipping",
				"host", c.Host, "finding_ids", c.IdentityKey())
			results = append(results, PersistResult{Chain: c, Outcome: PersistDuplicate})
			continue
		}

		row := toRow(c)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chains (
			     target, host, name, description, finding_ids,
			     original_severities, combined_severity, technical_details,
			     business_impact, evidence_requirements, attack_path, date_identified
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.Target, row.Host, row.Name, row.Description, row.FindingIDs,
			row.OriginalSeverities, row.CombinedSeverity, row.TechnicalDetails,
			row.BusinessImpact, row.EvidenceRequirements, row.AttackPath, row.DateIdentified)
		if err != nil {
			s.logger.Warn("failed to insert chain",
				"host", c.Host, "name", c.Name, "error", err)
			results = append(results, PersistResult{Chain: c, Outcome: PersistFailed, Err: err})
			continue
		}
		existing[key] = struct{}{}

		if err := s.markChained(ctx, tx, target, c.FindingIDs); err != nil {
			return nil, err
		}
		results = append(results, PersistResult{Chain: c, Outcome: PersistInserted})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chain transaction: %w", err)
	}
	return results, nil
}

// existingChainKeys loads the dedup keys of every chain already persisted
// for the target, read inside the same transaction that inserts.
func existingChainKeys(ctx context.Context, tx *sqlx.Tx, target string) (map[string]struct{}, error) {
	var rows []chainRow
	err := tx.SelectContext(ctx, &rows,
		`SELECT * FROM chains WHERE target = ?`, target)
	if err != nil {
		return nil, fmt.Errorf("load existing chains for %s: %w", target, err)
	}
	keys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		c := r.toChain()
		keys[c.Host+"|"+c.IdentityKey()] = struct{}{}
	}
	return keys, nil
}

// markChained transitions referenced findings from 'triaged' to 'chained'.
// A referenced finding in any other state is left alone and logged; the
// transition is monotonic.
func (s *Store) markChained(ctx context.Context, tx *sqlx.Tx, target string, ids []int64) error {
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			`UPDATE findings SET status = ? WHERE id = ? AND target = ? AND status = ?`,
			StatusChained, id, target, StatusTriaged)
		if err != nil {
			return fmt.Errorf("mark finding %d chained: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			s.logger.Debug("finding not in triaged state, status unchanged", "finding_id", id)
		}
	}
	return nil
}

// ChainsForTarget returns all persisted chains for a target in insertion
// order, the report synthesizer's input.
func (s *Store) ChainsForTarget(ctx context.Context, target string) ([]Chain, error) {
	var rows []chainRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM chains WHERE target = ? ORDER BY id`, target)
	if err != nil {
		return nil, fmt.Errorf("fetch chains for %s: %w", target, err)
	}
	chains := make([]Chain, len(rows))
	for i, r := range rows {
		chains[i] = r.toChain()
	}
	return chains, nil
}

// MarkReported advances a finding to 'reported'. Only forward transitions
// are allowed; findings still in 'new' state are left alone.
func (s *Store) MarkReported(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE findings SET status = ? WHERE id = ? AND status IN (?, ?)`,
		StatusReported, id, StatusTriaged, StatusChained)
	if err != nil {
		return fmt.Errorf("mark finding %d reported: %w", id, err)
	}
	return nil
}

// UpdateROI records time spent, payout, and the derived hourly rate for a
// finding. The caller computes the rate; these columns are only ever written
// by the ROI tracker.
func (s *Store) UpdateROI(ctx context.Context, id int64, timeSpent, payout, hourlyRate float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE findings SET time_spent = ?, payout = ?, hourly_rate = ? WHERE id = ?`,
		timeSpent, payout, hourlyRate, id)
	if err != nil {
		return fmt.Errorf("update roi for finding %d: %w", id, err)
	}
	return nil
}
