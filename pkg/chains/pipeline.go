package chains

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/scottbrough/bugbounty-framework/pkg/llm"
	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

// Options tune one pipeline run.
type Options struct {
	MinChainSize int
	BatchSize    int
}

// RunSummary reports what one pipeline run did. Partial results are normal:
// skipped batches and rejected candidates reduce the output set without
// failing the run.
type RunSummary struct {
	RunID              string
	Target             string
	FindingsConsidered int
	EligibleHosts      int
	Batches            int
	BatchesSkipped     int
	CandidatesSeen     int
	CandidatesRejected int
	ChainsPersisted    int
	DuplicateChains    int
	FailedChains       int
}

// Pipeline wires the correlation stages together: plan batches, analyze,
// normalize, persist. Each stage consumes only the previous stage's output.
type Pipeline struct {
	store    *store.Store
	provider llm.Provider
	logger   *slog.Logger
	opts     Options
}

func NewPipeline(st *store.Store, provider llm.Provider, logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinChainSize < 2 {
		opts.MinChainSize = 2
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 5
	}
	return &Pipeline{store: st, provider: provider, logger: logger, opts: opts}
}

// Run executes the full pipeline for one target. Stage-local failures are
// logged and counted, never raised; an error return means the run itself
// could not proceed (store unavailable, context gone before any work).
func (p *Pipeline) Run(ctx context.Context, target string) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:  uuid.NewString(),
		Target: target,
	}
	logger := p.logger.With("run_id", summary.RunID, "target", target)

	grouped, err := p.store.TriagedFindingsByHost(ctx, target)
	if err != nil {
		return nil, err
	}
	for _, hf := range grouped {
		summary.FindingsConsidered += len(hf.Findings)
	}

	batches := PlanBatches(grouped, p.opts.MinChainSize, p.opts.BatchSize)
	for _, b := range batches {
		summary.EligibleHosts += b.Size()
	}
	summary.Batches = len(batches)
	if len(batches) == 0 {
		logger.Info("no hosts with enough findings to analyze for chains",
			"min_chain_size", p.opts.MinChainSize)
		return summary, nil
	}
	logger.Info("analyzing potential chains",
		"hosts", summary.EligibleHosts, "batches", len(batches))

	knownIDs, err := p.store.FindingIDSet(ctx, target)
	if err != nil {
		return nil, err
	}

	analyzer := NewAnalyzer(p.provider, logger)
	normalizer := NewNormalizer(p.opts.MinChainSize, logger)
	identifiedAt := time.Now().Format(time.RFC3339)

	results := analyzer.AnalyzeBatches(ctx, target, batches)

	// Persistence stays sequential in batch order; the store is the single
	// point of serialization across batches.
	for _, res := range results {
		if res.Err != nil {
			logger.Error("batch skipped", "batch", res.Batch.Index, "error", res.Err)
			summary.BatchesSkipped++
			continue
		}
		summary.CandidatesSeen += len(res.Candidates)

		chains := normalizer.Normalize(res.Candidates, res.Batch, knownIDs, target, identifiedAt)
		summary.CandidatesRejected += len(res.Candidates) - len(chains)

		persisted, err := p.store.SaveChains(ctx, target, chains)
		if err != nil {
			// Whole-batch rollback: nothing from this batch landed.
			logger.Error("batch persistence failed, rolled back",
				"batch", res.Batch.Index, "error", err)
			summary.BatchesSkipped++
			continue
		}
		for _, r := range persisted {
			switch r.Outcome {
			case store.PersistInserted:
				summary.ChainsPersisted++
			case store.PersistDuplicate:
				summary.DuplicateChains++
			case store.PersistFailed:
				summary.FailedChains++
			}
		}
	}

	logger.Info("chain analysis complete",
		"chains_persisted", summary.ChainsPersisted,
		"duplicates", summary.DuplicateChains,
		"batches_skipped", summary.BatchesSkipped,
		"candidates_rejected", summary.CandidatesRejected)
	return summary, nil
}
