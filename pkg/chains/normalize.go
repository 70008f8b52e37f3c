package chains

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

// Normalizer reshapes raw candidates into validated chain values. All drop
// decisions are logged with enough context to reproduce upstream; none of
// them abort the batch.
type Normalizer struct {
	minChainSize int
	logger       *slog.Logger
}

func NewNormalizer(minChainSize int, logger *slog.Logger) *Normalizer {
	if minChainSize < 2 {
		minChainSize = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{minChainSize: minChainSize, logger: logger}
}

// Normalize validates each candidate from one batch against the target's
// known finding ids and returns the chains worth persisting, in candidate
// order. identifiedAt stamps every produced chain.
func (n *Normalizer) Normalize(candidates []Candidate, batch Batch, knownIDs map[int64]struct{}, target, identifiedAt string) []store.Chain {
	out := make([]store.Chain, 0, len(candidates))

	for i, cand := range candidates {
		host := stringField(cand, "host")
		if host != "" && !batch.HasHost(host) {
			n.logger.Warn("candidate host not in originating batch",
				"batch", batch.Index, "candidate", i, "host", host)
		}

		ids := n.coerceFindingIDs(cand["finding_ids"], batch.Index, i)
		sevs := n.coerceSeverities(cand["original_severities"], batch.Index, i)

		// Lossy alignment policy: truncate both sequences to the shorter
		// length rather than persisting misaligned data.
		if len(ids) != len(sevs) {
			n.logger.Warn("finding_ids and original_severities length mismatch, truncating",
				"batch", batch.Index, "candidate", i,
				"finding_ids_len", len(ids), "severities_len", len(sevs))
			if len(sevs) < len(ids) {
				ids = ids[:len(sevs)]
			} else {
				sevs = sevs[:len(ids)]
			}
		}

		if len(ids) < n.minChainSize {
			n.logger.Warn("candidate has too few findings to form a chain",
				"batch", batch.Index, "candidate", i, "host", host,
				"finding_count", len(ids), "min_chain_size", n.minChainSize)
			continue
		}

		unknown := false
		for _, id := range ids {
			if _, ok := knownIDs[id]; !ok {
				n.logger.Warn("candidate references unknown finding id, dropping chain",
					"batch", batch.Index, "candidate", i, "host", host, "finding_id", id)
				unknown = true
				break
			}
		}
		if unknown {
			continue
		}

		severity, ok := ParseSeverity(stringField(cand, "combined_severity"))
		if !ok {
			n.logger.Warn("candidate has unrecognized combined severity, dropping chain",
				"batch", batch.Index, "candidate", i, "host", host,
				"combined_severity", cand["combined_severity"])
			continue
		}

		out = append(out, store.Chain{
			Target:               target,
			Host:                 host,
			Name:                 stringField(cand, "name"),
			Description:          stringField(cand, "description"),
			FindingIDs:           ids,
			OriginalSeverities:   sevs,
			CombinedSeverity:     string(severity),
			TechnicalDetails:     stringField(cand, "technical_details"),
			BusinessImpact:       stringField(cand, "business_impact"),
			EvidenceRequirements: stringField(cand, "evidence_requirements"),
			AttackPath:           stringField(cand, "attack_path"),
			IdentifiedAt:         identifiedAt,
		})
	}
	return out
}

// coerceFindingIDs turns an arbitrary decoded value into an ordered id
// list. Non-integer entries are dropped with a warning, not a hard error.
func (n *Normalizer) coerceFindingIDs(v any, batchIdx, candIdx int) []int64 {
	items, ok := v.([]any)
	if !ok {
		if v != nil {
			n.logger.Warn("finding_ids is not an array",
				"batch", batchIdx, "candidate", candIdx, "value", v)
		}
		return nil
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		switch x := item.(type) {
		case float64:
			if x == math.Trunc(x) {
				ids = append(ids, int64(x))
				continue
			}
		case string:
			if id, err := strconv.ParseInt(x, 10, 64); err == nil {
				ids = append(ids, id)
				continue
			}
		}
		n.logger.Warn("dropping non-integer finding id",
			"batch", batchIdx, "candidate", candIdx, "value", item)
	}
	return ids
}

func (n *Normalizer) coerceSeverities(v any, batchIdx, candIdx int) []string {
	items, ok := v.([]any)
	if !ok {
		if v != nil {
			n.logger.Warn("original_severities is not an array",
				"batch", batchIdx, "candidate", candIdx, "value", v)
		}
		return nil
	}

	sevs := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			sevs = append(sevs, s)
			continue
		}
		n.logger.Warn("dropping non-string severity entry",
			"batch", batchIdx, "candidate", candIdx, "value", item)
	}
	return sevs
}

func stringField(c Candidate, key string) string {
	if s, ok := c[key].(string); ok {
		return s
	}
	return ""
}
