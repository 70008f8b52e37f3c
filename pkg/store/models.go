package store

import (
	"database/sql"
	"sort"
	"strconv"
	"strings"
)

// Finding lifecycle statuses. Transitions are monotonic:
// new -> triaged -> chained -> reported.
const (
	StatusNew      = "new"
	StatusTriaged  = "triaged"
	StatusChained  = "chained"
	StatusReported = "reported"
)

// Finding is a single reported potential vulnerability on a host.
type Finding struct {
	ID            int64   `db:"id" json:"id"`
	Target        string  `db:"target" json:"target"`
	Host          string  `db:"host" json:"host"`
	Vulnerability string  `db:"vulnerability" json:"vulnerability"`
	Severity      string  `db:"severity" json:"severity"`
	Confidence    float64 `db:"confidence" json:"confidence"`
	Date          string  `db:"date" json:"date"`
	Status        string  `db:"status" json:"status"`

	// ROI fields, populated only by the ROI tracker.
	TimeSpent  sql.NullFloat64 `db:"time_spent" json:"time_spent,omitempty"`
	Payout     sql.NullFloat64 `db:"payout" json:"payout,omitempty"`
	HourlyRate sql.NullFloat64 `db:"hourly_rate" json:"hourly_rate,omitempty"`
}

// Chain is a synthesized attack path composed of multiple findings on one
// host. FindingIDs and OriginalSeverities are aligned 1:1 by position.
type Chain struct {
	ID                   int64    `json:"-"`
	Target               string   `json:"-"`
	Host                 string   `json:"host"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	FindingIDs           []int64  `json:"finding_ids"`
	OriginalSeverities   []string `json:"original_severities"`
	CombinedSeverity     string   `json:"combined_severity"`
	TechnicalDetails     string   `json:"technical_details"`
	BusinessImpact       string   `json:"business_impact"`
	EvidenceRequirements string   `json:"evidence_requirements"`
	AttackPath           string   `json:"attack_path"`
	IdentifiedAt         string   `json:"date_identified"`
}

// IdentityKey returns the dedup key for a chain: its finding ids, sorted and
// comma-joined. Two chains on the same target and host with equal keys are
// the same logical chain regardless of id order.
func (c Chain) IdentityKey() string {
	ids := make([]int64, len(c.FindingIDs))
	copy(ids, c.FindingIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return joinIDs(ids)
}

// chainRow is the storage shape: id and severity sequences are persisted as
// comma-joined strings.
type chainRow struct {
	ID                   int64  `db:"id"`
	Target               string `db:"target"`
	Host                 string `db:"host"`
	Name                 string `db:"name"`
	Description          string `db:"description"`
	FindingIDs           string `db:"finding_ids"`
	OriginalSeverities   string `db:"original_severities"`
	CombinedSeverity     string `db:"combined_severity"`
	TechnicalDetails     string `db:"technical_details"`
	BusinessImpact       string `db:"business_impact"`
	EvidenceRequirements string `db:"evidence_requirements"`
	AttackPath           string `db:"attack_path"`
	DateIdentified       string `db:"date_identified"`
}

func (r chainRow) toChain() Chain {
	return Chain{
		ID:                   r.ID,
		Target:               r.Target,
		Host:                 r.Host,
		Name:                 r.Name,
		Description:          r.Description,
		FindingIDs:           splitIDs(r.FindingIDs),
		OriginalSeverities:   splitStrings(r.OriginalSeverities),
		CombinedSeverity:     r.CombinedSeverity,
		TechnicalDetails:     r.TechnicalDetails,
		BusinessImpact:       r.BusinessImpact,
		EvidenceRequirements: r.EvidenceRequirements,
		AttackPath:           r.AttackPath,
		IdentifiedAt:         r.DateIdentified,
	}
}

func toRow(c Chain) chainRow {
	return chainRow{
		ID:                   c.ID,
		Target:               c.Target,
		Host:                 c.Host,
		Name:                 c.Name,
		Description:          c.Description,
		FindingIDs:           joinIDs(c.FindingIDs),
		OriginalSeverities:   strings.Join(c.OriginalSeverities, ","),
		CombinedSeverity:     c.CombinedSeverity,
		TechnicalDetails:     c.TechnicalDetails,
		BusinessImpact:       c.BusinessImpact,
		EvidenceRequirements: c.EvidenceRequirements,
		AttackPath:           c.AttackPath,
		DateIdentified:       c.IdentifiedAt,
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func splitStrings(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// HostFindings pairs a host with its findings, in store order.
type HostFindings struct {
	Host     string
	Findings []Finding
}

// TargetSummary is one row of the target listing.
type TargetSummary struct {
	Target       string `db:"target"`
	FindingCount int    `db:"finding_count"`
}
