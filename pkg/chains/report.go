package chains

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

// Document is the canonical JSON artifact for a target's chain analysis.
type Document struct {
	Target       string        `json:"target"`
	AnalysisDate string        `json:"analysis_date"`
	Chains       []store.Chain `json:"chains"`
}

// RenderJSON produces the canonical JSON document. It is a pure function of
// its arguments: identical chains and timestamp yield identical bytes.
func RenderJSON(target string, analysisDate time.Time, persisted []store.Chain) ([]byte, error) {
	doc := Document{
		Target:       target,
		AnalysisDate: analysisDate.Format(time.RFC3339),
		Chains:       persisted,
	}
	if doc.Chains == nil {
		doc.Chains = []store.Chain{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// RenderMarkdown produces the human-readable report: one section per chain
// with fields in fixed template order, followed by ROI estimates.
func RenderMarkdown(target string, analysisDate time.Time, persisted []store.Chain) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Vulnerability Chain Analysis for %s\n\n", target)
	fmt.Fprintf(&sb, "*Generated on: %s*\n\n", analysisDate.Format("2006-01-02 15:04:05"))
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "This report identifies %d potential vulnerability chains that could be leveraged for increased impact. Each chain combines multiple lower-severity findings into a higher-severity attack path.\n\n", len(persisted))
	sb.WriteString("## Identified Chains\n\n")

	for i, c := range persisted {
		name := c.Name
		if name == "" {
			name = "Unnamed Chain"
		}
		host := c.Host
		if host == "" {
			host = "Unknown"
		}
		fmt.Fprintf(&sb, "### Chain %d: %s\n\n", i+1, name)
		fmt.Fprintf(&sb, "**Host:** %s  \n", host)
		fmt.Fprintf(&sb, "**Combined Severity:** %s\n\n", orDefault(c.CombinedSeverity, "Unknown"))
		fmt.Fprintf(&sb, "**Description:**  \n%s\n\n", orDefault(c.Description, "No description provided."))
		fmt.Fprintf(&sb, "**Attack Path:**  \n%s\n\n", orDefault(c.AttackPath, "No attack path provided."))
		fmt.Fprintf(&sb, "**Technical Details:**  \n%s\n\n", orDefault(c.TechnicalDetails, "No technical details provided."))
		fmt.Fprintf(&sb, "**Business Impact:**  \n%s\n\n", orDefault(c.BusinessImpact, "No business impact provided."))
		fmt.Fprintf(&sb, "**Evidence Requirements:**  \n%s\n\n", orDefault(c.EvidenceRequirements, "No evidence requirements provided."))
		fmt.Fprintf(&sb, "**Component Vulnerabilities:**  \n%s\n\n", componentList(c))
		sb.WriteString("---\n\n")
	}

	sb.WriteString("## ROI Estimates\n\n")
	sb.WriteString("| Chain | Severity | Est. Value |\n")
	sb.WriteString("|-------|----------|------------|\n")
	for i, c := range persisted {
		fmt.Fprintf(&sb, "| Chain %d | %s | %s |\n", i+1, orDefault(c.CombinedSeverity, "Unknown"), EstimateLabel(c.CombinedSeverity))
	}
	sb.WriteString("\n")

	return sb.String()
}

// EstimateLabel renders a chain's ROI range, or N/A for an unrecognized
// severity.
func EstimateLabel(severity string) string {
	v, ok := EstimateValue(severity)
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("$%d-$%d", v.Min, v.Max)
}

func componentList(c store.Chain) string {
	n := len(c.FindingIDs)
	if len(c.OriginalSeverities) < n {
		n = len(c.OriginalSeverities)
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf("Finding #%d (%s)", c.FindingIDs[i], c.OriginalSeverities[i]))
	}
	return strings.Join(parts, ", ")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Artifacts holds where the report files landed.
type Artifacts struct {
	JSONPath     string
	MarkdownPath string
}

// WriteArtifacts renders both documents into the target workspace, or next
// to outputOverride when given (JSON at the override path, Markdown with a
// .md extension).
func WriteArtifacts(workspaceDir, target, outputOverride string, analysisDate time.Time, persisted []store.Chain) (Artifacts, error) {
	var a Artifacts
	if outputOverride != "" {
		a.JSONPath = outputOverride
		ext := filepath.Ext(outputOverride)
		a.MarkdownPath = strings.TrimSuffix(outputOverride, ext) + ".md"
	} else {
		dir := filepath.Join(workspaceDir, target)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return a, fmt.Errorf("create workspace: %w", err)
		}
		a.JSONPath = filepath.Join(dir, "chain_analysis.json")
		a.MarkdownPath = filepath.Join(dir, "chain_analysis_report.md")
	}

	if dir := filepath.Dir(a.JSONPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return a, fmt.Errorf("create output dir: %w", err)
		}
	}

	data, err := RenderJSON(target, analysisDate, persisted)
	if err != nil {
		return a, fmt.Errorf("render chain analysis: %w", err)
	}
	if err := os.WriteFile(a.JSONPath, data, 0644); err != nil {
		return a, fmt.Errorf("write %s: %w", a.JSONPath, err)
	}

	md := RenderMarkdown(target, analysisDate, persisted)
	if err := os.WriteFile(a.MarkdownPath, []byte(md), 0644); err != nil {
		return a, fmt.Errorf("write %s: %w", a.MarkdownPath, err)
	}
	return a, nil
}
