// Package roi tracks time spent and earnings per finding.
package roi

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/scottbrough/bugbounty-framework/pkg/store"
)

// Rate computes the hourly rate for a finding: payout/timeSpent when time
// was spent, else 0. Rounded to cents.
func Rate(payout, timeSpent float64) float64 {
	if timeSpent <= 0 {
		return 0
	}
	return math.Round(payout/timeSpent*100) / 100
}

// Tracker drives the interactive ROI logging session: for each finding it
// reads hours and payout from the input stream and records the derived rate.
type Tracker struct {
	store *store.Store
	in    *bufio.Scanner
	out   io.Writer
}

func NewTracker(st *store.Store, in io.Reader, out io.Writer) *Tracker {
	return &Tracker{store: st, in: bufio.NewScanner(in), out: out}
}

// Run walks the target's findings newest-first, prompting for the two
// numbers per finding. A malformed entry skips that finding and moves on.
func (t *Tracker) Run(ctx context.Context, target string) error {
	findings, err := t.store.FindingsForTarget(ctx, target)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		fmt.Fprintln(t.out, "No findings found.")
		return nil
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)

	for _, f := range findings {
		bold.Fprintf(t.out, "\nID %d -> %s\n", f.ID, f.Host)
		fmt.Fprintf(t.out, "  -> %s\n", f.Vulnerability)

		timeSpent, ok := t.promptFloat("  Time spent (hrs): ")
		if !ok {
			fmt.Fprintln(t.out, "  Skipped.")
			continue
		}
		payout, ok := t.promptFloat("  Payout received ($): ")
		if !ok {
			fmt.Fprintln(t.out, "  Skipped.")
			continue
		}

		rate := Rate(payout, timeSpent)
		if err := t.store.UpdateROI(ctx, f.ID, timeSpent, payout, rate); err != nil {
			fmt.Fprintf(t.out, "  Skipped due to error: %v\n", err)
			continue
		}
		green.Fprintf(t.out, "  Logged. Hourly rate: $%.2f/hr\n", rate)
	}
	return nil
}

func (t *Tracker) promptFloat(prompt string) (float64, bool) {
	fmt.Fprint(t.out, prompt)
	if !t.in.Scan() {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(t.in.Text()), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
