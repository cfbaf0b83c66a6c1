package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"contigscreen/internal/aggregate"
	"contigscreen/internal/catalog"
	"contigscreen/internal/ledger"
	"contigscreen/internal/pipeline"
)

// Run renders the end-of-run report: one row per (category, database) with
// either a summary, an explicit "no results" note, or a failure.
func Run(r *pipeline.Report, styles Styles) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s\n", styles.Bold.Render("Run"), r.RunID)
	fmt.Fprintf(&sb, "input %s, output %s, %d samples (%d skipped), %s\n",
		r.InputDir, r.OutputRoot, len(r.Discovery.Samples), len(r.Discovery.Skipped),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Canceled {
		sb.WriteString(styles.Warn.Render("run canceled before completion"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if failed := r.Readiness.Failed(); len(failed) > 0 {
		t := NewTable("Setup failures", "Database", "Error")
		for _, o := range failed {
			t.AddCells(Cell{Text: o.Database}, Cell{Text: errText(o.Err), Style: &styles.Fail})
		}
		sb.WriteString(t.View(styles))
		sb.WriteString("\n")
	}

	failures := r.Dispatch.FailuresByPair()
	t := NewTable("Databases", "Category", "Database", "Results", "Scan failures", "Outcome")
	for _, o := range r.Aggregate.Outcomes {
		failed := failures[catalog.Pair{Category: o.Category, Database: o.Database}]
		t.AddCells(
			Cell{Text: string(o.Category)},
			Cell{Text: o.Database},
			Cell{Text: strconv.Itoa(o.Results)},
			Cell{Text: strconv.Itoa(failed)},
			Cell{Text: o.Note(), Style: outcomeStyle(o.Status, failed, styles)},
		)
	}
	sb.WriteString(t.View(styles))
	return sb.String()
}

func outcomeStyle(s aggregate.Status, scanFailures int, styles Styles) *lipgloss.Style {
	switch {
	case s == aggregate.StatusFailed:
		return &styles.Fail
	case s == aggregate.StatusNoResults || scanFailures > 0:
		return &styles.Warn
	default:
		return &styles.OK
	}
}

// History renders recent runs from the ledger, newest first.
func History(runs []ledger.RunSummary, styles Styles) string {
	if len(runs) == 0 {
		return styles.Muted.Render("no runs recorded") + "\n"
	}
	t := NewTable("Recent runs", "Run", "Started", "Status", "Samples", "Written", "Failed", "Summaries", "No results")
	for _, r := range runs {
		status := Cell{Text: r.Status, Style: &styles.OK}
		if r.Status != ledger.RunCompleted {
			status.Style = &styles.Warn
		}
		t.AddCells(
			Cell{Text: shortID(r.ID)},
			Cell{Text: r.StartedAt.Local().Format("2006-01-02 15:04:05")},
			status,
			Cell{Text: strconv.Itoa(r.Samples)},
			Cell{Text: strconv.Itoa(r.ScansWritten)},
			Cell{Text: strconv.Itoa(r.ScansFailed)},
			Cell{Text: strconv.Itoa(r.Summarized)},
			Cell{Text: strconv.Itoa(r.NoResults)},
		)
	}
	return t.View(styles)
}

// RunDetail renders one recorded run and the triples that did not produce a
// result in it.
func RunDetail(run ledger.RunSummary, failed []ledger.Scan, styles Styles) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (%s)\n", styles.Bold.Render("Run"), run.ID, run.Status)
	fmt.Fprintf(&sb, "input %s, output %s, started %s\n\n",
		run.InputDir, run.OutputRoot, run.StartedAt.Local().Format("2006-01-02 15:04:05"))

	if len(failed) == 0 {
		sb.WriteString(styles.OK.Render("no failed scans"))
		sb.WriteString("\n")
		return sb.String()
	}
	t := NewTable("Failed scans", "Sample", "Category", "Database", "Status", "Error")
	for _, sc := range failed {
		t.AddCells(
			Cell{Text: sc.Sample},
			Cell{Text: sc.Category},
			Cell{Text: sc.Database},
			Cell{Text: sc.Status, Style: &styles.Fail},
			Cell{Text: sc.Error, Style: &styles.Muted},
		)
	}
	sb.WriteString(t.View(styles))
	return sb.String()
}

// Catalog renders the category to database mapping in catalog order.
func Catalog(c *catalog.Catalog, styles Styles) string {
	t := NewTable("Catalog", "Category", "Databases")
	for _, e := range c.Entries() {
		t.AddRow(string(e.Category), strings.Join(e.Databases, ", "))
	}
	return t.View(styles)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
