package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"contigscreen/internal/logging"
	"contigscreen/internal/readiness"
	"contigscreen/internal/report"
)

// checkCmd makes every catalog database ready without scanning anything.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check every catalog database and set up the missing ones",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	rep := readiness.NewManager(s.scanner, readiness.Config{
		Workers: cfg.Concurrency.SetupWorkers(),
		Logger:  s.sinks.Logger(logging.CategoryReadiness),
	}).EnsureReady(cmd.Context(), s.catalog)

	styles := report.DefaultStyles()
	t := report.NewTable("Databases", "Database", "Status", "Error")
	for _, o := range rep.Outcomes {
		status := report.Cell{Text: string(o.Status), Style: &styles.OK}
		msg := ""
		if o.Status == readiness.StatusFailed {
			status.Style = &styles.Fail
			msg = o.Err.Error()
		}
		t.AddCells(report.Cell{Text: o.Database}, status, report.Cell{Text: msg})
	}
	fmt.Fprint(cmd.OutOrStdout(), t.View(styles))

	if failed := rep.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d databases are not ready", len(failed), len(rep.Outcomes))
	}
	return nil
}
