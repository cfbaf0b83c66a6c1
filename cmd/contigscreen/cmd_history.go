package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"contigscreen/internal/ledger"
	"contigscreen/internal/report"
)

var (
	historyLimit int
	historyRun   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the run ledger",
	Long: `history lists recent runs. With --run it shows one run, selected by id or
id prefix, together with every scan that did not produce a result.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Ledger.Path == "" {
		return errors.New("no ledger configured: set ledger.path or pass --ledger")
	}

	store, err := ledger.Open(cfg.Ledger.Path, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	styles := report.DefaultStyles()
	ctx := cmd.Context()

	if historyRun != "" {
		run, err := store.FindRun(ctx, historyRun)
		if err != nil {
			return err
		}
		failed, err := store.FailedScans(ctx, run.ID)
		if err != nil {
			return err
		}
		fmt.Fprint(out, report.RunDetail(run, failed, styles))
		return nil
	}

	runs, err := store.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprint(out, report.History(runs, styles))
	fmt.Fprintln(out, styles.Muted.Render("ledger "+store.Path()))
	return nil
}
