package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"contigscreen/internal/discovery"
	"contigscreen/internal/logging"
	"contigscreen/internal/report"
	"contigscreen/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [input-dir]",
	Short: "Screen input-dir, then rescreen whenever new assemblies arrive",
	Long: `watch runs a full screening pass, then keeps watching the input directory.
When new assemblies have stopped changing for the debounce interval, the whole
pass runs again. Existing results are rewritten with identical content, so only
new samples add work to the summaries. Interrupt to stop.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	inputDir := inputDirArg(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := discovery.ValidateRoot(inputDir); err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	screen := func(ctx context.Context) {
		rep, err := s.screen(ctx, inputDir)
		if err != nil {
			s.sinks.Logger(logging.CategoryWatch).Error("rerun failed", zap.Error(err))
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
			return
		}
		fmt.Fprint(out, report.Run(rep, report.DefaultStyles()))
	}

	ctx := cmd.Context()
	screen(ctx)
	if ctx.Err() != nil {
		return nil
	}

	w, err := watch.New(watch.Config{
		Dir:      inputDir,
		Suffix:   cfg.Input.Suffix,
		Debounce: cfg.GetWatchDebounce(),
		Logger:   s.sinks.Logger(logging.CategoryWatch),
	}, func(ctx context.Context, paths []string) {
		fmt.Fprintf(out, "\n%d new or changed assemblies, rescreening\n", len(paths))
		screen(ctx)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "watching %s (interrupt to stop)\n", inputDir)
	err = w.Run(ctx)

	st := w.Stats()
	s.sinks.Logger(logging.CategoryWatch).Info("watch stopped",
		zap.Int("events", st.Events),
		zap.Int("rescreens", st.Triggers),
		zap.Int("errors", st.Errors),
		zap.String("last_event", st.LastEventPath))
	fmt.Fprintf(out, "watch stopped: %d events, %d rescreens, %d errors\n", st.Events, st.Triggers, st.Errors)
	return err
}
