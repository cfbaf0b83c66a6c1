package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"contigscreen/internal/discovery"
	"contigscreen/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run [input-dir]",
	Short: "Screen every assembly in input-dir (default: current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPipeline,
}

func inputDirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func runPipeline(cmd *cobra.Command, args []string) error {
	inputDir := inputDirArg(args)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Checked before the log sinks exist so a bad path creates nothing.
	if err := discovery.ValidateRoot(inputDir); err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, err := s.screen(cmd.Context(), inputDir)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Run(rep, report.DefaultStyles()))
	return nil
}
