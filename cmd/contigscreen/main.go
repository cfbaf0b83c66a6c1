// Command contigscreen screens a directory of genome assemblies against a
// catalog of resistance, virulence, and plasmid databases using abricate.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"contigscreen/internal/config"
)

var (
	// Global flags
	configPath string
	outputRoot string
	ledgerPath string
	verbose    bool
	workers    int
)

// rootCmd screens the input directory, like `contigscreen run`.
var rootCmd = &cobra.Command{
	Use:   "contigscreen [input-dir]",
	Short: "Screen genome assemblies for AMR, virulence, and plasmid genes",
	Long: `contigscreen runs every assembly in the input directory against every
database of the screening catalog, stores one result per sample and database
under {output}/{Category}/{database}/, and writes one combined summary per
database with at least one result.

Databases missing from the local abricate installation are set up first.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPipeline,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().StringVarP(&outputRoot, "output", "o", "", "Output root (overrides output.root)")
	rootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "Run history database (overrides ledger.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "j", 0, "Concurrent scans (overrides concurrency.scans)")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show failed scans of one run (id or id prefix)")
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
