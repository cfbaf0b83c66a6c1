package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"contigscreen/internal/report"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the effective database catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cat, err := cfg.BuildCatalog()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.Catalog(cat, report.DefaultStyles()))
		return nil
	},
}
