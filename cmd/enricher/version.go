package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shpitdev/company-enricher/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the enricher version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enricher %s\n", version.Current)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
