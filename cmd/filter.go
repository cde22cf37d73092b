package cmd

import "github.com/spf13/cobra"

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Inspect and test the configured filters",
}

func init() {
	rootCmd.AddCommand(filterCmd)
}
