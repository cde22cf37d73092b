package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/api"
)

var filterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		var filters []api.FilterInfo
		if f.Remote() {
			cli, err := f.GetClient()
			if err != nil {
				return err
			}
			var correlation string
			if filters, correlation, err = cli.Filters(cmd.Context()); err != nil {
				return logError(err, correlation, "failed to list filters")
			}
		} else {
			app, err := f.Build(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer app.Close()
			for _, flt := range app.Filters.List() {
				filters = append(filters, api.FilterInfo{Name: flt.Name(), Description: flt.Description()})
			}
		}

		log.Debug().Msgf("Found %d filters", len(filters))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Description"})
		for _, flt := range filters {
			t.AppendRow(table.Row{bold(flt.Name), flt.Description})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	filterCmd.AddCommand(filterListCmd)
}
