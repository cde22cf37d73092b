package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/service"
)

var doiProvider string

var doiCmd = &cobra.Command{
	Use:   "doi",
	Short: "Check and manage the DOIs of objects",
	Long: `Runs identifier lifecycle actions for objects, either locally against the
configured registries (--config) or through a doigate server (--server).`,
}

var doiCheckCmd = &cobra.Command{
	Use:     "check HANDLE",
	Short:   "Show the local state and the registry view of an object's DOI",
	Example: `  doigate doi check -f doigate.yaml --provider repo 123456789/42`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		handle := args[0]

		var st *service.Status
		if f.Remote() {
			cli, err := f.GetClient()
			if err != nil {
				return err
			}
			var correlation string
			if st, correlation, err = cli.Status(ctx, doiProvider, handle); err != nil {
				return logError(err, correlation, "failed to check DOI")
			}
		} else {
			app, err := f.Build(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			obj, err := app.Objects.Find(ctx, handle)
			if err != nil {
				return err
			}
			if st, err = app.Service.Status(ctx, doiProvider, obj); err != nil {
				return err
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Handle", "DOI", "State", "Stored", "Reserved", "Registered", "Last Error"})
		t.AppendRow(table.Row{
			st.Identifier.Handle,
			st.Identifier.DOI,
			stateColor(st.Identifier.State),
			yesNo(st.Stored),
			yesNo(st.Reserved),
			yesNo(st.Registered),
			truncate(st.Identifier.LastError, 50),
		})
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doiCmd)
	doiCmd.AddCommand(doiCheckCmd)

	doiCmd.PersistentFlags().StringVarP(&doiProvider, "provider", "p", "", "The identifier provider to use")
	_ = doiCmd.MarkPersistentFlagRequired("provider")
}
