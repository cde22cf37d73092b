package cmd

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/core"
)

var debugObjectCmd = &cobra.Command{
	Use:     "object HANDLE",
	Short:   "Dump an object of the fixture as the filters and connectors see it",
	Example: `  doigate debug object -f doigate.yaml 123456789/42`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := f.Build(ctx, false)
		if err != nil {
			return err
		}
		defer app.Close()

		obj, err := app.Objects.Find(ctx, args[0])
		if err != nil {
			return err
		}

		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		cfg.Dump(obj)

		for _, p := range app.Service.Providers() {
			fmt.Printf("%s %s\n", faint(p.Name+":"), p.DOIFor(obj))
		}
		if title, err := core.FirstValue(ctx, obj, "dc.title"); err == nil && title != "" {
			fmt.Printf("%s %s\n", faint("title:"), bold(title))
		}
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugObjectCmd)
}
