package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/core"
)

var (
	filterTestName   string
	filterTestObject string
	filterTestAll    bool
)

var filterTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Evaluate a filter against objects and explain the decision",
	Long: `Evaluates a filter against one object and prints the full evaluation trace,
or against every object of the fixture (--all) and prints one line per object.`,
	Example: `  # Why is this item (not) getting a DOI?
  doigate filter test -f doigate.yaml --filter doi_filter --object 123456789/42

  # Which items would get a DOI?
  doigate filter test -f doigate.yaml --filter doi_filter --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if filterTestAll == (filterTestObject != "") {
			return fmt.Errorf("specify either --object or --all")
		}
		ctx := cmd.Context()

		if f.Remote() {
			if filterTestAll {
				return fmt.Errorf("--all is only supported for local runs")
			}
			cli, err := f.GetClient()
			if err != nil {
				return err
			}
			trace, correlation, err := cli.Explain(ctx, filterTestName, filterTestObject)
			if err != nil {
				return logError(err, correlation, "failed to explain filter")
			}
			printTrace(trace)
			return nil
		}

		app, err := f.Build(ctx, false)
		if err != nil {
			return err
		}
		defer app.Close()

		flt, err := app.Filters.Get(filterTestName)
		if err != nil {
			return err
		}

		if !filterTestAll {
			obj, err := app.Objects.Find(ctx, filterTestObject)
			if err != nil {
				return err
			}
			// the trace carries evaluation errors
			trace, _ := flt.Explain(ctx, obj)
			printTrace(trace)
			return nil
		}

		objects, err := app.Objects.All(ctx)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Handle", "ID", "Type", "Result", "Error"})
		applicable := 0
		for _, obj := range objects {
			ok, err := flt.Result(ctx, obj)
			result := red("✖")
			if ok {
				result = green("✔")
				applicable++
			}
			errMsg := ""
			if err != nil {
				errMsg = truncate(err.Error(), 60)
			}
			t.AppendRow(table.Row{obj.Handle(), obj.ID(), obj.Type(), result, errMsg})
		}
		t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d/%d", applicable, len(objects)), ""})
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func printTrace(trace *core.FilterTrace) {
	fmt.Printf("\n%s of filter %s for %s\n",
		bold("Evaluation Trace"),
		bold(trace.Filter),
		bold(trace.Handle))
	if trace.Description != "" {
		fmt.Printf("  %s\n", faint(trace.Description))
	}
	fmt.Println(faint("---------------------------------------------------"))

	printConditionResult(trace.Root, 0)

	fmt.Println("---------------------------------------------------")
	switch {
	case trace.Error != "":
		fmt.Printf("Decision: %s (%s)\n", bold(red("error")), trace.Error)
	case trace.Result:
		fmt.Printf("Decision: %s\n", bold(green("applicable")))
	default:
		fmt.Printf("Decision: %s\n", bold(red("not applicable")))
	}
	if trace.CorrelationID != "" {
		fmt.Printf("%s\n", faint("correlation: "+trace.CorrelationID))
	}
	fmt.Println()
}

func printConditionResult(res core.ConditionResult, depth int) {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	indent := strings.Repeat("  ", depth)
	icon := redCross
	if res.Matched {
		icon = greenCheck
	}

	if res.Label != "" {
		fmt.Printf("  %s%s %s\n", indent, icon, cyan("["+res.Label+"]"))
	} else {
		fmt.Printf("  %s%s %s\n", indent, icon, res.Expression)
	}
	if res.Reason != "" {
		reason := res.Reason
		if res.Matched {
			reason = faint(reason)
		} else {
			reason = yellow(reason)
		}
		fmt.Printf("  %s    ↳ %s\n", indent, reason)
	}
	for _, child := range res.Children {
		printConditionResult(child, depth+1)
	}
}

func init() {
	filterCmd.AddCommand(filterTestCmd)

	filterTestCmd.Flags().StringVar(&filterTestName, "filter", "", "Name of the filter to evaluate")
	filterTestCmd.Flags().StringVarP(&filterTestObject, "object", "o", "", "Handle of the object to evaluate")
	filterTestCmd.Flags().BoolVar(&filterTestAll, "all", false, "Evaluate every object of the fixture")

	_ = filterTestCmd.MarkFlagRequired("filter")
}
