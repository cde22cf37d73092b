package cmd

import (
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/pkg/client"
)

var auditLogOpts client.ListAuditsOpts

// auditLogCmd represents the audit log command
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit log entries",
	Example: `  doigate audit log --server https://doigate.example.org -n 10 --outcome failed
  doigate audit log -f doigate.yaml --handle 123456789/42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetUint("limit")
		if err != nil {
			return err
		}
		auditLogOpts.Limit = limit

		log.Debug().Msg("Fetching audit log...")
		audits, correlation, err := findAudits(cmd.Context(), auditLogOpts)
		if err != nil {
			return logError(err, correlation, "failed to retrieve audit log")
		}

		log.Info().Msgf("Retrieved %d audit entries", len(audits))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "ID", "Action", "Principal", "Provider", "Handle", "Outcome", "State", "Error",
		})

		for _, e := range audits {
			sub := faint("(local)")
			if e.Principal != nil {
				sub = truncate(e.Principal.ID, 35)
			}

			outcome := e.Outcome
			switch e.Outcome {
			case core.OutcomeApplied:
				outcome = color.GreenString(outcome)
			case core.OutcomeNotApplicable:
				outcome = color.YellowString(outcome)
			case core.OutcomeFailed:
				outcome = color.RedString(outcome)
			}
			if e.SkipFilter {
				outcome += faint(" (skip)")
			}

			t.AppendRow(table.Row{
				e.Time.Local().Format(time.RFC3339),
				e.ID,
				e.Action,
				sub,
				e.Provider,
				e.Handle,
				outcome,
				e.State,
				truncate(e.Error, 40),
			})
		}

		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().UintP("limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().StringVar(&auditLogOpts.PrincipalID, "principal", "", "Only entries of this principal")
	auditLogCmd.Flags().StringVar(&auditLogOpts.Handle, "handle", "", "Only entries for this object handle")
	auditLogCmd.Flags().StringVar(&auditLogOpts.Action, "action", "", "Only entries of this action, e.g. identifier.register")
	auditLogCmd.Flags().StringVar(&auditLogOpts.Outcome, "outcome", "", "Only entries with this outcome (applied, not_applicable, failed)")
}
