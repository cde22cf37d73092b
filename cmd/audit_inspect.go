package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/pkg/client"
)

var auditInspectCmd = &cobra.Command{
	Use:     "inspect CORRELATION-ID",
	Short:   "Show full details of a specific audit log entry",
	Example: `  doigate audit inspect ctb4g1fl1r8s73b2vtbg`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		correlationID := args[0]
		if correlationID == "" {
			return fmt.Errorf("correlation ID cannot be empty")
		}

		log.Debug().Msgf("Retrieving entry with correlation ID '%s'...", correlationID)
		audits, correlation, err := findAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:         1,
			CorrelationID: correlationID,
		})
		if err != nil {
			return logError(err, correlation, "failed to retrieve audit log entry")
		}
		if len(audits) == 0 {
			log.Warn().Str("correlation_id", correlationID).Msg("no audit log entries found")
			return nil
		}

		printAuditEntry(audits[0])
		return nil
	},
}

func printAuditEntry(entry core.AuditEntry) {
	printKV := func(key string, val any) {
		fmt.Printf("  %-26s %v\n", faint(key)+":", val)
	}
	orNone := func(s string) any {
		if s == "" {
			return faint("(none)")
		}
		return s
	}

	printMap := func(m map[string]any) {
		if len(m) == 0 {
			fmt.Printf("       %s\n", faint("(none)"))
			return
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Printf("       %-16s %v\n", faint(k)+":", m[k])
		}
	}

	outcome := entry.Outcome
	switch entry.Outcome {
	case core.OutcomeApplied:
		outcome = green(outcome)
	case core.OutcomeFailed:
		outcome = red(outcome)
	}

	fmt.Println(bold("\n── Audit Entry ──"))
	printKV("Correlation ID", entry.ID)
	printKV("Time", entry.Time.Local().Format(time.RFC1123))
	printKV("Action", entry.Action)
	printKV("Outcome", outcome)

	fmt.Println(bold("\n── Identity ──"))
	if entry.Principal != nil {
		printKV("Subject", entry.Principal.ID)
		printKV("Issuer", entry.Principal.Issuer)
		printKV("Attributes", "")
		printMap(entry.Principal.Attributes)
	} else {
		fmt.Printf("  %s\n", faint("(local run)"))
	}

	fmt.Println(bold("\n── Identifier ──"))
	printKV("Provider", orNone(entry.Provider))
	printKV("Connector", orNone(entry.Connector))
	printKV("Filter", orNone(entry.Filter))
	printKV("Skip Filter", yesNo(entry.SkipFilter))
	printKV("Handle", orNone(entry.Handle))
	printKV("DOI", orNone(entry.DOI))
	if entry.State != "" {
		printKV("State", stateColor(entry.State))
	}
	if entry.Error != "" {
		printKV("Error Kind", orNone(string(entry.ErrorKind)))
		printKV("Error Message", red(entry.Error))
	}
	printKV("Metadata", "")
	printMap(entry.Metadata)
	fmt.Println()
}

func init() {
	auditCmd.AddCommand(auditInspectCmd)
}
