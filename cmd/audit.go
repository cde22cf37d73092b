package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/audit"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/pkg/client"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log of identifier operations",
	Long: `Reads the audit log from a doigate server (requires an admin session, see
'doigate login') or, for local runs, from the file auditor of the configuration.`,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

// findAudits queries the server or the locally configured audit file.
func findAudits(ctx context.Context, opts client.ListAuditsOpts) ([]core.AuditEntry, string, error) {
	if f.Remote() {
		cli, err := f.GetClient()
		if err != nil {
			return nil, "", err
		}
		return cli.ListAudits(ctx, opts)
	}

	cfg, err := f.LoadConfig()
	if err != nil {
		return nil, "", err
	}
	if !cfg.Audit.Enabled || cfg.Audit.Type != audit.TypeFile {
		return nil, "", fmt.Errorf("local audit logs need a file auditor (audit.type: file)")
	}
	auditor, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = auditor.Close() }()

	querier, ok := auditor.(core.AuditQuerier)
	if !ok {
		return nil, "", fmt.Errorf("auditor of type %q can not be queried", cfg.Audit.Type)
	}
	limit := int(opts.Limit)
	if limit == 0 {
		limit = 50
	}
	entries, err := querier.Find(func(e core.AuditEntry) bool {
		switch {
		case opts.CorrelationID != "" && e.ID != opts.CorrelationID:
			return false
		case opts.PrincipalID != "" && (e.Principal == nil || e.Principal.ID != opts.PrincipalID):
			return false
		case opts.Handle != "" && e.Handle != opts.Handle:
			return false
		case opts.Action != "" && e.Action != opts.Action:
			return false
		case opts.Outcome != "" && e.Outcome != opts.Outcome:
			return false
		}
		return true
	}, limit)
	return entries, "", err
}
