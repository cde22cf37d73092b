package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/cliconfig"
	"github.com/darmiel/doigate/pkg/client"
)

var loginCmd = &cobra.Command{
	Use:   "login TOKEN",
	Short: "Authenticate with a doigate server",
	Long: `Exchanges an upstream token (an OIDC ID token or a static service token) for a
doigate session token. The session token is saved locally and used for future
requests, e.g. identifier actions and the audit log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loginToken := strings.TrimSpace(args[0])
		if loginToken == "" {
			return fmt.Errorf("token cannot be empty")
		}

		server := f.RemoteAddr
		if server == "" {
			return fmt.Errorf("server address not configured, provide via --server or env")
		}
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("parsing server URL: %w", err)
		}

		// perform exchange via client
		cli := client.New(server)

		log.Info().Msgf("Requesting session from server %q...", u.Host)

		session, correlationID, err := cli.CreateSession(cmd.Context(), loginToken)
		if err != nil {
			return logError(err, correlationID, "failed to create session")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = &cliconfig.CLIConfig{}
		}
		if cfg.Credentials == nil {
			cfg.Credentials = make(map[string]*cliconfig.Credential)
		}
		cfg.Credentials[u.Host] = &cliconfig.Credential{
			Token:     session.Token,
			Principal: session.Principal,
			ExpiresAt: session.ExpiresAt,
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("saved credentials of %s for %s (expires %s, roles: %s)",
			bold(session.Principal), bold(u.Host),
			session.ExpiresAt.Local().Format("15:04"), strings.Join(session.Roles, ","))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
