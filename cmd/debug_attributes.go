package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/issuers"
)

var attributesVerify bool

var attributesCmd = &cobra.Command{
	Use:   "attributes JWT-TOKEN",
	Short: "Prints the claims of a JWT and the roles doigate derives from them",
	Long: `Decodes a JWT without validating it and lists its claims. The roles claim is
interpreted the way doigate does when deciding whether a caller may skip the
filter.

With --verify the token is additionally checked against the issuers of the
configuration given by --config.`,
	Example: `  doigate debug attributes <JWT token>
  doigate debug attributes --verify -f doigate.yaml <JWT token>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenInput := args[0]
		if tokenInput == "" {
			return fmt.Errorf("token cannot be empty")
		}

		token, _, err := jwt.NewParser().ParseUnverified(tokenInput, jwt.MapClaims{})
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("invalid token claims")
		}
		printClaims(claims)

		privilegedRole := config.DefaultPrivilegedRole
		var principal *core.Principal

		if attributesVerify {
			cfg, err := f.LoadConfig()
			if err != nil {
				return err
			}
			privilegedRole = cfg.Auth.PrivilegedRole

			registry, err := issuers.BuildRegistry(cmd.Context(), cfg.Issuers)
			if err != nil {
				return fmt.Errorf("building issuers: %w", err)
			}
			if principal, err = registry.Verify(cmd.Context(), tokenInput); err != nil {
				log.Error().Err(err).Msg("token was rejected by the configured issuers")
				return BeQuietError{}
			}
			logSuccess("token verified by issuer %s", bold(principal.Issuer))
		} else {
			sub, _ := claims.GetSubject()
			iss, _ := claims.GetIssuer()
			principal = &core.Principal{ID: sub, Issuer: iss, Attributes: map[string]any(claims)}
		}

		fmt.Printf("\n  %s: %s\n", faint("Principal"), principal.ID)
		fmt.Printf("  %s:     %v\n", faint("Roles"), issuers.Roles(principal))
		fmt.Printf("  %s: %s\n", faint("May skip filter"),
			yesNo(principal.HasRole(privilegedRole)))

		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			if remaining := time.Until(exp.Time); remaining > 0 {
				fmt.Printf("  %s:   expires in %s\n", faint("Expiry"), remaining.Round(time.Second))
			} else {
				fmt.Printf("  %s:   %s\n", faint("Expiry"), red("expired "+exp.Local().Format(time.RFC3339)))
			}
		}
		return nil
	},
}

func printClaims(claims jwt.MapClaims) {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Claim", "Value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, truncate(fmt.Sprint(claims[k]), 80)})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func init() {
	attributesCmd.Flags().BoolVar(&attributesVerify, "verify", false,
		"Verify the token against the issuers of the configuration")
	debugCmd.AddCommand(attributesCmd)
}
