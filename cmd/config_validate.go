package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Loads the configuration and builds every filter, connector and provider
without contacting a registry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := f.Build(cmd.Context(), false)
		if err != nil {
			log.Error().Err(err).Msg("Configuration is invalid.")
			return BeQuietError{}
		}
		defer app.Close()

		log.Info().
			Int("filters", len(app.Filters.List())).
			Int("connectors", len(app.Connectors)).
			Int("providers", len(app.Service.Providers())).
			Msg("Configuration is valid.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
