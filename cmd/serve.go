package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/doigate/internal/api"
	"github.com/darmiel/doigate/internal/issuers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the doigate server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		app, err := f.Build(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer app.Close()

		cfg := app.Config
		if addr == "" {
			addr = cfg.Server.Addr
		}
		if addr == "" {
			addr = ":8080"
		}

		log.Info().Msg("Initializing issuers...")
		issRegistry, err := issuers.BuildRegistry(cmd.Context(), cfg.Issuers)
		if err != nil {
			return fmt.Errorf("building issuer registry: %w", err)
		}

		var sessions *issuers.SessionIssuer
		if key := ReadSigningKey(cfg); len(key) > 0 {
			if sessions, err = issuers.NewSessionIssuer(key, issuers.DefaultSessionTTL); err != nil {
				return err
			}
			issRegistry.Add(sessions)
		} else {
			log.Warn().Msg("no signing key configured, session tokens and the admin API are disabled")
		}

		// setup server
		srv := api.NewServer(api.Options{
			Service:        app.Service,
			Filters:        app.Filters,
			Objects:        app.Objects,
			Issuers:        issRegistry,
			Sessions:       sessions,
			Auditor:        app.Auditor,
			PrivilegedRole: cfg.Auth.PrivilegedRole,
			Gatherer:       app.Registry,
			Metrics:        app.Metrics,
		})

		server := &http.Server{
			Addr:              addr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (default is server.addr or :8080)")
}
