package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/logging"
	"github.com/darmiel/doigate/internal/service"
	"github.com/darmiel/doigate/pkg/client"
)

var (
	doiSkipFilter bool
	doiAll        bool
)

// localAction runs one lifecycle action and returns the affected DOI.
type localAction func(ctx context.Context, svc *service.IdentifierService, obj core.Object) (string, error)

func identifierDOI(id *core.Identifier, err error) (string, error) {
	if id == nil {
		return "", err
	}
	return id.DOI, err
}

var localActions = map[string]localAction{
	"mint": func(ctx context.Context, svc *service.IdentifierService, obj core.Object) (string, error) {
		return identifierDOI(svc.Mint(ctx, doiProvider, obj, doiSkipFilter))
	},
	"reserve": func(ctx context.Context, svc *service.IdentifierService, obj core.Object) (string, error) {
		return identifierDOI(svc.Reserve(ctx, doiProvider, obj, doiSkipFilter))
	},
	"register": func(ctx context.Context, svc *service.IdentifierService, obj core.Object) (string, error) {
		return svc.Register(ctx, doiProvider, obj, doiSkipFilter)
	},
	"update": func(ctx context.Context, svc *service.IdentifierService, obj core.Object) (string, error) {
		return identifierDOI(svc.Update(ctx, doiProvider, obj, doiSkipFilter))
	},
	"delete": func(ctx context.Context, svc *service.IdentifierService, obj core.Object) (string, error) {
		return identifierDOI(svc.Delete(ctx, doiProvider, obj))
	},
}

var actionDescriptions = map[string]string{
	"mint":     "Create the local DOI record of an object",
	"reserve":  "Reserve the DOI of an object at the registry",
	"register": "Register the DOI of an object, reserving it first if needed",
	"update":   "Send the current metadata of an object to the registry",
	"delete":   "Delete the reservation of an object's DOI",
}

func newActionCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [HANDLE...]",
		Short: actionDescriptions[action],
		Example: fmt.Sprintf(`  doigate doi %[1]s -f doigate.yaml --provider repo 123456789/42
  doigate doi %[1]s --server https://doigate.example.org --provider repo --skip-filter 123456789/42`, action),
		RunE: func(cmd *cobra.Command, args []string) error {
			if doiAll == (len(args) > 0) {
				return fmt.Errorf("specify either handles or --all")
			}
			if f.Remote() {
				if doiAll {
					return fmt.Errorf("--all is only supported for local runs")
				}
				return runRemoteAction(cmd.Context(), action, args)
			}
			return runLocalAction(cmd.Context(), action, args)
		},
	}
}

func runRemoteAction(ctx context.Context, action string, handles []string) error {
	cli, err := f.GetClient()
	if err != nil {
		return err
	}
	if len(handles) > 1 {
		batchID := xid.New().String()
		ctx = core.WithCorrelationID(ctx, batchID)
		log.Info().Msgf("Running %s for %d objects (correlation: %s)", action, len(handles), batchID)
	}

	var failed bool
	for _, handle := range handles {
		resp, correlation, err := cli.Action(ctx, doiProvider, action, handle, doiSkipFilter)
		if err != nil {
			_ = logError(err, correlation, fmt.Sprintf("%s of %s failed", action, handle))
			var apiErr client.APIError
			if !errors.As(err, &apiErr) || !apiErr.NotApplicable() {
				failed = true
			}
			continue
		}
		doi := resp.DOI
		if resp.Identifier != nil {
			doi = resp.Identifier.DOI
		}
		logSuccess("%s %s: %s", action, bold(handle), doi)
	}
	if failed {
		return BeQuietError{}
	}
	return nil
}

func runLocalAction(ctx context.Context, action string, handles []string) error {
	app, err := f.Build(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	var objects []core.Object
	if doiAll {
		if objects, err = app.Objects.All(ctx); err != nil {
			return err
		}
	} else {
		for _, handle := range handles {
			obj, err := app.Objects.Find(ctx, handle)
			if err != nil {
				return err
			}
			objects = append(objects, obj)
		}
	}

	loggers := []logging.InternalLogger{logging.NewConsoleLogger(os.Stdout)}
	if viper.GetString(logging.FormatKey) == "json" {
		loggers = append(loggers, logging.NewZLogger(log.Logger.With().Str("action", action).Logger()))
	}
	report := logging.NewMultiLogger(loggers...)

	batchID := xid.New().String()
	log.Debug().Msgf("audit entries of this run use correlation ID %s", batchID)
	ctx = core.WithCorrelationID(ctx, batchID)
	return runBatch(ctx, app.Service, localActions[action], action, objects, report)
}

// runBatch applies fn to every object. Objects rejected by the filter are
// reported and skipped; other failures fail the batch after all objects ran.
func runBatch(
	ctx context.Context,
	svc *service.IdentifierService,
	fn localAction,
	action string,
	objects []core.Object,
	report logging.InternalLogger,
) error {
	var failed int
	for _, obj := range objects {
		doi, err := fn(ctx, svc, obj)
		switch {
		case err == nil:
			report.Info("%s %s: %s", action, obj.Handle(), doi)
		case errors.Is(err, service.ErrNotApplicable):
			report.Warn("%s %s: not applicable", action, obj.Handle())
		default:
			report.Error("%s %s: %v", action, obj.Handle(), err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d objects failed", failed, len(objects))
	}
	return nil
}

func init() {
	for _, action := range []string{"mint", "reserve", "register", "update", "delete"} {
		c := newActionCmd(action)
		c.Flags().BoolVar(&doiAll, "all", false, "Run for every object of the fixture (local runs only)")
		if action != "delete" {
			c.Flags().BoolVar(&doiSkipFilter, "skip-filter", false,
				"Bypass the provider's filter (requires the privileged role on a server)")
		}
		doiCmd.AddCommand(c)
	}
}
