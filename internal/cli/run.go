package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jardins/ghlsync/internal/config"
	"github.com/jardins/ghlsync/internal/ghl"
	"github.com/jardins/ghlsync/internal/logging"
	"github.com/jardins/ghlsync/internal/metrics"
	"github.com/jardins/ghlsync/internal/notify"
	"github.com/jardins/ghlsync/internal/pipeline"
	"github.com/jardins/ghlsync/internal/store"
)

// app holds everything a command needs after config is loaded.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	store   *store.FileStore
	client  *ghl.Client
	tokens  *pipeline.TokenService
}

func newApp() (*app, error) {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	if globalFlags.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(logging.WithLevel(level))
	m := metrics.NewMetrics("ghlsync")

	fileStore := store.NewFileStore(cfg.Storage.AgencyTokenPath, cfg.Storage.LocationsPath)
	client := ghl.NewClient(cfg.GHL.BaseURL, cfg.GHL.APIVersion,
		ghl.WithLogger(logger),
		ghl.WithMetrics(m),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		store:   fileStore,
		client:  client,
		tokens: pipeline.NewTokenService(cfg.GHL, fileStore, client,
			pipeline.WithTokenLogger(logger),
			pipeline.WithTokenMetrics(m),
		),
	}, nil
}

func (a *app) runner(opts ...pipeline.RunnerOption) *pipeline.Runner {
	opts = append(opts,
		pipeline.WithRunnerLogger(a.logger),
		pipeline.WithRunnerMetrics(a.metrics),
	)
	if n := notify.Notifier(a.cfg.Telegram, a.logger); n != nil {
		opts = append(opts, pipeline.WithNotifier(n))
	}
	return pipeline.NewRunner(a.cfg, a.store, a.client, opts...)
}

func (a *app) openRunStore() (*store.RunStore, error) {
	if a.cfg.Storage.RunHistoryPath == "" {
		return nil, nil
	}
	runs, err := store.NewRunStore(a.cfg.Storage.RunHistoryPath)
	if err != nil {
		return nil, err
	}
	if deleted, err := runs.Cleanup(a.cfg.Storage.RetentionDays); err != nil {
		a.logger.Warn("run history cleanup failed", "error", err.Error())
	} else if deleted > 0 {
		a.logger.Debug("old runs pruned", "deleted", deleted)
	}
	return runs, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full pipeline once",
	Long: `Regenerate documents, refresh the agency token, sync installed
locations, provision location tokens, and publish every configured
document into the target location.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		runs, err := a.openRunStore()
		if err != nil {
			return err
		}
		if runs != nil {
			defer runs.Close()
		}

		ctx, cancel := signalContext()
		defer cancel()

		var opts []pipeline.RunnerOption
		if runs != nil {
			opts = append(opts, pipeline.WithRunStore(runs))
		}
		return a.runner(opts...).Run(ctx)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the agency access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		token, err := a.tokens.RefreshAgencyToken(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("agency token refreshed (company %s, expires in %ds)\n", token.CompanyID, token.ExpiresIn)
		return nil
	},
}

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Sync the installed-locations record",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		locations, err := a.tokens.SyncInstalledLocations(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d installed locations synced\n", len(locations))
		for _, loc := range locations {
			fmt.Println(" -", loc.ID)
		}
		return nil
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Provision location-scoped tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		locations, err := a.tokens.ProvisionLocationTokens(ctx)
		if err != nil {
			return err
		}

		failures := 0
		for i := range locations {
			if rec := locations[i].TokenError(); rec != nil {
				failures++
				fmt.Printf(" - %s: %s\n", locations[i].ID, rec.Error)
			}
		}
		fmt.Printf("%d locations provisioned, %d failures\n", len(locations)-failures, failures)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish configured documents to the target location",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		if err := a.runner().PublishDocuments(ctx); err != nil {
			return err
		}
		fmt.Printf("%d documents published to %s\n", len(a.cfg.Pipeline.Documents), a.cfg.Pipeline.TargetLocationID)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(refreshCmd)
	RootCmd.AddCommand(locationsCmd)
	RootCmd.AddCommand(tokensCmd)
	RootCmd.AddCommand(publishCmd)
}
