package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jardins/ghlsync/internal/api"
	"github.com/jardins/ghlsync/internal/daemon"
	"github.com/jardins/ghlsync/internal/pipeline"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "daemon"},
	Short:   "Run as a daemon with HTTP status API",
	Long: `Run the pipeline on a schedule while exposing run status, location
state, and Prometheus metrics over HTTP.

An initial full run executes at startup. After that, a full run fires
on every configured interval, and document edits trigger publish-only
passes when watching is enabled.

Example:
  ghlsync serve --config config.yaml`,
	RunE: runServe,
}

var serveFlags struct {
	Host string
	Port int
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	if serveFlags.Host != "" {
		a.cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		a.cfg.Server.HTTPPort = serveFlags.Port
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
	runner := a.runner(opts...)

	server := api.NewServer(a.cfg.Server, a.store, runs, a.metrics, a.logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()

	d := daemon.New(a.cfg.Pipeline, runner, a.logger)
	daemonErr := make(chan error, 1)
	go func() {
		daemonErr <- d.Start(ctx)
	}()

	select {
	case err = <-serverErr:
	case err = <-daemonErr:
	case <-ctx.Done():
	}

	shutdownTimeout := a.cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}
