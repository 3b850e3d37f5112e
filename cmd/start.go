package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"firestige.xyz/tzspd/internal/listener"
	"firestige.xyz/tzspd/internal/log"
	"firestige.xyz/tzspd/internal/metrics"
	"firestige.xyz/tzspd/internal/pipeline"
)

var shutdownTimeout time.Duration

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the collector",
	Long: `
Start one UDP listener per enabled profile and process TZSP datagrams until
SIGINT or SIGTERM.

Examples:
  tzspd start                        # built-in profile on 0.0.0.0:37008, log action only
  tzspd start -c tzspd.yml           # profiles and capture plans from tzspd.yml
  tzspd start -c tzspd.yml -t 30s    # allow 30s for actions to flush on shutdown
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runStart(ctx)
	},
}

func init() {
	startCmd.Flags().DurationVarP(&shutdownTimeout, "timeout", "t", 5*time.Second, "shutdown timeout")
}

func runStart(ctx context.Context) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { err = multierr.Append(err, log.Close()) }()
	logger := log.GetLogger()

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := metricsServer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err = multierr.Append(err, metricsServer.Stop(stopCtx))
		}()
	}

	pipelines, err := pipeline.BuildAll(cfg)
	if err != nil {
		return err
	}
	if len(pipelines) == 0 {
		return fmt.Errorf("no enabled profiles")
	}

	started := 0
	for _, p := range pipelines {
		if err = p.Start(ctx); err != nil {
			break
		}
		started++
	}

	group := listener.NewGroup(pipelines[:started], cfg.Listener)
	if err == nil {
		err = group.Listen(ctx)
	}
	if err == nil {
		logger.WithField("profiles", len(pipelines)).Info("tzspd running")
		err = group.Run(ctx)
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = multierr.Append(err, group.Close())
	for _, p := range pipelines[:started] {
		err = multierr.Append(err, p.Stop(shutdownCtx))
	}

	logger.Info("statistics\r\n" + metrics.Global.String())
	return err
}
