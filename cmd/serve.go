package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chatlens/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API",
	Long:  "Runs the analysis API with health, readiness and Prometheus endpoints, plus the retention sweeper when enabled.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gin.SetMode(gin.ReleaseMode)
		return a.serve(runCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func (a *app) serve(ctx context.Context) error {
	log := a.log.With("component", "cmd.serve")

	svc, err := server.NewService(a.engine, server.Options{
		Address:      a.cfg.Server.Address(),
		AllowOrigins: a.cfg.Server.AllowOrigins,
		DataRoot:     a.guard.Root(),
	}, a.log)
	if err != nil {
		return fmt.Errorf("initialize API: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if a.cfg.Retention.Enabled {
		sweeper, err := a.newSweeper()
		if err != nil {
			return err
		}
		if err := sweeper.Start(groupCtx); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	group.Go(func() error {
		return svc.Run(groupCtx)
	})

	log.Info("chatlens started", "address", a.cfg.Server.Address(), "data_root", a.guard.Root(), "retention", a.cfg.Retention.Enabled)
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("API runtime failed", "error", err)
		return err
	}

	return nil
}
