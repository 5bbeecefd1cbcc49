package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"chatlens/pkg/retention"

	"github.com/spf13/cobra"
)

var sweepJSON bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired uploads and stale chunks once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		return a.sweep(cmd.Context(), cmd.OutOrStdout(), sweepJSON)
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().BoolVar(&sweepJSON, "json", false, "print JSON instead of a summary")
}

func (a *app) newSweeper() (*retention.Sweeper, error) {
	return retention.NewSweeper(retention.Options{
		DataRoot:    a.guard.Root(),
		ChunkRoot:   a.cfg.Storage.ChunkRoot,
		MaxAge:      time.Duration(a.cfg.Retention.MaxAgeHours) * time.Hour,
		ChunkMaxAge: time.Duration(a.cfg.Retention.ChunkMaxAgeMinutes) * time.Minute,
		Schedule:    a.cfg.Retention.Schedule,
	}, a.log)
}

func (a *app) sweep(ctx context.Context, out io.Writer, asJSON bool) error {
	sweeper, err := a.newSweeper()
	if err != nil {
		return err
	}

	result, err := sweeper.Sweep(ctx)
	if asJSON {
		if writeErr := writeJSON(out, result); writeErr != nil {
			return writeErr
		}
	} else {
		fmt.Fprintf(out, "removed %d expired uploads and %d stale chunks\n", len(result.Uploads), len(result.Chunks))
	}

	return err
}
