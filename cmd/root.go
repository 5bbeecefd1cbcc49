/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"chatlens/pkg/analytics"
	"chatlens/pkg/archive"
	"chatlens/pkg/config"
	"chatlens/pkg/logger"

	"github.com/spf13/cobra"
)

var dataRootFlag string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatlens",
	Short: "Analyze exported chat archives",
	Long: `chatlens reads extracted chat-log exports and reports message density,
gap and response times, and word, emoji and substring frequencies.

Archives live under <data_root>/<access_code>/inbox/<conversation>/message_N.json.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataRootFlag, "data-root", "", "override storage.data_root")
}

// app bundles the wiring every command needs.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	guard  *archive.Guard
	store  *archive.Store
	engine *analytics.Engine
}

// loadApp reads configuration, installs the default logger and builds the
// engine over the archive store.
func loadApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataRootFlag != "" {
		cfg.Storage.DataRoot = dataRootFlag
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return newApp(cfg, appLogger)
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	guard, err := archive.NewGuard(cfg.Storage.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("open data root: %w", err)
	}

	store := archive.NewStore(guard, log)
	engine := analytics.NewEngine(store, analytics.Options{
		MaxWindowDays:         cfg.Analysis.MaxWindowDays,
		TopN:                  cfg.Analysis.TopN,
		WordPasscodeThreshold: cfg.Analysis.WordPasscodeThreshold,
		ComputePasscode:       cfg.Analysis.ComputePasscode,
	}, log)

	return &app{cfg: cfg, log: log, guard: guard, store: store, engine: engine}, nil
}
