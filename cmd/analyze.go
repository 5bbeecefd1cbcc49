package cmd

import (
	"context"
	"fmt"
	"io"

	"chatlens/pkg/analytics"
	"chatlens/pkg/report"

	"github.com/spf13/cobra"
)

var (
	analyzeInteractive   bool
	analyzeJSON          bool
	analyzeMaxWindowDays int
	analyzePasscode      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze CODE CONVERSATION",
	Short: "Report totals, density and response times for a conversation",
	Long: `Loads every shard of the conversation, merges them in time order and reports
message totals, the densest window, gaps between messages and response times.

With --interactive a scrollable viewer also offers word and emoji rankings.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeMaxWindowDays < 0 {
			return fmt.Errorf("--max-window-days must be at least 1")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		if analyzeMaxWindowDays > 0 {
			a = a.withMaxWindowDays(analyzeMaxWindowDays)
		}

		if analyzeInteractive {
			return a.analyzeInteractive(cmd.Context(), args[0], args[1], analyzePasscode)
		}
		return a.analyze(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], analyzeJSON)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVarP(&analyzeInteractive, "interactive", "i", false, "open the interactive report viewer")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print JSON instead of a report")
	analyzeCmd.Flags().IntVar(&analyzeMaxWindowDays, "max-window-days", 0, "longest density window to consider (default from config)")
	analyzeCmd.Flags().StringVar(&analyzePasscode, "passcode", "", "compute passcode for word rankings in the viewer")
}

func (a *app) withMaxWindowDays(days int) *app {
	next := *a
	opts := a.engine.Options()
	opts.MaxWindowDays = days
	next.engine = analytics.NewEngine(a.store, opts, a.log)
	return &next
}

func (a *app) analyze(ctx context.Context, out io.Writer, code string, conversationID string, asJSON bool) error {
	result, err := a.engine.Analyze(ctx, code, conversationID)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(out, result)
	}

	_, err = fmt.Fprintln(out, report.Analysis(result))
	return err
}

func (a *app) analyzeInteractive(ctx context.Context, code string, conversationID string, passcode string) error {
	return report.RunViewer(ctx, fmt.Sprintf("chatlens · %s", conversationID), a.viewerSections(code, conversationID, passcode))
}

func (a *app) viewerSections(code string, conversationID string, passcode string) []report.Section {
	return []report.Section{
		{Title: "Overview", Load: func(ctx context.Context) (string, error) {
			result, err := a.engine.Analyze(ctx, code, conversationID)
			if err != nil {
				return "", err
			}
			return report.Analysis(result), nil
		}},
		{Title: "Words", Load: func(ctx context.Context) (string, error) {
			words, err := a.engine.Words(ctx, code, conversationID, passcode)
			if err != nil {
				return "", err
			}
			return report.Frequencies("Top words", words), nil
		}},
		{Title: "Emojis", Load: func(ctx context.Context) (string, error) {
			emojis, err := a.engine.Emojis(ctx, code, conversationID)
			if err != nil {
				return "", err
			}
			return report.Frequencies("Top emojis", emojis), nil
		}},
	}
}
