package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"chatlens/pkg/analytics"
	"chatlens/pkg/report"

	"github.com/spf13/cobra"
)

var (
	frequencyJSON  bool
	wordsPasscode  string
	windowDays     int
	windowModeFlag string
)

var wordsCmd = &cobra.Command{
	Use:   "words CODE CONVERSATION",
	Short: "Rank the most used words",
	Long:  "Ranks lowercase words of two or more letters, skipping common stop words. Large conversations need the compute passcode.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		return a.words(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], wordsPasscode, frequencyJSON)
	},
}

var emojisCmd = &cobra.Command{
	Use:   "emojis CODE CONVERSATION",
	Short: "Rank the most used emojis",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		return a.emojis(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], frequencyJSON)
	},
}

var countCmd = &cobra.Command{
	Use:   "count CODE CONVERSATION TEXT",
	Short: "Count case-insensitive occurrences of TEXT",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		return a.count(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], args[2], frequencyJSON)
	},
}

var windowCmd = &cobra.Command{
	Use:   "window CODE CONVERSATION PARTICIPANT",
	Short: "Find a participant's most or least active stretch",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, ok := analytics.ParseWindowMode(windowModeFlag)
		if !ok {
			return fmt.Errorf("unknown --mode %q (want max or min)", windowModeFlag)
		}

		a, err := loadApp()
		if err != nil {
			return err
		}

		return a.participantWindow(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], args[2], windowDays, mode, frequencyJSON)
	},
}

func init() {
	for _, command := range []*cobra.Command{wordsCmd, emojisCmd, countCmd, windowCmd} {
		rootCmd.AddCommand(command)
		command.Flags().BoolVar(&frequencyJSON, "json", false, "print JSON instead of a table")
	}
	wordsCmd.Flags().StringVar(&wordsPasscode, "passcode", "", "compute passcode for large conversations")
	windowCmd.Flags().IntVar(&windowDays, "days", 1, "window length in days")
	windowCmd.Flags().StringVar(&windowModeFlag, "mode", "max", "max for the busiest stretch, min for the quietest")
}

func (a *app) words(ctx context.Context, out io.Writer, code string, conversationID string, passcode string, asJSON bool) error {
	words, err := a.engine.Words(ctx, code, conversationID, passcode)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, map[string]any{"words": words})
	}

	_, err = fmt.Fprintln(out, report.Frequencies("Top words", words))
	return err
}

func (a *app) emojis(ctx context.Context, out io.Writer, code string, conversationID string, asJSON bool) error {
	emojis, err := a.engine.Emojis(ctx, code, conversationID)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, map[string]any{"emojis": emojis})
	}

	_, err = fmt.Fprintln(out, report.Frequencies("Top emojis", emojis))
	return err
}

func (a *app) count(ctx context.Context, out io.Writer, code string, conversationID string, needle string, asJSON bool) error {
	count, err := a.engine.CountSubstring(ctx, code, conversationID, needle)
	if err != nil {
		return err
	}
	counted := strings.ToLower(needle)
	if asJSON {
		return writeJSON(out, map[string]any{"string": counted, "count": count})
	}

	_, err = fmt.Fprintf(out, "%q appears %d times\n", counted, count)
	return err
}

func (a *app) participantWindow(ctx context.Context, out io.Writer, code string, conversationID string, participant string, days int, mode analytics.WindowMode, asJSON bool) error {
	window, err := a.engine.ParticipantWindow(ctx, code, conversationID, participant, days, mode)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, window)
	}

	_, err = fmt.Fprintln(out, report.ParticipantWindow(window, mode))
	return err
}
