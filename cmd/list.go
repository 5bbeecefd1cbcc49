package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"chatlens/pkg/report"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list CODE",
	Short: "List the conversations of an access code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}

		return a.list(cmd.Context(), cmd.OutOrStdout(), args[0], listJSON)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON instead of a table")
}

func (a *app) list(ctx context.Context, out io.Writer, code string, asJSON bool) error {
	conversations, err := a.engine.Conversations(ctx, code)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(out, conversations)
	}

	_, err = fmt.Fprintln(out, report.Conversations(code, conversations))
	return err
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(value)
}
