package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the conversations of an export with their turn counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		exportPath, _ := cmd.Flags().GetString("export")
		convs, err := conversation.NewLoader(slog.Default()).LoadFile(exportPath)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tTURNS\tCREATED")
		for _, c := range convs {
			created := "-"
			if !c.CreatedAt.IsZero() {
				created = c.CreatedAt.UTC().Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", c.ID, c.Title, len(c.Messages), len(conversation.ExtractTurns(c)), created)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("export", "e", "conversations.json", "path to the conversation export")
}
