package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/flowjudge/internal/conversation"
	"github.com/MikeSquared-Agency/flowjudge/internal/flow"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one conversation of an export and print the result as JSON",
	Long: `Analyze reconstructs the requested conversation (the longest one when no id
is given), classifies each turn and writes the flow analysis as JSON to
stdout or to --out.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringP("export", "e", "conversations.json", "path to the conversation export")
	analyzeCmd.Flags().StringP("conversation", "c", "", "conversation id (default: longest conversation)")
	analyzeCmd.Flags().StringP("out", "o", "", "write the analysis to this file instead of stdout")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	exportPath, _ := cmd.Flags().GetString("export")
	convID, _ := cmd.Flags().GetString("conversation")
	outPath, _ := cmd.Flags().GetString("out")
	logger := slog.Default()

	convs, err := conversation.NewLoader(logger).LoadFile(exportPath)
	if err != nil {
		return err
	}

	var conv conversation.Conversation
	if convID != "" {
		if conv, err = conversation.Find(convs, convID); err != nil {
			return err
		}
	} else {
		var ok bool
		if conv, ok = conversation.Longest(convs); !ok {
			return fmt.Errorf("export %s: no conversations: %w", exportPath, conversation.ErrNotFound)
		}
	}

	turns := conversation.ExtractTurns(conv)
	logger.Info("conversation selected",
		"conversation_id", conv.ID,
		"title", conv.Title,
		"messages", len(conv.Messages),
		"turns", len(turns),
	)

	analyzer, err := newAnalyzer(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// An interrupted run still writes the turns classified so far.
	analysis, analyzeErr := analyzer.Analyze(ctx, turns, conv.Title)
	if analysis == nil {
		return analyzeErr
	}
	if err := writeAnalysis(outPath, analysis); err != nil {
		return err
	}
	if outPath != "" {
		printSummary(cmd, analysis, outPath)
	}
	return analyzeErr
}

func writeAnalysis(path string, a *flow.Analysis) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printSummary(cmd *cobra.Command, a *flow.Analysis, path string) {
	out := cmd.OutOrStdout()
	fs := a.FlowSummary
	fmt.Fprintf(out, "=== %s ===\n", a.ConversationTitle)
	fmt.Fprintf(out, "Turns analyzed:   %d", a.TotalTurns)
	if a.Partial {
		fmt.Fprint(out, " (partial)")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "High value ratio: %.2f\n", fs.HighValueRatio)
	fmt.Fprintf(out, "Low value ratio:  %.2f\n", fs.LowValueRatio)
	fmt.Fprintf(out, "Topic shifts:     %d\n", fs.TopicShiftsCount)
	fmt.Fprintf(out, "Efficiency score: %.2f\n", fs.EfficiencyScore)
	if n := a.Fallbacks(); n > 0 {
		fmt.Fprintf(out, "Fallbacks:        %d\n", n)
	}
	fmt.Fprintf(out, "Result saved to %s\n", path)
}
