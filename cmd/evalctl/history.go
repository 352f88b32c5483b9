package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export interview history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List history records, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate statistics as JSON",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStats,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export history records as json, csv or txt",
	Args:  cobra.NoArgs,
	RunE:  runHistoryExport,
}

var (
	historySearch    string
	historyCandidate string
	historyPosition  string
	historyStatus    string
	historyTags      []string
	historyFormat    string
	historyIDs       []string
	historyOutput    string
)

func init() {
	historyListCmd.Flags().StringVarP(&historySearch, "search", "q", "", "Match candidate, position, notes or tags")
	historyListCmd.Flags().StringVar(&historyCandidate, "candidate", "", "Candidate name contains")
	historyListCmd.Flags().StringVar(&historyPosition, "position", "", "Position contains")
	historyListCmd.Flags().StringVar(&historyStatus, "status", "", "completed, failed or in_progress")
	historyListCmd.Flags().StringSliceVar(&historyTags, "tag", nil, "Record has any of these tags")

	historyExportCmd.Flags().StringVarP(&historyFormat, "format", "f", "csv", "Output format: json, csv or txt")
	historyExportCmd.Flags().StringSliceVar(&historyIDs, "id", nil, "Record id to export, repeatable (default all)")
	historyExportCmd.Flags().StringVarP(&historyOutput, "out", "o", "", "Write the export to this file instead of stdout")

	historyCmd.AddCommand(historyListCmd, historyStatsCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	app, err := newCLIApp(ctx)
	if err != nil {
		return err
	}

	records, err := app.history.FilterRecords(ctx, models.HistoryFilter{
		SearchText:    historySearch,
		CandidateName: historyCandidate,
		Position:      historyPosition,
		Status:        models.RecordStatus(historyStatus),
		Tags:          historyTags,
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCANDIDATE\tPOSITION\tDATE\tSTATUS\tRATING\tTAGS")
	for _, r := range records {
		rating := "-"
		if r.Metadata.OverallRating != nil {
			rating = fmt.Sprintf("%.1f", *r.Metadata.OverallRating)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%v\n",
			r.ID, r.CandidateName, r.Position, r.InterviewDate.Format("2006-01-02"), r.Status, rating, r.Tags)
	}
	return tw.Flush()
}

func runHistoryStats(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	app, err := newCLIApp(ctx)
	if err != nil {
		return err
	}

	stats, err := app.history.GetStatistics(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), "", string(out))
}

func runHistoryExport(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	format, err := services.ParseExportFormat(historyFormat)
	if err != nil {
		return err
	}

	app, err := newCLIApp(ctx)
	if err != nil {
		return err
	}

	body, err := app.history.ExportRecords(ctx, historyIDs, format)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), historyOutput, body)
}
