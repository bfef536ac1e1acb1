package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cloudpush/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage transfer-history records used for payload lookups",
	}
	historyCmd.AddCommand(newHistoryAddCommand(ctx))
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	return historyCmd
}

func newHistoryAddCommand(ctx *commandContext) *cobra.Command {
	var req api.HistoryRequest
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a transfer-history record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(req.Dest) == "" {
				return fmt.Errorf("--dest is required")
			}
			client, err := ctx.client(0)
			if err != nil {
				return err
			}
			rec, err := client.AddHistory(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("add history: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded transfer %d for %s\n", rec.ID, rec.Dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Src, "src", "", "Source path")
	cmd.Flags().StringVar(&req.Dest, "dest", "", "Destination path (matched against targetPath)")
	cmd.Flags().StringVar(&req.Title, "title", "", "Title")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest transfer-history records",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client(0)
			if err != nil {
				return err
			}
			records, err := client.ListHistory(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, api.HistoryListResponse{Records: records})
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No transfer history")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{strconv.FormatInt(rec.ID, 10), rec.Title, rec.Src, rec.Dest, rec.CreatedAt})
			}
			newPrinter(cmd).table([]string{"ID", "Title", "Source", "Destination", "Created"}, rows, 1)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
