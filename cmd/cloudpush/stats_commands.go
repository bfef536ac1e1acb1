package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cloudpush/internal/api"
	"cloudpush/internal/state"
	"cloudpush/internal/stats"
)

const defaultRecentLimit = 10

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show delivery counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := fetchStats(cmd, ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			rows := [][]string{
				{"Total", strconv.Itoa(resp.Total)},
				{"Success", strconv.Itoa(resp.Success)},
				{"Failed", strconv.Itoa(resp.Failed)},
				{"Success rate", fmt.Sprintf("%.1f%%", resp.SuccessRate)},
			}
			newPrinter(cmd).table([]string{"Metric", "Value"}, rows, 2)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRecentCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent pushes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			records, err := fetchRecent(cmd, ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.RecentResponse{Records: records})
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pushes recorded yet")
				return nil
			}
			p := newPrinter(cmd)
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{rec.Timestamp, rec.Title, rec.TargetPath, p.outcome(rec.Success)})
			}
			p.table([]string{"Time", "Title", "Path", "Result"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultRecentLimit, "Number of records to show (0 for all)")
	return cmd
}

// fetchStats asks the daemon and falls back to the state database.
func fetchStats(cmd *cobra.Command, ctx *commandContext) (api.StatsResponse, error) {
	client, err := ctx.client(0)
	if err != nil {
		return api.StatsResponse{}, err
	}
	resp, err := client.Stats(cmd.Context())
	if err == nil || !daemonUnavailable(err) {
		return resp, err
	}

	err = ctx.withStore(func(store *state.Store) error {
		counters, err := stats.NewStore(store).Stats(cmd.Context())
		if err != nil {
			return err
		}
		resp = api.FromCounters(counters)
		return nil
	})
	return resp, err
}

func fetchRecent(cmd *cobra.Command, ctx *commandContext, limit int) ([]api.RecentPush, error) {
	client, err := ctx.client(0)
	if err != nil {
		return nil, err
	}
	records, err := client.Recent(cmd.Context(), limit)
	if err == nil || !daemonUnavailable(err) {
		return records, err
	}

	err = ctx.withStore(func(store *state.Store) error {
		recs, err := stats.NewStore(store).Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		records = api.FromRecentPushes(recs)
		return nil
	})
	return records, err
}
