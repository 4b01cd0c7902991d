package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent scrape runs",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := signalContext()
		defer cancel()

		rt := setup(ctx)
		defer rt.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := rt.store.Runs(ctx, limit)
		if err != nil {
			rt.logger.Fatal("listing runs", zap.Error(err))
		}
		printJSON(cmd, runs)
	},
}

var runLogsCmd = &cobra.Command{
	Use:   "logs <run-id>",
	Short: "Show the per-source logs of a run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		rt := setup(ctx)
		defer rt.Close()

		logs, err := rt.store.RunLogs(ctx, args[0])
		if err != nil {
			rt.logger.Fatal("reading run logs", zap.String("run_id", args[0]), zap.Error(err))
		}
		printJSON(cmd, logs)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runLogsCmd)

	runsCmd.Flags().Int("limit", 20, "number of runs to show")
}
