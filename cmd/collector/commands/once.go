package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/web3-frozen/dedust-pool-monitor/internal/collector"
)

func init() {
	rootCmd.AddCommand(onceCmd)
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Runs a single collection cycle and exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.collector.RunOnce(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "status=%s pools=%d duration=%s\n",
			res.Status, res.Pools, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
		if res.Status == collector.StatusSkipped {
			return res.Err
		}
		return nil
	},
}
