package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show taste engine and feedback queue statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.engine.Stats(ctx)
		if err != nil {
			return fmt.Errorf("reading engine stats: %w", err)
		}
		pending, err := a.queue.PendingCount(ctx)
		if err != nil {
			return fmt.Errorf("reading queue stats: %w", err)
		}

		fmt.Printf("Feedback examples: %d (accept %d, reject %d)\n", stats.Total, stats.AcceptCount, stats.RejectCount)
		fmt.Printf("Golden set size:   %d\n", a.engine.GoldenSize())
		fmt.Printf("Cold start:        %v\n", a.engine.IsColdStart(ctx))
		fmt.Printf("Pending feedback:  %d\n", pending)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
