package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/msg43/winnow/internal/model"
)

var enrichMeta string

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich <prompt.txt>",
	Short: "Inject learned examples and channel context into an extraction prompt",
	Long: `Enrich reads an extraction prompt and inserts the learned-preference
blocks (patterns to avoid and emulate) plus the channel's jargon registry
and prior claims, immediately before the extraction instructions.

Example:
  winnow enrich prompt.txt --meta episode.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)
	enrichCmd.Flags().StringVar(&enrichMeta, "meta", "", "document metadata JSON")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	prompt, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading prompt: %w", err)
	}

	var meta model.DocumentMeta
	if enrichMeta != "" {
		if err := readJSONFile(enrichMeta, &meta); err != nil {
			return fmt.Errorf("reading metadata: %w", err)
		}
	}

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(a.pipeline.EnrichPrompt(ctx, string(prompt), meta))
	return nil
}
