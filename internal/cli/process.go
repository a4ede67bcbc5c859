package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/msg43/winnow/internal/model"
)

var (
	processOut     string
	processMeta    string
	processTimeout time.Duration
	noCritic       bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <extraction.json>",
	Short: "Validate one extraction result and emit the annotated entities",
	Long: `Process runs an upstream extraction result through the validation
pipeline: taste filter (style), truth critic (logic), claim evolution
(channel history). Entities are annotated in place; discarded entities
and duplicate claims are removed.

Example:
  winnow process extraction.json --meta episode.json --out validated.json
  winnow process extraction.json --no-critic`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processOut, "out", "", "output path for annotated JSON (default: stdout)")
	processCmd.Flags().StringVar(&processMeta, "meta", "", "document metadata JSON (title, tags, channel_id, ...)")
	processCmd.Flags().DurationVar(&processTimeout, "timeout", 5*time.Minute, "overall processing timeout")
	processCmd.Flags().BoolVar(&noCritic, "no-critic", false, "skip the LLM truth critic stage")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	var result model.ExtractionResult
	if err := readJSONFile(args[0], &result); err != nil {
		return fmt.Errorf("reading extraction result: %w", err)
	}

	var meta model.DocumentMeta
	if processMeta != "" {
		if err := readJSONFile(processMeta, &meta); err != nil {
			return fmt.Errorf("reading metadata: %w", err)
		}
	}

	a, err := newApp(ctx, appOptions{critic: !noCritic, processor: true})
	if err != nil {
		return err
	}
	defer a.Close()

	report := a.pipeline.Process(ctx, &result, meta)

	out := struct {
		Entities *model.ExtractionResult `json:"entities"`
		Report   any                     `json:"report"`
	}{Entities: &result, Report: report}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	if processOut == "" {
		fmt.Println(string(encoded))
		return nil
	}
	if err := os.WriteFile(processOut, encoded, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote: %s (discarded %d, flagged %d, boosted %d, kept %d)\n",
		processOut, report.Filter.Discarded, report.Filter.Flagged, report.Filter.Boosted, report.Filter.Kept)
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
