// Package pipeline orchestrates the per-document validation stages: taste
// filter (style), truth critic (logic), claim evolution (history). The
// context builder runs before the external extractor; this package picks up
// the extractor's output.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/critic"
	"github.com/msg43/winnow/internal/evolution"
	"github.com/msg43/winnow/internal/model"
	"github.com/msg43/winnow/internal/promptctx"
	"github.com/msg43/winnow/internal/taste"
)

// Result aggregates one document's pass through the pipeline. Downstream
// surfaces see these counters, never raw errors.
type Result struct {
	Filter    model.FilterSummary            `json:"filter"`
	Critic    model.CriticSummary            `json:"critic"`
	Evolution []model.EvolutionRecord        `json:"evolution,omitempty"`
	Verdicts  map[string]model.CriticVerdict `json:"verdicts,omitempty"`
	Duration  time.Duration                  `json:"duration"`
}

// Pipeline wires the validation stages around one extraction result.
type Pipeline struct {
	filter   *taste.Filter
	critic   *critic.Critic
	detector *evolution.Detector
	builder  *promptctx.Builder
	logger   *zap.Logger
}

// New creates a pipeline. The critic and detector may be nil, in which case
// their stages are skipped — the filter always runs.
func New(filter *taste.Filter, c *critic.Critic, detector *evolution.Detector, builder *promptctx.Builder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		filter:   filter,
		critic:   c,
		detector: detector,
		builder:  builder,
		logger:   logger,
	}
}

// EnrichPrompt injects learned examples and channel context into the
// extraction prompt before the external extractor runs.
func (p *Pipeline) EnrichPrompt(ctx context.Context, prompt string, meta model.DocumentMeta) string {
	if p.builder == nil {
		return prompt
	}
	aggregate := promptctx.BuildAggregate(meta)
	prompt = p.builder.InjectDynamicExamples(ctx, prompt, aggregate)
	prompt = p.builder.InjectChannelContext(ctx, prompt, meta.ChannelID)
	return prompt
}

// Process runs the validation stages over one extraction result, annotating
// and mutating it in place. No single-entity failure aborts the document.
func (p *Pipeline) Process(ctx context.Context, result *model.ExtractionResult, meta model.DocumentMeta) *Result {
	start := time.Now()
	out := &Result{}

	ensureIDs(result)

	// 1. Style check over every entity.
	out.Filter = p.filter.Filter(ctx, result)

	// 2. Logic check over the high-value survivors.
	if p.critic != nil {
		sourceContext := promptctx.BuildAggregate(meta)
		out.Verdicts, out.Critic = p.critic.Validate(ctx, result.All(), sourceContext)
	}

	// 3. History check over claims.
	if p.detector != nil {
		records, kept := p.detector.AnalyzeClaims(ctx, result.Claims, meta.ChannelID, meta.EpisodeDate)
		out.Evolution = records
		result.Claims = kept
	}

	out.Duration = time.Since(start)
	p.logger.Info("document processed",
		zap.Int("discarded", out.Filter.Discarded),
		zap.Int("flagged", out.Filter.Flagged),
		zap.Int("boosted", out.Filter.Boosted),
		zap.Int("kept", out.Filter.Kept),
		zap.Int("critic_reviewed", out.Critic.Reviewed),
		zap.Int("critic_overridden", out.Critic.Overridden),
		zap.Int("evolution_records", len(out.Evolution)),
		zap.Duration("duration", out.Duration),
	)
	return out
}

// ensureIDs assigns IDs to entities that arrived without one.
func ensureIDs(result *model.ExtractionResult) {
	for _, e := range result.All() {
		if withID, ok := e.(interface{ EnsureID() }); ok {
			withID.EnsureID()
		}
	}
}
