package promptctx

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/history"
	"github.com/msg43/winnow/internal/model"
	"github.com/msg43/winnow/internal/taste"
)

// InstructionsMarker is the line in the extraction prompt before which
// dynamic blocks are inserted. Prompts without the marker get the blocks
// appended.
const InstructionsMarker = "## EXTRACTION INSTRUCTIONS"

// Builder injects learned examples and channel knowledge into the upstream
// extraction prompt. Every injection degrades silently to a no-op when its
// data source is unavailable.
type Builder struct {
	engine *taste.Engine
	source history.Source
	cfg    model.ContextConfig
	logger *zap.Logger
}

// NewBuilder creates a context builder.
func NewBuilder(engine *taste.Engine, source history.Source, cfg model.ContextConfig, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{engine: engine, source: source, cfg: cfg, logger: logger}
}

// InjectDynamicExamples inserts "avoid this pattern" / "emulate this
// pattern" blocks built from feedback examples relevant to the aggregate,
// immediately before the extraction instructions.
func (b *Builder) InjectDynamicExamples(ctx context.Context, prompt, aggregate string) string {
	if b.engine == nil || strings.TrimSpace(aggregate) == "" {
		return prompt
	}

	rejects := b.fetchExamples(ctx, aggregate, model.VerdictReject, b.cfg.RejectExamples)
	accepts := b.fetchExamples(ctx, aggregate, model.VerdictAccept, b.cfg.AcceptExamples)
	if len(rejects) == 0 && len(accepts) == 0 {
		return prompt
	}

	var block strings.Builder
	block.WriteString("## LEARNED PREFERENCES\n")
	block.WriteString("These examples come from human feedback on past extractions.\n\n")
	for _, m := range rejects {
		fmt.Fprintf(&block, "AVOID this pattern (%s was rejected: %s):\n  %q\n",
			m.Metadata["entity_type"], m.ReasonCategory(), m.Text)
	}
	for _, m := range accepts {
		fmt.Fprintf(&block, "EMULATE this pattern (%s was accepted):\n  %q\n",
			m.Metadata["entity_type"], m.Text)
	}
	block.WriteString("\n")

	return insertBeforeMarker(prompt, block.String())
}

// fetchExamples queries across entity kinds and keeps the best matches above
// the similarity floor.
func (b *Builder) fetchExamples(ctx context.Context, aggregate string, verdict model.Verdict, limit int) []taste.Match {
	if limit <= 0 {
		return nil
	}
	var all []taste.Match
	for _, kind := range model.Kinds {
		matches, err := b.engine.QuerySimilar(ctx, aggregate, kind, limit, &verdict)
		if err != nil {
			b.logger.Debug("example lookup failed, skipping injection",
				zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		for _, m := range matches {
			if m.Similarity >= b.cfg.MinSimilarity {
				all = append(all, m)
			}
		}
	}
	// Keep the strongest matches overall, not per kind.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Similarity > all[j].Similarity
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// InjectChannelContext inserts the channel's strict jargon registry and the
// evolution context of its prior claims.
func (b *Builder) InjectChannelContext(ctx context.Context, prompt, channelID string) string {
	if b.source == nil || channelID == "" {
		return prompt
	}
	knowledge, err := b.source.ChannelKnowledge(ctx, channelID)
	if err != nil {
		b.logger.Debug("channel knowledge unavailable, skipping injection",
			zap.String("channel", channelID), zap.Error(err))
		return prompt
	}

	var block strings.Builder
	if len(knowledge.Jargon) > 0 {
		block.WriteString("## JARGON REGISTRY (strict)\n")
		block.WriteString("These terms are already defined for this channel. Reuse the existing definitions; flag a conflict instead of redefining.\n")
		for _, j := range knowledge.Jargon {
			fmt.Fprintf(&block, "- %s: %s\n", j.Term, j.Definition)
		}
		block.WriteString("\n")
	}

	claims := knowledge.AllClaims()
	if len(claims) > 0 {
		block.WriteString("## EVOLUTION CONTEXT\n")
		block.WriteString("Claims already captured for this channel. Skip near-duplicates; explicitly surface contradictions.\n")
		for _, c := range claims {
			fmt.Fprintf(&block, "- %s\n", c.Text)
		}
		block.WriteString("\n")
	}

	if block.Len() == 0 {
		return prompt
	}
	return insertBeforeMarker(prompt, block.String())
}

// insertBeforeMarker places block immediately before the extraction
// instructions, or appends when the marker is absent.
func insertBeforeMarker(prompt, block string) string {
	if idx := strings.Index(prompt, InstructionsMarker); idx >= 0 {
		return prompt[:idx] + block + prompt[idx:]
	}
	return prompt + "\n" + block
}
