package taste

import (
	"context"

	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/model"
)

// Filter is the fast, inline style check that runs on every extracted
// entity. It recognizes patterns similar to past judgments; novel
// misclassifications are deliberately left to the truth critic.
type Filter struct {
	engine *Engine
	cfg    model.TasteConfig
	logger *zap.Logger
}

// NewFilter creates a taste filter over the given engine.
func NewFilter(engine *Engine, cfg model.TasteConfig, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{engine: engine, cfg: cfg, logger: logger}
}

// CheckEntity evaluates one entity text against learned feedback.
//
// Reject similarity is always evaluated before accept similarity: a near
// duplicate of a past rejection must never be boosted. Store failures
// degrade to keep — infrastructure trouble never silently discards content.
func (f *Filter) CheckEntity(ctx context.Context, text string, kind model.EntityKind) model.FilterVerdict {
	verdict := model.FilterVerdict{Action: model.ActionKeep}

	reject := model.VerdictReject
	rejects, err := f.engine.QuerySimilar(ctx, text, kind, 1, &reject)
	if err != nil {
		f.logger.Warn("reject lookup failed, keeping entity",
			zap.String("kind", string(kind)), zap.Error(err))
		return verdict
	}
	if len(rejects) > 0 {
		match := rejects[0]
		verdict.SimilarityToReject = match.Similarity
		switch {
		case match.Similarity > f.cfg.DiscardThreshold:
			verdict.Action = model.ActionDiscard
			verdict.MatchedExample = match.Text
			verdict.ReasonCategory = match.ReasonCategory()
			return verdict
		case match.Similarity > f.cfg.FlagThreshold:
			verdict.Action = model.ActionFlag
			verdict.MatchedExample = match.Text
			verdict.ReasonCategory = match.ReasonCategory()
			return verdict
		}
	}

	accept := model.VerdictAccept
	accepts, err := f.engine.QuerySimilar(ctx, text, kind, 1, &accept)
	if err != nil {
		f.logger.Warn("accept lookup failed, keeping entity",
			zap.String("kind", string(kind)), zap.Error(err))
		return verdict
	}
	if len(accepts) > 0 {
		match := accepts[0]
		verdict.SimilarityToAccept = match.Similarity
		if match.Similarity > f.cfg.BoostThreshold {
			verdict.Action = model.ActionBoost
			verdict.MatchedExample = match.Text
			verdict.ReasonCategory = match.ReasonCategory()
			verdict.ScoreAdjustment = f.cfg.PositiveEchoBoost
		}
	}
	return verdict
}

// Filter runs the style check over every entity in the extraction result,
// annotating and mutating it in place. Discarded entities are removed;
// flagged entities stay but are marked; boosted entities get the Positive
// Echo score adjustment, clamped to the importance ceiling.
func (f *Filter) Filter(ctx context.Context, result *model.ExtractionResult) model.FilterSummary {
	var summary model.FilterSummary

	for _, entity := range result.All() {
		verdict := f.CheckEntity(ctx, entity.Text(), entity.Kind())
		notes := entity.Notes()

		switch verdict.Action {
		case model.ActionDiscard:
			result.Remove(entity)
			summary.Discarded++
			f.logger.Info("discarded entity",
				zap.String("kind", string(entity.Kind())),
				zap.String("text", entity.Text()),
				zap.String("matched_rejection", verdict.MatchedExample),
				zap.Float64("similarity", verdict.SimilarityToReject),
			)

		case model.ActionFlag:
			notes.Flagged = true
			notes.FlagReason = verdict.ReasonCategory
			notes.SimilarRejection = verdict.MatchedExample
			summary.Flagged++

		case model.ActionBoost:
			entity.SetImportance(entity.Importance() + verdict.ScoreAdjustment)
			notes.PositiveEcho = true
			notes.EchoReason = verdict.MatchedExample
			summary.Boosted++

		default:
			summary.Kept++
		}
	}

	f.logger.Debug("taste filter pass complete",
		zap.Int("discarded", summary.Discarded),
		zap.Int("flagged", summary.Flagged),
		zap.Int("boosted", summary.Boosted),
		zap.Int("kept", summary.Kept),
	)
	return summary
}
