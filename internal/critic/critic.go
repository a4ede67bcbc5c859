package critic

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/msg43/winnow/internal/model"
)

// minOverrideConfidence is the floor below which an override verdict is
// downgraded to a flag.
const minOverrideConfidence = 0.8

// Critic reviews high-value entities with a reasoning LLM. Each review is a
// blocking round-trip measured in seconds, so selection is strict: only
// entities above the review threshold, at most MaxEntitiesPerRun per
// document, highest importance first, already-flagged entities skipped.
type Critic struct {
	client  ChatClient
	cfg     model.CriticConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a critic over the given chat client.
func New(client ChatClient, cfg model.CriticConfig, logger *zap.Logger) *Critic {
	if logger == nil {
		logger = zap.NewNop()
	}
	cps := cfg.CallsPerSecond
	if cps <= 0 {
		cps = 2
	}
	return &Critic{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cps), 1),
		logger:  logger,
	}
}

// selectCandidates applies the review budget to a document's entities.
func (c *Critic) selectCandidates(entities []model.Entity) []model.Entity {
	var candidates []model.Entity
	for _, e := range entities {
		if e.Notes().Flagged {
			continue
		}
		if e.Importance() < c.cfg.ReviewThreshold {
			continue
		}
		candidates = append(candidates, e)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Importance() > candidates[j].Importance()
	})
	if max := c.cfg.MaxEntitiesPerRun; max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

// Validate reviews the selected entities, annotates them in place, and
// returns per-entity verdicts keyed by entity ID plus an aggregate summary.
//
// Document-level cancellation stops dispatching further reviews; an
// in-flight call is bounded by the per-call timeout, and a timed-out call is
// treated exactly like a parse failure (approve, confidence 0).
func (c *Critic) Validate(ctx context.Context, entities []model.Entity, sourceContext string) (map[string]model.CriticVerdict, model.CriticSummary) {
	verdicts := make(map[string]model.CriticVerdict)
	var summary model.CriticSummary
	start := time.Now()

	for _, entity := range c.selectCandidates(entities) {
		if ctx.Err() != nil {
			break
		}
		if err := c.limiter.Wait(ctx); err != nil {
			break
		}

		verdict := c.review(ctx, entity.Kind(), entity.Text(), sourceContext)
		verdicts[entity.ID()] = verdict
		summary.Reviewed++

		notes := entity.Notes()
		switch verdict.Action {
		case model.CriticApprove:
			summary.Approved++
			if verdict.Confidence == 0 {
				summary.Failures++
			}
		case model.CriticOverride:
			notes.Overridden = true
			notes.CorrectedKind = verdict.CorrectedKind
			notes.CriticReason = verdict.Explanation
			summary.Overridden++
			c.logger.Info("critic override",
				zap.String("text", entity.Text()),
				zap.String("from", string(verdict.OriginalKind)),
				zap.String("to", string(verdict.CorrectedKind)),
				zap.Float64("confidence", verdict.Confidence),
			)
		case model.CriticFlag:
			notes.Flagged = true
			notes.FlagReason = "critic_uncertain"
			notes.CriticReason = verdict.Explanation
			summary.Flagged++
		}
	}

	summary.Latency = time.Since(start)
	return verdicts, summary
}

// review performs one LLM round-trip. Every failure path funnels through the
// approveOnFailure policy.
func (c *Critic) review(ctx context.Context, kind model.EntityKind, text, sourceContext string) model.CriticVerdict {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := c.client.Complete(callCtx, systemPrompt, buildReviewPrompt(string(kind), text, sourceContext))
	if err != nil {
		revErr := &ReviewError{Stage: "call", Err: err}
		c.logger.Warn("critic call failed, approving by policy",
			zap.String("kind", string(kind)), zap.Error(err))
		return approveOnFailure(kind, revErr)
	}

	verdict, revErr := parseVerdict(output, kind, minOverrideConfidence)
	if revErr != nil {
		c.logger.Warn("critic output unparseable, approving by policy",
			zap.String("kind", string(kind)), zap.Error(revErr))
		return approveOnFailure(kind, revErr)
	}
	return verdict
}
