package evolution

import (
	"context"

	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/embed"
	"github.com/msg43/winnow/internal/history"
	"github.com/msg43/winnow/internal/model"
)

// Detector classifies new claims against a channel's claim history using the
// same embedding model as the taste engine.
type Detector struct {
	embedder embed.Embedder
	source   history.Source
	strategy ContradictionStrategy
	cfg      model.EvolutionConfig
	logger   *zap.Logger
}

// NewDetector creates a claim evolution detector. A nil strategy selects the
// shipped lexical heuristic.
func NewDetector(embedder embed.Embedder, source history.Source, strategy ContradictionStrategy, cfg model.EvolutionConfig, logger *zap.Logger) *Detector {
	if strategy == nil {
		strategy = LexicalStrategy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		embedder: embedder,
		source:   source,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger,
	}
}

// AnalyzeClaims classifies each new claim against the channel's history and
// returns the records plus the claim list with duplicates removed.
//
// Duplicates are never stored twice — the historical claim's mention count
// is incremented instead. Evolutions and contradictions are kept and linked
// so a claim's position over time stays inspectable. History unavailability
// degrades to classifying everything as novel.
func (d *Detector) AnalyzeClaims(ctx context.Context, claims []*model.Claim, channelID, episodeDate string) ([]model.EvolutionRecord, []*model.Claim) {
	if len(claims) == 0 {
		return nil, claims
	}

	historical := d.fetchHistory(ctx, channelID)
	if len(historical) == 0 {
		records := make([]model.EvolutionRecord, len(claims))
		for i, c := range claims {
			records[i] = model.EvolutionRecord{ClaimText: c.Text(), Status: model.EvolutionNovel}
			c.Notes().EvolutionStatus = model.EvolutionNovel
		}
		return records, claims
	}

	histEmbeddings, ok := d.embedHistory(ctx, historical)
	if !ok {
		// Embedding failure fails open: nothing is dropped.
		records := make([]model.EvolutionRecord, len(claims))
		for i, c := range claims {
			records[i] = model.EvolutionRecord{ClaimText: c.Text(), Status: model.EvolutionNovel}
			c.Notes().EvolutionStatus = model.EvolutionNovel
		}
		return records, claims
	}

	var records []model.EvolutionRecord
	var kept []*model.Claim

	for _, claim := range claims {
		record := d.classify(ctx, claim, historical, histEmbeddings)
		records = append(records, record)

		notes := claim.Notes()
		notes.EvolutionStatus = record.Status
		notes.Similarity = record.Similarity
		notes.EvolvesFromID = record.EvolvesFromID
		notes.ContradictsID = record.ContradictsID

		if record.Status == model.EvolutionDuplicate {
			if err := d.source.IncrementMention(ctx, record.MatchedClaimID); err != nil {
				d.logger.Warn("mention increment failed",
					zap.String("claim_id", record.MatchedClaimID), zap.Error(err))
			}
			continue // Dropped from extraction
		}
		kept = append(kept, claim)
	}

	d.logger.Debug("claim evolution analyzed",
		zap.String("channel", channelID),
		zap.String("episode", episodeDate),
		zap.Int("claims", len(claims)),
		zap.Int("kept", len(kept)),
	)
	return records, kept
}

func (d *Detector) fetchHistory(ctx context.Context, channelID string) []history.KnownClaim {
	if d.source == nil || channelID == "" {
		return nil
	}
	knowledge, err := d.source.ChannelKnowledge(ctx, channelID)
	if err != nil {
		d.logger.Warn("channel history unavailable, treating claims as novel",
			zap.String("channel", channelID), zap.Error(err))
		return nil
	}
	return knowledge.AllClaims()
}

func (d *Detector) embedHistory(ctx context.Context, historical []history.KnownClaim) ([][]float32, bool) {
	texts := make([]string, len(historical))
	for i, h := range historical {
		texts[i] = h.Text
	}
	embeddings, err := d.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		d.logger.Warn("embedding historical claims failed", zap.Error(err))
		return nil, false
	}
	return embeddings, true
}

// classify finds the most similar historical claim and applies the
// similarity bands: below related → novel; related band → evolution, or
// contradiction when the negation signal fires; at or above duplicate →
// duplicate.
func (d *Detector) classify(ctx context.Context, claim *model.Claim, historical []history.KnownClaim, histEmbeddings [][]float32) model.EvolutionRecord {
	record := model.EvolutionRecord{ClaimText: claim.Text(), Status: model.EvolutionNovel}

	claimEmbedding, err := d.embedder.EmbedQuery(ctx, claim.Text())
	if err != nil {
		d.logger.Warn("embedding claim failed, treating as novel", zap.Error(err))
		return record
	}

	best := -1
	bestSim := 0.0
	for i := range historical {
		sim := embed.CosineSimilarity(claimEmbedding, histEmbeddings[i])
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	if best < 0 || bestSim < d.cfg.RelatedThreshold {
		return record
	}

	matched := historical[best]
	record.Similarity = bestSim
	record.MatchedClaimID = matched.ID

	if bestSim >= d.cfg.DuplicateThreshold {
		record.Status = model.EvolutionDuplicate
		return record
	}

	if d.strategy.Contradicts(claim.Text(), matched.Text) {
		record.Status = model.EvolutionContradiction
		record.ContradictsID = matched.ID
		d.logger.Info("contradiction detected",
			zap.String("new", claim.Text()),
			zap.String("prior", matched.Text),
			zap.Float64("similarity", bestSim),
		)
		return record
	}

	record.Status = model.EvolutionEvolution
	record.EvolvesFromID = matched.ID
	return record
}
