package model

import "time"

// FilterAction is the taste filter's decision for one entity.
type FilterAction string

const (
	ActionDiscard FilterAction = "discard" // Near-duplicate of a rejection; dropped entirely
	ActionFlag    FilterAction = "flag"    // Similar to a rejection; retained but marked for review
	ActionBoost   FilterAction = "boost"   // Near-duplicate of an acceptance; importance boosted
	ActionKeep    FilterAction = "keep"    // No learned pattern matched
)

// FilterVerdict is the taste filter's per-entity result. Ephemeral; the
// durable outcome is the annotation written onto the entity itself.
type FilterVerdict struct {
	Action             FilterAction `json:"action"`
	SimilarityToReject float64      `json:"similarity_to_reject"`
	SimilarityToAccept float64      `json:"similarity_to_accept"`
	MatchedExample     string       `json:"matched_example,omitempty"`
	ReasonCategory     string       `json:"reason_category,omitempty"`
	ScoreAdjustment    float64      `json:"score_adjustment,omitempty"`
}

// FilterSummary aggregates one filter pass over a document.
type FilterSummary struct {
	Discarded int `json:"discarded"`
	Flagged   int `json:"flagged"`
	Boosted   int `json:"boosted"`
	Kept      int `json:"kept"`
}

// CriticAction is the truth critic's decision for one reviewed entity.
type CriticAction string

const (
	CriticApprove  CriticAction = "approve"  // Classification is correct
	CriticOverride CriticAction = "override" // Entity type is wrong; CorrectedKind is set
	CriticFlag     CriticAction = "flag"     // Uncertain; route to human review
)

// CriticVerdict is the truth critic's structured output for one entity.
// Reasoning always precedes the verdict in the underlying model output.
type CriticVerdict struct {
	Action        CriticAction `json:"action"`
	Reasoning     string       `json:"reasoning"`
	OriginalKind  EntityKind   `json:"original_type"`
	CorrectedKind EntityKind   `json:"corrected_type,omitempty"`
	Confidence    float64      `json:"confidence"`
	Explanation   string       `json:"explanation,omitempty"`
}

// CriticSummary aggregates one critic pass over a document.
type CriticSummary struct {
	Reviewed   int           `json:"reviewed"`
	Approved   int           `json:"approved"`
	Overridden int           `json:"overridden"`
	Flagged    int           `json:"flagged"`
	Failures   int           `json:"failures"`
	Latency    time.Duration `json:"latency"`
}

// EvolutionStatus classifies a new claim relative to a channel's history.
type EvolutionStatus string

const (
	EvolutionNovel         EvolutionStatus = "novel"
	EvolutionDuplicate     EvolutionStatus = "duplicate"
	EvolutionEvolution     EvolutionStatus = "evolution"
	EvolutionContradiction EvolutionStatus = "contradiction"
)

// EvolutionRecord is the detector's result for one new claim against the
// channel's historical claims.
type EvolutionRecord struct {
	ClaimText      string          `json:"claim_text"`
	Status         EvolutionStatus `json:"status"`
	Similarity     float64         `json:"similarity"`
	MatchedClaimID string          `json:"matched_claim_id,omitempty"`
	EvolvesFromID  string          `json:"evolves_from_id,omitempty"`
	ContradictsID  string          `json:"contradicts_id,omitempty"`
}
