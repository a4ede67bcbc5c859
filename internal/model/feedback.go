package model

import "time"

// Verdict is a human Accept/Reject judgment on an extracted entity.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictReject Verdict = "reject"
)

// ValidVerdict reports whether v is a known verdict.
func ValidVerdict(v string) bool {
	return Verdict(v) == VerdictAccept || Verdict(v) == VerdictReject
}

// GoldenSourceID tags feedback examples shipped with the system so they can
// be located and replaced atomically when the golden set version changes.
const GoldenSourceID = "golden_set"

// FeedbackExample is one human judgment about an extracted entity. It is
// immutable once stored and owned exclusively by the taste engine; its
// embedding is derived inside the vector index, never stored redundantly.
type FeedbackExample struct {
	EntityType     EntityKind `json:"entity_type" yaml:"entity_type"`
	EntityText     string     `json:"entity_text" yaml:"entity_text"`
	Verdict        Verdict    `json:"verdict" yaml:"verdict"`
	ReasonCategory string     `json:"reason_category,omitempty" yaml:"reason_category,omitempty"`
	UserNotes      string     `json:"user_notes,omitempty" yaml:"user_notes,omitempty"`
	SourceID       string     `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// IsGolden reports whether the example came from the shipped golden set.
func (e FeedbackExample) IsGolden() bool {
	return e.SourceID == GoldenSourceID
}

// GoldenSet is the versioned bootstrap bundle shipped with the system.
// Re-ingested automatically when SchemaVersion changes.
type GoldenSet struct {
	SchemaVersion string            `json:"schema_version" yaml:"schema_version"`
	Examples      []FeedbackExample `json:"examples" yaml:"examples"`
}

// PendingFeedback is one durable queue row awaiting ingestion by the
// feedback processor. Created by the sync boundary; consumed and terminally
// marked (success or failure) by the processor.
type PendingFeedback struct {
	QueueID      string     `json:"queue_id"`
	FeedbackJSON string     `json:"feedback_json"`
	ReceivedAt   time.Time  `json:"received_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	Attempts     int        `json:"attempts"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// TasteStats summarizes the engine's stored feedback.
type TasteStats struct {
	Total       int `json:"total_examples"`
	AcceptCount int `json:"accept_count"`
	RejectCount int `json:"reject_count"`
}
