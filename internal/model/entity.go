package model

import "github.com/google/uuid"

// EntityKind categorizes the extracted entities the pipeline operates on
type EntityKind string

const (
	KindClaim   EntityKind = "claim"   // Factual assertion made in the source
	KindJargon  EntityKind = "jargon"  // Domain term with a definition
	KindPerson  EntityKind = "person"  // Named individual
	KindConcept EntityKind = "concept" // Conceptual framework or mental model
)

// Kinds lists every entity kind in pipeline order.
var Kinds = []EntityKind{KindClaim, KindJargon, KindPerson, KindConcept}

// ValidKind reports whether k is a known entity kind.
func ValidKind(k string) bool {
	switch EntityKind(k) {
	case KindClaim, KindJargon, KindPerson, KindConcept:
		return true
	}
	return false
}

const (
	// MinImportance and MaxImportance bound every importance score.
	MinImportance = 0.0
	MaxImportance = 10.0
)

// ClampImportance clamps a score into the [MinImportance, MaxImportance] range.
func ClampImportance(score float64) float64 {
	if score < MinImportance {
		return MinImportance
	}
	if score > MaxImportance {
		return MaxImportance
	}
	return score
}

// Entity is the uniform interface every extracted entity variant satisfies.
// TasteFilter and TruthCritic operate over this interface only; they never
// branch on the concrete variant.
type Entity interface {
	Kind() EntityKind
	ID() string
	Text() string
	Importance() float64
	SetImportance(score float64)
	Notes() *Annotations
}

// Annotations carries every marker the pipeline attaches to an entity on its
// way to downstream synthesis. Fields are written in place; zero values mean
// "no decision".
type Annotations struct {
	Flagged          bool    `json:"flagged,omitempty"`
	FlagReason       string  `json:"flag_reason,omitempty"`
	SimilarRejection string  `json:"similar_rejection,omitempty"`

	PositiveEcho bool   `json:"positive_echo,omitempty"`
	EchoReason   string `json:"echo_reason,omitempty"`

	Overridden    bool       `json:"overridden,omitempty"`
	CorrectedKind EntityKind `json:"corrected_type,omitempty"`
	CriticReason  string     `json:"critic_reason,omitempty"`

	EvolutionStatus EvolutionStatus `json:"evolution_status,omitempty"`
	EvolvesFromID   string          `json:"evolves_from_id,omitempty"`
	ContradictsID   string          `json:"contradicts_id,omitempty"`
	Similarity      float64         `json:"similarity,omitempty"`
}

// Core holds the fields shared by all entity variants.
type Core struct {
	EntityID        string      `json:"id,omitempty"`
	EntityText      string      `json:"text"`
	ImportanceScore float64     `json:"importance_score"`
	Annotations     Annotations `json:"annotations,omitempty"`
}

func (c *Core) ID() string          { return c.EntityID }
func (c *Core) Text() string        { return c.EntityText }
func (c *Core) Importance() float64 { return c.ImportanceScore }
func (c *Core) SetImportance(score float64) {
	c.ImportanceScore = ClampImportance(score)
}
func (c *Core) Notes() *Annotations { return &c.Annotations }

// EnsureID assigns a fresh ID if the extractor did not provide one, so
// critic verdicts and evolution links stay addressable downstream.
func (c *Core) EnsureID() {
	if c.EntityID == "" {
		c.EntityID = uuid.NewString()
	}
}

// Claim is a factual assertion extracted from the source.
type Claim struct {
	Core
	Topic string `json:"topic,omitempty"`
	Tier  string `json:"tier,omitempty"` // A/B/C confidence tier from the extractor
}

func (*Claim) Kind() EntityKind { return KindClaim }

// JargonTerm is a domain-specific term paired with its in-context definition.
type JargonTerm struct {
	Core
	Definition string `json:"definition,omitempty"`
	Category   string `json:"category,omitempty"`
}

func (*JargonTerm) Kind() EntityKind { return KindJargon }

// Person is a named individual mentioned in the source.
type Person struct {
	Core
	Role        string `json:"role,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

func (*Person) Kind() EntityKind { return KindPerson }

// Concept is a conceptual framework or mental model.
type Concept struct {
	Core
	Description string `json:"description,omitempty"`
}

func (*Concept) Kind() EntityKind { return KindConcept }

// ExtractionResult groups the entities the upstream extractor produced for a
// single document. The pipeline annotates these records in place.
type ExtractionResult struct {
	Claims   []*Claim      `json:"claims"`
	Jargon   []*JargonTerm `json:"jargon"`
	People   []*Person     `json:"people"`
	Concepts []*Concept    `json:"concepts"`
}

// All returns every entity in the result as the uniform Entity interface,
// in kind order (claims, jargon, people, concepts).
func (r *ExtractionResult) All() []Entity {
	out := make([]Entity, 0, len(r.Claims)+len(r.Jargon)+len(r.People)+len(r.Concepts))
	for _, c := range r.Claims {
		out = append(out, c)
	}
	for _, j := range r.Jargon {
		out = append(out, j)
	}
	for _, p := range r.People {
		out = append(out, p)
	}
	for _, c := range r.Concepts {
		out = append(out, c)
	}
	return out
}

// Remove drops an entity from the result. Used by TasteFilter for discards
// and by the evolution detector for duplicates.
func (r *ExtractionResult) Remove(e Entity) {
	switch v := e.(type) {
	case *Claim:
		r.Claims = removeFrom(r.Claims, v)
	case *JargonTerm:
		r.Jargon = removeFrom(r.Jargon, v)
	case *Person:
		r.People = removeFrom(r.People, v)
	case *Concept:
		r.Concepts = removeFrom(r.Concepts, v)
	}
}

func removeFrom[T comparable](list []T, target T) []T {
	for i, item := range list {
		if item == target {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// DocumentMeta is the metadata the Context Builder aggregates when querying
// for relevant learned examples. Description is deliberately present here but
// never used in the aggregate (see promptctx).
type DocumentMeta struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Summary     string   `json:"summary,omitempty"`    // Locally computed summary
	AISummary   string   `json:"ai_summary,omitempty"` // Externally supplied summary
	ChannelID   string   `json:"channel_id,omitempty"`
	EpisodeDate string   `json:"episode_date,omitempty"`
}
