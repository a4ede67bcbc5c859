// Package evolution classifies each new claim against a channel's claim
// history: a restatement is dropped, a refinement is linked, and a reversal
// is surfaced explicitly.
package evolution

import "strings"

// ContradictionStrategy decides whether two highly similar claims assert
// opposite things. The heuristic is pluggable so the shipped lexical check
// can later be replaced by an entailment model without touching the
// detector.
type ContradictionStrategy interface {
	Contradicts(newClaim, oldClaim string) bool
}

// negationMarkers are the lexical cues the default strategy looks for.
var negationMarkers = []string{
	"not", "no longer", "never", "isn't", "aren't", "wasn't", "weren't",
	"doesn't", "don't", "didn't", "won't", "cannot", "can't", "false",
	"incorrect", "wrong", "myth", "contrary",
}

// stopWords are excluded when comparing claim subjects.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "to": true, "of": true, "in": true,
	"on": true, "at": true, "by": true, "for": true, "and": true, "or": true,
	"that": true, "this": true, "it": true, "its": true, "with": true,
	"will": true, "would": true, "has": true, "have": true, "had": true,
	"not": true, "no": true, "never": true,
}

// LexicalStrategy detects contradictions by co-occurrence of negation
// markers with a shared subject. This is an approximation, not semantic
// entailment: it will both over- and under-trigger on paraphrase.
type LexicalStrategy struct {
	// MinSharedSubjects is the number of content words two claims must
	// share before a negation flip counts. Default 2.
	MinSharedSubjects int
}

// Contradicts reports whether exactly one of the two claims is negated while
// both talk about the same subject.
func (s LexicalStrategy) Contradicts(newClaim, oldClaim string) bool {
	minShared := s.MinSharedSubjects
	if minShared <= 0 {
		minShared = 2
	}
	if sharedSubjects(newClaim, oldClaim) < minShared {
		return false
	}
	return hasNegation(newClaim) != hasNegation(oldClaim)
}

func hasNegation(claim string) bool {
	lower := " " + strings.ToLower(claim) + " "
	for _, marker := range negationMarkers {
		if strings.Contains(lower, " "+marker+" ") {
			return true
		}
	}
	return false
}

// sharedSubjects counts content words present in both claims.
func sharedSubjects(a, b string) int {
	wordsA := contentWords(a)
	wordsB := contentWords(b)
	count := 0
	for w := range wordsA {
		if wordsB[w] {
			count++
		}
	}
	return count
}

func contentWords(claim string) map[string]bool {
	words := make(map[string]bool)
	for _, raw := range strings.Fields(strings.ToLower(claim)) {
		w := strings.Trim(raw, ".,;:!?\"'()")
		if len(w) < 3 || stopWords[w] {
			continue
		}
		words[w] = true
	}
	return words
}
