package critic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/msg43/winnow/internal/model"
)

// ReviewError is a typed review failure: transport error, timeout, or
// malformed model output. It exists so the fail-open path is an explicit
// value, not an exception swallowed in passing.
type ReviewError struct {
	Stage string // "call" or "parse"
	Err   error
}

func (e *ReviewError) Error() string {
	return fmt.Sprintf("critic review failed at %s: %v", e.Stage, e.Err)
}

func (e *ReviewError) Unwrap() error { return e.Err }

// rawVerdict mirrors the JSON contract the prompt demands from the model.
type rawVerdict struct {
	Reasoning     string  `json:"reasoning"`
	Verdict       string  `json:"verdict"`
	CorrectedType string  `json:"corrected_type"`
	Confidence    float64 `json:"confidence"`
	Explanation   string  `json:"explanation"`
}

// parseVerdict turns raw model output into a verdict or a typed parse
// failure. It tolerates markdown fences around the JSON object.
func parseVerdict(output string, kind model.EntityKind, minOverrideConfidence float64) (model.CriticVerdict, *ReviewError) {
	payload := extractJSON(output)
	if payload == "" {
		return model.CriticVerdict{}, &ReviewError{Stage: "parse", Err: fmt.Errorf("no JSON object in output")}
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return model.CriticVerdict{}, &ReviewError{Stage: "parse", Err: err}
	}
	if raw.Reasoning == "" {
		return model.CriticVerdict{}, &ReviewError{Stage: "parse", Err: fmt.Errorf("verdict without reasoning")}
	}

	verdict := model.CriticVerdict{
		Reasoning:    raw.Reasoning,
		OriginalKind: kind,
		Confidence:   raw.Confidence,
		Explanation:  raw.Explanation,
	}

	switch model.CriticAction(strings.ToLower(raw.Verdict)) {
	case model.CriticApprove:
		verdict.Action = model.CriticApprove

	case model.CriticOverride:
		// Overrides are conservative: they need a named corrected type and
		// high confidence, otherwise the entity is routed to human review.
		// The corrected type is free-form — the critic may name a category
		// outside the extraction taxonomy (e.g. "organization").
		corrected := strings.TrimSpace(raw.CorrectedType)
		if corrected == "" || raw.Confidence <= minOverrideConfidence {
			verdict.Action = model.CriticFlag
			return verdict, nil
		}
		verdict.Action = model.CriticOverride
		verdict.CorrectedKind = model.EntityKind(corrected)

	case model.CriticFlag:
		verdict.Action = model.CriticFlag

	default:
		return model.CriticVerdict{}, &ReviewError{Stage: "parse", Err: fmt.Errorf("unknown verdict %q", raw.Verdict)}
	}
	return verdict, nil
}

// approveOnFailure is the visible degrade policy: any review failure —
// transport error, timeout, malformed output — becomes an approval with zero
// confidence. The taste filter has already removed known-bad patterns, so
// availability wins over strictness here.
func approveOnFailure(kind model.EntityKind, revErr *ReviewError) model.CriticVerdict {
	return model.CriticVerdict{
		Action:       model.CriticApprove,
		Reasoning:    "review unavailable: " + revErr.Error(),
		OriginalKind: kind,
		Confidence:   0,
	}
}

// extractJSON returns the first top-level JSON object in s, stripping any
// surrounding prose or markdown fences.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
