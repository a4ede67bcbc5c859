package critic

import "fmt"

// systemPrompt sets the critic's role. It demands reasoning before the
// verdict so the model cannot shortcut straight to an answer.
const systemPrompt = `You are a classification critic reviewing entities that were machine-extracted from a transcript. Entity types are: claim (a factual assertion), jargon (a domain term), person (a named individual), concept (a conceptual framework).

You must think step by step and state your reasoning BEFORE giving a verdict. Respond with a single JSON object and nothing else, with these fields in this exact order:
  "reasoning": your step-by-step analysis of whether the entity type fits,
  "verdict": one of "approve", "override", "flag",
  "corrected_type": the correct type if verdict is "override" (it may be a type outside the four above, such as "organization"), else null,
  "confidence": a number between 0 and 1,
  "explanation": one sentence for a human reviewer.

Use "approve" when the classification is correct. Use "override" only when you are confident the entity belongs to a different type (for example an organization extracted as a person). Use "flag" when you are uncertain.`

// buildReviewPrompt renders one entity review request.
func buildReviewPrompt(kind, text, sourceContext string) string {
	prompt := fmt.Sprintf("Entity type: %s\nEntity text: %q\n", kind, text)
	if sourceContext != "" {
		prompt += fmt.Sprintf("\nSource context:\n%s\n", sourceContext)
	}
	prompt += "\nReview whether the entity type is correct. Reason first, then give your verdict."
	return prompt
}
