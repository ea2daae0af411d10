// Package budget estimates prompt sizes for the relevance and generation
// calls. Because the pipeline can run against several LLM backends with
// different tokenizers, it uses a conservative character-based heuristic:
// 1 token ≈ 4 characters. Korean text tokenizes denser than English, so the
// count is taken over runes rather than bytes.
package budget

import "unicode/utf8"

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// promptOverhead approximates the per-request envelope added by chat APIs.
	promptOverhead = 4

	// DefaultMaxContextTokens is the default input budget for a generation
	// prompt. Seven abstracts plus instructions fit comfortably; a prompt
	// above this usually means an unusually long abstract slipped through.
	// Override via PMRAG_MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 32000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	runes := utf8.RuneCountInString(s)
	n := runes / charsPerToken
	if n == 0 && runes > 0 {
		return 1
	}
	return n
}

// EstimatePrompt returns the estimated token count of a single-message
// prompt including the request envelope.
func EstimatePrompt(prompt string) int {
	return promptOverhead + Estimate(prompt)
}

// Check reports the estimated token count of prompt and whether it exceeds
// maxTokens. A non-positive maxTokens falls back to DefaultMaxContextTokens.
func Check(prompt string, maxTokens int) (tokens int, over bool) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	tokens = EstimatePrompt(prompt)
	return tokens, tokens > maxTokens
}
