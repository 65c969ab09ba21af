package llm

// Truncate cuts s to at most max runes, appending marker when a cut
// actually happened. Used throughout the context formatter and alert
// summary projection for their fixed character budgets (8000 chars for
// full_log, 400 per evidence record, 4000 for the rendered graph block).
func Truncate(s, marker string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + marker
}

// EstimateTokens estimates the number of tokens in the given text.
// Uses a simple heuristic of approximately 4 characters per token,
// which is a reasonable approximation for English text with GPT-style tokenizers.
func EstimateTokens(text string) int {
	chars := len(text)
	return (chars + 3) / 4
}
