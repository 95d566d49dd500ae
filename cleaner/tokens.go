package cleaner

import "unicode/utf8"

// runesPerToken is the divisor of the token estimate. English averages
// about 4 runes per token and CJK about 1.5; 3 sits between and errs high.
const runesPerToken = 3

// EstimateTokens provides a fast token count estimate without a tokenizer.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / runesPerToken
	if est < 1 {
		return 1
	}
	return est
}

// TruncateTokens cuts text so its estimate stays within maxTokens. It
// reports whether anything was removed. A non-positive budget disables the
// cap.
func TruncateTokens(text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text, false
	}
	limit := maxTokens * runesPerToken
	i, n := 0, 0
	for i < len(text) && n < limit {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
		n++
	}
	return text[:i], true
}
