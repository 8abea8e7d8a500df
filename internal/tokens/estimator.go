// Package tokens provides a deterministic, language-weighted token
// estimator used for budget accounting across the proxy. It does not aim
// for fidelity with any specific upstream tokenizer — only for a stable,
// reproducible approximation.
package tokens

import (
	"github.com/roelfdiedericks/ctxproxy/internal/types"
)

// PerMessageOverhead is the fixed structural cost charged per message in
// addition to its content, modeling role/delimiter framing.
const PerMessageOverhead = 4

// isCJK reports whether r falls in one of the CJK blocks we weight
// differently: CJK Unified Ideographs, Hiragana, and Katakana.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0x3040 && r <= 0x309F:
		return true
	case r >= 0x30A0 && r <= 0x30FF:
		return true
	default:
		return false
	}
}

// Estimate approximates the token count of text. CJK codepoints are
// weighted at 1/1.5 tokens each, everything else at 1/4, with a flat +1
// for any non-empty input. Empty input costs 0.
func Estimate(text string) int {
	if text == "" {
		return 0
	}

	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}

	return int(float64(cjk)/1.5+float64(other)/4) + 1
}

// EstimateMessage counts a single message's content plus its structural
// overhead.
func EstimateMessage(m types.Message) int {
	return Estimate(m.ContentString()) + PerMessageOverhead
}

// EstimateMessages sums EstimateMessage across a message list.
func EstimateMessages(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessage(m)
	}
	return total
}
