package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// OutputEncoding is the tiktoken encoding used to size output budgets.
// This is a separate concern from Estimate/EstimateMessages in estimator.go: the
// CJK-weighted estimator accounts tokens saved for traffic metrics, while
// CapMaxTokens sizes the max_tokens field sent to the upstream provider.
const OutputEncoding = "cl100k_base"

var (
	capEncoding     *tiktoken.Tiktoken
	capEncodingOnce sync.Once
)

func getCapEncoding() *tiktoken.Tiktoken {
	capEncodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(OutputEncoding)
		if err != nil {
			L_warn("tokens: failed to load tiktoken encoding, output capping degrades to char-based", "error", err)
			return
		}
		capEncoding = enc
	})
	return capEncoding
}

// tiktokenCount returns text's tiktoken count, or a chars/4 fallback if the
// encoding failed to load.
func tiktokenCount(text string) int {
	enc := getCapEncoding()
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// OutputSafetyMargin buffers against cl100k_base undercounting non-OpenAI
// tokenizers.
const OutputSafetyMargin = 1.2

// CapMaxTokens calculates a safe max_tokens value for a forward request so
// that input + output stays within contextWindow. estimatedInputText is the
// serialized message content used to size the input side; buffer reserves
// headroom for framing. Returns requestedMax unchanged if contextWindow is
// unknown (<=0).
func CapMaxTokens(requestedMax, contextWindow int, estimatedInputText string, buffer int) int {
	if contextWindow <= 0 {
		return requestedMax
	}

	safeInput := int(float64(tiktokenCount(estimatedInputText)) * OutputSafetyMargin)
	available := contextWindow - safeInput - buffer
	if available < 100 {
		available = 100
	}

	if requestedMax > 0 && requestedMax < available {
		return requestedMax
	}
	return available
}
