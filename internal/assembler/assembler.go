// Package assembler rewrites a chat request's message history under a
// token/message budget while preserving tool calls, long code blocks, and
// the system prompt, per the selected intent's window multiplier.
package assembler

import (
	"github.com/roelfdiedericks/ctxproxy/internal/types"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// retrievalWindowMult widens the window for retrieval intent so
// backward-referencing queries can see more history.
const retrievalWindowMult = 1.5

const defaultWindowMult = 1.0

// Assembler applies the sliding-window policy.
type Assembler struct {
	cfg    Config
	window *window
}

// New returns an Assembler with the given config.
func New(cfg Config) *Assembler {
	return &Assembler{cfg: cfg, window: newWindow(cfg)}
}

// Assemble rewrites request.Messages according to intent and preserve
// flags. tool_use intent is a passthrough: the input is returned
// unchanged.
func (a *Assembler) Assemble(request *types.ChatRequest, intent types.Intent, flags map[int]types.MessageFlags) *types.ChatRequest {
	if intent == types.IntentToolUse {
		L_info("assembler: passthrough", "intent", intent)
		return request
	}

	mult := defaultWindowMult
	if intent == types.IntentRetrieval {
		mult = retrievalWindowMult
	}

	preserve := make(map[int]bool, len(flags))
	for idx, f := range flags {
		preserve[idx] = f.ShouldPreserve
	}

	messages := a.window.apply(request.Messages, preserve, mult)

	optimized := request.Clone()
	optimized.Messages = messages

	L_info("assembler: complete",
		"original", len(request.Messages), "optimized", len(messages), "intent", intent)

	return optimized
}
