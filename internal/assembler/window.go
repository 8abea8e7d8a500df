package assembler

import (
	"github.com/roelfdiedericks/ctxproxy/internal/tokens"
	"github.com/roelfdiedericks/ctxproxy/internal/types"
)

// entryKind classifies a message kept in the window so the budget-trim
// pass below knows which entries it may drop.
type entryKind int

const (
	kindSystem entryKind = iota
	kindMiddle           // flagged message kept by step 3, droppable by the token-budget pass
	kindRecent           // the preserved tail, never dropped
)

type windowEntry struct {
	msg   types.Message
	kind  entryKind
	index int // original index, used to drop middles oldest-first
}

// window applies the sliding-window filter described in spec.md §4.4: keep
// the leading system message, keep flagged messages from the older portion
// of the conversation, then keep the recent tail, then cap total message
// count. It additionally enforces a token budget over the assembled result
// by dropping flagged middles oldest-first, per SPEC_FULL.md §4.4.
type window struct {
	cfg Config
}

func newWindow(cfg Config) *window {
	return &window{cfg: cfg}
}

// apply returns the filtered message list for a given preserve-flag map and
// window multiplier.
func (w *window) apply(messages []types.Message, preserve map[int]bool, mult float64) []types.Message {
	if len(messages) <= w.cfg.PreserveLastN+1 {
		return messages
	}

	var entries []windowEntry

	if len(messages) > 0 && messages[0].Role == types.RoleSystem {
		entries = append(entries, windowEntry{msg: messages[0], kind: kindSystem, index: 0})
	}

	recentCount := int(float64(w.cfg.PreserveLastN) * mult)
	recentStart := len(messages) - recentCount
	if recentStart < 1 {
		recentStart = 1
	}

	for idx := 1; idx < recentStart; idx++ {
		if preserve[idx] {
			entries = append(entries, windowEntry{msg: messages[idx], kind: kindMiddle, index: idx})
		}
	}

	for idx := recentStart; idx < len(messages); idx++ {
		entries = append(entries, windowEntry{msg: messages[idx], kind: kindRecent, index: idx})
	}

	maxMsgs := int(float64(w.cfg.MaxMessages) * mult)
	if len(entries) > maxMsgs {
		entries = truncateEntries(entries, maxMsgs)
	}

	entries = enforceTokenBudget(entries, float64(w.cfg.MaxHistoryTokens)*mult)

	out := make([]types.Message, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out
}

// truncateEntries keeps the system entry plus the last maxMsgs-1 entries
// when a system entry leads, or the last maxMsgs entries otherwise,
// matching the teacher's "system + recent tail" truncation.
func truncateEntries(entries []windowEntry, maxMsgs int) []windowEntry {
	hasSystem := len(entries) > 0 && entries[0].kind == kindSystem
	keepCount := maxMsgs
	if hasSystem {
		keepCount--
	}
	if keepCount < 0 {
		keepCount = 0
	}

	rest := entries
	if hasSystem {
		rest = entries[1:]
	}
	if keepCount < len(rest) {
		rest = rest[len(rest)-keepCount:]
	}

	if hasSystem {
		out := make([]windowEntry, 0, len(rest)+1)
		out = append(out, entries[0])
		out = append(out, rest...)
		return out
	}
	return rest
}

// enforceTokenBudget drops kindMiddle entries oldest-first (smallest
// original index, i.e. furthest from the recent tail) until the total
// estimated token count fits budget or no droppable middles remain.
func enforceTokenBudget(entries []windowEntry, budget float64) []windowEntry {
	if budget <= 0 {
		return entries
	}

	total := func(es []windowEntry) int {
		sum := 0
		for _, e := range es {
			sum += tokens.EstimateMessage(e.msg)
		}
		return sum
	}

	for float64(total(entries)) > budget {
		oldestIdx := -1
		for i, e := range entries {
			if e.kind != kindMiddle {
				continue
			}
			if oldestIdx == -1 || e.index < entries[oldestIdx].index {
				oldestIdx = i
			}
		}
		if oldestIdx == -1 {
			break
		}
		entries = append(entries[:oldestIdx], entries[oldestIdx+1:]...)
	}

	return entries
}
