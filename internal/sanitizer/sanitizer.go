// Package sanitizer scans an incoming chat request and flags messages that
// must survive any later context-reduction pass: tool calls, long code
// blocks, attachments, and the system prompt.
package sanitizer

import (
	"github.com/roelfdiedericks/ctxproxy/internal/types"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// longCodeThreshold is the content length above which a code-bearing
// message is preserved outright.
const longCodeThreshold = 500

// Sanitizer is stateless and safe for concurrent use.
type Sanitizer struct{}

// New returns a Sanitizer.
func New() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize analyzes request and returns a flag record per message index. It
// never mutates the request.
func (s *Sanitizer) Sanitize(request *types.ChatRequest) map[int]types.MessageFlags {
	flagsMap := make(map[int]types.MessageFlags, len(request.Messages))
	preserveCount := 0

	for idx, msg := range request.Messages {
		flags := analyzeMessage(msg)
		flagsMap[idx] = flags

		if flags.ShouldPreserve {
			preserveCount++
			L_debug("sanitizer: message marked preserve",
				"index", idx, "role", msg.Role, "reason", preserveReason(flags))
		}
	}

	L_info("sanitizer: request sanitized",
		"total_messages", len(request.Messages), "preserve_count", preserveCount)

	return flagsMap
}

func analyzeMessage(msg types.Message) types.MessageFlags {
	hasCode := msg.IsCodeBearing()
	hasTool := msg.IsToolBearing()
	hasAttachment := msg.IsAttachmentBearing()
	isSystem := msg.Role == types.RoleSystem

	shouldPreserve := hasTool || (hasCode && len(msg.ContentString()) > longCodeThreshold)

	return types.MessageFlags{
		HasCodeBlock:   hasCode,
		HasToolCall:    hasTool,
		HasAttachment:  hasAttachment,
		IsSystemPrompt: isSystem,
		ShouldPreserve: shouldPreserve,
	}
}

func preserveReason(f types.MessageFlags) string {
	switch {
	case f.HasToolCall:
		return "tool_call"
	case f.HasCodeBlock:
		return "code_block"
	case f.HasAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}
