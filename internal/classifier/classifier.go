// Package classifier assigns a coarse intent to a chat request by rule
// matching against its last user message, so the assembler can size its
// context window accordingly.
package classifier

import (
	"strings"

	"github.com/roelfdiedericks/ctxproxy/internal/types"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

var codingKeywords = []string{
	"code", "编程", "函数", "class", "def", "import",
	"bug", "error", "exception", "debug", "fix",
	"python", "javascript", "typescript", "rust", "go",
	"implement", "write a script", "refactor",
}

var retrievalKeywords = []string{
	"remember", "recall", "what did", "之前", "上次",
	"find", "search", "look up", "查询", "查找",
	"history", "past", "previous", "earlier",
}

var documentKeywords = []string{
	"file", "document", "pdf", "markdown", "readme",
	"analyze this", "review the", "文档", "文件",
}

// Classifier is stateless and safe for concurrent use.
type Classifier struct{}

// New returns a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify determines the request's Intent per the priority order: tool
// use, then coding/retrieval/document keywords against the last user
// message, then unknown (empty message) or casual (default).
func (c *Classifier) Classify(request *types.ChatRequest) types.Intent {
	if len(request.Tools) > 0 || hasToolIndicators(request) {
		L_debug("classifier: classified", "intent", types.IntentToolUse)
		return types.IntentToolUse
	}

	lastUser, found := lastUserContent(request)
	if !found || lastUser == "" {
		L_debug("classifier: classified", "intent", types.IntentUnknown)
		return types.IntentUnknown
	}

	lower := strings.ToLower(lastUser)

	if matchesAny(lower, codingKeywords) {
		L_debug("classifier: classified", "intent", types.IntentCoding)
		return types.IntentCoding
	}
	if matchesAny(lower, retrievalKeywords) {
		L_debug("classifier: classified", "intent", types.IntentRetrieval)
		return types.IntentRetrieval
	}
	if matchesAny(lower, documentKeywords) {
		L_debug("classifier: classified", "intent", types.IntentDocument)
		return types.IntentDocument
	}

	L_debug("classifier: classified", "intent", types.IntentCasual)
	return types.IntentCasual
}

func hasToolIndicators(request *types.ChatRequest) bool {
	for _, msg := range request.Messages {
		if msg.IsToolBearing() {
			return true
		}
	}
	return false
}

// lastUserContent returns the content of the last user-role message and
// whether one was found at all.
func lastUserContent(request *types.ChatRequest) (string, bool) {
	for i := len(request.Messages) - 1; i >= 0; i-- {
		if request.Messages[i].Role == types.RoleUser {
			return request.Messages[i].ContentString(), true
		}
	}
	return "", false
}

func matchesAny(content string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}
