package classifier

import (
	"testing"

	"github.com/roelfdiedericks/ctxproxy/internal/types"
)

func userMsg(content string) types.Message {
	return types.Message{Role: types.RoleUser, Content: &content}
}

func TestClassifyToolUseByToolsField(t *testing.T) {
	req := &types.ChatRequest{
		Messages: []types.Message{userMsg("what's the weather")},
		Tools:    []any{map[string]any{"type": "function"}},
	}
	if got := New().Classify(req); got != types.IntentToolUse {
		t.Errorf("Classify = %v, want tool_use", got)
	}
}

func TestClassifyToolUseByToolBearingMessage(t *testing.T) {
	req := &types.ChatRequest{
		Messages: []types.Message{
			{Role: types.RoleAssistant, ToolCallID: "call_1"},
		},
	}
	if got := New().Classify(req); got != types.IntentToolUse {
		t.Errorf("Classify = %v, want tool_use", got)
	}
}

func TestClassifyCodingKeyword(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{userMsg("can you fix this bug in my python script")}}
	if got := New().Classify(req); got != types.IntentCoding {
		t.Errorf("Classify = %v, want coding", got)
	}
}

func TestClassifyRetrievalKeyword(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{userMsg("what did we discuss last time?")}}
	if got := New().Classify(req); got != types.IntentRetrieval {
		t.Errorf("Classify = %v, want retrieval", got)
	}
}

func TestClassifyDocumentKeyword(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{userMsg("please review the readme")}}
	if got := New().Classify(req); got != types.IntentDocument {
		t.Errorf("Classify = %v, want document", got)
	}
}

func TestClassifyCodingTakesPriorityOverRetrieval(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{userMsg("find the bug in this python function from last time")}}
	if got := New().Classify(req); got != types.IntentCoding {
		t.Errorf("Classify = %v, want coding (first match wins)", got)
	}
}

func TestClassifyCasualDefault(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{userMsg("how's your day been?")}}
	if got := New().Classify(req); got != types.IntentCasual {
		t.Errorf("Classify = %v, want casual", got)
	}
}

func TestClassifyUnknownWhenNoUserMessage(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{{Role: types.RoleSystem, Content: strPtr("be nice")}}}
	if got := New().Classify(req); got != types.IntentUnknown {
		t.Errorf("Classify = %v, want unknown", got)
	}
}

func TestClassifyUnknownWhenEmptyContent(t *testing.T) {
	empty := ""
	req := &types.ChatRequest{Messages: []types.Message{{Role: types.RoleUser, Content: &empty}}}
	if got := New().Classify(req); got != types.IntentUnknown {
		t.Errorf("Classify = %v, want unknown", got)
	}
}

func strPtr(s string) *string { return &s }
