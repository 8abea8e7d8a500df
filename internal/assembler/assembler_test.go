package assembler

import (
	"strings"
	"testing"

	"github.com/roelfdiedericks/ctxproxy/internal/types"
)

func m(role types.Role, content string) types.Message {
	return types.Message{Role: role, Content: &content}
}

func TestAssembleToolUsePassthrough(t *testing.T) {
	req := &types.ChatRequest{Messages: []types.Message{m(types.RoleUser, "hi")}}
	a := New(DefaultConfig())

	got := a.Assemble(req, types.IntentToolUse, nil)

	if got != req {
		t.Errorf("tool_use intent must return the same request pointer (passthrough)")
	}
}

func TestAssembleShortHistoryUnchanged(t *testing.T) {
	cfg := DefaultConfig()
	req := &types.ChatRequest{Messages: []types.Message{
		m(types.RoleSystem, "sys"),
		m(types.RoleUser, "hi"),
	}}
	a := New(cfg)

	got := a.Assemble(req, types.IntentCasual, nil)

	if len(got.Messages) != len(req.Messages) {
		t.Errorf("short history should be returned unchanged, got %d messages", len(got.Messages))
	}
}

func buildLongHistory(n int) []types.Message {
	msgs := []types.Message{m(types.RoleSystem, "system prompt")}
	for i := 0; i < n; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		msgs = append(msgs, m(role, "turn"))
	}
	return msgs
}

func TestAssembleKeepsSystemAndRecentTail(t *testing.T) {
	cfg := DefaultConfig()
	msgs := buildLongHistory(30)
	req := &types.ChatRequest{Messages: msgs}
	a := New(cfg)

	got := a.Assemble(req, types.IntentCasual, map[int]types.MessageFlags{})

	if got.Messages[0].Role != types.RoleSystem {
		t.Errorf("expected system message retained at index 0")
	}
	last := got.Messages[len(got.Messages)-1]
	if last != msgs[len(msgs)-1] {
		t.Errorf("expected the last message of the original history to survive")
	}
}

func TestAssemblePreservesFlaggedMiddle(t *testing.T) {
	cfg := DefaultConfig()
	msgs := buildLongHistory(30)
	flaggedIdx := 3
	flags := map[int]types.MessageFlags{flaggedIdx: {ShouldPreserve: true}}
	req := &types.ChatRequest{Messages: msgs}
	a := New(cfg)

	got := a.Assemble(req, types.IntentCasual, flags)

	found := false
	for _, gm := range got.Messages {
		if gm == msgs[flaggedIdx] {
			found = true
		}
	}
	if !found {
		t.Errorf("flagged middle message should survive the window")
	}
}

func TestAssembleRetrievalWidensWindow(t *testing.T) {
	cfg := DefaultConfig()
	msgs := buildLongHistory(30)
	req := &types.ChatRequest{Messages: msgs}
	a := New(cfg)

	casual := a.Assemble(req, types.IntentCasual, map[int]types.MessageFlags{})
	retrieval := a.Assemble(req, types.IntentRetrieval, map[int]types.MessageFlags{})

	if len(retrieval.Messages) <= len(casual.Messages) {
		t.Errorf("retrieval window (len=%d) should be larger than casual window (len=%d)",
			len(retrieval.Messages), len(casual.Messages))
	}
}

func TestAssembleEnforcesTokenBudgetByDroppingOldestMiddles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxHistoryTokens = 50 // tiny budget forces the trim pass

	msgs := []types.Message{m(types.RoleSystem, "sys")}
	flags := map[int]types.MessageFlags{}
	bigContent := strings.Repeat("word ", 200)
	for i := 1; i <= 5; i++ {
		msgs = append(msgs, m(types.RoleUser, bigContent))
		flags[i] = types.MessageFlags{ShouldPreserve: true}
	}
	for i := 0; i < 3; i++ {
		msgs = append(msgs, m(types.RoleUser, "recent turn"))
	}

	req := &types.ChatRequest{Messages: msgs}
	a := New(cfg)

	got := a.Assemble(req, types.IntentCasual, flags)

	if len(got.Messages) >= len(msgs) {
		t.Errorf("expected the budget pass to drop some flagged middles, got %d of %d", len(got.Messages), len(msgs))
	}
	if got.Messages[0].Role != types.RoleSystem {
		t.Errorf("system message must survive the budget pass")
	}
}
