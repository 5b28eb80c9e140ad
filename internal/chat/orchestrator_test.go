package chat

import (
	"context"
	"strings"
	"testing"
)

// scriptCompleter replays canned replies and records the prompts it saw.
type scriptCompleter struct {
	replies []string
	calls   int
	seen    [][]Message
}

func (s *scriptCompleter) Complete(_ context.Context, messages []Message, onToken TokenListener) (string, error) {
	s.seen = append(s.seen, messages)
	if s.calls >= len(s.replies) {
		return "", nil
	}
	reply := s.replies[s.calls]
	s.calls++
	if onToken != nil {
		onToken(reply)
	}
	return reply, nil
}

// fixedRetriever always returns the same passages.
type fixedRetriever struct {
	docs  []string
	calls int
}

func (f *fixedRetriever) Retrieve(_ context.Context, _ string) []string {
	f.calls++
	return f.docs
}

func TestOrchestrator_HistoryGrowsPerTurn(t *testing.T) {
	t.Parallel()

	c := &scriptCompleter{replies: []string{"Hello there.", "Goodbye."}}
	o := NewOrchestrator("You are a guard.", "", c, nil, nil)

	if got := o.SendMessage(context.Background(), "hi", nil); got != "Hello there." {
		t.Fatalf("reply = %q", got)
	}
	if got := o.SendMessage(context.Background(), "bye", nil); got != "Goodbye." {
		t.Fatalf("reply = %q", got)
	}

	h := o.History()
	if len(h) != 4 {
		t.Fatalf("history = %d messages, want 4", len(h))
	}
	wantRoles := []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	for i, m := range h {
		if m.Role != wantRoles[i] {
			t.Errorf("history[%d].Role = %s, want %s", i, m.Role, wantRoles[i])
		}
	}

	// The second dispatch carried the whole history plus the system message.
	last := c.seen[len(c.seen)-1]
	if len(last) != 4 {
		t.Errorf("second prompt = %d messages, want 4 (system + 3 history)", len(last))
	}
	if last[0].Role != RoleSystem {
		t.Errorf("prompt must lead with the system message, got %s", last[0].Role)
	}
}

func TestOrchestrator_EmptyInputShortCircuits(t *testing.T) {
	t.Parallel()

	c := &scriptCompleter{replies: []string{"should not be used"}}
	o := NewOrchestrator("prompt", "", c, nil, nil)

	if got := o.SendMessage(context.Background(), "   ", nil); got != "" {
		t.Errorf("reply = %q, want empty", got)
	}
	if c.calls != 0 {
		t.Errorf("completer called %d times for empty input", c.calls)
	}
	if len(o.History()) != 0 {
		t.Error("empty input must not enter history")
	}
}

func TestOrchestrator_RetrievalAugmentsSystemOnce(t *testing.T) {
	t.Parallel()

	c := &scriptCompleter{replies: []string{"ok", "ok"}}
	r := &fixedRetriever{docs: []string{"The door opens with the brass key."}}
	o := NewOrchestrator("prompt", "", c, r, nil)

	o.SendMessage(context.Background(), "how do I open the door", nil)
	o.SendMessage(context.Background(), "tell me again", nil)

	system := c.seen[1][0].Content
	if n := strings.Count(system, "brass key"); n != 1 {
		t.Errorf("retrieved passage appears %d times in system message, want 1", n)
	}
	if r.calls != 2 {
		t.Errorf("retriever calls = %d, want 2", r.calls)
	}
}

func TestOrchestrator_FailedCompletionLeavesNoAssistantTurn(t *testing.T) {
	t.Parallel()

	c := &scriptCompleter{} // always returns ""
	o := NewOrchestrator("prompt", "", c, nil, nil)

	if got := o.SendMessage(context.Background(), "hello", nil); got != "" {
		t.Fatalf("reply = %q, want empty", got)
	}
	h := o.History()
	if len(h) != 1 || h[0].Role != RoleUser {
		t.Errorf("history = %#v, want only the user message", h)
	}
}

func TestOrchestrator_ClearHistory(t *testing.T) {
	t.Parallel()

	c := &scriptCompleter{replies: []string{"hi"}}
	o := NewOrchestrator("prompt", "", c, nil, nil)
	o.SendMessage(context.Background(), "hello", nil)

	o.ClearHistory()
	if len(o.History()) != 0 {
		t.Error("history survived ClearHistory")
	}
}

func TestOrchestrator_CatalogInSystemMessage(t *testing.T) {
	t.Parallel()

	c := &scriptCompleter{replies: []string{"ok"}}
	p := NewActionParser([]Action{{Name: "sit"}}, nil, nil)
	o := NewOrchestrator("You are a guard.", p.Catalog(), c, nil, nil)

	o.SendMessage(context.Background(), "hello", nil)
	system := c.seen[0][0].Content
	if !strings.Contains(system, "[[action:") {
		t.Errorf("system message missing actions catalog:\n%s", system)
	}
}
