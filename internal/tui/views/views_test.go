package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

func TestRenderMessages(t *testing.T) {
	sent := time.Now()
	out := renderMessages([]store.Message{
		{ID: "1", SenderID: "bob", SenderName: "Bob", Content: "hi [there]", SentAt: sent},
		{LocalID: "l1", SenderID: "u1", SenderName: "Alice", Content: "hello", SentAt: sent},
	}, "u1", "#808080")

	if !strings.Contains(out, "Bob") {
		t.Error("missing peer name")
	}
	if !strings.Contains(out, "You") || strings.Contains(out, "Alice") {
		t.Error("own message should be labelled You")
	}
	if !strings.Contains(out, "sending…") {
		t.Error("provisional message not marked as sending")
	}
	if !strings.Contains(out, "hi [there[]") {
		t.Errorf("content not escaped for tview: %q", out)
	}
}

func TestStatusLine(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 30, 0, 0, time.Local)
	line := statusLine("main", "CONNECTED", "", "", false, now)
	if !strings.Contains(line, "[green]CONNECTED") || !strings.Contains(line, "10:30") {
		t.Errorf("line = %q", line)
	}
	line = statusLine("main", "RECONNECTING", "deleted by performer", "Send failed", true, now)
	for _, want := range []string{"[yellow]RECONNECTING", "[red]deleted by performer", "[red]Send failed"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestConversationListFilterAndIndex(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme(), store.RoleCustomer)
	cl.Update([]store.ConversationSummary{
		{ConversationID: "1", CounterpartyName: "Bob", UnreadCount: 3},
		{ConversationID: "2", CounterpartyName: "Carol", DeletedByPerformer: true},
		{ConversationID: "3", CounterpartyName: "Bobby"},
	})

	if got := cl.ByIndex(2); got != "2" {
		t.Errorf("ByIndex(2) = %q, want 2", got)
	}
	if got := cl.GetCell(2, 3).Text; !strings.Contains(got, "deleted") {
		t.Errorf("state cell = %q, want a deletion mark", got)
	}
	if got := cl.GetCell(1, 1).Text; got != "3" {
		t.Errorf("unread cell = %q, want 3", got)
	}

	cl.SetFilter("bob")
	if got := cl.ByIndex(2); got != "3" {
		t.Errorf("filtered ByIndex(2) = %q, want 3", got)
	}
	if got := cl.ByIndex(3); got != "" {
		t.Errorf("filtered ByIndex(3) = %q, want empty", got)
	}
}

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"skin tone", "ok \U0001F44D\U0001F3FB", "ok \U0001F44D"},
		{"variation selector", "\u2764\ufe0f", "\u2764"},
		{"zwj", "a\u200db", "ab"},
		{"escape sequence", "\x1b[31mred", "[31mred"},
		{"newlines kept", "a\nb\tc", "a\nb\tc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeForTerminal(tt.in); got != tt.want {
				t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHelpTextListsCommands(t *testing.T) {
	text := helpText("#0000ff")
	for _, want := range []string{":open <id>", "Poll now", "Delete conversation"} {
		if !strings.Contains(text, want) {
			t.Errorf("help missing %q", want)
		}
	}
}
