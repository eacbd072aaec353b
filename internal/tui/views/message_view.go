package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageView displays the merged message sequence of one conversation.
type MessageView struct {
	*tview.TextView
	theme *ui.Theme
	self  string
}

// NewMessageView creates a new message view. Messages sent by selfID are
// labelled "You".
func NewMessageView(theme *ui.Theme, selfID string) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTitleColor(theme.TitleColor)

	return &MessageView{TextView: tv, theme: theme, self: selfID}
}

// SetTitleName updates the title with the counterparty's name.
func (mv *MessageView) SetTitleName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
}

// Update re-renders msgs, which are in display order already.
func (mv *MessageView) Update(msgs []store.Message) {
	mv.Clear()
	_, _ = fmt.Fprint(mv, renderMessages(msgs, mv.self, ui.Hex(mv.theme.PendingColor)))
	mv.ScrollToEnd()
}

func renderMessages(msgs []store.Message, self, pendingColor string) string {
	var b strings.Builder
	for _, m := range msgs {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		if m.SenderID == self {
			sender = "You"
		}
		ts := formatTimestamp(m.SentAt)
		if m.Provisional() {
			ts = fmt.Sprintf("[%s]sending…[-]", pendingColor)
		}
		fmt.Fprintf(&b, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)), ts, tview.Escape(sanitizeForTerminal(m.Content)))
	}
	return b.String()
}
