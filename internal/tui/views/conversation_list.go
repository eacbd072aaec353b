package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the conversation summary table.
type ConversationList struct {
	*tview.Table
	theme  *ui.Theme
	role   store.Role
	convs  []store.ConversationSummary
	filter string
}

// NewConversationList creates a new conversation list table. role decides
// which deletion flag belongs to the peer.
func NewConversationList(theme *ui.Theme, role store.Role) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{Table: table, theme: theme, role: role}
}

// Update refreshes the list with new summaries.
func (cl *ConversationList) Update(convs []store.ConversationSummary) {
	cl.convs = convs
	cl.render()
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

func (cl *ConversationList) visible() []store.ConversationSummary {
	if cl.filter == "" {
		return cl.convs
	}
	var out []store.ConversationSummary
	for _, c := range cl.convs {
		if containsFold(c.CounterpartyName, cl.filter) || containsFold(c.ConversationID, cl.filter) {
			out = append(out, c)
		}
	}
	return out
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" WITH", 2},
		{" UNREAD", 0},
		{" ACTIVITY", 0},
		{" STATE", 1},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	rows := cl.visible()
	for i, c := range rows {
		row := i + 1
		name := c.CounterpartyName
		if name == "" {
			name = "#" + c.ConversationID
		}
		fg := cl.theme.FgColor
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf("%d", c.UnreadCount)
			fg = cl.theme.UnreadColor
		}
		state, stateFg := "", cl.theme.FgColor
		if c.PeerDeleted(cl.role) {
			state, stateFg = "deleted by peer", cl.theme.DeletedColor
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(2).SetTextColor(fg))
		cl.SetCell(row, 1, tview.NewTableCell(unread).SetAlign(tview.AlignRight).SetTextColor(fg))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(c.LastActivityAt)).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 3, tview.NewTableCell(" "+state).SetExpansion(1).SetTextColor(stateFg))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(rows), len(cl.convs), cl.filter))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// Selected returns the id of the highlighted conversation.
func (cl *ConversationList) Selected() string {
	row, _ := cl.GetSelection()
	return cl.ByIndex(row)
}

// ByIndex returns the id of the Nth visible conversation (1-based).
func (cl *ConversationList) ByIndex(n int) string {
	rows := cl.visible()
	if n < 1 || n > len(rows) {
		return ""
	}
	return rows[n-1].ConversationID
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
