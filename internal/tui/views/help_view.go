package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays the key binding reference.
type HelpView struct {
	*tview.TextView
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	_, _ = fmt.Fprint(tv, helpText(ui.Hex(theme.MenuKeyColor)))
	return &HelpView{TextView: tv}
}

var helpSections = []struct {
	title string
	rows  [][2]string
}{
	{"Global", [][2]string{
		{":", "Command mode"},
		{"?", "Help"},
		{"q", "Quit"},
		{"Esc", "Back"},
	}},
	{"Conversation list", [][2]string{
		{"Enter", "Open conversation"},
		{"1-9", "Open Nth conversation"},
		{"R", "Refresh list"},
		{"D", "Delete conversation"},
	}},
	{"Conversation", [][2]string{
		{"i", "Focus composer"},
		{"r", "Poll now"},
		{"Enter", "Send (in composer)"},
	}},
	{"Commands", [][2]string{
		{":open <id>", "Open conversation by id"},
		{":filter <text>", "Filter the list"},
		{":delete", "Delete the open or selected conversation"},
		{":refresh", "Refresh the list"},
		{":quit", "Quit"},
	}},
}

func helpText(keyColor string) string {
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, r := range s.rows {
			fmt.Fprintf(&b, "  [%s]%-16s[-:-:-] %s\n", keyColor, tview.Escape(r[0]), r[1])
		}
	}
	return b.String()
}
