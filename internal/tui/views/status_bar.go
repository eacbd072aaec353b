package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the profile, the open conversation's connection and
// lifecycle state, and flash messages.
type StatusBar struct {
	*tview.TextView
	profile    string
	connection string
	lifecycle  string
	flash      string
	warn       bool
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetConversation shows the connection and lifecycle state. Empty strings
// clear them.
func (sb *StatusBar) SetConversation(connection, lifecycle string) {
	sb.connection = connection
	sb.lifecycle = lifecycle
	sb.render()
}

// SetFlash sets a temporary message; warnings are shown in red.
func (sb *StatusBar) SetFlash(msg string, warn bool) {
	sb.flash = msg
	sb.warn = warn
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, statusLine(sb.profile, sb.connection, sb.lifecycle, sb.flash, sb.warn, time.Now()))
}

func statusLine(profile, connection, lifecycle, flash string, warn bool, now time.Time) string {
	line := fmt.Sprintf(" [::b]%s[-:-:-]", profile)
	if connection != "" {
		color := "yellow"
		if connection == "CONNECTED" {
			color = "green"
		}
		line += fmt.Sprintf(" | [%s]%s[-]", color, connection)
	}
	if lifecycle != "" {
		line += " | [red]" + tview.Escape(lifecycle) + "[-]"
	}
	line += " | " + now.Format("15:04")
	if flash != "" {
		color := "yellow"
		if warn {
			color = "red"
		}
		line += fmt.Sprintf(" | [%s]%s[-]", color, tview.Escape(flash))
	}
	return line
}
