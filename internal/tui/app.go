// Package tui is the terminal front end: a conversation list, the open
// conversation with its composer, and a status bar, driven by the
// conversation manager through a view model.
package tui

import (
	"context"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/matheus3301/chatsync/internal/lifecycle"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/tui/keys"
	"github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/matheus3301/chatsync/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageList         = "list"
	pageConversation = "conversation"
	pageHelp         = "help"

	flashTTL = 5 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	root      *tview.Flex
	vm        *model.ViewModel
	registry  *keys.Registry
	theme     *ui.Theme
	prompt    *ui.Prompt
	statusBar *views.StatusBar
	list      *views.ConversationList
	msgView   *views.MessageView
	composer  *views.Composer
	help      *views.HelpView
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(m *conversation.Manager, profileName string, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	vm := model.NewViewModel(m)
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        vm,
		registry:  keys.NewRegistry(),
		theme:     theme,
		prompt:    ui.NewPrompt(theme),
		statusBar: views.NewStatusBar(),
		list:      views.NewConversationList(theme, vm.Role()),
		msgView:   views.NewMessageView(theme, vm.Self()),
		composer:  views.NewComposer(),
		help:      views.NewHelpView(theme),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(profileName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: ":cmd", Visible: true,
		Handler: a.showPrompt,
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.pages.SwitchToPage(pageHelp) },
	})

	a.registry.AddPage(pageList, "refresh", &keys.Action{
		Rune: 'R', Key: tcell.KeyRune,
		Description: "R:refresh", Visible: true,
		Handler: a.loadConversations,
	})
	a.registry.AddPage(pageList, "delete", &keys.Action{
		Rune: 'D', Key: tcell.KeyRune,
		Description: "D:delete", Visible: true,
		Handler: func() { a.deleteConversation(a.list.Selected()) },
	})
	for n := 1; n <= 9; n++ {
		n := n
		a.registry.AddPage(pageList, "jump"+strconv.Itoa(n), &keys.Action{
			Rune: rune('0' + n), Key: tcell.KeyRune,
			Handler: func() {
				if id := a.list.ByIndex(n); id != "" {
					a.openConversation(id)
				}
			},
		})
	}

	a.registry.AddPage(pageConversation, "poll", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:poll", Visible: true,
		Handler: a.vm.Refocus,
	})
	a.registry.AddPage(pageConversation, "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer.InputField) },
	})
}

func (a *App) setupCallbacks() {
	a.list.SetSelectedFunc(func(row, _ int) {
		if id := a.list.ByIndex(row); id != "" {
			a.openConversation(id)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Send(a.ctx, text); err != nil {
				a.warn("Send failed: " + err.Error())
			}
		}()
	})

	a.prompt.SetOnSubmit(func(text string) {
		a.hidePrompt()
		a.runCommand(ParseCommand(text))
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	convFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageList, a.list, true, true)
	a.pages.AddPage(pageConversation, convFlex, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		page, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			if a.app.GetFocus() == a.prompt.InputField {
				return event
			}
			switch page {
			case pageConversation, pageHelp:
				a.backToList()
				return nil
			}
		}

		// Text inputs get every other key.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}

		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) showPrompt() {
	a.root.AddItem(a.prompt, 3, 0, false)
	a.app.SetFocus(a.prompt.InputField)
}

func (a *App) hidePrompt() {
	a.root.RemoveItem(a.prompt)
	a.focusPage()
}

func (a *App) focusPage() {
	page, _ := a.pages.GetFrontPage()
	switch page {
	case pageConversation:
		a.app.SetFocus(a.msgView)
	case pageHelp:
		a.app.SetFocus(a.help)
	default:
		a.app.SetFocus(a.list)
	}
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "open":
		if cmd.Args == "" {
			a.warn("usage: :open <conversation id>")
			return
		}
		a.openConversation(cmd.Args)
	case "filter":
		a.list.SetFilter(cmd.Args)
	case "refresh":
		a.loadConversations()
	case "delete":
		id := a.vm.ActiveID()
		if id == "" {
			id = a.list.Selected()
		}
		a.deleteConversation(id)
	case "help":
		a.pages.SwitchToPage(pageHelp)
		a.focusPage()
	case "quit":
		a.app.Stop()
	default:
		a.warn("unknown command: " + cmd.Name)
	}
}

func (a *App) openConversation(id string) {
	go func() {
		if err := a.vm.Open(a.ctx, id); err != nil {
			a.warn(err.Error())
			return
		}
		name := "#" + id
		if sum, ok := store.FindSummary(a.vm.Conversations(), id); ok && sum.CounterpartyName != "" {
			name = sum.CounterpartyName
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetTitleName(name)
			a.pages.SwitchToPage(pageConversation)
			a.app.SetFocus(a.msgView)
			a.render()
		})
	}()
}

func (a *App) backToList() {
	go a.vm.CloseActive()
	a.pages.SwitchToPage(pageList)
	a.app.SetFocus(a.list)
	a.statusBar.SetConversation("", "")
}

func (a *App) deleteConversation(id string) {
	if id == "" {
		return
	}
	go func() {
		if err := a.vm.Delete(a.ctx, id); err != nil {
			a.warn("Delete failed: " + err.Error())
			return
		}
		a.info("Conversation " + id + " deleted")
		a.app.QueueUpdateDraw(func() {
			page, _ := a.pages.GetFrontPage()
			if page == pageConversation {
				a.pages.SwitchToPage(pageList)
				a.app.SetFocus(a.list)
			}
		})
	}()
}

func (a *App) loadConversations() {
	go func() {
		if err := a.vm.LoadConversations(a.ctx); err != nil {
			a.warn("Refresh failed: " + err.Error())
		}
	}()
}

func (a *App) info(msg string) {
	a.logger.Debug("flash", zap.String("message", msg))
	a.vm.Flash.Info(msg, flashTTL)
	a.app.QueueUpdateDraw(a.showFlash)
}

func (a *App) warn(msg string) {
	a.logger.Debug("flash", zap.String("message", msg), zap.Bool("warn", true))
	a.vm.Flash.Warn(msg, flashTTL)
	a.app.QueueUpdateDraw(a.showFlash)
}

func (a *App) showFlash() {
	n, _ := a.vm.Flash.Current()
	a.statusBar.SetFlash(n.Text, n.Warn)
}

// render redraws everything from the view model. Runs on the UI goroutine.
func (a *App) render() {
	a.list.Update(a.vm.Conversations())

	if st, ok := a.vm.Status(); ok {
		lc := ""
		if st.Lifecycle != lifecycle.Active {
			lc = st.Reason
			if lc == "" {
				lc = string(st.Lifecycle)
			}
		}
		a.statusBar.SetConversation(string(st.Connection), lc)
		switch {
		case st.Lifecycle != lifecycle.Active:
			a.composer.SetBlocked("conversation deleted by the other side")
		case !st.CanSend:
			a.composer.SetBlocked("waiting for connection…")
		default:
			a.composer.SetBlocked("")
		}
		a.msgView.Update(a.vm.Messages())
	}
	a.showFlash()
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.vm.Watch(a.ctx)
	a.loadConversations()

	go func() {
		// The ticker keeps the clock and flash expiry current between events.
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-a.ctx.Done():
				return
			case <-a.vm.RefreshCh():
			case <-ticker.C:
			}
			a.app.QueueUpdateDraw(a.render)
		}
	}()

	err := a.app.Run()
	a.Stop()
	return err
}

// Stop closes the open conversation and shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.vm.CloseActive()
	a.app.Stop()
}
