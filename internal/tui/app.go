package tui

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/tui/client"
	"github.com/matheus3301/souk/internal/tui/keys"
	"github.com/matheus3301/souk/internal/tui/model"
	"github.com/matheus3301/souk/internal/tui/ui"
	"github.com/matheus3301/souk/internal/tui/views"
	"github.com/rivo/tview"
)

// Page names.
const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageDetails       = "details"
	pageSearch        = "search"
	pageNotifications = "notifications"
	pageHelp          = "help"
	pageAuth          = "auth"
)

// typingInterval bounds how often composer keystrokes reach the daemon.
const typingInterval = 2 * time.Second

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	root     *tview.Flex
	pages    *ui.Pages
	vm       *model.ViewModel
	registry *keys.Registry
	session  string

	info     *ui.SessionInfo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	prompt   *ui.Prompt
	flashBar *ui.FlashBar

	convs   *views.ConversationList
	thread  *views.MessageThread
	details *views.ConversationInfo
	search  *views.SearchView
	notes   *views.NotificationsView
	help    *views.HelpView
	auth    *views.AuthView

	typingMu   sync.Mutex
	lastTyping time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		pages:    ui.NewPages(),
		vm:       model.NewViewModel(c),
		registry: keys.NewRegistry(),
		session:  sessionName,
		info:     ui.NewSessionInfo(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme),
		prompt:   ui.NewPrompt(theme),
		flashBar: ui.NewFlashBar(theme),
		convs:    views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewConversationInfo(theme),
		search:   views.NewSearchView(theme),
		notes:    views.NewNotificationsView(theme),
		help:     views.NewHelpView(theme),
		auth:     views.NewAuthView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(keys.Rune('q', a.quitOrBack))
	a.registry.AddGlobal(keys.Rune('?', func() { a.show(pageHelp) }))
	a.registry.AddGlobal(keys.Rune(':', func() { a.activatePrompt(ui.PromptCommand) }))
	a.registry.AddGlobal(&keys.Action{Key: tcell.KeyEscape, Handler: a.back})

	a.registry.AddView(pageConversations, keys.Rune('/', func() { a.activatePrompt(ui.PromptFilter) }))
	a.registry.AddView(pageConversations, keys.Rune('0', a.convs.ClearFilter))
	a.registry.AddView(pageConversations, keys.Rune('n', a.showNotifications))
	a.registry.AddView(pageConversations, keys.Rune('d', func() { a.showDetails(a.convs.SelectedChat()) }))
	for n := '1'; n <= '9'; n++ {
		idx := int(n - '0')
		a.registry.AddView(pageConversations, keys.Rune(n, func() { a.openChat(a.convs.ChatByIndex(idx)) }))
	}

	a.registry.AddView(pageThread, keys.Rune('i', func() { a.app.SetFocus(a.thread.Composer()) }))
	a.registry.AddView(pageThread, keys.Rune('o', a.loadOlder))
	a.registry.AddView(pageThread, keys.Rune('d', func() { a.showDetails(a.thread.ChatID()) }))

	a.registry.AddView(pageNotifications, keys.Rune('a', a.markAllNotificationsRead))
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(stack []ui.Component) {
		a.crumbs.Update(stack)
		if len(stack) > 0 {
			a.menu.Update(stack[len(stack)-1].Hints())
		}
	})

	a.convs.SetSelectedFunc(func(row, col int) {
		a.openChat(a.convs.SelectedChat())
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.SendText(a.ctx, text); err != nil {
				a.vm.Flash.Err(errorText(err))
				a.draw(a.refreshFlash)
			}
		}()
	})
	a.thread.SetOnInput(a.typingPing)
	a.thread.SetOnLeave(func() { a.app.SetFocus(a.thread.Messages()) })

	a.search.SetOnQuery(a.runSearch)
	a.search.SetChatNamer(a.chatName)
	a.search.Results().SetSelectedFunc(func(row, col int) {
		if chatID, _ := a.search.SelectedResult(); chatID != "" {
			a.openChat(chatID)
		}
	})

	a.notes.SetSelectedFunc(func(row, col int) {
		n, ok := a.notes.Selected()
		if !ok || n.Read {
			return
		}
		go func() {
			if err := a.vm.MarkNotificationRead(a.ctx, n.ID); err != nil {
				a.vm.Flash.Err(errorText(err))
			}
			a.draw(func() {
				a.notes.Update(a.vm.Notifications())
				a.refreshFlash()
			})
		}()
	})

	a.auth.SetOnLogin(func(email, password string) {
		a.auth.ShowMessage("Signing in...")
		go func() {
			if err := a.vm.Login(a.ctx, email, password); err != nil {
				a.draw(func() { a.auth.ShowMessage(errorText(err)) })
				return
			}
			a.enterSignedIn()
		}()
	})
	a.auth.SetOnOAuth(func(provider string) {
		go func() {
			url, err := a.vm.OAuthURL(a.ctx, provider)
			a.draw(func() {
				if err != nil {
					a.auth.ShowMessage(errorText(err))
					return
				}
				a.auth.ShowQR(url)
			})
		}()
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.convs.SetFilter(text)
		case ui.PromptCommand:
			a.execute(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(a.info, 32, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 18, 0, false)

	a.pages.Add(pageConversations, a.convs)
	a.pages.Add(pageThread, a.thread)
	a.pages.Add(pageDetails, a.details)
	a.pages.Add(pageSearch, a.search)
	a.pages.Add(pageNotifications, a.notes)
	a.pages.Add(pageHelp, a.help)
	a.pages.Add(pageAuth, a.auth)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 8, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)
	a.root.SetBackgroundColor(a.theme.BgColor)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}

	// Text widgets own every key while focused.
	switch a.app.GetFocus().(type) {
	case *tview.InputField:
		if event.Key() == tcell.KeyEscape && a.pages.Current() == pageSearch {
			a.back()
			return nil
		}
		return event
	case *tview.Button:
		return event
	}
	if a.pages.Current() == pageAuth && event.Key() != tcell.KeyEscape {
		return event
	}

	if a.registry.HandleEvent(a.pages.Current(), event) {
		return nil
	}
	return event
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.bootstrap()
	go a.watch()
	go a.tick()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func (a *App) bootstrap() {
	if err := a.vm.LoadStatus(a.ctx); err != nil {
		a.vm.Flash.Err(errorText(err))
	}
	st := a.vm.Status()
	if st == nil || !st.SignedIn {
		a.draw(func() {
			a.refreshStatus()
			a.pages.Reset(pageAuth)
			a.app.SetFocus(a.auth.Form())
		})
		return
	}
	a.enterSignedIn()
}

// enterSignedIn loads the signed-in views and shows the conversation list.
func (a *App) enterSignedIn() {
	if err := a.vm.LoadConversations(a.ctx); err != nil {
		a.vm.Flash.Err(errorText(err))
	}
	if err := a.vm.LoadNotifications(a.ctx); err != nil {
		a.vm.Flash.Err(errorText(err))
	}
	a.draw(func() {
		a.auth.Reset()
		a.convs.Update(a.vm.Conversations())
		a.notes.Update(a.vm.Notifications())
		a.refreshStatus()
		a.refreshFlash()
		a.pages.Reset(pageConversations)
		a.app.SetFocus(a.convs)
	})
}

// watch follows the daemon event stream, resubscribing after a break.
func (a *App) watch() {
	for {
		err := a.vm.Watch(a.ctx, a.onChange)
		if a.ctx.Err() != nil {
			return
		}
		if err != nil {
			a.vm.Flash.Warn("Event stream interrupted: " + errorText(err))
			a.draw(a.refreshFlash)
		}
		select {
		case <-a.ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (a *App) onChange(c model.Change) {
	if c&model.ChangeConversations != 0 {
		if err := a.vm.LoadConversations(a.ctx); err != nil {
			a.vm.Flash.Err(errorText(err))
		}
	}
	if c&model.ChangeStatus != 0 {
		_ = a.vm.LoadStatus(a.ctx)
	}
	a.draw(func() {
		if c&model.ChangeConversations != 0 {
			a.convs.Update(a.vm.Conversations())
		}
		if c&(model.ChangeThread|model.ChangeConversations) != 0 && a.vm.ActiveChat() != "" {
			a.renderThread()
		}
		if c&model.ChangeNotifications != 0 {
			a.notes.Update(a.vm.Notifications())
		}
		if c&model.ChangeStatus != 0 {
			a.refreshStatus()
			if st := a.vm.Status(); st != nil && !st.SignedIn && a.pages.Current() != pageAuth {
				a.pages.Reset(pageAuth)
				a.app.SetFocus(a.auth.Form())
			}
		}
		a.refreshFlash()
	})
}

// tick refreshes the header and expires flash messages.
func (a *App) tick() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	polls := 0
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.vm.Flash.Watch():
			a.draw(a.refreshFlash)
		case <-ticker.C:
			polls++
			if polls%30 == 0 {
				_ = a.vm.LoadStatus(a.ctx)
			}
			a.draw(func() {
				a.refreshStatus()
				a.refreshFlash()
			})
		}
	}
}

func (a *App) draw(fn func()) {
	a.app.QueueUpdateDraw(fn)
}

func (a *App) refreshFlash() {
	a.flashBar.Update(a.vm.Flash.GetMessage())
}

func (a *App) refreshStatus() {
	data := &ui.SessionData{Session: a.session, Realtime: "-"}
	if st := a.vm.Status(); st != nil {
		data.Realtime = st.Realtime
		data.Queued = st.QueuedMessages
		data.Uptime = time.Duration(st.UptimeMs) * time.Millisecond
		if st.User != nil {
			data.User = st.User.DisplayName()
		}
	}
	data.Unread, data.Notifications = a.vm.Unread()
	a.info.Update(data)
}

func (a *App) renderThread() {
	a.thread.Update(a.vm.Messages(), a.vm.SelfID())
	if c, ok := a.vm.Conversation(a.vm.ActiveChat()); ok {
		a.thread.SetTyping(c.Typing)
	}
}

func (a *App) chatName(chatID string) string {
	if c, ok := a.vm.Conversation(chatID); ok {
		return c.Other.DisplayName()
	}
	return chatID
}

// show pushes page and focuses it.
func (a *App) show(page string) {
	a.pages.Push(page)
	a.focusTop()
}

func (a *App) focusTop() {
	if top := a.pages.Top(); top != nil {
		a.app.SetFocus(top.FocusTarget())
	}
}

func (a *App) back() {
	if a.pages.Depth() <= 1 {
		return
	}
	if a.pages.Pop() == pageThread {
		go a.vm.CloseChat(a.ctx)
	}
	a.focusTop()
}

func (a *App) quitOrBack() {
	if a.pages.Depth() > 1 {
		a.back()
		return
	}
	a.Stop()
}

func (a *App) activatePrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt.InputField)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusTop()
}

func (a *App) openChat(chatID string) {
	if chatID == "" {
		return
	}
	go func() {
		if err := a.vm.OpenChat(a.ctx, chatID); err != nil {
			a.vm.Flash.Err(errorText(err))
			a.draw(a.refreshFlash)
			return
		}
		_ = a.vm.LoadConversations(a.ctx)
		a.draw(func() {
			a.thread.SetChat(chatID, a.chatName(chatID))
			a.renderThread()
			a.convs.Update(a.vm.Conversations())
			if a.pages.Current() != pageThread {
				a.pages.Push(pageThread)
			}
			a.app.SetFocus(a.thread.Messages())
		})
	}()
}

func (a *App) loadOlder() {
	if !a.vm.HasMore() {
		a.vm.Flash.Info("No older messages")
		a.refreshFlash()
		return
	}
	go func() {
		if err := a.vm.LoadOlder(a.ctx); err != nil {
			a.vm.Flash.Err(errorText(err))
		}
		a.draw(func() {
			a.renderThread()
			a.thread.Messages().ScrollToBeginning()
			a.refreshFlash()
		})
	}()
}

func (a *App) typingPing() {
	a.typingMu.Lock()
	if time.Since(a.lastTyping) < typingInterval {
		a.typingMu.Unlock()
		return
	}
	a.lastTyping = time.Now()
	a.typingMu.Unlock()
	go func() { _ = a.vm.Typing(a.ctx) }()
}

func (a *App) showDetails(chatID string) {
	c, ok := a.vm.Conversation(chatID)
	if !ok {
		return
	}
	a.details.Update(c)
	a.show(pageDetails)
}

func (a *App) showNotifications() {
	a.notes.Update(a.vm.Notifications())
	a.show(pageNotifications)
	go func() {
		if err := a.vm.LoadNotifications(a.ctx); err != nil {
			a.vm.Flash.Err(errorText(err))
		}
		a.draw(func() {
			a.notes.Update(a.vm.Notifications())
			a.refreshStatus()
			a.refreshFlash()
		})
	}()
}

func (a *App) markAllNotificationsRead() {
	go func() {
		n, err := a.vm.MarkAllNotificationsRead(a.ctx)
		if err != nil {
			a.vm.Flash.Err(errorText(err))
		} else {
			a.vm.Flash.Info(pluralize(n, "notification") + " marked read")
		}
		a.draw(func() {
			a.notes.Update(a.vm.Notifications())
			a.refreshStatus()
			a.refreshFlash()
		})
	}()
}

func errorText(err error) string {
	return rpc.ErrorMessage(err)
}
