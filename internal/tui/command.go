package tui

import (
	"fmt"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Fields splits the arguments on whitespace.
func (c Command) Fields() []string {
	return strings.Fields(c.Args)
}

func (a *App) execute(cmd Command) {
	switch cmd.Name {
	case "q", "quit":
		a.Stop()
	case "h", "help", "?":
		a.show(pageHelp)
	case "search", "s":
		if a.pages.Current() == pageThread {
			a.search.SetScope(a.vm.ActiveChat(), a.chatName(a.vm.ActiveChat()))
		} else if a.pages.Current() != pageSearch {
			a.search.SetScope("", "")
		}
		a.show(pageSearch)
		if cmd.Args == "" {
			a.app.SetFocus(a.search.Input())
			return
		}
		a.runSearch(cmd.Args)
	case "chat", "c":
		a.openChatByName(cmd.Args)
	case "start":
		a.startChat(cmd.Fields())
	case "n", "notifications":
		a.showNotifications()
	case "reconnect":
		go func() {
			if err := a.vm.Reconnect(a.ctx); err != nil {
				a.vm.Flash.Err(errorText(err))
			} else {
				a.vm.Flash.Info("Reconnecting...")
			}
			a.draw(a.refreshFlash)
		}()
	case "login":
		a.pages.Reset(pageAuth)
		a.app.SetFocus(a.auth.Form())
	case "logout":
		go func() {
			if err := a.vm.Logout(a.ctx); err != nil {
				a.vm.Flash.Err(errorText(err))
				a.draw(a.refreshFlash)
				return
			}
			a.vm.Flash.Info("Signed out")
			a.draw(func() {
				a.convs.Update(nil)
				a.notes.Update(nil)
				a.refreshStatus()
				a.refreshFlash()
				a.pages.Reset(pageAuth)
				a.app.SetFocus(a.auth.Form())
			})
		}()
	default:
		a.vm.Flash.Warn(fmt.Sprintf("Unknown command %q", cmd.Name))
		a.refreshFlash()
	}
}

func (a *App) runSearch(query string) {
	a.search.Input().SetText(query)
	go func() {
		results, err := a.vm.Search(a.ctx, query, a.search.Scope())
		if err != nil {
			a.vm.Flash.Err(errorText(err))
			a.draw(a.refreshFlash)
			return
		}
		a.draw(func() {
			a.search.Update(results)
			a.app.SetFocus(a.search.Results())
		})
	}()
}

func (a *App) openChatByName(name string) {
	if name == "" {
		a.vm.Flash.Warn("Usage: :chat <name>")
		a.refreshFlash()
		return
	}
	for _, c := range a.vm.Conversations() {
		if strings.Contains(strings.ToLower(c.Other.DisplayName()), strings.ToLower(name)) ||
			strings.EqualFold(c.Other.Username, name) {
			a.openChat(c.ID)
			return
		}
	}
	a.vm.Flash.Warn(fmt.Sprintf("No conversation matches %q", name))
	a.refreshFlash()
}

func (a *App) startChat(args []string) {
	if len(args) == 0 || len(args) > 2 {
		a.vm.Flash.Warn("Usage: :start <user-id> [product-id]")
		a.refreshFlash()
		return
	}
	product := ""
	if len(args) == 2 {
		product = args[1]
	}
	go func() {
		chatID, err := a.vm.StartChat(a.ctx, args[0], product)
		if err != nil {
			a.vm.Flash.Err(errorText(err))
			a.draw(a.refreshFlash)
			return
		}
		_ = a.vm.LoadConversations(a.ctx)
		a.openChat(chatID)
	}()
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
