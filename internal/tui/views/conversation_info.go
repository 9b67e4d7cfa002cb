package views

import (
	"fmt"

	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// FocusTarget implements Component.
func (ci *ConversationInfo) FocusTarget() tview.Primitive { return ci }

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(c rpc.Conversation) {
	ci.Clear()

	fg := ui.Tag(ci.theme.FgColor)
	ct := ui.Tag(ci.theme.CounterColor)

	role := "Buyer"
	if c.Other.IsSeller {
		role = "Seller"
	}

	lastActive := formatTimestamp(c.LastActivity)
	if lastActive == "" {
		lastActive = "-"
	}
	last := "-"
	if c.LastMessage != nil {
		last = messagePreview(*c.LastMessage)
	}

	rows := [][2]string{
		{"Name", c.Other.DisplayName()},
		{"Username", c.Other.Username},
		{"User ID", string(c.Other.ID)},
		{"Role", role},
		{"Product", c.ProductTitle},
		{"Chat ID", c.ID},
		{"Unread", fmt.Sprint(c.Unread)},
		{"Last Active", lastActive},
		{"Last Message", last},
	}
	_, _ = fmt.Fprintln(ci)
	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", fg, r[0]+":", ct, tview.Escape(sanitizeForTerminal(r[1])))
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(c.Other.DisplayName())))
}
