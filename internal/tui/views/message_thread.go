package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays messages and a composer for a single chat.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	typing   *tview.TextView
	composer *tview.InputField
	chatName string
	chatID   string
	onSend   func(text string)
	onInput  func()
	onLeave  func()
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	typing := tview.NewTextView().
		SetDynamicColors(true)
	typing.SetBackgroundColor(theme.BgColor)
	typing.SetTextColor(theme.TypingColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(typing, 1, 0, false).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		typing:   typing,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape && mt.onLeave != nil {
			mt.onLeave()
			return
		}
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := strings.TrimSpace(composer.GetText())
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})
	composer.SetChangedFunc(func(text string) {
		if text != "" && mt.onInput != nil {
			mt.onInput()
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.chatName != "" {
		return mt.chatName
	}
	return "Messages"
}

// FocusTarget implements Component.
func (mt *MessageThread) FocusTarget() tview.Primitive { return mt.messages }

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "o", Description: "Older"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// SetChat binds the view to a conversation.
func (mt *MessageThread) SetChat(id, name string) {
	mt.chatID = id
	mt.chatName = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
	mt.typing.Clear()
}

// ChatID returns the current conversation ID.
func (mt *MessageThread) ChatID() string {
	return mt.chatID
}

// SetOnSend sets the callback when a message is submitted.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnLeave sets the callback for Esc in the composer.
func (mt *MessageThread) SetOnLeave(fn func()) {
	mt.onLeave = fn
}

// SetOnInput sets the callback fired on every composer keystroke.
func (mt *MessageThread) SetOnInput(fn func()) {
	mt.onInput = fn
}

// Update redraws the thread. msgs are oldest first; selfID marks own messages.
func (mt *MessageThread) Update(msgs []rpc.Message, selfID string) {
	mt.messages.Clear()

	for _, m := range msgs {
		sender := mt.chatName
		own := m.SenderID == selfID || m.TempID != ""
		if own {
			sender = "You"
		}

		mark := ""
		switch m.Status {
		case "pending":
			mark = fmt.Sprintf(" [%s]sending…[-]", ui.Tag(mt.theme.PendingColor))
		case "failed":
			mark = fmt.Sprintf(" [%s]failed: %s[-]", ui.Tag(mt.theme.FailedColor), tview.Escape(m.Error))
		default:
			if own && m.Read {
				mark = " [::d]read[-:-:-]"
			}
		}

		body := m.Content
		if m.Type == "image" {
			body = "[image] " + m.ImageURL
		}

		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)), formatTimestamp(m.CreatedAt), mark,
			tview.Escape(sanitizeForTerminal(body)))
		_, _ = fmt.Fprint(mt.messages, line)
	}

	mt.messages.ScrollToEnd()
}

// SetTyping shows who is typing right now; an empty list clears the line.
func (mt *MessageThread) SetTyping(users []string) {
	mt.typing.Clear()
	if len(users) == 0 {
		return
	}
	_, _ = fmt.Fprintf(mt.typing, " [::i]%s is typing...[-:-:-]", tview.Escape(mt.chatName))
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
