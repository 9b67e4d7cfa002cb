package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/souk/internal/rpc"
	"github.com/matheus3301/souk/internal/tui/ui"
	"github.com/rivo/tview"
)

// NotificationsView lists the activity feed, newest first.
type NotificationsView struct {
	*tview.Table
	theme *ui.Theme
	items []rpc.Notification
}

// NewNotificationsView creates the activity feed table.
func NewNotificationsView(theme *ui.Theme) *NotificationsView {
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
	table.SetTitle(" Notifications ")
	table.SetTitleColor(theme.TitleColor)

	return &NotificationsView{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (nv *NotificationsView) Name() string { return "Notifications" }

// FocusTarget implements Component.
func (nv *NotificationsView) FocusTarget() tview.Primitive { return nv }

// Hints implements Component.
func (nv *NotificationsView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Mark read"},
		{Key: "a", Description: "Mark all read"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// Update redraws the feed.
func (nv *NotificationsView) Update(items []rpc.Notification) {
	nv.items = items
	nv.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" ", 0},
		{" CATEGORY", 0},
		{" TITLE", 1},
		{" MESSAGE", 3},
		{" TIME", 0},
	}
	for col, h := range headers {
		nv.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(nv.theme.TableHeaderFg).
			SetBackgroundColor(nv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	unread := 0
	for i, n := range items {
		row := i + 1
		marker := " "
		color := nv.theme.FgColor
		if !n.Read {
			marker = "●"
			color = nv.theme.CounterColor
			unread++
		}
		nv.SetCell(row, 0, tview.NewTableCell(" "+marker).SetTextColor(nv.theme.NumericKeyColor))
		nv.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(n.Category)).SetTextColor(color))
		nv.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(n.Title))).SetExpansion(1).SetTextColor(color))
		nv.SetCell(row, 3, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(n.Message))).SetExpansion(3).SetTextColor(color))
		nv.SetCell(row, 4, tview.NewTableCell(formatTimestamp(n.CreatedAt)).SetTextColor(color).SetAlign(tview.AlignRight))
	}
	nv.SetTitle(fmt.Sprintf(" Notifications (%d unread) ", unread))
}

// Selected returns the highlighted notification.
func (nv *NotificationsView) Selected() (rpc.Notification, bool) {
	row, _ := nv.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(nv.items) {
		return rpc.Notification{}, false
	}
	return nv.items[idx], true
}
