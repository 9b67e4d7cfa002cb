package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session       string
	User          string
	Realtime      string
	Unread        int
	Notifications int
	Queued        int
	Uptime        time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fgColor := colorName(si.theme.FgColor)
	counterColor := colorName(si.theme.CounterColor)

	user := data.User
	if user == "" {
		user = "-"
	}

	realtimeColor := counterColor
	switch data.Realtime {
	case "FAILED":
		realtimeColor = colorName(si.theme.FlashErrColor)
	case "RECONNECTING", "CONNECTING":
		realtimeColor = colorName(si.theme.FlashWarnColor)
	}

	text := fmt.Sprintf(
		"[%s::b]Session:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]Realtime:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Unread:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Alerts:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Outbox:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Uptime:[-:-:-]   [%s]%s[-]",
		fgColor, counterColor, tview.Escape(data.Session),
		fgColor, counterColor, tview.Escape(user),
		fgColor, realtimeColor, data.Realtime,
		fgColor, counterColor, data.Unread,
		fgColor, counterColor, data.Notifications,
		fgColor, counterColor, data.Queued,
		fgColor, counterColor, formatDuration(data.Uptime),
	)

	_, _ = fmt.Fprint(si, text)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
