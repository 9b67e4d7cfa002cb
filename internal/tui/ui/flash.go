package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo: 5 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  10 * time.Second,
}

// FlashMessage is one transient notice.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the latest flash message. Setters are safe from any
// goroutine; Watch wakes the UI when a message arrives.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	watchCh chan struct{}
}

// NewFlashModel creates a new flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{watchCh: make(chan struct{}, 1)}
}

// Info shows an informational message.
func (f *FlashModel) Info(msg string) { f.set(msg, FlashInfo, flashTTL[FlashInfo]) }

// Warn shows a warning.
func (f *FlashModel) Warn(msg string) { f.set(msg, FlashWarn, flashTTL[FlashWarn]) }

// Err shows an error message.
func (f *FlashModel) Err(msg string) { f.set(msg, FlashErr, flashTTL[FlashErr]) }

// Set shows an info message for d.
func (f *FlashModel) Set(msg string, d time.Duration) { f.set(msg, FlashInfo, d) }

// Clear drops the current message.
func (f *FlashModel) Clear() { f.set("", FlashInfo, 0) }

func (f *FlashModel) set(msg string, level FlashLevel, d time.Duration) {
	f.mu.Lock()
	f.current = FlashMessage{Text: msg, Level: level, Expires: time.Now().Add(d)}
	f.mu.Unlock()
	select {
	case f.watchCh <- struct{}{}:
	default:
	}
}

// Get returns the current text, or "" once it expired.
func (f *FlashModel) Get() string {
	if m := f.GetMessage(); m != nil {
		return m.Text
	}
	return ""
}

// GetMessage returns the live message, or nil when there is none.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || time.Now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// Watch signals every time a message is set.
func (f *FlashModel) Watch() <-chan struct{} {
	return f.watchCh
}

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders msg, or clears the bar for nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	color := fb.theme.FlashInfoColor
	switch msg.Level {
	case FlashWarn:
		color = fb.theme.FlashWarnColor
	case FlashErr:
		color = fb.theme.FlashErrColor
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", colorName(color), tview.Escape(msg.Text))
}
