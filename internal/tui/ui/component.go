package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // digit shortcuts use a different color
}

// Component is a page of the TUI.
type Component interface {
	tview.Primitive
	Name() string
	Hints() []MenuHint
	// FocusTarget is the widget that receives focus when the page is shown.
	FocusTarget() tview.Primitive
}
