package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

var logoLines = []string{
	"╔═╗╔═╗╦ ╦╦╔═",
	"╚═╗║ ║║ ║╠╩╗",
	"╚═╝╚═╝╚═╝╩ ╩",
}

// NewLogo returns the header logo.
func NewLogo(theme *Theme) *tview.TextView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	title := colorName(theme.TitleColor)
	for _, l := range logoLines {
		_, _ = fmt.Fprintf(tv, "[%s::b]%s[-:-:-]\n", title, l)
	}
	_, _ = fmt.Fprintf(tv, "[%s]marketplace chat[-]", colorName(theme.FgColor))
	return tv
}
