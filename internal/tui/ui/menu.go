package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows is how many hints fit in one column of the header.
const menuRows = 6

// Menu lays out keyboard hints in columns next to the session panel.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints column by column, menuRows per column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()

	cols := (len(hints) + menuRows - 1) / menuRows
	width := 0
	for _, h := range hints {
		width = max(width, len(h.Key)+len(h.Description)+3)
	}

	var b strings.Builder
	for row := range menuRows {
		for col := range cols {
			i := col*menuRows + row
			if i >= len(hints) {
				break
			}
			b.WriteString(m.cell(hints[i], width))
		}
		b.WriteByte('\n')
	}
	_, _ = fmt.Fprint(m, b.String())
}

func (m *Menu) cell(h MenuHint, width int) string {
	kc := colorName(m.theme.MenuKeyColor)
	if h.Numeric {
		kc = colorName(m.theme.NumericKeyColor)
	}
	pad := width - len(h.Key) - len(h.Description) - 3
	return fmt.Sprintf("[%s::b]<%s>[-:-:-] %s%s  ", kc, tview.Escape(h.Key), h.Description, strings.Repeat(" ", max(pad, 0)))
}
