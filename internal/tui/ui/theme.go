package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the TUI palette.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TitleColor       tcell.Color
	CounterColor     tcell.Color

	TableHeaderFg tcell.Color
	TableHeaderBg tcell.Color
	TableCursorFg tcell.Color
	TableCursorBg tcell.Color

	CrumbActiveFg   tcell.Color
	CrumbActiveBg   tcell.Color
	CrumbInactiveFg tcell.Color
	CrumbInactiveBg tcell.Color

	MenuKeyColor    tcell.Color
	NumericKeyColor tcell.Color

	FlashInfoColor tcell.Color
	FlashWarnColor tcell.Color
	FlashErrColor  tcell.Color

	PromptBorderColor tcell.Color
	UnreadColor       tcell.Color
	TypingColor       tcell.Color
	PendingColor      tcell.Color
	FailedColor       tcell.Color
}

// DefaultTheme returns the dark souk palette.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorWheat,
		BorderColor:      tcell.ColorDarkCyan,
		BorderFocusColor: tcell.ColorTurquoise,
		TitleColor:       tcell.ColorGold,
		CounterColor:     tcell.ColorPapayaWhip,

		TableHeaderFg: tcell.ColorWhite,
		TableHeaderBg: tcell.ColorBlack,
		TableCursorFg: tcell.ColorBlack,
		TableCursorBg: tcell.ColorTurquoise,

		CrumbActiveFg:   tcell.ColorBlack,
		CrumbActiveBg:   tcell.ColorGold,
		CrumbInactiveFg: tcell.ColorBlack,
		CrumbInactiveBg: tcell.ColorDarkCyan,

		MenuKeyColor:    tcell.ColorTurquoise,
		NumericKeyColor: tcell.ColorGold,

		FlashInfoColor: tcell.ColorNavajoWhite,
		FlashWarnColor: tcell.ColorOrange,
		FlashErrColor:  tcell.ColorOrangeRed,

		PromptBorderColor: tcell.ColorTurquoise,
		UnreadColor:       tcell.ColorGold,
		TypingColor:       tcell.ColorMediumSpringGreen,
		PendingColor:      tcell.ColorGray,
		FailedColor:       tcell.ColorOrangeRed,
	}
}

// Tag returns c as a tview color tag value.
func Tag(c tcell.Color) string {
	return colorName(c)
}
