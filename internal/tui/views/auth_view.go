package views

import (
	"fmt"

	"github.com/matheus3301/souk/internal/tui/ui"
	"github.com/rivo/tview"
)

// AuthView is the sign-in screen: an email/password form next to a panel that
// shows messages or an OAuth QR code.
type AuthView struct {
	*tview.Flex
	theme   *ui.Theme
	form    *tview.Form
	info    *tview.TextView
	onLogin func(email, password string)
	onOAuth func(provider string)
}

// NewAuthView creates a new auth view.
func NewAuthView(theme *ui.Theme) *AuthView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.BorderColor)
	form.SetTitle(" Sign in ")
	form.SetTitleColor(theme.TitleColor)

	info := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	info.SetBorder(true)
	info.SetBorderColor(theme.BorderColor)
	info.SetBackgroundColor(theme.BgColor)
	info.SetTextColor(theme.FgColor)
	info.SetTitle(" Authentication Required ")
	info.SetTitleColor(theme.TitleColor)

	av := &AuthView{
		Flex: tview.NewFlex().
			AddItem(form, 0, 1, true).
			AddItem(info, 0, 1, false),
		theme: theme,
		form:  form,
		info:  info,
	}

	form.AddInputField("Email", "", 0, nil, nil)
	form.AddPasswordField("Password", "", 0, '*', nil)
	form.AddButton("Login", func() {
		if av.onLogin != nil {
			av.onLogin(av.fieldText("Email"), av.fieldText("Password"))
		}
	})
	form.AddButton("Google", func() {
		if av.onOAuth != nil {
			av.onOAuth("google")
		}
	})
	return av
}

// Name implements Component.
func (av *AuthView) Name() string { return "Auth" }

// FocusTarget implements Component.
func (av *AuthView) FocusTarget() tview.Primitive { return av.form }

// Hints implements Component.
func (av *AuthView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Submit"},
		{Key: "Ctrl-C", Description: "Quit"},
	}
}

func (av *AuthView) fieldText(label string) string {
	if f, ok := av.form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return f.GetText()
	}
	return ""
}

// SetOnLogin sets the callback for the Login button.
func (av *AuthView) SetOnLogin(fn func(email, password string)) {
	av.onLogin = fn
}

// SetOnOAuth sets the callback for the OAuth provider button.
func (av *AuthView) SetOnOAuth(fn func(provider string)) {
	av.onOAuth = fn
}

// Reset clears the password and any message.
func (av *AuthView) Reset() {
	if f, ok := av.form.GetFormItemByLabel("Password").(*tview.InputField); ok {
		f.SetText("")
	}
	av.info.Clear()
}

// Form returns the sign-in form (for focus management).
func (av *AuthView) Form() *tview.Form {
	return av.form
}

// ShowQR renders the authorization URL as a QR code with the URL below it.
func (av *AuthView) ShowQR(url string) {
	av.info.Clear()
	qr, err := ui.RenderQR(url, "  ")
	if err != nil {
		av.ShowMessage("QR generation failed: " + err.Error())
		return
	}
	_, _ = fmt.Fprintf(av.info, "\n  Scan to sign in with your provider:\n\n%s\n  [::d]%s[-:-:-]\n\n  [::d]Finish with: soukctl oauth callback google <code>[-:-:-]",
		qr, tview.Escape(url))
}

// ShowMessage displays a status message.
func (av *AuthView) ShowMessage(msg string) {
	av.info.Clear()
	_, _ = fmt.Fprintf(av.info, "\n\n%s", tview.Escape(msg))
}
