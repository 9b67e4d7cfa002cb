package ui

import (
	"slices"
	"strings"
	"testing"

	"github.com/rivo/tview"
)

type stubPage struct {
	*tview.Box
	name string
}

func (s stubPage) Name() string                 { return s.name }
func (s stubPage) Hints() []MenuHint            { return nil }
func (s stubPage) FocusTarget() tview.Primitive { return s.Box }

func TestPagesStack(t *testing.T) {
	p := NewPages()
	for _, name := range []string{"conversations", "thread", "details"} {
		p.Add(name, stubPage{Box: tview.NewBox(), name: name})
	}
	var seen [][]Component
	p.SetOnChange(func(stack []Component) { seen = append(seen, stack) })

	p.Reset("conversations")
	p.Push("thread")
	p.Push("details")
	p.Push("details")
	if p.Current() != "details" || p.Depth() != 3 {
		t.Fatalf("Current=%q Depth=%d", p.Current(), p.Depth())
	}
	if p.Top().Name() != "details" {
		t.Errorf("Top().Name() = %q", p.Top().Name())
	}
	if got := p.Pop(); got != "details" {
		t.Errorf("Pop() = %q, want details", got)
	}
	if !slices.Equal(p.Stack(), []string{"conversations", "thread"}) {
		t.Errorf("Stack() = %v", p.Stack())
	}
	if len(seen) != 4 {
		t.Errorf("onChange fired %d times, want 4", len(seen))
	}
	if last := seen[len(seen)-1]; len(last) != 2 || last[1].Name() != "thread" {
		t.Errorf("last onChange stack = %v", last)
	}

	p.Pop()
	p.Pop()
	if p.Pop() != "" || p.Depth() != 0 || p.Top() != nil {
		t.Error("Pop on empty stack should be a no-op")
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())

	p.Activate(PromptCommand)
	for _, cmd := range []string{"search bike", "n", "n"} {
		p.SetText(cmd)
		p.remember(p.GetText())
	}
	p.Activate(PromptCommand)
	p.recall(-1)
	if p.GetText() != "n" {
		t.Errorf("recall(-1) = %q, want n", p.GetText())
	}
	p.recall(-1)
	if p.GetText() != "search bike" {
		t.Errorf("recall(-1) twice = %q, want search bike", p.GetText())
	}
	p.recall(-1)
	if p.GetText() != "search bike" {
		t.Errorf("recall past oldest = %q", p.GetText())
	}
	p.recall(1)
	p.recall(1)
	if p.GetText() != "" {
		t.Errorf("recall back to fresh line = %q, want empty", p.GetText())
	}

	p.Activate(PromptFilter)
	p.recall(-1)
	if p.GetText() != "" {
		t.Errorf("filter history leaked command %q", p.GetText())
	}
}

func TestRenderQR(t *testing.T) {
	out, err := RenderQR("https://auth.example.com/authorize?state=abc", "  ")
	if err != nil {
		t.Fatal(err)
	}
	lines := slices.DeleteFunc(strings.Split(out, "\n"), func(s string) bool { return s == "" })
	if len(lines) < 10 {
		t.Fatalf("QR has %d lines, want a full code", len(lines))
	}
	for _, l := range lines {
		if l[:2] != "  " {
			t.Fatalf("line %q missing indent", l)
		}
	}
}

func TestFlashModelExpiry(t *testing.T) {
	f := NewFlashModel()
	if f.GetMessage() != nil {
		t.Fatal("new model has a message")
	}
	f.Warn("link lost")
	msg := f.GetMessage()
	if msg == nil || msg.Level != FlashWarn || msg.Text != "link lost" {
		t.Fatalf("GetMessage() = %+v", msg)
	}
	f.Set("gone", -1)
	if f.Get() != "" {
		t.Error("expired message still visible")
	}
}
