package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestHandleEventPrefersView(t *testing.T) {
	r := NewRegistry()
	var global, view int
	r.AddGlobal(Rune('d', func() { global++ }))
	r.AddView("thread", Rune('d', func() { view++ }))

	ev := tcell.NewEventKey(tcell.KeyRune, 'd', tcell.ModNone)
	if !r.HandleEvent("thread", ev) {
		t.Fatal("HandleEvent(thread) = false")
	}
	if !r.HandleEvent("conversations", ev) {
		t.Fatal("HandleEvent(conversations) = false")
	}
	if view != 1 || global != 1 {
		t.Errorf("view=%d global=%d, want 1 and 1", view, global)
	}
}

func TestHandleEventSpecialKey(t *testing.T) {
	r := NewRegistry()
	hit := false
	r.AddGlobal(&Action{Key: tcell.KeyEscape, Handler: func() { hit = true }})

	if r.HandleEvent("any", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("unbound rune matched")
	}
	if !r.HandleEvent("any", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) || !hit {
		t.Error("Escape binding did not fire")
	}
}
