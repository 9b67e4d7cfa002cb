package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantArgs string
	}{
		{"quit", "quit", ""},
		{"  Search  red bike ", "search", "red bike"},
		{"start 42 7", "start", "42 7"},
		{"", "", ""},
	}
	for _, tt := range tests {
		got := ParseCommand(tt.input)
		if got.Name != tt.wantName || got.Args != tt.wantArgs {
			t.Errorf("ParseCommand(%q) = %+v, want name=%q args=%q", tt.input, got, tt.wantName, tt.wantArgs)
		}
	}
}

func TestCommandFields(t *testing.T) {
	got := ParseCommand("start  42   7").Fields()
	if len(got) != 2 || got[0] != "42" || got[1] != "7" {
		t.Errorf("Fields() = %v, want [42 7]", got)
	}
}

func TestPluralize(t *testing.T) {
	if got := pluralize(1, "notification"); got != "1 notification" {
		t.Errorf("pluralize(1) = %q", got)
	}
	if got := pluralize(3, "notification"); got != "3 notifications" {
		t.Errorf("pluralize(3) = %q", got)
	}
}
