package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"open 42", Command{Name: "open", Args: "42"}},
		{"  o   7 ", Command{Name: "open", Args: "7"}},
		{"Filter bob smith", Command{Name: "filter", Args: "bob smith"}},
		{"q", Command{Name: "quit"}},
		{"refresh", Command{Name: "refresh"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseCommand(tt.in); got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
