package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPaletteSubmitsTrimmedInput(t *testing.T) {
	t.Parallel()
	p := NewPalette([]string{"go dashboard", "go account", "logout"})
	p.Open()
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("go ")})
	if got := p.Matching(); len(got) != 2 {
		t.Fatalf("expected two matching hints, got %v", got)
	}
	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if p.Visible() {
		t.Fatalf("palette still visible after enter")
	}
	msg, ok := cmd().(PaletteSubmitMsg)
	if !ok || msg.Input != "go" {
		t.Fatalf("unexpected submit %+v", msg)
	}
}

func TestPaletteEscCancels(t *testing.T) {
	t.Parallel()
	p := NewPalette(nil)
	p.Open()
	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if p.Visible() {
		t.Fatalf("palette still visible after esc")
	}
	if _, ok := cmd().(PaletteCancelMsg); !ok {
		t.Fatalf("expected cancel message")
	}
}
