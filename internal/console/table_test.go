package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
)

func TestRenderCandidates(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{})

	out := p.RenderCandidates([]domain.WindowHandle{
		{Title: "Safari", App: "Safari", PID: 412},
		{Title: "Terminal", App: "Terminal"},
	})

	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Safari")
	assert.Contains(t, out, "412")
	assert.Contains(t, out, "Terminal")
	assert.Less(t, strings.Index(out, "Safari"), strings.Index(out, "Terminal"), "enumeration order kept")
}

func TestRenderCandidates_Empty(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{})

	assert.Contains(t, p.RenderCandidates(nil), "No active windows detected.")
}

func TestPrinter_Switch(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Switch("Mail", domain.OutcomeActivated)
	p.Switch("Notes", domain.OutcomeSkipped)
	p.Switch("Chat", domain.OutcomeFailed)
	p.Status("Pausing for %d seconds", 12)

	out := buf.String()
	assert.Contains(t, out, "Switched to: Mail")
	assert.Contains(t, out, "Skipped: Notes")
	assert.Contains(t, out, "Failed to switch to: Chat")
	assert.Contains(t, out, "Pausing for 12 seconds")
}
