package color

import (
	"strings"
	"testing"
)

func TestDisabledPassthrough(t *testing.T) {
	state.once.Do(func() {})
	state.enabled = false

	if got := Success("ok"); got != "ok" {
		t.Errorf("expected plain text when disabled, got %q", got)
	}
	if got := Warning("careful"); got != "careful" {
		t.Errorf("expected plain text when disabled, got %q", got)
	}
}

func TestEnabledWrapsWithReset(t *testing.T) {
	state.once.Do(func() {})
	state.enabled = true
	defer func() { state.enabled = false }()

	got := Error("boom")
	if !strings.HasPrefix(got, "\033[31m") || !strings.HasSuffix(got, reset) {
		t.Errorf("expected ANSI-wrapped text, got %q", got)
	}
	if !strings.Contains(got, "boom") {
		t.Errorf("expected message preserved, got %q", got)
	}
}
