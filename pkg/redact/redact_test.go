package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "contactez marie.dupont@exemple.fr au 06 12 34 56 78"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "contactez marie.dupont@exemple.fr au +33 6 12 34 56 78"
	got := Text(in)
	if got == in {
		t.Fatalf("expected redaction")
	}
	if want := "[REDACTED_EMAIL]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
	if want := "[REDACTED_PHONE]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
}

func TestRedactLeavesShortNumbers(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "le budget est de 10000 euros"
	if got := Text(in); got != in {
		t.Fatalf("plain amounts should not be redacted, got %q", got)
	}
}
