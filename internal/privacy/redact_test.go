package privacy

import (
	"strings"
	"testing"
)

func TestRedactMasksSpokenPII(t *testing.T) {
	input := "Mi mail es marta@example.com, llamame al +54 11 5555-0000 y pago con 4242 4242 4242 4242."
	out, changed := Redact(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactMasksNationalID(t *testing.T) {
	for _, input := range []string{
		"mi dni es 12345678",
		"mi documento es 12.345.678",
		"documento 1234567",
	} {
		out, changed := Redact(input)
		if !changed || !strings.Contains(out, "[REDACTED_DNI]") {
			t.Fatalf("input %q: output %q", input, out)
		}
	}
}

func TestRedactLeavesPlainSpeechAlone(t *testing.T) {
	for _, input := range []string{
		"quiero un turno para mañana a las tres",
		"el 10 de marzo de 2026 a las 14:00",
	} {
		out, changed := Redact(input)
		if changed || out != input {
			t.Fatalf("plain speech altered: %q", out)
		}
	}
}
