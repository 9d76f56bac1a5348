package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIISSN(t *testing.T) {
	out, changed := RedactPII("My SSN is 123-45-6789, please remember it.")
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if !strings.Contains(out, "[REDACTED_SSN]") {
		t.Fatalf("output missing SSN marker: %q", out)
	}
	if strings.Contains(out, "123-45-6789") {
		t.Fatalf("SSN leaked through redaction: %q", out)
	}
}

func TestRedactPIINoChange(t *testing.T) {
	input := "Nothing sensitive here."
	out, changed := RedactPII(input)
	if changed {
		t.Fatalf("changed = true, want false")
	}
	if out != input {
		t.Fatalf("output mutated: %q", out)
	}
}
