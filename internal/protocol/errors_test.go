package protocol

import "testing"

func TestIsKnownTermination(t *testing.T) {
	for _, code := range []string{
		TermVelocityExhausted,
		TermNoSignal,
		TermNoInitialVelocityOrDirection,
		TermInputExhausted,
		TermCycleBudgetExceeded,
	} {
		if !IsKnownTermination(code) {
			t.Fatalf("IsKnownTermination(%q) = false", code)
		}
	}
	for _, code := range []string{"", "T_UNKNOWN", "velocity_exhausted"} {
		if IsKnownTermination(code) {
			t.Fatalf("IsKnownTermination(%q) = true", code)
		}
	}
}
