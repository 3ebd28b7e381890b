package protocol

// Termination codes. These are normal, expected run outcomes, not failures;
// the CLI maps each one to a distinct process exit status.
const (
	// Velocity reached zero: the program stopped itself.
	TermVelocityExhausted = "T_VELOCITY_EXHAUSTED"

	// The vessel moved past the cosmos boundary.
	TermNoSignal = "T_NO_SIGNAL"

	// The origin cell was not a Thrust rune; no cycle ran.
	TermNoInitialVelocityOrDirection = "T_NO_INITIAL_VELOCITY_OR_DIRECTION"

	// An Input rune fired with no input bytes left (halt EOF policy).
	TermInputExhausted = "T_INPUT_EXHAUSTED"

	// The host's cycle budget ran out before the program halted.
	TermCycleBudgetExceeded = "T_CYCLE_BUDGET_EXCEEDED"
)

var knownTerminations = map[string]struct{}{
	TermVelocityExhausted:            {},
	TermNoSignal:                     {},
	TermNoInitialVelocityOrDirection: {},
	TermInputExhausted:               {},
	TermCycleBudgetExceeded:          {},
}

func IsKnownTermination(code string) bool {
	_, ok := knownTerminations[code]
	return ok
}
