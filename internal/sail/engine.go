package sail

import (
	"fmt"
	"io"
	"time"

	"velo.run/internal/lang"
	"velo.run/internal/protocol"
)

// Mode selects when snapshots are produced. Modes are mutually exclusive
// and fixed for the run's duration.
type Mode int

const (
	// ModeSilent never snapshots.
	ModeSilent Mode = iota
	// ModeDebug snapshots only immediately after a Debug rune impact.
	ModeDebug
	// ModeTrace snapshots after every cycle.
	ModeTrace
)

func (m Mode) String() string {
	switch m {
	case ModeDebug:
		return "debug"
	case ModeTrace:
		return "trace"
	}
	return "silent"
}

// EOFPolicy decides what an Input rune does when no input byte is left.
type EOFPolicy int

const (
	// EOFHalt stops the run with InputExhausted. The current cell is left
	// untouched rather than silently substituting a sentinel value.
	EOFHalt EOFPolicy = iota
	// EOFZero writes 0 into the current cell and keeps sailing.
	EOFZero
)

// Termination is the reason a run stopped. Every run ends in exactly one of
// these; there is no resumption.
type Termination int

const (
	// VelocityExhausted is the normal halt: velocity reached zero.
	VelocityExhausted Termination = iota
	// NoSignal: the vessel's next step left the cosmos.
	NoSignal
	// NoInitialVelocityOrDirection: the origin cell was not a Thrust rune.
	NoInitialVelocityOrDirection
	// InputExhausted: an Input rune fired with no byte available (EOFHalt).
	InputExhausted
	// CycleBudgetExceeded: the host's MaxCycles safety net tripped.
	CycleBudgetExceeded
)

func (t Termination) String() string {
	switch t {
	case VelocityExhausted:
		return "velocity exhausted"
	case NoSignal:
		return "no signal"
	case NoInitialVelocityOrDirection:
		return "no initial velocity or direction"
	case InputExhausted:
		return "input exhausted"
	case CycleBudgetExceeded:
		return "cycle budget exceeded"
	}
	return "unknown"
}

// Code is the wire/reporting code for this termination.
func (t Termination) Code() string {
	switch t {
	case VelocityExhausted:
		return protocol.TermVelocityExhausted
	case NoSignal:
		return protocol.TermNoSignal
	case NoInitialVelocityOrDirection:
		return protocol.TermNoInitialVelocityOrDirection
	case InputExhausted:
		return protocol.TermInputExhausted
	case CycleBudgetExceeded:
		return protocol.TermCycleBudgetExceeded
	}
	return ""
}

type Config struct {
	Mode Mode

	// Trace refinement: skip snapshots whose impacted rune is Void.
	IgnoreVoid bool

	EOF EOFPolicy

	// MaxCycles is a host safety net against runaway programs; 0 means
	// unbounded. Not part of language semantics.
	MaxCycles uint64

	// Pace inserts a fixed delay after each cycle so a live observer can
	// follow along; 0 runs flat out. Timing only, never semantics.
	Pace time.Duration
}

type Result struct {
	Termination Termination
	Cycles      uint64

	// The vessel's position when the run ended. For NoSignal this is the
	// last in-bounds cell, reported to the user as the last signal
	// coordinate.
	Row, Col int
}

// Sail runs the program until it halts. Input is pulled one byte at a time
// from in; each Output rune writes one byte to out. Snapshots fan out to
// sinks per cfg.Mode. The returned error is non-nil only for host I/O
// failures or a failing sink, never for a normal termination.
func Sail(cosmos *lang.Cosmos, vessel *lang.Vessel, cfg Config, in io.ByteReader, out io.Writer, sinks ...Sink) (Result, error) {
	if vessel.Velocity() == 0 {
		row, col := vessel.Position()
		return Result{Termination: NoInitialVelocityOrDirection, Row: row, Col: col}, nil
	}

	var cycles uint64
	for {
		if cfg.MaxCycles > 0 && cycles >= cfg.MaxCycles {
			row, col := vessel.Position()
			return Result{Termination: CycleBudgetExceeded, Cycles: cycles, Row: row, Col: col}, nil
		}

		row, col := vessel.NextPosition()
		if !cosmos.InBounds(row, col) {
			lastRow, lastCol := vessel.Position()
			return Result{Termination: NoSignal, Cycles: cycles, Row: lastRow, Col: lastCol}, nil
		}

		vessel.MoveTo(row, col)
		r := cosmos.Get(row, col)
		cycles++

		var inputByte []byte
		switch vessel.Impact(r) {
		case lang.EffectInput:
			b, err := in.ReadByte()
			switch {
			case err == nil:
				vessel.SetEntropy(uint32(b))
				inputByte = []byte{b}
			case err == io.EOF:
				if cfg.EOF != EOFZero {
					return Result{Termination: InputExhausted, Cycles: cycles, Row: row, Col: col}, nil
				}
				vessel.SetEntropy(0)
			default:
				return Result{Cycles: cycles, Row: row, Col: col}, fmt.Errorf("read input: %w", err)
			}
		case lang.EffectOutput:
			if _, err := out.Write([]byte{byte(vessel.Entropy() & 0xFF)}); err != nil {
				return Result{Cycles: cycles, Row: row, Col: col}, fmt.Errorf("write output: %w", err)
			}
		}

		// Velocity-affecting and cell-affecting runes are disjoint, so the
		// halting cycle has no other side effects to lose; the snapshot
		// below still records the final state.
		halted := vessel.Velocity() == 0

		if wantSnapshot(cfg, r) && len(sinks) > 0 {
			snap := Snapshot{
				Cycle:    cycles,
				Row:      row,
				Col:      col,
				Dir:      vessel.Direction(),
				Velocity: vessel.Velocity(),
				Entropy:  vessel.Entropy(),
				Rune:     r,
				Lattice:  vessel.Lattice(),
				Input:    inputByte,
			}
			snap.Digest = snap.computeDigest()
			for _, s := range sinks {
				if err := s.Emit(snap); err != nil {
					return Result{Cycles: cycles, Row: row, Col: col}, fmt.Errorf("snapshot sink: %w", err)
				}
			}
		}

		if halted {
			return Result{Termination: VelocityExhausted, Cycles: cycles, Row: row, Col: col}, nil
		}

		if cfg.Pace > 0 {
			time.Sleep(cfg.Pace)
		}
	}
}

func wantSnapshot(cfg Config, r lang.Rune) bool {
	switch cfg.Mode {
	case ModeDebug:
		return r.Kind == lang.Debug
	case ModeTrace:
		return !(cfg.IgnoreVoid && r.Kind == lang.Void)
	}
	return false
}
