package lang

// Effect is what the engine still has to do after a rune impact. The vessel
// applies every state change it owns (direction, velocity, lattice cell);
// I/O and instrumentation stay with the engine.
type Effect int

const (
	EffectNone Effect = iota
	// EffectInput: read one input byte into the current cell.
	EffectInput
	// EffectOutput: emit the low 8 bits of the current cell as one byte.
	EffectOutput
	// EffectDebug: produce a debug snapshot.
	EffectDebug
)

// Vessel is the single execution cursor. Velocity doubles as the lattice
// address: the "current cell" is always lattice[velocity], so motion state
// and the memory pointer can never drift apart.
type Vessel struct {
	row, col int
	dir      Direction
	velocity uint32
	lattice  *Lattice
}

// NewVessel places a vessel at the cosmos origin. Direction and velocity
// come from the origin rune: a Thrust rune sets its direction and velocity 1;
// anything else leaves velocity 0, which the engine reports as
// NoInitialVelocityOrDirection before any cycle runs.
func NewVessel(origin Rune) *Vessel {
	v := &Vessel{lattice: NewLattice()}
	if origin.Kind == Thrust {
		v.dir = origin.Dir
		v.velocity = 1
	}
	return v
}

func (v *Vessel) Position() (row, col int) { return v.row, v.col }
func (v *Vessel) Direction() Direction     { return v.dir }
func (v *Vessel) Velocity() uint32         { return v.velocity }

// Entropy is the value of the cell the velocity currently addresses.
func (v *Vessel) Entropy() uint32 { return v.lattice.Get(v.velocity) }

func (v *Vessel) SetEntropy(val uint32) { v.lattice.Set(v.velocity, val) }

// Lattice returns a copy of the full lattice contents for snapshots.
func (v *Vessel) Lattice() []uint32 { return v.lattice.Cells() }

// NextPosition is the cell one step ahead in the current direction. It may
// be out of bounds; the engine checks before moving.
func (v *Vessel) NextPosition() (row, col int) {
	dr, dc := v.dir.Delta()
	return v.row + dr, v.col + dc
}

func (v *Vessel) MoveTo(row, col int) {
	v.row, v.col = row, col
}

// Impact applies the rune's transition to the vessel and returns the effect
// left for the engine to perform.
func (v *Vessel) Impact(r Rune) Effect {
	switch r.Kind {
	case Thrust:
		v.applyThrust(r.Dir)
	case Parking:
		v.velocity = 1
	case Charge:
		v.SetEntropy(v.Entropy() + 1)
	case Drain:
		// Floored at 0, never underflows.
		if e := v.Entropy(); e >= 1 {
			v.SetEntropy(e - 1)
		}
	case SteerLeft:
		if v.Entropy() != 0 {
			v.dir = v.dir.TurnLeft()
		}
	case SteerRight:
		if v.Entropy() != 0 {
			v.dir = v.dir.TurnRight()
		}
	case Input:
		return EffectInput
	case Output:
		return EffectOutput
	case Debug:
		return EffectDebug
	}
	return EffectNone
}

func (v *Vessel) applyThrust(d Direction) {
	switch {
	case d == v.dir:
		v.velocity++
	case d == v.dir.Opposite():
		// The engine halts the moment velocity reaches 0, so a decrement
		// at 0 is unreachable.
		if v.velocity > 0 {
			v.velocity--
		}
	default:
		v.dir = d
	}
}
