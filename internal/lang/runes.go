package lang

// Direction is the vessel's travel direction. The numeric order matters:
// rotation is modular arithmetic over Up -> Right -> Down -> Left.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Right:
		return "RIGHT"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	}
	return "UNKNOWN"
}

// Delta returns the per-cycle unit step in (row, col) space. Rows grow
// downward, so Up decrements the row.
func (d Direction) Delta() (dr, dc int) {
	switch d {
	case Up:
		return -1, 0
	case Right:
		return 0, 1
	case Down:
		return 1, 0
	case Left:
		return 0, -1
	}
	return 0, 0
}

func (d Direction) TurnLeft() Direction  { return (d + 3) % 4 }
func (d Direction) TurnRight() Direction { return (d + 1) % 4 }
func (d Direction) Opposite() Direction  { return (d + 2) % 4 }

// RuneKind classifies a single cosmos cell.
type RuneKind int

const (
	Void RuneKind = iota
	Thrust
	Parking
	Charge
	Drain
	SteerLeft
	SteerRight
	Input
	Output
	Debug
)

// Rune is a classified cosmos cell. Dir is meaningful only for Thrust.
type Rune struct {
	Kind RuneKind
	Dir  Direction
}

func (r Rune) String() string {
	switch r.Kind {
	case Thrust:
		return "THRUST_" + r.Dir.String()
	case Parking:
		return "PARKING"
	case Charge:
		return "CHARGE"
	case Drain:
		return "DRAIN"
	case SteerLeft:
		return "STEER_LEFT"
	case SteerRight:
		return "STEER_RIGHT"
	case Input:
		return "INPUT"
	case Output:
		return "OUTPUT"
	case Debug:
		return "DEBUG"
	}
	return "VOID"
}

// Classify maps a source character to its Rune. The map is total: anything
// outside the table (padding included) is Void.
func Classify(ch byte) Rune {
	switch ch {
	case '^':
		return Rune{Kind: Thrust, Dir: Up}
	case 'v':
		return Rune{Kind: Thrust, Dir: Down}
	case '<':
		return Rune{Kind: Thrust, Dir: Left}
	case '>':
		return Rune{Kind: Thrust, Dir: Right}
	case 'P':
		return Rune{Kind: Parking}
	case '+':
		return Rune{Kind: Charge}
	case '-':
		return Rune{Kind: Drain}
	case '[':
		return Rune{Kind: SteerLeft}
	case ']':
		return Rune{Kind: SteerRight}
	case ',':
		return Rune{Kind: Input}
	case '.':
		return Rune{Kind: Output}
	case 'D':
		return Rune{Kind: Debug}
	default:
		return Rune{Kind: Void}
	}
}
