package lang

// Lattice is the program's memory: a growable array of uint32 cells
// addressed by the vessel's velocity. It starts with a single zero cell and
// grows with zero cells whenever an index past the end is addressed. It
// never shrinks, so length always exceeds the highest index ever addressed.
type Lattice struct {
	cells []uint32
}

func NewLattice() *Lattice {
	return &Lattice{cells: make([]uint32, 1)}
}

func (l *Lattice) grow(idx uint32) {
	for uint32(len(l.cells)) <= idx {
		l.cells = append(l.cells, 0)
	}
}

func (l *Lattice) Get(idx uint32) uint32 {
	l.grow(idx)
	return l.cells[idx]
}

func (l *Lattice) Set(idx uint32, v uint32) {
	l.grow(idx)
	l.cells[idx] = v
}

func (l *Lattice) Len() int { return len(l.cells) }

// Cells returns a copy of the lattice contents for snapshots.
func (l *Lattice) Cells() []uint32 {
	out := make([]uint32, len(l.cells))
	copy(out, l.cells)
	return out
}
