package sail

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"velo.run/internal/lang"
	"velo.run/internal/protocol"
	"velo.run/internal/sail/encoding"
)

// Snapshot is the full vessel state captured after one cycle. Producing a
// snapshot has no influence on program semantics.
type Snapshot struct {
	Cycle    uint64
	Row, Col int
	Dir      lang.Direction
	Velocity uint32
	Entropy  uint32
	Rune     lang.Rune
	Lattice  []uint32

	// Input byte consumed this cycle, or nil.
	Input []byte

	// Digest of the state above, hex sha256. Filled by the engine.
	Digest string
}

// Sink receives snapshots. A sink returning an error aborts the run with
// that error; sinks that must stay observationally inert swallow their own
// failures.
type Sink interface {
	Emit(Snapshot) error
}

func (s *Snapshot) computeDigest() string {
	h := sha256.New()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], s.Cycle)
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], uint64(int64(s.Row)))
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], uint64(int64(s.Col)))
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], uint64(s.Dir))
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], uint64(s.Velocity))
	h.Write(tmp[:])
	for _, cell := range s.Lattice {
		binary.LittleEndian.PutUint64(tmp[:], uint64(cell))
		h.Write(tmp[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Wire converts the snapshot to its trace log / observer representation.
func (s Snapshot) Wire() protocol.TraceEntry {
	e := protocol.TraceEntry{
		Cycle:      s.Cycle,
		Pos:        [2]int{s.Row, s.Col},
		Dir:        s.Dir.String(),
		Velocity:   s.Velocity,
		Entropy:    s.Entropy,
		Rune:       s.Rune.String(),
		LatticeRLE: encoding.EncodeRLE(s.Lattice),
		Digest:     s.Digest,
	}
	if len(s.Input) == 1 {
		b := int(s.Input[0])
		e.Input = &b
	}
	return e
}
