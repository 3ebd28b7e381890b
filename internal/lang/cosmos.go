package lang

import (
	"errors"
	"strings"
)

// ErrEmptyCosmos is returned when the source has no cells left after comment
// stripping.
var ErrEmptyCosmos = errors.New("empty cosmos")

// Cosmos is the immutable rectangular rune grid a program executes in.
// Ragged source lines are padded with Void so every row has equal length.
type Cosmos struct {
	runes  [][]Rune
	width  int
	height int
}

// BuildCosmos parses source text into a Cosmos. Text after '#' on a line is
// a comment and never becomes a rune. Comment-only lines still count as
// (all-Void) rows, matching how the grid is laid out in the source file.
func BuildCosmos(source string) (*Cosmos, error) {
	source = strings.TrimSuffix(source, "\n")
	lines := strings.Split(source, "\n")

	width := 0
	rows := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		rows = append(rows, line)
		if len(line) > width {
			width = len(line)
		}
	}
	if width == 0 || len(rows) == 0 {
		return nil, ErrEmptyCosmos
	}

	runes := make([][]Rune, len(rows))
	for r, line := range rows {
		row := make([]Rune, width)
		for c := 0; c < width; c++ {
			if c < len(line) {
				row[c] = Classify(line[c])
			} else {
				row[c] = Rune{Kind: Void}
			}
		}
		runes[r] = row
	}
	return &Cosmos{runes: runes, width: width, height: len(runes)}, nil
}

func (c *Cosmos) Width() int  { return c.width }
func (c *Cosmos) Height() int { return c.height }

func (c *Cosmos) InBounds(row, col int) bool {
	return row >= 0 && row < c.height && col >= 0 && col < c.width
}

// Get returns the rune at (row, col), or Void when out of bounds.
func (c *Cosmos) Get(row, col int) Rune {
	if !c.InBounds(row, col) {
		return Rune{Kind: Void}
	}
	return c.runes[row][col]
}
