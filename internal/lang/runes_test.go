package lang

import "testing"

func TestClassify_Table(t *testing.T) {
	cases := []struct {
		ch   byte
		want Rune
	}{
		{'^', Rune{Kind: Thrust, Dir: Up}},
		{'v', Rune{Kind: Thrust, Dir: Down}},
		{'<', Rune{Kind: Thrust, Dir: Left}},
		{'>', Rune{Kind: Thrust, Dir: Right}},
		{'P', Rune{Kind: Parking}},
		{'+', Rune{Kind: Charge}},
		{'-', Rune{Kind: Drain}},
		{'[', Rune{Kind: SteerLeft}},
		{']', Rune{Kind: SteerRight}},
		{',', Rune{Kind: Input}},
		{'.', Rune{Kind: Output}},
		{'D', Rune{Kind: Debug}},
		{' ', Rune{Kind: Void}},
		{'X', Rune{Kind: Void}},
		{'#', Rune{Kind: Void}},
		{0, Rune{Kind: Void}},
	}
	for _, tc := range cases {
		if got := Classify(tc.ch); got != tc.want {
			t.Fatalf("Classify(%q): got %v want %v", tc.ch, got, tc.want)
		}
	}
}

func TestClassify_Total(t *testing.T) {
	// Every byte must classify to something; unknown bytes are Void.
	for b := 0; b < 256; b++ {
		_ = Classify(byte(b))
	}
}

func TestDirection_Rotation(t *testing.T) {
	cases := []struct {
		d                     Direction
		left, right, opposite Direction
	}{
		{Up, Left, Right, Down},
		{Right, Up, Down, Left},
		{Down, Right, Left, Up},
		{Left, Down, Up, Right},
	}
	for _, tc := range cases {
		if got := tc.d.TurnLeft(); got != tc.left {
			t.Fatalf("%v.TurnLeft: got %v want %v", tc.d, got, tc.left)
		}
		if got := tc.d.TurnRight(); got != tc.right {
			t.Fatalf("%v.TurnRight: got %v want %v", tc.d, got, tc.right)
		}
		if got := tc.d.Opposite(); got != tc.opposite {
			t.Fatalf("%v.Opposite: got %v want %v", tc.d, got, tc.opposite)
		}
	}
}

func TestDirection_Delta(t *testing.T) {
	cases := []struct {
		d      Direction
		dr, dc int
	}{
		{Up, -1, 0},
		{Down, 1, 0},
		{Left, 0, -1},
		{Right, 0, 1},
	}
	for _, tc := range cases {
		dr, dc := tc.d.Delta()
		if dr != tc.dr || dc != tc.dc {
			t.Fatalf("%v.Delta: got (%d,%d) want (%d,%d)", tc.d, dr, dc, tc.dr, tc.dc)
		}
	}
}
