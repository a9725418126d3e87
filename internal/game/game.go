package game

import (
	"fmt"
	"strings"
)

// Color identifies a player side.
type Color int

const (
	Black Color = iota
	White
)

func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

// Sign is +1 for Black and -1 for White. KataGo reports scoreLead and
// winrate from Black's perspective; multiplying by Sign converts to the
// mover's perspective.
func (c Color) Sign() float64 {
	if c == Black {
		return 1
	}
	return -1
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Letter is the single-letter form KataGo uses ("B"/"W").
func (c Color) Letter() string {
	if c == Black {
		return "B"
	}
	return "W"
}

// ParseColor accepts the GTP spellings: black, white, b, w (any case).
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black", "b":
		return Black, nil
	case "white", "w":
		return White, nil
	}
	return Black, fmt.Errorf("invalid color %q", s)
}

// Coord is a zero-based board point. Col runs left to right, Row runs
// bottom to top (row 0 is the "1" line in GTP notation).
type Coord struct {
	Col int
	Row int
}

// Stone is a pre-placed (handicap) stone.
type Stone struct {
	Color Color
	Coord Coord
}

// Move is one played move: a stone or a pass.
type Move struct {
	Color Color
	Coord Coord
	Pass  bool
}
