package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Columns is the GTP column alphabet. "I" is skipped so that it cannot
// be confused with the digit 1; 25 letters bound the board size.
const Columns = "ABCDEFGHJKLMNOPQRSTUVWXYZ"

// ErrMalformedVertex wraps every vertex parse failure; the message
// carries the offending token.
var ErrMalformedVertex = errors.New("malformed vertex")

// FormatCoord renders a board point in GTP vertex notation, e.g. D4.
func FormatCoord(c Coord) string {
	return fmt.Sprintf("%c%d", Columns[c.Col], c.Row+1)
}

// FormatVertex renders a move, mapping a pass to the literal "pass".
func FormatVertex(m Move) string {
	if m.Pass {
		return "pass"
	}
	return FormatCoord(m.Coord)
}

// ParseVertex decodes a GTP vertex. Input is case-insensitive; "pass"
// yields pass=true. The column letter must be in the alphabet and the
// row a positive integer no larger than the board size.
func ParseVertex(s string, size int) (c Coord, pass bool, err error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "PASS" {
		return Coord{}, true, nil
	}
	if len(v) < 2 {
		return Coord{}, false, fmt.Errorf("%w %q", ErrMalformedVertex, s)
	}
	col := strings.IndexByte(Columns, v[0])
	if col < 0 || col >= size {
		return Coord{}, false, fmt.Errorf("%w %q: bad column", ErrMalformedVertex, s)
	}
	row, convErr := strconv.Atoi(v[1:])
	if convErr != nil || row < 1 || row > size {
		return Coord{}, false, fmt.Errorf("%w %q: bad row", ErrMalformedVertex, s)
	}
	return Coord{Col: col, Row: row - 1}, false, nil
}
