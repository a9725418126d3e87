// Package board keeps just enough Go board state for the evaluator's
// locality heuristics: stone placement with capture of surrounded
// groups, and point lookup. Legality beyond that (ko, suicide) is the
// GTP peer's and the analysis engine's problem.
package board

import (
	"fmt"
	"strings"

	"github.com/kapu/katago-gtp-bot/internal/game"
)

type cell int8

const (
	empty cell = iota
	black
	white
)

func cellOf(c game.Color) cell {
	if c == game.Black {
		return black
	}
	return white
}

type Board struct {
	size  int
	cells []cell
}

func New(size int) *Board {
	return &Board{size: size, cells: make([]cell, size*size)}
}

func (b *Board) Size() int { return b.size }

func (b *Board) index(c game.Coord) int { return c.Row*b.size + c.Col }

func (b *Board) onBoard(c game.Coord) bool {
	return c.Col >= 0 && c.Col < b.size && c.Row >= 0 && c.Row < b.size
}

// Get reports the stone at c. ok is false for an empty point and for
// any off-board coordinate.
func (b *Board) Get(c game.Coord) (game.Color, bool) {
	if !b.onBoard(c) {
		return game.Black, false
	}
	switch b.cells[b.index(c)] {
	case black:
		return game.Black, true
	case white:
		return game.White, true
	}
	return game.Black, false
}

// Play places a stone and removes any adjacent opponent group left
// without liberties, then any own group left without liberties.
func (b *Board) Play(c game.Coord, col game.Color) error {
	if !b.onBoard(c) {
		return fmt.Errorf("point %v off %dx%d board", c, b.size, b.size)
	}
	i := b.index(c)
	if b.cells[i] != empty {
		return fmt.Errorf("point %v is occupied", c)
	}
	b.cells[i] = cellOf(col)

	opp := cellOf(col.Opponent())
	for _, n := range b.neighbors(c) {
		if b.cells[b.index(n)] == opp {
			b.captureIfDead(n)
		}
	}
	b.captureIfDead(c)
	return nil
}

func (b *Board) neighbors(c game.Coord) []game.Coord {
	out := make([]game.Coord, 0, 4)
	for _, d := range [4]game.Coord{{Col: 1}, {Col: -1}, {Row: 1}, {Row: -1}} {
		n := game.Coord{Col: c.Col + d.Col, Row: c.Row + d.Row}
		if b.onBoard(n) {
			out = append(out, n)
		}
	}
	return out
}

// captureIfDead flood-fills the group at c and clears it when it has no
// liberties.
func (b *Board) captureIfDead(c game.Coord) {
	who := b.cells[b.index(c)]
	if who == empty {
		return
	}
	seen := make(map[int]bool)
	group := []game.Coord{c}
	seen[b.index(c)] = true
	for head := 0; head < len(group); head++ {
		for _, n := range b.neighbors(group[head]) {
			ni := b.index(n)
			switch b.cells[ni] {
			case empty:
				return // found a liberty, group lives
			case who:
				if !seen[ni] {
					seen[ni] = true
					group = append(group, n)
				}
			}
		}
	}
	for _, g := range group {
		b.cells[b.index(g)] = empty
	}
}

// Render draws the position in the ASCII style GTP engines use for
// showboard: top row first, X for Black, O for White.
func (b *Board) Render() string {
	var sb strings.Builder
	for row := b.size - 1; row >= 0; row-- {
		fmt.Fprintf(&sb, "%2d ", row+1)
		for col := 0; col < b.size; col++ {
			switch b.cells[row*b.size+col] {
			case black:
				sb.WriteString("X ")
			case white:
				sb.WriteString("O ")
			default:
				sb.WriteString(". ")
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("   ")
	for col := 0; col < b.size; col++ {
		sb.WriteByte(game.Columns[col])
		sb.WriteByte(' ')
	}
	return sb.String()
}
