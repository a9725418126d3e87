// Package engine turns KataGo's raw candidate list into the one move
// the bot actually plays. Raw pointsLost minimization plays technically
// optimal but unnatural Go; the evaluator biases toward calm,
// area-securing moves via settledness, attachment and tenuki terms,
// with alternate styles inverting or replacing that bias.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kapu/katago-gtp-bot/internal/game"
	"github.com/kapu/katago-gtp-bot/internal/katago"
)

// ErrNoEligibleMoves means no candidate cleared the eligibility filter.
// Usually the query was made without per-move ownership data.
var ErrNoEligibleMoves = errors.New("engine: no eligible moves in analysis result")

// ErrPlayerMismatch means the engine's reported current player disagrees
// with the session's tracked side to move: a desynchronization bug.
var ErrPlayerMismatch = errors.New("engine: current player mismatch")

// Pass candidates are held to a much tighter loss bound than stone
// plays, so an unfinished game is never passed away just because pass
// showed up in the raw list.
const maxPassPointsLost = 0.75

// Position is the read-only board lookup the locality heuristics need.
// Off-board coordinates report no stone.
type Position interface {
	Get(c game.Coord) (game.Color, bool)
}

// Ranked is one candidate move with the evaluator's derived fields.
type Ranked struct {
	Info katago.MoveInfo
	Move game.Move

	PointsLost          float64
	RelativePointsLost  float64
	WinrateLost         float64
	Settledness         float64
	OpponentSettledness float64
	Attachment          bool
	Tenuki              bool
}

// Rank normalizes the engine's move list to the mover's perspective and
// sorts it. The engine's own order is the primary key; computed loss
// only breaks ties, so exploration noise never reorders moves the
// engine itself ranked equally.
func Rank(res *katago.AnalysisResult, mover game.Color, size int) ([]Ranked, error) {
	sign := mover.Sign()
	rootScore := res.RootInfo.ScoreLead
	rootWinrate := res.RootInfo.Winrate

	topScoreLead := rootScore
	for _, d := range res.MoveInfos {
		if d.Order == 0 {
			topScoreLead = d.ScoreLead
			break
		}
	}

	ranked := make([]Ranked, 0, len(res.MoveInfos))
	for _, d := range res.MoveInfos {
		coord, pass, err := game.ParseVertex(d.Move, size)
		if err != nil {
			return nil, fmt.Errorf("engine: candidate %q: %w", d.Move, err)
		}
		ranked = append(ranked, Ranked{
			Info:               d,
			Move:               game.Move{Color: mover, Coord: coord, Pass: pass},
			PointsLost:         sign * (rootScore - d.ScoreLead),
			RelativePointsLost: sign * (topScoreLead - d.ScoreLead),
			WinrateLost:        sign * (rootWinrate - d.Winrate),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Info.Order != ranked[j].Info.Order {
			return ranked[i].Info.Order < ranked[j].Info.Order
		}
		return ranked[i].PointsLost < ranked[j].PointsLost
	})
	return ranked, nil
}

// annotate fills in the positional tags for every candidate.
func annotate(ranked []Ranked, st *game.State, pos Position) {
	mover := st.ToMove
	sign := mover.Sign()
	last := st.LastMoves(2)
	for i := range ranked {
		r := &ranked[i]
		r.Settledness = settledness(r.Info.Ownership, sign)
		r.OpponentSettledness = settledness(r.Info.Ownership, -sign)
		if !r.Move.Pass {
			r.Attachment = isAttachment(pos, mover, r.Move.Coord)
			r.Tenuki = isTenuki(last, r.Move.Coord)
		}
	}
}

// settledness sums the ownership magnitude over points controlled in
// the direction the sign selects.
func settledness(ownership []float64, playerSign float64) float64 {
	var total float64
	for _, o := range ownership {
		if playerSign*o > 0 {
			total += math.Abs(o)
		}
	}
	return total
}

// isAttachment flags a contact play without local support: at least one
// orthogonally adjacent opponent stone and no own stone within the
// Manhattan-distance-2 neighbourhood (clamps and one-point jumps).
func isAttachment(pos Position, mover game.Color, c game.Coord) bool {
	touching := 0
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		n := game.Coord{Col: c.Col + d[0], Row: c.Row + d[1]}
		if col, ok := pos.Get(n); ok && col == mover.Opponent() {
			touching++
		}
	}
	if touching == 0 {
		return false
	}
	for dx := -2; dx <= 2; dx++ {
		for dy := -2; dy <= 2; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if abs(dx)+abs(dy) > 2 {
				continue
			}
			n := game.Coord{Col: c.Col + dx, Row: c.Row + dy}
			if col, ok := pos.Get(n); ok && col == mover {
				return false
			}
		}
	}
	return true
}

// isTenuki flags a whole-board response: Chebyshev distance 5 or more
// from each of the last two moves. A recent pass means the local
// context is gone, so nothing counts as tenuki.
func isTenuki(last []game.Move, c game.Coord) bool {
	if len(last) < 2 {
		return false
	}
	for _, prev := range last {
		if prev.Pass {
			return false
		}
		if max(abs(prev.Coord.Col-c.Col), abs(prev.Coord.Row-c.Row)) < 5 {
			return false
		}
	}
	return true
}

// eligible applies the loss / ownership / visit filter, with the
// tighter pass bound.
func eligible(r Ranked, w Weights) bool {
	if r.PointsLost >= w.MaxPointsLost {
		return false
	}
	if len(r.Info.Ownership) == 0 {
		return false
	}
	if r.Info.Order > 1 && r.Info.Visits < w.MinVisits {
		return false
	}
	if r.Move.Pass && r.PointsLost > maxPassPointsLost {
		return false
	}
	return true
}

// score is the composite selection key: lower is better.
func score(r Ranked, w Weights) float64 {
	s := r.PointsLost
	if r.Attachment {
		s += w.AttachPenalty
	}
	if r.Tenuki {
		s += w.TenukiPenalty
	}
	s -= w.SettledWeight * (r.Settledness + w.OpponentFac*r.OpponentSettledness)
	return s
}

// selectByScore picks the eligible candidate with the minimum composite
// score, ties going to the earlier sort position.
func selectByScore(ranked []Ranked, w Weights) (Ranked, []Ranked, error) {
	kept := make([]Ranked, 0, len(ranked))
	for _, r := range ranked {
		if eligible(r, w) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return Ranked{}, nil, ErrNoEligibleMoves
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return score(kept[i], w) < score(kept[j], w)
	})
	return kept[0], kept, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
