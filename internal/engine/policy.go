package engine

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/kapu/katago-gtp-bot/internal/game"
	"github.com/kapu/katago-gtp-bot/internal/katago"
)

// Resignation thresholds. The engine must report a negligible remaining
// time-variance budget (the search has settled) and the game must be
// lost beyond question before the bot resigns.
const (
	resignTimeLeft  = 0.01
	resignScoreLead = 40.0
	resignWinrate   = 0.03
)

// Auto-pass after a triple pass only when the top move's score estimate
// is stable; a noisy top move means the position is still contested.
const autoPassMaxStdev = 10.0

// Human-style forced pass: accept the top candidate as "nothing left to
// play" when its score is this settled and this close to free.
const (
	quietTopStdev      = 1.0
	quietTopPointsLost = 0.5
)

const minHumanPrior = 1e-9

// ShouldResign reports whether the position is hopeless for the mover:
// the search has settled, the score lead is lopsided in the losing
// direction, and the mover's win probability is negligible.
func ShouldResign(root katago.RootInfo, mover game.Color) bool {
	if root.RawVarTimeLeft >= resignTimeLeft {
		return false
	}
	sign := mover.Sign()
	if sign*root.ScoreLead > -resignScoreLead {
		return false
	}
	moverWinrate := root.Winrate
	if mover == game.White {
		moverWinrate = 1 - root.Winrate
	}
	return moverWinrate < resignWinrate
}

// StableTopMove reports whether the engine's best-ranked move has a
// settled score estimate.
func StableTopMove(res *katago.AnalysisResult) bool {
	for _, d := range res.MoveInfos {
		if d.Order == 0 {
			return d.ScoreStdev < autoPassMaxStdev
		}
	}
	return false
}

// Decision is the outcome of one genmove evaluation.
type Decision struct {
	Move   game.Move
	Resign bool
	// Considered holds the surviving candidates in selection order,
	// for the decision log.
	Considered []Ranked
}

// Selector applies one style's selection strategy to analysis results.
// The random source is injected so fixed seeds give fixed games.
type Selector struct {
	style Style
	rnd   *rand.Rand
	log   *zap.Logger
}

func NewSelector(style Style, seed int64, log *zap.Logger) *Selector {
	return &Selector{
		style: style,
		rnd:   rand.New(rand.NewSource(seed)),
		log:   log,
	}
}

func (s *Selector) Style() Style { return s.style }

// Decide picks the move to play for the side to move in st, given one
// analysis result and the current board occupancy.
func (s *Selector) Decide(res *katago.AnalysisResult, st *game.State, pos Position) (Decision, error) {
	mover := st.ToMove
	if res.RootInfo.CurrentPlayer != mover.Letter() {
		return Decision{}, fmt.Errorf("%w: engine says %s, session says %s",
			ErrPlayerMismatch, res.RootInfo.CurrentPlayer, mover.Letter())
	}

	if ShouldResign(res.RootInfo, mover) {
		return Decision{Resign: true}, nil
	}

	ranked, err := Rank(res, mover, st.Size)
	if err != nil {
		return Decision{}, err
	}
	if len(ranked) == 0 {
		return Decision{}, ErrNoEligibleMoves
	}
	annotate(ranked, st, pos)

	switch s.style.Mode {
	case ModeHumanRandom:
		return s.decideHumanRandom(ranked, mover)
	case ModeMinPolicy:
		return s.decideMinPolicy(ranked, mover, res, st.Size)
	default:
		chosen, kept, err := selectByScore(ranked, s.style.Weights)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Move: chosen.Move, Considered: kept}, nil
	}
}

// decideHumanRandom samples a human-plausible move: candidates under
// the loss bound, each weighted by the inverse of the human-likelihood
// prior, so the pick is deliberately sub-optimal but believable. Pass
// is forced when the engine itself ranks pass first, or when the top
// move is settled and essentially free (nothing worth playing remains).
func (s *Selector) decideHumanRandom(ranked []Ranked, mover game.Color) (Decision, error) {
	top := ranked[0]
	if top.Move.Pass {
		return Decision{Move: game.Move{Color: mover, Pass: true}, Considered: ranked[:1]}, nil
	}
	if top.Info.ScoreStdev < quietTopStdev && top.PointsLost < quietTopPointsLost {
		s.log.Info("nothing left worth playing, passing",
			zap.String("top", game.FormatVertex(top.Move)),
			zap.Float64("points_lost", top.PointsLost),
			zap.Float64("score_stdev", top.Info.ScoreStdev))
		return Decision{Move: game.Move{Color: mover, Pass: true}, Considered: ranked[:1]}, nil
	}

	kept := make([]Ranked, 0, len(ranked))
	weights := make([]float64, 0, len(ranked))
	var total float64
	for _, r := range ranked {
		if r.Move.Pass || r.PointsLost >= s.style.Weights.MaxPointsLost {
			continue
		}
		if r.Info.HumanPrior == nil {
			continue
		}
		prior := *r.Info.HumanPrior
		if prior < minHumanPrior {
			prior = minHumanPrior
		}
		w := 1 / prior
		kept = append(kept, r)
		weights = append(weights, w)
		total += w
	}
	if len(kept) == 0 {
		return Decision{}, fmt.Errorf("%w: no candidates carry a human prior", ErrNoEligibleMoves)
	}

	threshold := s.rnd.Float64() * total
	index := 0
	for i, w := range weights {
		threshold -= w
		if threshold <= 0 {
			index = i
			break
		}
	}
	chosen := kept[index]
	s.log.Info("sampled human-style move",
		zap.String("vertex", game.FormatVertex(chosen.Move)),
		zap.Float64("human_prior", *chosen.Info.HumanPrior),
		zap.Float64("points_lost", chosen.PointsLost),
		zap.Int("candidates", len(kept)))
	return Decision{Move: chosen.Move, Considered: kept}, nil
}

// decideMinPolicy deterministically plays the eligible move a human
// would be least likely to consider, per the point-wise human policy.
func (s *Selector) decideMinPolicy(ranked []Ranked, mover game.Color, res *katago.AnalysisResult, size int) (Decision, error) {
	if len(res.HumanPolicy) == 0 {
		return Decision{}, fmt.Errorf("%w: response has no humanPolicy array", ErrNoEligibleMoves)
	}
	best := -1
	bestPolicy := 0.0
	kept := make([]Ranked, 0, len(ranked))
	for _, r := range ranked {
		if r.Move.Pass || !eligible(r, s.style.Weights) {
			continue
		}
		idx := policyIndex(r.Move.Coord, size)
		if idx < 0 || idx >= len(res.HumanPolicy) {
			continue
		}
		p := res.HumanPolicy[idx]
		kept = append(kept, r)
		if best == -1 || p < bestPolicy {
			best = len(kept) - 1
			bestPolicy = p
		}
	}
	if best == -1 {
		return Decision{}, ErrNoEligibleMoves
	}
	s.log.Info("least human-likely move",
		zap.String("vertex", game.FormatVertex(kept[best].Move)),
		zap.Float64("policy", bestPolicy),
		zap.Int("candidates", len(kept)))
	return Decision{Move: kept[best].Move, Considered: kept}, nil
}

// policyIndex maps a point into the flat humanPolicy array, which is
// laid out col*size + (size - gtpRow).
func policyIndex(c game.Coord, size int) int {
	return c.Col*size + (size - (c.Row + 1))
}
