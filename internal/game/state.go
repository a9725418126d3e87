package game

// State is the session's record of the game in progress. It is owned and
// mutated only by the GTP session; the evaluator reads it.
type State struct {
	Size              int
	Komi              float64
	Handicap          []Stone
	Moves             []Move
	ToMove            Color
	ConsecutivePasses int

	scoreLead    float64
	hasScoreLead bool
}

func NewState(size int) *State {
	return &State{
		Size:   size,
		Komi:   7.5,
		ToMove: Black,
	}
}

// Reset drops all game history, keeping komi, and sets a new board size.
func (s *State) Reset(size int) {
	s.Size = size
	s.Handicap = nil
	s.Moves = nil
	s.ToMove = Black
	s.ConsecutivePasses = 0
	s.hasScoreLead = false
}

// Record appends a move and flips the side to move.
func (s *State) Record(m Move) {
	s.Moves = append(s.Moves, m)
	s.ToMove = m.Color.Opponent()
}

// RecordPlayed is Record for moves relayed through the play command; it
// also maintains the consecutive-pass counter the auto-pass policy
// watches. Only relayed passes count: the bot's own generated passes do
// not feed back into its "opponent keeps passing" signal.
func (s *State) RecordPlayed(m Move) {
	s.Record(m)
	if m.Pass {
		s.ConsecutivePasses++
	} else {
		s.ConsecutivePasses = 0
	}
}

// PlaceHandicap records pre-placed Black stones. Handicap placement
// always hands the first move to White.
func (s *State) PlaceHandicap(coords []Coord) {
	for _, c := range coords {
		s.Handicap = append(s.Handicap, Stone{Color: Black, Coord: c})
	}
	s.ToMove = White
}

// MoveNumber is the index used for logging: handicap stones count.
func (s *State) MoveNumber() int {
	return len(s.Handicap) + len(s.Moves)
}

// LastMoves returns up to n of the most recent moves, oldest first.
func (s *State) LastMoves(n int) []Move {
	if len(s.Moves) < n {
		n = len(s.Moves)
	}
	return s.Moves[len(s.Moves)-n:]
}

// ScoreLead reports the lead recorded by the previous genmove, if any.
func (s *State) ScoreLead() (float64, bool) {
	return s.scoreLead, s.hasScoreLead
}

func (s *State) SetScoreLead(lead float64) {
	s.scoreLead = lead
	s.hasScoreLead = true
}
