package katago

import "github.com/kapu/katago-gtp-bot/internal/game"

// Request describes one analysis query: a full position (every query is
// stateless and carries the whole history) plus search options.
type Request struct {
	Size     int
	Komi     float64
	Moves    []game.Move
	Handicap []game.Stone

	MaxVisits        int
	IncludeOwnership bool
	// HumanProfile selects a human-style policy profile (e.g.
	// "rank_9d") via overrideSettings; requires the human model.
	HumanProfile string
}

// query is the wire shape of one request line.
type query struct {
	ID                    string         `json:"id"`
	Moves                 [][2]string    `json:"moves"`
	InitialStones         [][2]string    `json:"initialStones"`
	Rules                 string         `json:"rules"`
	Komi                  float64        `json:"komi"`
	BoardXSize            int            `json:"boardXSize"`
	BoardYSize            int            `json:"boardYSize"`
	MaxVisits             int            `json:"maxVisits,omitempty"`
	IncludeMovesOwnership bool           `json:"includeMovesOwnership,omitempty"`
	IncludePolicy         bool           `json:"includePolicy,omitempty"`
	OverrideSettings      map[string]any `json:"overrideSettings,omitempty"`
}

// RootInfo is the whole-position summary of an analysis response.
// scoreLead and winrate are from Black's perspective.
type RootInfo struct {
	CurrentPlayer  string  `json:"currentPlayer"`
	ScoreLead      float64 `json:"scoreLead"`
	Winrate        float64 `json:"winrate"`
	Visits         int     `json:"visits"`
	RawVarTimeLeft float64 `json:"rawVarTimeLeft"`
}

// MoveInfo is one candidate move as evaluated by the engine.
type MoveInfo struct {
	Move       string    `json:"move"`
	Order      int       `json:"order"`
	Visits     int       `json:"visits"`
	Winrate    float64   `json:"winrate"`
	ScoreLead  float64   `json:"scoreLead"`
	ScoreStdev float64   `json:"scoreStdev"`
	Ownership  []float64 `json:"ownership,omitempty"`
	HumanPrior *float64  `json:"humanPrior,omitempty"`
	PV         []string  `json:"pv,omitempty"`
}

// AnalysisResult is one decoded response line.
type AnalysisResult struct {
	ID        string     `json:"id"`
	RootInfo  RootInfo   `json:"rootInfo"`
	MoveInfos []MoveInfo `json:"moveInfos"`
	// HumanPolicy is a flat per-point probability array, indexed
	// col*size + (size - gtpRow); present only with a human model.
	HumanPolicy []float64 `json:"humanPolicy,omitempty"`
	Error       string    `json:"error,omitempty"`
	Warning     string    `json:"warning,omitempty"`
}
