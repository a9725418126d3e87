// Package gtp implements the GTP session: a line-oriented command
// dispatcher that owns the game state and turns genmove requests into
// analysis queries and styled move decisions.
package gtp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kapu/katago-gtp-bot/internal/board"
	"github.com/kapu/katago-gtp-bot/internal/engine"
	"github.com/kapu/katago-gtp-bot/internal/game"
	"github.com/kapu/katago-gtp-bot/internal/katago"
)

// Analyzer is the one capability the session needs from the backend.
type Analyzer interface {
	Analyze(ctx context.Context, req katago.Request) (*katago.AnalysisResult, error)
}

type command int

const (
	cmdUnknown command = iota
	cmdProtocolVersion
	cmdName
	cmdVersion
	cmdKnownCommand
	cmdListCommands
	cmdBoardsize
	cmdClearBoard
	cmdKomi
	cmdSetFreeHandicap
	cmdPlaceFreeHandicap
	cmdPlay
	cmdGenmove
	cmdShowboard
	cmdQuit
)

var commandNames = []string{
	"protocol_version",
	"name",
	"version",
	"known_command",
	"list_commands",
	"boardsize",
	"clear_board",
	"komi",
	"set_free_handicap",
	"place_free_handicap",
	"play",
	"genmove",
	"showboard",
	"quit",
}

func parseCommand(s string) command {
	switch s {
	case "protocol_version":
		return cmdProtocolVersion
	case "name":
		return cmdName
	case "version":
		return cmdVersion
	case "known_command":
		return cmdKnownCommand
	case "list_commands":
		return cmdListCommands
	case "boardsize":
		return cmdBoardsize
	case "clear_board":
		return cmdClearBoard
	case "komi":
		return cmdKomi
	case "set_free_handicap":
		return cmdSetFreeHandicap
	case "place_free_handicap":
		return cmdPlaceFreeHandicap
	case "play":
		return cmdPlay
	case "genmove":
		return cmdGenmove
	case "showboard":
		return cmdShowboard
	case "quit":
		return cmdQuit
	}
	return cmdUnknown
}

// Standard handicap points in placement-preference order, for 19x19.
var handicapPoints = []string{"D4", "Q16", "D16", "Q4", "D10", "Q10", "K4", "K16", "K10"}

const (
	engineName    = "kata-bot"
	engineVersion = "0.1.0"
)

type Config struct {
	In        io.Reader
	Out       io.Writer
	Chat      io.Writer // side-channel diagnostic stream, default stderr
	BoardSize int       // default 19
	MaxVisits int       // analysis visit cap per genmove, default 100
	Log       *zap.Logger
}

// Session is the GTP state machine. It is single-threaded: it blocks on
// the next command line, and genmove blocks on the one outstanding
// analysis query.
type Session struct {
	analyzer  Analyzer
	sel       *engine.Selector
	st        *game.State
	brd       *board.Board
	maxVisits int
	in        *bufio.Scanner
	out       io.Writer
	chat      io.Writer
	log       *zap.Logger
}

func NewSession(analyzer Analyzer, sel *engine.Selector, cfg Config) *Session {
	size := cfg.BoardSize
	if size == 0 {
		size = 19
	}
	maxVisits := cfg.MaxVisits
	if maxVisits == 0 {
		maxVisits = 100
	}
	chat := cfg.Chat
	if chat == nil {
		chat = os.Stderr
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		analyzer:  analyzer,
		sel:       sel,
		st:        game.NewState(size),
		brd:       board.New(size),
		maxVisits: maxVisits,
		in:        bufio.NewScanner(cfg.In),
		out:       cfg.Out,
		chat:      chat,
		log:       log,
	}
}

// State exposes the tracked game for inspection; callers must not
// mutate it.
func (s *Session) State() *game.State { return s.st }

// Board exposes the tracked position for inspection.
func (s *Session) Board() *board.Board { return s.brd }

// Run processes commands until quit or end of input. A malformed
// argument to a recognized command, or any backend failure, terminates
// the loop with an error: there is no structured GTP error channel, and
// every later command depends on the failed one having succeeded.
func (s *Session) Run(ctx context.Context) error {
	for s.in.Scan() {
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		name, args, _ := strings.Cut(line, " ")
		cmd := parseCommand(name)
		if cmd == cmdQuit {
			s.respond("")
			return nil
		}
		resp, err := s.dispatch(ctx, cmd, strings.TrimSpace(args))
		if err != nil {
			s.log.Error("command failed", zap.String("command", line), zap.Error(err))
			return fmt.Errorf("%s: %w", name, err)
		}
		s.respond(resp)
	}
	return s.in.Err()
}

func (s *Session) respond(resp string) {
	fmt.Fprintf(s.out, "= %s\n\n", resp)
}

func (s *Session) dispatch(ctx context.Context, cmd command, args string) (string, error) {
	switch cmd {
	case cmdProtocolVersion:
		return "2", nil
	case cmdName:
		return engineName, nil
	case cmdVersion:
		return engineVersion, nil
	case cmdKnownCommand:
		if parseCommand(args) != cmdUnknown {
			return "true", nil
		}
		return "false", nil
	case cmdListCommands:
		return strings.Join(commandNames, "\n"), nil
	case cmdBoardsize:
		return s.boardsize(args)
	case cmdClearBoard:
		s.st.Reset(s.st.Size)
		s.brd = board.New(s.st.Size)
		return "", nil
	case cmdKomi:
		komi, err := strconv.ParseFloat(args, 64)
		if err != nil {
			return "", fmt.Errorf("malformed komi %q", args)
		}
		s.st.Komi = komi
		return "", nil
	case cmdSetFreeHandicap:
		return s.setFreeHandicap(args)
	case cmdPlaceFreeHandicap:
		return s.placeFreeHandicap(args)
	case cmdPlay:
		return s.play(args)
	case cmdGenmove:
		return s.genmove(ctx, args)
	case cmdShowboard:
		return "\n" + s.brd.Render(), nil
	}
	// Permissive GTP: unknown commands get an empty success response.
	return "", nil
}

func (s *Session) boardsize(args string) (string, error) {
	size, err := strconv.Atoi(args)
	if err != nil || size < 2 || size > len(game.Columns) {
		return "", fmt.Errorf("malformed boardsize %q", args)
	}
	s.st.Reset(size)
	s.brd = board.New(size)
	return "", nil
}

// setFreeHandicap records opponent-chosen Black handicap stones; White
// moves next.
func (s *Session) setFreeHandicap(args string) (string, error) {
	var coords []game.Coord
	for _, tok := range strings.Fields(args) {
		c, pass, err := game.ParseVertex(tok, s.st.Size)
		if err != nil || pass {
			return "", fmt.Errorf("malformed handicap vertex %q", tok)
		}
		coords = append(coords, c)
	}
	for _, c := range coords {
		if err := s.brd.Play(c, game.Black); err != nil {
			return "", err
		}
	}
	s.st.PlaceHandicap(coords)
	return "", nil
}

// placeFreeHandicap picks the bot's own handicap stones from the
// standard preference list. Non-19x19 boards and oversized requests get
// a pass back, leaving placement to the peer.
func (s *Session) placeFreeHandicap(args string) (string, error) {
	n, err := strconv.Atoi(args)
	if err != nil || n < 1 {
		return "", fmt.Errorf("malformed handicap count %q", args)
	}
	if s.st.Size != 19 || n > len(handicapPoints) {
		return "pass", nil
	}
	stones := handicapPoints[:n]
	coords := make([]game.Coord, 0, n)
	for _, v := range stones {
		c, _, err := game.ParseVertex(v, s.st.Size)
		if err != nil {
			return "", err
		}
		coords = append(coords, c)
	}
	for _, c := range coords {
		if err := s.brd.Play(c, game.Black); err != nil {
			return "", err
		}
	}
	s.st.PlaceHandicap(coords)
	return strings.Join(stones, " "), nil
}

func (s *Session) play(args string) (string, error) {
	colorArg, vertexArg, ok := strings.Cut(args, " ")
	if !ok {
		return "", fmt.Errorf("malformed play %q", args)
	}
	color, err := game.ParseColor(colorArg)
	if err != nil {
		return "", err
	}
	coord, pass, err := game.ParseVertex(vertexArg, s.st.Size)
	if err != nil {
		return "", err
	}
	m := game.Move{Color: color, Coord: coord, Pass: pass}
	if !pass {
		if err := s.brd.Play(coord, color); err != nil {
			return "", err
		}
	}
	s.st.RecordPlayed(m)
	s.log.Info("opponent played",
		zap.Int("move", s.st.MoveNumber()),
		zap.String("vertex", game.FormatVertex(m)))
	return "", nil
}

func (s *Session) genmove(ctx context.Context, args string) (string, error) {
	color, err := game.ParseColor(args)
	if err != nil {
		return "", err
	}
	if color != s.st.ToMove {
		return "", fmt.Errorf("genmove %s out of turn: %s to move", color, s.st.ToMove)
	}

	res, err := s.analyzer.Analyze(ctx, katago.Request{
		Size:             s.st.Size,
		Komi:             s.st.Komi,
		Moves:            s.st.Moves,
		Handicap:         s.st.Handicap,
		MaxVisits:        s.maxVisits,
		IncludeOwnership: true,
		HumanProfile:     s.sel.Style().HumanProfile,
	})
	if err != nil {
		return "", err
	}

	s.reportScoreSwing(res.RootInfo.ScoreLead)

	var mv game.Move
	if s.st.ConsecutivePasses >= 3 && len(s.st.Moves) > 2*s.st.Size && engine.StableTopMove(res) {
		fmt.Fprintf(s.chat, "DISCUSSION:since you passed 3 times after move %d, I will pass as well\n", 2*s.st.Size)
		mv = game.Move{Color: color, Pass: true}
	} else {
		dec, err := s.sel.Decide(res, s.st, s.brd)
		if err != nil {
			return "", err
		}
		if dec.Resign {
			s.log.Info("resigning",
				zap.Int("move", s.st.MoveNumber()),
				zap.Float64("score_lead", res.RootInfo.ScoreLead),
				zap.Float64("winrate", res.RootInfo.Winrate))
			return "resign", nil
		}
		mv = dec.Move
		s.logCandidates(dec.Considered)
	}

	if !mv.Pass {
		if err := s.brd.Play(mv.Coord, mv.Color); err != nil {
			return "", err
		}
	}
	s.st.Record(mv)
	s.log.Info("playing",
		zap.Int("move", s.st.MoveNumber()),
		zap.String("vertex", game.FormatVertex(mv)))
	return game.FormatVertex(mv), nil
}

// reportScoreSwing chats about the previous move when it shifted the
// score lead by more than two points since the last evaluation.
func (s *Session) reportScoreSwing(lead float64) {
	if prev, ok := s.st.ScoreLead(); ok && len(s.st.Moves) > 0 {
		delta := math.Abs(lead - prev)
		if delta > 2.0 {
			last := game.FormatVertex(s.st.Moves[len(s.st.Moves)-1])
			fmt.Fprintf(s.chat, "MALKOVICH:%s caused a significant score change: %.1f points. score lead: %.1f\n",
				last, delta, lead)
		}
	}
	s.st.SetScoreLead(lead)
}

func (s *Session) logCandidates(considered []engine.Ranked) {
	limit := 5
	if len(considered) < limit {
		limit = len(considered)
	}
	summaries := make([]string, 0, limit)
	for _, r := range considered[:limit] {
		tag := ""
		if r.Attachment {
			tag += ", attachment"
		}
		if r.Tenuki {
			tag += ", tenuki"
		}
		summaries = append(summaries, fmt.Sprintf("%s (%.1f pt lost, %d visits, %.1f settledness, %.1f opponent settledness%s)",
			game.FormatVertex(r.Move), r.PointsLost, r.Info.Visits, r.Settledness, r.OpponentSettledness, tag))
	}
	s.log.Info("candidates",
		zap.Int("move", s.st.MoveNumber()),
		zap.Strings("top", summaries))
}
