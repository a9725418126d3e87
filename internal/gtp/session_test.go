package gtp

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kapu/katago-gtp-bot/internal/engine"
	"github.com/kapu/katago-gtp-bot/internal/game"
	"github.com/kapu/katago-gtp-bot/internal/katago"
)

type fakeAnalyzer struct {
	res      *katago.AnalysisResult
	err      error
	requests []katago.Request
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req katago.Request) (*katago.AnalysisResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func newTestSession(t *testing.T, fake *fakeAnalyzer, script string) (*Session, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	style, err := engine.GetStyle("balanced", "")
	if err != nil {
		t.Fatal(err)
	}
	sel := engine.NewSelector(style, 1, zap.NewNop())
	var out, chat bytes.Buffer
	sess := NewSession(fake, sel, Config{
		In:   strings.NewReader(script),
		Out:  &out,
		Chat: &chat,
		Log:  zap.NewNop(),
	})
	return sess, &out, &chat
}

func analysis(player string, lead float64, infos ...katago.MoveInfo) *katago.AnalysisResult {
	return &katago.AnalysisResult{
		RootInfo:  katago.RootInfo{CurrentPlayer: player, ScoreLead: lead, Winrate: 0.5, RawVarTimeLeft: 1.0},
		MoveInfos: infos,
	}
}

func candidate(move string, order, visits int, lead float64) katago.MoveInfo {
	return katago.MoveInfo{Move: move, Order: order, Visits: visits, ScoreLead: lead, Ownership: []float64{0.5, -0.5}}
}

func TestGenmoveEndToEnd(t *testing.T) {
	fake := &fakeAnalyzer{res: analysis("B", 0.5, candidate("E5", 0, 100, 0.5))}
	sess, out, _ := newTestSession(t, fake, "boardsize 9\nkomi 7.5\ngenmove black\nquit\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "= E5\n\n") {
		t.Fatalf("output missing E5 response:\n%s", out.String())
	}

	st := sess.State()
	if len(st.Moves) != 1 || st.Moves[0].Color != game.Black || game.FormatVertex(st.Moves[0]) != "E5" {
		t.Fatalf("history = %+v", st.Moves)
	}
	if st.ToMove != game.White {
		t.Fatal("white to move after the generated move")
	}
	if col, ok := sess.Board().Get(game.Coord{Col: 4, Row: 4}); !ok || col != game.Black {
		t.Fatal("E5 should be on the board")
	}

	req := fake.requests[0]
	if req.Size != 9 || req.Komi != 7.5 || !req.IncludeOwnership || req.MaxVisits != 100 {
		t.Fatalf("request = %+v", req)
	}
}

func TestGenmoveOutOfTurn(t *testing.T) {
	fake := &fakeAnalyzer{res: analysis("W", 0, candidate("E5", 0, 100, 0))}
	sess, _, _ := newTestSession(t, fake, "genmove white\n")
	if err := sess.Run(context.Background()); err == nil {
		t.Fatal("genmove for the wrong side must fail the session")
	}
	if len(fake.requests) != 0 {
		t.Fatal("no query should be issued for an out-of-turn genmove")
	}
}

func TestGenmoveBackendError(t *testing.T) {
	fake := &fakeAnalyzer{err: katago.ErrEngineExited}
	sess, _, _ := newTestSession(t, fake, "genmove black\n")
	err := sess.Run(context.Background())
	if !errors.Is(err, katago.ErrEngineExited) {
		t.Fatalf("err = %v, want ErrEngineExited", err)
	}
}

func TestGenmoveResign(t *testing.T) {
	res := analysis("B", -41, candidate("E5", 0, 100, -41))
	res.RootInfo.Winrate = 0.02
	res.RootInfo.RawVarTimeLeft = 0.005
	fake := &fakeAnalyzer{res: res}
	sess, out, _ := newTestSession(t, fake, "genmove black\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "= resign\n\n") {
		t.Fatalf("output missing resign:\n%s", out.String())
	}
	if len(sess.State().Moves) != 0 || sess.State().ToMove != game.Black {
		t.Fatal("a resignation records no move")
	}
}

func TestTriplePassAutoPass(t *testing.T) {
	top := candidate("B2", 0, 100, 0)
	top.ScoreStdev = 2.0
	fake := &fakeAnalyzer{res: analysis("W", 0, top)}
	script := strings.Join([]string{
		"boardsize 2",
		"play black A1",
		"play white B1",
		"play black pass",
		"play white pass",
		"play black pass",
		"play white pass",
		"play black pass",
		"genmove white",
		"quit",
	}, "\n") + "\n"
	sess, out, chat := newTestSession(t, fake, script)
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "= pass\n\n") {
		t.Fatalf("expected an auto-pass:\n%s", out.String())
	}
	if !strings.Contains(chat.String(), "DISCUSSION:") {
		t.Fatalf("auto-pass should be explained on the chat stream:\n%s", chat.String())
	}
}

func TestTriplePassUnstableTopStillPlays(t *testing.T) {
	top := candidate("B2", 0, 100, 0)
	top.ScoreStdev = 20.0 // contested: keep playing
	fake := &fakeAnalyzer{res: analysis("W", 0, top)}
	script := strings.Join([]string{
		"boardsize 2",
		"play black A1",
		"play white B1",
		"play black pass",
		"play white pass",
		"play black pass",
		"play white pass",
		"play black pass",
		"genmove white",
		"quit",
	}, "\n") + "\n"
	sess, out, _ := newTestSession(t, fake, script)
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "= B2\n\n") {
		t.Fatalf("expected B2:\n%s", out.String())
	}
}

type analyzerFunc func(ctx context.Context, req katago.Request) (*katago.AnalysisResult, error)

func (f analyzerFunc) Analyze(ctx context.Context, req katago.Request) (*katago.AnalysisResult, error) {
	return f(ctx, req)
}

func TestScoreSwingChat(t *testing.T) {
	// The second evaluation sees a 5-point swing after white's D4.
	first := true
	fake := analyzerFunc(func(ctx context.Context, req katago.Request) (*katago.AnalysisResult, error) {
		if first {
			first = false
			return analysis("B", 0, candidate("E5", 0, 100, 0)), nil
		}
		return analysis("B", 5.0, candidate("E4", 0, 100, 5.0)), nil
	})
	style, err := engine.GetStyle("balanced", "")
	if err != nil {
		t.Fatal(err)
	}
	var out, chat bytes.Buffer
	sess := NewSession(fake, engine.NewSelector(style, 1, zap.NewNop()), Config{
		In:   strings.NewReader("boardsize 9\ngenmove black\nplay white D4\ngenmove black\nquit\n"),
		Out:  &out,
		Chat: &chat,
		Log:  zap.NewNop(),
	})
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(chat.String(), "MALKOVICH:D4") {
		t.Fatalf("expected a score-swing report naming D4:\n%s", chat.String())
	}
}

func TestUnknownCommandIsEmptySuccess(t *testing.T) {
	sess, out, _ := newTestSession(t, &fakeAnalyzer{}, "frobnicate\nquit\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "= \n\n") {
		t.Fatalf("unknown commands reply with an empty success:\n%q", out.String())
	}
}

func TestMalformedBoardsizeFailsSession(t *testing.T) {
	sess, _, _ := newTestSession(t, &fakeAnalyzer{}, "boardsize twelve\n")
	if err := sess.Run(context.Background()); err == nil {
		t.Fatal("malformed boardsize must terminate the session")
	}
	sess, _, _ = newTestSession(t, &fakeAnalyzer{}, "boardsize 26\n")
	if err := sess.Run(context.Background()); err == nil {
		t.Fatal("boardsize beyond the column alphabet must fail")
	}
}

func TestListCommandsAndKnownCommand(t *testing.T) {
	sess, out, _ := newTestSession(t, &fakeAnalyzer{}, "list_commands\nknown_command genmove\nknown_command frobnicate\nquit\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, name := range []string{"genmove", "play", "boardsize", "place_free_handicap"} {
		if !strings.Contains(text, name) {
			t.Fatalf("list_commands missing %s:\n%s", name, text)
		}
	}
	if !strings.Contains(text, "= true\n\n") || !strings.Contains(text, "= false\n\n") {
		t.Fatalf("known_command answers:\n%s", text)
	}
}

func TestSetFreeHandicap(t *testing.T) {
	sess, _, _ := newTestSession(t, &fakeAnalyzer{}, "set_free_handicap D4 Q16\nquit\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := sess.State()
	if len(st.Handicap) != 2 || st.ToMove != game.White {
		t.Fatalf("handicap=%d toMove=%s", len(st.Handicap), st.ToMove)
	}
	if col, ok := sess.Board().Get(game.Coord{Col: 3, Row: 3}); !ok || col != game.Black {
		t.Fatal("D4 should hold a black stone")
	}
}

func TestPlaceFreeHandicap(t *testing.T) {
	sess, out, _ := newTestSession(t, &fakeAnalyzer{}, "place_free_handicap 2\nquit\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "= D4 Q16\n\n") {
		t.Fatalf("expected the first two standard points:\n%s", out.String())
	}
	if sess.State().ToMove != game.White {
		t.Fatal("white moves after handicap placement")
	}
}

func TestPlaceFreeHandicapDeclines(t *testing.T) {
	// Non-standard board: decline with a pass.
	sess, out, _ := newTestSession(t, &fakeAnalyzer{}, "boardsize 9\nplace_free_handicap 2\nquit\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "= pass\n\n") {
		t.Fatalf("expected a pass on 9x9:\n%s", out.String())
	}
	// Too many stones for the preference list.
	sess, out, _ = newTestSession(t, &fakeAnalyzer{}, "place_free_handicap 10\nquit\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "= pass\n\n") {
		t.Fatalf("expected a pass for 10 stones:\n%s", out.String())
	}
}

func TestPlayUpdatesState(t *testing.T) {
	sess, _, _ := newTestSession(t, &fakeAnalyzer{}, "boardsize 9\nplay black E5\nplay white pass\nquit\n")
	if err := sess.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := sess.State()
	if len(st.Moves) != 2 || st.ConsecutivePasses != 1 || st.ToMove != game.Black {
		t.Fatalf("state = moves:%d passes:%d toMove:%s", len(st.Moves), st.ConsecutivePasses, st.ToMove)
	}
}
