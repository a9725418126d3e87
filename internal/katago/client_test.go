package katago

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/katago-gtp-bot/internal/game"
)

// pipePair fakes the engine's stdin/stdout with in-memory pipes. The
// returned reader/writer are the test's side: read queries, write
// responses.
func pipePair(t *testing.T) (*Client, *bufio.Reader, io.WriteCloser) {
	t.Helper()
	queryR, queryW := io.Pipe()
	respR, respW := io.Pipe()
	c := NewPipeClient(queryW, respR, zap.NewNop())
	t.Cleanup(func() {
		queryR.Close()
		respW.Close()
	})
	return c, bufio.NewReader(queryR), respW
}

func TestAnalyzeQueryShape(t *testing.T) {
	c, queries, responses := pipePair(t)

	type analyzeResult struct {
		res *AnalysisResult
		err error
	}
	done := make(chan analyzeResult, 1)
	go func() {
		res, err := c.Analyze(context.Background(), Request{
			Size: 9,
			Komi: 7.5,
			Moves: []game.Move{
				{Color: game.Black, Coord: game.Coord{Col: 4, Row: 4}},
				{Color: game.White, Pass: true},
			},
			Handicap:         []game.Stone{{Color: game.Black, Coord: game.Coord{Col: 3, Row: 3}}},
			MaxVisits:        100,
			IncludeOwnership: true,
			HumanProfile:     "rank_9d",
		})
		done <- analyzeResult{res, err}
	}()

	line, err := queries.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	var q map[string]any
	if err := json.Unmarshal([]byte(line), &q); err != nil {
		t.Fatalf("query is not one JSON line: %v", err)
	}
	if q["id"] != "0" || q["rules"] != "chinese" || q["komi"] != 7.5 {
		t.Fatalf("query = %v", q)
	}
	if q["boardXSize"] != float64(9) || q["boardYSize"] != float64(9) {
		t.Fatalf("board size fields = %v %v", q["boardXSize"], q["boardYSize"])
	}
	moves := q["moves"].([]any)
	if len(moves) != 2 {
		t.Fatalf("moves = %v", moves)
	}
	first := moves[0].([]any)
	if first[0] != "B" || first[1] != "E5" {
		t.Fatalf("first move = %v", first)
	}
	second := moves[1].([]any)
	if second[1] != "pass" {
		t.Fatalf("second move = %v", second)
	}
	stones := q["initialStones"].([]any)
	if stones[0].([]any)[1] != "D4" {
		t.Fatalf("initialStones = %v", stones)
	}
	if q["includeMovesOwnership"] != true || q["includePolicy"] != true {
		t.Fatalf("analysis flags = %v", q)
	}
	override := q["overrideSettings"].(map[string]any)
	if override["humanSLProfile"] != "rank_9d" {
		t.Fatalf("overrideSettings = %v", override)
	}

	// An unrelated id must be skipped; the matching one returned.
	io.WriteString(responses, `{"id":"999","rootInfo":{"currentPlayer":"B"}}`+"\n")
	io.WriteString(responses, `{"id":"0","rootInfo":{"currentPlayer":"B","scoreLead":1.5},"moveInfos":[{"move":"E5","order":0,"visits":100}]}`+"\n")

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatal(got.err)
		}
		if got.res.RootInfo.ScoreLead != 1.5 || len(got.res.MoveInfos) != 1 {
			t.Fatalf("result = %+v", got.res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Analyze did not return")
	}
}

func TestAnalyzeQueryIDIncrements(t *testing.T) {
	c, queries, responses := pipePair(t)

	for want := 0; want < 2; want++ {
		done := make(chan error, 1)
		go func() {
			_, err := c.Analyze(context.Background(), Request{Size: 9, Komi: 7.5})
			done <- err
		}()
		line, err := queries.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		var q struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(line), &q); err != nil {
			t.Fatal(err)
		}
		if q.ID != []string{"0", "1"}[want] {
			t.Fatalf("query %d has id %s", want, q.ID)
		}
		io.WriteString(responses, `{"id":"`+q.ID+`","rootInfo":{"currentPlayer":"B"}}`+"\n")
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
}

func TestAnalyzeBackendError(t *testing.T) {
	c, queries, responses := pipePair(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background(), Request{Size: 9})
		done <- err
	}()
	if _, err := queries.ReadString('\n'); err != nil {
		t.Fatal(err)
	}
	io.WriteString(responses, `{"id":"0","error":"model file not found"}`+"\n")
	err := <-done
	if err == nil || errors.Is(err, ErrEngineExited) {
		t.Fatalf("want a query-rejection error, got %v", err)
	}
}

func TestAnalyzeEngineExit(t *testing.T) {
	c, queries, responses := pipePair(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background(), Request{Size: 9})
		done <- err
	}()
	if _, err := queries.ReadString('\n'); err != nil {
		t.Fatal(err)
	}
	responses.Close() // engine died before responding
	if err := <-done; !errors.Is(err, ErrEngineExited) {
		t.Fatalf("err = %v, want ErrEngineExited", err)
	}
}
