// ogspos fetches a game from online-go.com, replays it up to a given
// move number and prints the move the bot would generate there.
//
// Usage: ogspos <game-id> <move-number>
package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/kapu/katago-gtp-bot/internal/config"
	"github.com/kapu/katago-gtp-bot/internal/engine"
	"github.com/kapu/katago-gtp-bot/internal/game"
	"github.com/kapu/katago-gtp-bot/internal/gtp"
	"github.com/kapu/katago-gtp-bot/internal/katago"
	"github.com/kapu/katago-gtp-bot/internal/obslog"
	"github.com/kapu/katago-gtp-bot/internal/ogs"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: ogspos <game-id> <move-number>")
		os.Exit(2)
	}
	gameID := os.Args[1]
	moveNum, err := strconv.Atoi(os.Args[2])
	if err != nil || moveNum < 0 {
		log.Fatalf("bad move number %q", os.Args[2])
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	logger := obslog.L()
	defer logger.Sync()

	ctx := context.Background()

	g, err := ogs.NewClient().Game(ctx, gameID)
	if err != nil {
		logger.Fatal("ogs fetch failed", zap.String("game", gameID), zap.Error(err))
	}
	if g.Height != g.Width {
		logger.Fatal("only square boards are supported",
			zap.String("game", gameID),
			zap.Int("width", g.Width),
			zap.Int("height", g.Height))
	}
	fmt.Printf("%s vs %s\n", g.Players.Black.Username, g.Players.White.Username)

	style, err := engine.GetStyle(cfg.Style, cfg.StyleFile)
	if err != nil {
		logger.Fatal("style error", zap.Error(err))
	}

	client, err := katago.Launch(ctx, katago.Config{
		BinaryPath:     cfg.KataGoPath,
		ConfigPath:     cfg.KataGoConfig,
		ModelPath:      cfg.KataGoModel,
		HumanModelPath: cfg.KataGoHumanModel,
		ExtraArgs:      cfg.KataGoExtraArgs,
	}, logger)
	if err != nil {
		logger.Fatal("katago launch failed", zap.Error(err))
	}
	defer client.Close()

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sel := engine.NewSelector(style, seed, logger)

	script, color := replayScript(g, moveNum)
	var out bytes.Buffer
	sess := gtp.NewSession(client, sel, gtp.Config{
		In:        strings.NewReader(script),
		Out:       &out,
		MaxVisits: cfg.MaxVisits,
		Log:       logger,
	})
	fmt.Printf("generating move for %s\n", color)
	if err := sess.Run(ctx); err != nil {
		logger.Fatal("replay failed", zap.Error(err))
	}

	fmt.Println(sess.Board().Render())
	fmt.Printf("%s would play: %s\n", color, lastResponse(out.String()))
}

// replayScript turns the fetched game into the GTP commands that
// reproduce the position: handicap stones first (all Black), then
// alternating moves up to moveNum, then a genmove for the side to move.
func replayScript(g *ogs.Game, moveNum int) (string, game.Color) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "boardsize %d\n", g.Height)

	moves := g.Gamedata.Moves
	handicap := g.Gamedata.Handicap
	if handicap > len(moves) {
		handicap = len(moves)
	}
	if moveNum > len(moves) {
		moveNum = len(moves)
	}
	if moveNum < handicap {
		moveNum = handicap
	}

	next := game.Black
	for _, row := range moves[:handicap] {
		fmt.Fprintf(&sb, "play black %s\n", game.FormatVertex(g.Move(row, game.Black)))
	}
	if handicap > 0 {
		next = game.White
	}
	for _, row := range moves[handicap:moveNum] {
		fmt.Fprintf(&sb, "play %s %s\n", next, game.FormatVertex(g.Move(row, next)))
		next = next.Opponent()
	}
	fmt.Fprintf(&sb, "genmove %s\n", next)
	return sb.String(), next
}

// lastResponse extracts the final "= result" from a GTP transcript.
func lastResponse(transcript string) string {
	parts := strings.Split(strings.TrimSpace(transcript), "\n\n")
	last := parts[len(parts)-1]
	return strings.TrimSpace(strings.TrimPrefix(last, "="))
}
