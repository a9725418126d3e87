// Package katago drives the KataGo analysis engine as a subprocess
// speaking its JSON line protocol: one query object per line on stdin,
// one response object per line on stdout.
package katago

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kapu/katago-gtp-bot/internal/game"
)

// ErrEngineExited reports that the engine process died before producing
// a response. A session cannot recover a dead backend mid-game.
var ErrEngineExited = errors.New("katago: engine exited unexpectedly")

const rules = "chinese"

type Config struct {
	BinaryPath string
	ConfigPath string
	ModelPath  string
	// HumanModelPath enables the human-style policy head (optional).
	HumanModelPath string
	ExtraArgs      []string
}

// Client is a synchronous analysis client. At most one query is
// outstanding at a time; the analysis protocol would multiplex by id,
// but the bot never needs that.
type Client struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	log     *zap.Logger
	mu      sync.Mutex
	queryID int
}

// Launch starts `katago analysis` with stdin/stdout pipes. KataGo's own
// diagnostics pass through on stderr.
func Launch(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	args := []string{"analysis", "-config", cfg.ConfigPath, "-model", cfg.ModelPath}
	if cfg.HumanModelPath != "" {
		args = append(args, "-human-model", cfg.HumanModelPath)
	}
	args = append(args, cfg.ExtraArgs...)

	cmd := exec.CommandContext(ctx, cfg.BinaryPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start katago: %w", err)
	}

	log.Info("katago started",
		zap.String("binary", cfg.BinaryPath),
		zap.String("model", cfg.ModelPath),
		zap.Bool("human_model", cfg.HumanModelPath != ""))

	return &Client{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
		log:    log,
	}, nil
}

// NewPipeClient wires a client over arbitrary streams instead of a
// subprocess. Tests use this.
func NewPipeClient(w io.WriteCloser, r io.Reader, log *zap.Logger) *Client {
	return &Client{stdin: w, stdout: bufio.NewReader(r), log: log}
}

// Analyze sends one query and blocks until the matching response line
// arrives. The context cancels the wait, not the engine's search.
func (c *Client) Analyze(ctx context.Context, req Request) (*AnalysisResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.buildQuery(req)
	payload, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	if _, err := c.stdin.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineExited, err)
	}

	for {
		line, err := c.readLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrEngineExited, err)
		}
		if line == "" {
			continue
		}
		var res AnalysisResult
		if err := json.Unmarshal([]byte(line), &res); err != nil {
			c.log.Warn("undecodable engine line", zap.String("line", line))
			continue
		}
		if res.Error != "" {
			return nil, fmt.Errorf("katago: query %s rejected: %s", q.ID, res.Error)
		}
		if res.Warning != "" {
			c.log.Warn("katago warning", zap.String("id", res.ID), zap.String("warning", res.Warning))
		}
		if res.ID != q.ID {
			continue
		}
		return &res, nil
	}
}

func (c *Client) buildQuery(req Request) query {
	q := query{
		ID:                    strconv.Itoa(c.queryID),
		Moves:                 make([][2]string, 0, len(req.Moves)),
		InitialStones:         make([][2]string, 0, len(req.Handicap)),
		Rules:                 rules,
		Komi:                  req.Komi,
		BoardXSize:            req.Size,
		BoardYSize:            req.Size,
		MaxVisits:             req.MaxVisits,
		IncludeMovesOwnership: req.IncludeOwnership,
	}
	c.queryID++
	for _, m := range req.Moves {
		q.Moves = append(q.Moves, [2]string{m.Color.Letter(), game.FormatVertex(m)})
	}
	for _, s := range req.Handicap {
		q.InitialStones = append(q.InitialStones, [2]string{s.Color.Letter(), game.FormatCoord(s.Coord)})
	}
	if req.HumanProfile != "" {
		q.IncludePolicy = true
		q.OverrideSettings = map[string]any{"humanSLProfile": req.HumanProfile}
	}
	return q
}

func (c *Client) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := c.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

// Close shuts the engine down: closing stdin asks the analysis engine
// to exit once outstanding queries drain.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.cmd != nil {
		return c.cmd.Wait()
	}
	return nil
}
