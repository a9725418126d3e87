// Package ogs fetches historical games from the online-go.com REST API
// so they can be replayed through the bot for analysis.
package ogs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/kapu/katago-gtp-bot/internal/game"
)

const defaultBaseURL = "https://online-go.com"

type Player struct {
	Username string `json:"username"`
}

type Game struct {
	Height  int `json:"height"`
	Width   int `json:"width"`
	Players struct {
		Black Player `json:"black"`
		White Player `json:"white"`
	} `json:"players"`
	Gamedata struct {
		// Each move row is [col, row-from-top, elapsed...]; a pass is
		// [-1, -1, ...].
		Moves    [][]float64 `json:"moves"`
		Handicap int         `json:"handicap"`
	} `json:"gamedata"`
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second},
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Game fetches one game record by id.
func (c *Client) Game(ctx context.Context, id string) (*Game, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/api/v1/games/" + id)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("fetch game %s: %w", id, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("fetch game %s: status %d", id, resp.StatusCode())
	}

	var g Game
	if err := json.Unmarshal(resp.Body(), &g); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	return &g, nil
}

// Move converts one OGS move row into a board move for the given color.
// OGS rows count from the top of the board, so the row flips.
func (g *Game) Move(row []float64, color game.Color) game.Move {
	col, r := int(row[0]), int(row[1])
	if col == -1 && r == -1 {
		return game.Move{Color: color, Pass: true}
	}
	return game.Move{
		Color: color,
		Coord: game.Coord{Col: col, Row: g.Height - 1 - r},
	}
}
