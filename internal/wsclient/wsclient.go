// Package wsclient implements the WebSocket client worker (C4): a
// DISCONNECTED/CONNECTING/CONNECTED state machine that maintains one active
// logsSubscribe session at a time, reconnecting with exponential backoff.
package wsclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog/log"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/metrics"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/parser"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/queue"
)

// State is the client's connection state, per the state machine in the
// component design.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

// Client owns a single active WebSocket session against a logsSubscribe
// endpoint, reconnecting on any close or error.
type Client struct {
	url           string
	ids           parser.ProgramIDs
	q             *queue.Queue
	metrics       *metrics.Metrics
	prom          *metrics.PromCollector
	backoffBaseMs int
	backoffMaxMs  int

	dialer *websocket.Dialer
	state  State
}

// New builds a Client. url must carry a ws:// or wss:// scheme. prom may be
// nil, in which case the Prometheus view is skipped.
func New(url string, ids parser.ProgramIDs, q *queue.Queue, m *metrics.Metrics, prom *metrics.PromCollector, backoffBaseMs, backoffMaxMs int) *Client {
	return &Client{
		url:           url,
		ids:           ids,
		q:             q,
		metrics:       m,
		prom:          prom,
		backoffBaseMs: backoffBaseMs,
		backoffMaxMs:  backoffMaxMs,
		dialer:        websocket.DefaultDialer,
		state:         Disconnected,
	}
}

// State returns the client's current state. Intended for tests and
// diagnostics; the value can be stale the instant it's read.
func (c *Client) State() State {
	return c.state
}

// Run drives the reconnect loop until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.backoffBaseMs

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.state = Connecting
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.state = Disconnected
			log.Warn().Err(err).Dur("backoff", time.Duration(backoff)*time.Millisecond).Msg("wsclient: dial failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(backoff) * time.Millisecond):
			}

			backoff *= 2
			if backoff > c.backoffMaxMs {
				backoff = c.backoffMaxMs
			}
			continue
		}

		c.state = Connected
		backoff = c.backoffBaseMs

		c.serve(ctx, conn)
		conn.Close()

		c.state = Disconnected
		c.metrics.IncWSReconnects()
		c.prom.SyncCounters(0, 0, 1)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// serve sends the one subscription frame and then reads notifications until
// the connection closes, errors, or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	frame := c.subscriptionFrame()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Warn().Err(err).Msg("wsclient: failed to write subscription frame")
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("wsclient: read failed, reconnecting")
			return
		}

		if _, _, parseErr := parser.Parse(msg, c.ids, c.q, 0); parseErr == nil {
			// slot cursor is irrelevant for notifications; each one carries
			// its own slot, so the result is discarded here.
		}
	}
}

type subscribeParams struct {
	Mentions []string `json:"mentions"`
}

type subscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// subscriptionFrame builds the single logsSubscribe frame sent once per
// connection.
func (c *Client) subscriptionFrame() []byte {
	mentions := make([]string, 0, 2)
	if c.ids.Pumpfun != "" {
		mentions = append(mentions, c.ids.Pumpfun)
	}
	if c.ids.Raydium != "" {
		mentions = append(mentions, c.ids.Raydium)
	}
	if len(mentions) == 0 {
		mentions = []string{c.ids.Pumpfun}
	}

	req := subscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params:  []interface{}{subscribeParams{Mentions: mentions}, commitmentConfirmed{Commitment: "confirmed"}},
	}
	encoded, _ := json.Marshal(req)
	return encoded
}

type commitmentConfirmed struct {
	Commitment string `json:"commitment"`
}
