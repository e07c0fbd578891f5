// Package poller implements the HTTP poller worker (C3): it periodically
// issues a JSON-RPC getLogs call, hands the response to the parser, and
// advances the slot cursor monotonically.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/metrics"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/parser"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/queue"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/ratelimit"
)

const (
	connectTimeout = 10 * time.Second
	getLogsLimit   = 50
)

// Poller drives the getLogs loop against a single RPC endpoint.
type Poller struct {
	endpoint     string
	apiKey       string
	ids          parser.ProgramIDs
	q            *queue.Queue
	limiter      *ratelimit.Limiter
	metrics      *metrics.Metrics
	prom         *metrics.PromCollector
	pollInterval time.Duration
	client       *http.Client

	lastSlot uint64 // accessed atomically; read by tests and LastSlot
}

// New builds a Poller. endpoint must be the full HTTPS RPC URL; apiKey, if
// non-empty, is sent as a bearer token. prom may be nil, in which case the
// Prometheus view is skipped and only the atomic Metrics counters update.
func New(endpoint, apiKey string, ids parser.ProgramIDs, q *queue.Queue, limiter *ratelimit.Limiter, m *metrics.Metrics, prom *metrics.PromCollector, pollInterval time.Duration) *Poller {
	return &Poller{
		endpoint:     endpoint,
		apiKey:       apiKey,
		ids:          ids,
		q:            q,
		limiter:      limiter,
		metrics:      m,
		prom:         prom,
		pollInterval: pollInterval,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// LastSlot returns the current cursor. Safe for concurrent use.
func (p *Poller) LastSlot() uint64 {
	return atomic.LoadUint64(&p.lastSlot)
}

// Run executes the poll loop until ctx is cancelled. The current request, if
// any, is allowed to complete on shutdown rather than being cut off
// mid-flight.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		p.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	body := p.buildRequestBody()

	start := time.Now()
	resp, err := p.post(context.WithoutCancel(ctx), body)
	latencyUs := uint64(time.Since(start).Microseconds())

	if err != nil {
		p.metrics.RecordRequest(false, latencyUs)
		p.prom.Observe(false)
		log.Warn().Err(err).Msg("poller: getLogs request failed")
		return
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		p.metrics.RecordRequest(false, latencyUs)
		p.prom.Observe(false)
		log.Warn().Err(readErr).Msg("poller: failed to read response body")
		return
	}

	p.metrics.RecordRequest(true, latencyUs)
	p.metrics.AddBytesReceived(uint64(len(respBody)))
	p.prom.Observe(true)
	p.prom.SyncCounters(0, uint64(len(respBody)), 0)

	current := atomic.LoadUint64(&p.lastSlot)
	enqueued, highest, parseErr := parser.Parse(respBody, p.ids, p.q, current)
	if parseErr != nil {
		return
	}

	p.metrics.AddEventsProcessed(uint64(enqueued))
	p.prom.SyncCounters(uint64(enqueued), 0, 0)
	if highest > current {
		atomic.StoreUint64(&p.lastSlot, highest)
	}
}

func (p *Poller) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.client.Do(req)
}

type getLogsParams struct {
	Mentions  []string `json:"mentions"`
	StartSlot *uint64  `json:"startSlot,omitempty"`
	Limit     int      `json:"limit"`
}

type commitmentParams struct {
	Commitment string `json:"commitment"`
}

type getLogsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// buildRequestBody assembles the getLogs JSON-RPC body per the data model:
// startSlot only once the cursor has advanced past zero, and mentions
// falling back to a single-element pumpfun-id array when both program ids
// are unconfigured.
func (p *Poller) buildRequestBody() []byte {
	mentions := make([]string, 0, 2)
	if p.ids.Pumpfun != "" {
		mentions = append(mentions, p.ids.Pumpfun)
	}
	if p.ids.Raydium != "" {
		mentions = append(mentions, p.ids.Raydium)
	}
	if len(mentions) == 0 {
		mentions = []string{p.ids.Pumpfun}
	}

	params := getLogsParams{
		Mentions: mentions,
		Limit:    getLogsLimit,
	}
	if slot := atomic.LoadUint64(&p.lastSlot); slot > 0 {
		params.StartSlot = &slot
	}

	req := getLogsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getLogs",
		Params:  []interface{}{params, commitmentParams{Commitment: "confirmed"}},
	}

	encoded, _ := json.Marshal(req)
	return encoded
}
