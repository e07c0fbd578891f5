package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/metrics"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/parser"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/queue"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/ratelimit"
)

var testIDs = parser.ProgramIDs{Pumpfun: "P1", Raydium: "R1"}

func TestBuildRequestBody_MentionsBothConfiguredIDs(t *testing.T) {
	p := New("http://example.invalid", "", testIDs, queue.New(4), ratelimit.New(0), metrics.New(), nil, time.Second)

	body := p.buildRequestBody()
	var req getLogsRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "getLogs", req.Method)

	var params getLogsParams
	raw, _ := json.Marshal(req.Params[0])
	require.NoError(t, json.Unmarshal(raw, &params))
	assert.ElementsMatch(t, []string{"P1", "R1"}, params.Mentions)
	assert.Nil(t, params.StartSlot, "startSlot omitted while last_slot is zero")
	assert.Equal(t, getLogsLimit, params.Limit)
}

func TestBuildRequestBody_FallsBackToPumpfunWhenBothEmpty(t *testing.T) {
	p := New("http://example.invalid", "", parser.ProgramIDs{}, queue.New(4), ratelimit.New(0), metrics.New(), nil, time.Second)

	body := p.buildRequestBody()
	var req getLogsRequest
	require.NoError(t, json.Unmarshal(body, &req))
	var params getLogsParams
	raw, _ := json.Marshal(req.Params[0])
	require.NoError(t, json.Unmarshal(raw, &params))
	assert.Equal(t, []string{""}, params.Mentions)
}

func TestBuildRequestBody_StartSlotIncludedOnceCursorAdvances(t *testing.T) {
	p := New("http://example.invalid", "", testIDs, queue.New(4), ratelimit.New(0), metrics.New(), nil, time.Second)
	atomic.StoreUint64(&p.lastSlot, 42)

	body := p.buildRequestBody()
	var req getLogsRequest
	require.NoError(t, json.Unmarshal(body, &req))
	var params getLogsParams
	raw, _ := json.Marshal(req.Params[0])
	require.NoError(t, json.Unmarshal(raw, &params))
	require.NotNil(t, params.StartSlot)
	assert.Equal(t, uint64(42), *params.StartSlot)
}

func TestPollOnce_HappyPathAdvancesSlotAndEnqueues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"context":{"slot":100},"value":[{"logs":["Program data: YWJj"],"signature":"sigA","programId":"P1"}]}}`))
	}))
	defer srv.Close()

	q := queue.New(4)
	m := metrics.New()
	p := New(srv.URL, "", testIDs, q, ratelimit.New(0), m, nil, time.Second)

	p.pollOnce(context.Background())

	assert.Equal(t, uint64(100), p.LastSlot())
	assert.Equal(t, 1, q.Len())
	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsSuccess)
	assert.Equal(t, uint64(1), snap.EventsProcessed)
}

func TestPollOnce_TransportFailureDoesNotAdvanceCursor(t *testing.T) {
	q := queue.New(4)
	m := metrics.New()
	p := New("http://127.0.0.1:1", "", testIDs, q, ratelimit.New(0), m, nil, time.Second)

	p.pollOnce(context.Background())

	assert.Equal(t, uint64(0), p.LastSlot())
	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsFailed)
	assert.Equal(t, uint64(0), snap.RequestsSuccess)
}

func TestPollOnce_CursorNeverRegresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"context":{"slot":10},"value":[{"logs":["Program data: YWJj"],"signature":"sigA","programId":"P1"}]}}`))
	}))
	defer srv.Close()

	q := queue.New(4)
	p := New(srv.URL, "", testIDs, q, ratelimit.New(0), metrics.New(), nil, time.Second)
	atomic.StoreUint64(&p.lastSlot, 500)

	p.pollOnce(context.Background())
	assert.Equal(t, uint64(500), p.LastSlot())
}

func TestRun_ExitsOnContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := New(srv.URL, "", testIDs, queue.New(4), ratelimit.New(0), metrics.New(), nil, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	assert.Error(t, err)
}
