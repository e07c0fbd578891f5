package wsclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/metrics"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/parser"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/queue"
)

var testIDs = parser.ProgramIDs{Pumpfun: "P1", Raydium: "R1"}

var upgrader = websocket.Upgrader{}

func TestSubscriptionFrame_MentionsBothConfiguredIDs(t *testing.T) {
	c := New("ws://example.invalid", testIDs, queue.New(4), metrics.New(), nil, 1000, 60000)

	frame := c.subscriptionFrame()
	var req subscribeRequest
	require.NoError(t, json.Unmarshal(frame, &req))
	assert.Equal(t, "logsSubscribe", req.Method)

	var params subscribeParams
	raw, _ := json.Marshal(req.Params[0])
	require.NoError(t, json.Unmarshal(raw, &params))
	assert.ElementsMatch(t, []string{"P1", "R1"}, params.Mentions)
}

func TestSubscriptionFrame_FallsBackToPumpfunWhenBothEmpty(t *testing.T) {
	c := New("ws://example.invalid", parser.ProgramIDs{}, queue.New(4), metrics.New(), nil, 1000, 60000)

	frame := c.subscriptionFrame()
	var req subscribeRequest
	require.NoError(t, json.Unmarshal(frame, &req))
	var params subscribeParams
	raw, _ := json.Marshal(req.Params[0])
	require.NoError(t, json.Unmarshal(raw, &params))
	assert.Equal(t, []string{""}, params.Mentions)
}

func TestClient_ReconnectsAndCountsReconnectsAfterServerCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Read the subscription frame, send one notification, then close.
		_, _, _ = conn.ReadMessage()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"params":{"result":{"context":{"slot":7},"value":{"logs":["Program data: YWJj"],"signature":"sigA","programId":"P1"}}}}`,
		))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	q := queue.New(4)
	m := metrics.New()
	c := New(wsURL, testIDs, q, m, nil, 10, 100)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_ = c.Run(ctx)

	assert.GreaterOrEqual(t, m.Snapshot().WSReconnects, uint64(1))
}

func TestClient_InitialStateIsDisconnected(t *testing.T) {
	c := New("ws://example.invalid", testIDs, queue.New(4), metrics.New(), nil, 1000, 60000)
	assert.Equal(t, Disconnected, c.State())
}
