package writer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/event"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/queue"
)

var testTables = Tables{Pumpfun: "pumpfun_trades", Raydium: "raydium_swaps"}

func TestTables_ForKind(t *testing.T) {
	t.Run("pumpfun maps to its table", func(t *testing.T) {
		table, ok := testTables.forKind(event.KindPumpfun)
		assert.True(t, ok)
		assert.Equal(t, "pumpfun_trades", table)
	})

	t.Run("raydium maps to its table", func(t *testing.T) {
		table, ok := testTables.forKind(event.KindRaydium)
		assert.True(t, ok)
		assert.Equal(t, "raydium_swaps", table)
	})

	t.Run("unknown kind has no table", func(t *testing.T) {
		_, ok := testTables.forKind(event.KindUnknown)
		assert.False(t, ok)
	})
}

func TestInsertQuery(t *testing.T) {
	q := insertQuery("pumpfun_trades")
	assert.Contains(t, q, "INSERT INTO pumpfun_trades")
	assert.Contains(t, q, "ON CONFLICT DO NOTHING")
	assert.Contains(t, q, "$1")
	assert.Contains(t, q, "$2")
	assert.Contains(t, q, "$3")
}

func TestWriter_ConnectWithBackoff_RespectsContextCancellation(t *testing.T) {
	w := New("not a valid conninfo at all :::", testTables, queue.New(4), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := w.connectWithBackoff(ctx)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "must not wait out the full 1s backoff once ctx is done")
}

func TestWriter_DrainInto_EndOfStreamReturnsTrue(t *testing.T) {
	q := queue.New(4)
	q.Close()

	w := New("", testTables, q, nil)
	done := w.drainInto(context.Background(), nil)
	assert.True(t, done, "an already-closed, empty queue must signal end-of-stream without touching the connection")
}
