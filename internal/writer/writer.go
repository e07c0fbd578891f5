// Package writer implements the DB writer worker (C5): it drains the
// ingestion queue and persists each event to the table matching its kind,
// reconnecting with exponential backoff whenever the database misbehaves.
package writer

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/database"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/event"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/metrics"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/queue"
)

const (
	backoffBase = 1 * time.Second
	backoffMax  = 30 * time.Second
)

// Tables maps an event Kind to its destination table name.
type Tables struct {
	Pumpfun string
	Raydium string
}

func (t Tables) forKind(k event.Kind) (string, bool) {
	switch k {
	case event.KindPumpfun:
		return t.Pumpfun, true
	case event.KindRaydium:
		return t.Raydium, true
	default:
		return "", false
	}
}

// Writer drains q and writes each event to Postgres.
type Writer struct {
	conninfo string
	tables   Tables
	q        *queue.Queue
	prom     *metrics.PromCollector
}

// New builds a Writer bound to q. prom may be nil, in which case the
// Prometheus view is skipped.
func New(conninfo string, tables Tables, q *queue.Queue, prom *metrics.PromCollector) *Writer {
	return &Writer{conninfo: conninfo, tables: tables, q: q, prom: prom}
}

// Run is the worker's main loop. It returns once the queue is closed and
// drained, or ctx is cancelled while waiting to reconnect.
func (w *Writer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := w.connectWithBackoff(ctx)
		if err != nil {
			return err
		}

		drained := w.drainInto(ctx, conn)
		conn.Close()
		if drained {
			return nil
		}
		// otherwise an insert failed: loop back and reconnect.
	}
}

// connectWithBackoff retries database.Connect with exponential backoff
// starting at 1s and doubling up to 30s, per the writer lifecycle.
func (w *Writer) connectWithBackoff(ctx context.Context) (*database.Connection, error) {
	backoff := backoffBase
	for {
		conn, err := database.Connect(ctx, w.conninfo)
		if err == nil {
			return conn, nil
		}
		log.Error().Err(err).Dur("retry_in", backoff).Msg("writer: database connect failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// drainInto pops events until end-of-stream (returns true) or an insert
// fails (returns false, signaling the caller to reconnect).
func (w *Writer) drainInto(ctx context.Context, conn *database.Connection) bool {
	for {
		ev, ok := w.q.Pop()
		if !ok {
			return true
		}

		table, known := w.tables.forKind(ev.Kind)
		if !known {
			log.Debug().Str("kind", ev.Kind.String()).Str("signature", ev.Signature).Msg("writer: dropping event of unknown kind")
			continue
		}

		if _, err := conn.Exec(context.WithoutCancel(ctx), insertQuery(table), int64(ev.Slot), ev.Signature, ev.Data); err != nil {
			w.prom.ObserveWrite(false)
			log.Error().Err(err).Str("table", table).Str("signature", ev.Signature).Msg("writer: insert failed, discarding event and reconnecting")
			return false
		}
		w.prom.ObserveWrite(true)
	}
}

// insertQuery builds the writer's sole statement. Table names come only from
// configuration, never from event data, so string concatenation here carries
// no injection risk.
func insertQuery(table string) string {
	return "INSERT INTO " + table + " (slot, signature, raw_log) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING"
}
