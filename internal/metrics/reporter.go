package metrics

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Reporter drives the periodic summary log described in the data model:
// every 60 seconds it prints the full counter snapshot. It wraps
// robfig/cron rather than a raw time.Ticker so the supervisor can add
// further scheduled diagnostics later using the same entry list.
type Reporter struct {
	cron *cron.Cron
	m    *Metrics
}

// NewReporter builds a Reporter bound to m. Call Start to begin logging.
func NewReporter(m *Metrics) *Reporter {
	return &Reporter{
		cron: cron.New(),
		m:    m,
	}
}

// Start registers the 60-second summary job and starts the scheduler in its
// own goroutine. It never blocks the caller.
func (r *Reporter) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc("@every 60s", func() {
		r.logSummary()
	})
	if err != nil {
		return err
	}
	r.cron.Start()

	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
	}()
	return nil
}

func (r *Reporter) logSummary() {
	snap := r.m.Snapshot()
	log.Info().
		Uint64("requests_total", snap.RequestsTotal).
		Uint64("requests_success", snap.RequestsSuccess).
		Uint64("requests_failed", snap.RequestsFailed).
		Uint64("events_processed", snap.EventsProcessed).
		Uint64("bytes_received", snap.BytesReceived).
		Uint64("ws_reconnects", snap.WSReconnects).
		Float64("latency_avg_us", snap.LatencyAvgUs).
		Uint64("latency_min_us", snap.LatencyMinUs).
		Uint64("latency_max_us", snap.LatencyMaxUs).
		Msg("ingestion metrics summary")
}
