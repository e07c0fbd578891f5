package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/config"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/database"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/metrics"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/parser"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/poller"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/queue"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/ratelimit"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/writer"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/wsclient"
)

var (
	Version = "dev"
	Commit  = "unknown"

	showVersion    bool
	validateConfig = flag.Bool("validate", false, "Validate configuration and exit")
	configPath     string
)

func init() {
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.StringVar(&configPath, "config", "", "Path to an env file to load")
	flag.StringVar(&configPath, "c", "", "Path to an env file to load (shorthand)")
}

func main() {
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if showVersion {
		fmt.Printf("yurei-ingest %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	if !cfg.LogColor {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
	}
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	instanceID := uuid.New().String()
	log.Logger = log.Logger.With().Str("instance_id", instanceID).Logger()

	printConfigSummary(cfg)

	if *validateConfig {
		validateAndExit(cfg)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("ingestion engine exited with error")
		os.Exit(1)
	}
}

// validateAndExit checks configuration and database connectivity, then
// exits 0 on success or 1 on failure, per the -validate contract.
func validateAndExit(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := database.Connect(ctx, cfg.PostgresConninfo)
	if err != nil {
		log.Error().Err(err).Msg("configuration validation failed: cannot connect to database")
		os.Exit(1)
	}
	conn.Close()

	log.Info().Msg("configuration validation successful")
	os.Exit(0)
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.New(cfg.QueueCapacity)
	m := metrics.New()
	prom := metrics.NewPromCollector(m)
	limiter := ratelimit.New(cfg.RateLimitRPS)
	ids := parser.ProgramIDs{Pumpfun: cfg.PumpfunProgramID, Raydium: cfg.RaydiumProgramID}

	reporter := metrics.NewReporter(m)
	if err := reporter.Start(ctx); err != nil {
		return fmt.Errorf("start metrics reporter: %w", err)
	}

	if cfg.MetricsEnabled {
		startMetricsServer(cfg)
	}

	log.Info().Msg("running database migrations")
	if err := runMigrations(ctx, cfg.PostgresConninfo); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("database migrations complete")

	var wg sync.WaitGroup
	mode := config.Mode(cfg.Mode)

	if mode == config.ModeHTTP || mode == config.ModeDual {
		p := poller.New(cfg.RPCEndpoint, cfg.APIKey, ids, q, limiter, m, prom, time.Duration(cfg.PollIntervalMs)*time.Millisecond)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("poller exited unexpectedly")
			}
		}()
	}

	if mode == config.ModeWS || mode == config.ModeDual {
		c := wsclient.New(cfg.WSSEndpoint, ids, q, m, prom, cfg.WSBackoffMs, cfg.WSBackoffMaxMs)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("websocket client exited unexpectedly")
			}
		}()
	}

	tables := writer.Tables{Pumpfun: cfg.PumpfunTable, Raydium: cfg.RaydiumTable}
	w := writer.New(cfg.PostgresConninfo, tables, q, prom)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("db writer exited unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	q.Close()
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("shutdown complete")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("force exiting - shutdown took too long")
	}
	return nil
}

// startMetricsServer serves the Prometheus exposition endpoint in the
// background. It never blocks startup and never takes the process down: a
// failed listener is logged and the ingestion pipeline runs without it.
func startMetricsServer(cfg *config.Config) {
	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.Handler())
	addr := ":" + strconv.Itoa(cfg.MetricsPort)

	go func() {
		log.Info().Str("addr", addr).Str("path", cfg.MetricsPath).Msg("metrics: serving /metrics")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("metrics: server exited")
		}
	}()
}

func runMigrations(ctx context.Context, conninfo string) error {
	conn, err := database.Connect(ctx, conninfo)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Migrate(conninfo)
}

func printConfigSummary(cfg *config.Config) {
	log.Info().Msg("configuration summary:")
	log.Info().Str("mode", cfg.Mode).Msg("  mode")
	log.Info().Str("rpc_endpoint", cfg.RPCEndpoint).Str("wss_endpoint", cfg.WSSEndpoint).Str("api_key", cfg.RedactedAPIKey()).Msg("  upstream")
	log.Info().Int("poll_interval_ms", cfg.PollIntervalMs).Int("ws_backoff_ms", cfg.WSBackoffMs).Int("ws_backoff_max_ms", cfg.WSBackoffMaxMs).Msg("  timing")
	log.Info().Int("queue_capacity", cfg.QueueCapacity).Int("batch_size", cfg.BatchSize).Float64("rate_limit_rps", cfg.RateLimitRPS).Msg("  pipeline")
	log.Info().Str("pumpfun_table", cfg.PumpfunTable).Str("raydium_table", cfg.RaydiumTable).Msg("  destination tables")
}
