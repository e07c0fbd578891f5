// Package config loads the ingestion engine's configuration from a
// shell-style env file plus the process environment, in the same
// godotenv-then-viper shape used across the rest of the stack.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/ingesterr"
)

// Mode selects which upstream producers run alongside the DB writer.
type Mode string

const (
	ModeWS   Mode = "ws"
	ModeHTTP Mode = "http"
	ModeDual Mode = "dual"
)

// Config holds every recognized key. Field names mirror the env-var keys
// (upper-snake-cased) via mapstructure tags, the same convention the rest of
// the stack uses.
type Config struct {
	RPCEndpoint string `mapstructure:"rpc_endpoint"`
	WSSEndpoint string `mapstructure:"wss_endpoint"`
	APIKey      string `mapstructure:"api_key"`
	Mode        string `mapstructure:"mode"`

	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	WSBackoffMs    int `mapstructure:"ws_backoff_ms"`
	WSBackoffMaxMs int `mapstructure:"ws_backoff_max_ms"`

	QueueCapacity int     `mapstructure:"queue_capacity"`
	BatchSize     int     `mapstructure:"batch_size"`
	RateLimitRPS  float64 `mapstructure:"rate_limit_rps"`

	LogColor bool   `mapstructure:"log_color"`
	LogLevel string `mapstructure:"log_level"`

	PumpfunProgramID string `mapstructure:"pumpfun_program_id"`
	PumpfunTable     string `mapstructure:"pumpfun_table"`
	RaydiumProgramID string `mapstructure:"raydium_program_id"`
	RaydiumTable     string `mapstructure:"raydium_table"`

	PostgresConninfo string `mapstructure:"postgres_conninfo"`

	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPort    int    `mapstructure:"metrics_port"`
	MetricsPath    string `mapstructure:"metrics_path"`
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Load reads an env file, applies defaults, lets the process environment
// override both, and validates the result. configPath, if non-empty, names
// the exact env file to load (the -c/--config flag); otherwise Load falls
// back to checking .env and .env.local in the working directory.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(configPath); err != nil {
		if configPath != "" {
			return nil, fmt.Errorf("%w: %v", ingesterr.ErrConfigInvalid, err)
		}
		log.Debug().Msg("config: no .env file found, using environment variables and defaults")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unable to decode config: %v", ingesterr.ErrConfigInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile loads configPath if the caller named one explicitly, otherwise
// falls back to checking a small fixed list of locations.
func loadEnvFile(configPath string) error {
	if configPath != "" {
		if err := godotenv.Load(configPath); err != nil {
			return fmt.Errorf("error loading env file %s: %w", configPath, err)
		}
		log.Info().Str("file", configPath).Msg("config: env file loaded")
		return nil
	}

	locations := []string{".env", ".env.local"}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading env file %s: %w", location, err)
			}
			log.Info().Str("file", location).Msg("config: env file loaded")
			return nil
		}
	}
	return fmt.Errorf("no env file found")
}

func setDefaults() {
	viper.SetDefault("rpc_endpoint", "")
	viper.SetDefault("wss_endpoint", "")
	viper.SetDefault("api_key", "")
	viper.SetDefault("mode", "dual")

	viper.SetDefault("poll_interval_ms", 1000)
	viper.SetDefault("ws_backoff_ms", 1000)
	viper.SetDefault("ws_backoff_max_ms", 60000)

	viper.SetDefault("queue_capacity", 1024)
	viper.SetDefault("batch_size", 20)
	viper.SetDefault("rate_limit_rps", 10)

	viper.SetDefault("log_color", true)
	viper.SetDefault("log_level", "info")

	viper.SetDefault("pumpfun_program_id", "")
	viper.SetDefault("pumpfun_table", "pumpfun_trades")
	viper.SetDefault("raydium_program_id", "")
	viper.SetDefault("raydium_table", "raydium_swaps")

	viper.SetDefault("postgres_conninfo", "")

	viper.SetDefault("metrics_enabled", false)
	viper.SetDefault("metrics_port", 9090)
	viper.SetDefault("metrics_path", "/metrics")
}

// Validate checks the invariants the rest of the engine relies on, wrapping
// every failure in ErrConfigInvalid so callers can distinguish startup
// failures from runtime ones with errors.Is.
func (c *Config) Validate() error {
	switch Mode(c.Mode) {
	case ModeWS, ModeHTTP, ModeDual:
	default:
		return fmt.Errorf("%w: mode must be one of ws, http, dual (got %q)", ingesterr.ErrConfigInvalid, c.Mode)
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("%w: log_level must be one of trace, debug, info, warn, error (got %q)", ingesterr.ErrConfigInvalid, c.LogLevel)
	}

	if c.needsHTTP() && c.RPCEndpoint == "" {
		return fmt.Errorf("%w: rpc_endpoint is required in mode %q", ingesterr.ErrConfigInvalid, c.Mode)
	}
	if c.needsWS() && c.WSSEndpoint == "" {
		return fmt.Errorf("%w: wss_endpoint is required in mode %q", ingesterr.ErrConfigInvalid, c.Mode)
	}
	if c.PostgresConninfo == "" {
		return fmt.Errorf("%w: postgres_conninfo is required", ingesterr.ErrConfigInvalid)
	}

	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("%w: poll_interval_ms must be positive (got %d)", ingesterr.ErrConfigInvalid, c.PollIntervalMs)
	}
	if c.WSBackoffMs <= 0 || c.WSBackoffMaxMs <= 0 || c.WSBackoffMs > c.WSBackoffMaxMs {
		return fmt.Errorf("%w: ws_backoff_ms must be positive and <= ws_backoff_max_ms", ingesterr.ErrConfigInvalid)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue_capacity must be positive (got %d)", ingesterr.ErrConfigInvalid, c.QueueCapacity)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive (got %d)", ingesterr.ErrConfigInvalid, c.BatchSize)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("%w: rate_limit_rps must be >= 0 (got %v)", ingesterr.ErrConfigInvalid, c.RateLimitRPS)
	}
	if c.PumpfunProgramID == "" && c.RaydiumProgramID == "" {
		return fmt.Errorf("%w: at least one of pumpfun_program_id, raydium_program_id must be set", ingesterr.ErrConfigInvalid)
	}
	if c.PumpfunTable == "" || c.RaydiumTable == "" {
		return fmt.Errorf("%w: pumpfun_table and raydium_table must both be set", ingesterr.ErrConfigInvalid)
	}
	if c.MetricsEnabled {
		if c.MetricsPort <= 0 {
			return fmt.Errorf("%w: metrics_port must be positive when metrics_enabled (got %d)", ingesterr.ErrConfigInvalid, c.MetricsPort)
		}
		if c.MetricsPath == "" {
			return fmt.Errorf("%w: metrics_path must be set when metrics_enabled", ingesterr.ErrConfigInvalid)
		}
	}

	return nil
}

func (c *Config) needsHTTP() bool {
	return Mode(c.Mode) == ModeHTTP || Mode(c.Mode) == ModeDual
}

func (c *Config) needsWS() bool {
	return Mode(c.Mode) == ModeWS || Mode(c.Mode) == ModeDual
}

// RedactedAPIKey returns the API key with all but its last four characters
// masked, for inclusion in the startup summary log.
func (c *Config) RedactedAPIKey() string {
	if len(c.APIKey) <= 4 {
		return strings.Repeat("*", len(c.APIKey))
	}
	return strings.Repeat("*", len(c.APIKey)-4) + c.APIKey[len(c.APIKey)-4:]
}
