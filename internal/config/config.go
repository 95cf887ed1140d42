package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Credentials holds the two TradingView session tokens. Loaded once at
// startup, immutable afterwards, and never logged.
type Credentials struct {
	SessionID     string
	SessionIDSign string
}

// Check reports whether both tokens are present.
func (c Credentials) Check() error {
	if c.SessionID == "" || c.SessionIDSign == "" {
		return errors.New("TRADINGVIEW_SESSION_ID and TRADINGVIEW_SESSION_ID_SIGN must both be set")
	}
	return nil
}

// Config holds all configuration for the snapshot service.
type Config struct {
	Credentials Credentials

	// Target site
	BaseURL string

	// Browser engine
	ChromePath string

	// Wait policy. Interval and timeouts are empirically tuned, not
	// contractual; see RENDER_* env vars.
	NavTimeout        time.Duration
	RenderTimeout     time.Duration // cold start
	RenderTimeoutWarm time.Duration
	StableInterval    time.Duration

	// Optional write-only archive of captured charts.
	ArchiveDir string

	// HTTP facade
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		Credentials: Credentials{
			SessionID:     os.Getenv("TRADINGVIEW_SESSION_ID"),
			SessionIDSign: os.Getenv("TRADINGVIEW_SESSION_ID_SIGN"),
		},
		BaseURL:           strings.TrimRight(getEnvOrDefault("TV_BASE_URL", "https://www.tradingview.com"), "/"),
		ChromePath:        os.Getenv("CHROME_PATH"),
		NavTimeout:        getEnvMSOrDefault("NAV_TIMEOUT_MS", 45000),
		RenderTimeout:     getEnvMSOrDefault("RENDER_TIMEOUT_MS", 10000),
		RenderTimeoutWarm: getEnvMSOrDefault("RENDER_TIMEOUT_WARM_MS", 5000),
		StableInterval:    getEnvMSOrDefault("RENDER_STABLE_INTERVAL_MS", 400),
		ArchiveDir:        os.Getenv("SNAPSHOT_ARCHIVE_DIR"),
		BindAddr:          getEnvOrDefault("SNAPSHOT_BIND_ADDR", "127.0.0.1:8189"),
		PortCandidates:    getEnvListOrDefault("SNAPSHOT_PORT_CANDIDATES", defaultPortCandidates()),
		PortAutoFallback:  getEnvBoolOrDefault("SNAPSHOT_PORT_AUTO_FALLBACK", true),
		LogLevel:          strings.ToLower(getEnvOrDefault("SNAPSHOT_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("SNAPSHOT_LOG_FILE", "logs/tv_snapshot.log"),
	}

	if cfg.StableInterval < 100*time.Millisecond {
		cfg.StableInterval = 100 * time.Millisecond
	}
	if cfg.RenderTimeout < cfg.StableInterval*2 {
		cfg.RenderTimeout = cfg.StableInterval * 2
	}
	if cfg.RenderTimeoutWarm < cfg.StableInterval*2 {
		cfg.RenderTimeoutWarm = cfg.StableInterval * 2
	}

	return cfg, nil
}

func defaultPortCandidates() []string {
	return []string{
		"127.0.0.1:8189",
		"127.0.0.1:8190",
		"127.0.0.1:8191",
		"127.0.0.1:8192",
		"127.0.0.1:8193",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvMSOrDefault(key string, defaultMS int) time.Duration {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return time.Duration(i) * time.Millisecond
		}
	}
	return time.Duration(defaultMS) * time.Millisecond
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
