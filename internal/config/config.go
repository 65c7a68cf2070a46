package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the HTTP and websocket surface listens on.
	DefaultAddr = ":43180"
	// DefaultGRPCAddr is the default TCP address for the gRPC progression service.
	DefaultGRPCAddr = ":43181"
	// DefaultPingInterval controls the keepalive cadence for websocket run channels.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxRuns bounds concurrently tracked runs. Zero disables the limit.
	DefaultMaxRuns = 512

	// DefaultOfferCount is how many candidate upgrades a level-up presents.
	DefaultOfferCount = 3
	// DefaultCooldownFloor is the hard lower bound for weapon cooldowns.
	DefaultCooldownFloor = 500 * time.Millisecond

	// DefaultJournalMaxRuns bounds retained run journals. Zero keeps every journal.
	DefaultJournalMaxRuns = 200
	// DefaultJournalMaxAge expires run journals older than this.
	DefaultJournalMaxAge = 7 * 24 * time.Hour

	// DefaultTokenTTL controls how long issued run tokens remain valid.
	DefaultTokenTTL = 2 * time.Hour

	// DefaultRunCreateWindow bounds how frequently runs may be started.
	DefaultRunCreateWindow = time.Second
	// DefaultRunCreateBurst sets how many runs may be started per window.
	DefaultRunCreateBurst = 20

	// DefaultLogLevel controls verbosity for engine logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "hordeforge.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// GRPCAuthMode selects how the gRPC surface authenticates callers.
type GRPCAuthMode string

const (
	GRPCAuthModeNone         GRPCAuthMode = "none"
	GRPCAuthModeSharedSecret GRPCAuthMode = "shared_secret"
	GRPCAuthModeMTLS         GRPCAuthMode = "mtls"
)

// Config captures all runtime tunables for the engine service.
type Config struct {
	Address        string
	GRPCAddress    string
	AllowedOrigins []string
	PingInterval   time.Duration
	MaxRuns        int

	OfferCount     int
	CooldownFloor  time.Duration
	Debug          bool
	CatalogPath    string
	JournalDir     string
	JournalMaxRuns int
	JournalMaxAge  time.Duration

	TokenSecret string
	TokenTTL    time.Duration

	GRPCAuthMode       GRPCAuthMode
	GRPCSharedSecret   string
	GRPCServerCertPath string
	GRPCServerKeyPath  string
	GRPCClientCAPath   string

	RunCreateWindow time.Duration
	RunCreateBurst  int

	Logging LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the configuration from environment variables, applying defaults and
// returning one error that lists every invalid override.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom behaves like Load but resolves variables through lookup.
func LoadFrom(lookup func(string) string) (*Config, error) {
	if lookup == nil {
		lookup = os.Getenv
	}
	env := func(key string) string { return strings.TrimSpace(lookup(key)) }
	cfg := &Config{
		Address:            stringOr(env("HORDE_ADDR"), DefaultAddr),
		GRPCAddress:        DefaultGRPCAddr,
		AllowedOrigins:     parseList(env("HORDE_ALLOWED_ORIGINS")),
		PingInterval:       DefaultPingInterval,
		MaxRuns:            DefaultMaxRuns,
		OfferCount:         DefaultOfferCount,
		CooldownFloor:      DefaultCooldownFloor,
		CatalogPath:        env("HORDE_CATALOG_PATH"),
		JournalDir:         env("HORDE_JOURNAL_DIR"),
		JournalMaxRuns:     DefaultJournalMaxRuns,
		JournalMaxAge:      DefaultJournalMaxAge,
		TokenSecret:        env("HORDE_TOKEN_SECRET"),
		TokenTTL:           DefaultTokenTTL,
		GRPCAuthMode:       GRPCAuthModeNone,
		GRPCSharedSecret:   env("HORDE_GRPC_SHARED_SECRET"),
		GRPCServerCertPath: env("HORDE_GRPC_TLS_CERT"),
		GRPCServerKeyPath:  env("HORDE_GRPC_TLS_KEY"),
		GRPCClientCAPath:   env("HORDE_GRPC_TLS_CLIENT_CA"),
		RunCreateWindow:    DefaultRunCreateWindow,
		RunCreateBurst:     DefaultRunCreateBurst,
		Logging: LoggingConfig{
			Level:      stringOr(env("HORDE_LOG_LEVEL"), DefaultLogLevel),
			Path:       stringOr(env("HORDE_LOG_PATH"), DefaultLogPath),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if raw := env("HORDE_GRPC_ADDR"); raw != "" {
		//1.- "off" disables the gRPC listener entirely.
		if strings.EqualFold(raw, "off") {
			cfg.GRPCAddress = ""
		} else {
			cfg.GRPCAddress = raw
		}
	}

	if raw := env("HORDE_PING_INTERVAL"); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			report("HORDE_PING_INTERVAL must be a positive duration, got %q", raw)
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := env("HORDE_MAX_RUNS"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			report("HORDE_MAX_RUNS must be a non-negative integer, got %q", raw)
		} else {
			cfg.MaxRuns = value
		}
	}

	if raw := env("HORDE_OFFER_COUNT"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			report("HORDE_OFFER_COUNT must be a positive integer, got %q", raw)
		} else {
			cfg.OfferCount = value
		}
	}

	if raw := env("HORDE_COOLDOWN_FLOOR"); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			report("HORDE_COOLDOWN_FLOOR must be a positive duration, got %q", raw)
		} else {
			cfg.CooldownFloor = duration
		}
	}

	if raw := env("HORDE_DEBUG"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			report("HORDE_DEBUG must be a boolean value, got %q", raw)
		} else {
			cfg.Debug = value
		}
	}

	if raw := env("HORDE_JOURNAL_MAX_RUNS"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			report("HORDE_JOURNAL_MAX_RUNS must be a non-negative integer, got %q", raw)
		} else {
			cfg.JournalMaxRuns = value
		}
	}

	if raw := env("HORDE_JOURNAL_MAX_AGE"); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			report("HORDE_JOURNAL_MAX_AGE must be a non-negative duration, got %q", raw)
		} else {
			cfg.JournalMaxAge = duration
		}
	}

	if raw := env("HORDE_TOKEN_TTL"); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			report("HORDE_TOKEN_TTL must be a positive duration, got %q", raw)
		} else {
			cfg.TokenTTL = duration
		}
	}

	if raw := env("HORDE_GRPC_AUTH_MODE"); raw != "" {
		mode := GRPCAuthMode(strings.ToLower(raw))
		switch mode {
		case GRPCAuthModeNone, GRPCAuthModeSharedSecret, GRPCAuthModeMTLS:
			cfg.GRPCAuthMode = mode
		default:
			report("HORDE_GRPC_AUTH_MODE must be one of none, shared_secret, mtls, got %q", raw)
		}
	}

	if raw := env("HORDE_RUN_CREATE_WINDOW"); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			report("HORDE_RUN_CREATE_WINDOW must be a positive duration, got %q", raw)
		} else {
			cfg.RunCreateWindow = duration
		}
	}

	if raw := env("HORDE_RUN_CREATE_BURST"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			report("HORDE_RUN_CREATE_BURST must be a positive integer, got %q", raw)
		} else {
			cfg.RunCreateBurst = value
		}
	}

	if raw := env("HORDE_LOG_MAX_SIZE_MB"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			report("HORDE_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw)
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := env("HORDE_LOG_MAX_BACKUPS"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			report("HORDE_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw)
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := env("HORDE_LOG_MAX_AGE_DAYS"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			report("HORDE_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw)
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := env("HORDE_LOG_COMPRESS"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			report("HORDE_LOG_COMPRESS must be a boolean value, got %q", raw)
		} else {
			cfg.Logging.Compress = value
		}
	}

	switch cfg.GRPCAuthMode {
	case GRPCAuthModeSharedSecret:
		if cfg.GRPCSharedSecret == "" {
			report("HORDE_GRPC_SHARED_SECRET is required when HORDE_GRPC_AUTH_MODE=shared_secret")
		}
	case GRPCAuthModeMTLS:
		if cfg.GRPCServerCertPath == "" || cfg.GRPCServerKeyPath == "" || cfg.GRPCClientCAPath == "" {
			report("HORDE_GRPC_TLS_CERT, HORDE_GRPC_TLS_KEY and HORDE_GRPC_TLS_CLIENT_CA are required when HORDE_GRPC_AUTH_MODE=mtls")
		}
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func stringOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
