// Package config loads Calendar block engine configuration from the
// environment, layered over an optional YAML file of cadence/threshold
// defaults (CONFIG_FILE) — the same two-layer shape as the teacher's
// primary env Config plus its separate YAML anchor settings file. A flat
// struct, required variables with no defaults, and a Validate pass run
// once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Calendar block engine.
type Config struct {
	// Identity
	StackID     string // opaque id identifying this deployment, stamped on every block
	ValidatorID string

	// Database (Block Store, Node Registry, audit log)
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	// Redis (Lock Service, Leader Elector)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS (Message Bus Adapter)
	NATSURL         string
	NATSStreamName  string
	NATSDurableName string

	// Signer
	Ed25519KeyPath string

	// HTTP surfaces this process exposes: HealthAddr serves /health plus
	// the Node Registry and proof-retrieval routes; MetricsAddr serves
	// /metrics.
	HealthAddr  string
	MetricsAddr string

	// Calendar Writer cadence, loaded from CALENDAR_TICK_SECONDS. The
	// Calendar Writer does not read it and always ticks every 10s.
	CalendarTickInterval time.Duration

	// Anchor Engine cadence
	AnchorMinute1 int // e.g. 0
	AnchorMinute2 int // e.g. 30

	// Audit Engine cadence
	ChallengeInterval    time.Duration
	AuditRoundInterval   time.Duration
	AuditRetentionWindow time.Duration
	AuditPruneBatchSize  int

	// Node Registry
	RegistrationCap      int
	MinBalanceGrains      int64
	MinNewNodeVersion     int
	MinExistingNodeVersion int

	// External collaborators
	TokenServiceURL    string
	BalanceServiceURL  string
	HTTPClientTimeout  time.Duration

	LogLevel string
}

// Load reads configuration from environment variables, falling back to
// CONFIG_FILE's YAML cadence/threshold values before the hardcoded
// defaults below when an env var is unset.
func Load() (*Config, error) {
	fc, err := loadFileConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StackID:     os.Getenv("STACK_ID"),
		ValidatorID: os.Getenv("VALIDATOR_ID"),

		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DatabaseMaxConns:    envInt("DATABASE_MAX_CONNS", 20),
		DatabaseMinConns:    envInt("DATABASE_MIN_CONNS", 2),
		DatabaseMaxIdleTime: envInt("DATABASE_MAX_IDLE_SECONDS", 300),
		DatabaseMaxLifetime: envInt("DATABASE_MAX_LIFETIME_SECONDS", 3600),

		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		NATSURL:         envOr("NATS_URL", "nats://localhost:4222"),
		NATSStreamName:  envOr("NATS_STREAM_NAME", "CALENDAR"),
		NATSDurableName: envOr("NATS_DURABLE_NAME", "calendar-core"),

		Ed25519KeyPath: os.Getenv("ED25519_KEY_PATH"),

		HealthAddr:  envOr("HEALTH_ADDR", ":8081"),
		MetricsAddr: envOr("METRICS_ADDR", ":9090"),

		CalendarTickInterval: time.Duration(envIntF("CALENDAR_TICK_SECONDS", fc.Calendar.TickSeconds, 10)) * time.Second,

		AnchorMinute1: envIntF("ANCHOR_MINUTE_1", fc.Anchor.Minute1, 0),
		AnchorMinute2: envIntF("ANCHOR_MINUTE_2", fc.Anchor.Minute2, 30),

		ChallengeInterval:    time.Duration(envIntF("CHALLENGE_INTERVAL_SECONDS", fc.Audit.ChallengeIntervalSeconds, 3600)) * time.Second,
		AuditRoundInterval:   time.Duration(envIntF("AUDIT_ROUND_INTERVAL_SECONDS", fc.Audit.RoundIntervalSeconds, 3600)) * time.Second,
		AuditRetentionWindow: time.Duration(envIntF("AUDIT_RETENTION_HOURS", fc.Audit.RetentionHours, 6)) * time.Hour,
		AuditPruneBatchSize:  envIntF("AUDIT_PRUNE_BATCH_SIZE", fc.Audit.PruneBatchSize, 500),

		RegistrationCap:        envIntF("REGISTRATION_CAP", fc.Registry.Cap, 1000),
		MinBalanceGrains:       envInt64F("MIN_BALANCE_GRAINS", fc.Registry.MinBalanceGrains, 0),
		MinNewNodeVersion:      envIntF("MIN_NEW_NODE_VERSION", fc.Registry.MinNewNodeVersion, 1),
		MinExistingNodeVersion: envIntF("MIN_EXISTING_NODE_VERSION", fc.Registry.MinExistingVersion, 1),

		TokenServiceURL:   os.Getenv("TOKEN_SERVICE_URL"),
		BalanceServiceURL: os.Getenv("BALANCE_SERVICE_URL"),
		HTTPClientTimeout: time.Duration(envInt("HTTP_CLIENT_TIMEOUT_SECONDS", 10)) * time.Second,

		LogLevel: envOr("LOG_LEVEL", "info"),
	}

	return cfg, cfg.Validate()
}

// Validate ensures required configuration is present.
func (c *Config) Validate() error {
	var missing []string
	if c.StackID == "" {
		missing = append(missing, "STACK_ID")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Ed25519KeyPath == "" {
		missing = append(missing, "ED25519_KEY_PATH")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required variables: %s", strings.Join(missing, ", "))
	}
	if c.RegistrationCap <= 0 {
		return fmt.Errorf("config: REGISTRATION_CAP must be positive, got %d", c.RegistrationCap)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// envIntF resolves key from the environment, falling back to fromFile
// (a CONFIG_FILE YAML value) when the env var is unset, and finally to
// fallback when fromFile is also zero.
func envIntF(key string, fromFile, fallback int) int {
	if fromFile != 0 {
		fallback = fromFile
	}
	return envInt(key, fallback)
}

func envInt64F(key string, fromFile, fallback int64) int64 {
	if fromFile != 0 {
		fallback = fromFile
	}
	return envInt64(key, fallback)
}
