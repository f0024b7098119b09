// Package config provides application configuration loaded from an optional
// TOML file, a .env file and environment variables, in increasing priority.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        `toml:"port"`                   // e.g. "8080"
	BackofficePort       string        `toml:"backoffice_port"`        // e.g. "8081"
	Env                  string        `toml:"env"`                    // "development" | "production"
	ReadTimeout          time.Duration `toml:"read_timeout"`           // default 10s
	WriteTimeout         time.Duration `toml:"write_timeout"`          // default 10s
	BackofficeAllowedIPs string        `toml:"backoffice_allowed_ips"` // comma-separated IPs; "" = allow all
	CORSOrigins          []string      `toml:"cors_origins"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`    // default 25
	MaxIdleConns    int           `toml:"max_idle_conns"`    // default 10
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"` // default 5m
}

// JWTConfig holds JWT signing and wallet-login settings.
type JWTConfig struct {
	AccessSecret  string        `toml:"access_secret"`  // must be set
	RefreshSecret string        `toml:"refresh_secret"` // must be set
	AccessTTL     time.Duration `toml:"access_ttl"`     // default 15m
	RefreshTTL    time.Duration `toml:"refresh_ttl"`    // default 720h (30 days)
	ChallengeTTL  time.Duration `toml:"challenge_ttl"`  // default 5m
}

// RedisConfig holds the optional Redis connection used for cross-instance
// match locks and event fan-out. An empty Addr disables Redis.
type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	EventChannel string `toml:"event_channel"`
}

// LedgerConfig holds settlement-engine settings.
type LedgerConfig struct {
	Name      string        `toml:"name"`       // reported by /api/info
	Driver    string        `toml:"driver"`     // "postgres" | "memory"
	Symbol    string        `toml:"symbol"`     // display symbol of the asset
	Decimals  int32         `toml:"decimals"`   // base units per display unit = 10^Decimals
	LockTTL   time.Duration `toml:"lock_ttl"`   // expiry of a match lock
	ServerKey string        `toml:"server_key"` // hex secp256k1 key of the server identity
}

// SchedulerConfig holds background job intervals.
type SchedulerConfig struct {
	DeadlineInterval time.Duration `toml:"deadline_interval"` // default 5s
}

// AdminConfig lists the identities granted the admin role at login.
type AdminConfig struct {
	Addresses []string `toml:"addresses"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	DB        DBConfig        `toml:"db"`
	JWT       JWTConfig       `toml:"jwt"`
	Redis     RedisConfig     `toml:"redis"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Admin     AdminConfig     `toml:"admin"`
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// UsesMemoryStore reports whether the ledger runs on the in-process store.
func (c *Config) UsesMemoryStore() bool {
	return c.Ledger.Driver == "memory"
}

// IsAdmin reports whether addr (hex, any case) is configured as an admin.
func (c *Config) IsAdmin(addr string) bool {
	for _, a := range c.Admin.Addresses {
		if strings.EqualFold(a, addr) {
			return true
		}
	}
	return false
}

// Validate checks that all required configuration values are present and valid.
// Every problem is reported, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	// JWT secrets are mandatory
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET must be set"))
	}

	switch c.Ledger.Driver {
	case "postgres":
		// In production, DB DSN must be explicit
		if c.IsProd() && c.DB.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
		}
	case "memory":
		if c.IsProd() {
			errs = append(errs, errors.New("LEDGER_DRIVER=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_DRIVER must be postgres or memory, got %q", c.Ledger.Driver))
	}

	if c.Ledger.Decimals < 0 || c.Ledger.Decimals > 18 {
		errs = append(errs, fmt.Errorf("LEDGER_DECIMALS must be between 0 and 18, got %d", c.Ledger.Decimals))
	}
	if c.Ledger.LockTTL <= 0 {
		errs = append(errs, errors.New("LEDGER_LOCK_TTL must be positive"))
	}
	if c.Scheduler.DeadlineInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_DEADLINE_INTERVAL must be positive"))
	}
	if c.JWT.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("JWT_CHALLENGE_TTL must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once.
// Panics if loading fails; call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = Load(os.Getenv("CONFIG_FILE"))
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Loader
// ──────────────────────────────────────────────────────────────────────────────

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			BackofficePort: "8081",
			Env:            "development",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			CORSOrigins:    []string{"http://localhost:5173", "http://localhost:8080"},
		},
		DB: DBConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		JWT: JWTConfig{
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   30 * 24 * time.Hour,
			ChallengeTTL: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			EventChannel: "duel:events",
		},
		Ledger: LedgerConfig{
			Name:     "duel-escrow",
			Driver:   "postgres",
			Symbol:   "SOL",
			Decimals: 9,
			LockTTL:  5 * time.Second,
		},
		Scheduler: SchedulerConfig{
			DeadlineInterval: 5 * time.Second,
		},
	}
}

// Load builds a Config from the defaults, the TOML file at path (skipped when
// path is empty), a .env file in the working directory if present, and the
// process environment. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overwrites every field whose environment variable is set.
func applyEnv(cfg *Config) error {
	var err error

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.BackofficePort = getEnv("BACKOFFICE_PORT", cfg.Server.BackofficePort)
	cfg.Server.Env = getEnv("ENVIRONMENT", cfg.Server.Env)
	cfg.Server.ReadTimeout = getDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.BackofficeAllowedIPs = getEnv("BACKOFFICE_ALLOWED_IPS", cfg.Server.BackofficeAllowedIPs)
	cfg.Server.CORSOrigins = getList("CORS_ORIGINS", cfg.Server.CORSOrigins)

	// ── Database ──────────────────────────────────────────────────────────────
	cfg.DB.DSN = getEnv("DATABASE_DSN", cfg.DB.DSN)
	if cfg.DB.DSN == "" {
		// Build DSN from individual components for convenience in dev
		cfg.DB.DSN = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "duel_escrow"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}
	if cfg.DB.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns); err != nil {
		return fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	if cfg.DB.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", cfg.DB.MaxIdleConns); err != nil {
		return fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.DB.ConnMaxLifetime = getDuration("DB_CONN_MAX_LIFETIME", cfg.DB.ConnMaxLifetime)

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT.AccessSecret = getEnv("JWT_ACCESS_SECRET", cfg.JWT.AccessSecret)
	cfg.JWT.RefreshSecret = getEnv("JWT_REFRESH_SECRET", cfg.JWT.RefreshSecret)
	cfg.JWT.AccessTTL = getDuration("JWT_ACCESS_TTL", cfg.JWT.AccessTTL)
	cfg.JWT.RefreshTTL = getDuration("JWT_REFRESH_TTL", cfg.JWT.RefreshTTL)
	cfg.JWT.ChallengeTTL = getDuration("JWT_CHALLENGE_TTL", cfg.JWT.ChallengeTTL)

	// ── Redis ─────────────────────────────────────────────────────────────────
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = getInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return fmt.Errorf("REDIS_DB: %w", err)
	}
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", cfg.Redis.PoolSize); err != nil {
		return fmt.Errorf("REDIS_POOL_SIZE: %w", err)
	}
	cfg.Redis.EventChannel = getEnv("REDIS_EVENT_CHANNEL", cfg.Redis.EventChannel)

	// ── Ledger ────────────────────────────────────────────────────────────────
	cfg.Ledger.Name = getEnv("LEDGER_NAME", cfg.Ledger.Name)
	cfg.Ledger.Driver = getEnv("LEDGER_DRIVER", cfg.Ledger.Driver)
	cfg.Ledger.Symbol = getEnv("LEDGER_SYMBOL", cfg.Ledger.Symbol)
	decimals, err := getInt("LEDGER_DECIMALS", int(cfg.Ledger.Decimals))
	if err != nil {
		return fmt.Errorf("LEDGER_DECIMALS: %w", err)
	}
	cfg.Ledger.Decimals = int32(decimals)
	cfg.Ledger.LockTTL = getDuration("LEDGER_LOCK_TTL", cfg.Ledger.LockTTL)
	cfg.Ledger.ServerKey = getEnv("SERVER_PRIVATE_KEY", cfg.Ledger.ServerKey)

	// ── Scheduler / Admin ─────────────────────────────────────────────────────
	cfg.Scheduler.DeadlineInterval = getDuration("SCHEDULER_DEADLINE_INTERVAL", cfg.Scheduler.DeadlineInterval)
	cfg.Admin.Addresses = getList("ADMIN_ADDRESSES", cfg.Admin.Addresses)

	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or unparsable.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getList splits a comma-separated env var, dropping blanks.
func getList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
