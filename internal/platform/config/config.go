package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr               string        `yaml:"addr"`
	DatabaseURL        string        `yaml:"database_url"`
	JWTSecret          string        `yaml:"jwt_secret"`
	Environment        string        `yaml:"environment"`
	RunMigrations      bool          `yaml:"run_migrations"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	// TrustedProxies lists peer addresses or CIDR ranges whose
	// X-Forwarded-For header is believed by the upload rate limiter.
	TrustedProxies     []string      `yaml:"trusted_proxies"`
	MetricsEnabled     bool          `yaml:"metrics_enabled"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	DataDir             string `yaml:"data_dir"`
	RosterPath          string `yaml:"roster_path"`
	RosterOrderPath     string `yaml:"roster_order_path"`
	NameOverridesPath   string `yaml:"name_overrides_path"`
	OvertimePolicyPath  string `yaml:"overtime_policy_path"`
	ColumnAliasesPath   string `yaml:"column_aliases_path"`
	// OvertimePolicy names the default policy; empty defers to the policy file.
	OvertimePolicy      string `yaml:"overtime_policy"`
	RatePolicy          string `yaml:"rate_policy"`
	SheetName           string `yaml:"sheet_name"`
	HeaderScanRows      int    `yaml:"header_scan_rows"`
	WBSClientID         string `yaml:"wbs_client_id"`
	WBSClientName       string `yaml:"wbs_client_name"`
	WBSPayFrequency     string `yaml:"wbs_pay_frequency"`
	RunHistoryQueueSize int    `yaml:"run_history_queue_size"`
}

// Defaults returns the configuration used when neither a config file nor an
// environment variable sets a value.
func Defaults() Config {
	return Config{
		Addr:                ":8080",
		Environment:         "development",
		RunMigrations:       true,
		MaxBodyBytes:        16 << 20,
		RateLimitPerMinute:  60,
		MetricsEnabled:      true,
		ShutdownTimeout:     10 * time.Second,
		LogLevel:            "info",
		LogFormat:           "text",
		DataDir:             "data",
		RatePolicy:          "mode",
		HeaderScanRows:      80,
		WBSClientID:         "055269",
		WBSClientName:       "Sierra Roofing and Solar Inc",
		WBSPayFrequency:     "W",
		RunHistoryQueueSize: 128,
	}
}

// Load reads the optional YAML file named by CONFIG_PATH (default
// config.yaml) and then applies environment overrides.
func Load() (Config, error) {
	cfg := Defaults()

	path := getEnv("CONFIG_PATH", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.Addr = getEnv("APP_ADDR", cfg.Addr)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.Environment = getEnv("APP_ENV", cfg.Environment)
	cfg.RunMigrations = getEnvBool("RUN_MIGRATIONS", cfg.RunMigrations)
	cfg.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.TrustedProxies = getEnvList("TRUSTED_PROXIES", cfg.TrustedProxies)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.RosterPath = getEnv("ROSTER_PATH", cfg.RosterPath)
	cfg.RosterOrderPath = getEnv("ROSTER_ORDER_PATH", cfg.RosterOrderPath)
	cfg.NameOverridesPath = getEnv("NAME_OVERRIDES_PATH", cfg.NameOverridesPath)
	cfg.OvertimePolicyPath = getEnv("OVERTIME_POLICY_PATH", cfg.OvertimePolicyPath)
	cfg.ColumnAliasesPath = getEnv("COLUMN_ALIASES_PATH", cfg.ColumnAliasesPath)
	cfg.OvertimePolicy = getEnv("OVERTIME_POLICY", cfg.OvertimePolicy)
	cfg.RatePolicy = getEnv("RATE_POLICY", cfg.RatePolicy)
	cfg.SheetName = getEnv("SHEET_NAME", cfg.SheetName)
	cfg.HeaderScanRows = getEnvInt("HEADER_SCAN_ROWS", cfg.HeaderScanRows)
	cfg.WBSClientID = getEnv("WBS_CLIENT_ID", cfg.WBSClientID)
	cfg.WBSClientName = getEnv("WBS_CLIENT_NAME", cfg.WBSClientName)
	cfg.WBSPayFrequency = getEnv("WBS_PAY_FREQUENCY", cfg.WBSPayFrequency)
	cfg.RunHistoryQueueSize = getEnvInt("RUN_HISTORY_QUEUE_SIZE", cfg.RunHistoryQueueSize)

	cfg.fillDataPaths()
	return cfg, nil
}

// fillDataPaths points unset table paths at their conventional file names
// inside DataDir.
func (c *Config) fillDataPaths() {
	join := func(name string) string {
		if c.DataDir == "" {
			return name
		}
		return strings.TrimRight(c.DataDir, "/") + "/" + name
	}
	if c.RosterPath == "" {
		c.RosterPath = join("roster.csv")
	}
	if c.RosterOrderPath == "" {
		c.RosterOrderPath = join("roster_order.txt")
	}
	if c.NameOverridesPath == "" {
		c.NameOverridesPath = join("name_overrides.yaml")
	}
	if c.OvertimePolicyPath == "" {
		c.OvertimePolicyPath = join("overtime_policies.yaml")
	}
	if c.ColumnAliasesPath == "" {
		c.ColumnAliasesPath = join("column_aliases.yaml")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.HeaderScanRows <= 0 {
		return fmt.Errorf("HEADER_SCAN_ROWS must be positive")
	}
	if strings.TrimSpace(c.RosterPath) == "" {
		return fmt.Errorf("ROSTER_PATH is required")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is treated as a
// single-host range.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid range %q", raw)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q", raw)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
