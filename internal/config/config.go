// Package config assembles the runtime configuration from defaults, an
// optional JSON5 file, the environment and CLI flags, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Site
	BaseURL  string
	LoginURL string

	// Credentials
	Username string
	Password string

	// Storage
	StorageStatePath string
	DBPath           string

	// Browser
	Headless          bool
	Locale            string
	AcceptLanguage    string
	UserAgent         string
	Proxy             string
	ChromePath        string
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	SettleDelay       time.Duration

	// Crawl pacing
	PageDelayMax      time.Duration
	OrderDelayMax     time.Duration
	WindowSpanDays    int
	WindowOverlapDays int
	RateLimitRPS      float64
	RateLimitBurst    int
	RetryAttempts     int

	// Logging
	LogLevel string
	JSONLog  bool
	Quiet    bool
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	dataDir := DataDirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, DataDirName)
	}
	return &Config{
		BaseURL:           DefaultBaseURL,
		StorageStatePath:  filepath.Join(dataDir, DefaultStateFile),
		DBPath:            filepath.Join(dataDir, DefaultDBFile),
		Headless:          DefaultHeadless,
		Locale:            DefaultLocale,
		AcceptLanguage:    DefaultAcceptLanguage,
		UserAgent:         DefaultUserAgent,
		NavigationTimeout: DefaultNavigationTimeout,
		ElementTimeout:    DefaultElementTimeout,
		SettleDelay:       DefaultSettleDelay,
		PageDelayMax:      DefaultPageDelayMax,
		OrderDelayMax:     DefaultOrderDelayMax,
		WindowSpanDays:    DefaultWindowSpanDays,
		WindowOverlapDays: DefaultWindowOverlapDays,
		RateLimitRPS:      DefaultRateLimitRPS,
		RateLimitBurst:    DefaultRateLimitBurst,
		RetryAttempts:     DefaultRetryAttempts,
		LogLevel:          DefaultLogLevel,
		JSONLog:           DefaultJSONLog,
	}
}

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	path := flagString(cmd, "config")
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()
	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}

	if err := applyFlags(cfg, cmd); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.LoginURL == "" {
		cfg.LoginURL = cfg.BaseURL + "/Login"
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyFile merges a JSON5 file over cfg. Keys absent from the file keep
// their current value.
func applyFile(cfg *Config, path string) error {
	fc, err := readFile(path)
	if err != nil {
		return err
	}
	override, err := fc.toConfig()
	if err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge config file %s: %w", path, err)
	}
	fc.applyZeroable(cfg)
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	str("BASE_URL", &cfg.BaseURL)
	str("LOGIN_URL", &cfg.LoginURL)
	str("USERNAME", &cfg.Username)
	str("PASSWORD", &cfg.Password)
	str("STATE_PATH", &cfg.StorageStatePath)
	str("DB_PATH", &cfg.DBPath)
	str("USER_AGENT", &cfg.UserAgent)
	str("PROXY", &cfg.Proxy)
	str("CHROME_PATH", &cfg.ChromePath)
	str("LOG_LEVEL", &cfg.LogLevel)

	if v := getenv(EnvPrefix + "HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sHEADLESS %q: %w", EnvPrefix, v, err)
		}
		cfg.Headless = b
	}
	return nil
}

func applyFlags(cfg *Config, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}
	set := func(name string, dst *string) {
		if s := flagString(cmd, name); s != "" {
			*dst = s
		}
	}
	set("base-url", &cfg.BaseURL)
	set("db", &cfg.DBPath)
	set("state", &cfg.StorageStatePath)
	set("proxy", &cfg.Proxy)
	set("user-agent", &cfg.UserAgent)
	set("chrome-path", &cfg.ChromePath)

	if s := flagString(cmd, "timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", s, err)
		}
		cfg.NavigationTimeout = d
	}
	if flagString(cmd, "show-browser") == "true" {
		cfg.Headless = false
	}
	if flagString(cmd, "json") == "true" {
		cfg.JSONLog = true
	}
	if flagString(cmd, "verbose") == "true" {
		cfg.LogLevel = "debug"
	}
	if flagString(cmd, "quiet") == "true" {
		cfg.Quiet = true
	}
	return nil
}

func flagString(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}
