package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/titanous/json5"
)

// Duration accepts "45s"-style strings in the config file.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// fileConfig is the on-disk shape. Fields whose zero value is a valid
// setting are pointers so an explicit zero can be told apart from an
// absent key.
type fileConfig struct {
	BaseURL           string    `json:"baseUrl"`
	LoginURL          string    `json:"loginUrl"`
	Username          string    `json:"username"`
	Password          string    `json:"password"`
	StorageStatePath  string    `json:"storageStatePath"`
	DBPath            string    `json:"dbPath"`
	Headless          *bool     `json:"headless"`
	Locale            string    `json:"locale"`
	AcceptLanguage    string    `json:"acceptLanguage"`
	UserAgent         string    `json:"userAgent"`
	Proxy             string    `json:"proxy"`
	ChromePath        string    `json:"chromePath"`
	NavigationTimeout Duration  `json:"navigationTimeout"`
	ElementTimeout    Duration  `json:"elementTimeout"`
	SettleDelay       *Duration `json:"settleDelay"`
	PageDelayMax      *Duration `json:"pageDelayMax"`
	OrderDelayMax     *Duration `json:"orderDelayMax"`
	WindowSpanDays    int       `json:"windowSpanDays"`
	WindowOverlapDays *int      `json:"windowOverlapDays"`
	RateLimitRPS      float64   `json:"rateLimitRps"`
	RateLimitBurst    int       `json:"rateLimitBurst"`
	RetryAttempts     int       `json:"retryAttempts"`
	LogLevel          string    `json:"logLevel"`
	JSONLog           *bool     `json:"jsonLog"`
}

func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := json5.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

func (fc *fileConfig) toConfig() (Config, error) {
	if fc.WindowSpanDays < 0 || (fc.WindowOverlapDays != nil && *fc.WindowOverlapDays < 0) {
		return Config{}, fmt.Errorf("window days must not be negative")
	}
	return Config{
		BaseURL:           strings.TrimRight(fc.BaseURL, "/"),
		LoginURL:          fc.LoginURL,
		Username:          fc.Username,
		Password:          fc.Password,
		StorageStatePath:  fc.StorageStatePath,
		DBPath:            fc.DBPath,
		Locale:            fc.Locale,
		AcceptLanguage:    fc.AcceptLanguage,
		UserAgent:         fc.UserAgent,
		Proxy:             fc.Proxy,
		ChromePath:        fc.ChromePath,
		NavigationTimeout: time.Duration(fc.NavigationTimeout),
		ElementTimeout:    time.Duration(fc.ElementTimeout),
		WindowSpanDays:    fc.WindowSpanDays,
		RateLimitRPS:      fc.RateLimitRPS,
		RateLimitBurst:    fc.RateLimitBurst,
		RetryAttempts:     fc.RetryAttempts,
		LogLevel:          fc.LogLevel,
	}, nil
}

// applyZeroable copies the fields mergo would skip when they hold zero.
func (fc *fileConfig) applyZeroable(cfg *Config) {
	if fc.Headless != nil {
		cfg.Headless = *fc.Headless
	}
	if fc.JSONLog != nil {
		cfg.JSONLog = *fc.JSONLog
	}
	if fc.SettleDelay != nil {
		cfg.SettleDelay = time.Duration(*fc.SettleDelay)
	}
	if fc.PageDelayMax != nil {
		cfg.PageDelayMax = time.Duration(*fc.PageDelayMax)
	}
	if fc.OrderDelayMax != nil {
		cfg.OrderDelayMax = time.Duration(*fc.OrderDelayMax)
	}
	if fc.WindowOverlapDays != nil {
		cfg.WindowOverlapDays = *fc.WindowOverlapDays
	}
}
