package config

import (
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
)

func validate(c *Config) error {
	for name, raw := range map[string]string{"base URL": c.BaseURL, "login URL": c.LoginURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
		}
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.StorageStatePath == "" {
		return fmt.Errorf("session state path must not be empty")
	}
	if c.NavigationTimeout <= 0 || c.ElementTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if c.SettleDelay < 0 || c.PageDelayMax < 0 || c.OrderDelayMax < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.WindowOverlapDays < 0 || c.WindowSpanDays <= c.WindowOverlapDays {
		return fmt.Errorf("window span (%d days) must exceed overlap (%d days)", c.WindowSpanDays, c.WindowOverlapDays)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be > 0")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be >= 1")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
