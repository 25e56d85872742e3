// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/cmhistory/internal/auth"
	"github.com/law-makers/cmhistory/internal/config"
	"github.com/law-makers/cmhistory/internal/crawler"
	"github.com/law-makers/cmhistory/internal/ratelimit"
	"github.com/law-makers/cmhistory/internal/retry"
	"github.com/law-makers/cmhistory/internal/session"
	"github.com/law-makers/cmhistory/internal/store"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// The browser session is started only by commands that need the site.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config  *config.Config
	Logger  *zerolog.Logger
	Store   *store.Store
	Limiter *ratelimit.DomainLimiter
	Pacer   ratelimit.Pacer
	Site    crawler.Site

	newDriver session.DriverFactory
	sessMu    sync.Mutex
	session   *session.Manager
	crawler   *crawler.Crawler
	startTime time.Time
}

// Option customizes an Application.
type Option func(*Application)

// WithDriverFactory replaces the Chrome driver, e.g. with a fake in tests.
func WithDriverFactory(f session.DriverFactory) Option {
	return func(a *Application) { a.newDriver = f }
}

// WithPacer replaces the human pacer.
func WithPacer(p ratelimit.Pacer) Option {
	return func(a *Application) { a.Pacer = p }
}

// New creates an Application: it configures logging and opens the store.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := setupLogging(cfg)

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", cfg.DBPath).Msg("Store opened")

	limiter := ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	a := &Application{
		Config:  cfg,
		Logger:  &logger,
		Store:   st,
		Limiter: limiter,
		Pacer:   ratelimit.NewHumanPacer(limiter),
		Site:    crawler.NewSite(cfg.BaseURL),
		newDriver: session.NewChromeFactory(session.ChromeOptions{
			Headless:          cfg.Headless,
			UserAgent:         cfg.UserAgent,
			Locale:            cfg.Locale,
			AcceptLanguage:    cfg.AcceptLanguage,
			Proxy:             cfg.Proxy,
			ChromePath:        cfg.ChromePath,
			NavigationTimeout: cfg.NavigationTimeout,
		}),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}

	logger.Info().Msg("Application initialized successfully")
	return a, nil
}

func setupLogging(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.ErrorLevel
	}
	if cfg.Quiet {
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.JSONLog {
		w = os.Stderr
	} else {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	log.Logger = log.Output(w).With().Timestamp().Logger()
	return log.Logger
}

// EnsureSession starts the browser and logs in if that has not happened yet.
func (a *Application) EnsureSession(ctx context.Context) (*session.Manager, error) {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()

	if a.session != nil && a.session.State() == session.StateAuthenticated {
		return a.session, nil
	}

	if a.session == nil {
		password, err := auth.ResolvePassword(a.Config.Username, a.Config.Password)
		if err != nil && !errors.Is(err, auth.ErrNoPassword) {
			a.Logger.Warn().Err(err).Msg("Keyring lookup failed")
		}
		m, err := session.NewManager(session.Options{
			HomeURL:        a.Site.Home(),
			LoginURL:       a.Config.LoginURL,
			Username:       a.Config.Username,
			Password:       password,
			StatePath:      a.Config.StorageStatePath,
			ElementTimeout: a.Config.ElementTimeout,
			SettleDelay:    a.Config.SettleDelay,
		}, a.newDriver, a.Pacer)
		if err != nil {
			return nil, err
		}
		a.session = m
	}

	if err := a.session.Init(ctx); err != nil {
		return nil, err
	}
	if err := a.session.EnsureLoggedIn(ctx); err != nil {
		return nil, err
	}
	return a.session, nil
}

// Crawler returns the crawler, logging in first when needed.
func (a *Application) Crawler(ctx context.Context) (*crawler.Crawler, error) {
	m, err := a.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	if a.crawler != nil {
		return a.crawler, nil
	}

	policy := crawler.Policy{
		Span:          time.Duration(a.Config.WindowSpanDays) * 24 * time.Hour,
		Overlap:       time.Duration(a.Config.WindowOverlapDays) * 24 * time.Hour,
		PageDelayMax:  a.Config.PageDelayMax,
		OrderDelayMax: a.Config.OrderDelayMax,
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = a.Config.RetryAttempts

	c, err := crawler.New(retryingFetcher{next: m, cfg: retryCfg}, a.Store, a.Site, a.Pacer, policy)
	if err != nil {
		return nil, err
	}
	a.crawler = c
	return c, nil
}

// retryingFetcher re-runs failed page loads according to cfg.
type retryingFetcher struct {
	next crawler.Fetcher
	cfg  retry.Config
}

func (f retryingFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var html string
	err := retry.Do(ctx, f.cfg, func(ctx context.Context) error {
		var err error
		html, err = f.next.Fetch(ctx, url)
		return err
	})
	return html, err
}

// Close gracefully shuts down the browser and the store.
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Info().Msg("Shutting down application")

	a.sessMu.Lock()
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser session")
		}
	}
	a.sessMu.Unlock()

	var err error
	if a.Store != nil {
		if err = a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing store")
		}
	}

	a.Logger.Info().Dur("uptime", time.Since(a.startTime)).Msg("Application shutdown complete")
	return err
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
