// Package session owns the single authenticated browser session used to
// read the marketplace.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/cmhistory/internal/errs"
	"github.com/law-makers/cmhistory/internal/ratelimit"
)

// State is the lifecycle position of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateAuthenticated
	StateLoginRequired
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateAuthenticated:
		return "authenticated"
	case StateLoginRequired:
		return "login-required"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// LoginSelectors locate the login form.
type LoginSelectors struct {
	Username string
	Password string
	Submit   string
}

// DefaultLoginSelectors match the marketplace login form.
var DefaultLoginSelectors = LoginSelectors{
	Username: "input[name='username']",
	Password: "input[name='userPassword']",
	Submit:   "input[type='submit']",
}

// Options configures a Manager.
type Options struct {
	HomeURL   string
	LoginURL  string
	Username  string
	Password  string
	StatePath string
	Selectors LoginSelectors

	// ElementTimeout bounds each wait for a login form element.
	ElementTimeout time.Duration
	// LoginCheckTimeout bounds the probe for the login form on the home page.
	LoginCheckTimeout time.Duration
	// SettleDelay follows every navigation.
	SettleDelay time.Duration
	// PostSubmitDelay follows the login submission.
	PostSubmitDelay time.Duration
	// SubmitJitter bounds the random pause before submitting the form.
	SubmitJitter time.Duration
}

func missingCredentials() error {
	return errs.New(errs.CodeConfig, "username and password are required", nil)
}

func (o *Options) hasCredentials() bool { return o.Username != "" && o.Password != "" }

func (o *Options) applyDefaults() {
	if o.Selectors == (LoginSelectors{}) {
		o.Selectors = DefaultLoginSelectors
	}
	if o.ElementTimeout <= 0 {
		o.ElementTimeout = 10 * time.Second
	}
	if o.LoginCheckTimeout <= 0 {
		o.LoginCheckTimeout = 2 * time.Second
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.PostSubmitDelay < 0 {
		o.PostSubmitDelay = 0
	}
	if o.SubmitJitter <= 0 {
		o.SubmitJitter = time.Second
	}
}

// Manager drives one browser session through
// Uninitialized -> Ready -> Authenticated | LoginRequired -> Closed.
type Manager struct {
	opts      Options
	newDriver DriverFactory
	pacer     ratelimit.Pacer
	file      *StateFile
	sleep     func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	driver Driver
	state  State
}

// NewManager validates opts and returns an uninitialized Manager.
// Missing URLs are configuration errors. Missing credentials are one only
// when no session blob exists, since a stored session skips the login.
func NewManager(opts Options, factory DriverFactory, pacer ratelimit.Pacer) (*Manager, error) {
	file := NewStateFile(opts.StatePath)
	switch {
	case opts.HomeURL == "":
		return nil, errs.New(errs.CodeConfig, "home URL is required", nil)
	case opts.LoginURL == "":
		return nil, errs.New(errs.CodeConfig, "login URL is required", nil)
	case opts.StatePath == "":
		return nil, errs.New(errs.CodeConfig, "session state path is required", nil)
	case !opts.hasCredentials() && !file.Exists():
		return nil, missingCredentials()
	case factory == nil:
		return nil, errs.New(errs.CodeConfig, "browser driver factory is required", nil)
	}
	if pacer == nil {
		pacer = ratelimit.NoopPacer{}
	}
	opts.applyDefaults()

	return &Manager{
		opts:      opts,
		newDriver: factory,
		pacer:     pacer,
		file:      file,
		sleep:     sleepCtx,
	}, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StateFile exposes the session blob location.
func (m *Manager) StateFile() *StateFile { return m.file }

// Init starts the browser, restoring the persisted blob when one exists.
// Calling it again on a live session does nothing.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateClosed:
		return errs.ErrClosed
	case StateUninitialized:
	default:
		return nil
	}

	driver, err := m.newDriver(ctx)
	if err != nil {
		return errs.New(errs.CodeSession, "failed to start browser", err)
	}

	st, err := m.file.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", m.file.Path()).Msg("Discarding unreadable session state")
		if derr := m.file.Delete(); derr != nil {
			log.Warn().Err(derr).Msg("Failed to delete session state")
		}
		st = nil
	}
	if st != nil {
		if err := driver.ImportState(ctx, st); err != nil {
			driver.Close()
			return errs.New(errs.CodeSession, "failed to restore session state", err)
		}
		log.Debug().Int("cookies", len(st.Cookies)).Msg("Session state restored")
	}

	m.driver = driver
	m.state = StateReady
	return nil
}

// EnsureLoggedIn makes the session authenticated. A persisted blob is
// trusted without a login; the home page is then probed for the login
// form, and a stale blob is discarded and the login performed once more.
// A second failure is final.
func (m *Manager) EnsureLoggedIn(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLive(); err != nil {
		return err
	}

	if !m.file.Exists() {
		if err := m.login(ctx); err != nil {
			m.state = StateLoginRequired
			return err
		}
	} else {
		log.Debug().Str("path", m.file.Path()).Msg("Session state present, skipping login")
	}

	stale, err := m.loginFormOnHome(ctx)
	if err != nil {
		return err
	}
	if stale {
		log.Warn().Msg("Login form still present, discarding session state and logging in again")
		if err := m.file.Delete(); err != nil {
			return errs.New(errs.CodeSession, "failed to delete stale session state", err)
		}
		if err := m.driver.ClearState(ctx); err != nil {
			return errs.New(errs.CodeSession, "failed to clear browser state", err)
		}
		if err := m.login(ctx); err != nil {
			m.state = StateLoginRequired
			return err
		}
		if stale, err = m.loginFormOnHome(ctx); err != nil {
			return err
		}
		if stale {
			m.state = StateLoginRequired
			return errs.New(errs.CodeSession, "login still required after retry", errs.ErrLoginRequired)
		}
	}

	m.state = StateAuthenticated
	log.Info().Msg("Session authenticated")
	return nil
}

// Fetch navigates to url and returns the rendered HTML.
func (m *Manager) Fetch(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireAuthenticated(); err != nil {
		return "", err
	}
	if err := m.navigate(ctx, url); err != nil {
		return "", err
	}
	html, err := m.driver.HTML(ctx)
	if err != nil {
		return "", navigationError("read page "+url, err)
	}
	return html, nil
}

// Navigate loads url without reading it back.
func (m *Manager) Navigate(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireAuthenticated(); err != nil {
		return err
	}
	return m.navigate(ctx, url)
}

// Close releases the browser. It is safe to call in any state, repeatedly.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return nil
	}
	m.state = StateClosed
	if m.driver == nil {
		return nil
	}
	err := m.driver.Close()
	m.driver = nil
	return err
}

func (m *Manager) requireLive() error {
	switch m.state {
	case StateUninitialized:
		return errs.ErrUninitialized
	case StateClosed:
		return errs.ErrClosed
	}
	return nil
}

func (m *Manager) requireAuthenticated() error {
	if err := m.requireLive(); err != nil {
		return err
	}
	if m.state != StateAuthenticated {
		return errs.New(errs.CodeSession, "session is not authenticated", nil).WithDetail("state", m.state.String())
	}
	return nil
}

func (m *Manager) navigate(ctx context.Context, url string) error {
	log.Debug().Str("url", url).Msg("Navigating")
	if err := m.driver.Navigate(ctx, url); err != nil {
		return navigationError("navigate to "+url, err)
	}
	return m.sleep(ctx, m.opts.SettleDelay)
}

// login fills and submits the login form, then persists the resulting state.
func (m *Manager) login(ctx context.Context) error {
	if !m.opts.hasCredentials() {
		return missingCredentials()
	}
	sel := m.opts.Selectors
	log.Info().Str("url", m.opts.LoginURL).Msg("Logging in")

	if err := m.driver.Navigate(ctx, m.opts.LoginURL); err != nil {
		return navigationError("open login page", err)
	}
	for _, s := range []string{sel.Username, sel.Password, sel.Submit} {
		if err := m.driver.WaitVisible(ctx, s, m.opts.ElementTimeout); err != nil {
			return errs.New(errs.CodeSession, "login form not found", err).WithDetail("selector", s)
		}
	}
	if err := m.driver.Type(ctx, sel.Username, m.opts.Username); err != nil {
		return errs.New(errs.CodeSession, "failed to fill username", err)
	}
	if err := m.driver.Type(ctx, sel.Password, m.opts.Password); err != nil {
		return errs.New(errs.CodeSession, "failed to fill password", err)
	}
	if err := m.pacer.Wait(ctx, m.opts.LoginURL, m.opts.SubmitJitter); err != nil {
		return err
	}
	if err := m.driver.Submit(ctx, sel.Submit); err != nil {
		return errs.New(errs.CodeSession, "failed to submit login form", err)
	}
	if err := m.driver.WaitSettled(ctx); err != nil {
		return navigationError("wait for login response", err)
	}
	if err := m.sleep(ctx, m.opts.PostSubmitDelay); err != nil {
		return err
	}

	st, err := m.driver.ExportState(ctx)
	if err != nil {
		return errs.New(errs.CodeSession, "failed to export session state", err)
	}
	if err := m.file.Save(st); err != nil {
		return errs.New(errs.CodeSession, "failed to persist session state", err)
	}
	log.Debug().Int("cookies", len(st.Cookies)).Str("path", m.file.Path()).Msg("Session state saved")
	return nil
}

func (m *Manager) loginFormOnHome(ctx context.Context) (bool, error) {
	if err := m.navigate(ctx, m.opts.HomeURL); err != nil {
		return false, err
	}
	visible, err := m.driver.Visible(ctx, m.opts.Selectors.Username, m.opts.LoginCheckTimeout)
	if err != nil {
		return false, navigationError("probe login form", err)
	}
	return visible, nil
}

func navigationError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.CodeTimeout, op, err)
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.New(errs.CodeNavigation, op, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
