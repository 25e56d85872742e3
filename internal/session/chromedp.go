package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"
)

// ChromeOptions configures the browser started by ChromeDriver.
type ChromeOptions struct {
	Headless       bool
	UserAgent      string
	Locale         string
	AcceptLanguage string
	Proxy          string
	ChromePath     string
	// NavigationTimeout bounds a single navigation or DOM read.
	NavigationTimeout time.Duration
}

// ChromeDriver is a Driver backed by one chromedp tab.
type ChromeDriver struct {
	opts ChromeOptions

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu      sync.Mutex
	scripts []page.ScriptIdentifier
	closed  bool
}

// NewChromeFactory returns a DriverFactory that launches Chrome with opts.
func NewChromeFactory(opts ChromeOptions) DriverFactory {
	return func(ctx context.Context) (Driver, error) {
		return NewChromeDriver(ctx, opts)
	}
}

// NewChromeDriver launches Chrome and applies the locale and header overrides.
func NewChromeDriver(ctx context.Context, opts ChromeOptions) (*ChromeDriver, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1920, 1080),
	}
	if path := FindChrome(opts.ChromePath); path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
		if e := log.Debug(); e.Enabled() {
			e.Str("path", path).Str("version", ChromeVersion(path)).Msg("Using Chrome")
		}
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Locale != "" {
		allocOpts = append(allocOpts, chromedp.Flag("lang", opts.Locale))
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	// The browser outlives the caller's context; Close tears it down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		opts:        opts,
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}

	// The first Run allocates the browser and binds it to its context.
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	setup := []chromedp.Action{network.Enable()}
	if opts.AcceptLanguage != "" {
		setup = append(setup, network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": opts.AcceptLanguage}))
	}
	if opts.Locale != "" {
		setup = append(setup, emulation.SetLocaleOverride().WithLocale(opts.Locale))
	}
	if err := d.run(ctx, setup...); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug().Bool("headless", opts.Headless).Str("locale", opts.Locale).Msg("Browser started")
	return d, nil
}

// run executes actions on the tab, bounded by the navigation timeout and
// cancelled early when ctx is.
func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	return d.runWithin(ctx, d.opts.NavigationTimeout, actions...)
}

func (d *ChromeDriver) runWithin(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

func (d *ChromeDriver) HTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (d *ChromeDriver) Visible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	err := d.runWithin(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return false, nil
	default:
		return false, err
	}
}

func (d *ChromeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return d.runWithin(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (d *ChromeDriver) Type(ctx context.Context, selector, value string) error {
	return d.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (d *ChromeDriver) Submit(ctx context.Context, selector string) error {
	return d.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.KeyEvent(kb.Enter),
	)
}

func (d *ChromeDriver) WaitSettled(ctx context.Context) error {
	return d.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

const exportLocalStorage = `({
	origin: location.origin,
	localStorage: Object.keys(localStorage).map(k => ({name: k, value: localStorage.getItem(k)}))
})`

func (d *ChromeDriver) ExportState(ctx context.Context) (*StorageState, error) {
	var cookies []*network.Cookie
	var origin OriginState
	err := d.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Evaluate(exportLocalStorage, &origin),
	)
	if err != nil {
		return nil, err
	}

	st := &StorageState{Cookies: make([]Cookie, 0, len(cookies))}
	for _, c := range cookies {
		st.Cookies = append(st.Cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	if origin.Origin != "" && origin.Origin != "null" && len(origin.LocalStorage) > 0 {
		st.Origins = append(st.Origins, origin)
	}
	return st, nil
}

func (d *ChromeDriver) ImportState(ctx context.Context, st *StorageState) error {
	params := make([]*network.CookieParam, 0, len(st.Cookies))
	for _, c := range st.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}

	actions := []chromedp.Action{}
	if len(params) > 0 {
		actions = append(actions, network.SetCookies(params))
	}
	for _, o := range st.Origins {
		script, err := restoreScript(o)
		if err != nil {
			return err
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			id, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			if err != nil {
				return err
			}
			d.mu.Lock()
			d.scripts = append(d.scripts, id)
			d.mu.Unlock()
			return nil
		}))
	}
	if len(actions) == 0 {
		return nil
	}
	return d.run(ctx, actions...)
}

// restoreScript seeds localStorage for one origin on every new document.
func restoreScript(o OriginState) (string, error) {
	origin, err := json.Marshal(o.Origin)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "if (location.origin === %s) {", origin)
	for _, item := range o.LocalStorage {
		k, err := json.Marshal(item.Name)
		if err != nil {
			return "", err
		}
		v, err := json.Marshal(item.Value)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, " localStorage.setItem(%s, %s);", k, v)
	}
	b.WriteString(" }")
	return b.String(), nil
}

const clearLocalStorage = `(() => { try { localStorage.clear(); return true } catch (e) { return false } })()`

func (d *ChromeDriver) ClearState(ctx context.Context) error {
	d.mu.Lock()
	scripts := d.scripts
	d.scripts = nil
	d.mu.Unlock()

	actions := []chromedp.Action{network.ClearBrowserCookies()}
	for _, id := range scripts {
		actions = append(actions, page.RemoveScriptToEvaluateOnNewDocument(id))
	}
	var cleared bool
	actions = append(actions, chromedp.Evaluate(clearLocalStorage, &cleared))
	return d.run(ctx, actions...)
}

// Close shuts the browser down. Later calls do nothing.
func (d *ChromeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.cancel()
	d.allocCancel()
	log.Debug().Msg("Browser closed")
	return nil
}
