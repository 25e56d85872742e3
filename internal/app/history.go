package app

import (
	"context"
	"time"

	"github.com/law-makers/cmhistory/internal/crawler"
	"github.com/law-makers/cmhistory/internal/reqctx"
	"github.com/law-makers/cmhistory/internal/session"
	"github.com/law-makers/cmhistory/internal/stats"
	"github.com/law-makers/cmhistory/pkg/models"
)

// ListOrders returns every stored order keyed by identifier.
func (a *Application) ListOrders(ctx context.Context) (map[string]*models.Order, error) {
	return a.Store.ListOrders(ctx)
}

// GetOrder returns one stored order.
func (a *Application) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return a.Store.GetOrder(ctx, id)
}

// RemoveOrder deletes an order and its article lines.
func (a *Application) RemoveOrder(ctx context.Context, id string) (bool, error) {
	return a.Store.RemoveOrder(ctx, id)
}

// ListProducts returns stored products, optionally only favorites.
func (a *Application) ListProducts(ctx context.Context, favoritesOnly bool) ([]*models.Product, error) {
	all, err := a.Store.ListProducts(ctx)
	if err != nil || !favoritesOnly {
		return all, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Favorite {
			out = append(out, p)
		}
	}
	return out, nil
}

// SetFavorite flags or unflags a stored product.
func (a *Application) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return a.Store.SetFavorite(ctx, id, favorite)
}

// RemoveProduct deletes a stored product.
func (a *Application) RemoveProduct(ctx context.Context, id string) (bool, error) {
	return a.Store.RemoveProduct(ctx, id)
}

// FetchProduct loads the product page at url and stores it.
func (a *Application) FetchProduct(ctx context.Context, url string) (*models.Product, error) {
	ctx = reqctx.WithRun(ctx, "fetch-product")
	c, err := a.Crawler(ctx)
	if err != nil {
		return nil, reqctx.Wrap(ctx, err)
	}
	p, err := c.FetchProduct(ctx, url)
	return p, reqctx.Wrap(ctx, err)
}

// SearchOrders lists the identifiers q matches without importing them.
func (a *Application) SearchOrders(ctx context.Context, q crawler.Query) ([]string, error) {
	ctx = reqctx.WithRun(ctx, "search")
	c, err := a.Crawler(ctx)
	if err != nil {
		return nil, reqctx.Wrap(ctx, err)
	}
	ids, err := c.SearchOrderHistory(ctx, q)
	return ids, reqctx.Wrap(ctx, err)
}

// ImportRange imports the orders q matches. The result's Scanned field
// is the number of identifiers the search found.
func (a *Application) ImportRange(ctx context.Context, q crawler.Query, progress crawler.ProgressFunc) (crawler.ImportResult, error) {
	ctx = reqctx.WithRun(ctx, "import")
	c, err := a.Crawler(ctx)
	if err != nil {
		return crawler.ImportResult{}, reqctx.Wrap(ctx, err)
	}
	res, err := c.ImportRange(ctx, q, progress)
	return res, reqctx.Wrap(ctx, err)
}

// ImportFile imports the identifiers listed in a JSON array file.
func (a *Application) ImportFile(ctx context.Context, path string, progress crawler.ProgressFunc) (crawler.ImportResult, error) {
	ctx = reqctx.WithRun(ctx, "import-file")
	ids, err := crawler.ReadIDFile(path)
	if err != nil {
		return crawler.ImportResult{}, err
	}
	c, err := a.Crawler(ctx)
	if err != nil {
		return crawler.ImportResult{}, reqctx.Wrap(ctx, err)
	}
	res, err := c.ImportOrderIDs(ctx, ids, progress)
	return res, reqctx.Wrap(ctx, err)
}

// DumpPage returns the rendered HTML of an authenticated page.
func (a *Application) DumpPage(ctx context.Context, href string) (string, error) {
	ctx = reqctx.WithRun(ctx, "dump-page")
	url, err := a.Site.Resolve(href)
	if err != nil {
		return "", reqctx.Wrap(ctx, err)
	}
	m, err := a.EnsureSession(ctx)
	if err != nil {
		return "", reqctx.Wrap(ctx, err)
	}
	if err := a.Pacer.Wait(ctx, url, a.Config.OrderDelayMax); err != nil {
		return "", reqctx.Wrap(ctx, err)
	}
	html, err := m.Fetch(ctx, url)
	return html, reqctx.Wrap(ctx, err)
}

// Stats computes per-article statistics over all stored orders.
func (a *Application) Stats(ctx context.Context) ([]stats.ArticleStats, error) {
	orders, err := a.Store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	products, err := a.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Compute(orders, products), nil
}

// SessionStatus describes the persisted session blob.
type SessionStatus struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	SavedAt time.Time `json:"savedAt,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
	Cookies int       `json:"cookies"`
}

// SessionStatus reports on the session blob without starting a browser.
func (a *Application) SessionStatus() (SessionStatus, error) {
	f := session.NewStateFile(a.Config.StorageStatePath)
	status := SessionStatus{Path: f.Path(), Exists: f.Exists()}
	if !status.Exists {
		return status, nil
	}
	if t, err := f.ModTime(); err == nil {
		status.SavedAt = t
	}
	st, err := f.Load()
	if err != nil {
		return status, err
	}
	if st != nil {
		status.Cookies = len(st.Cookies)
		status.Expires = st.Expiry()
	}
	return status, nil
}

// ClearSession deletes the session blob so the next run logs in again.
func (a *Application) ClearSession() error {
	return session.NewStateFile(a.Config.StorageStatePath).Delete()
}
