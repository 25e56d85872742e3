// Package crawler walks the marketplace order search window by window and
// imports the orders it finds.
package crawler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/cmhistory/internal/errs"
	"github.com/law-makers/cmhistory/internal/extract"
	"github.com/law-makers/cmhistory/internal/ratelimit"
	"github.com/law-makers/cmhistory/internal/reqctx"
	"github.com/law-makers/cmhistory/pkg/models"
)

// Fetcher returns the rendered HTML of an authenticated page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Store is the part of the persistence layer the crawler writes to.
type Store interface {
	HasOrder(ctx context.Context, id string) (bool, error)
	UpsertOrder(ctx context.Context, o *models.Order) error
	EnsurePlaceholder(ctx context.Context, slug, source string) (bool, error)
	UpsertProduct(ctx context.Context, p *models.Product) (string, error)
}

// Crawler fetches pages strictly one after another, pausing before each.
type Crawler struct {
	fetcher Fetcher
	store   Store
	site    Site
	pacer   ratelimit.Pacer
	policy  Policy
}

// New returns a Crawler. A nil pacer disables pacing.
func New(fetcher Fetcher, store Store, site Site, pacer ratelimit.Pacer, policy Policy) (*Crawler, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if pacer == nil {
		pacer = ratelimit.NoopPacer{}
	}
	return &Crawler{
		fetcher: fetcher,
		store:   store,
		site:    site,
		pacer:   pacer,
		policy:  policy,
	}, nil
}

// Site returns the URL builder in use.
func (c *Crawler) Site() Site { return c.site }

// Query selects the orders to enumerate. Start is the most recent date;
// End, when set, is the oldest.
type Query struct {
	Role           models.Role
	ShipmentStatus string
	Start          time.Time
	End            *time.Time
}

// PurchaseHistory queries orders the account bought.
func PurchaseHistory(start time.Time, end *time.Time) Query {
	return Query{Role: models.RoleBuyer, ShipmentStatus: DefaultShipmentStatus, Start: start, End: end}
}

// SaleHistory queries orders the account sold.
func SaleHistory(start time.Time, end *time.Time) Query {
	return Query{Role: models.RoleSeller, ShipmentStatus: DefaultShipmentStatus, Start: start, End: end}
}

func (q *Query) normalize() error {
	if q.Role != models.RoleBuyer && q.Role != models.RoleSeller {
		return errs.Newf(errs.CodeValidation, "unknown role %q", q.Role)
	}
	if q.Start.IsZero() {
		return errs.Newf(errs.CodeValidation, "start date is required")
	}
	if q.End != nil && q.End.After(q.Start) {
		return errs.Newf(errs.CodeValidation, "end %s is after start %s",
			q.End.Format(searchDateLayout), q.Start.Format(searchDateLayout))
	}
	if q.ShipmentStatus == "" {
		q.ShipmentStatus = DefaultShipmentStatus
	}
	return nil
}

// SearchOrderHistory walks backward from q.Start in overlapping windows
// and returns every order identifier found, deduplicated in first-seen
// order. The walk ends at the first window without results or once a
// window reaches q.End.
func (c *Crawler) SearchOrderHistory(ctx context.Context, q Query) ([]string, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}
	logger := reqctx.Logger(ctx, log.Logger)

	var found []string
	cursor := q.Start
	windows := 0
	for {
		w := c.policy.window(cursor, q.End)
		windows++

		ids, err := c.searchWindow(ctx, q, w)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("window_start", w.Start.Format(searchDateLayout)).
			Str("window_end", w.End.Format(searchDateLayout)).
			Int("ids", len(ids)).
			Msg("Search window done")

		if len(ids) == 0 {
			break
		}
		found = append(found, ids...)

		if w.exhausts(q.End) {
			break
		}
		cursor = c.policy.next(w)
	}

	unique := dedupe(found)
	logger.Info().Int("windows", windows).Int("ids", len(unique)).Str("role", string(q.Role)).Msg("Order search finished")
	return unique, nil
}

// searchWindow pages through one window until a page comes back empty.
func (c *Crawler) searchWindow(ctx context.Context, q Query, w Window) ([]string, error) {
	var ids, previous []string
	for page := 1; ; page++ {
		url := c.site.Search(q.Role, q.ShipmentStatus, w.Start, w.End, page)
		if err := c.pacer.Wait(ctx, url, c.policy.PageDelayMax); err != nil {
			return nil, err
		}
		html, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch search page %d: %w", page, err)
		}
		pageIDs, err := extract.OrderIDs(html, url)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("url", url).Int("page", page).Int("ids", len(pageIDs)).Msg("Search page")

		if len(pageIDs) == 0 {
			return ids, nil
		}
		// The site serves the last page again for out-of-range page numbers.
		if slices.Equal(pageIDs, previous) {
			log.Warn().Int("page", page).Msg("Search page repeats the previous one, ending window")
			return ids, nil
		}
		ids = append(ids, pageIDs...)
		previous = pageIDs
	}
}

// FetchOrder reads and extracts one order without storing it.
func (c *Crawler) FetchOrder(ctx context.Context, id string) (*models.Order, error) {
	url := c.site.Order(id)
	if err := c.pacer.Wait(ctx, url, c.policy.OrderDelayMax); err != nil {
		return nil, err
	}
	html, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %s: %w", id, err)
	}
	return extract.Order(html, url)
}

// FetchProduct reads the product page at href, stores it and returns it
// with its store key filled in.
func (c *Crawler) FetchProduct(ctx context.Context, href string) (*models.Product, error) {
	url, err := c.site.Resolve(href)
	if err != nil {
		return nil, err
	}
	if err := c.pacer.Wait(ctx, url, c.policy.OrderDelayMax); err != nil {
		return nil, err
	}
	html, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %s: %w", url, err)
	}
	p, err := extract.Product(html, url)
	if err != nil {
		return nil, err
	}
	if p.ProductName == nil && p.ProductID == nil {
		return nil, errs.Newf(errs.CodeNotFound, "no product found at %s", url)
	}
	key, err := c.store.UpsertProduct(ctx, p)
	if err != nil {
		return nil, err
	}
	p.ID = key
	log.Info().Str("product_id", key).Int("offers", len(p.Offers)).Msg("Product stored")
	return p, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
