package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/cmhistory/internal/errs"
	"github.com/law-makers/cmhistory/internal/extract"
	"github.com/law-makers/cmhistory/internal/reqctx"
)

// ImportResult counts what an import did with each identifier.
type ImportResult struct {
	Scanned      int `json:"scanned"`
	Imported     int `json:"imported"`
	Skipped      int `json:"skipped"`
	Empty        int `json:"empty"`
	Placeholders int `json:"placeholders"`
}

// ProgressFunc is told after each identifier is handled.
type ProgressFunc func(done, total int, id string)

// ImportOrderIDs fetches and stores every order in ids that is not stored
// yet. Stored orders are never fetched again. It stops at the first
// failure; everything imported before it stays.
func (c *Crawler) ImportOrderIDs(ctx context.Context, ids []string, progress ProgressFunc) (ImportResult, error) {
	logger := reqctx.Logger(ctx, log.Logger)
	res := ImportResult{Scanned: len(ids)}

	for i, id := range ids {
		if err := c.importOne(ctx, id, &res); err != nil {
			return res, fmt.Errorf("import of order %s failed: %w", id, err)
		}
		if progress != nil {
			progress(i+1, len(ids), id)
		}
	}

	logger.Info().
		Int("scanned", res.Scanned).
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Int("placeholders", res.Placeholders).
		Msg("Import finished")
	return res, nil
}

func (c *Crawler) importOne(ctx context.Context, id string, res *ImportResult) error {
	stored, err := c.store.HasOrder(ctx, id)
	if err != nil {
		return err
	}
	if stored {
		res.Skipped++
		log.Debug().Str("order_id", id).Msg("Order already stored")
		return nil
	}

	order, err := c.FetchOrder(ctx, id)
	if err != nil {
		return err
	}
	if order.OrderID == "" {
		res.Empty++
		log.Warn().Str("order_id", id).Str("url", order.Source).Msg("Page held no order, skipping")
		return nil
	}
	if err := c.store.UpsertOrder(ctx, order); err != nil {
		return err
	}
	res.Imported++

	seen := make(map[string]bool)
	for _, a := range order.Articles {
		if a.Link == nil {
			continue
		}
		slug := extract.ProductSlug(*a.Link)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		created, err := c.store.EnsurePlaceholder(ctx, slug, c.site.Product(slug))
		if err != nil {
			return err
		}
		if created {
			res.Placeholders++
		}
	}

	log.Info().Str("order_id", order.OrderID).Str("type", string(order.Type)).Int("articles", len(order.Articles)).Msg("Order imported")
	return nil
}

// ImportRange searches q and imports what it finds. Scanned in the
// result is the number of identifiers the search returned.
func (c *Crawler) ImportRange(ctx context.Context, q Query, progress ProgressFunc) (ImportResult, error) {
	ids, err := c.SearchOrderHistory(ctx, q)
	if err != nil {
		return ImportResult{}, err
	}
	return c.ImportOrderIDs(ctx, ids, progress)
}

// ReadIDFile reads a JSON array of order identifiers.
func ReadIDFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, errs.New(errs.CodeValidation, "expected a JSON array of order identifiers in "+path, err)
	}
	return dedupe(ids), nil
}

// ImportOrdersFromFile imports the identifiers listed in a JSON file.
func (c *Crawler) ImportOrdersFromFile(ctx context.Context, path string, progress ProgressFunc) (ImportResult, error) {
	ids, err := ReadIDFile(path)
	if err != nil {
		return ImportResult{}, err
	}
	return c.ImportOrderIDs(ctx, ids, progress)
}
