package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/law-makers/cmhistory/internal/extract"
	"github.com/law-makers/cmhistory/pkg/models"
)

const upsertProductSQL = `
INSERT INTO products (
    product_id, source, product_name, declared_id, avg_1d, avg_7d, avg_30d, info, last_fetched, is_favorite
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT(product_id) DO UPDATE SET
    source = excluded.source,
    product_name = excluded.product_name,
    declared_id = excluded.declared_id,
    avg_1d = excluded.avg_1d,
    avg_7d = excluded.avg_7d,
    avg_30d = excluded.avg_30d,
    info = excluded.info,
    last_fetched = excluded.last_fetched`

const selectProductColumns = `
SELECT product_id, source, product_name, declared_id, avg_1d, avg_7d, avg_30d, info, last_fetched, is_favorite
FROM products`

// ProductKey resolves the canonical key of a product: the slug of its
// source URL, else its declared identifier, else the source URL itself.
func ProductKey(p *models.Product) string {
	if slug := extract.ProductSlug(p.Source); slug != "" {
		return slug
	}
	if p.ProductID != nil && strings.TrimSpace(*p.ProductID) != "" {
		return strings.TrimSpace(*p.ProductID)
	}
	return p.Source
}

// UpsertProduct writes a fetched product and returns its key. Every column
// is overwritten except the favorite flag; p.Favorite is ignored.
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) (string, error) {
	if p == nil {
		return "", errors.New("product is nil")
	}
	key := ProductKey(p)
	if key == "" {
		return "", ErrMissingID
	}
	info, err := encodeInfo(p.InfoList)
	if err != nil {
		return "", persistence("encode product "+key, err)
	}
	fetched := p.LastFetched
	if fetched.IsZero() {
		fetched = s.now()
	}

	_, err = s.db.ExecContext(ctx, upsertProductSQL,
		key, p.Source, nullString(p.ProductName), nullString(p.ProductID),
		nullFloat(p.PriceAverages.Average1Day), nullFloat(p.PriceAverages.Average7Day),
		nullFloat(p.PriceAverages.Average30Day), info, fetched.UnixMilli(),
	)
	if err != nil {
		return "", persistence("upsert product "+key, err)
	}
	return key, nil
}

// EnsurePlaceholder inserts a never-fetched product for slug unless one
// already exists. It reports whether a row was created.
func (s *Store) EnsurePlaceholder(ctx context.Context, slug, source string) (bool, error) {
	if slug == "" {
		return false, ErrMissingID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (product_id, source) VALUES (?, ?) ON CONFLICT(product_id) DO NOTHING`,
		slug, source,
	)
	if err != nil {
		return false, persistence("insert placeholder "+slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistence("insert placeholder "+slug, err)
	}
	return n > 0, nil
}

// SetFavorite changes the favorite flag of a stored product.
func (s *Store) SetFavorite(ctx context.Context, id string, favorite bool) error {
	flag := 0
	if favorite {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE products SET is_favorite = ? WHERE product_id = ?`, flag, id)
	if err != nil {
		return persistence("set favorite on "+id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProduct loads one product by key.
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, selectProductColumns+` WHERE product_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("read product "+id, err)
	}
	return p, nil
}

// ListProducts returns all products ordered by key.
func (s *Store) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.db.QueryContext(ctx, selectProductColumns+` ORDER BY product_id`)
	if err != nil {
		return nil, persistence("list products", err)
	}
	defer rows.Close()

	var out []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, persistence("scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list products", err)
	}
	return out, nil
}

// RemoveProduct deletes a product and reports whether it existed.
func (s *Store) RemoveProduct(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE product_id = ?`, id)
	if err != nil {
		return false, persistence("remove product "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistence("remove product "+id, err)
	}
	return n > 0, nil
}

func scanProduct(row scanner) (*models.Product, error) {
	var (
		p                 models.Product
		name, declared    sql.NullString
		avg1, avg7, avg30 sql.NullFloat64
		info              sql.NullString
		lastFetched, fav  int64
	)
	err := row.Scan(&p.ID, &p.Source, &name, &declared, &avg1, &avg7, &avg30, &info, &lastFetched, &fav)
	if err != nil {
		return nil, err
	}
	p.ProductName = stringPtr(name)
	p.ProductID = stringPtr(declared)
	p.PriceAverages = models.PriceAverages{
		Average1Day:  floatPtr(avg1),
		Average7Day:  floatPtr(avg7),
		Average30Day: floatPtr(avg30),
	}
	p.InfoList = decodeInfo(info)
	if lastFetched > 0 {
		p.LastFetched = time.UnixMilli(lastFetched)
	}
	p.Favorite = fav != 0
	return &p, nil
}
