// Package stats summarizes per-article trading results over arrived orders.
package stats

import (
	"sort"

	"github.com/law-makers/cmhistory/internal/extract"
	"github.com/law-makers/cmhistory/pkg/models"
)

// ArticleStats is the buy/sell balance of one article name.
type ArticleStats struct {
	ArticleName  string  `json:"articleName"`
	ProductSlug  string  `json:"productSlug,omitempty"`
	BuyCount     int     `json:"buyCount"`
	SellCount    int     `json:"sellCount"`
	HoldingCount int     `json:"holdingCount"`
	TotalBought  float64 `json:"totalBought"`
	TotalSold    float64 `json:"totalSold"`
	AvgBuyPrice  float64 `json:"avgBuyPrice"`
	AvgSellPrice float64 `json:"avgSellPrice"`
	// MarketPrice is the unit price holdings are valued at.
	MarketPrice  float64 `json:"marketPrice"`
	MarketPriced bool    `json:"marketPriced"`
	HoldingValue float64 `json:"holdingValue"`
	RealizedPL   float64 `json:"realizedProfitLoss"`
	UnrealizedPL float64 `json:"unrealizedProfitLoss"`
	NetPL        float64 `json:"netProfitLoss"`
}

// Totals sums the profit columns of a stats table.
type Totals struct {
	TotalBought  float64 `json:"totalBought"`
	TotalSold    float64 `json:"totalSold"`
	HoldingValue float64 `json:"holdingValue"`
	RealizedPL   float64 `json:"realizedProfitLoss"`
	UnrealizedPL float64 `json:"unrealizedProfitLoss"`
	NetPL        float64 `json:"netProfitLoss"`
}

// Compute builds one row per article name across orders that arrived.
// Purchases carry their share of the order's shipping cost. Holdings are
// valued at the product's 7-day average when it is known, else at the
// average buy price. Rows are sorted by article name.
func Compute(orders map[string]*models.Order, products []*models.Product) []ArticleStats {
	market := make(map[string]float64, len(products))
	for _, p := range products {
		if p.PriceAverages.Average7Day != nil {
			market[p.ID] = *p.PriceAverages.Average7Day
		}
	}

	rows := map[string]*ArticleStats{}
	for _, o := range orders {
		if !o.HasMilestone("arrived") {
			continue
		}
		for _, a := range o.Articles {
			s, ok := rows[a.Name]
			if !ok {
				s = &ArticleStats{ArticleName: a.Name}
				if a.Link != nil {
					s.ProductSlug = extract.ProductSlug(*a.Link)
				}
				rows[a.Name] = s
			}
			add(s, o, a)
		}
	}

	out := make([]ArticleStats, 0, len(rows))
	for _, s := range rows {
		price, ok := market[s.ProductSlug]
		if s.ProductSlug == "" || !ok {
			price = s.AvgBuyPrice
		}
		s.MarketPrice = price
		s.MarketPriced = ok && s.ProductSlug != ""
		s.HoldingValue = float64(s.HoldingCount) * price
		s.UnrealizedPL = s.HoldingValue - float64(s.HoldingCount)*s.AvgBuyPrice
		s.NetPL = s.RealizedPL + s.UnrealizedPL
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArticleName < out[j].ArticleName })
	return out
}

func add(s *ArticleStats, o *models.Order, a models.ArticleLine) {
	amount := deref(a.Amount)
	priceEach := derefF(a.PriceEach)

	if o.Type == models.OrderSell {
		s.SellCount += amount
		s.TotalSold += priceEach * float64(amount)
	} else {
		s.BuyCount += amount
		s.TotalBought += (priceEach + shippingShare(o, amount)) * float64(amount)
	}

	if s.BuyCount > 0 {
		s.AvgBuyPrice = s.TotalBought / float64(s.BuyCount)
	}
	if s.SellCount > 0 {
		s.AvgSellPrice = s.TotalSold / float64(s.SellCount)
	}
	s.HoldingCount = max(s.BuyCount-s.SellCount, 0)
	s.RealizedPL = s.TotalSold - s.AvgBuyPrice*float64(s.SellCount)
}

// shippingShare spreads the order's shipping price over its articles.
// Without a recorded article count the line's own amount is used.
func shippingShare(o *models.Order, amount int) float64 {
	if o.Summary == nil || o.Summary.ShippingPrice == nil {
		return 0
	}
	count := amount
	if o.Summary.ArticleCount != nil {
		count = *o.Summary.ArticleCount
	}
	if count <= 0 {
		return 0
	}
	return *o.Summary.ShippingPrice / float64(count)
}

// Sum adds up the money columns of rows.
func Sum(rows []ArticleStats) Totals {
	var t Totals
	for _, r := range rows {
		t.TotalBought += r.TotalBought
		t.TotalSold += r.TotalSold
		t.HoldingValue += r.HoldingValue
		t.RealizedPL += r.RealizedPL
		t.UnrealizedPL += r.UnrealizedPL
		t.NetPL += r.NetPL
	}
	return t
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func derefF(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
