package stats

import (
	"math"
	"testing"

	"github.com/law-makers/cmhistory/pkg/models"
)

func ip(n int) *int         { return &n }
func fp(f float64) *float64 { return &f }
func sp(s string) *string   { return &s }

var arrived = models.Timeline{"arrived": {}}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCompute(t *testing.T) {
	orders := map[string]*models.Order{
		"1": {
			OrderID:  "1",
			Type:     models.OrderBuy,
			Timeline: arrived,
			Summary:  &models.Summary{ArticleCount: ip(4), ShippingPrice: fp(2)},
			Articles: []models.ArticleLine{
				{Name: "Zoro", Amount: ip(4), PriceEach: fp(1), Link: sp("/en/OnePiece/Products/Singles/RD/Zoro")},
			},
		},
		"2": {
			OrderID:  "2",
			Type:     models.OrderSell,
			Timeline: arrived,
			Articles: []models.ArticleLine{{Name: "Zoro", Amount: ip(1), PriceEach: fp(3)}},
		},
		"3": {
			OrderID:  "3",
			Type:     models.OrderBuy,
			Timeline: models.Timeline{"paid": {}},
			Articles: []models.ArticleLine{{Name: "Zoro", Amount: ip(100), PriceEach: fp(100)}},
		},
		"4": {
			OrderID:  "4",
			Type:     models.OrderBuy,
			Timeline: arrived,
			Articles: []models.ArticleLine{{Name: "Luffy", Amount: ip(2), PriceEach: fp(5)}},
		},
	}
	products := []*models.Product{
		{ID: "Singles/RD/Zoro", PriceAverages: models.PriceAverages{Average7Day: fp(2)}},
	}

	rows := Compute(orders, products)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	luffy, zoro := rows[0], rows[1]
	if luffy.ArticleName != "Luffy" || zoro.ArticleName != "Zoro" {
		t.Fatalf("rows not sorted by name: %s, %s", luffy.ArticleName, zoro.ArticleName)
	}

	// 4 bought at 1 + 0.5 shipping share, 1 sold at 3, 3 held at 7-day average 2
	checks := []struct {
		name      string
		got, want float64
	}{
		{"total bought", zoro.TotalBought, 6},
		{"total sold", zoro.TotalSold, 3},
		{"avg buy", zoro.AvgBuyPrice, 1.5},
		{"avg sell", zoro.AvgSellPrice, 3},
		{"holding value", zoro.HoldingValue, 6},
		{"realized", zoro.RealizedPL, 1.5},
		{"unrealized", zoro.UnrealizedPL, 1.5},
		{"net", zoro.NetPL, 3},
		{"luffy holding value", luffy.HoldingValue, 10},
		{"luffy unrealized", luffy.UnrealizedPL, 0},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if !near(c.got, c.want) {
				t.Errorf("got %v, want %v", c.got, c.want)
			}
		})
	}
	if zoro.BuyCount != 4 || zoro.SellCount != 1 || zoro.HoldingCount != 3 {
		t.Errorf("counts = %d/%d/%d, want 4/1/3", zoro.BuyCount, zoro.SellCount, zoro.HoldingCount)
	}
	if !zoro.MarketPriced || luffy.MarketPriced {
		t.Errorf("MarketPriced = %v/%v, want true/false", zoro.MarketPriced, luffy.MarketPriced)
	}
	if zoro.ProductSlug != "Singles/RD/Zoro" {
		t.Errorf("ProductSlug = %q", zoro.ProductSlug)
	}
}

func TestCompute_OversoldHoldsNothing(t *testing.T) {
	orders := map[string]*models.Order{
		"s": {Type: models.OrderSell, Timeline: arrived, Articles: []models.ArticleLine{{Name: "Nami", Amount: ip(2), PriceEach: fp(4)}}},
	}
	rows := Compute(orders, nil)
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	r := rows[0]
	if r.HoldingCount != 0 || r.HoldingValue != 0 {
		t.Errorf("holding = %d / %v, want 0", r.HoldingCount, r.HoldingValue)
	}
	if !near(r.RealizedPL, 8) {
		t.Errorf("RealizedPL = %v, want 8", r.RealizedPL)
	}
}

func TestSum(t *testing.T) {
	got := Sum([]ArticleStats{{TotalBought: 1, NetPL: 2}, {TotalBought: 3, NetPL: -1}})
	if got.TotalBought != 4 || got.NetPL != 1 {
		t.Errorf("Sum() = %+v", got)
	}
}
