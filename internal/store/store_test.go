package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/cmhistory/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func str(s string) *string   { return &s }
func num(f float64) *float64 { return &f }
func count(n int) *int       { return &n }

func sampleOrder(id string) *models.Order {
	return &models.Order{
		Source:  "https://www.cardmarket.com/en/OnePiece/Orders/" + id,
		OrderID: id,
		Type:    models.OrderBuy,
		OtherUser: models.Counterparty{
			Username: str("card-shop"),
			Location: str("Germany"),
		},
		Timeline: models.Timeline{
			"paid":    {Date: str("01.02.2024"), Time: str("10:00")},
			"arrived": {Date: str("05.02.2024")},
		},
		TimelineAlert: &models.TimelineAlert{
			Status:  models.AlertNotArrived,
			Message: "Order not arrived",
			Date:    str("20.02.2024"),
			Time:    str("08:00:00"),
		},
		Summary: &models.Summary{
			ArticleCount:  count(3),
			ItemValue:     num(12.5),
			ShippingPrice: num(1.15),
			TotalPrice:    num(13.65),
		},
		OtherUserAddress: &models.Address{Name: str("Card Shop GmbH"), City: str("Berlin")},
		UserAddress:      &models.Address{Name: str("Jane Doe")},
		Shipping: &models.Shipping{
			ShippingMethod: str("Letter"),
			RefundTotals:   models.RefundTotals{"card-shop": 3.5},
		},
		Articles: []models.ArticleLine{
			{Name: "Roronoa Zoro", Amount: count(2), Link: str("/en/OnePiece/Products/Singles/OP01/Roronoa-Zoro"), PriceEach: num(0.5)},
			{Name: "Nami", Amount: count(1), Link: str("/en/OnePiece/Products/Singles/OP01/Nami"), Comment: str("sleeved")},
		},
	}
}

func TestUpsertOrder_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	want := sampleOrder("1001")

	require.NoError(t, s.UpsertOrder(ctx, want))

	got, err := s.GetOrder(ctx, "1001")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	has, err := s.HasOrder(ctx, "1001")
	require.NoError(t, err)
	require.True(t, has)

	has, err = s.HasOrder(ctx, "9999")
	require.NoError(t, err)
	require.False(t, has)
}

func TestUpsertOrder_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	o := sampleOrder("1002")

	require.NoError(t, s.UpsertOrder(ctx, o))
	first, err := s.GetOrder(ctx, "1002")
	require.NoError(t, err)

	require.NoError(t, s.UpsertOrder(ctx, o))
	second, err := s.GetOrder(ctx, "1002")
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second upsert changed the order (-first +second):\n%s", diff)
	}

	var lines int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE order_id = ?`, "1002").Scan(&lines))
	require.Equal(t, 2, lines)
}

func TestUpsertOrder_ReplacesArticles(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	o := sampleOrder("1003")
	require.NoError(t, s.UpsertOrder(ctx, o))

	o.Articles = []models.ArticleLine{{Name: "Monkey D Luffy", Amount: count(4)}}
	o.TimelineAlert = nil
	o.Shipping = nil
	require.NoError(t, s.UpsertOrder(ctx, o))

	got, err := s.GetOrder(ctx, "1003")
	require.NoError(t, err)
	require.Len(t, got.Articles, 1)
	require.Equal(t, "Monkey D Luffy", got.Articles[0].Name)
	require.Nil(t, got.TimelineAlert)
	require.Nil(t, got.Shipping)
}

func TestUpsertOrder_KeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.UpsertOrder(ctx, sampleOrder("1004")))

	s.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, s.UpsertOrder(ctx, sampleOrder("1004")))

	var created, updated int64
	require.NoError(t, s.db.QueryRow(`SELECT created_at, updated_at FROM orders WHERE order_id = ?`, "1004").Scan(&created, &updated))
	require.Equal(t, base.UnixMilli(), created)
	require.Equal(t, base.Add(time.Hour).UnixMilli(), updated)
}

func TestUpsertOrder_FailureLeavesPriorState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	original := sampleOrder("1005")
	require.NoError(t, s.UpsertOrder(ctx, original))

	broken := sampleOrder("1005")
	broken.Source = "https://example.test/changed"
	broken.Articles = []models.ArticleLine{{Name: "Valid"}, {Name: ""}}
	require.Error(t, s.UpsertOrder(ctx, broken))

	got, err := s.GetOrder(ctx, "1005")
	require.NoError(t, err)
	if diff := cmp.Diff(original, got); diff != "" {
		t.Errorf("failed upsert left partial changes (-want +got):\n%s", diff)
	}
}

func TestUpsertOrder_MissingID(t *testing.T) {
	s := openTestStore(t)
	o := sampleOrder("")
	require.ErrorIs(t, s.UpsertOrder(context.Background(), o), ErrMissingID)

	orders, err := s.ListOrders(context.Background())
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestRemoveOrder_Cascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertOrder(ctx, sampleOrder("1006")))
	require.NoError(t, s.UpsertOrder(ctx, sampleOrder("1007")))

	removed, err := s.RemoveOrder(ctx, "1006")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.RemoveOrder(ctx, "1006")
	require.NoError(t, err)
	require.False(t, removed)

	var lines int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE order_id = ?`, "1006").Scan(&lines))
	require.Zero(t, lines)

	_, err = s.GetOrder(ctx, "1006")
	require.ErrorIs(t, err, ErrNotFound)

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders["1007"].Articles, 2)
}

func TestGetOrder_MalformedStoredJSON(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertOrder(ctx, sampleOrder("1008")))

	_, err := s.db.Exec(`UPDATE orders SET timeline = '{broken', other_address = 'nope', refund_totals = '[1,2',
		timeline_alert_message = NULL, shipping_method = NULL WHERE order_id = ?`, "1008")
	require.NoError(t, err)

	got, err := s.GetOrder(ctx, "1008")
	require.NoError(t, err)
	require.NotNil(t, got.Timeline)
	require.Empty(t, got.Timeline)
	require.Nil(t, got.OtherUserAddress)
	require.Nil(t, got.Shipping)
	require.NotNil(t, got.TimelineAlert)
	require.Equal(t, "Not arrived", got.TimelineAlert.Message)
}

func TestProducts_PlaceholderNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	full := &models.Product{
		Source:        "https://www.cardmarket.com/en/OnePiece/Products/Singles/OP01/Nami",
		ProductName:   str("Nami"),
		PriceAverages: models.PriceAverages{Average7Day: num(2.5)},
		LastFetched:   time.UnixMilli(1_700_000_000_000),
	}
	key, err := s.UpsertProduct(ctx, full)
	require.NoError(t, err)
	require.Equal(t, "Singles/OP01/Nami", key)

	for range 2 {
		created, err := s.EnsurePlaceholder(ctx, key, "https://www.cardmarket.com/en/OnePiece/Products/"+key)
		require.NoError(t, err)
		require.False(t, created)
	}

	got, err := s.GetProduct(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "Nami", *got.ProductName)
	require.Equal(t, 2.5, *got.PriceAverages.Average7Day)
	require.False(t, got.IsPlaceholder())
}

func TestProducts_PlaceholderDefaults(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	created, err := s.EnsurePlaceholder(ctx, "Singles/OP02/Ace", "https://www.cardmarket.com/en/OnePiece/Products/Singles/OP02/Ace")
	require.NoError(t, err)
	require.True(t, created)

	got, err := s.GetProduct(ctx, "Singles/OP02/Ace")
	require.NoError(t, err)
	require.True(t, got.IsPlaceholder())
	require.Nil(t, got.ProductName)
	require.Equal(t, models.PriceAverages{}, got.PriceAverages)
	require.False(t, got.Favorite)
}

func TestProducts_FavoriteSurvivesUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := &models.Product{
		Source:      "https://www.cardmarket.com/en/OnePiece/Products/Singles/OP01/Zoro",
		ProductName: str("Zoro"),
	}
	key, err := s.UpsertProduct(ctx, p)
	require.NoError(t, err)
	require.NoError(t, s.SetFavorite(ctx, key, true))

	p.ProductName = str("Roronoa Zoro")
	p.Favorite = false
	_, err = s.UpsertProduct(ctx, p)
	require.NoError(t, err)

	got, err := s.GetProduct(ctx, key)
	require.NoError(t, err)
	require.True(t, got.Favorite)
	require.Equal(t, "Roronoa Zoro", *got.ProductName)

	require.NoError(t, s.SetFavorite(ctx, key, false))
	got, err = s.GetProduct(ctx, key)
	require.NoError(t, err)
	require.False(t, got.Favorite)

	require.ErrorIs(t, s.SetFavorite(ctx, "unknown", true), ErrNotFound)
}

func TestProductKey(t *testing.T) {
	tests := []struct {
		name string
		p    models.Product
		want string
	}{
		{"slug", models.Product{Source: "https://x.test/en/OnePiece/Products/Singles/A/B", ProductID: str("1")}, "Singles/A/B"},
		{"declared id", models.Product{Source: "https://x.test/other", ProductID: str("77")}, "77"},
		{"source", models.Product{Source: "https://x.test/other"}, "https://x.test/other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ProductKey(&tt.p))
		})
	}
}

func TestProducts_ListAndRemove(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, slug := range []string{"b", "a", "c"} {
		_, err := s.EnsurePlaceholder(ctx, slug, "src-"+slug)
		require.NoError(t, err)
	}

	removed, err := s.RemoveProduct(ctx, "c")
	require.NoError(t, err)
	require.True(t, removed)

	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].ID)
	require.Equal(t, "b", list[1].ID)
}
