package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/cmhistory/internal/errs"
	"github.com/law-makers/cmhistory/internal/store"
	"github.com/law-makers/cmhistory/pkg/models"
)

const testBase = "https://market.test/en/OnePiece"

// searchSource answers search pages through results(window, page).
type searchSource struct {
	results func(w string, page int) []string
	windows []string
	fetched []string
	pages   map[string]string
	failOn  map[string]error
	err     error
}

func (s *searchSource) Fetch(_ context.Context, rawURL string) (string, error) {
	s.fetched = append(s.fetched, rawURL)
	if s.err != nil {
		return "", s.err
	}
	if err, ok := s.failOn[rawURL]; ok {
		return "", err
	}
	if html, ok := s.pages[rawURL]; ok {
		return html, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	w := q.Get("minDate") + ".." + q.Get("maxDate")
	page := 0
	fmt.Sscanf(q.Get("site"), "%d", &page)
	if page == 1 {
		s.windows = append(s.windows, w)
	}
	if s.results == nil {
		return searchPage(nil), nil
	}
	return searchPage(s.results(w, page)), nil
}

func searchPage(ids []string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="StatusTable"><div class="table-body">`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<div><div>01.01.2024</div><div>%s</div></div>`, id)
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

type recordingPacer struct {
	waits []time.Duration
}

func (p *recordingPacer) Wait(ctx context.Context, _ string, upTo time.Duration) error {
	p.waits = append(p.waits, upTo)
	return ctx.Err()
}

func date(s string) time.Time {
	t, err := time.Parse(searchDateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestCrawler(t *testing.T, f Fetcher, st Store) *Crawler {
	t.Helper()
	c, err := New(f, st, NewSite(testBase), nil, DefaultPolicy())
	require.NoError(t, err)
	return c
}

func TestSearchOrderHistory_NoResultsStopsAfterOneWindow(t *testing.T) {
	src := &searchSource{}
	c := newTestCrawler(t, src, nil)

	ids, err := c.SearchOrderHistory(context.Background(), PurchaseHistory(date("2024-06-30"), nil))
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)
	assert.Equal(t, []string{"2024-05-31..2024-06-30"}, src.windows)
	assert.Len(t, src.fetched, 1)
}

func TestSearchOrderHistory_OverlappingWindows(t *testing.T) {
	src := &searchSource{results: func(w string, page int) []string {
		if page > 1 {
			return nil
		}
		switch w {
		case "2024-05-31..2024-06-30":
			return []string{"300", "200"}
		case "2024-05-16..2024-06-15":
			return []string{"200", "100"}
		}
		return nil
	}}
	c := newTestCrawler(t, src, nil)

	ids, err := c.SearchOrderHistory(context.Background(), PurchaseHistory(date("2024-06-30"), nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"300", "200", "100"}, ids)
	assert.Equal(t, []string{
		"2024-05-31..2024-06-30",
		"2024-05-16..2024-06-15",
		"2024-05-01..2024-05-31",
	}, src.windows)
}

func TestSearchOrderHistory_StopsAtEndBound(t *testing.T) {
	src := &searchSource{results: func(_ string, page int) []string {
		if page == 1 {
			return []string{"1"}
		}
		return nil
	}}
	c := newTestCrawler(t, src, nil)

	end := date("2024-05-20")
	ids, err := c.SearchOrderHistory(context.Background(), SaleHistory(date("2024-06-30"), &end))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
	assert.Equal(t, []string{"2024-05-31..2024-06-30", "2024-05-20..2024-06-15"}, src.windows)
	assert.Contains(t, src.fetched[0], "userType=seller")
	assert.Contains(t, src.fetched[0], "shipmentStatus=200")
}

func TestSearchOrderHistory_Paginates(t *testing.T) {
	src := &searchSource{results: func(w string, page int) []string {
		if w != "2024-05-31..2024-06-30" {
			return nil
		}
		switch page {
		case 1:
			return []string{"a", "b"}
		case 2:
			return []string{"c"}
		}
		return nil
	}}
	pacer := &recordingPacer{}
	c, err := New(src, nil, NewSite(testBase), pacer, DefaultPolicy())
	require.NoError(t, err)

	ids, err := c.SearchOrderHistory(context.Background(), PurchaseHistory(date("2024-06-30"), nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	// three pages in the first window, one empty page in the second
	assert.Len(t, src.fetched, 4)
	for _, w := range pacer.waits {
		assert.Equal(t, 4*time.Second, w)
	}
	assert.Len(t, pacer.waits, 4)
}

func TestSearchOrderHistory_RepeatedPageEndsWindow(t *testing.T) {
	src := &searchSource{results: func(w string, _ int) []string {
		if w == "2024-05-31..2024-06-30" {
			return []string{"x"}
		}
		return nil
	}}
	c := newTestCrawler(t, src, nil)

	ids, err := c.SearchOrderHistory(context.Background(), PurchaseHistory(date("2024-06-30"), nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids)
}

func TestSearchOrderHistory_Validation(t *testing.T) {
	c := newTestCrawler(t, &searchSource{}, nil)
	later := date("2024-07-01")

	tests := []struct {
		name string
		q    Query
	}{
		{"end after start", PurchaseHistory(date("2024-06-30"), &later)},
		{"unknown role", Query{Role: "admin", Start: date("2024-06-30")}},
		{"no start", Query{Role: models.RoleBuyer}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.SearchOrderHistory(context.Background(), tt.q)
			if !errors.Is(err, errs.ErrValidation) {
				t.Errorf("SearchOrderHistory() error = %v, want validation error", err)
			}
		})
	}
}

func TestSearchOrderHistory_FetchFailureAborts(t *testing.T) {
	src := &searchSource{err: errs.New(errs.CodeNavigation, "navigate", errors.New("reset"))}
	c := newTestCrawler(t, src, nil)

	_, err := c.SearchOrderHistory(context.Background(), PurchaseHistory(date("2024-06-30"), nil))
	assert.ErrorIs(t, err, errs.ErrNavigation)
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"no overlap", Policy{Span: 10 * day}, false},
		{"overlap equals span", Policy{Span: 10 * day, Overlap: 10 * day}, true},
		{"zero span", Policy{}, true},
		{"negative delay", Policy{Span: 10 * day, PageDelayMax: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.policy.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSite(t *testing.T) {
	s := NewSite(testBase + "/")
	assert.Equal(t, testBase+"/Orders/42", s.Order("42"))
	assert.Equal(t, testBase+"/Products/Singles/Romance-Dawn/Zoro", s.Product("Singles/Romance-Dawn/Zoro"))
	assert.Equal(t, testBase+"/Login", s.Login())

	u, err := url.Parse(s.Search(models.RoleBuyer, "200", date("2024-01-01"), date("2024-01-31"), 3))
	require.NoError(t, err)
	assert.Equal(t, "/en/OnePiece/Orders/Search/Results", u.Path)
	q := u.Query()
	assert.Equal(t, "buyer", q.Get("userType"))
	assert.Equal(t, "2024-01-01", q.Get("minDate"))
	assert.Equal(t, "2024-01-31", q.Get("maxDate"))
	assert.Equal(t, "3", q.Get("site"))
}

func TestSiteResolve(t *testing.T) {
	s := NewSite(testBase)
	tests := []struct {
		href, want string
		wantErr    bool
	}{
		{href: "Products/Singles/Romance-Dawn/Zoro", want: testBase + "/Products/Singles/Romance-Dawn/Zoro"},
		{href: "/en/OnePiece/Orders/7", want: testBase + "/Orders/7"},
		{href: testBase + "/Orders/7", want: testBase + "/Orders/7"},
		{href: "https://evil.test/en/OnePiece/Orders/7", wantErr: true},
		{href: "ftp://market.test/file", wantErr: true},
		{href: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := s.Resolve(tt.href)
		if tt.wantErr {
			assert.Equal(t, errs.CodeValidation, errs.CodeOf(err), tt.href)
			continue
		}
		require.NoError(t, err, tt.href)
		assert.Equal(t, tt.want, got)
	}
}

const importedOrder = `
<html><body>
<h1>Purchase #2</h1>
<div id="collapsibleSellerAddress"><div class="text-break"><div class="Name">Shop</div></div></div>
<table class="product-table"><tbody>
  <tr data-amount="1" data-price="1.5"><td><a href="/en/OnePiece/Products/Singles/Romance-Dawn/Zoro">Zoro</a></td></tr>
  <tr data-amount="2" data-price="1.5"><td><a href="/en/OnePiece/Products/Singles/Romance-Dawn/Zoro?language=1">Zoro</a></td></tr>
  <tr data-amount="1" data-price="3"><td><a href="/en/OnePiece/Products/Singles/Paramount-War/Luffy">Luffy</a></td></tr>
</tbody></table>
</body></html>`

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestImportOrderIDs(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, st.UpsertOrder(ctx, &models.Order{OrderID: "1", Type: models.OrderSell}))
	name := "Luffy full page"
	_, err := st.UpsertProduct(ctx, &models.Product{Source: testBase + "/Products/Singles/Paramount-War/Luffy", ProductName: &name})
	require.NoError(t, err)

	src := &searchSource{pages: map[string]string{
		testBase + "/Orders/2": importedOrder,
		testBase + "/Orders/3": `<html><body><h1>Login</h1></body></html>`,
	}}
	pacer := &recordingPacer{}
	c, err := New(src, st, NewSite(testBase), pacer, DefaultPolicy())
	require.NoError(t, err)

	var progress []string
	res, err := c.ImportOrderIDs(ctx, []string{"1", "2", "3"}, func(done, total int, id string) {
		progress = append(progress, fmt.Sprintf("%d/%d %s", done, total, id))
	})
	require.NoError(t, err)

	assert.Equal(t, ImportResult{Scanned: 3, Imported: 1, Skipped: 1, Empty: 1, Placeholders: 1}, res)
	assert.Equal(t, []string{testBase + "/Orders/2", testBase + "/Orders/3"}, src.fetched)
	assert.Equal(t, []string{"1/3 1", "2/3 2", "3/3 3"}, progress)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, pacer.waits)

	order, err := st.GetOrder(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, models.OrderBuy, order.Type)
	assert.Len(t, order.Articles, 3)

	zoro, err := st.GetProduct(ctx, "Singles/Romance-Dawn/Zoro")
	require.NoError(t, err)
	assert.True(t, zoro.IsPlaceholder())
	assert.Equal(t, testBase+"/Products/Singles/Romance-Dawn/Zoro", zoro.Source)

	luffy, err := st.GetProduct(ctx, "Singles/Paramount-War/Luffy")
	require.NoError(t, err)
	assert.Equal(t, "Luffy full page", *luffy.ProductName)

	has, err := st.HasOrder(ctx, "3")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestImportOrderIDs_StopsOnFailure(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	src := &searchSource{
		pages:  map[string]string{testBase + "/Orders/2": importedOrder},
		failOn: map[string]error{testBase + "/Orders/3": errs.New(errs.CodeTimeout, "navigate", context.DeadlineExceeded)},
	}
	c := newTestCrawler(t, src, st)

	res, err := c.ImportOrderIDs(ctx, []string{"2", "3", "4"}, nil)
	require.ErrorIs(t, err, errs.ErrTimeout)
	assert.NotContains(t, src.fetched, testBase+"/Orders/4")
	assert.Equal(t, 1, res.Imported)

	has, err := st.HasOrder(ctx, "2")
	require.NoError(t, err)
	assert.True(t, has, "orders imported before the failure stay stored")
}

func TestImportOrdersFromFile(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	src := &searchSource{pages: map[string]string{testBase + "/Orders/2": importedOrder}}
	c := newTestCrawler(t, src, st)

	path := filepath.Join(t.TempDir(), "ids.json")
	require.NoError(t, os.WriteFile(path, []byte(`["2", "2"]`), 0o600))

	res, err := c.ImportOrdersFromFile(ctx, path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Imported)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"ids": ["2"]}`), 0o600))
	_, err = c.ImportOrdersFromFile(ctx, bad, nil)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestFetchProduct(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	productURL := testBase + "/Products/Singles/Romance-Dawn/Zoro"
	src := &searchSource{pages: map[string]string{
		productURL:                 `<html><body><h1>Roronoa Zoro</h1><input name="idProduct" value="777"></body></html>`,
		testBase + "/Products/none": `<html><body></body></html>`,
	}}
	c := newTestCrawler(t, src, st)

	p, err := c.FetchProduct(ctx, productURL)
	require.NoError(t, err)
	assert.Equal(t, "Singles/Romance-Dawn/Zoro", p.ID)

	stored, err := st.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roronoa Zoro", *stored.ProductName)
	assert.False(t, stored.IsPlaceholder())

	_, err = c.FetchProduct(ctx, testBase+"/Products/none")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
