package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/cmhistory/internal/stats"
	"github.com/law-makers/cmhistory/pkg/models"
)

func TestCleanHTML(t *testing.T) {
	in := `<html><body><script>x()</script><div class="c" id="d"><a href="/x" onclick="y()" title="t">go</a><input name="q"></div></body></html>`
	got, err := CleanHTML(in)
	require.NoError(t, err)

	assert.NotContains(t, got, "script")
	assert.NotContains(t, got, "onclick")
	assert.NotContains(t, got, `class="c"`)
	assert.NotContains(t, got, "<input")
	assert.Contains(t, got, `<a href="/x" title="t">go</a>`)
}

func TestMarkdown_ResolvesLinks(t *testing.T) {
	got, err := Markdown(`<h1>Zoro</h1><p><a href="/en/OnePiece/Users/shop">shop</a></p>`, "https://market.test/en/OnePiece/Products/Zoro")
	require.NoError(t, err)
	assert.Contains(t, got, "# Zoro")
	assert.Contains(t, got, "[shop](https://market.test/en/OnePiece/Users/shop)")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"CSV", FormatCSV, false},
		{"markdown", FormatMarkdown, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestSortedOrderIDs(t *testing.T) {
	orders := map[string]*models.Order{"9": {}, "100": {}, "20": {}}
	assert.Equal(t, []string{"100", "20", "9"}, SortedOrderIDs(orders))
}

func TestOrdersCSV(t *testing.T) {
	user := "shop"
	total := 12.5
	orders := map[string]*models.Order{
		"1": {OrderID: "1", Type: models.OrderBuy, OtherUser: models.Counterparty{Username: &user},
			Timeline: models.Timeline{"arrived": {}}, Summary: &models.Summary{TotalPrice: &total}},
		"2": {OrderID: "2", Type: models.OrderSell,
			TimelineAlert: &models.TimelineAlert{Status: models.AlertCancelled, Message: "Order cancelled"}},
	}
	var buf bytes.Buffer
	Orders(&buf, orders, FormatCSV)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "order,type,counterparty,status,articles,total", strings.ToLower(lines[0]))
	assert.Equal(t, "2,sell,-,cancelled,-,-", lines[1])
	assert.Equal(t, "1,buy,shop,arrived,-,12.50", lines[2])
}

func TestStatsTable(t *testing.T) {
	var buf bytes.Buffer
	Stats(&buf, []stats.ArticleStats{{ArticleName: "Zoro", BuyCount: 2, NetPL: 1.5}}, FormatTable)
	out := buf.String()
	assert.Contains(t, out, "Zoro")
	assert.Contains(t, out, "1.50")
	assert.Contains(t, out, "0.00*")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
