package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/law-makers/cmhistory/internal/stats"
	"github.com/law-makers/cmhistory/pkg/models"
)

// Format selects how tables are rendered.
type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts table, csv and markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatCSV, FormatMarkdown:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, csv or markdown)", s)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func render(t table.Writer, f Format) {
	switch f {
	case FormatCSV:
		t.RenderCSV()
	case FormatMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
}

func money(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func str(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func num(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}

// SortedOrderIDs returns the keys of orders, newest identifier first.
func SortedOrderIDs(orders map[string]*models.Order) []string {
	ids := make([]string, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) > len(ids[j])
		}
		return ids[i] > ids[j]
	})
	return ids
}

// status is the alert status if any, else the latest timeline stage.
func status(o *models.Order) string {
	if o.TimelineAlert != nil && o.TimelineAlert.Status != models.AlertNone {
		return string(o.TimelineAlert.Status)
	}
	for _, stage := range []string{"arrived", "shipped", "sent", "paid", "bought", "sold"} {
		if o.HasMilestone(stage) {
			return stage
		}
	}
	return "-"
}

// Orders renders one row per order.
func Orders(w io.Writer, orders map[string]*models.Order, f Format) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Order", "Type", "Counterparty", "Status", "Articles", "Total"})
	for _, id := range SortedOrderIDs(orders) {
		o := orders[id]
		var articles *int
		var total *float64
		if o.Summary != nil {
			articles, total = o.Summary.ArticleCount, o.Summary.TotalPrice
		}
		t.AppendRow(table.Row{o.OrderID, o.Type, str(o.OtherUser.Username), status(o), num(articles), money(total)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Orders", len(orders)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	render(t, f)
}

// OrderDetail renders the article lines of one order under a short header.
func OrderDetail(w io.Writer, o *models.Order, f Format) {
	fmt.Fprintf(w, "Order %s (%s) with %s\n", o.OrderID, o.Type, str(o.OtherUser.Username))
	if o.TimelineAlert != nil {
		fmt.Fprintf(w, "Alert: %s\n", o.TimelineAlert.Message)
	}
	if o.Shipping != nil {
		fmt.Fprintf(w, "Shipping: %s, tracking %s\n", str(o.Shipping.ShippingMethod), str(o.Shipping.TrackingCode))
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Article", "Expansion", "No.", "Cond.", "Lang.", "Qty", "Each", "Total"})
	for _, a := range o.Articles {
		t.AppendRow(table.Row{a.Name, str(a.ExpansionName), str(a.CollectorNumber), str(a.Condition), str(a.Language), num(a.Amount), money(a.PriceEach), money(a.RowTotalDisplayed)})
	}
	if o.Summary != nil {
		t.AppendFooter(table.Row{"", "", "", "", "", "Shipping", "", money(o.Summary.ShippingPrice)})
		t.AppendFooter(table.Row{"", "", "", "", "", "Total", "", money(o.Summary.TotalPrice)})
	}
	render(t, f)
}

// Products renders stored products.
func Products(w io.Writer, products []*models.Product, f Format) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Product", "Name", "7d avg", "30d avg", "Fav", "Fetched"})
	for _, p := range products {
		fetched := "never"
		if !p.IsPlaceholder() {
			fetched = p.LastFetched.Format("2006-01-02 15:04")
		}
		fav := ""
		if p.Favorite {
			fav = "*"
		}
		t.AppendRow(table.Row{p.ID, str(p.ProductName), money(p.PriceAverages.Average7Day), money(p.PriceAverages.Average30Day), fav, fetched})
	}
	render(t, f)
}

// Stats renders article statistics with a totals footer.
func Stats(w io.Writer, rows []stats.ArticleStats, f Format) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Article", "Bought", "Sold", "Held", "Avg buy", "Avg sell", "Market", "Realized", "Unrealized", "Net"})
	for _, r := range rows {
		market := fmt.Sprintf("%.2f", r.MarketPrice)
		if !r.MarketPriced {
			market += "*"
		}
		t.AppendRow(table.Row{
			r.ArticleName, r.BuyCount, r.SellCount, r.HoldingCount,
			fmt.Sprintf("%.2f", r.AvgBuyPrice), fmt.Sprintf("%.2f", r.AvgSellPrice), market,
			fmt.Sprintf("%.2f", r.RealizedPL), fmt.Sprintf("%.2f", r.UnrealizedPL), fmt.Sprintf("%.2f", r.NetPL),
		})
	}
	sum := stats.Sum(rows)
	t.AppendFooter(table.Row{"Total", "", "", "", "", "", "",
		fmt.Sprintf("%.2f", sum.RealizedPL), fmt.Sprintf("%.2f", sum.UnrealizedPL), fmt.Sprintf("%.2f", sum.NetPL)})
	cfgs := make([]table.ColumnConfig, 0, 9)
	for n := 2; n <= 10; n++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	t.SetColumnConfigs(cfgs)
	render(t, f)
}
