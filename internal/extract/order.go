package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/cmhistory/pkg/models"
)

var (
	orderIDPattern = regexp.MustCompile(`#(\d+)`)
	alertStamp     = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4})\s+(\d{2}:\d{2}:\d{2})$`)
	refundPattern  = regexp.MustCompile(`(?i)refund\s*([\d.,]+)\s*€`)
)

// Order parses an order detail page. Missing elements leave fields nil.
// A page without an order heading yields an Order whose OrderID is empty;
// callers treat that as "no data".
func Order(htmlContent, sourceURL string) (*models.Order, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse order page: %w", err)
	}

	otherAddr := address(doc, "#collapsibleSellerAddress .text-break")
	order := &models.Order{
		Source:           sourceURL,
		OrderID:          orderID(doc),
		Type:             models.OrderSell,
		OtherUser:        counterparty(doc),
		Timeline:         timeline(doc),
		TimelineAlert:    timelineAlert(doc),
		Summary:          summary(doc),
		OtherUserAddress: otherAddr,
		UserAddress:      address(doc, "#ShippingAddress"),
		Shipping:         shipping(doc),
		Articles:         articles(doc),
	}
	if otherAddr != nil {
		order.Type = models.OrderBuy
	}
	return order, nil
}

func orderID(doc *goquery.Document) string {
	m := orderIDPattern.FindStringSubmatch(doc.Find("h1").First().Text())
	if m == nil {
		return ""
	}
	return m[1]
}

func counterparty(doc *goquery.Document) models.Counterparty {
	user := doc.Find(`#SellerBuyerInfo a[href*="/Users/"]`).First()
	var location *string
	if title, ok := doc.Find(`#SellerBuyerInfo [title^="Item location:"]`).First().Attr("title"); ok {
		location = textOrNil(strings.Replace(title, "Item location:", "", 1))
	}
	return models.Counterparty{
		Username: textOrNil(user.Text()),
		Location: location,
	}
}

func address(doc *goquery.Document, selector string) *models.Address {
	root := doc.Find(selector)
	if root.Length() == 0 {
		return nil
	}
	pick := func(class string) *string {
		return textOrNil(root.Find(class).First().Text())
	}
	addr := models.Address{
		Name:    pick(".Name"),
		Extra:   pick(".Extra"),
		Street:  pick(".Street"),
		City:    pick(".City"),
		Country: pick(".Country"),
	}
	if addr.IsEmpty() {
		return nil
	}
	return &addr
}

func timeline(doc *goquery.Document) models.Timeline {
	out := models.Timeline{}
	doc.Find("#Timeline .timeline-box").Each(func(_ int, box *goquery.Selection) {
		divs := box.Find("div")
		label := strings.TrimSpace(strings.ReplaceAll(divs.First().Text(), "\u00a0", " "))
		key := strings.ToLower(strings.Replace(label, ":", "", 1))
		if key == "" {
			return
		}
		spans := divs.Eq(1).Find("span")
		out[key] = models.TimelineEntry{
			Date: textOrNil(spans.Eq(0).Text()),
			Time: textOrNil(spans.Eq(1).Text()),
		}
	})
	return out
}

func timelineAlert(doc *goquery.Document) *models.TimelineAlert {
	block := doc.Find(`#Timeline > div[role='alert']`).First()
	if block.Length() == 0 {
		return nil
	}
	text := collapseSpace(block.Text())
	if text == "" {
		return nil
	}

	alert := &models.TimelineAlert{Message: text}
	if loc := alertStamp.FindStringSubmatchIndex(text); loc != nil {
		alert.Message = strings.TrimSpace(text[:loc[0]])
		date, clock := text[loc[2]:loc[3]], text[loc[4]:loc[5]]
		alert.Date, alert.Time = &date, &clock
	}
	alert.Status = alertStatus(alert.Message)
	return alert
}

func alertStatus(message string) models.AlertStatus {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "cancelled"), strings.Contains(lower, "canceled"):
		return models.AlertCancelled
	case strings.Contains(lower, "not arrived"):
		return models.AlertNotArrived
	}
	return models.AlertNone
}

// summary reads the data attributes of the summary block, falling back to
// the formatted text cell separately for every field.
func summary(doc *goquery.Document) *models.Summary {
	block := doc.Find(".summary").First()
	if block.Length() == 0 {
		return nil
	}
	money := func(attr, fallback string) *float64 {
		if v, ok := block.Attr(attr); ok {
			if n := parseFinite(v); n != nil {
				return n
			}
		}
		return ParseMoney(block.Find(fallback).First().Text())
	}

	s := &models.Summary{
		ItemValue:      money("data-item-value", ".item-value"),
		ShippingPrice:  money("data-shipping-price", ".shipping-price"),
		TrusteeService: money("data-internal-insurance", ".service-cost"),
		TotalPrice:     money("data-total-price", ".strong.total"),
	}
	if v, ok := block.Attr("data-article-count"); ok {
		s.ArticleCount = parseCount(v)
	}
	if s.ArticleCount == nil {
		s.ArticleCount = parseInteger(block.Find(".article-count").First().Text())
	}
	return s
}

func shipping(doc *goquery.Document) *models.Shipping {
	container := doc.Find("#collapsibleOtherInfo")
	if container.Length() == 0 {
		return nil
	}

	var method, tracking *string
	container.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(dt.Text()))
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		switch {
		case strings.HasPrefix(label, "shipping method"):
			method = textOrNil(dd.ChildrenFiltered("span").First().Text())
			if method == nil {
				method = textOrNil(dd.Text())
			}
		case strings.HasPrefix(label, "tracking code"):
			tracking = textOrNil(dd.Find("a").First().Text())
			if tracking == nil {
				tracking = textOrNil(dd.Text())
			}
		}
	})

	refunds := refundTotals(doc)
	if method == nil && tracking == nil && refunds == nil {
		return nil
	}
	return &models.Shipping{
		ShippingMethod: method,
		TrackingCode:   tracking,
		RefundTotals:   refunds,
	}
}

// refundTotals sums refund notes per counterparty. Rows without a name or
// a readable amount are skipped.
func refundTotals(doc *goquery.Document) models.RefundTotals {
	totals := models.RefundTotals{}
	doc.Find("#collapsibleShipmentHistory .row").Each(func(_ int, row *goquery.Selection) {
		if !strings.Contains(strings.ToLower(row.Text()), "refund") {
			return
		}
		who := textOrNil(row.Find("a").First().Text())
		if who == nil {
			return
		}
		m := refundPattern.FindStringSubmatch(strings.TrimSpace(row.Find(".col").Last().Text()))
		if m == nil {
			return
		}
		amount := ParseMoney(m[1])
		if amount == nil {
			return
		}
		totals[*who] += *amount
	})
	if len(totals) == 0 {
		return nil
	}
	return totals
}

func articles(doc *goquery.Document) []models.ArticleLine {
	lines := []models.ArticleLine{}
	doc.Find("table.product-table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		href, _ := tr.Find("a[href]").First().Attr("href")
		name := NameFromHref(href)
		if name == "" {
			return
		}

		line := models.ArticleLine{
			Name:              name,
			Link:              textOrNil(href),
			ExpansionName:     attrText(tr, "data-expansion-name"),
			CollectorNumber:   attrText(tr, "data-number"),
			Comment:           attrText(tr, "data-comment"),
			Condition:         textOrNil(tr.Find(".article-condition .badge").First().Text()),
			RowTotalDisplayed: ParseMoney(tr.Find("td.price").Last().Text()),
		}
		if v, ok := tr.Attr("data-amount"); ok {
			line.Amount = parseCount(v)
		}
		if v, ok := tr.Attr("data-price"); ok {
			line.PriceEach = parseFinite(v)
		}
		if title, ok := tr.Find("[title]").First().Attr("title"); ok {
			line.Language = textOrNil(title)
		}
		lines = append(lines, line)
	})
	return lines
}

func attrText(s *goquery.Selection, name string) *string {
	v, ok := s.Attr(name)
	if !ok {
		return nil
	}
	return textOrNil(v)
}
