package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/cmhistory/pkg/models"
)

// Labels of the rolling averages in the product info list.
const (
	label1DayAverage  = "1-day average price"
	label7DayAverage  = "7-days average price"
	label30DayAverage = "30-days average price"
)

var (
	articleRowPattern = regexp.MustCompile(`articleRow(\d+)`)
	locationPattern   = regexp.MustCompile(`(?i)Item location:\s*(.+)`)
	digitsPattern     = regexp.MustCompile(`\d+`)
)

// Product parses a product detail page.
func Product(htmlContent, sourceURL string) (*models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse product page: %w", err)
	}

	info := infoList(doc)
	p := &models.Product{
		Source:      sourceURL,
		ProductName: textOrNil(doc.Find("h1").First().Text()),
		Offers:      offers(doc),
		InfoList:    info,
		PriceAverages: models.PriceAverages{
			Average1Day:  ParseMoney(info[label1DayAverage]),
			Average7Day:  ParseMoney(info[label7DayAverage]),
			Average30Day: ParseMoney(info[label30DayAverage]),
		},
	}
	if v, ok := doc.Find("input[name='idProduct']").Attr("value"); ok {
		p.ProductID = textOrNil(v)
	}
	return p, nil
}

// infoList pairs the labels and values of the info description list by
// position, stopping at the shorter of the two.
func infoList(doc *goquery.Document) map[string]string {
	info := map[string]string{}
	terms := doc.Find("#tabContent-info dl.labeled dt")
	values := doc.Find("#tabContent-info dl.labeled dd")
	n := min(terms.Length(), values.Length())
	for i := 0; i < n; i++ {
		key := strings.TrimSpace(terms.Eq(i).Text())
		if key == "" {
			continue
		}
		info[key] = strings.TrimSpace(values.Eq(i).Text())
	}
	return info
}

func offers(doc *goquery.Document) []models.Offer {
	out := []models.Offer{}
	doc.Find(".article-row").Each(func(_ int, row *goquery.Selection) {
		offer := models.Offer{
			PriceEach: ParseMoney(row.Find(".col-offer .price-container .color-primary").First().Text()),
			Stock:     parseInteger(row.Find(".col-offer .amount-container span.item-count").First().Text()),
			Comment:   textOrNil(row.Find(".product-comments .d-block").First().Text()),
			Seller:    seller(row),
		}
		if id, ok := row.Attr("id"); ok {
			if m := articleRowPattern.FindStringSubmatch(id); m != nil {
				offer.ArticleID = &m[1]
			}
		}
		if title, ok := row.Find(".article-condition").Attr("title"); ok {
			offer.Condition = textOrNil(title)
		}
		if offer.Condition == nil {
			offer.Condition = textOrNil(row.Find(".article-condition .badge").First().Text())
		}
		if title, ok := row.Find(".product-attributes span.icon[title]").First().Attr("title"); ok {
			offer.Language = textOrNil(title)
		}
		out = append(out, offer)
	})
	return out
}

func seller(row *goquery.Selection) models.SellerInfo {
	anchor := row.Find(".seller-name a").First()
	info := models.SellerInfo{
		Username:              textOrNil(anchor.Text()),
		EstimatedDeliveryDays: parseInteger(row.Find(".shippingTime-info").Text()),
		Professional:          row.Find(".seller-name .fonticon-users-professional").Length() > 0,
	}
	if href, ok := anchor.Attr("href"); ok {
		info.ProfileURL = &href
	}
	if title, ok := row.Find(".seller-name span[title^='Item location']").Attr("title"); ok {
		info.Location = sellerLocation(title)
	}
	if title, ok := row.Find(".seller-extended span[class*='fonticon-seller-rating']").First().Attr("title"); ok {
		info.Rating = textOrNil(title)
	}
	if title, ok := row.Find(".sell-count").Attr("title"); ok {
		info.SalesCount, info.AvailableItems = salesBadge(title)
	}
	return info
}

func sellerLocation(title string) *string {
	if m := locationPattern.FindStringSubmatch(title); m != nil {
		return textOrNil(m[1])
	}
	return textOrNil(title)
}

// salesBadge reads "<sales> Sales | <items> Available items" style titles.
func salesBadge(title string) (sales, available *int) {
	nums := digitsPattern.FindAllString(title, 2)
	at := func(i int) *int {
		if i >= len(nums) {
			return nil
		}
		n, err := strconv.Atoi(nums[i])
		if err != nil {
			return nil
		}
		return &n
	}
	return at(0), at(1)
}
