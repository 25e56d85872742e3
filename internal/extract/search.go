package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// OrderIDs lists the order identifiers of one search results page in page order.
func OrderIDs(htmlContent, sourceURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page %s: %w", sourceURL, err)
	}

	ids := []string{}
	doc.Find("#StatusTable > .table-body > div").Each(func(_ int, row *goquery.Selection) {
		if id := strings.TrimSpace(row.ChildrenFiltered("div:nth-child(2)").Text()); id != "" {
			ids = append(ids, id)
		}
	})
	return ids, nil
}
