// Package extract turns rendered marketplace pages into typed records.
//
// Every function here is a pure function of the HTML and its source URL.
// Absent optional elements produce nil fields, never errors.
package extract

import (
	"fmt"
	"strings"

	"github.com/law-makers/cmhistory/pkg/models"
)

// Kind names a page shape the extractor understands.
type Kind string

const (
	KindOrder   Kind = "order"
	KindProduct Kind = "product"
	KindSearch  Kind = "search"
)

// ParseKind maps a user supplied name onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindOrder, KindProduct, KindSearch:
		return k, nil
	}
	return "", fmt.Errorf("unknown page kind %q (want order, product or search)", s)
}

// Result carries exactly one of its fields, chosen by the Kind that produced it.
type Result struct {
	Kind     Kind            `json:"kind"`
	Order    *models.Order   `json:"order,omitempty"`
	Product  *models.Product `json:"product,omitempty"`
	OrderIDs []string        `json:"orderIds,omitempty"`
}

// Page dispatches to the extractor for kind.
func Page(kind Kind, htmlContent, sourceURL string) (*Result, error) {
	res := &Result{Kind: kind}
	var err error
	switch kind {
	case KindOrder:
		res.Order, err = Order(htmlContent, sourceURL)
	case KindProduct:
		res.Product, err = Product(htmlContent, sourceURL)
	case KindSearch:
		res.OrderIDs, err = OrderIDs(htmlContent, sourceURL)
	default:
		return nil, fmt.Errorf("unknown page kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
