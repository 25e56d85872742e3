// Package models holds the records produced by page extraction and kept by the store.
package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// OrderType tells whether the account bought or sold in an order.
type OrderType string

const (
	OrderBuy  OrderType = "buy"
	OrderSell OrderType = "sell"
)

// Role selects which side of the order history a search covers.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// AlertStatus classifies a timeline alert. The empty value encodes as JSON null.
type AlertStatus string

const (
	AlertNone       AlertStatus = ""
	AlertCancelled  AlertStatus = "cancelled"
	AlertNotArrived AlertStatus = "notArrived"
)

// MarshalJSON writes null for AlertNone.
func (s AlertStatus) MarshalJSON() ([]byte, error) {
	if s == AlertNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts null, a known status, or anything else as AlertNone.
func (s *AlertStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = AlertNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch AlertStatus(raw) {
	case AlertCancelled, AlertNotArrived:
		*s = AlertStatus(raw)
	default:
		*s = AlertNone
	}
	return nil
}

// TimelineEntry is the date and time printed next to one milestone.
type TimelineEntry struct {
	Date *string `json:"date"`
	Time *string `json:"time"`
}

// Timeline maps lower-cased milestone labels ("paid", "sent", "arrived") to their entry.
type Timeline map[string]TimelineEntry

// TimelineAlert is an exceptional event shown above the timeline.
type TimelineAlert struct {
	Status  AlertStatus `json:"status"`
	Message string      `json:"message"`
	Date    *string     `json:"date"`
	Time    *string     `json:"time"`
}

// Counterparty identifies the other user of an order.
type Counterparty struct {
	Username *string `json:"username"`
	Location *string `json:"location"`
}

// Address is a postal address block.
type Address struct {
	Name    *string `json:"name"`
	Extra   *string `json:"extra"`
	Street  *string `json:"street"`
	City    *string `json:"city"`
	Country *string `json:"country"`
}

// IsEmpty reports whether no field of the address is set.
func (a Address) IsEmpty() bool {
	return a.Name == nil && a.Extra == nil && a.Street == nil && a.City == nil && a.Country == nil
}

// Summary holds the order totals.
type Summary struct {
	ArticleCount   *int     `json:"articleCount"`
	ItemValue      *float64 `json:"itemValue"`
	ShippingPrice  *float64 `json:"shippingPrice"`
	TrusteeService *float64 `json:"trusteeService"`
	TotalPrice     *float64 `json:"totalPrice"`
}

// RefundTotals maps a counterparty name to the sum of its refunds.
type RefundTotals map[string]float64

// Shipping describes how an order travelled and what was refunded.
type Shipping struct {
	ShippingMethod *string      `json:"shippingMethod"`
	TrackingCode   *string      `json:"trackingCode"`
	RefundTotals   RefundTotals `json:"refundTotals"`
}

// ArticleLine is one line item of an order.
type ArticleLine struct {
	Name              string   `json:"name"`
	Amount            *int     `json:"amount"`
	Link              *string  `json:"link"`
	ExpansionName     *string  `json:"expansionName"`
	CollectorNumber   *string  `json:"collectorNumber"`
	Condition         *string  `json:"condition"`
	Language          *string  `json:"language"`
	PriceEach         *float64 `json:"priceEach"`
	RowTotalDisplayed *float64 `json:"rowTotalDisplayed"`
	Comment           *string  `json:"comment"`
}

// Order is one marketplace transaction, keyed by OrderID.
type Order struct {
	Source           string         `json:"source"`
	OrderID          string         `json:"orderId"`
	Type             OrderType      `json:"type"`
	OtherUser        Counterparty   `json:"otherUser"`
	Timeline         Timeline       `json:"timeline"`
	TimelineAlert    *TimelineAlert `json:"timelineAlert"`
	Summary          *Summary       `json:"summary"`
	OtherUserAddress *Address       `json:"otherUserAddress"`
	UserAddress      *Address       `json:"userAddress"`
	Shipping         *Shipping      `json:"shipping"`
	Articles         []ArticleLine  `json:"articles"`
}

// HasMilestone reports whether the timeline records the given stage.
func (o *Order) HasMilestone(stage string) bool {
	_, ok := o.Timeline[stage]
	return ok
}

// PriceAverages are the rolling average prices shown on a product page.
type PriceAverages struct {
	Average1Day  *float64 `json:"average1Day"`
	Average7Day  *float64 `json:"average7Day"`
	Average30Day *float64 `json:"average30Day"`
}

// SellerInfo describes the seller behind an offer.
type SellerInfo struct {
	Username              *string `json:"username"`
	ProfileURL            *string `json:"profileUrl"`
	Location              *string `json:"location"`
	Rating                *string `json:"rating"`
	SalesCount            *int    `json:"salesCount"`
	AvailableItems        *int    `json:"availableItems"`
	EstimatedDeliveryDays *int    `json:"estimatedDeliveryDays"`
	Professional          bool    `json:"professional"`
}

// Offer is one listing row on a product page.
type Offer struct {
	ArticleID *string    `json:"articleId"`
	PriceEach *float64   `json:"priceEach"`
	Stock     *int       `json:"stock"`
	Condition *string    `json:"condition"`
	Language  *string    `json:"language"`
	Comment   *string    `json:"comment"`
	Seller    SellerInfo `json:"seller"`
}

// Product is a product detail page. ID is the canonical slug assigned by the store.
// A zero LastFetched marks a placeholder that has never been fetched.
type Product struct {
	ID            string            `json:"id,omitempty"`
	Source        string            `json:"source"`
	ProductName   *string           `json:"productName"`
	ProductID     *string           `json:"productId"`
	Offers        []Offer           `json:"offers,omitempty"`
	InfoList      map[string]string `json:"infoList,omitempty"`
	PriceAverages PriceAverages     `json:"priceAverages"`
	Favorite      bool              `json:"favorite"`
	LastFetched   time.Time         `json:"lastFetched"`
}

// IsPlaceholder reports whether the product was created from an order reference only.
func (p *Product) IsPlaceholder() bool {
	return p.LastFetched.IsZero()
}
