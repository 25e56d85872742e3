package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/law-makers/cmhistory/internal/errs"
	"github.com/law-makers/cmhistory/pkg/models"
)

// DefaultBaseURL is the marketplace section the tool reads.
const DefaultBaseURL = "https://www.cardmarket.com/en/OnePiece"

// DefaultShipmentStatus selects finished orders in the search form.
const DefaultShipmentStatus = "200"

const searchDateLayout = "2006-01-02"

// Site builds the marketplace URLs the crawler visits.
type Site struct {
	BaseURL string
}

// NewSite returns a Site rooted at base.
func NewSite(base string) Site {
	if base == "" {
		base = DefaultBaseURL
	}
	return Site{BaseURL: strings.TrimRight(base, "/")}
}

func (s Site) Home() string  { return s.BaseURL }
func (s Site) Login() string { return s.BaseURL + "/Login" }

// Order is the detail page of one order.
func (s Site) Order(id string) string {
	return s.BaseURL + "/Orders/" + url.PathEscape(id)
}

// Product is the canonical product page for slug, used as the source of placeholders.
func (s Site) Product(slug string) string {
	return s.BaseURL + "/Products/" + slug
}

// Search is one page of the order search for the window [from, to].
func (s Site) Search(role models.Role, status string, from, to time.Time, page int) string {
	q := url.Values{}
	q.Set("userType", string(role))
	q.Set("minDate", from.Format(searchDateLayout))
	q.Set("maxDate", to.Format(searchDateLayout))
	q.Set("shipmentStatus", status)
	q.Set("site", strconv.Itoa(page))
	return s.BaseURL + "/Orders/Search/Results?" + q.Encode()
}

// Resolve turns href into an absolute URL on the site. Relative paths
// resolve against the base; absolute URLs must be http(s) on the base host
// so the logged-in browser never visits another origin.
func (s Site) Resolve(href string) (string, error) {
	base, err := url.Parse(s.BaseURL + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || href == "" {
		return "", errs.Newf(errs.CodeValidation, "invalid URL %q", href)
	}
	if !u.IsAbs() {
		return base.ResolveReference(u).String(), nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errs.Newf(errs.CodeValidation, "invalid URL scheme: must be http or https, got %s", u.Scheme)
	}
	if !strings.EqualFold(u.Host, base.Host) {
		return "", errs.Newf(errs.CodeValidation, "URL host %s is not %s", u.Host, base.Host)
	}
	return u.String(), nil
}
