package extract

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// SiteOrigin is used to resolve relative article links before taking their path.
const SiteOrigin = "https://www.cardmarket.com"

var integerPattern = regexp.MustCompile(`-?\d+`)

// ParseMoney converts a locale-formatted amount such as "1.234,56 €" into 1234.56.
// Dots are thousands separators and the first comma is the decimal separator.
// It returns nil for anything that does not reduce to a finite number.
func ParseMoney(text string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '€' || r == '.' {
			return -1
		}
		return r
	}, text)
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	return parseFinite(cleaned)
}

// NameFromHref derives a display name from the last path segment of a link,
// with hyphens turned into spaces: ".../Singles/Expansion/Card-Name" gives "Card Name".
func NameFromHref(href string) string {
	if href == "" {
		return ""
	}
	path := href
	if base, err := url.Parse(SiteOrigin); err == nil {
		if ref, err := url.Parse(href); err == nil {
			path = base.ResolveReference(ref).Path
		}
	}
	var last string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			last = part
		}
	}
	return strings.ReplaceAll(last, "-", " ")
}

// ProductSlug returns the part of a product link following "/products/",
// matched case-insensitively, with surrounding slashes removed.
// It returns "" when the link does not point at a product.
func ProductSlug(link string) string {
	idx := strings.Index(strings.ToLower(link), "/products/")
	if idx < 0 {
		return ""
	}
	slug := link[idx+len("/products/"):]
	if cut := strings.IndexAny(slug, "?#"); cut >= 0 {
		slug = slug[:cut]
	}
	return strings.Trim(slug, "/")
}

func parseFinite(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return nil
	}
	return &n
}

// parseInteger reads the first run of digits (with an optional minus sign) in text.
func parseInteger(text string) *int {
	m := integerPattern.FindString(text)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// parseCount parses a whole-number attribute value.
func parseCount(s string) *int {
	f := parseFinite(s)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}
	n := int(*f)
	return &n
}

// textOrNil trims s and returns nil when nothing is left.
func textOrNil(s string) *string {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	return &t
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
