package crawler

import (
	"time"

	"github.com/law-makers/cmhistory/internal/errs"
)

const day = 24 * time.Hour

// Policy holds the crawl heuristics. They are tuned to the marketplace
// search, which rejects ranges over 60 days and misses orders that sit
// exactly on a window boundary.
type Policy struct {
	// Span is the width of one search window.
	Span time.Duration
	// Overlap is how far the next window's upper bound reaches back into
	// the previous window.
	Overlap time.Duration
	// PageDelayMax bounds the random pause before each results page.
	PageDelayMax time.Duration
	// OrderDelayMax bounds the random pause before each order or product page.
	OrderDelayMax time.Duration
}

// DefaultPolicy returns 30-day windows overlapping by 15 days.
func DefaultPolicy() Policy {
	return Policy{
		Span:          30 * day,
		Overlap:       15 * day,
		PageDelayMax:  4 * time.Second,
		OrderDelayMax: 3 * time.Second,
	}
}

// Validate rejects policies under which the cursor would not move backward.
func (p Policy) Validate() error {
	if p.Span <= 0 {
		return errs.Newf(errs.CodeConfig, "window span must be positive, got %s", p.Span)
	}
	if p.Overlap < 0 || p.Overlap >= p.Span {
		return errs.Newf(errs.CodeConfig, "window overlap %s must be in [0, %s)", p.Overlap, p.Span)
	}
	if p.PageDelayMax < 0 || p.OrderDelayMax < 0 {
		return errs.Newf(errs.CodeConfig, "delays must not be negative")
	}
	return nil
}

// Window is one bounded search range; Start is the older bound.
type Window struct {
	Start time.Time
	End   time.Time
}

// window computes the range ending at cursor, clamped to the optional
// lower bound.
func (p Policy) window(cursor time.Time, lower *time.Time) Window {
	start := cursor.Add(-p.Span)
	if lower != nil && start.Before(*lower) {
		start = *lower
	}
	return Window{Start: start, End: cursor}
}

// exhausts reports whether w reached the lower bound.
func (w Window) exhausts(lower *time.Time) bool {
	return lower != nil && !w.Start.After(*lower)
}

// next returns the cursor for the window after w.
func (p Policy) next(w Window) time.Time {
	return w.Start.Add(p.Overlap)
}
