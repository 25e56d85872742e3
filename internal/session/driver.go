package session

import (
	"context"
	"time"
)

// Driver is a single browser tab. The manager never uses it concurrently.
type Driver interface {
	// Navigate loads url and waits for the document to finish loading.
	Navigate(ctx context.Context, url string) error
	// HTML returns the outer HTML of the current document.
	HTML(ctx context.Context) (string, error)
	// Visible reports whether selector becomes visible within timeout.
	// Running out of time is a false result, not an error.
	Visible(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// WaitVisible fails when selector is not visible within timeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Type replaces the value of the input matched by selector.
	Type(ctx context.Context, selector, value string) error
	// Submit focuses selector and presses Enter.
	Submit(ctx context.Context, selector string) error
	// WaitSettled waits until the current document is ready.
	WaitSettled(ctx context.Context) error
	// ExportState captures cookies and local storage.
	ExportState(ctx context.Context) (*StorageState, error)
	// ImportState seeds the browser with a previously exported state.
	ImportState(ctx context.Context, st *StorageState) error
	// ClearState drops all cookies and local storage.
	ClearState(ctx context.Context) error
	// Close releases the browser.
	Close() error
}

// DriverFactory starts a browser.
type DriverFactory func(ctx context.Context) (Driver, error)
