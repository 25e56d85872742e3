package config

import "time"

// Default constants for application configuration
const (
	DefaultBaseURL           = "https://www.cardmarket.com/en/OnePiece"
	DefaultLogLevel          = "error"
	DefaultJSONLog           = false
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
	DefaultLocale            = "en-GB"
	DefaultAcceptLanguage    = "en-US"
	DefaultHeadless          = true
	DefaultNavigationTimeout = 30 * time.Second
	DefaultElementTimeout    = 10 * time.Second
	DefaultSettleDelay       = 250 * time.Millisecond
	DefaultPageDelayMax      = 4 * time.Second
	DefaultOrderDelayMax     = 3 * time.Second
	DefaultWindowSpanDays    = 30
	DefaultWindowOverlapDays = 15
	DefaultRateLimitRPS      = 0.5
	DefaultRateLimitBurst    = 1
	DefaultRetryAttempts     = 1

	// DataDirName sits under the user's home and holds the database and session state.
	DataDirName      = ".cmhistory"
	DefaultDBFile    = "history.db"
	DefaultStateFile = "storage-state.json"
	EnvPrefix        = "CMH_"
)
