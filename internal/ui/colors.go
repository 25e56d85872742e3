// Package ui styles CLI output with ANSI escapes.
package ui

import (
	"os"
	"sync"
)

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

var (
	colorOnce sync.Once
	colorOn   bool
)

// Enabled reports whether styling is applied. NO_COLOR turns it off.
func Enabled() bool {
	colorOnce.Do(func() {
		_, noColor := os.LookupEnv("NO_COLOR")
		colorOn = !noColor
	})
	return colorOn
}

func style(codes, s string) string {
	if !Enabled() {
		return s
	}
	return codes + s + ColorReset
}

func Bold(s string) string    { return style(ColorBold, s) }
func Dim(s string) string     { return style(ColorDim, s) }
func Cyan(s string) string    { return style(ColorCyan, s) }
func Yellow(s string) string  { return style(ColorYellow, s) }
func Success(s string) string { return style(ColorGreen, s) }
func Info(s string) string    { return style(ColorDim+ColorYellow, s) }
func Error(s string) string   { return style(ColorRed, s) }

// Heading is a command title.
func Heading(s string) string { return style(ColorBold+ColorCyan, s) }

// Section is a help section title.
func Section(s string) string { return style(ColorBold+ColorWhite, s) }

// Profit colors a signed amount green or red.
func Profit(v float64, s string) string {
	if v < 0 {
		return Error(s)
	}
	return Success(s)
}
