// Package cli provides the command-line interface for cmhistory.
package cli

import (
	"errors"
	"sync"

	"github.com/law-makers/cmhistory/internal/app"
)

var (
	appMu     sync.Mutex
	globalApp *app.Application
)

func setApp(a *app.Application) {
	appMu.Lock()
	defer appMu.Unlock()
	globalApp = a
}

func currentApp() *app.Application {
	appMu.Lock()
	defer appMu.Unlock()
	return globalApp
}

// getApp returns the application built by the root pre-run hook.
func getApp() (*app.Application, error) {
	if a := currentApp(); a != nil {
		return a, nil
	}
	return nil, errors.New("application not initialized")
}
