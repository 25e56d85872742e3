package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/cmhistory/internal/app"
	"github.com/law-makers/cmhistory/internal/config"
	"github.com/law-makers/cmhistory/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cmhistory",
	Short: "Archive your Cardmarket order history locally",
	Long: `cmhistory logs in to Cardmarket with a real browser, walks your purchase and
sale history and keeps every order, article line and referenced product in a
local SQLite database.

Credentials come from CMH_USERNAME and CMH_PASSWORD (a .env file works too),
a config file, or the OS keyring after "cmhistory login --remember".`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI under ctx. Cancelling ctx stops a running crawl
// after the current page.
func Execute(ctx context.Context) int {
	// cobra skips post-run hooks when a command fails, so close here.
	defer closeApp()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.Error("Error: "+err.Error()))
		return 1
	}
	return 0
}

func init() {
	// The application is built lazily so -h and --version never touch the database.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if currentApp() != nil {
			return nil
		}
		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		setApp(a)
		return nil
	}

	config.RegisterFlags(rootCmd)

	rootCmd.Flags().BoolP("help", "h", false, "Help for cmhistory")
	rootCmd.Flags().Bool("version", false, "Version for cmhistory")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpFunc(customHelpFunc)
	rootCmd.SetUsageFunc(customUsageFunc)
}

// closeApp releases the browser and the database. It is safe to call twice.
func closeApp() {
	a := currentApp()
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Close(ctx)
	setApp(nil)
}
