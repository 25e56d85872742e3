package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Log and print in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to a JSON5 configuration file (optional)")
	cmd.PersistentFlags().String("base-url", "", "Marketplace base URL")
	cmd.PersistentFlags().String("db", "", "Path to the SQLite history database")
	cmd.PersistentFlags().String("state", "", "Path to the browser session state file")
	cmd.PersistentFlags().String("proxy", "", "Set HTTP/SOCKS5 proxy for the browser (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", "", "Navigation timeout (e.g., 45s)")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().String("chrome-path", "", "Browser executable to launch")
	cmd.PersistentFlags().Bool("show-browser", false, "Run the browser with a visible window")
}
