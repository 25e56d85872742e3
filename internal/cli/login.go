package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/law-makers/cmhistory/internal/auth"
	"github.com/law-makers/cmhistory/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the browser session",
	Long: `Start the browser, reuse the saved session if it is still valid and log in
otherwise. The resulting cookies and local storage are saved for later runs.

With --remember the password is stored in the OS keyring so it no longer has
to be set in the environment.`,
	Example: `  # Log in using CMH_USERNAME and CMH_PASSWORD
  cmhistory login

  # Log in and keep the password in the keyring
  cmhistory login --remember`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if _, err := a.EnsureSession(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(ui.Success("Logged in as " + a.Config.Username))
		fmt.Println(ui.Dim("Session saved to " + a.Config.StorageStatePath))

		remember, _ := cmd.Flags().GetBool("remember")
		if remember && a.Config.Password != "" {
			if err := auth.SavePassword(a.Config.Username, a.Config.Password); err != nil {
				return err
			}
			fmt.Println(ui.Dim("Password stored in the OS keyring"))
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().Bool("remember", false, "Store the password in the OS keyring")
	rootCmd.AddCommand(loginCmd)
}
