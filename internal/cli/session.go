package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/cmhistory/internal/auth"
	"github.com/law-makers/cmhistory/internal/output"
	"github.com/law-makers/cmhistory/internal/ui"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or clear the saved browser session",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved session file and when it expires",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		st, err := a.SessionStatus()
		if err != nil {
			return err
		}
		if a.Config.JSONLog {
			return output.WriteJSON(os.Stdout, st)
		}

		fmt.Printf("%s %s\n", ui.Bold("File:"), st.Path)
		if !st.Exists {
			fmt.Println(ui.Info("No saved session. Run \"cmhistory login\" first."))
			return nil
		}
		fmt.Printf("%s %s\n", ui.Bold("Saved:"), st.SavedAt.Format(time.RFC1123))
		fmt.Printf("%s %d\n", ui.Bold("Cookies:"), st.Cookies)
		switch {
		case st.Expires.IsZero():
			fmt.Printf("%s %s\n", ui.Bold("Expires:"), ui.Dim("end of browser session"))
		case st.Expires.Before(time.Now()):
			fmt.Printf("%s %s\n", ui.Bold("Expires:"), ui.Error("expired "+st.Expires.Format(time.RFC1123)))
		default:
			fmt.Printf("%s %s\n", ui.Bold("Expires:"), ui.Success(st.Expires.Format(time.RFC1123)))
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved session so the next run logs in again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if err := a.ClearSession(); err != nil {
			return err
		}
		fmt.Println(ui.Success("Session cleared"))

		forget, _ := cmd.Flags().GetBool("forget")
		if forget && a.Config.Username != "" {
			if err := auth.DeletePassword(a.Config.Username); err != nil {
				return err
			}
			fmt.Println(ui.Success("Password removed from the OS keyring"))
		}
		return nil
	},
}

func init() {
	sessionClearCmd.Flags().Bool("forget", false, "Also remove the password from the OS keyring")
	sessionCmd.AddCommand(sessionStatusCmd, sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
