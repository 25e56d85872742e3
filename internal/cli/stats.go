package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/law-makers/cmhistory/internal/output"
	"github.com/law-makers/cmhistory/internal/stats"
	"github.com/law-makers/cmhistory/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-article buy, sell and profit figures",
	Long: `Aggregate every arrived order in the database per article. Holdings are
valued at the product's 7-day average when it has been fetched and at the
average buy price otherwise; such prices are marked with an asterisk.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		rows, err := a.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if a.Config.JSONLog {
			return output.WriteJSON(os.Stdout, rows)
		}
		if len(rows) == 0 {
			fmt.Println(ui.Info("No arrived orders stored"))
			return nil
		}
		output.Stats(os.Stdout, rows, format)

		t := stats.Sum(rows)
		fmt.Printf("\n%s %s\n", ui.Bold("Net profit:"), ui.Profit(t.NetPL, fmt.Sprintf("%.2f €", t.NetPL)))
		return nil
	},
}

func init() {
	statsCmd.Flags().String("format", "table", "Output format: table, csv or markdown")
	rootCmd.AddCommand(statsCmd)
}
