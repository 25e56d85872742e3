package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/cmhistory/internal/crawler"
	"github.com/law-makers/cmhistory/internal/errs"
	"github.com/law-makers/cmhistory/internal/output"
	"github.com/law-makers/cmhistory/internal/ui"
	"github.com/law-makers/cmhistory/pkg/models"
)

const dateLayout = "2006-01-02"

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Search, import and browse orders",
}

var ordersSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "List order IDs in a date range without importing them",
	Example: `  # Purchases from today back to the start of the year
  cmhistory orders search --end 2025-01-01

  # Sales in June
  cmhistory orders search --role seller --start 2025-06-30 --end 2025-06-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		q, err := queryFromFlags(cmd, time.Now())
		if err != nil {
			return err
		}
		ids, err := a.SearchOrders(cmd.Context(), q)
		if err != nil {
			return err
		}
		if a.Config.JSONLog {
			return output.WriteJSON(os.Stdout, ids)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		fmt.Fprintln(os.Stderr, ui.Dim(fmt.Sprintf("%d orders", len(ids))))
		return nil
	},
}

var ordersImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Search a date range and import every order not stored yet",
	Long: `Walk the order history backwards from --start towards --end in overlapping
windows, then fetch and store every order that is not in the database yet.

Without --end the walk continues until a window comes back empty.`,
	Example: `  # Import all purchases
  cmhistory orders import

  # Import sales since March
  cmhistory orders import --role seller --end 2025-03-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		q, err := queryFromFlags(cmd, time.Now())
		if err != nil {
			return err
		}
		progress, finish := newProgress(a.Config.Quiet)
		res, err := a.ImportRange(cmd.Context(), q, progress)
		finish()
		printImportResult(res)
		return err
	},
}

var ordersImportFileCmd = &cobra.Command{
	Use:   "import-file <ids.json>",
	Short: "Import the orders listed in a JSON array of IDs",
	Example: `  cmhistory orders search --json > ids.json
  cmhistory orders import-file ids.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		progress, finish := newProgress(a.Config.Quiet)
		res, err := a.ImportFile(cmd.Context(), args[0], progress)
		finish()
		printImportResult(res)
		return err
	},
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored orders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		orders, err := a.ListOrders(cmd.Context())
		if err != nil {
			return err
		}
		if a.Config.JSONLog {
			return output.WriteJSON(os.Stdout, orders)
		}
		if len(orders) == 0 {
			fmt.Println(ui.Info("No orders stored. Run \"cmhistory orders import\" first."))
			return nil
		}
		output.Orders(os.Stdout, orders, format)
		return nil
	},
}

var ordersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored order with its articles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		o, err := a.GetOrder(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if a.Config.JSONLog {
			return output.WriteJSON(os.Stdout, o)
		}
		output.OrderDetail(os.Stdout, o, format)
		return nil
	},
}

var ordersRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a stored order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		removed, err := a.RemoveOrder(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			return errs.Newf(errs.CodeNotFound, "order %s is not stored", args[0])
		}
		fmt.Println(ui.Success("Removed order " + args[0]))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{ordersSearchCmd, ordersImportCmd} {
		c.Flags().String("role", string(models.RoleBuyer), "History side: buyer or seller")
		c.Flags().String("start", "", "Newest date to search, YYYY-MM-DD (default today)")
		c.Flags().String("end", "", "Oldest date to search, YYYY-MM-DD")
		c.Flags().String("status", crawler.DefaultShipmentStatus, "Shipment status filter")
	}
	for _, c := range []*cobra.Command{ordersListCmd, ordersShowCmd} {
		c.Flags().String("format", "table", "Output format: table, csv or markdown")
	}
	ordersCmd.AddCommand(ordersSearchCmd, ordersImportCmd, ordersImportFileCmd, ordersListCmd, ordersShowCmd, ordersRemoveCmd)
	rootCmd.AddCommand(ordersCmd)
}

// queryFromFlags builds a search query. now supplies the default start.
func queryFromFlags(cmd *cobra.Command, now time.Time) (crawler.Query, error) {
	role, _ := cmd.Flags().GetString("role")
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	status, _ := cmd.Flags().GetString("status")
	return buildQuery(role, startStr, endStr, status, now)
}

func buildQuery(role, startStr, endStr, status string, now time.Time) (crawler.Query, error) {
	q := crawler.Query{ShipmentStatus: status}

	switch models.Role(strings.ToLower(role)) {
	case models.RoleBuyer, "":
		q.Role = models.RoleBuyer
	case models.RoleSeller:
		q.Role = models.RoleSeller
	default:
		return q, errs.Newf(errs.CodeValidation, "unknown role %q (want buyer or seller)", role)
	}

	q.Start = now
	if startStr != "" {
		t, err := parseDate(startStr)
		if err != nil {
			return q, err
		}
		q.Start = t
	}
	if endStr != "" {
		t, err := parseDate(endStr)
		if err != nil {
			return q, err
		}
		q.End = &t
	}
	return q, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, errs.Newf(errs.CodeValidation, "invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func formatFlag(cmd *cobra.Command) (output.Format, error) {
	f, _ := cmd.Flags().GetString("format")
	return output.ParseFormat(f)
}

// newProgress returns an import callback drawing a bar on stderr. The bar
// is created on the first call since the total is unknown until the
// search finishes.
func newProgress(quiet bool) (crawler.ProgressFunc, func()) {
	if quiet {
		return nil, func() {}
	}
	var bar *progressbar.ProgressBar
	progress := func(done, total int, id string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("Importing"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(30),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Describe("Order " + id)
		_ = bar.Set(done)
	}
	finish := func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return progress, finish
}

func printImportResult(res crawler.ImportResult) {
	fmt.Printf("%s %d scanned, %d imported, %d already stored, %d empty, %d new products\n",
		ui.Success("Import:"), res.Scanned, res.Imported, res.Skipped, res.Empty, res.Placeholders)
}
