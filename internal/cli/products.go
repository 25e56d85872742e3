package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/law-makers/cmhistory/internal/errs"
	"github.com/law-makers/cmhistory/internal/output"
	"github.com/law-makers/cmhistory/internal/ui"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Browse, fetch and flag products",
}

var productsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored products",
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
		favorites, _ := cmd.Flags().GetBool("favorites")
		products, err := a.ListProducts(cmd.Context(), favorites)
		if err != nil {
			return err
		}
		if a.Config.JSONLog {
			return output.WriteJSON(os.Stdout, products)
		}
		if len(products) == 0 {
			fmt.Println(ui.Info("No products stored"))
			return nil
		}
		output.Products(os.Stdout, products, format)
		return nil
	},
}

var productsFetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Load a product page and store its prices",
	Example: `  cmhistory products fetch https://www.cardmarket.com/en/OnePiece/Products/Singles/Romance-Dawn/Monkey-D-Luffy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		p, err := a.FetchProduct(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if a.Config.JSONLog {
			return output.WriteJSON(os.Stdout, p)
		}
		fmt.Println(ui.Success("Stored product " + p.ID))
		return nil
	},
}

var productsFavoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Mark a stored product as favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		off, _ := cmd.Flags().GetBool("off")
		if err := a.SetFavorite(cmd.Context(), args[0], !off); err != nil {
			return err
		}
		if off {
			fmt.Println(ui.Success("Unmarked " + args[0]))
		} else {
			fmt.Println(ui.Success("Marked " + args[0] + " as favorite"))
		}
		return nil
	},
}

var productsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a stored product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		removed, err := a.RemoveProduct(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			return errs.Newf(errs.CodeNotFound, "product %s is not stored", args[0])
		}
		fmt.Println(ui.Success("Removed product " + args[0]))
		return nil
	},
}

func init() {
	productsListCmd.Flags().Bool("favorites", false, "Only list favorites")
	productsListCmd.Flags().String("format", "table", "Output format: table, csv or markdown")
	productsFavoriteCmd.Flags().Bool("off", false, "Remove the favorite mark instead")
	productsCmd.AddCommand(productsListCmd, productsFetchCmd, productsFavoriteCmd, productsRemoveCmd)
	rootCmd.AddCommand(productsCmd)
}
