package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/law-makers/cmhistory/internal/extract"
	"github.com/law-makers/cmhistory/internal/output"
	"github.com/law-makers/cmhistory/internal/ui"
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Debug helpers for raw Cardmarket pages",
}

var pageDumpCmd = &cobra.Command{
	Use:   "dump <url>",
	Short: "Print an authenticated page as cleaned HTML or Markdown",
	Long: `Load a page with the logged-in browser session and print it. Use this to look
at what the extractors see when a page layout changes.`,
	Example: `  cmhistory page dump https://www.cardmarket.com/en/OnePiece/Orders/1234567
  cmhistory page dump --format markdown -o order.md https://www.cardmarket.com/en/OnePiece/Orders/1234567`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("output")

		raw, err := a.DumpPage(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var content string
		switch format {
		case "html":
			content, err = output.CleanHTML(raw)
		case "markdown", "md":
			content, err = output.Markdown(raw, args[0])
		case "raw":
			content = raw
		default:
			return fmt.Errorf("unknown format %q (want html, markdown or raw)", format)
		}
		if err != nil {
			return err
		}

		if outPath == "" {
			fmt.Println(content)
			return nil
		}
		if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, ui.Success("Saved to "+outPath))
		return nil
	},
}

var pageExtractCmd = &cobra.Command{
	Use:   "extract <order|product|search> <url|file>",
	Short: "Run an extractor over a live page or a saved HTML file and print JSON",
	Long: `Run one of the page extractors and print the record it produces. The source
is read from disk when it names an existing file, so a page saved with
"page dump --format raw" can be re-checked offline. Nothing is stored.`,
	Example: `  cmhistory page dump --format raw -o order.html https://www.cardmarket.com/en/OnePiece/Orders/1234567
  cmhistory page extract order order.html`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := extract.ParseKind(args[0])
		if err != nil {
			return err
		}
		src := args[1]

		var raw string
		if data, readErr := os.ReadFile(src); readErr == nil {
			raw = string(data)
		} else {
			a, err := getApp()
			if err != nil {
				return err
			}
			if raw, err = a.DumpPage(cmd.Context(), src); err != nil {
				return err
			}
		}

		res, err := extract.Page(kind, raw, src)
		if err != nil {
			return err
		}
		return output.WriteJSON(os.Stdout, res)
	},
}

func init() {
	pageDumpCmd.Flags().String("format", "html", "Output format: html, markdown or raw")
	pageDumpCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	pageCmd.AddCommand(pageDumpCmd, pageExtractCmd)
	rootCmd.AddCommand(pageCmd)
}
