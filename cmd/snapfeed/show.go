// ABOUTME: Show command for viewing one image's details
// ABOUTME: Finds the image in the feed and renders a markdown card with glamour

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/snapfeed/internal/config"
	"github.com/harper/snapfeed/internal/locator"
	"github.com/harper/snapfeed/internal/models"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show image details",
	Long:  "Show an image's id, label and locator. Pages are loaded until the id (or a prefix of at least 6 characters) is found.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxPages, _ := cmd.Flags().GetInt("max-pages")
		fetchBytes, _ := cmd.Flags().GetBool("resolve")

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}

		item, err := findItem(cmd.Context(), sess.feed, args[0], maxPages, cfg.GetTimeout())
		if err != nil {
			return err
		}

		var blob *locator.Blob
		if fetchBytes {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetTimeout())
			defer cancel()
			blob, err = locator.NewResolver(nil, cfg.TrustedHost()).Resolve(ctx, item.Locator)
			if err != nil {
				return fmt.Errorf("failed to resolve image: %w", err)
			}
		}

		markdown := itemCard(item, blob)
		rendered, err := glamour.Render(markdown, "dark")
		if err != nil {
			faint := color.New(color.Faint).SprintFunc()
			fmt.Printf("%s\n", faint("(markdown rendering unavailable, showing plain text)"))
			fmt.Printf("\n%s\n", markdown)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

// itemCard renders an item as markdown. blob is optional resolved content.
// cellText flattens server-supplied text onto one line and escapes pipes so
// it stays inside its markdown table cell.
func cellText(s string) string {
	return strings.ReplaceAll(strings.Join(strings.Fields(s), " "), "|", `\|`)
}

func itemCard(item models.Item, blob *locator.Blob) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", cellText(item.DisplayName()))
	fmt.Fprintf(&b, "| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| **ID** | `%s` |\n", cellText(item.ID))
	if strings.TrimSpace(item.Label) == "" {
		fmt.Fprintf(&b, "| **Label** | _none_ |\n")
	} else {
		fmt.Fprintf(&b, "| **Label** | %s |\n", cellText(item.Label))
	}

	kind, err := locator.Parse(item.Locator)
	switch {
	case err != nil:
		fmt.Fprintf(&b, "| **Locator** | _invalid_ |\n")
	case kind == locator.KindData:
		fmt.Fprintf(&b, "| **Locator** | `%s` |\n", summarizeData(item.Locator))
	default:
		fmt.Fprintf(&b, "| **Locator** | %s |\n", cellText(item.Locator))
	}

	if blob != nil {
		fmt.Fprintf(&b, "| **Type** | %s |\n", blob.ContentType)
		fmt.Fprintf(&b, "| **Size** | %s |\n", humanSize(len(blob.Data)))
	}

	fmt.Fprintf(&b, "\n%s\n", strings.Repeat("-", config.SeparatorWidth/2))
	return b.String()
}

func humanSize(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Int("max-pages", 50, "maximum pages to load while searching")
	showCmd.Flags().Bool("resolve", false, "download the image to report its type and size")
}
