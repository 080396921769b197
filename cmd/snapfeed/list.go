// ABOUTME: List command for paging through the image collection
// ABOUTME: Prints images newest first as colored text, JSON or YAML

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harper/snapfeed/internal/feed"
	"github.com/harper/snapfeed/internal/locator"
	"github.com/harper/snapfeed/internal/models"
)

// listedImage is the machine-readable form of one listed item.
type listedImage struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label" yaml:"label"`
	Kind    string `json:"kind" yaml:"kind"`
	Locator string `json:"locator" yaml:"locator"`
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List images",
	Long:    "List images newest first, one page at a time or the whole collection with --all",
	RunE: func(cmd *cobra.Command, args []string) error {
		pages, _ := cmd.Flags().GetInt("pages")
		all, _ := cmd.Flags().GetBool("all")
		format, _ := cmd.Flags().GetString("format")

		format = strings.ToLower(format)
		if format != "text" && format != "json" && format != "yaml" {
			return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
		}
		if pages < 1 {
			return fmt.Errorf("--pages must be at least 1")
		}

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}

		if err := loadPages(cmd.Context(), sess.feed, pages, all, cfg.GetTimeout()); err != nil {
			return fmt.Errorf("failed to list images: %w", err)
		}

		return printItems(cmd.OutOrStdout(), sess.feed.Items(), format, sess.feed.IsExhausted())
	},
}

// loadPages fetches pages until n have been requested, or until the feed is
// exhausted when all is set.
func loadPages(ctx context.Context, f *feed.Synchronizer, n int, all bool, timeout time.Duration) error {
	for i := 0; all || i < n; i++ {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := f.FetchNextPage(fetchCtx, false)
		cancel()
		if err != nil {
			return err
		}
		if res.Skipped || res.Exhausted {
			return nil
		}
	}
	return nil
}

func toListed(items []models.Item) []listedImage {
	out := make([]listedImage, 0, len(items))
	for _, item := range items {
		kind, _ := locator.Parse(item.Locator)
		loc := item.Locator
		if kind == locator.KindData {
			loc = summarizeData(loc)
		}
		out = append(out, listedImage{ID: item.ID, Label: item.Label, Kind: kind.String(), Locator: loc})
	}
	return out
}

// summarizeData keeps the media type of a data URI and replaces the payload
// with its size.
func summarizeData(loc string) string {
	header, _, _ := strings.Cut(loc, ",")
	return fmt.Sprintf("%s,<%d bytes>", header, len(loc)-len(header)-1)
}

func printItems(w io.Writer, items []models.Item, format string, exhausted bool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toListed(items))
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(toListed(items))
	}

	if len(items) == 0 {
		fmt.Fprintln(w, "No images found")
		return nil
	}

	faint := color.New(color.Faint).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, img := range toListed(items) {
		short := models.Item{ID: img.ID}.ShortID()
		label := img.Label
		if strings.TrimSpace(label) == "" {
			label = faint("(no label)")
		}
		fmt.Fprintf(w, "%s %s %s\n", faint(short), label, cyan(img.Kind))
	}

	if exhausted {
		fmt.Fprintln(w, faint("No more images"))
	} else {
		fmt.Fprintln(w, faint(fmt.Sprintf("%d shown, more available (use --pages or --all)", len(items))))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().IntP("pages", "p", 1, "number of pages to fetch")
	listCmd.Flags().BoolP("all", "a", false, "fetch until the collection is exhausted")
	listCmd.Flags().StringP("format", "f", "text", "output format: text, json or yaml")

	listCmd.MarkFlagsMutuallyExclusive("pages", "all")
}
