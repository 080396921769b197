// ABOUTME: Export command for saving an image to the local gallery
// ABOUTME: Resolves the locator and writes a new file without overwriting

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/snapfeed/internal/config"
)

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Save an image to disk",
	Long:  "Save an image into the gallery directory. Existing files are kept; a numeric suffix is added instead.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		maxPages, _ := cmd.Flags().GetInt("max-pages")

		if dir == "" {
			dir = cfg.GetExportDir()
		} else {
			dir = config.ExpandPath(dir)
		}

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}

		item, err := findItem(cmd.Context(), sess.feed, args[0], maxPages, cfg.GetTimeout())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetTimeout())
		defer cancel()

		path, err := sess.exporter.Export(ctx, item, dir)
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Saved %s to %s\n", green("✓"), item.DisplayName(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("dir", "d", "", "target directory (default: config export_dir)")
	exportCmd.Flags().Int("max-pages", 50, "maximum pages to load while searching")
}
