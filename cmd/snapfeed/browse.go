// ABOUTME: Browse command launching the interactive image browser
// ABOUTME: Runs the bubbletea feed browser and reports the final selection

package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/harper/snapfeed/internal/config"
	"github.com/harper/snapfeed/internal/logging"
	"github.com/harper/snapfeed/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:     "browse",
	Aliases: []string{"b", "tui"},
	Short:   "Browse images interactively",
	Long: `Browse the collection in a terminal UI.

Keys: j/k move, g/G jump, r refresh, u upload, e export, q quit.
Pages load automatically as the selection nears the end of the list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Log lines would tear the alt screen.
		if !verbose {
			logger = logging.Discard()
		}

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}

		model := tui.NewBrowseModel(tui.BrowseOptions{
			Feed:      sess.feed,
			Uploader:  sess.uploader,
			Exporter:  sess.exporter,
			ExportDir: cfg.GetExportDir(),
			Source:    sess.source,
			Timeout:   cfg.GetTimeout(),
			NearEnd:   config.NearEndRows,
		})

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		result, err := p.Run()
		if err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}

		if final, ok := result.(tui.BrowseModel); ok {
			if item, ok := final.Selected(); ok {
				fmt.Printf("%s %s\n", item.ID, item.DisplayName())
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
