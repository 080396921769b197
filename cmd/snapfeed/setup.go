// ABOUTME: Cobra command for interactive snapfeed backend configuration.
// ABOUTME: Launches a bubbletea TUI wizard to select backend, target and page size.
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/harper/snapfeed/internal/config"
	"github.com/harper/snapfeed/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure snapfeed backend",
	Long:  "Interactive wizard to configure the transfer backend, server URL or bucket, and page size.",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	target := cfg.Server
	if cfg.GetBackend() == config.BackendS3 {
		target = cfg.S3.Bucket
	}

	model := tui.NewSetupModel(cfg.Backend, target, cfg.PageSize)

	p := tea.NewProgram(model)
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tui.SetupModel)
	if !final.ShouldSave() {
		fmt.Println("Setup canceled.")
		return nil
	}

	applySetup(cfg, final)

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Config saved to %s\n", config.GetConfigPath())
	return nil
}

// applySetup copies the wizard's answers onto c.
func applySetup(c *config.Config, m tui.SetupModel) {
	backend, target, pageSize := m.Result()
	c.Backend = backend
	c.PageSize = pageSize
	if backend == config.BackendS3 {
		c.S3.Bucket = target
		return
	}
	c.Server = target
}
