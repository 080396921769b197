// ABOUTME: Root Cobra command and global flags
// ABOUTME: Loads configuration and builds the gateway, feed and collaborators per command

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/harper/snapfeed/internal/config"
	"github.com/harper/snapfeed/internal/feed"
	"github.com/harper/snapfeed/internal/gallery"
	"github.com/harper/snapfeed/internal/locator"
	"github.com/harper/snapfeed/internal/logging"
	"github.com/harper/snapfeed/internal/models"
	"github.com/harper/snapfeed/internal/upload"
)

var (
	serverURL string
	verbose   bool
	cfg       *config.Config
	logger    *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "snapfeed",
	Short: "Shared image feed client with MCP integration",
	Long: `
███████╗███╗   ██╗ █████╗ ██████╗ ███████╗███████╗███████╗██████╗
██╔════╝████╗  ██║██╔══██╗██╔══██╗██╔════╝██╔════╝██╔════╝██╔══██╗
███████╗██╔██╗ ██║███████║██████╔╝█████╗  █████╗  █████╗  ██║  ██║
╚════██║██║╚██╗██║██╔══██║██╔═══╝ ██╔══╝  ██╔══╝  ██╔══╝  ██║  ██║
███████║██║ ╚████║██║  ██║██║     ██║     ███████╗███████╗██████╔╝
╚══════╝╚═╝  ╚═══╝╚═╝  ╚═╝╚═╝     ╚═╝     ╚══════╝╚══════╝╚═════╝

Upload, browse and export a shared image collection.

Pages through the collection newest first and exposes it via MCP for AI agents.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(os.Stderr, verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if serverURL != "" {
			cfg.Server = serverURL
		}
		cfg.UserAgent = userAgent()
		return nil
	},
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "imageUploader server URL (default: config or $SNAPFEED_SERVER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on stderr")
}

// session bundles everything a command needs to talk to the collection.
type session struct {
	feed     *feed.Synchronizer
	uploader *upload.Uploader
	exporter *gallery.Exporter
	source   string
}

func openSession(ctx context.Context) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config (run 'snapfeed setup'): %w", err)
	}

	gw, err := cfg.OpenGateway(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.GetBackend(), err)
	}

	if h, ok := gw.(interface{ Host() string }); ok {
		logger.Debug("opened gateway", "backend", cfg.GetBackend(), "host", h.Host())
	}

	resolver := locator.NewResolver(nil, cfg.TrustedHost())
	return &session{
		feed:     feed.New(gw, feed.Options{PageSize: cfg.GetPageSize(), Logger: logger}),
		uploader: upload.New(gw, logger),
		exporter: gallery.NewExporter(resolver, logger),
		source:   sourceName(cfg),
	}, nil
}

// sourceName describes where images come from, for headers and MCP metadata.
func sourceName(c *config.Config) string {
	if c.GetBackend() == config.BackendS3 {
		return "s3://" + c.S3.Bucket
	}
	return c.GetServer()
}

// findItem resolves ref against the feed, loading up to maxPages further
// pages when it is not among the items already loaded.
func findItem(ctx context.Context, f *feed.Synchronizer, ref string, maxPages int, timeout time.Duration) (models.Item, error) {
	for i := 0; ; i++ {
		item, err := f.Find(ref)
		if err == nil || !errors.Is(err, feed.ErrNotFound) {
			return item, err
		}
		if f.IsExhausted() || i >= maxPages {
			return models.Item{}, err
		}
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		_, fetchErr := f.FetchNextPage(fetchCtx, false)
		cancel()
		if fetchErr != nil {
			return models.Item{}, fetchErr
		}
	}
}
