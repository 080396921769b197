// ABOUTME: MCP server implementation for snapfeed
// ABOUTME: Exposes one feed session to AI agents through tools, a resource and prompts

package mcp

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/harper/snapfeed/internal/feed"
	"github.com/harper/snapfeed/internal/models"
)

// Uploader sends a local file and returns the confirmed item.
type Uploader interface {
	Upload(ctx context.Context, path, label string) (*models.Item, error)
}

// Exporter saves an item to a directory and returns the written path.
type Exporter interface {
	Export(ctx context.Context, item models.Item, dir string) (string, error)
}

// Options wires the server to its collaborators.
type Options struct {
	Version   string
	Feed      *feed.Synchronizer
	Uploader  Uploader
	Exporter  Exporter
	ExportDir string
	Source    string
	Timeout   time.Duration
	Logger    *log.Logger
}

// Server wraps the MCP server with snapfeed-specific context
type Server struct {
	mcpServer *server.MCPServer
	feed      *feed.Synchronizer
	uploader  Uploader
	exporter  Exporter
	exportDir string
	source    string
	timeout   time.Duration
	log       *log.Logger
}

// NewServer creates a new MCP server instance. The server owns one feed
// session for its lifetime.
func NewServer(opts Options) *Server {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Server{
		feed:      opts.Feed,
		uploader:  opts.Uploader,
		exporter:  opts.Exporter,
		exportDir: opts.ExportDir,
		source:    opts.Source,
		timeout:   timeout,
		log:       logger,
	}

	s.mcpServer = server.NewMCPServer(
		"snapfeed",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// withTimeout bounds a gateway-facing call.
func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
