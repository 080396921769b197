// ABOUTME: MCP tool definitions and handlers for feed operations
// ABOUTME: Lists, pages, refreshes, uploads and exports images in the session feed

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/snapfeed/internal/feed"
	"github.com/harper/snapfeed/internal/locator"
	"github.com/harper/snapfeed/internal/models"
)

// Type definitions for input/output structures

type ListImagesInput struct {
	Offset *int `json:"offset,omitempty"`
	Limit  *int `json:"limit,omitempty"`
}

type ImageOutput struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	LocatorKind string `json:"locator_kind"`
	Locator     string `json:"locator,omitempty"`
	DataBytes   int    `json:"data_bytes,omitempty"`
}

type FeedStateOutput struct {
	State     string `json:"state"`
	Count     int    `json:"count"`
	Cursor    int    `json:"cursor"`
	Exhausted bool   `json:"exhausted"`
}

type ListImagesOutput struct {
	Images []ImageOutput   `json:"images"`
	Feed   FeedStateOutput `json:"feed"`
	Filter map[string]any  `json:"filters"`
}

type LoadMoreInput struct {
	Pages *int `json:"pages,omitempty"`
}

type LoadMoreOutput struct {
	PagesFetched int             `json:"pages_fetched"`
	Added        int             `json:"added"`
	Duplicates   int             `json:"duplicates"`
	Skipped      bool            `json:"skipped"`
	Feed         FeedStateOutput `json:"feed"`
	Message      string          `json:"message"`
}

type RefreshOutput struct {
	Added   int             `json:"added"`
	Feed    FeedStateOutput `json:"feed"`
	Message string          `json:"message"`
}

type UploadImageInput struct {
	Path  string  `json:"path"`
	Label *string `json:"label,omitempty"`
}

type UploadImageOutput struct {
	Image    ImageOutput `json:"image"`
	Inserted bool        `json:"inserted"`
	Message  string      `json:"message"`
}

type ImageRefInput struct {
	ID string `json:"id"`
}

type ExportImageInput struct {
	ID  string  `json:"id"`
	Dir *string `json:"dir,omitempty"`
}

type ExportImageOutput struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// maxPagesPerCall bounds load_more_images so one call cannot walk a huge collection.
const maxPagesPerCall = 20

// Tool registration

func (s *Server) registerTools() {
	s.registerListImagesTool()
	s.registerGetImageTool()
	s.registerLoadMoreTool()
	s.registerRefreshTool()
	s.registerUploadImageTool()
	s.registerExportImageTool()
}

func (s *Server) registerListImagesTool() {
	tool := mcp.Tool{
		Name:        "list_images",
		Description: "List images already loaded into this session's feed, newest first. If nothing has been loaded yet, the first page is fetched. Use load_more_images to page further back and refresh_images to start over from the newest upload. Data URI locators are summarized by size rather than inlined.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of loaded images to skip. Example: 10",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of images to return. If omitted, returns all loaded images. Example: 20",
				},
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleListImages)
}

func (s *Server) registerGetImageTool() {
	tool := mcp.Tool{
		Name:        "get_image",
		Description: "Get one loaded image by id or id prefix (at least 6 characters). Returns the full locator, including data URIs.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Image id or prefix. Example: '665f1c'",
				},
			},
			Required: []string{"id"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleGetImage)
}

func (s *Server) registerLoadMoreTool() {
	tool := mcp.Tool{
		Name:        "load_more_images",
		Description: "Fetch the next page (or several) of older images from the remote collection and append any not already in the feed. Stops early when the collection is exhausted. Returns how many images were added and the feed state.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pages": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("How many pages to fetch, 1 to %d. Default: 1", maxPagesPerCall),
				},
			},
		},
	}
	s.mcpServer.AddTool(tool, s.handleLoadMore)
}

func (s *Server) registerRefreshTool() {
	tool := mcp.Tool{
		Name:        "refresh_images",
		Description: "Discard the loaded feed and fetch the newest page again. Use after uploads from another device or when the feed reports exhausted and you expect new images.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
	s.mcpServer.AddTool(tool, s.handleRefresh)
}

func (s *Server) registerUploadImageTool() {
	tool := mcp.Tool{
		Name:        "upload_image",
		Description: "Upload a local image file. The file must be an image under the size limit. On success the new image is inserted at the top of the feed immediately.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the image file. Example: '/home/me/Pictures/sunset.jpg'",
				},
				"label": map[string]interface{}{
					"type":        "string",
					"description": "Optional display name. Defaults to the file name without extension. Example: 'Sunset at the pier'",
				},
			},
			Required: []string{"path"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleUploadImage)
}

func (s *Server) registerExportImageTool() {
	tool := mcp.Tool{
		Name:        "export_image",
		Description: "Save a loaded image to the local gallery directory. Existing files are never overwritten; a numeric suffix is added instead. Returns the written path.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Image id or prefix. Example: '665f1c'",
				},
				"dir": map[string]interface{}{
					"type":        "string",
					"description": "Optional target directory. Defaults to the configured export directory.",
				},
			},
			Required: []string{"id"},
		},
	}
	s.mcpServer.AddTool(tool, s.handleExportImage)
}

// Output helpers

func toImageOutput(item models.Item, full bool) ImageOutput {
	out := ImageOutput{ID: item.ID, Label: item.Label}
	kind, err := locator.Parse(item.Locator)
	if err != nil {
		out.LocatorKind = locator.KindInvalid.String()
		return out
	}
	out.LocatorKind = kind.String()
	if kind == locator.KindData && !full {
		out.DataBytes = len(item.Locator)
		return out
	}
	out.Locator = item.Locator
	return out
}

func (s *Server) feedState() FeedStateOutput {
	return FeedStateOutput{
		State:     s.feed.State().String(),
		Count:     s.feed.Len(),
		Cursor:    s.feed.Cursor(),
		Exhausted: s.feed.IsExhausted(),
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// Handlers

func (s *Server) handleListImages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ListImagesInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if s.feed.Len() == 0 && !s.feed.IsExhausted() {
		fetchCtx, cancel := s.withTimeout(ctx)
		_, err := s.feed.FetchNextPage(fetchCtx, false)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	items := s.feed.Items()
	filters := map[string]any{}

	if input.Offset != nil {
		if *input.Offset < 0 {
			return nil, fmt.Errorf("offset must be non-negative")
		}
		filters["offset"] = *input.Offset
		items = items[min(*input.Offset, len(items)):]
	}
	if input.Limit != nil {
		if *input.Limit < 0 {
			return nil, fmt.Errorf("limit must be non-negative")
		}
		filters["limit"] = *input.Limit
		items = items[:min(*input.Limit, len(items))]
	}

	images := make([]ImageOutput, 0, len(items))
	for _, item := range items {
		images = append(images, toImageOutput(item, false))
	}

	return jsonResult(ListImagesOutput{Images: images, Feed: s.feedState(), Filter: filters})
}

func (s *Server) handleGetImage(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ImageRefInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	item, err := s.feed.Find(input.ID)
	if err != nil {
		return nil, err
	}
	return jsonResult(toImageOutput(item, true))
}

func (s *Server) handleLoadMore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input LoadMoreInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	pages := 1
	if input.Pages != nil {
		pages = *input.Pages
	}
	if pages < 1 || pages > maxPagesPerCall {
		return nil, fmt.Errorf("pages must be between 1 and %d", maxPagesPerCall)
	}

	var out LoadMoreOutput
	for i := 0; i < pages; i++ {
		fetchCtx, cancel := s.withTimeout(ctx)
		res, err := s.feed.FetchNextPage(fetchCtx, false)
		cancel()
		if err != nil {
			return nil, err
		}
		if res.Skipped {
			out.Skipped = true
			break
		}
		out.PagesFetched++
		out.Added += res.Added
		out.Duplicates += res.Duplicates
		if res.Exhausted {
			break
		}
	}

	out.Feed = s.feedState()
	switch {
	case out.Feed.Exhausted:
		out.Message = fmt.Sprintf("No more images. %d loaded in total.", out.Feed.Count)
	case out.Skipped && out.PagesFetched == 0:
		out.Message = "A page is already loading; try again shortly."
	default:
		out.Message = fmt.Sprintf("Added %d images.", out.Added)
	}
	return jsonResult(out)
}

func (s *Server) handleRefresh(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fetchCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.feed.Reset(fetchCtx)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Feed refreshed with %d images.", s.feed.Len())
	if res.Skipped {
		msg = "Feed cleared; a page already in flight will be discarded. Call load_more_images to fetch."
	}
	return jsonResult(RefreshOutput{Added: res.Added, Feed: s.feedState(), Message: msg})
}

func (s *Server) handleUploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input UploadImageInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(input.Path) == "" {
		return nil, fmt.Errorf("path is required")
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("uploads are not available")
	}

	label := ""
	if input.Label != nil {
		label = *input.Label
	}

	upCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	item, err := s.uploader.Upload(upCtx, input.Path, label)
	if err != nil {
		return nil, err
	}

	inserted := s.feed.InsertLocal(*item)
	s.log.Debug("mcp upload", "id", item.ID, "inserted", inserted)

	return jsonResult(UploadImageOutput{
		Image:    toImageOutput(*item, false),
		Inserted: inserted,
		Message:  fmt.Sprintf("Uploaded %s", item.DisplayName()),
	})
}

func (s *Server) handleExportImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ExportImageInput
	if err := req.BindArguments(&input); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if s.exporter == nil {
		return nil, fmt.Errorf("export is not available")
	}

	item, err := s.feed.Find(input.ID)
	if err != nil {
		return nil, err
	}

	dir := s.exportDir
	if input.Dir != nil && strings.TrimSpace(*input.Dir) != "" {
		dir = *input.Dir
	}
	if dir == "" {
		return nil, fmt.Errorf("no export directory configured")
	}

	exportCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	path, err := s.exporter.Export(exportCtx, item, dir)
	if err != nil {
		return nil, err
	}
	return jsonResult(ExportImageOutput{ID: item.ID, Path: path})
}

// stateFilter is used by the feed resource to describe the session.
func stateFilter(f *feed.Synchronizer) map[string]any {
	return map[string]any{
		"page_size": f.PageSize(),
		"state":     f.State().String(),
	}
}
