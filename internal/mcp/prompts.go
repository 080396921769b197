// ABOUTME: MCP prompt definitions and handlers
// ABOUTME: Provides workflow templates for browsing, uploading and exporting images

package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.registerReviewFeedPrompt()
	s.registerCurateGalleryPrompt()
	s.registerShareImagesPrompt()
}

func (s *Server) registerReviewFeedPrompt() {
	s.mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "review-feed",
			Description: "Walk through the shared image collection from newest to oldest and summarize what is there",
			Arguments: []mcp.PromptArgument{
				{
					Name:        "pages",
					Description: "How many pages to load before summarizing (default: 3)",
					Required:    false,
				},
			},
		},
		s.handleReviewFeed,
	)
}

func (s *Server) handleReviewFeed(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	pages := "3"
	if p, ok := req.Params.Arguments["pages"]; ok && strings.TrimSpace(p) != "" {
		pages = strings.TrimSpace(p)
	}

	template := fmt.Sprintf(`# Review the Image Feed

## Overview
Load the most recent images from the shared collection and give a short overview of what has been posted. The feed is paged newest first, so each page reaches further back in time.

## Steps
1. Call refresh_images so the review starts from the newest upload.
2. Call load_more_images with pages=%s. Stop early if the result says the feed is exhausted.
3. Call list_images to see everything loaded so far.
4. For any image whose label is unclear, call get_image to inspect its locator.

## Output
- Total images loaded and whether the whole collection was reached
- A grouped list of labels (trips, people, screenshots, memes, anything else that stands out)
- Any entries with missing labels or invalid locators

## Notes
- Data URI images are summarized by size in list_images. Do not print the raw data.
- Reading snapfeed://feed shows the same state without fetching.
`, pages)

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Feed review over %s pages", pages),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: template,
				},
			},
		},
	}, nil
}

func (s *Server) registerCurateGalleryPrompt() {
	s.mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "curate-gallery",
			Description: "Pick images from the feed that match a theme and export them to a local folder",
			Arguments: []mcp.PromptArgument{
				{
					Name:        "theme",
					Description: "What to look for, matched against image labels",
					Required:    true,
				},
				{
					Name:        "dir",
					Description: "Target directory (default: configured export directory)",
					Required:    false,
				},
			},
		},
		s.handleCurateGallery,
	)
}

func (s *Server) handleCurateGallery(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	theme := strings.TrimSpace(req.Params.Arguments["theme"])
	if theme == "" {
		return nil, fmt.Errorf("theme is required")
	}

	dir := strings.TrimSpace(req.Params.Arguments["dir"])
	target := "the configured export directory"
	exportArgs := "id=<id>"
	if dir != "" {
		target = dir
		exportArgs = fmt.Sprintf("id=<id>, dir=%q", dir)
	}

	template := fmt.Sprintf(`# Curate a Gallery: %s

## Goal
Find every image in the shared collection whose label fits "%s" and save copies to %s.

## Steps
1. Call list_images. If the feed reports it is not exhausted, call load_more_images with pages=5 and repeat until it is, or until you have clearly passed the period you care about.
2. Pick matching images by label. When a label is ambiguous, leave it out and mention it at the end.
3. For each pick, call export_image with %s.
4. Existing files are never overwritten, so repeated runs produce numbered copies. Avoid exporting the same id twice.

## Report
- The exported paths
- Labels you skipped as uncertain
`, theme, theme, target, exportArgs)

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Gallery curation for %q", theme),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: template,
				},
			},
		},
	}, nil
}

func (s *Server) registerShareImagesPrompt() {
	s.mcpServer.AddPrompt(
		mcp.Prompt{
			Name:        "share-images",
			Description: "Upload one or more local image files to the shared collection with readable labels",
			Arguments: []mcp.PromptArgument{
				{
					Name:        "paths",
					Description: "Comma separated absolute file paths",
					Required:    true,
				},
			},
		},
		s.handleShareImages,
	)
}

func (s *Server) handleShareImages(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var paths []string
	for _, p := range strings.Split(req.Params.Arguments["paths"], ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("paths is required")
	}

	var list strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&list, "- %s\n", p)
	}

	template := fmt.Sprintf(`# Share Images

## Files
%s
## Steps
1. For each file, choose a short human label from the file name (for example "IMG_2041.jpg" taken at a beach becomes "Beach, afternoon"). Ask if you cannot tell.
2. Call upload_image with path and label for each file, one at a time.
3. If an upload fails because the file is not an image or is too large, skip it and keep going.
4. Finish by calling list_images with limit=%d to confirm the new images are at the top.

## Report
- Uploaded labels with their ids
- Files that failed and why
`, list.String(), len(paths))

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Upload %d images", len(paths)),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: template,
				},
			},
		},
	}, nil
}
