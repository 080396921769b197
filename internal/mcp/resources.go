// ABOUTME: MCP resource providers for snapfeed
// ABOUTME: Exposes a read-only view of the session feed and its pagination state

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

const feedResourceURI = "snapfeed://feed"

// ResourceData is the standard response format for all resources.
type ResourceData struct {
	Metadata ResourceMetadata  `json:"metadata"`
	Data     interface{}       `json:"data"`
	Links    map[string]string `json:"links"`
}

// ResourceMetadata contains metadata about the resource response.
type ResourceMetadata struct {
	Timestamp   time.Time      `json:"timestamp"`
	Count       int            `json:"count"`
	ResourceURI string         `json:"resource_uri"`
	Source      string         `json:"source,omitempty"`
	Filters     map[string]any `json:"filters,omitempty"`
}

type feedResourceData struct {
	Feed   FeedStateOutput `json:"feed"`
	Images []ImageOutput   `json:"images"`
}

func (s *Server) registerResources() {
	s.registerFeedResource()
}

func (s *Server) registerFeedResource() {
	s.mcpServer.AddResource(
		mcp.Resource{
			URI:         feedResourceURI,
			Name:        "Session Feed",
			Description: "Images loaded into this session so far, newest first, with cursor and exhaustion state. Reading it never triggers a fetch.",
			MIMEType:    "application/json",
		},
		s.handleFeedResource,
	)
}

func (s *Server) handleFeedResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	items := s.feed.Items()
	images := make([]ImageOutput, 0, len(items))
	for _, item := range items {
		images = append(images, toImageOutput(item, false))
	}

	resourceData := ResourceData{
		Metadata: ResourceMetadata{
			Timestamp:   time.Now(),
			Count:       len(images),
			ResourceURI: feedResourceURI,
			Source:      s.source,
			Filters:     stateFilter(s.feed),
		},
		Data: feedResourceData{Feed: s.feedState(), Images: images},
		Links: map[string]string{
			"load_more": "tool:load_more_images",
			"refresh":   "tool:refresh_images",
		},
	}

	jsonBytes, err := json.MarshalIndent(resourceData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
