// ABOUTME: Transfer Gateway contract shared by the REST and S3 backends
// ABOUTME: FetchPage returns the batch after a cursor; an empty batch means exhaustion

package gateway

import (
	"context"

	"github.com/harper/snapfeed/internal/models"
)

const (
	// MaxResponseSize caps page bodies and downloads.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB

	// MaxUploadSize caps the encoded upload payload.
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
)

// UploadRequest carries one image to the remote service. Data is the raw
// image; ContentType is its sniffed mime type.
type UploadRequest struct {
	Label       string
	Filename    string
	ContentType string
	Data        []byte
}

// Gateway is the remote collection an image feed is synchronized against.
type Gateway interface {
	// FetchPage returns the items following cursor in remote order. It must
	// return an empty slice, not an error, when no more items exist.
	FetchPage(ctx context.Context, cursor int) ([]models.Item, error)

	// Upload stores one image and returns the record the service created.
	Upload(ctx context.Context, req *UploadRequest) (*models.Item, error)
}

// window returns the part of a cumulative listing that lies after cursor.
func window(items []models.Item, cursor int) []models.Item {
	if cursor < 0 {
		cursor = 0
	}
	if len(items) <= cursor {
		return []models.Item{}
	}
	return items[cursor:]
}
