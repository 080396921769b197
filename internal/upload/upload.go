// ABOUTME: Upload preparation and submission for local image files
// ABOUTME: Enforces the size cap, sniffs the mime type and hands the request to a gateway

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"

	"github.com/harper/snapfeed/internal/gateway"
	"github.com/harper/snapfeed/internal/models"
)

// MaxFileSize is the largest raw file whose base64 data URI still fits in
// gateway.MaxUploadSize with room for the JSON envelope.
const MaxFileSize = gateway.MaxUploadSize/4*3 - 4096

var (
	// ErrNotImage is returned when the file content is not an image.
	ErrNotImage = errors.New("file is not an image")

	// ErrTooLarge is returned when the file exceeds MaxFileSize.
	ErrTooLarge = errors.New("file exceeds upload size limit")

	// ErrEmpty is returned for zero-byte files.
	ErrEmpty = errors.New("file is empty")
)

// Prepare reads path and builds an upload request for it. A blank label
// becomes the file name without its extension.
func Prepare(path, label string) (*gateway.UploadRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, path, info.Size(), MaxFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, path)
	}

	if strings.TrimSpace(label) == "" {
		label = DefaultLabel(path)
	}
	return PrepareBytes(filepath.Base(path), label, data)
}

// PrepareBytes validates in-memory image data.
func PrepareBytes(filename, label string, data []byte) (*gateway.UploadRequest, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxFileSize {
		return nil, ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}

	return &gateway.UploadRequest{
		Label:       strings.TrimSpace(label),
		Filename:    filename,
		ContentType: mt.String(),
		Data:        data,
	}, nil
}

// DefaultLabel derives a label from a file name when the user gave none.
func DefaultLabel(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Uploader sends local files through a gateway.
type Uploader struct {
	gw  gateway.Gateway
	log *log.Logger
}

// New creates an Uploader. A nil logger discards output.
func New(gw gateway.Gateway, logger *log.Logger) *Uploader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Uploader{gw: gw, log: logger}
}

// Upload prepares path and submits it. The returned item is what the service
// confirmed and is ready for an optimistic feed insert.
func (u *Uploader) Upload(ctx context.Context, path, label string) (*models.Item, error) {
	req, err := Prepare(path, label)
	if err != nil {
		return nil, err
	}

	u.log.Debug("uploading", "file", req.Filename, "type", req.ContentType, "size", len(req.Data))

	item, err := u.gw.Upload(ctx, req)
	if err != nil {
		u.log.Error("upload failed", "file", req.Filename, "err", err)
		return nil, fmt.Errorf("upload %s: %w", req.Filename, err)
	}

	u.log.Debug("uploaded", "id", item.ID)
	return item, nil
}
