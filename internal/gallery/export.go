// ABOUTME: Gallery export of feed items to a local directory
// ABOUTME: Resolves locators, derives safe file names and writes atomically without clobbering

package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/harper/snapfeed/internal/locator"
	"github.com/harper/snapfeed/internal/models"
)

const (
	maxNameLength = 80
	maxAttempts   = 1000
	dirPerms      = 0755
	filePerms     = 0644
	fallbackStem  = "image"
)

// Resolver turns a locator into bytes.
type Resolver interface {
	Resolve(ctx context.Context, loc string) (*locator.Blob, error)
}

// Exporter saves items into a gallery directory.
type Exporter struct {
	resolver Resolver
	log      *log.Logger
}

// NewExporter creates an Exporter. A nil logger discards output.
func NewExporter(resolver Resolver, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Exporter{resolver: resolver, log: logger}
}

// Export writes the item's image into dir and returns the path written.
// Existing files are never overwritten; a numeric suffix is added instead.
func (e *Exporter) Export(ctx context.Context, item models.Item, dir string) (string, error) {
	if !item.Valid() {
		return "", errors.New("item has no id")
	}

	blob, err := e.resolver.Resolve(ctx, item.Locator)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", item.ShortID(), err)
	}

	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return "", fmt.Errorf("create gallery dir: %w", err)
	}

	base := SafeName(item.Label)
	if base == "" {
		base = SafeName(item.ID)
	}
	if base == "" {
		base = fallbackStem
	}
	ext := blob.Extension()
	if ext == "" {
		ext = ".bin"
	}

	path, err := writeNew(dir, base, ext, blob.Data)
	if err != nil {
		return "", err
	}

	e.log.Debug("exported", "id", item.ID, "path", path, "type", blob.ContentType)
	return path, nil
}

// SafeName reduces a label to characters that are safe in file names on
// every common filesystem.
func SafeName(label string) string {
	var b strings.Builder
	lastSep := false
	for _, r := range strings.TrimSpace(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSep = false
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r) || r == '/' || r == '\\':
			if !lastSep && b.Len() > 0 {
				b.WriteRune('_')
				lastSep = true
			}
		}
	}

	name := strings.Trim(b.String(), "_.")
	if len([]rune(name)) > maxNameLength {
		name = strings.TrimRight(string([]rune(name)[:maxNameLength]), "_.")
	}
	return name
}

// writeNew stages data in a temp file, then links it to the first free
// name among base+ext, base-1+ext, ... so a concurrent writer never loses data.
func writeNew(dir, base, ext string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".snapfeed-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePerms); err != nil {
		return "", err
	}

	for i := 0; i < maxAttempts; i++ {
		name := base + ext
		if i > 0 {
			name = base + "-" + strconv.Itoa(i) + ext
		}
		target := filepath.Join(dir, name)

		err := os.Link(tmpName, target)
		if err == nil {
			return target, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}

		// Filesystems without hard links: check then rename
		if _, statErr := os.Stat(target); statErr == nil {
			continue
		}
		if err := os.Rename(tmpName, target); err != nil {
			return "", fmt.Errorf("move into place: %w", err)
		}
		return target, nil
	}

	return "", fmt.Errorf("no free file name for %s%s in %s", base, ext, dir)
}
