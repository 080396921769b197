// ABOUTME: Tests for session helpers and output formatting
// ABOUTME: Covers item lookup across pages, list output formats and setup application

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/harper/snapfeed/internal/config"
	"github.com/harper/snapfeed/internal/feed"
	"github.com/harper/snapfeed/internal/locator"
	"github.com/harper/snapfeed/internal/logging"
	"github.com/harper/snapfeed/internal/models"
	"github.com/harper/snapfeed/internal/tui"
)

type sliceFetcher struct {
	all   []models.Item
	size  int
	calls int
	err   error
}

func (f *sliceFetcher) FetchPage(_ context.Context, cursor int) ([]models.Item, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if cursor >= len(f.all) {
		return []models.Item{}, nil
	}
	return f.all[cursor:min(cursor+f.size, len(f.all))], nil
}

func newFeed(n int) (*feed.Synchronizer, *sliceFetcher) {
	f := &sliceFetcher{size: 2}
	for i := 0; i < n; i++ {
		f.all = append(f.all, models.NewItem(
			fmt.Sprintf("a1b2c3%04d", i),
			fmt.Sprintf("photo %d", i),
			fmt.Sprintf("https://img.example.com/%d.png", i),
		))
	}
	return feed.New(f, feed.Options{PageSize: 2}), f
}

func TestFindItem(t *testing.T) {
	t.Run("loads pages until found", func(t *testing.T) {
		snap, f := newFeed(7)
		item, err := findItem(context.Background(), snap, "a1b2c30005", 10, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "photo 5", item.Label)
		assert.Equal(t, 3, f.calls)
	})

	t.Run("prefix match", func(t *testing.T) {
		snap, _ := newFeed(1)
		item, err := findItem(context.Background(), snap, "a1b2c3", 10, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "a1b2c30000", item.ID)
	})

	t.Run("ambiguous prefix is not paged further", func(t *testing.T) {
		snap, f := newFeed(4)
		require.NoError(t, loadPages(context.Background(), snap, 1, false, time.Second))
		_, err := findItem(context.Background(), snap, "a1b2c3", 10, time.Second)
		assert.ErrorIs(t, err, feed.ErrAmbiguous)
		assert.Equal(t, 1, f.calls)
	})

	t.Run("stops when exhausted", func(t *testing.T) {
		snap, f := newFeed(3)
		_, err := findItem(context.Background(), snap, "missing999", 10, time.Second)
		assert.ErrorIs(t, err, feed.ErrNotFound)
		assert.Equal(t, 3, f.calls)
	})

	t.Run("respects max pages", func(t *testing.T) {
		snap, f := newFeed(20)
		_, err := findItem(context.Background(), snap, "a1b2c30019", 2, time.Second)
		assert.ErrorIs(t, err, feed.ErrNotFound)
		assert.Equal(t, 2, f.calls)
	})

	t.Run("fetch error surfaces", func(t *testing.T) {
		snap, f := newFeed(3)
		f.err = errors.New("connection refused")
		_, err := findItem(context.Background(), snap, "a1b2c30001", 5, time.Second)
		assert.ErrorIs(t, err, f.err)
	})
}

func TestLoadPages(t *testing.T) {
	t.Run("fixed number of pages", func(t *testing.T) {
		snap, _ := newFeed(9)
		require.NoError(t, loadPages(context.Background(), snap, 2, false, time.Second))
		assert.Equal(t, 4, snap.Len())
		assert.False(t, snap.IsExhausted())
	})

	t.Run("all until exhausted", func(t *testing.T) {
		snap, f := newFeed(5)
		require.NoError(t, loadPages(context.Background(), snap, 1, true, time.Second))
		assert.Equal(t, 5, snap.Len())
		assert.True(t, snap.IsExhausted())
		assert.Equal(t, 4, f.calls)
	})
}

func TestPrintItems(t *testing.T) {
	color.NoColor = true
	data := locator.Encode([]byte("GIF89a-------"), "image/gif")
	items := []models.Item{
		models.NewItem("a1b2c3d4e5f6", "Beach", "https://img.example.com/beach.png"),
		models.NewItem("ffeeddccbbaa", "", data),
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printItems(&buf, items, "text", true))
		out := buf.String()
		assert.Contains(t, out, "Beach")
		assert.Contains(t, out, "(no label)")
		assert.Contains(t, out, "No more images")
		assert.NotContains(t, out, "base64,R0lG")
	})

	t.Run("text more available", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printItems(&buf, items[:1], "text", false))
		assert.Contains(t, buf.String(), "more available")
	})

	t.Run("text empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printItems(&buf, nil, "text", true))
		assert.Equal(t, "No images found\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printItems(&buf, items, "json", true))
		var got []listedImage
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "url", got[0].Kind)
		assert.Equal(t, "data", got[1].Kind)
		assert.True(t, strings.HasPrefix(got[1].Locator, "data:image/gif;base64,<"))
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printItems(&buf, items, "yaml", true))
		var got []listedImage
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "a1b2c3d4e5f6", got[0].ID)
		assert.Equal(t, "Beach", got[0].Label)
	})
}

func TestSummarizeData(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,<4 bytes>", summarizeData("data:image/png;base64,AAAA"))
}

func TestItemCard(t *testing.T) {
	item := models.NewItem("a1b2c3d4e5f6", "Sunset", "https://img.example.com/s.png")

	card := itemCard(item, nil)
	assert.Contains(t, card, "# Sunset")
	assert.Contains(t, card, "`a1b2c3d4e5f6`")
	assert.Contains(t, card, "https://img.example.com/s.png")
	assert.NotContains(t, card, "**Size**")

	card = itemCard(models.NewItem("x", "", "ftp://nope"), &locator.Blob{Data: make([]byte, 2048), ContentType: "image/png"})
	assert.Contains(t, card, "_none_")
	assert.Contains(t, card, "_invalid_")
	assert.Contains(t, card, "2.0 KB")
	assert.Contains(t, card, "image/png")
}

func TestItemCard_EscapesLabel(t *testing.T) {
	item := models.NewItem("a1b2c3d4e5f6", "a|b\nc", "https://img.example.com/s.png")

	card := itemCard(item, nil)
	assert.Contains(t, card, "# a\\|b c\n")
	assert.Contains(t, card, "| **Label** | a\\|b c |\n")
	for _, line := range strings.Split(card, "\n") {
		if strings.HasPrefix(line, "| **") {
			assert.Equal(t, 3, strings.Count(line, "|")-strings.Count(line, `\|`), "row %q", line)
		}
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanSize(tt.n))
	}
}

func TestSourceName(t *testing.T) {
	c := &config.Config{Server: "http://192.168.1.8:5000"}
	assert.Equal(t, "http://192.168.1.8:5000", sourceName(c))

	c = &config.Config{Backend: config.BackendS3, S3: config.S3Config{Bucket: "family"}}
	assert.Equal(t, "s3://family", sourceName(c))
}

func TestApplySetup(t *testing.T) {
	t.Run("rest", func(t *testing.T) {
		c := &config.Config{S3: config.S3Config{Bucket: "keep"}}
		applySetup(c, tui.NewSetupModel("rest", "http://nas:5000", 4))
		assert.Equal(t, "rest", c.Backend)
		assert.Equal(t, "http://nas:5000", c.Server)
		assert.Equal(t, 4, c.PageSize)
		assert.Equal(t, "keep", c.S3.Bucket)
	})

	t.Run("s3", func(t *testing.T) {
		c := &config.Config{Server: "http://keep:5000"}
		applySetup(c, tui.NewSetupModel("s3", "photos", 10))
		assert.Equal(t, "s3", c.Backend)
		assert.Equal(t, "photos", c.S3.Bucket)
		assert.Equal(t, "http://keep:5000", c.Server)
	})
}

func TestOpenSession_InvalidConfig(t *testing.T) {
	old := cfg
	defer func() { cfg = old }()

	cfg = &config.Config{Backend: "ftp"}
	_, err := openSession(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapfeed setup")
}

func TestOpenSession_REST(t *testing.T) {
	oldCfg, oldLogger := cfg, logger
	defer func() { cfg, logger = oldCfg, oldLogger }()

	cfg = &config.Config{Backend: config.BackendREST, Server: "http://localhost:8080"}
	logger = logging.Discard()

	sess, err := openSession(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, sess.feed)
	assert.NotNil(t, sess.uploader)
	assert.NotNil(t, sess.exporter)
	assert.Equal(t, 0, sess.feed.Len())
}
