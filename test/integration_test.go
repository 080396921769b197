// ABOUTME: Integration tests for the full upload, page and export workflow
// ABOUTME: Runs the REST gateway, feed, uploader and exporter against a fake imageUploader service

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/harper/snapfeed/internal/config"
	"github.com/harper/snapfeed/internal/feed"
	"github.com/harper/snapfeed/internal/gallery"
	"github.com/harper/snapfeed/internal/locator"
	"github.com/harper/snapfeed/internal/logging"
	"github.com/harper/snapfeed/internal/models"
	"github.com/harper/snapfeed/internal/upload"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// fakeUploader mimics the imageUploader service: an in-memory collection,
// newest first, served through cumulative limits.
type fakeUploader struct {
	mu     sync.Mutex
	docs   []models.Item
	nextID int
	gets   []int
}

func (f *fakeUploader) add(label, link string) models.Item {
	f.nextID++
	item := models.NewItem(fmt.Sprintf("665f1c2e%04d", f.nextID), label, link)
	f.docs = append([]models.Item{item}, f.docs...)
	return item
}

func (f *fakeUploader) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /imageUploader/get/{limit}", func(w http.ResponseWriter, r *http.Request) {
		limit, err := strconv.Atoi(r.PathValue("limit"))
		if err != nil {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.gets = append(f.gets, limit)
		docs := f.docs[:min(limit, len(f.docs))]
		body, _ := json.Marshal(docs)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	mux.HandleFunc("POST /imageUploader/upload", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Image string `json:"image"`
			Link  string `json:"link"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		doc := f.add(body.Image, body.Link)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": true, "doc": doc})
	})

	mux.HandleFunc("GET /static/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	})

	return mux
}

func setup(t *testing.T, seed int) (*fakeUploader, *httptest.Server, *config.Config) {
	t.Helper()
	fake := &fakeUploader{}
	for i := 0; i < seed; i++ {
		fake.add(fmt.Sprintf("seed %d", i), locator.Encode(pngBytes, "image/png"))
	}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Backend:   config.BackendREST,
		Server:    srv.URL,
		PageSize:  2,
		UserAgent: "snapfeed/test",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}
	return fake, srv, cfg
}

// TestFullWorkflow uploads a file, pages the whole collection and exports
// the new image to a gallery directory.
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()
	fake, _, cfg := setup(t, 5)
	logger := logging.Discard()

	gw, err := cfg.OpenGateway(ctx, logger)
	if err != nil {
		t.Fatalf("failed to open gateway: %v", err)
	}
	snap := feed.New(gw, feed.Options{PageSize: cfg.GetPageSize(), Logger: logger})

	// First page before the upload
	res, err := snap.FetchNextPage(ctx, false)
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if res.Added != 2 {
		t.Fatalf("expected 2 items on first page, got %d", res.Added)
	}

	// Upload and insert optimistically
	dir := t.TempDir()
	src := filepath.Join(dir, "harbor sunrise.png")
	if err := os.WriteFile(src, pngBytes, 0644); err != nil {
		t.Fatalf("failed to write source image: %v", err)
	}

	uploader := upload.New(gw, logger)
	item, err := uploader.Upload(ctx, src, "")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if item.Label != "harbor sunrise" {
		t.Errorf("expected label from file name, got %q", item.Label)
	}
	if !snap.InsertLocal(*item) {
		t.Fatal("expected uploaded item to be inserted")
	}
	if snap.Items()[0].ID != item.ID {
		t.Error("uploaded item should be first")
	}

	// Page to the end. The upload shifted the remote listing by one, so the
	// next window starts with an item already seen and it must be dropped.
	total := 0
	for !snap.IsExhausted() {
		res, err := snap.FetchNextPage(ctx, false)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		total += res.Duplicates
	}
	if total != 1 {
		t.Errorf("expected 1 duplicate from the shifted listing, got %d", total)
	}
	if snap.Len() != 6 {
		t.Errorf("expected all 6 items, got %d", snap.Len())
	}

	seen := map[string]bool{}
	for _, it := range snap.Items() {
		if seen[it.ID] {
			t.Errorf("duplicate id %s in feed", it.ID)
		}
		seen[it.ID] = true
	}

	fake.mu.Lock()
	gets := append([]int(nil), fake.gets...)
	fake.mu.Unlock()
	for i, limit := range gets {
		if limit != 2*(i+1) {
			t.Errorf("request %d: expected limit %d, got %d", i, 2*(i+1), limit)
		}
	}

	// Export twice: the second copy gets a suffix
	exporter := gallery.NewExporter(locator.NewResolver(nil, cfg.TrustedHost()), logger)
	galleryDir := filepath.Join(dir, "gallery")

	first, err := exporter.Export(ctx, *item, galleryDir)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	second, err := exporter.Export(ctx, *item, galleryDir)
	if err != nil {
		t.Fatalf("second export failed: %v", err)
	}
	if first == second {
		t.Error("second export must not overwrite the first")
	}
	if filepath.Ext(first) != ".png" {
		t.Errorf("expected .png extension, got %s", first)
	}

	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	if !bytes.Equal(data, pngBytes) {
		t.Error("exported bytes differ from upload")
	}
}

// TestRefreshAfterRemoteUploads resets the feed and picks up images that
// arrived after it was exhausted.
func TestRefreshAfterRemoteUploads(t *testing.T) {
	ctx := context.Background()
	fake, _, cfg := setup(t, 3)

	gw, err := cfg.OpenGateway(ctx, logging.Discard())
	if err != nil {
		t.Fatalf("failed to open gateway: %v", err)
	}
	snap := feed.New(gw, feed.Options{PageSize: 2})

	for !snap.IsExhausted() {
		if _, err := snap.FetchNextPage(ctx, false); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
	}

	fake.mu.Lock()
	fresh := fake.add("from phone", locator.Encode(pngBytes, "image/png"))
	fake.mu.Unlock()

	// Exhausted feeds ignore plain fetches
	res, err := snap.FetchNextPage(ctx, false)
	if err != nil || !res.Skipped {
		t.Fatalf("expected skipped fetch, got %+v %v", res, err)
	}

	if _, err := snap.Reset(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if snap.IsExhausted() {
		t.Error("reset should clear exhaustion")
	}
	if items := snap.Items(); len(items) != 2 || items[0].ID != fresh.ID {
		t.Errorf("expected fresh item first after reset, got %v", items)
	}
}

// TestExportURLLocator downloads an http locator served next to the API.
func TestExportURLLocator(t *testing.T) {
	ctx := context.Background()
	fake, srv, cfg := setup(t, 0)

	fake.mu.Lock()
	fake.add("linked", srv.URL+"/static/linked.png")
	fake.mu.Unlock()

	gw, err := cfg.OpenGateway(ctx, logging.Discard())
	if err != nil {
		t.Fatalf("failed to open gateway: %v", err)
	}
	snap := feed.New(gw, feed.Options{})
	if _, err := snap.FetchNextPage(ctx, false); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	item := snap.Items()[0]
	exporter := gallery.NewExporter(locator.NewResolver(nil, cfg.TrustedHost()), nil)
	path, err := exporter.Export(ctx, item, t.TempDir())
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.HasSuffix(path, "linked.png") {
		t.Errorf("unexpected export path %s", path)
	}
}

// TestServiceDown surfaces transfer errors without touching feed state.
func TestServiceDown(t *testing.T) {
	ctx := context.Background()
	_, srv, cfg := setup(t, 4)

	gw, err := cfg.OpenGateway(ctx, logging.Discard())
	if err != nil {
		t.Fatalf("failed to open gateway: %v", err)
	}
	snap := feed.New(gw, feed.Options{PageSize: 2})
	if _, err := snap.FetchNextPage(ctx, false); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	srv.Close()

	if _, err := snap.FetchNextPage(ctx, false); err == nil {
		t.Fatal("expected error with service down")
	}
	if snap.Len() != 2 || snap.Cursor() != 2 || snap.IsExhausted() {
		t.Errorf("feed changed after failure: len=%d cursor=%d", snap.Len(), snap.Cursor())
	}
}
