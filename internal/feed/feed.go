// ABOUTME: Feed Synchronizer owning the paginated, deduplicated in-memory image feed
// ABOUTME: Single-flight page fetches, optimistic local inserts and reset-to-refresh

package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/harper/snapfeed/internal/models"
)

// MinPrefixLength is the shortest id prefix Find accepts.
const MinPrefixLength = 6

var (
	// ErrNotFound is returned when no item matches a reference.
	ErrNotFound = errors.New("item not found")

	// ErrAmbiguous is returned when a prefix matches more than one item.
	ErrAmbiguous = errors.New("ambiguous item prefix")
)

// DefaultPageSize matches the page increment the remote service was built around.
const DefaultPageSize = 2

// Fetcher is the page-fetch half of a transfer gateway.
type Fetcher interface {
	FetchPage(ctx context.Context, cursor int) ([]models.Item, error)
}

// State is the synchronizer's position in its Idle/Loading/Exhausted machine.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// Options configures a Synchronizer.
type Options struct {
	PageSize      int // cursor increment per non-empty page; DefaultPageSize when <= 0
	InitialCursor int
	Logger        *log.Logger
}

// Result describes what one FetchNextPage call did.
type Result struct {
	Skipped    bool // guard rejected the call; nothing was requested
	Added      int  // items appended to the feed
	Duplicates int  // items dropped because their id was already known
	Invalid    int  // items dropped because they carry no id
	Exhausted  bool // the remote source reported no further pages
	Stale      bool // a reset happened while the request was in flight; page discarded
}

// Synchronizer maintains one feed. The zero value is not usable; call New.
//
// State transitions happen only before a request is issued and after it
// resolves. The mutex guards those points so InsertLocal may be called from
// another goroutine while a fetch is suspended in the gateway; it is never
// held across the gateway call.
type Synchronizer struct {
	fetcher       Fetcher
	pageSize      int
	initialCursor int
	log           *log.Logger

	mu         sync.Mutex
	items      []models.Item
	known      map[string]struct{}
	cursor     int
	exhausted  bool
	pending    bool
	generation uint64
}

// New creates an empty Synchronizer reading pages from fetcher.
func New(fetcher Fetcher, opts Options) *Synchronizer {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Synchronizer{
		fetcher:       fetcher,
		pageSize:      pageSize,
		initialCursor: opts.InitialCursor,
		log:           logger,
		items:         []models.Item{},
		known:         make(map[string]struct{}),
		cursor:        opts.InitialCursor,
	}
}

// InsertLocal prepends an item confirmed by an upload. It is a no-op when the
// id is already present and reports whether the feed changed.
func (s *Synchronizer) InsertLocal(item models.Item) bool {
	if !item.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.known[item.ID]; ok {
		return false
	}

	items := make([]models.Item, 0, len(s.items)+1)
	items = append(items, item)
	items = append(items, s.items...)
	s.items = items
	s.known[item.ID] = struct{}{}

	s.log.Debug("inserted local item", "id", item.ID, "size", len(s.items))
	return true
}

// FetchNextPage requests the page at the current cursor and merges it.
//
// The call is skipped when a fetch is already in flight, or when the feed is
// exhausted and force is false. On failure the feed is left exactly as it was
// and the gateway error is returned wrapped. A fetch that started before a
// Reset resolves as Stale whether it succeeded or failed.
func (s *Synchronizer) FetchNextPage(ctx context.Context, force bool) (Result, error) {
	s.mu.Lock()
	if s.pending || (s.exhausted && !force) {
		s.mu.Unlock()
		return Result{Skipped: true}, nil
	}
	s.pending = true
	cursor := s.cursor
	gen := s.generation
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}()

	s.log.Debug("fetching page", "cursor", cursor, "force", force)

	page, err := s.fetcher.FetchPage(ctx, cursor)
	if err != nil {
		s.mu.Lock()
		stale := gen != s.generation
		s.mu.Unlock()
		if stale {
			s.log.Debug("discarding failure of fetch started before reset", "cursor", cursor, "err", err)
			return Result{Stale: true}, nil
		}
		s.log.Error("fetch failed", "cursor", cursor, "err", err)
		return Result{}, fmt.Errorf("fetch page at cursor %d: %w", cursor, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.log.Debug("discarding page fetched before reset", "cursor", cursor)
		return Result{Stale: true}, nil
	}

	if len(page) == 0 {
		s.exhausted = true
		s.log.Debug("feed exhausted", "cursor", cursor, "size", len(s.items))
		return Result{Exhausted: true}, nil
	}

	var res Result
	for _, item := range page {
		if !item.Valid() {
			res.Invalid++
			continue
		}
		if _, ok := s.known[item.ID]; ok {
			res.Duplicates++
			continue
		}
		s.items = append(s.items, item)
		s.known[item.ID] = struct{}{}
		res.Added++
	}

	// Only an empty page signals exhaustion; a page of duplicates still moves on.
	s.cursor += s.pageSize

	s.log.Debug("merged page", "cursor", s.cursor, "added", res.Added, "duplicates", res.Duplicates)
	return res, nil
}

// Reset replaces the feed with an empty one and starts a forced fetch. A fetch
// already in flight keeps its slot (the forced fetch is then skipped) but its
// page is discarded when it resolves.
func (s *Synchronizer) Reset(ctx context.Context) (Result, error) {
	s.mu.Lock()
	s.items = []models.Item{}
	s.known = make(map[string]struct{})
	s.cursor = s.initialCursor
	s.exhausted = false
	s.generation++
	s.mu.Unlock()

	s.log.Debug("feed reset")
	return s.FetchNextPage(ctx, true)
}

// IsExhausted reports whether the remote source has no further pages.
func (s *Synchronizer) IsExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// IsLoading reports whether a fetch is in flight.
func (s *Synchronizer) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// State returns the current machine state. Loading wins over Exhausted while a
// forced fetch is running.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.pending:
		return StateLoading
	case s.exhausted:
		return StateExhausted
	default:
		return StateIdle
	}
}

// Items returns a copy of the feed in display order.
func (s *Synchronizer) Items() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of items in the feed.
func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Cursor returns the current pagination position.
func (s *Synchronizer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// PageSize returns the cursor increment.
func (s *Synchronizer) PageSize() int {
	return s.pageSize
}

// Contains reports whether id is in the feed.
func (s *Synchronizer) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.known[id]
	return ok
}

// Lookup returns the item with the given id.
func (s *Synchronizer) Lookup(id string) (models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.known[id]; !ok {
		return models.Item{}, false
	}
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return models.Item{}, false
}

// Find resolves ref as an exact id first, then as an id prefix of at least
// MinPrefixLength characters.
func (s *Synchronizer) Find(ref string) (models.Item, error) {
	ref = strings.TrimSpace(ref)
	if item, ok := s.Lookup(ref); ok {
		return item, nil
	}
	if len(ref) < MinPrefixLength {
		return models.Item{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var match *models.Item
	for i := range s.items {
		if strings.HasPrefix(s.items[i].ID, ref) {
			if match != nil {
				return models.Item{}, fmt.Errorf("%w: %s", ErrAmbiguous, ref)
			}
			match = &s.items[i]
		}
	}
	if match == nil {
		return models.Item{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return *match, nil
}
