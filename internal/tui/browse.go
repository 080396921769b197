// ABOUTME: Interactive bubbletea browser over a feed synchronizer
// ABOUTME: Auto-loads pages near the end of the list, refreshes, uploads and exports

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harper/snapfeed/internal/feed"
	"github.com/harper/snapfeed/internal/models"
	"github.com/harper/snapfeed/internal/upload"
)

// Uploader sends a local file and returns the confirmed item.
type Uploader interface {
	Upload(ctx context.Context, path, label string) (*models.Item, error)
}

// Exporter saves an item to a directory and returns the written path.
type Exporter interface {
	Export(ctx context.Context, item models.Item, dir string) (string, error)
}

// BrowseOptions wires the browser to its collaborators.
type BrowseOptions struct {
	Feed      *feed.Synchronizer
	Uploader  Uploader
	Exporter  Exporter
	ExportDir string
	Source    string        // shown in the header, e.g. the server URL
	Timeout   time.Duration // per-command deadline
	NearEnd   int           // rows from the end that trigger a page load
}

type browseMode int

const (
	modeList browseMode = iota
	modeUploadPath
	modeUploadLabel
)

type pageLoadedMsg struct {
	res   feed.Result
	err   error
	reset bool
}

type uploadDoneMsg struct {
	item *models.Item
	err  error
}

type exportDoneMsg struct {
	path string
	err  error
}

// BrowseModel is the bubbletea model for the image browser.
type BrowseModel struct {
	opts     BrowseOptions
	feed     *feed.Synchronizer
	selected int
	mode     browseMode
	inputs   [2]textinput.Model
	spinner  spinner.Model
	busy     bool // an upload or export is running
	status   string
	err      error
	height   int
	quitting bool
}

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// NewBrowseModel creates a browser over opts.Feed.
func NewBrowseModel(opts BrowseOptions) BrowseModel {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.NearEnd <= 0 {
		opts.NearEnd = 2
	}

	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/image.png"
	pathInput.Width = 50

	labelInput := textinput.New()
	labelInput.Placeholder = "label (optional)"
	labelInput.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	return BrowseModel{
		opts:    opts,
		feed:    opts.Feed,
		inputs:  [2]textinput.Model{pathInput, labelInput},
		spinner: sp,
	}
}

// Init implements tea.Model. The first page is requested on start.
func (m BrowseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd())
}

func (m BrowseModel) fetchCmd() tea.Cmd {
	f, timeout := m.feed, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		res, err := f.FetchNextPage(ctx, false)
		return pageLoadedMsg{res: res, err: err}
	}
}

func (m BrowseModel) resetCmd() tea.Cmd {
	f, timeout := m.feed, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		res, err := f.Reset(ctx)
		return pageLoadedMsg{res: res, err: err, reset: true}
	}
}

func (m BrowseModel) uploadCmd(path, label string) tea.Cmd {
	u, timeout := m.opts.Uploader, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		item, err := u.Upload(ctx, path, label)
		return uploadDoneMsg{item: item, err: err}
	}
}

func (m BrowseModel) exportCmd(item models.Item) tea.Cmd {
	e, dir, timeout := m.opts.Exporter, m.opts.ExportDir, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		path, err := e.Export(ctx, item, dir)
		return exportDoneMsg{path: path, err: err}
	}
}

// nearEnd reports whether the selection is close enough to the end of the
// list that the next page should be requested.
func (m BrowseModel) nearEnd() bool {
	return m.selected >= m.feed.Len()-m.opts.NearEnd
}

// maybeLoadMore asks for the next page when the selection is near the end.
// The synchronizer drops the request if one is already running or the feed
// is exhausted.
func (m BrowseModel) maybeLoadMore() tea.Cmd {
	if !m.nearEnd() || m.feed.IsExhausted() || m.feed.IsLoading() {
		return nil
	}
	return m.fetchCmd()
}

// Update implements tea.Model.
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pageLoadedMsg:
		return m.handlePage(msg)

	case uploadDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		if m.feed.InsertLocal(*msg.item) {
			m.selected = 0
		}
		m.status = fmt.Sprintf("Uploaded %s", msg.item.DisplayName())
		return m, nil

	case exportDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Saved %s", msg.path)
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.mode != modeList {
			return m.updateInput(msg)
		}
		return m.updateList(msg)

	default:
		if m.mode != modeList {
			idx := m.inputIndex()
			var cmd tea.Cmd
			m.inputs[idx], cmd = m.inputs[idx].Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m BrowseModel) handlePage(msg pageLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = msg.err
		m.status = ""
		return m, nil
	}
	m.err = nil

	switch {
	case msg.res.Stale:
		// A refresh replaced the feed while this page was in flight and the
		// refresh's own fetch was skipped; start it now.
		return m, m.fetchCmd()
	case msg.res.Skipped:
		return m, nil
	case msg.res.Exhausted:
		m.status = "No more images"
	case msg.reset:
		m.selected = 0
		m.status = fmt.Sprintf("Refreshed, %d images", m.feed.Len())
	default:
		m.status = fmt.Sprintf("Loaded %d images", m.feed.Len())
	}

	if m.selected >= m.feed.Len() {
		m.selected = max(m.feed.Len()-1, 0)
	}
	return m, m.maybeLoadMore()
}

func (m BrowseModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < m.feed.Len()-1 {
			m.selected++
		}
		return m, m.maybeLoadMore()

	case "g", "home":
		m.selected = 0
		return m, nil

	case "G", "end":
		m.selected = max(m.feed.Len()-1, 0)
		return m, m.maybeLoadMore()

	case "r":
		m.status = "Refreshing..."
		return m, m.resetCmd()

	case "e":
		item, ok := m.selectedItem()
		if !ok || m.opts.Exporter == nil || m.busy {
			return m, nil
		}
		m.busy = true
		m.status = fmt.Sprintf("Exporting %s...", item.DisplayName())
		return m, m.exportCmd(item)

	case "u":
		if m.opts.Uploader == nil || m.busy {
			return m, nil
		}
		m.mode = modeUploadPath
		m.inputs[0].SetValue("")
		m.inputs[1].SetValue("")
		m.inputs[0].Focus()
		return m, textinput.Blink
	}

	return m, nil
}

func (m BrowseModel) inputIndex() int {
	if m.mode == modeUploadLabel {
		return 1
	}
	return 0
}

func (m BrowseModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	idx := m.inputIndex()

	switch msg.Type {
	case tea.KeyEscape:
		m.inputs[idx].Blur()
		m.mode = modeList
		m.status = "Upload cancelled"
		return m, nil

	case tea.KeyEnter:
		if m.mode == modeUploadPath {
			path := strings.TrimSpace(m.inputs[0].Value())
			if path == "" {
				return m, nil
			}
			m.inputs[0].Blur()
			m.inputs[1].Placeholder = upload.DefaultLabel(path)
			m.inputs[1].Focus()
			m.mode = modeUploadLabel
			return m, textinput.Blink
		}

		path := strings.TrimSpace(m.inputs[0].Value())
		label := strings.TrimSpace(m.inputs[1].Value())
		if label == "" {
			label = upload.DefaultLabel(path)
		}
		m.inputs[1].Blur()
		m.mode = modeList
		m.busy = true
		m.status = fmt.Sprintf("Uploading %s...", label)
		return m, m.uploadCmd(path, label)
	}

	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return m, cmd
}

func (m BrowseModel) selectedItem() (models.Item, bool) {
	items := m.feed.Items()
	if m.selected < 0 || m.selected >= len(items) {
		return models.Item{}, false
	}
	return items[m.selected], true
}

// visibleRows returns how many list rows fit on screen.
func (m BrowseModel) visibleRows() int {
	if m.height <= 0 {
		return 15
	}
	return max(m.height-8, 3)
}

// View implements tea.Model.
func (m BrowseModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   SNAPFEED"))
	if m.opts.Source != "" {
		b.WriteString(titleStyle.Render(" - " + m.opts.Source))
	}
	b.WriteString("\n\n")

	items := m.feed.Items()
	if len(items) == 0 && !m.feed.IsLoading() {
		b.WriteString(dimStyle.Render("  No images yet. Press u to upload one."))
		b.WriteString("\n")
	}

	rows := m.visibleRows()
	start := 0
	if m.selected >= rows {
		start = m.selected - rows + 1
	}
	end := min(start+rows, len(items))

	for i := start; i < end; i++ {
		item := items[i]
		line := fmt.Sprintf("%-10s %s", item.ShortID(), item.DisplayName())
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.feed.IsLoading():
		b.WriteString(m.spinner.View() + " Loading...")
		b.WriteString("\n")
	case m.feed.IsExhausted():
		b.WriteString(dimStyle.Render("No more images"))
		b.WriteString("\n")
	}

	switch m.mode {
	case modeUploadPath:
		b.WriteString(promptStyle.Render("Upload file (Enter to continue, Esc to cancel)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[0].View())
		b.WriteString("\n")
	case modeUploadLabel:
		b.WriteString(promptStyle.Render("Label (Enter to upload)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[1].View())
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(successStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(stepStyle.Render(fmt.Sprintf("%d images  j/k move  r refresh  e export  u upload  q quit", len(items))))
	b.WriteString("\n")
	return b.String()
}

// Selected returns the currently highlighted item.
func (m BrowseModel) Selected() (models.Item, bool) {
	return m.selectedItem()
}
