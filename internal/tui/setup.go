// ABOUTME: Interactive TUI wizard for configuring the snapfeed transfer backend.
// ABOUTME: 3-step bubbletea model collecting backend, server URL or bucket, and page size.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harper/snapfeed/internal/config"
)

// Step represents the current wizard step.
type Step int

const (
	StepBackend Step = iota
	StepTarget
	StepPageSize
	StepDone
)

// SetupModel is the bubbletea model for the setup wizard.
type SetupModel struct {
	step     Step
	inputs   [3]textinput.Model
	invalid  string
	quitting bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	brandStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// NewSetupModel creates a new setup wizard model, pre-filling with existing config values.
// target is the server URL for the rest backend or the bucket for s3.
func NewSetupModel(backend, target string, pageSize int) SetupModel {
	backendInput := textinput.New()
	backendInput.Placeholder = config.BackendREST
	backendInput.Focus()
	backendInput.Width = 50
	if backend != "" {
		backendInput.SetValue(backend)
	}

	targetInput := textinput.New()
	targetInput.Placeholder = config.DefaultServerURL
	targetInput.Width = 50
	if target != "" {
		targetInput.SetValue(target)
	}

	pageInput := textinput.New()
	pageInput.Placeholder = strconv.Itoa(config.DefaultPageSize)
	pageInput.Width = 10
	if pageSize > 0 {
		pageInput.SetValue(strconv.Itoa(pageSize))
	}

	return SetupModel{
		step:   StepBackend,
		inputs: [3]textinput.Model{backendInput, targetInput, pageInput},
	}
}

// Init implements tea.Model.
func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEscape:
			m.quitting = true
			return m, tea.Quit
		}

		if m.step < StepDone {
			return m.updateInput(msg)
		}
	default:
		// Forward other messages (e.g. cursor blink) to the active input
		if m.step < StepDone {
			idx := int(m.step)
			var cmd tea.Cmd
			m.inputs[idx], cmd = m.inputs[idx].Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m SetupModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		return m.handleEnter()
	}

	idx := int(m.step)
	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return m, cmd
}

func (m SetupModel) backend() string {
	return m.inputs[0].Value()
}

func (m SetupModel) handleEnter() (tea.Model, tea.Cmd) {
	idx := int(m.step)
	m.invalid = ""

	switch m.step {
	case StepBackend:
		val := strings.ToLower(strings.TrimSpace(m.inputs[0].Value()))
		if val == "" {
			val = config.BackendREST
		}
		if val != config.BackendREST && val != config.BackendS3 {
			m.invalid = "backend must be rest or s3"
			return m, nil
		}
		m.inputs[0].SetValue(val)
		if val == config.BackendS3 {
			m.inputs[1].Placeholder = "bucket name"
		}

	case StepTarget:
		val := strings.TrimSpace(m.inputs[1].Value())
		if m.backend() == config.BackendREST {
			if val == "" {
				val = config.DefaultServerURL
			}
			if !strings.HasPrefix(val, "http://") && !strings.HasPrefix(val, "https://") {
				m.invalid = "server URL must start with http:// or https://"
				return m, nil
			}
			val = strings.TrimRight(val, "/")
		} else if val == "" {
			m.invalid = "bucket is required"
			return m, nil
		}
		m.inputs[1].SetValue(val)

	case StepPageSize:
		val := strings.TrimSpace(m.inputs[2].Value())
		if val == "" {
			val = strconv.Itoa(config.DefaultPageSize)
		}
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 || n > config.MaxPageSize {
			m.invalid = fmt.Sprintf("page size must be between 1 and %d", config.MaxPageSize)
			return m, nil
		}
		m.inputs[2].SetValue(strconv.Itoa(n))
	}

	m.inputs[idx].Blur()

	switch m.step {
	case StepBackend:
		m.step = StepTarget
		m.inputs[1].Focus()
		return m, textinput.Blink
	case StepTarget:
		m.step = StepPageSize
		m.inputs[2].Focus()
		return m, textinput.Blink
	case StepPageSize:
		m.step = StepDone
		return m, tea.Quit
	}

	return m, nil
}

func (m SetupModel) targetName() string {
	if m.backend() == config.BackendS3 {
		return "Bucket"
	}
	return "Server URL"
}

// View implements tea.Model.
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   SNAPFEED"))
	b.WriteString(titleStyle.Render(" - Setup"))
	b.WriteString("\n\n")
	b.WriteString("Configure where your images live.\n\n")

	switch m.step {
	case StepBackend:
		b.WriteString(stepStyle.Render("Step 1 of 3: Backend"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(rest or s3, press Enter for default)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[0].View())
		b.WriteString("\n")

	case StepTarget:
		b.WriteString(fmt.Sprintf("  Backend: %s\n\n", m.backend()))
		b.WriteString(stepStyle.Render("Step 2 of 3: " + m.targetName()))
		b.WriteString("\n")
		if m.backend() == config.BackendREST {
			b.WriteString(promptStyle.Render(fmt.Sprintf("(press Enter for default: %s)", config.DefaultServerURL)))
			b.WriteString("\n")
		}
		b.WriteString(m.inputs[1].View())
		b.WriteString("\n")

	case StepPageSize:
		b.WriteString(fmt.Sprintf("  Backend: %s\n", m.backend()))
		b.WriteString(fmt.Sprintf("  %s: %s\n\n", m.targetName(), m.inputs[1].Value()))
		b.WriteString(stepStyle.Render("Step 3 of 3: Page Size"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(fmt.Sprintf("(images per fetch, press Enter for default: %d)", config.DefaultPageSize)))
		b.WriteString("\n")
		b.WriteString(m.inputs[2].View())
		b.WriteString("\n")

	case StepDone:
		b.WriteString(successStyle.Render("Setup complete!"))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("  Backend:    %s\n", m.backend()))
		b.WriteString(fmt.Sprintf("  %-11s %s\n", m.targetName()+":", m.inputs[1].Value()))
		b.WriteString(fmt.Sprintf("  Page size:  %s\n", m.inputs[2].Value()))
		b.WriteString("\n")
	}

	if m.invalid != "" {
		b.WriteString(errorStyle.Render(m.invalid))
		b.WriteString("\n")
	}

	return b.String()
}

// Result returns the entered values.
func (m SetupModel) Result() (backend, target string, pageSize int) {
	n, _ := strconv.Atoi(m.inputs[2].Value())
	return m.backend(), m.inputs[1].Value(), n
}

// ShouldSave returns true if the wizard completed and the user did not cancel.
func (m SetupModel) ShouldSave() bool {
	return m.step == StepDone && !m.quitting
}
