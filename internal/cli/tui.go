package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/segdag/pkg/vertex"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// LogModel - Interactive ancestry browser
// =============================================================================

// LogModel is the bubbletea model behind log --interactive. Enter jumps to
// the first parent of the selected vertex when it is loaded.
type LogModel struct {
	Entries []logEntry
	Cursor  int
	Height  int
	Offset  int

	index map[vertex.Name]int
}

// NewLogModel creates a model over entries in display order.
func NewLogModel(entries []logEntry) LogModel {
	index := make(map[vertex.Name]int, len(entries))
	for i, e := range entries {
		index[e.Name] = i
	}
	return LogModel{Entries: entries, Height: 15, index: index}
}

func (m LogModel) Init() tea.Cmd {
	return nil
}

func (m LogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			m.moveTo(m.Cursor - 1)
		case "down", "j":
			m.moveTo(m.Cursor + 1)
		case "enter", "p":
			if m.Cursor < len(m.Entries) {
				if ps := m.Entries[m.Cursor].Parents; len(ps) > 0 {
					if i, ok := m.index[ps[0]]; ok {
						m.moveTo(i)
					}
				}
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
		m.moveTo(m.Cursor)
	}
	return m, nil
}

// moveTo places the cursor at i, clamped, and scrolls it into view.
func (m *LogModel) moveTo(i int) {
	if len(m.Entries) == 0 {
		return
	}
	m.Cursor = max(0, min(i, len(m.Entries)-1))
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m LogModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Ancestors"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ first parent  q quit"))
	b.WriteString("\n\n")

	if len(m.Entries) == 0 {
		b.WriteString(listDimStyle.Render("  (empty graph)"))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Entries))
	rows := logRows(m.Entries[m.Offset:end], m.Cursor-m.Offset)
	b.WriteString(renderTable(logHeaders, rows))
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Entries))))
	return b.String()
}
