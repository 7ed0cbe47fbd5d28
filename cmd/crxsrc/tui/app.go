package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/tree"
)

// Options configures the browser.
type Options struct {
	// Title is shown in the header, usually the artifact path.
	Title string
	// Kind is the container kind, such as "crx3".
	Kind string
	// Root is the archive tree.
	Root *tree.Node
	// Entries is the number of archive entries, directories included.
	Entries int
}

// Model is the Bubble Tea model for the package browser.
type Model struct {
	options Options
	tree    *TreeView
	keys    keyMap
	help    help.Model
	search  textinput.Model

	searching bool
	status    string
	totalSize uint64

	width  int
	height int
}

// NewModel creates a browser model for opts.
func NewModel(opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.PromptStyle = searchPromptStyle
	ti.Placeholder = "path"
	ti.CharLimit = 256

	var total uint64
	if opts.Root != nil {
		total = subtreeSize(opts.Root)
	}

	return Model{
		options:   opts,
		tree:      NewTreeView(opts.Root),
		keys:      defaultKeyMap(),
		help:      help.New(),
		search:    ti,
		totalSize: total,
		width:     80,
		height:    24,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	logging.Get("tui").Debug("browser opened", "title", m.options.Title, "entries", m.options.Entries)
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// handleSearchKey feeds the search prompt until it is submitted or
// abandoned.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		query := m.search.Value()
		if m.tree.Find(query) {
			m.status = ""
		} else {
			m.status = fmt.Sprintf("no match for %q", query)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

// handleKey handles keyboard input while browsing.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	page := max(m.treeHeight()-1, 1)

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.tree.MoveUp(1)
	case key.Matches(msg, m.keys.Down):
		m.tree.MoveDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.tree.MoveUp(page)
	case key.Matches(msg, m.keys.PageDown):
		m.tree.MoveDown(page)
	case key.Matches(msg, m.keys.Top):
		m.tree.Top()
	case key.Matches(msg, m.keys.Bottom):
		m.tree.Bottom()
	case key.Matches(msg, m.keys.Toggle):
		m.tree.Toggle()
	case key.Matches(msg, m.keys.Expand):
		m.tree.Expand()
	case key.Matches(msg, m.keys.Collapse):
		m.tree.Collapse()
	case key.Matches(msg, m.keys.ExpandAll):
		m.tree.ExpandAll()
	case key.Matches(msg, m.keys.CollapseAll):
		m.tree.CollapseAll()
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue("")
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Next):
		if m.tree.Query() != "" && !m.tree.FindNext() {
			m.status = fmt.Sprintf("no match for %q", m.tree.Query())
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// treeHeight is the number of rows left for the tree.
func (m Model) treeHeight() int {
	helpLines := 1
	if m.help.ShowAll {
		helpLines = len(m.keys.FullHelp()[0])
	}
	// Header, divider, divider above the footer, status line.
	return max(m.height-4-helpLines, 1)
}

// View renders the browser.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(renderDivider(m.width))
	b.WriteString("\n")
	b.WriteString(m.tree.View(m.width, m.treeHeight()))
	b.WriteString(renderDivider(m.width))
	b.WriteString("\n")

	switch {
	case m.searching:
		b.WriteString(m.search.View())
	case m.status != "":
		b.WriteString(mutedTextStyle.Render(m.status))
	default:
		if n := m.tree.Selected(); n != nil {
			b.WriteString(mutedTextStyle.Render(truncatePath(n.Path, max(m.width-1, 4))))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

// renderHeader renders the title line with archive stats.
func (m Model) renderHeader() string {
	title := titleStyle.Render("CRXSRC")
	stats := fmt.Sprintf("  %s  •  %s  •  %d entries  •  %s",
		truncatePath(m.options.Title, 40),
		m.options.Kind,
		m.options.Entries,
		humanize.IBytes(m.totalSize),
	)
	return " " + title + mutedTextStyle.Render(stats)
}

// Run starts the browser and blocks until it exits.
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
