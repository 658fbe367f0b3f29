// Package tui implements the interactive terminal browser for an
// organization's repositories. Scrolling near the end of the loaded list is
// the boundary that requests the next page.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/gh-org-repos/pkg/client"
	"github.com/Sternrassler/gh-org-repos/pkg/pagination"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// chromeRows is the number of screen rows not used by the list: title,
// status line and help line.
const chromeRows = 3

// defaultRows is used until the first tea.WindowSizeMsg arrives.
const defaultRows = 10

// Pager is the part of the pagination controller the browser drives.
type Pager interface {
	pagination.BoundaryTarget
	State() pagination.State[client.Repository]
	Retry(ctx context.Context)
	Reset()
}

// loadDoneMsg reports that a load or retry command has settled.
type loadDoneMsg struct {
	started bool
}

// Model is the bubbletea model of the repository browser.
type Model struct {
	ctx      context.Context
	pager    Pager
	org      string
	keys     KeyMap
	theme    Theme
	detector pagination.BoundaryDetector
	spinner  spinner.Model

	state  pagination.State[client.Repository]
	cursor int
	offset int
	width  int
	height int

	// pending is set while a load or retry command is outstanding.
	pending bool
}

// NewModel creates a browser for org driven by pager. ctx bounds every
// page request the browser starts.
func NewModel(ctx context.Context, pager Pager, org string) Model {
	return Model{
		ctx:      ctx,
		pager:    pager,
		org:      org,
		keys:     DefaultKeyMap,
		theme:    DefaultTheme,
		detector: pagination.BoundaryDetector{Margin: pagination.DefaultBoundaryMargin},
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		state:    pager.State(),
	}
}

// Init implements tea.Model. The first boundary check runs on the initial
// tea.WindowSizeMsg.
func (model Model) Init() tea.Cmd {
	return model.spinner.Tick
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.scrollToCursor()
		return model, model.startLoad()

	case tea.KeyMsg:
		return model.handleKey(message)

	case loadDoneMsg:
		model.pending = false
		model.refresh()
		// Keep loading while the loaded list does not reach past the viewport.
		return model, model.startLoad()

	case spinner.TickMsg:
		var command tea.Cmd
		model.spinner, command = model.spinner.Update(message)
		model.refresh()
		return model, command
	}

	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.Up):
		model.moveCursor(-1)
	case key.Matches(message, model.keys.Down):
		model.moveCursor(1)
	case key.Matches(message, model.keys.PageUp):
		model.moveCursor(-model.visibleRows())
	case key.Matches(message, model.keys.PageDown):
		model.moveCursor(model.visibleRows())
	case key.Matches(message, model.keys.Home):
		model.moveCursor(-len(model.state.Items))
	case key.Matches(message, model.keys.End):
		model.moveCursor(len(model.state.Items))

	case key.Matches(message, model.keys.Retry):
		return model, model.startRetry()

	case key.Matches(message, model.keys.Reset):
		model.pager.Reset()
		model.pending = false
		model.cursor = 0
		model.offset = 0
		model.refresh()
	}

	return model, model.startLoad()
}

// startLoad returns a command signalling the boundary when the end of the
// list is in view and a load may start, nil otherwise.
func (model *Model) startLoad() tea.Cmd {
	if model.pending {
		return nil
	}
	state := model.state
	if state.IsBusy() || state.Exhausted || state.LastError != "" {
		return nil
	}

	lastVisible, total := model.lastVisible(), len(state.Items)
	if !model.detector.Reached(lastVisible, total) {
		return nil
	}

	model.pending = true
	return model.observe(lastVisible, total)
}

func (model Model) observe(lastVisible, total int) tea.Cmd {
	ctx, pager, detector := model.ctx, model.pager, model.detector
	return func() tea.Msg {
		return loadDoneMsg{started: detector.Observe(ctx, pager, lastVisible, total)}
	}
}

func (model *Model) startRetry() tea.Cmd {
	if model.pending || !model.state.CanRetry() {
		return nil
	}

	model.pending = true
	ctx, pager := model.ctx, model.pager
	return func() tea.Msg {
		pager.Retry(ctx)
		return loadDoneMsg{started: true}
	}
}

func (model *Model) refresh() {
	model.state = model.pager.State()
	if n := len(model.state.Items); model.cursor >= n {
		model.cursor = max(n-1, 0)
	}
	model.scrollToCursor()
}

func (model *Model) moveCursor(delta int) {
	n := len(model.state.Items)
	if n == 0 {
		return
	}
	model.cursor = min(max(model.cursor+delta, 0), n-1)
	model.scrollToCursor()
}

func (model *Model) scrollToCursor() {
	rows := model.visibleRows()
	if model.cursor < model.offset {
		model.offset = model.cursor
	}
	if model.cursor >= model.offset+rows {
		model.offset = model.cursor - rows + 1
	}
	if model.offset < 0 {
		model.offset = 0
	}
}

func (model Model) visibleRows() int {
	if model.height == 0 {
		return defaultRows
	}
	return max(model.height-chromeRows, 1)
}

// lastVisible is the index of the last list row on screen, -1 when empty.
func (model Model) lastVisible() int {
	return min(model.offset+model.visibleRows(), len(model.state.Items)) - 1
}

// View implements tea.Model.
func (model Model) View() string {
	var builder strings.Builder

	builder.WriteString(model.theme.Title.Render(model.org + " · public repositories"))
	builder.WriteByte('\n')

	items := model.state.Items
	end := min(model.offset+model.visibleRows(), len(items))
	for index := model.offset; index < end; index++ {
		builder.WriteString(model.renderRow(items[index], index == model.cursor))
		builder.WriteByte('\n')
	}

	builder.WriteString(model.statusLine())
	builder.WriteByte('\n')
	builder.WriteString(model.helpLine())

	return builder.String()
}

func (model Model) renderRow(repo client.Repository, selected bool) string {
	name := fmt.Sprintf("%-32s", ansi.Truncate(repo.Name, 32, "…"))
	stars := fmt.Sprintf("★ %-6d", repo.StargazersCount)
	language := fmt.Sprintf("%-12s", ansi.Truncate(repo.Language, 12, "…"))

	if selected {
		row := name + " " + stars + " " + language + " " + repo.Description
		if model.width > 0 {
			row = ansi.Truncate(row, model.width, "…")
		}
		return model.theme.Selected.Render(row)
	}

	row := model.theme.Row.Render(name) + " " +
		model.theme.Stars.Render(stars) + " " +
		model.theme.Language.Render(language) + " " +
		model.theme.Dim.Render(repo.Description)
	if model.width > 0 {
		row = ansi.Truncate(row, model.width, "…")
	}
	return row
}

func (model Model) statusLine() string {
	state := model.state
	count := len(state.Items)

	switch {
	case state.Status == pagination.StatusLoading:
		return model.spinner.View() + fmt.Sprintf(" Loading page %d…", state.Cursor+1)
	case state.Status == pagination.StatusRetrying:
		return model.spinner.View() + fmt.Sprintf(" Retrying (attempt %d of %d)…", state.RetryCount, state.MaxRetries)
	case state.LastError != "" && state.CanRetry():
		left := state.MaxRetries - state.RetryCount
		return model.theme.Error.Render(state.LastError) + model.theme.Dim.Render(fmt.Sprintf("  r to retry (%d left)", left))
	case state.LastError != "":
		return model.theme.Error.Render(state.LastError) + model.theme.Dim.Render("  no retries left, R to start over")
	case state.Exhausted && count == 0:
		return model.theme.Dim.Render("No public repositories")
	case state.IsExhausted():
		return model.theme.Done.Render(fmt.Sprintf("All %d repositories loaded", count))
	default:
		return model.theme.Dim.Render(fmt.Sprintf("%d repositories loaded", count))
	}
}

func (model Model) helpLine() string {
	bindings := model.keys.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, model.theme.HelpKey.Render(help.Key)+" "+model.theme.Dim.Render(help.Desc))
	}
	return strings.Join(parts, "  ")
}
