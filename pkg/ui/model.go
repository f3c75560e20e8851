// Package ui is the terminal front end: a tag row driving a date facet
// chart drawn with asciigraph.
package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/datefacet/pkg/chart"
	"github.com/vanderheijden86/datefacet/pkg/export"
	"github.com/vanderheijden86/datefacet/pkg/loader"
	"github.com/vanderheijden86/datefacet/pkg/model"
	"github.com/vanderheijden86/datefacet/pkg/palette"
	"github.com/vanderheijden86/datefacet/pkg/taginput"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
)

// Options configure a Model.
type Options struct {
	Title string
	Tags  taginput.Options
	Chart chart.Options
	// Fetcher looks up added terms. Nil leaves added terms as chips only.
	Fetcher taginput.Fetcher
	// SnapshotDir is where ctrl+s writes SVG files.
	SnapshotDir string
	// DataPath is reloaded whenever Changes fires.
	DataPath string
	Changes  <-chan struct{}
	Logger   *slog.Logger
}

// FileChangedMsg is sent when the payload file changes on disk.
type FileChangedMsg struct{}

// PayloadReloadedMsg carries the result of re-reading the payload file.
type PayloadReloadedMsg struct {
	Payload model.Payload
	Err     error
}

// FetchResultMsg carries the facets fetched for one added term.
type FetchResultMsg struct {
	Term   string
	Facets []model.Facet
	Err    error
}

// Model is the bubbletea model for the interactive chart.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts    Options
	theme   Theme
	state   *chart.State
	tags    *taginput.TagInput
	adapter *taginput.Adapter
	logger  *slog.Logger

	input   textinput.Model
	spinner spinner.Model
	pending map[string]int

	selected int
	showHelp bool
	help     viewport.Model

	width, height int

	statusMsg     string
	statusIsError bool
}

// New builds a model showing p. A payload holding more facets than the
// palette has colours still yields a usable model; the error says which
// terms were left out.
func New(p model.Payload, opts Options) (Model, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Title == "" {
		opts.Title = "datefacet"
	}
	if len(opts.Chart.Colors) == 0 {
		opts.Chart.Colors = palette.Tableau10
	}

	state, stateErr := chart.NewState(p, opts.Chart)
	if state == nil {
		return Model{}, stateErr
	}
	tags := taginput.New(opts.Tags, state.Terms()...)
	adapter := taginput.NewAdapter(tags, state, opts.Fetcher, taginput.WithLogger(opts.Logger))

	ti := textinput.New()
	ti.Placeholder = "Add a term"
	ti.Prompt = "› "
	ti.CharLimit = 200
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		theme:    DefaultTheme(lipgloss.DefaultRenderer()),
		state:    state,
		tags:     tags,
		adapter:  adapter,
		logger:   opts.Logger,
		input:    ti,
		spinner:  sp,
		pending:  make(map[string]int),
		selected: -1,
		width:    defaultWidth,
		height:   defaultHeight,
	}
	if stateErr != nil {
		m.setStatus(stateErr.Error(), true)
	}
	return m, stateErr
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.opts.Changes))
}

// waitForChange blocks until the watcher signals a change. A nil channel
// yields no command.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		<-ch
		return FileChangedMsg{}
	}
}

func reloadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		p, err := loader.LoadPayload(path)
		return PayloadReloadedMsg{Payload: p, Err: err}
	}
}

func (m Model) fetchCmd(term string) tea.Cmd {
	ctx, adapter := m.ctx, m.adapter
	return func() tea.Msg {
		facets, err := adapter.Fetch(ctx, term)
		return FetchResultMsg{Term: term, Facets: facets, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-6, 10)
		if m.showHelp {
			m.openHelp()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case FetchResultMsg:
		m.finishFetch(msg)
		return m, nil

	case FileChangedMsg:
		if m.opts.DataPath != "" {
			cmds = append(cmds, reloadCmd(m.opts.DataPath))
		}
		cmds = append(cmds, waitForChange(m.opts.Changes))
		return m, tea.Batch(cmds...)

	case PayloadReloadedMsg:
		m.applyReload(msg)
		return m, nil

	case spinner.TickMsg:
		if m.loading() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch msg.String() {
		case "ctrl+c", "esc", "?":
		default:
			var cmd tea.Cmd
			m.help, cmd = m.help.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "ctrl+c":
		m.cancel()
		m.adapter.Close()
		return m, tea.Quit

	case "esc":
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		m.cancel()
		m.adapter.Close()
		return m, tea.Quit

	case "?":
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if m.input.Value() == "" {
			m.showHelp = true
			m.openHelp()
			return m, nil
		}

	case "enter":
		return m.addFromInput()

	case "backspace":
		if m.input.Value() == "" {
			if v, ok := m.tags.RemoveLast(); ok {
				m.selected = -1
				m.setStatus(fmt.Sprintf("Removed %q", v), false)
			}
			return m, nil
		}

	case "tab":
		if n := m.tags.Len(); n > 0 {
			m.selected = (m.selected + 1) % n
		}
		return m, nil

	case "shift+tab":
		if n := m.tags.Len(); n > 0 {
			if m.selected <= 0 {
				m.selected = n - 1
			} else {
				m.selected--
			}
		}
		return m, nil

	case "ctrl+x":
		items := m.tags.Items()
		if m.selected >= 0 && m.selected < len(items) {
			v := items[m.selected]
			m.adapter.Remove(v)
			m.setStatus(fmt.Sprintf("Removed %q", v), false)
			if m.selected >= m.tags.Len() {
				m.selected = m.tags.Len() - 1
			}
		}
		return m, nil

	case "ctrl+s":
		m.saveSnapshot()
		return m, nil

	case "ctrl+y":
		m.copySVG()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// addFromInput adds the typed value(s) and starts a fetch for each one
// that was accepted.
func (m Model) addFromInput() (tea.Model, tea.Cmd) {
	raw := m.input.Value()
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}
	added, err := m.adapter.Accept(raw)
	switch {
	case errors.Is(err, taginput.ErrDuplicate):
		text := m.tags.Options().UniqueItemText
		if text == "" {
			text = "Only unique values can be added"
		}
		m.setStatus(text, true)
	case errors.Is(err, taginput.ErrMaxItems):
		m.setStatus(fmt.Sprintf("Only %d values can be added", m.tags.Options().MaxItems), true)
	case errors.Is(err, palette.ErrPaletteExhausted):
		m.setStatus("No chart colours left; remove a term first", true)
	case err != nil && !errors.Is(err, taginput.ErrEmpty):
		m.setStatus(err.Error(), true)
	}
	if len(added) == 0 {
		return m, nil
	}
	m.input.SetValue("")
	m.selected = -1
	if err == nil {
		m.setStatus(fmt.Sprintf("Added %s", strings.Join(added, ", ")), false)
	}
	if !m.adapter.CanFetch() {
		return m, nil
	}

	wasLoading := m.loading()
	cmds := make([]tea.Cmd, 0, len(added)+1)
	for _, term := range added {
		m.pending[term]++
		cmds = append(cmds, m.fetchCmd(term))
	}
	if !wasLoading {
		cmds = append(cmds, m.spinner.Tick)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) finishFetch(msg FetchResultMsg) {
	if n := m.pending[msg.Term]; n <= 1 {
		delete(m.pending, msg.Term)
	} else {
		m.pending[msg.Term] = n - 1
	}
	if msg.Err != nil {
		m.setStatus(msg.Err.Error(), true)
		return
	}
	ok, err := m.adapter.Merge(msg.Term, msg.Facets)
	switch {
	case err != nil:
		m.setStatus(err.Error(), true)
	case !ok:
		// term removed while the fetch was in flight
	case len(msg.Facets) == 0:
		text := m.tags.Options().NoResultsText
		if text == "" {
			text = "No results found"
		}
		m.setStatus(fmt.Sprintf("%s: %s", text, msg.Term), false)
	default:
		m.setStatus(fmt.Sprintf("Charted %q", msg.Term), false)
	}
}

func (m *Model) applyReload(msg PayloadReloadedMsg) {
	if msg.Err != nil {
		m.logger.Warn("payload reload failed", "path", m.opts.DataPath, "error", msg.Err)
		m.setStatus(fmt.Sprintf("Reload failed: %v", msg.Err), true)
		return
	}
	_, err := m.state.SetPayload(msg.Payload)
	errs := []error{err}
	for _, item := range m.tags.Items() {
		if m.pending[item] == 0 && !m.state.HasTerm(item) {
			m.tags.Remove(item)
		}
	}
	for _, term := range m.state.Terms() {
		if term == "" || m.tags.Has(term) {
			continue
		}
		if _, aerr := m.tags.Add(term); aerr != nil {
			errs = append(errs, aerr)
		}
	}
	m.selected = -1
	if err := errors.Join(errs...); err != nil {
		m.logger.Warn("payload reload incomplete", "path", m.opts.DataPath, "error", err)
		m.setStatus(err.Error(), true)
		return
	}
	m.setStatus(fmt.Sprintf("Reloaded %d facets", len(msg.Payload.Facets)), false)
}

func (m *Model) saveSnapshot() {
	dir := m.opts.SnapshotDir
	if dir == "" {
		dir = "."
	}
	path, err := export.SaveSnapshot(export.SnapshotOptions{
		Path:   export.SnapshotPath(dir, "svg"),
		Format: "svg",
		Scene:  m.state.Scene(),
	})
	if err != nil {
		m.setStatus(fmt.Sprintf("Snapshot failed: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("Saved %s", path), false)
}

func (m *Model) copySVG() {
	var buf bytes.Buffer
	if err := export.RenderSVG(&buf, m.state.Scene()); err != nil {
		m.setStatus(fmt.Sprintf("Render failed: %v", err), true)
		return
	}
	if err := clipboard.WriteAll(buf.String()); err != nil {
		m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
		return
	}
	m.setStatus("Copied chart SVG to clipboard", false)
}

// openHelp sizes the help viewport to the window and fills it.
func (m *Model) openHelp() {
	m.help = viewport.New(max(m.width-2, 20), max(m.height-8, 5))
	m.help.SetContent(renderHelp(m.width))
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusIsError = isErr
}

func (m Model) loading() bool { return len(m.pending) > 0 }

// Items returns the terms currently shown as chips.
func (m Model) Items() []string { return m.tags.Items() }

// State returns the chart state the model draws.
func (m Model) State() *chart.State { return m.state }

func (m Model) View() string {
	t := m.theme
	var b strings.Builder

	header := t.Header.Render(m.opts.Title)
	count := t.Muted.Render(fmt.Sprintf(" %d/%d terms", m.tags.Len(), m.tags.Options().MaxItems))
	b.WriteString(header + count + "\n\n")

	if chips := renderChips(t, m.tags.Items(), m.state.Color, m.selected, m.width); chips != "" {
		b.WriteString(chips + "\n")
	}
	b.WriteString(m.input.View() + "\n")
	b.WriteString(m.hintLine() + "\n\n")

	if m.showHelp {
		b.WriteString(m.help.View())
	} else {
		b.WriteString(m.chartPane())
	}
	b.WriteString("\n")

	if m.statusMsg != "" {
		style := t.Status
		if m.statusIsError {
			style = t.StatusErr
		}
		b.WriteString(style.Render(truncate(m.statusMsg, max(m.width-2, 10))))
	}
	return b.String()
}

func (m Model) hintLine() string {
	if m.loading() {
		text := m.tags.Options().LoadingText
		if text == "" {
			text = "Loading..."
		}
		return m.spinner.View() + " " + m.theme.Muted.Render(text)
	}
	if v := strings.TrimSpace(m.input.Value()); v != "" {
		if text := m.tags.AddItemText(v); text != "" {
			return m.theme.Muted.Render(text)
		}
	}
	return m.theme.Muted.Render("? help")
}

func (m Model) chartPane() string {
	scene := m.state.Scene()
	if len(scene.Series) == 0 {
		text := m.tags.Options().NoChoicesText
		if text == "" {
			text = "No facets to draw"
		}
		return m.theme.Pane.Render(m.theme.Muted.Render(padRight(text, max(m.width-6, 10))))
	}
	plotWidth := max(m.width-16, 10)
	plotHeight := max(m.height-14, 5)
	body := renderPlot(scene, plotWidth, plotHeight) + "\n" + renderLegend(m.theme, scene)
	return m.theme.Pane.Render(body)
}
