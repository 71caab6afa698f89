package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/tasks"
)

// maxFailuresShown caps the failure list on the result view.
const maxFailuresShown = 10

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PreviewView ViewState = iota
	ConfirmView
	ImportView
	ResultView
)

// Importer is the part of [tasks.ImportEngine] the TUI drives.
type Importer interface {
	Preview(ctx context.Context, uid string) ([]models.NormalizedRecord, error)
	Run(ctx context.Context, req tasks.ImportRequest, progress chan<- tasks.ProgressUpdate) (*tasks.ImportResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	importer     Importer
	req          tasks.ImportRequest
	width        int
	height       int
	recordList   list.Model
	records      []models.NormalizedRecord
	loaded       bool
	progressChan chan tasks.ProgressUpdate
	doneChan     chan importComplete
	progress     tasks.ProgressUpdate
	percent      float64
	cancelled    bool
	bar          progress.Model
	spinner      spinner.Model
	result       *tasks.ImportResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a TUI model that previews and then imports req.UID.
func NewModel(ctx context.Context, importer Importer, req tasks.ImportRequest) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:      ctx,
		view:     PreviewView,
		importer: importer,
		req:      req,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		spinner:  s,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts fetching the history preview.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchRecords(), m.spinner.Tick)
}

// Result returns the import result once the run has finished.
func (m *Model) Result() (*tasks.ImportResult, error) {
	return m.result, m.err
}

// State returns the current view.
func (m *Model) State() ViewState {
	return m.view
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-4, 10), 80)
		if m.loaded {
			m.recordList.SetSize(msg.Width-4, msg.Height-6)
		}
		return m, nil

	case spinner.TickMsg:
		if m.view != ImportView && m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ImportView:
			return m.handleImportKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgRecordsFetched:
		data := msg.data.(recordsFetched)
		m.loaded = true
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.records = data.records
		m.recordList = list.New(recordItems(data.records), list.NewDefaultDelegate(), 0, 0)
		m.recordList.Title = fmt.Sprintf("Listening history of %s (%d records)", m.req.UID, len(data.records))
		m.recordList.SetSize(m.width-4, m.height-6)
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if up, ok := update.Data.(tasks.UploadProgress); ok && up.Total > 0 {
			m.percent = float64(up.Attempted) / float64(up.Total)
		}
		return m, m.waitForProgress()

	case MsgImportComplete:
		data := msg.data.(importComplete)
		m.result, m.err = data.result, data.err
		m.view = ResultView
		m.progressChan, m.doneChan = nil, nil
		if m.cancel != nil {
			m.cancel()
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PreviewView:
		return m.renderPreview()
	case ConfirmView:
		return m.renderConfirm()
	case ImportView:
		return m.renderImport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.recordList.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if len(m.records) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}
	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = ImportView
		return m, m.startImport()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = PreviewView
		return m, nil
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	}
	return m, nil
}

// handleImportKeys only allows cancelling; the run finishes its in-flight batch before the result arrives.
func (m *Model) handleImportKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.cancel != nil && !m.cancelled {
		m.cancelled = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) || key.Matches(msg, m.keys.enter) {
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != PreviewView || !m.loaded || m.err != nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.recordList, cmd = m.recordList.Update(msg)
	return m, cmd
}

func (m *Model) fetchRecords() tea.Cmd {
	ctx, importer, uid := m.ctx, m.importer, m.req.UID
	return func() tea.Msg {
		records, err := importer.Preview(ctx, uid)
		return recordsFetchedMsg(records, err)
	}
}

func (m *Model) startImport() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan importComplete, 1)

	progress, done, importer, req := m.progressChan, m.doneChan, m.importer, m.req
	go func() {
		result, err := importer.Run(ctx, req, progress)
		done <- importComplete{result: result, err: err}
		close(progress)
	}()

	return tea.Batch(m.waitForProgress(), m.spinner.Tick)
}

// waitForProgress reads the next update, or the final result once the progress channel is closed.
func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return nil
		}
		update, ok := <-progress
		if !ok {
			c := <-done
			return importCompleteMsg(c.result, c.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPreview() string {
	if !m.loaded {
		return fmt.Sprintf("%s Fetching listening history for %s...", m.spinner.View(), m.req.UID)
	}
	if m.err != nil {
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Error: %v", m.err)), helpView)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.recordList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Import %d records into Notion?", len(m.records)))

	dbTitle := m.req.Title
	if strings.TrimSpace(dbTitle) == "" {
		dbTitle = tasks.DefaultTitle(m.req.UID)
	}
	parent := m.req.PageID
	if parent == "" {
		parent = "most recently edited shared page"
	}
	info := fmt.Sprintf("Database: %s\nParent page: %s\n", dbTitle, parent)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderImport() string {
	title := styles.title.Render("Importing to Notion")

	stage := m.progress.Message
	if stage == "" {
		stage = "Starting..."
	}
	status := fmt.Sprintf("%s %s", m.spinner.View(), stage)
	if m.cancelled {
		status = styles.warn.Render("Cancelling, waiting for the current batch to settle...")
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, status, m.bar.ViewAs(m.percent), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})

	if m.result == nil {
		return styles.err.Render(fmt.Sprintf("Import failed: %v", m.err)) + "\n\n" + helpView
	}

	r := m.result
	var title string
	switch r.Outcome {
	case tasks.OutcomeSucceeded:
		title = styles.ok.Render("✓ Import complete")
	case tasks.OutcomePartial:
		title = styles.warn.Render("⚠ Import partially complete")
	default:
		title = styles.err.Render(fmt.Sprintf("✗ Import failed at %s", r.Stage))
	}

	var b strings.Builder
	b.WriteString(title + "\n\n")
	if r.DatabaseURL != "" {
		fmt.Fprintf(&b, "Database: %s\n", r.DatabaseURL)
	}
	if r.Outcome != tasks.OutcomeFailed {
		fmt.Fprintf(&b, "Uploaded: %d/%d (attempted %d of %d)\n", r.Succeeded, r.Attempted, r.Attempted, r.Total)
	}
	if r.Error != "" {
		b.WriteString(styles.err.Render("Error: "+r.Error) + "\n")
	}

	if len(r.Failures) > 0 {
		b.WriteString("\n" + styles.warn.Render(fmt.Sprintf("Failed to create %d records:", len(r.Failures))))
		for i, f := range r.Failures {
			if i == maxFailuresShown {
				fmt.Fprintf(&b, "\n  ... and %d more", len(r.Failures)-maxFailuresShown)
				break
			}
			fmt.Fprintf(&b, "\n  • #%d %s: %s", f.Index+1, f.Name, f.Message)
		}
		b.WriteString("\n")
	}

	return b.String() + "\n" + styles.help.Render(helpView)
}
