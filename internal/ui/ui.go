package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stepsync/internal/models"
	"github.com/desertthunder/stepsync/internal/netmon"
	"github.com/desertthunder/stepsync/internal/queue"
	"github.com/desertthunder/stepsync/internal/shared"
	"github.com/desertthunder/stepsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueueListView ViewState = iota
	ConfirmView
	DrainView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	queue        *queue.Queue
	engine       *tasks.Engine
	monitor      *netmon.Monitor
	width        int
	height       int
	opList       list.Model
	ops          []models.SyncOperation
	network      models.NetworkQualitySnapshot
	sweep        bool
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	result       *tasks.DrainResult
	err          error
	help         help.Model
	keys         keyMap
}

// keyMap defines the key bindings for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	sweep   key.Binding
	refresh key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "drain"),
		),
		back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		yes: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "yes"),
		),
		no: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "no"),
		),
		sweep: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "toggle sweep"),
		),
		refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.back, k.yes, k.no},
		{k.sweep, k.refresh, k.quit},
	}
}

// opItem wraps [models.SyncOperation] to implement list.Item.
type opItem struct {
	op models.SyncOperation
}

func (i opItem) FilterValue() string { return string(i.op.Kind) }
func (i opItem) Title() string       { return string(i.op.Kind) }
func (i opItem) Description() string {
	when := time.UnixMilli(i.op.Timestamp).Format("Jan 2 15:04:05")
	desc := fmt.Sprintf("queued %s", when)
	if i.op.Retries > 0 {
		desc = fmt.Sprintf("%s • %d/%d attempts failed", desc, i.op.Retries, models.MaxRetries)
	}
	return desc
}

type queueLoadedMsg struct {
	ops []models.SyncOperation
}

type progressUpdateMsg tasks.ProgressUpdate

type drainCompleteMsg struct {
	result *tasks.DrainResult
	err    error
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, q *queue.Queue, engine *tasks.Engine, monitor *netmon.Monitor) *Model {
	m := &Model{
		ctx:     ctx,
		view:    QueueListView,
		queue:   q,
		engine:  engine,
		monitor: monitor,
		help:    help.New(),
		keys:    newKeyMap(),
	}
	if monitor != nil {
		m.network = monitor.Snapshot()
	}
	return m
}

// Init initializes the TUI by loading the pending queue.
func (m *Model) Init() tea.Cmd {
	return m.loadQueue()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.opList.Width() == 0 {
			m.opList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case QueueListView:
			return m.handleQueueListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case queueLoadedMsg:
		m.ops = msg.ops
		items := make([]list.Item, len(msg.ops))
		for i, op := range msg.ops {
			items[i] = opItem{op: op}
		}
		m.opList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.opList.Title = fmt.Sprintf("Sync Queue (%d pending)", len(msg.ops))
		m.opList.SetSize(m.width-4, m.height-8)
		if m.monitor != nil {
			m.network = m.monitor.Snapshot()
		}
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case drainCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		if m.progressChan != nil {
			m.progressChan = nil
		}
		return m, nil
	}

	return m.updateList(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.error.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case QueueListView:
		return m.renderQueueList()
	case ConfirmView:
		return m.renderConfirm()
	case DrainView:
		return m.renderDrain()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleQueueListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m, m.loadQueue()
	case "s":
		m.sweep = !m.sweep
		return m, nil
	case "enter":
		if len(m.ops) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.opList, cmd = m.opList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = QueueListView
		return m, nil
	case "y":
		m.view = DrainView
		return m, m.startDrain()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = QueueListView
		m.result = nil
		m.err = nil
		return m, m.loadQueue()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == QueueListView {
		m.opList, cmd = m.opList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadQueue() tea.Cmd {
	return func() tea.Msg {
		return queueLoadedMsg{ops: m.queue.Pending(m.ctx)}
	}
}

func (m *Model) startDrain() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	progressChan := m.progressChan

	go func() {
		result, err := m.engine.Drain(m.ctx, progressChan, tasks.DrainOpts{SweepFailed: m.sweep})
		m.result = result
		m.err = err
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return drainCompleteMsg{result: m.result, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return drainCompleteMsg{result: m.result, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

// renderNetwork formats the persistent connectivity header.
func (m *Model) renderNetwork() string {
	if m.network.IsOffline {
		return styles.error.Render("● offline")
	}
	if m.network.IsSlow {
		return styles.warning.Render(fmt.Sprintf("● slow connection (%s)", m.network.SlowLevel))
	}
	return styles.success.Render("● online")
}

func (m *Model) renderQueueList() string {
	sweepState := "off"
	if m.sweep {
		sweepState = "on"
	}
	status := fmt.Sprintf("%s  sweep: %s", m.renderNetwork(), sweepState)

	helpKeys := []key.Binding{m.keys.enter, m.keys.sweep, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n\n%s", status, m.opList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Replay %d queued operation(s)?", len(m.ops)))
	info := fmt.Sprintf("\n%s\n", m.renderNetwork())
	if m.sweep {
		info += styles.warning.Render("Operations that exhausted their retries will be swept.\n")
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderDrain() string {
	title := styles.title.Render("Draining Sync Queue")

	var phase string
	switch m.progress.Phase {
	case tasks.ScanQueue:
		phase = "Scanning queue..."
	case tasks.Replay:
		phase = fmt.Sprintf("Replaying operations (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Sweep:
		phase = "Sweeping abandoned operations..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.error.Render(fmt.Sprintf("Drain failed: %v\n\nPress r to go back, q to quit", m.err))
	}

	if m.result == nil {
		return styles.error.Render("No result available\n\nPress r to go back, q to quit")
	}

	title := styles.success.Render("✓ Drain Complete")
	info := fmt.Sprintf(
		"\nAttempted: %d\nReplayed: %d\nStill queued: %d\nSkipped: %d",
		m.result.Attempted,
		m.result.Succeeded,
		m.result.Requeued,
		m.result.Skipped,
	)
	if len(m.result.Swept) > 0 {
		info += fmt.Sprintf("\nSwept: %d", len(m.result.Swept))
	}

	var failed string
	if m.result.Requeued > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warning.Render(fmt.Sprintf("%d operation(s) will retry on the next pass:", m.result.Requeued)))
		for _, res := range m.result.Results {
			if res.Requeued && !errors.Is(res.Error, shared.ErrUnknownOperation) {
				failed += fmt.Sprintf("\n  • %s (%d/%d attempts)", res.Operation.Kind, res.Operation.Retries+1, models.MaxRetries)
			}
		}
	}

	helpKeys := []key.Binding{m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
