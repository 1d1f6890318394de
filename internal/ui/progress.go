// Package ui renders compile broker progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"jitc/internal/broker"
)

type progressModel struct {
	title   string
	events  <-chan broker.Event
	spinner spinner.Model
	prog    progress.Model
	items   []taskItem
	index   map[string]int
	failed  int
	width   int
	done    bool
}

type taskItem struct {
	name     string
	status   string
	stage    broker.Stage
	finished bool
}

type eventMsg broker.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders one line per task.
// The model quits when events is closed.
func NewProgressModel(title string, tasks []string, events <-chan broker.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]taskItem, 0, len(tasks))
	index := make(map[string]int, len(tasks))
	for i, name := range tasks {
		items = append(items, taskItem{name: name, status: "queued", stage: broker.StageQueued})
		index[name] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(broker.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

const statusWidth = 10

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.header()))
	b.WriteString("\n\n")

	nameWidth := max(m.width-statusWidth-4, 20)
	for _, item := range m.items {
		status := styleStatus(item.status).Render(fmt.Sprintf("%*s", statusWidth, item.status))
		fmt.Fprintf(&b, "  %s %s\n", status, truncate(item.name, nameWidth))
	}
	b.WriteString("\n")
	pct := m.prog.View()
	if m.done {
		pct = m.prog.ViewAs(1.0)
	}
	b.WriteString(pct)
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) header() string {
	finished := 0
	for _, item := range m.items {
		if item.finished {
			finished++
		}
	}
	h := fmt.Sprintf("%s %d/%d", m.title, finished, len(m.items))
	if m.failed > 0 {
		h += fmt.Sprintf(" (%d failed)", m.failed)
	}
	if m.done {
		return "done: " + h
	}
	return m.spinner.View() + " " + h
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev broker.Event) tea.Cmd {
	idx, ok := m.index[ev.Task]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	if item.finished {
		return nil
	}
	item.stage = ev.Stage
	item.status = statusLabel(ev.Stage, ev.Status)
	switch {
	case ev.Status == broker.StatusError:
		item.finished = true
		m.failed++
	case ev.Status == broker.StatusDone && ev.Stage == broker.StageInstall:
		item.finished = true
	}
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		if item.finished {
			total++
			continue
		}
		total += progressFromStage(item.stage)
	}
	return total / float64(len(m.items))
}

func progressFromStage(stage broker.Stage) float64 {
	switch stage {
	case broker.StageBuildIR:
		return 0.2
	case broker.StageOptimize:
		return 0.45
	case broker.StageCodegen:
		return 0.75
	case broker.StageInstall:
		return 0.95
	default:
		return 0.0
	}
}

func statusLabel(stage broker.Stage, status broker.Status) string {
	switch status {
	case broker.StatusQueued:
		return "queued"
	case broker.StatusError:
		return "error"
	case broker.StatusDone:
		if stage == broker.StageInstall {
			return "done"
		}
		return stageLabel(stage)
	case broker.StatusWorking:
		return stageLabel(stage)
	default:
		return ""
	}
}

func stageLabel(stage broker.Stage) string {
	switch stage {
	case broker.StageBuildIR:
		return "building"
	case broker.StageOptimize:
		return "optimizing"
	case broker.StageCodegen:
		return "codegen"
	case broker.StageInstall:
		return "installing"
	default:
		return "queued"
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return doneStyle
	case "error":
		return errorStyle
	case "queued", "":
		return idleStyle
	default:
		return workingStyle
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
