package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"owninfer/internal/driver"
)

type progressModel struct {
	title      string
	events     <-chan driver.Event
	spinner    spinner.Model
	prog       progress.Model
	items      []fnItem
	stageLabel string
	round      int
	width      int
	done       bool
}

type fnItem struct {
	name   string
	status string
	stage  driver.Stage
	state  driver.Status
}

type eventMsg driver.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders per-function
// progress of a driver run. fns are the function names in the order of
// driver.Event.Index; the model quits when events is closed.
func NewProgressModel(title string, fns []string, events <-chan driver.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]fnItem, 0, len(fns))
	for _, fn := range fns {
		items = append(items, fnItem{name: fn, status: "queued", state: driver.StatusQueued})
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(driver.Event(msg))
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
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.stageLabel != "" {
		header = fmt.Sprintf("%s (%s)", header, m.stageLabel)
	}
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := max(m.width-statusWidth-4, 20)
	for _, item := range m.items {
		name := truncate(item.name, nameWidth)
		statusStyled := styleStatus(item.state).Render(fmt.Sprintf("%12s", item.status))
		fmt.Fprintf(&b, "  %s %s\n", statusStyled, name)
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
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

func (m *progressModel) applyEvent(ev driver.Event) tea.Cmd {
	if ev.Round > m.round {
		m.round = ev.Round
	}
	if ev.Index < 0 || ev.Index >= len(m.items) {
		if ev.Status == driver.StatusWorking {
			m.stageLabel = stageLabel(ev.Stage)
		}
		return nil
	}
	label := statusLabel(ev.Stage, ev.Status)
	if ev.Stage == driver.StageInfer && m.round > 0 {
		m.stageLabel = fmt.Sprintf("round %d", m.round)
	} else if ev.Stage == driver.StageDup {
		m.stageLabel = "inserting duplications"
	}
	item := &m.items[ev.Index]
	if item.state == driver.StatusError {
		return nil
	}
	if label != "" {
		item.status = label
		item.stage = ev.Stage
		item.state = ev.Status
	}
	if len(m.items) == 0 {
		return nil
	}
	total := 0.0
	for _, it := range m.items {
		total += progressOf(it)
	}
	return m.prog.SetPercent(total / float64(len(m.items)))
}

// progressOf weighs inference and insertion equally; the number of
// inference rounds is not known up front.
func progressOf(it fnItem) float64 {
	switch {
	case it.state == driver.StatusError:
		return 1.0
	case it.stage == driver.StageDup && it.state == driver.StatusDone:
		return 1.0
	case it.stage == driver.StageDup:
		return 0.75
	case it.stage == driver.StageInfer && it.state == driver.StatusDone:
		return 0.5
	case it.stage == driver.StageInfer:
		return 0.25
	default:
		return 0.0
	}
}

func statusLabel(stage driver.Stage, status driver.Status) string {
	switch status {
	case driver.StatusQueued:
		return "queued"
	case driver.StatusError:
		return "error"
	case driver.StatusWorking:
		return stageLabel(stage)
	case driver.StatusDone:
		if stage == driver.StageDup {
			return "done"
		}
		return "inferred"
	default:
		return ""
	}
}

func stageLabel(stage driver.Stage) string {
	switch stage {
	case driver.StageCollect:
		return "collecting"
	case driver.StageInfer:
		return "inferring"
	case driver.StageDup:
		return "inserting"
	default:
		return ""
	}
}

func styleStatus(status driver.Status) lipgloss.Style {
	switch status {
	case driver.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case driver.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case driver.StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
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
