// Package tui is the terminal client: a task list with an add form, driven
// by a taskcache.QueryClient.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tasks/internal/models"
	"tasks/internal/taskcache"
)

// Messages shown to the user.
const (
	MsgLoading      = "Loading tasks..."
	MsgLoadFailed   = "Something went wrong"
	MsgLoadRetry    = "Please try again later"
	MsgNoTasks      = "No tasks to show"
	MsgMutationFail = "Something went wrong, please try again later"
)

// DefaultToastTimeout is how long a failure notification stays visible.
const DefaultToastTimeout = 4 * time.Second

const (
	defaultWidth  = 60
	defaultHeight = 20
	chromeHeight  = 10
)

type (
	tasksLoadedMsg struct{ err error }
	mutationMsg    struct {
		op  string
		err error
	}
	toastExpiredMsg struct{ seq int }
)

// taskItem adapts models.Task to list.Item.
type taskItem struct{ models.Task }

func (i taskItem) FilterValue() string { return i.Content }

type itemDelegate struct{}

func (d itemDelegate) Height() int                          { return 1 }
func (d itemDelegate) Spacing() int                         { return 0 }
func (d itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(taskItem)
	if !ok {
		return
	}

	box := mutedStyle.Render(boxUnchecked)
	text := it.Content
	if it.Done {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render(">") + " "
	}
	fmt.Fprintf(w, "%s%s %s", prefix, box, text)
}

// Model is the Bubble Tea model of the terminal client.
type Model struct {
	query        *taskcache.QueryClient
	toastTimeout time.Duration

	list    list.Model
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	formErr  string
	toast    string
	toastSeq int
	width    int
}

// New builds the model. The list is fetched when the program starts.
func New(query *taskcache.QueryClient, toastTimeout time.Duration) Model {
	if toastTimeout <= 0 {
		toastTimeout = DefaultToastTimeout
	}

	l := list.New(nil, itemDelegate{}, defaultWidth, defaultHeight-chromeHeight)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What needs doing?"
	ti.Focus()

	return Model{
		query:        query,
		toastTimeout: toastTimeout,
		list:         l,
		input:        ti,
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
		help:         help.New(),
		keys:         defaultKeyMap(),
		width:        defaultWidth,
	}
}

// Init starts the list fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(), textinput.Blink)
}

func (m Model) fetch() tea.Cmd {
	q := m.query
	return func() tea.Msg {
		_, err := q.Fetch(context.Background())
		return tasksLoadedMsg{err: err}
	}
}

func (m Model) create(content string) tea.Cmd {
	q := m.query
	return func() tea.Msg {
		_, err := q.Create(context.Background(), content)
		return mutationMsg{op: "create", err: err}
	}
}

func (m Model) toggle(task models.Task) tea.Cmd {
	q := m.query
	return func() tea.Msg {
		_, err := q.Toggle(context.Background(), task)
		return mutationMsg{op: "update", err: err}
	}
}

func (m Model) remove(id int64) tea.Cmd {
	q := m.query
	return func() tea.Msg {
		_, err := q.Delete(context.Background(), id)
		return mutationMsg{op: "delete", err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.list.SetSize(msg.Width-4, max(msg.Height-chromeHeight, 3))
		return m, nil

	case spinner.TickMsg:
		if m.query.State().Phase != taskcache.PhaseLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tasksLoadedMsg:
		m.syncList()
		return m, nil

	case mutationMsg:
		m.syncList()
		if msg.err == nil {
			return m, nil
		}
		m.toastSeq++
		m.toast = MsgMutationFail
		seq := m.toastSeq
		return m, tea.Tick(m.toastTimeout, func(time.Time) tea.Msg {
			return toastExpiredMsg{seq: seq}
		})

	case toastExpiredMsg:
		// Only the latest toast may clear itself.
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Force) {
			return m, tea.Quit
		}
		if m.input.Focused() {
			return m.updateForm(msg)
		}
		return m.updateList(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		content := m.input.Value()
		if err := models.ValidateContent(content); err != nil {
			m.formErr = err.Error()
			return m, nil
		}
		m.formErr = ""
		m.input.SetValue("")
		return m, m.create(content)

	case key.Matches(msg, m.keys.Blur):
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Focus):
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		m.query.Reset()
		m.syncList()
		return m, tea.Batch(m.spinner.Tick, m.fetch())

	case key.Matches(msg, m.keys.Toggle):
		if task, ok := m.selected(); ok {
			return m, m.toggle(task)
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if task, ok := m.selected(); ok {
			return m, m.remove(task.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up, m.keys.Down):
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) selected() (models.Task, bool) {
	if m.query.State().Phase != taskcache.PhaseReady {
		return models.Task{}, false
	}
	it, ok := m.list.SelectedItem().(taskItem)
	if !ok {
		return models.Task{}, false
	}
	return it.Task, true
}

// syncList copies the cached tasks into the list widget.
func (m *Model) syncList() {
	tasks := m.query.State().Tasks
	items := make([]list.Item, len(tasks))
	for i, t := range tasks {
		items[i] = taskItem{t}
	}
	m.list.SetItems(items)
	if n := len(items); n > 0 && m.list.Index() >= n {
		m.list.Select(n - 1)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	form := titleStyle.Render("New task") + "\n" + m.input.View()
	if m.formErr != "" {
		form += "\n" + errorStyle.Render(m.formErr)
	}
	b.WriteString(panelStyle.Width(max(m.width-4, 20)).Render(form))
	b.WriteString("\n\n")

	state := m.query.State()
	switch state.Phase {
	case taskcache.PhaseLoading:
		b.WriteString(m.spinner.View() + " " + MsgLoading)
	case taskcache.PhaseError:
		b.WriteString(errorStyle.Render(MsgLoadFailed) + "\n" + MsgLoadRetry)
	default:
		if len(state.Tasks) == 0 {
			b.WriteString(mutedStyle.Render(MsgNoTasks))
		} else {
			b.WriteString(m.list.View())
		}
	}

	if m.toast != "" {
		b.WriteString("\n\n" + toastStyle.Render(m.toast))
	}

	b.WriteString("\n\n")
	if m.input.Focused() {
		b.WriteString(m.help.View(formKeys{m.keys}))
	} else {
		b.WriteString(m.help.View(listKeys{m.keys}))
	}
	return b.String()
}

func (m Model) header() string {
	tasks := m.query.State().Tasks
	done := 0
	for _, t := range tasks {
		if t.Done {
			done++
		}
	}
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		titleStyle.Render("Tasks"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), len(tasks)-done,
		accentStyle.Render("Total"), len(tasks),
	)
}
