// Package ui implements the interactive menu mode: a terminal front end over
// the same operations the subcommands expose.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/queueops/jmsqctl/internal/app"
	"github.com/queueops/jmsqctl/internal/inventory"
	"github.com/queueops/jmsqctl/internal/report"
)

// Manager manages the interactive menu UI
type Manager struct {
	app   *tview.Application
	ops   *app.App
	ctx   context.Context
	pages *tview.Pages

	menu   *tview.Table
	queues *tview.Table
	output *tview.TextView
	footer *tview.TextView

	queueNames []string
	// onQueue receives the queue picked in the queue view.
	onQueue func(queue string)
}

type menuEntry struct {
	label string
	run   func(m *Manager)
}

var menuEntries = []menuEntry{
	{"List all queues", func(m *Manager) { m.runInventory(inventory.All) }},
	{"List queues without listener", func(m *Manager) { m.runInventory(inventory.NoListener) }},
	{"List queues with messages", func(m *Manager) { m.runInventory(inventory.WithMessages) }},
	{"List DMQ queues with messages", func(m *Manager) { m.runInventory(inventory.DMQWithMessages) }},
	{"Queue info", func(m *Manager) { m.pickQueue(m.runInfo) }},
	{"Queue depth chart", func(m *Manager) { m.pickQueue(m.runDepth) }},
	{"Delete messages from a queue", func(m *Manager) { m.pickQueue(m.askDeleteFilter) }},
	{"Move messages between queues", func(m *Manager) { m.pickQueue(m.pickMoveDest) }},
	{"Delete a queue", func(m *Manager) { m.pickQueue(m.confirmDeleteQueue) }},
}

// NewManager creates the interactive UI over an already-connected App.
func NewManager(ctx context.Context, ops *app.App) *Manager {
	m := &Manager{
		app:   tview.NewApplication(),
		ops:   ops,
		ctx:   ctx,
		pages: tview.NewPages(),
	}
	ops.SkipConfirmations()
	m.initViews()
	m.setupKeybindings()
	return m
}

func (m *Manager) initViews() {
	m.menu = tview.NewTable().SetSelectable(true, false)
	m.menu.SetBorder(true).
		SetTitle(" Queue Operations ").
		SetTitleAlign(tview.AlignCenter)
	for i, e := range menuEntries {
		m.menu.SetCell(i, 0, tview.NewTableCell(fmt.Sprintf("%d. %s", i+1, e.label)).SetExpansion(1))
	}
	m.menu.SetSelectedFunc(func(row, _ int) {
		if row >= 0 && row < len(menuEntries) {
			menuEntries[row].run(m)
		}
	})

	m.queues = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	m.queues.SetBorder(true).
		SetTitle(" Select Queue ").
		SetTitleAlign(tview.AlignCenter)
	m.queues.SetSelectedFunc(func(row, _ int) {
		if row > 0 && row <= len(m.queueNames) && m.onQueue != nil {
			m.onQueue(m.queueNames[row-1])
		}
	})

	m.output = tview.NewTextView().SetWrap(false).SetScrollable(true)
	m.output.SetBorder(true).SetTitle(" Output ")

	m.footer = tview.NewTextView().SetTextColor(tcell.ColorYellow)

	m.pages.AddPage("menu", m.menu, true, true)
	m.pages.AddPage("queues", m.queues, true, false)
	m.pages.AddPage("output", m.output, true, false)
}

func (m *Manager) setupKeybindings() {
	m.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			m.app.Stop()
			return nil
		case tcell.KeyEscape:
			m.showMenu()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				frontPage, _ := m.pages.GetFrontPage()
				if frontPage == "menu" {
					m.app.Stop()
				} else {
					m.showMenu()
				}
				return nil
			}
		}
		return event
	})
}

// Start runs the UI until quit.
func (m *Manager) Start() error {
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(m.pages, 0, 1, true).
		AddItem(m.footer, 1, 0, false)

	m.showMenu()
	m.app.SetRoot(layout, true).SetFocus(m.pages)
	return m.app.Run()
}

func (m *Manager) showMenu() {
	m.pages.SwitchToPage("menu")
	m.footer.SetText(fmt.Sprintf(" env: %s  ↑/↓: Navigate  Enter: Select  q: Quit",
		m.ops.Config.CurrentEnvironmentName()))
	m.app.SetFocus(m.menu)
}

func (m *Manager) showOutput(text string) {
	m.output.SetText(text).ScrollToBeginning()
	m.pages.SwitchToPage("output")
	m.footer.SetText(" Esc/q: Back to menu")
	m.app.SetFocus(m.output)
}

func (m *Manager) showError(err error) {
	modal := tview.NewModal().
		SetText(err.Error()).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			m.pages.RemovePage("modal")
			m.showMenu()
		})
	m.pages.AddPage("modal", modal, true, true)
}

func (m *Manager) runInventory(class inventory.Class) {
	queues, err := inventory.List(m.ctx, m.ops.Session, class, m.ops.Config.Engine.DMQSuffix)
	if err != nil {
		m.showError(err)
		return
	}
	var b strings.Builder
	report.WriteInventory(&b, queues)
	m.showOutput(b.String())
}

// pickQueue refreshes the queue view and installs next as the selection
// handler.
func (m *Manager) pickQueue(next func(queue string)) {
	names, err := m.ops.QueueNames(m.ctx)
	if err != nil {
		m.showError(err)
		return
	}
	m.queueNames = names
	m.onQueue = next

	m.queues.Clear()
	m.queues.SetCell(0, 0, tview.NewTableCell("QUEUE").
		SetTextColor(tcell.ColorYellow).
		SetSelectable(false).
		SetExpansion(1))
	for i, name := range names {
		m.queues.SetCell(i+1, 0, tview.NewTableCell(name).SetExpansion(1))
	}
	m.queues.Select(1, 0)
	m.pages.SwitchToPage("queues")
	m.footer.SetText(" ↑/↓: Navigate  Enter: Select  Esc: Back")
	m.app.SetFocus(m.queues)
}

func (m *Manager) runInfo(queue string) {
	rep, err := report.Build(m.ctx, m.ops.Session, queue)
	if err != nil {
		m.showError(err)
		return
	}
	var b strings.Builder
	report.WriteQueueReport(&b, rep)
	m.showOutput(b.String())
}

func (m *Manager) runDepth(queue string) {
	chart, err := DepthChart(m.ctx, m.ops, queue, 0, 0)
	if err != nil {
		m.showError(err)
		return
	}
	m.showOutput(chart)
}

func (m *Manager) askDeleteFilter(queue string) {
	m.askFilter(fmt.Sprintf("Delete from %s, selector (empty = all):", queue), func(filter string) {
		var b strings.Builder
		err := m.ops.DeleteMessages(m.ctx, &b, queue, filter, 0)
		m.finishMutation(b.String(), err)
	})
}

func (m *Manager) pickMoveDest(source string) {
	m.pickQueue(func(dest string) {
		if dest == source {
			m.showError(fmt.Errorf("source and destination are both %q", source))
			return
		}
		m.askFilter(fmt.Sprintf("Move %s -> %s, selector (empty = all):", source, dest), func(filter string) {
			var b strings.Builder
			err := m.ops.MoveMessages(m.ctx, &b, source, dest, filter, 0)
			m.finishMutation(b.String(), err)
		})
	})
}

func (m *Manager) confirmDeleteQueue(queue string) {
	modal := tview.NewModal().
		SetText(fmt.Sprintf("Delete queue %q?", queue)).
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			m.pages.RemovePage("modal")
			if label != "Delete" {
				m.showMenu()
				return
			}
			var b strings.Builder
			err := m.ops.DeleteQueues(m.ctx, &b, []string{queue})
			m.finishMutation(b.String(), err)
		})
	m.pages.AddPage("modal", modal, true, true)
}

func (m *Manager) askFilter(label string, onSubmit func(filter string)) {
	input := tview.NewInputField().SetLabel(label + " ").SetFieldWidth(60)
	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Run", func() {
			m.pages.RemovePage("modal")
			onSubmit(strings.TrimSpace(input.GetText()))
		}).
		AddButton("Cancel", func() {
			m.pages.RemovePage("modal")
			m.showMenu()
		})
	form.SetBorder(true).SetTitle(" Selector ")

	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(form, 7, 1, true).
			AddItem(nil, 0, 1, false), 80, 1, true).
		AddItem(nil, 0, 1, false)

	m.pages.AddPage("modal", modal, true, true)
	m.app.SetFocus(form)
}

// finishMutation shows the rendered outcome; partial failure still shows the
// outcome rather than an error modal.
func (m *Manager) finishMutation(rendered string, err error) {
	if err != nil && err != app.ErrPartialFailure {
		m.showError(err)
		return
	}
	if rendered == "" {
		rendered = "(cancelled)"
	}
	m.showOutput(rendered)
}
