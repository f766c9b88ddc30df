package tui

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rokutools/rokuscan/internal/devicemanager"
	"github.com/rokutools/rokuscan/internal/discovery"
	"github.com/rokutools/rokuscan/internal/picker"
)

// refreshInterval is how often the list is rebuilt without events, so the
// "last found" age stays current
const refreshInterval = time.Second

// DeviceSource is what the picker reads devices from
type DeviceSource interface {
	ActiveDevices() devicemanager.Result
	LastUsedDevice() *discovery.Device
	TimeSinceLastDiscoveredDevice() (time.Duration, bool)
}

// Selection is the outcome of the picker
type Selection struct {
	// Device is the chosen device, or nil when the user typed an address
	Device *discovery.Device

	// Host is the manually entered address
	Host string
}

// Manual reports whether the address was typed in
func (s Selection) Manual() bool { return s.Device == nil && s.Host != "" }

// deviceEventMsg wakes the model when the manager reports a change
type deviceEventMsg struct{}

// refreshTickMsg triggers the periodic rebuild
type refreshTickMsg struct{}

// keyMap defines key bindings for the list
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Select}, {k.Manual, k.Quit}}
}

// manualKeyMap defines key bindings for manual IP entry mode
type manualKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (m manualKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

// FullHelp returns keybindings for the expanded help view
func (m manualKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// Model is the bubbletea model of the picker screen
type Model struct {
	source DeviceSource
	events <-chan struct{}

	items    []picker.Item
	cursor   int
	status   devicemanager.Status
	lastSeen time.Duration
	seenAny  bool

	manualMode bool
	input      textinput.Model
	inputErr   string

	selection *Selection
	quitting  bool

	width      int
	spinner    spinner.Model
	help       help.Model
	keys       keyMap
	manualKeys manualKeyMap
}

// NewModel creates a picker reading from source. events, when non-nil,
// should receive a value whenever the device list may have changed.
func NewModel(source DeviceSource, events <-chan struct{}) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = "192.168.1.20"
	input.CharLimit = 39
	input.Width = 30

	m := Model{
		source:  source,
		events:  events,
		input:   input,
		spinner: s,
		help:    help.New(),
		keys: keyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter IP")),
			Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		manualKeys: manualKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		},
	}
	m.refresh()
	return m
}

// Init starts the spinner, the refresh ticker and event listening
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickRefresh(), waitForEvent(m.events))
}

func tickRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

func waitForEvent(events <-chan struct{}) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-events; !ok {
			return nil
		}
		return deviceEventMsg{}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.manualMode {
			return m.updateManual(msg)
		}
		return m.updateList(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case deviceEventMsg:
		m.refresh()
		return m, waitForEvent(m.events)

	case refreshTickMsg:
		m.refresh()
		return m, tickRefresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.move(-1)

	case key.Matches(msg, m.keys.Down):
		m.move(1)

	case key.Matches(msg, m.keys.Manual):
		return m.enterManual()

	case key.Matches(msg, m.keys.Select):
		item := m.items[m.cursor]
		if item.IsManual() {
			return m.enterManual()
		}
		m.selection = &Selection{Device: item.Device}
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) enterManual() (tea.Model, tea.Cmd) {
	m.manualMode = true
	m.inputErr = ""
	m.input.SetValue("")
	return m, m.input.Focus()
}

func (m Model) updateManual(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.manualKeys.Cancel):
		m.manualMode = false
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.manualKeys.Confirm):
		host := strings.TrimSpace(m.input.Value())
		if net.ParseIP(host) == nil {
			m.inputErr = fmt.Sprintf("%q is not an IP address", host)
			return m, nil
		}
		m.selection = &Selection{Host: host}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.inputErr = ""
	return m, cmd
}

// refresh rebuilds the list and keeps the cursor on the same device
func (m *Model) refresh() {
	var current string
	if m.cursor < len(m.items) && m.items[m.cursor].Device != nil {
		current = m.items[m.cursor].Device.ID
	}

	res := m.source.ActiveDevices()
	m.status = res.Status
	m.items = picker.Build(res.Devices, m.source.LastUsedDevice())
	m.lastSeen, m.seenAny = m.source.TimeSinceLastDiscoveredDevice()

	m.cursor = -1
	for i, it := range m.items {
		if !it.IsSeparator() && it.Device != nil && it.Device.ID == current {
			m.cursor = i
			break
		}
	}
	if m.cursor < 0 {
		m.cursor = 0
		m.move(0)
	}
}

// move steps the cursor by delta, skipping separators
func (m *Model) move(delta int) {
	step := delta
	if step == 0 {
		step = 1
	}
	for i := m.cursor + delta; i >= 0 && i < len(m.items); i += step {
		if !m.items[i].IsSeparator() {
			m.cursor = i
			return
		}
	}
	if delta == 0 {
		m.cursor = len(m.items) - 1
	}
}

// Searching reports whether the searching indicator is shown
func (m Model) Searching() bool {
	return m.status == devicemanager.StatusNotYetSearched || !m.seenAny
}

// Selection returns the user's choice, or nil if the picker was cancelled
func (m Model) Selection() *Selection {
	return m.selection
}

// View renders the picker screen
func (m Model) View() string {
	if m.quitting || m.selection != nil {
		return ""
	}

	var b strings.Builder
	if m.manualMode {
		b.WriteString(SubtitleStyle.Render("Enter the device IP address"))
		b.WriteString("\n\n  IP Address: ")
		b.WriteString(m.input.View())
		if m.inputErr != "" {
			b.WriteString("\n\n  ")
			b.WriteString(ErrorStyle.Render(m.inputErr))
		}
		return RenderContainer(b.String(), m.help.View(m.manualKeys), m.width)
	}

	switch {
	case m.Searching():
		b.WriteString(m.spinner.View() + " Searching for Roku devices...")
	case m.lastSeen > time.Minute:
		b.WriteString(WarningStyle.Render(fmt.Sprintf("No new devices for %s", m.lastSeen.Round(time.Second))))
	default:
		b.WriteString(SubtitleStyle.Render("Select a device"))
	}
	b.WriteString("\n\n")

	for i, it := range m.items {
		if it.IsSeparator() {
			b.WriteString(SeparatorStyle.Render(it.Label))
		} else {
			b.WriteString(RenderMenuItem(it.Label, i == m.cursor))
		}
		b.WriteString("\n")
	}

	return RenderContainer(b.String(), m.help.View(m.keys), m.width)
}
