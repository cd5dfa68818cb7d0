package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"signnet/clipboard"
	"signnet/feed"
	"signnet/log"
	"signnet/session"
)

type focus int

const (
	focusControls focus = iota
	focusChat
)

const (
	slotWidth = 30
	barWidth  = slotWidth - 10
)

type tuiModel struct {
	ctrl        *session.Controller
	state       session.State
	feedEnabled bool
	feed        *feed.Status
	backendURL  string
	input       textinput.Model
	spin        spinner.Model
	focus       focus
	notice      string
	width       int
	height      int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	liveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	modeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmpty     = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))

	staticColor  = lipgloss.Color("39")
	dynamicColor = lipgloss.Color("170")
)

func newTUIModel(ctrl *session.Controller, backendURL string, feedEnabled bool) tuiModel {
	in := textinput.New()
	in.Placeholder = "Ask about a sign..."
	in.Prompt = "> "
	in.CharLimit = 500
	in.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = botStyle

	return tuiModel{
		ctrl:        ctrl,
		state:       ctrl.State(),
		feedEnabled: feedEnabled,
		backendURL:  backendURL,
		input:       in,
		spin:        s,
	}
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

func (m tuiModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(20, msg.Width-6)
		return m, nil

	case refreshMsg:
		m.state = m.ctrl.State()
		return m, nil

	case feedStatusMsg:
		st := msg.Status
		m.feed = &st
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.focus == focusChat {
			return m.updateChat(msg)
		}
		return m.updateControls(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m tuiModel) updateControls(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ":
		m.ctrl.ToggleRun()
	case "m":
		m.ctrl.ToggleMode()
	case "c":
		m.ctrl.ClearHistory()
		m.notice = "history cleared"
	case "y":
		n, err := clipboard.CopyHistory(m.ctrl.History())
		switch {
		case err != nil:
			log.Warnf("copy history: %v", err)
			m.notice = "copy failed: " + err.Error()
		case n == 0:
			m.notice = "nothing to copy"
		default:
			m.notice = fmt.Sprintf("✓ copied %d entries", n)
		}
	case "tab":
		m.focus = focusChat
		m.state = m.ctrl.State()
		cmd := m.input.Focus()
		return m, cmd
	}
	m.state = m.ctrl.State()
	return m, nil
}

func (m tuiModel) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "tab":
		m.focus = focusControls
		m.input.Blur()
		return m, nil
	case "enter":
		// the input is kept when the message is blank
		if m.ctrl.SubmitChat(m.input.Value()) {
			m.input.SetValue("")
		}
		m.state = m.ctrl.State()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader() + "\n\n")

	slots := lipgloss.JoinHorizontal(lipgloss.Top,
		renderSlot("Letter", m.state.Display.Static, staticColor),
		" ",
		renderSlot("Word", m.state.Display.Dynamic, dynamicColor),
	)
	b.WriteString(slots + "\n")
	if line := m.renderFeed(); line != "" {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("History") + "\n")
	if len(m.state.History) == 0 {
		b.WriteString(dimStyle.Render("  No recognitions yet") + "\n")
	}
	for _, e := range m.state.History {
		b.WriteString(dimStyle.Render("  "+e.Clock()) + "  " + e.Label() + "\n")
	}
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("Chat") + "\n")
	// header, slots, history and help take the rest of the screen
	used := strings.Count(b.String(), "\n") + 4
	for _, row := range m.chatRows(max(3, m.height-used)) {
		b.WriteString(row + "\n")
	}
	if n := m.state.ChatsPending; n > 0 {
		b.WriteString(m.spin.View() + dimStyle.Render(fmt.Sprintf(" waiting for %d %s", n, plural(n, "reply", "replies"))) + "\n")
	}
	b.WriteString(m.input.View() + "\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m tuiModel) renderHeader() string {
	run := pausedStyle.Render("○ PAUSED")
	if m.state.Running {
		run = liveStyle.Render("● LIVE")
	}
	mode := modeStyle.Render(m.state.Mode.Icon() + " " + m.state.Mode.Label())
	return titleStyle.Render("signnet") + "  " + run + "  " + mode + "  " + dimStyle.Render(m.backendURL)
}

func (m tuiModel) renderFeed() string {
	if !m.feedEnabled {
		return ""
	}
	switch {
	case m.feed == nil:
		return dimStyle.Render("feed: connecting...")
	case m.feed.Err != nil:
		return errorStyle.Render("feed: disconnected (" + m.feed.Err.Error() + ")")
	case m.feed.FPS > 0:
		return dimStyle.Render(fmt.Sprintf("feed: %.1f fps", m.feed.FPS))
	}
	return dimStyle.Render("feed: connected")
}

func (m tuiModel) renderHelp() string {
	if m.focus == focusChat {
		return helpKeyStyle.Render("enter") + helpStyle.Render(" send  ") +
			helpKeyStyle.Render("esc") + helpStyle.Render(" back  ") +
			helpStyle.Render("signnet "+version)
	}
	return helpKeyStyle.Render("space") + helpStyle.Render(" start/stop  ") +
		helpKeyStyle.Render("m") + helpStyle.Render(" mode  ") +
		helpKeyStyle.Render("c") + helpStyle.Render(" clear  ") +
		helpKeyStyle.Render("y") + helpStyle.Render(" copy  ") +
		helpKeyStyle.Render("tab") + helpStyle.Render(" chat  ") +
		helpKeyStyle.Render("q") + helpStyle.Render(" quit  ") +
		helpStyle.Render("signnet "+version)
}

// chatRows renders the transcript and keeps the last limit rows.
func (m tuiModel) chatRows(limit int) []string {
	width := max(20, m.width-6)
	var rows []string
	for _, l := range m.state.Transcript {
		style := userStyle
		if l.Speaker == session.Bot {
			style = botStyle
		}
		if l.Failed {
			style = errorStyle
		}
		prefix := style.Bold(true).Render(l.Speaker.String() + ":")
		first := true
		for _, row := range l.Rows() {
			for _, wrapped := range wrapText(row, width) {
				if first {
					rows = append(rows, prefix+" "+style.Render(wrapped))
					first = false
				} else {
					rows = append(rows, "     "+style.Render(wrapped))
				}
			}
		}
	}
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows
}

func renderSlot(title string, sl session.Slot, color lipgloss.Color) string {
	border := lipgloss.Color("238")
	if sl.Active {
		border = color
	}
	textStyle := lipgloss.NewStyle().Bold(true).Foreground(color)
	if sl.Text == session.Placeholder {
		textStyle = dimStyle
	}
	body := dimStyle.Render(title) + "\n" +
		textStyle.Render(sl.Text) + "\n" +
		renderBar(sl.Fraction, barWidth, color) + fmt.Sprintf(" %3.0f%%", sl.Fraction*100)
	return lipgloss.NewStyle().
		Width(slotWidth).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Render(body)
}

func renderBar(fraction float64, width int, color lipgloss.Color) string {
	filled := int(math.Round(fraction * float64(width)))
	filled = min(max(filled, 0), width)
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = []rune(strings.TrimLeft(string(runes[splitAt:]), " "))
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
