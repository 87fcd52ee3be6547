package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/biblio/internal/logtail"
)

// logState holds the Logs view state.
type logState struct {
	entries     []logtail.Entry
	follow      bool
	lastRefresh time.Time
	err         error
}

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

// fetchLogs tails the client's own log file.
func (m *Model) fetchLogs() tea.Cmd {
	path := m.logFile
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		entries, err := logtail.Tail(path, LogTailLines)
		return logsMsg{entries: entries, err: err}
	}
}

func (m *Model) handleLogs(msg logsMsg) {
	m.logState.lastRefresh = m.now()
	m.logState.err = msg.err
	if msg.err == nil {
		m.logState.entries = msg.entries
	}
	m.updateLogViewport()
}

// updateLogViewport sizes the viewport and re-renders its content.
func (m *Model) updateLogViewport() {
	width := max(10, m.width-4)
	height := max(1, m.contentHeight()-3)
	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(width, height)
	}
	m.logViewport.Width = width
	m.logViewport.Height = height
	m.logViewport.SetContent(m.renderLogContent())
	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

// visibleLogLines applies the search term to the formatted entries.
func (m Model) visibleLogLines() []logtail.Entry {
	term := strings.ToLower(strings.TrimSpace(m.query))
	if term == "" {
		return m.logState.entries
	}
	var out []logtail.Entry
	for _, e := range m.logState.entries {
		if strings.Contains(strings.ToLower(logtail.Format(e)), term) {
			out = append(out, e)
		}
	}
	return out
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	entries := m.visibleLogLines()
	if len(entries) == 0 {
		if m.logFile == "" {
			return styles.FaintText.Render("Logging to the console; nothing to show here.")
		}
		return styles.FaintText.Render("No log lines yet.")
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = m.colorizeEntry(e, styles)
	}
	return strings.Join(lines, "\n")
}

func (m Model) colorizeEntry(e logtail.Entry, styles Styles) string {
	if e.Level == "" {
		return styles.Text.Render(e.Raw)
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(getLevelStyle(e.Level, styles).Render(padRight(e.Level, 5)))
	b.WriteString(" ")
	if e.Component != "" {
		b.WriteString(styles.AccentText.Render("[" + e.Component + "]"))
		b.WriteString(" ")
	}
	b.WriteString(styles.Text.Render(e.Message))
	if len(e.Fields) > 0 {
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(formatFields(e.Fields)))
	}
	return b.String()
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return strings.Join(parts, " ")
}

func getLevelStyle(level string, styles Styles) lipgloss.Style {
	switch strings.ToUpper(level) {
	case "ERROR", "FATAL", "PANIC":
		return styles.DangerText
	case "WARN":
		return styles.WarningText
	case "DEBUG", "TRACE":
		return styles.FaintText
	default:
		return styles.InfoText
	}
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	title := "Logs · " + truncateMiddle(m.logFile, max(20, m.width-30))
	if m.query != "" || m.searching {
		if m.searching {
			title += "  " + m.search.View()
		} else {
			title += "  /" + m.query
		}
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Width(max(10, m.width-2)).
		Render(m.logViewport.View())

	status := ternary(m.logState.follow, "following", "paused")
	if m.logState.err != nil {
		status = "read failed: " + m.logState.err.Error()
	}
	count := len(m.visibleLogLines())
	footer := styles.MutedText.Render(status) + "  " + styles.FaintText.Render(strconv.Itoa(count)+" lines")
	return styles.AccentText.Bold(true).Render(title) + "\n" + box + "\n" + footer
}

func (m *Model) handleLogsKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logState.follow = !m.logState.follow
		if m.logState.follow {
			m.logViewport.GotoBottom()
			return m.fetchLogs()
		}
	case key.Matches(msg, m.keys.Down):
		m.logState.follow = false
		m.logViewport.ScrollDown(1)
	case key.Matches(msg, m.keys.Up):
		m.logState.follow = false
		m.logViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.HalfPageDown):
		m.logState.follow = false
		m.logViewport.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.logState.follow = false
		m.logViewport.HalfPageUp()
	case key.Matches(msg, m.keys.Top):
		m.logState.follow = false
		m.logViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.logState.follow = true
		m.logViewport.GotoBottom()
	}
	return nil
}
