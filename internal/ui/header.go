package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/five82/biblio/internal/failure"
)

// renderHeader renders the status bar: who is signed in, the backend state and
// the freshness of the data.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth
	sep := bg.Spaces(2)

	parts := []string{bg.Render("biblio", styles.Logo)}

	if m.snapshot.IsOffline() {
		parts = append(parts,
			bg.Render("● "+classifyConnectionError(m.snapshot.LastError), styles.DangerText),
			bg.Render("Retrying...", styles.WarningText.Bold(true)))
	} else {
		parts = append(parts, bg.Render("● ONLINE", styles.SuccessText))
	}

	if m.session.Valid() {
		who := m.session.DisplayName
		if who == "" {
			who = m.session.Email
		}
		parts = append(parts, bg.Render(truncate(who, 28), styles.Text))
		if m.session.TenantCode != "" {
			parts = append(parts, bg.Render("@", styles.FaintText)+bg.Render(m.session.TenantCode, styles.AccentText))
		}
		if !compact && m.session.Role != "" {
			parts = append(parts, bg.Render(m.session.Role, styles.MutedText))
		}
	}

	if m.snapshot.HasDashboard && m.snapshot.Dashboard.OverdueLoans > 0 {
		parts = append(parts, bg.Render(fmt.Sprintf("Overdue: %d", m.snapshot.Dashboard.OverdueLoans), styles.DangerText))
	}

	if !compact {
		parts = append(parts, bg.Render(m.formatTimestamp(), styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, sep))
}

// formatTimestamp reports when data last arrived.
func (m Model) formatTimestamp() string {
	if m.snapshot.LastUpdated.IsZero() {
		return "Updated: never"
	}
	return "Updated: " + m.snapshot.LastUpdated.Local().Format("15:04:05")
}

// classifyConnectionError maps a load failure to a short header label.
func classifyConnectionError(err error) string {
	if err == nil {
		return "OFFLINE"
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case failure.Network:
			return "UNREACHABLE"
		case failure.Unauthorized:
			return "SIGNED OUT"
		case failure.Decode:
			return "BAD RESPONSE"
		case failure.Rejected:
			if fe.Status >= 500 {
				return "SERVER ERROR"
			}
		}
	}
	return "OFFLINE"
}

// renderCommandBar lists the keys of the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.view {
	case ViewBooks:
		commands = []cmd{
			{"n", "New"},
			{"enter", "Edit"},
			{"d", "Delete"},
			{"c", "Copies"},
			{"/", "Search"},
		}
	case ViewCopies:
		commands = []cmd{
			{"n", "Add"},
			{"d", "Remove"},
			{"/", "Search"},
			{"esc", "Books"},
		}
	case ViewMembers:
		commands = []cmd{
			{"n", "New"},
			{"enter", "Edit"},
			{"d", "Delete"},
			{"/", "Search"},
		}
	case ViewLoans:
		commands = []cmd{
			{"f", m.loanFilter.String()},
			{"n", "New loan"},
			{"R", "Return"},
			{"/", "Search"},
		}
	case ViewLogs:
		followLabel := "Pause"
		if !m.logState.follow {
			followLabel = "Follow"
		}
		commands = []cmd{
			{"Space", followLabel},
			{"/", "Filter"},
			{"j/k", "Scroll"},
		}
	default:
		commands = []cmd{
			{"2", "Books"},
			{"3", "Members"},
			{"4", "Loans"},
		}
	}
	commands = append(commands, cmd{"r", "Refresh"}, cmd{"Tab", m.nextView(1).String()}, cmd{"?", "More"})

	colon := bg.Sep(":")
	sep := bg.Spaces(2)

	segments := make([]string, 0, len(commands)+2)
	segments = append(segments, bg.Render(strings.ToUpper(m.view.String()), styles.AccentText.Bold(true)))
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}
