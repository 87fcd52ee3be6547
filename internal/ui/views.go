package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/inventory"
	"github.com/five82/biblio/internal/loans"
	"github.com/five82/biblio/internal/notify"
)

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) contentHeight() int {
	return max(3, m.height-chromeHeight)
}

// tableRows is how many data rows fit below the title, header and borders.
func (m Model) tableRows() int {
	return max(1, m.contentHeight()-5)
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	var body string
	switch m.view {
	case ViewDashboard:
		body = m.renderDashboard()
	case ViewBooks:
		body = m.renderBooks()
	case ViewCopies:
		body = m.renderCopies()
	case ViewMembers:
		body = m.renderMembers()
	case ViewLoans:
		body = m.renderLoans()
	case ViewLogs:
		body = m.renderLogs()
	}
	return lipgloss.NewStyle().Width(m.width).Height(m.contentHeight()).MaxHeight(m.contentHeight()).Render(body)
}

// rowTone picks a foreground for a data row that is not selected.
type rowTone func(i int) lipgloss.Style

// renderTable draws a window of rows around the selection.
func (m Model) renderTable(title string, headers []string, rows [][]string, selected int, tone rowTone) string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(title))
	if m.query != "" || m.searching {
		b.WriteString("  ")
		if m.searching {
			b.WriteString(m.search.View())
		} else {
			b.WriteString(styles.MutedText.Render("/" + m.query))
		}
	}
	b.WriteString("\n")

	if len(rows) == 0 {
		msg := "Nothing here yet."
		if m.query != "" {
			msg = "No rows match " + strconv.Quote(m.query) + "."
		}
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("  " + msg))
		return b.String()
	}

	limit := m.tableRows()
	start := 0
	if selected >= limit {
		start = selected - limit + 1
	}
	end := min(len(rows), start+limit)

	headerStyle := styles.MutedText.Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Border))).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows[start:end]...).
		Width(m.width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			idx := start + row
			if idx == selected {
				return styles.Selected.Padding(0, 1)
			}
			if tone != nil {
				return tone(idx).Padding(0, 1)
			}
			return cell.Foreground(lipgloss.Color(m.theme.Text))
		})
	b.WriteString(t.Render())
	return b.String()
}

func (m Model) countLabel(shown, total int) string {
	if shown == total {
		return strconv.Itoa(total)
	}
	return fmt.Sprintf("%d of %d", shown, total)
}

// --- Dashboard ---

func (m Model) renderDashboard() string {
	styles := m.theme.Styles()
	if !m.snapshot.HasDashboard {
		msg := "Loading summary..."
		if m.snapshot.LastError != nil {
			msg = "Summary unavailable. Press r to retry."
		}
		return styles.MutedText.Render(msg)
	}
	d := m.snapshot.Dashboard

	card := func(label string, value int, color string) string {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(m.theme.BorderMuted)).
			Padding(0, 2).
			Width(max(18, m.width/4-2)).
			Render(styles.MutedText.Render(label) + "\n" +
				lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(strconv.Itoa(value)))
	}
	overdueColor := m.theme.Success
	if d.OverdueLoans > 0 {
		overdueColor = m.theme.Danger
	}
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Books", d.TotalBooks, m.theme.Accent),
		card("Members", d.TotalMembers, m.theme.Info),
		card("Active loans", d.ActiveLoans, m.theme.Warning),
		card("Overdue", d.OverdueLoans, overdueColor),
	)

	rows := make([][]string, 0, len(d.Recent))
	for _, r := range d.Recent {
		rows = append(rows, []string{r.Date.String(), r.Book, r.Member, r.Status.Label()})
	}
	recent := m.renderTable("Recent loans", []string{"Date", "Book", "Member", "Status"}, rows, -1,
		func(i int) lipgloss.Style {
			return styles.StatusText(loanStatusKey(d.Recent[i].Status, false))
		})
	return cards + "\n" + recent
}

// --- Books ---

func (m Model) renderBooks() string {
	books := m.visibleBooks()
	compact := m.width < LayoutCompactWidth
	headers := []string{"Title", "Author", "ISBN", "Year"}
	if !compact {
		headers = append(headers, "Publisher")
	}
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		year := ""
		if b.Year > 0 {
			year = strconv.Itoa(b.Year)
		}
		row := []string{truncate(b.Title, 48), truncate(b.Author, 28), b.ISBN, year}
		if !compact {
			row = append(row, truncate(b.Publisher, 24))
		}
		rows = append(rows, row)
	}
	title := "Books (" + m.countLabel(len(books), len(m.snapshot.Books.Items)) + ")"
	return m.renderTable(title, headers, rows, m.selected[ViewBooks], nil)
}

// --- Copies ---

func (m Model) renderCopies() string {
	styles := m.theme.Styles()
	copies := m.visibleCopies()
	rows := make([][]string, 0, len(copies))
	for _, c := range copies {
		rows = append(rows, []string{c.Barcode, c.Location, c.Status.Label()})
	}
	var sum inventory.Summary
	if m.copies != nil {
		sum = m.copies.Summary()
	}
	title := fmt.Sprintf("Copies of %s  %d total · %d available · %d loaned",
		truncate(m.copiesBook.Title, 40), sum.Total, sum.Available, sum.Loaned)
	return m.renderTable(title, []string{"Barcode", "Location", "Status"}, rows, m.selected[ViewCopies],
		func(i int) lipgloss.Style {
			return styles.StatusText(copyStatusKey(copies[i].Status))
		})
}

// --- Members ---

func (m Model) renderMembers() string {
	members := m.visibleMembers()
	rows := make([][]string, 0, len(members))
	for _, mem := range members {
		rows = append(rows, []string{mem.Code, truncate(mem.FullName, 40), truncate(mem.Email, 36), mem.MemberType.Label()})
	}
	title := "Members (" + m.countLabel(len(members), len(m.snapshot.Members.Items)) + ")"
	return m.renderTable(title, []string{"Code", "Name", "Email", "Type"}, rows, m.selected[ViewMembers], nil)
}

// --- Loans ---

func (m Model) renderLoans() string {
	styles := m.theme.Styles()
	shown := loans.Rows(m.visibleLoans(), m.now())
	wide := m.width >= LayoutWideWidth
	headers := []string{"Book", "Member", "Issued", "Due", "Status"}
	if wide {
		headers = []string{"Book", "Barcode", "Member", "Issued", "Due", "Status"}
	}
	rows := make([][]string, 0, len(shown))
	for _, r := range shown {
		if wide {
			rows = append(rows, []string{truncate(r.Title, 44), r.Barcode, truncate(r.Member, 28), r.Issued, r.Due, r.Status})
			continue
		}
		rows = append(rows, []string{truncate(r.Title, 32), truncate(r.Member, 22), r.Issued, r.Due, r.Status})
	}
	title := fmt.Sprintf("Loans · %s (%s)", m.loanFilter, m.countLabel(len(shown), len(m.snapshot.Loans.Items)))
	return m.renderTable(title, headers, rows, m.selected[ViewLoans], func(i int) lipgloss.Style {
		return styles.StatusText(loanStatusKey(shown[i].Loan.Status, shown[i].Overdue))
	})
}

// Theme status keys.

func copyStatusKey(s gateway.CopyStatus) string {
	if s == gateway.CopyLoaned {
		return "loaned"
	}
	return "available"
}

func loanStatusKey(s gateway.LoanStatus, overdue bool) string {
	switch {
	case overdue:
		return "overdue"
	case s == gateway.LoanReturned:
		return "returned"
	default:
		return "active"
	}
}

// --- Footer ---

// renderFooter shows the newest notice, or a key hint when there is none.
func (m Model) renderFooter() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	if !m.hasNotice {
		hint := bg.Render("h", styles.AccentText) + bg.Sep(":") + bg.Render("Help", styles.MutedText)
		return styles.Footer.Width(m.width).Render(hint)
	}
	return styles.Footer.Width(m.width).Render(m.formatNotice(m.notice, styles, bg))
}

func (m Model) formatNotice(n notify.Notice, styles Styles, bg BgStyle) string {
	var tone lipgloss.Style
	switch n.Level {
	case notify.Success:
		tone = styles.SuccessText
	case notify.Warning:
		tone = styles.WarningText
	case notify.Error:
		tone = styles.DangerText
	default:
		tone = styles.InfoText
	}
	out := bg.Render("● "+n.Title, tone)
	if n.Text != "" {
		out += bg.Spaces(2) + bg.Render(truncate(n.Text, max(10, m.width-len(n.Title)-8)), styles.Text)
	}
	return out
}
