package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/five82/biblio/internal/notify"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	alertStyle  = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("1"))
	mutedStyle  = lipgloss.NewStyle().Padding(0, 1).Faint(true)
)

// rowMark tells printTable how to tint a data row.
type rowMark int

const (
	markNone rowMark = iota
	markAlert
	markMuted
)

// printTable writes rows under headers. marks may be nil.
func printTable(w io.Writer, headers []string, rows [][]string, marks []rowMark) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < len(marks) {
				switch marks[row] {
				case markAlert:
					return alertStyle
				case markMuted:
					return mutedStyle
				}
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

// printFields writes aligned "label: value" lines.
func printFields(w io.Writer, pairs ...string) {
	width := 0
	for i := 0; i < len(pairs); i += 2 {
		width = max(width, len(pairs[i]))
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(w, "%-*s  %s\n", width+1, pairs[i]+":", pairs[i+1])
	}
}

func printNotices(w io.Writer, notices []notify.Notice) {
	for _, n := range notices {
		mark := "•"
		switch n.Level {
		case notify.Success:
			mark = "✓"
		case notify.Warning, notify.Error:
			mark = "!"
		}
		if n.Text == "" {
			fmt.Fprintf(w, "%s %s\n", mark, n.Title)
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", mark, n.Title, n.Text)
	}
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
