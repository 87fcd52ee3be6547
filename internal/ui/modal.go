package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/biblio/internal/catalog"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/loans"
	"github.com/five82/biblio/internal/notify"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// placeModal frames content and centers it on screen.
func placeModal(theme Theme, width, height, modalWidth int, content string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Width(modalWidth).
		Render(content)
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}

func modalHeading(styles Styles, title string, rule int) string {
	return styles.Text.Bold(true).Render(title) + "\n" +
		styles.FaintText.Render(strings.Repeat("─", rule)) + "\n\n"
}

// --- Confirm ---

// confirmModal asks before an irreversible action. Only an explicit yes runs
// the action.
type confirmModal struct {
	prompt notify.Prompt
	onYes  tea.Cmd
}

func newConfirmModal(p notify.Prompt, onYes tea.Cmd) confirmModal {
	return confirmModal{prompt: p, onYes: onYes}
}

func (c confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(km, keys.Yes):
		return c, c.onYes, true
	case key.Matches(km, keys.No):
		return c, nil, true
	}
	return c, nil, false
}

func (c confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	label := c.prompt.Confirm
	if label == "" {
		label = "continue"
	}
	var b strings.Builder
	b.WriteString(modalHeading(styles, c.prompt.Title, 40))
	b.WriteString(styles.Text.Render(c.prompt.Text))
	b.WriteString("\n\n")
	b.WriteString(styles.DangerText.Render("y") + styles.MutedText.Render(": "+label) + "   ")
	b.WriteString(styles.AccentText.Render("n/esc") + styles.MutedText.Render(": cancel"))
	return placeModal(theme, width, height, 50, b.String())
}

// --- Text forms ---

type formField struct {
	label  string
	input  textinput.Model
	secret bool // kept verbatim, never trimmed
}

func newField(label, value, placeholder string, limit int) formField {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 36
	ti.SetValue(value)
	return formField{label: label, input: ti}
}

func newPasswordField(label string) formField {
	f := newField(label, "", "", 128)
	f.input.EchoMode = textinput.EchoPassword
	f.input.EchoCharacter = '•'
	f.secret = true
	return f
}

// formModal is a column of text inputs. submit receives the trimmed values
// in field order; an error keeps the form open with the message shown.
type formModal struct {
	title    string
	hint     string
	fields   []formField
	focus    int
	errMsg   string
	keepOpen bool // submit and esc leave the form in place (login screen)
	submit   func(values []string) (tea.Cmd, error)
}

func newFormModal(title string, fields []formField, submit func([]string) (tea.Cmd, error)) *formModal {
	f := &formModal{title: title, fields: fields, submit: submit}
	f.setFocus(0)
	return f
}

func (f *formModal) setFocus(i int) {
	if len(f.fields) == 0 {
		return
	}
	f.focus = (i + len(f.fields)) % len(f.fields)
	for idx := range f.fields {
		if idx == f.focus {
			f.fields[idx].input.Focus()
		} else {
			f.fields[idx].input.Blur()
		}
	}
}

func (f *formModal) values() []string {
	out := make([]string, len(f.fields))
	for i, field := range f.fields {
		out[i] = field.input.Value()
		if !field.secret {
			out[i] = strings.TrimSpace(out[i])
		}
	}
	return out
}

func (f *formModal) trySubmit() (Modal, tea.Cmd, bool) {
	cmd, err := f.submit(f.values())
	if err != nil {
		f.errMsg = err.Error()
		return f, nil, false
	}
	f.errMsg = ""
	return f, cmd, !f.keepOpen
}

func (f *formModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok || len(f.fields) == 0 {
		return f, nil, false
	}
	switch {
	case km.Type == tea.KeyEsc:
		return f, nil, !f.keepOpen
	case key.Matches(km, keys.Tab), km.Type == tea.KeyDown:
		f.setFocus(f.focus + 1)
		return f, nil, false
	case key.Matches(km, keys.ShiftTab), km.Type == tea.KeyUp:
		f.setFocus(f.focus - 1)
		return f, nil, false
	case key.Matches(km, keys.Submit):
		return f.trySubmit()
	case key.Matches(km, keys.Confirm):
		if f.focus < len(f.fields)-1 {
			f.setFocus(f.focus + 1)
			return f, nil, false
		}
		return f.trySubmit()
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(km)
	return f, cmd, false
}

func (f *formModal) body(styles Styles) string {
	labelWidth := 0
	for _, field := range f.fields {
		labelWidth = max(labelWidth, len([]rune(field.label)))
	}
	var b strings.Builder
	if f.hint != "" {
		b.WriteString(styles.MutedText.Render(f.hint))
		b.WriteString("\n\n")
	}
	for i, field := range f.fields {
		label := padRight(field.label+":", labelWidth+2)
		if i == f.focus {
			b.WriteString(styles.AccentText.Render(label))
		} else {
			b.WriteString(styles.MutedText.Render(label))
		}
		b.WriteString(field.input.View())
		b.WriteString("\n\n")
	}
	if f.errMsg != "" {
		b.WriteString(styles.DangerText.Render(f.errMsg))
		b.WriteString("\n\n")
	}
	b.WriteString(styles.FaintText.Render(ternary(f.keepOpen,
		"Enter: Next/Sign in  •  Tab: Move  •  ctrl+c: Quit",
		"Enter: Next/Save  •  Tab: Move  •  Esc: Cancel")))
	return b.String()
}

func (f *formModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	return placeModal(theme, width, height, 60, modalHeading(styles, f.title, 50)+f.body(styles))
}

// --- Loan form ---

const (
	loanFocusMember = iota
	loanFocusCopy
	loanFocusIssue
	loanFocusDue
	loanFocusCount
)

const pickerRows = 5

// loanModal builds a loans.Form from the candidate pools. The member and copy
// are picked from lists; the create action stays disabled until both are set.
type loanModal struct {
	form    loans.Form
	members []gateway.Member
	copies  []gateway.Copy

	memberFilter textinput.Model
	copyFilter   textinput.Model
	issue        textinput.Model
	due          textinput.Model

	memberCursor int
	copyCursor   int
	focus        int
	errMsg       string

	submit func(loans.Form) tea.Cmd
}

func newLoanModal(form loans.Form, pool loans.Candidates, submit func(loans.Form) tea.Cmd) *loanModal {
	mk := func(placeholder, value string) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.CharLimit = 60
		ti.Width = 30
		ti.SetValue(value)
		return ti
	}
	l := &loanModal{
		form:         form,
		members:      pool.Members,
		copies:       pool.Copies,
		memberFilter: mk("type to filter members", ""),
		copyFilter:   mk("type to filter copies", ""),
		issue:        mk(gateway.DateLayout, form.IssueDate),
		due:          mk(gateway.DateLayout, form.DueDate),
		submit:       submit,
	}
	l.setFocus(loanFocusMember)
	return l
}

// Ready reports whether the create action is enabled.
func (l *loanModal) Ready() bool { return l.form.Ready() }

func (l *loanModal) visibleMembers() []gateway.Member {
	return catalog.FilterMembers(l.members, l.memberFilter.Value())
}

func (l *loanModal) visibleCopies() []gateway.Copy {
	return catalog.FilterCopies(l.copies, l.copyFilter.Value())
}

func (l *loanModal) inputs() []*textinput.Model {
	return []*textinput.Model{&l.memberFilter, &l.copyFilter, &l.issue, &l.due}
}

func (l *loanModal) setFocus(i int) {
	l.focus = (i + loanFocusCount) % loanFocusCount
	for idx, in := range l.inputs() {
		if idx == l.focus {
			in.Focus()
		} else {
			in.Blur()
		}
	}
}

func (l *loanModal) choose() {
	switch l.focus {
	case loanFocusMember:
		if ms := l.visibleMembers(); l.memberCursor < len(ms) {
			l.form.MemberID = ms[l.memberCursor].ID
		}
	case loanFocusCopy:
		if cs := l.visibleCopies(); l.copyCursor < len(cs) {
			l.form.CopyID = cs[l.copyCursor].ID
		}
	}
}

func (l *loanModal) moveCursor(delta int) {
	switch l.focus {
	case loanFocusMember:
		l.memberCursor = clamp(l.memberCursor+delta, len(l.visibleMembers()))
	case loanFocusCopy:
		l.copyCursor = clamp(l.copyCursor+delta, len(l.visibleCopies()))
	}
}

func (l *loanModal) trySubmit() (Modal, tea.Cmd, bool) {
	l.form.IssueDate = strings.TrimSpace(l.issue.Value())
	l.form.DueDate = strings.TrimSpace(l.due.Value())
	if !l.form.Ready() {
		l.errMsg = "Choose a member and a copy first."
		return l, nil, false
	}
	return l, l.submit(l.form), true
}

func (l *loanModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return l, nil, false
	}
	picker := l.focus == loanFocusMember || l.focus == loanFocusCopy
	switch {
	case km.Type == tea.KeyEsc:
		return l, nil, true
	case key.Matches(km, keys.Tab):
		l.setFocus(l.focus + 1)
		return l, nil, false
	case key.Matches(km, keys.ShiftTab):
		l.setFocus(l.focus - 1)
		return l, nil, false
	case key.Matches(km, keys.Submit):
		return l.trySubmit()
	case key.Matches(km, keys.Confirm):
		if picker {
			l.choose()
		}
		if l.focus == loanFocusDue {
			return l.trySubmit()
		}
		l.setFocus(l.focus + 1)
		return l, nil, false
	case picker && km.Type == tea.KeyUp:
		l.moveCursor(-1)
		return l, nil, false
	case picker && km.Type == tea.KeyDown:
		l.moveCursor(1)
		return l, nil, false
	}

	in := l.inputs()[l.focus]
	before := in.Value()
	var cmd tea.Cmd
	*in, cmd = in.Update(km)
	if in.Value() != before {
		switch l.focus {
		case loanFocusMember:
			l.memberCursor = 0
		case loanFocusCopy:
			l.copyCursor = 0
		}
	}
	return l, cmd, false
}

func (l *loanModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(modalHeading(styles, "New loan", 56))

	section := func(idx int, title string) {
		if l.focus == idx {
			b.WriteString(styles.AccentText.Bold(true).Render(title))
		} else {
			b.WriteString(styles.MutedText.Render(title))
		}
		b.WriteString("\n")
	}

	section(loanFocusMember, "Member")
	b.WriteString(l.memberFilter.View())
	b.WriteString("\n")
	members := l.visibleMembers()
	labels := make([]string, len(members))
	chosen := -1
	for i, m := range members {
		labels[i] = fmt.Sprintf("%s  %s", m.Code, m.FullName)
		if m.ID == l.form.MemberID {
			chosen = i
		}
	}
	b.WriteString(renderPicker(styles, labels, l.memberCursor, chosen, l.focus == loanFocusMember, "No members match."))
	b.WriteString("\n")

	section(loanFocusCopy, "Available copy")
	b.WriteString(l.copyFilter.View())
	b.WriteString("\n")
	copies := l.visibleCopies()
	labels = make([]string, len(copies))
	chosen = -1
	for i, c := range copies {
		labels[i] = copyLabel(c)
		if c.ID == l.form.CopyID {
			chosen = i
		}
	}
	b.WriteString(renderPicker(styles, labels, l.copyCursor, chosen, l.focus == loanFocusCopy, "No available copies."))
	b.WriteString("\n")

	section(loanFocusIssue, "Issued")
	b.WriteString(l.issue.View())
	b.WriteString("\n")
	section(loanFocusDue, "Due")
	b.WriteString(l.due.View())
	b.WriteString("\n\n")

	if l.Ready() {
		b.WriteString(styles.SuccessText.Render("[ Create loan ]"))
		b.WriteString(styles.MutedText.Render("  enter on Due or ctrl+s"))
	} else {
		b.WriteString(styles.FaintText.Render("[ Create loan ]  choose a member and a copy"))
	}
	b.WriteString("\n")
	if l.errMsg != "" {
		b.WriteString(styles.DangerText.Render(l.errMsg))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("↑/↓: Move  •  Enter: Choose  •  Tab: Next  •  Esc: Cancel"))
	return placeModal(theme, width, height, 70, b.String())
}

// renderPicker shows a window of labels around cursor. chosen marks the
// current selection.
func renderPicker(styles Styles, labels []string, cursor, chosen int, focused bool, empty string) string {
	if len(labels) == 0 {
		return styles.FaintText.Render("  "+empty) + "\n"
	}
	start := max(0, cursor-pickerRows+1)
	end := min(len(labels), start+pickerRows)
	var b strings.Builder
	for i := start; i < end; i++ {
		mark := "  "
		if i == chosen {
			mark = "✓ "
		}
		line := mark + truncate(labels[i], 56)
		switch {
		case focused && i == cursor:
			b.WriteString(styles.Selected.Render("> " + line))
		case i == chosen:
			b.WriteString(styles.SuccessText.Render("  " + line))
		default:
			b.WriteString(styles.Text.Render("  " + line))
		}
		b.WriteString("\n")
	}
	if len(labels) > end {
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("  … %d more", len(labels)-end)))
		b.WriteString("\n")
	}
	return b.String()
}

func copyLabel(c gateway.Copy) string {
	title := c.BookTitle()
	if title == "" {
		title = fmt.Sprintf("Book #%d", c.BookID)
	}
	return fmt.Sprintf("%s · %s · %s", c.Barcode, title, c.Location)
}

// clamp keeps i within [0, n).
func clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
