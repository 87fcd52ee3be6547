package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/biblio/internal/catalog"
	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/inventory"
	"github.com/five82/biblio/internal/loans"
	"github.com/five82/biblio/internal/notify"
)

// Visible rows per view, after the search term and loan filter apply.

func (m Model) visibleBooks() []gateway.Book {
	return catalog.FilterBooks(m.snapshot.Books.Items, m.query)
}

func (m Model) visibleMembers() []gateway.Member {
	return catalog.FilterMembers(m.snapshot.Members.Items, m.query)
}

func (m Model) visibleCopies() []gateway.Copy {
	if m.copies == nil {
		return nil
	}
	return catalog.FilterCopies(m.copies.Copies(), m.query)
}

func (m Model) visibleLoans() []gateway.Loan {
	items := m.snapshot.Loans.Items
	switch m.loanFilter {
	case LoanFilterActive:
		items = loans.Active(items)
	case LoanFilterOverdue:
		items = loans.Overdue(items, m.now())
	}
	return catalog.FilterLoans(items, m.query)
}

func (m Model) rowCount(v View) int {
	switch v {
	case ViewBooks:
		return len(m.visibleBooks())
	case ViewCopies:
		return len(m.visibleCopies())
	case ViewMembers:
		return len(m.visibleMembers())
	case ViewLoans:
		return len(m.visibleLoans())
	case ViewDashboard:
		return len(m.snapshot.Dashboard.Recent)
	}
	return 0
}

func (m *Model) clampSelection() {
	for _, v := range []View{ViewBooks, ViewCopies, ViewMembers, ViewLoans} {
		m.selected[v] = clamp(m.selected[v], m.rowCount(v))
	}
}

// moveSelection handles the shared list navigation keys. It reports whether
// msg was one of them.
func (m *Model) moveSelection(msg tea.KeyMsg) bool {
	n := m.rowCount(m.view)
	cur := m.selected[m.view]
	page := max(1, m.tableRows()/2)
	switch {
	case key.Matches(msg, m.keys.Down):
		cur++
	case key.Matches(msg, m.keys.Up):
		cur--
	case key.Matches(msg, m.keys.Top):
		cur = 0
	case key.Matches(msg, m.keys.Bottom):
		cur = n - 1
	case key.Matches(msg, m.keys.HalfPageDown):
		cur += page
	case key.Matches(msg, m.keys.HalfPageUp):
		cur -= page
	default:
		return false
	}
	m.selected[m.view] = clamp(cur, n)
	return true
}

// selectedItem returns the highlighted element of items.
func selectedItem[T any](items []T, idx int) (T, bool) {
	var zero T
	if idx < 0 || idx >= len(items) {
		return zero, false
	}
	return items[idx], true
}

// --- Books ---

func (m *Model) handleBooksKey(msg tea.KeyMsg) tea.Cmd {
	if m.moveSelection(msg) {
		return nil
	}
	book, ok := selectedItem(m.visibleBooks(), m.selected[ViewBooks])
	switch {
	case key.Matches(msg, m.keys.New):
		m.modal = m.bookForm(catalog.BookForm{})
	case key.Matches(msg, m.keys.Edit):
		if ok {
			m.modal = m.bookForm(catalog.BookFormFrom(book))
		}
	case key.Matches(msg, m.keys.Delete):
		if ok && m.books != nil {
			books, id := m.books, book.ID
			m.modal = newConfirmModal(catalog.BookDeletePrompt(book), m.run(func(ctx context.Context) error {
				return books.Delete(ctx, id, notify.Approved)
			}))
		}
	case key.Matches(msg, m.keys.Copies):
		if ok {
			return m.openCopies(book)
		}
	}
	return nil
}

func (m *Model) bookForm(form catalog.BookForm) Modal {
	year := ""
	if form.Year > 0 {
		year = strconv.Itoa(form.Year)
	}
	category := ""
	if form.CategoryID > 0 {
		category = strconv.Itoa(form.CategoryID)
	}
	title := "New book"
	if form.ID > 0 {
		title = "Edit book"
	}
	fields := []formField{
		newField("Title", form.Title, "", 200),
		newField("Author", form.Author, "", 200),
		newField("Publisher", form.Publisher, "", 200),
		newField("ISBN", form.ISBN, "", 20),
		newField("Year", year, "e.g. 1967", 4),
		newField("Category", category, "category id", 9),
	}
	books, parent, epoch, id := m.books, m.ctx, m.epoch, form.ID
	return newFormModal(title, fields, func(v []string) (tea.Cmd, error) {
		out := catalog.BookForm{ID: id, Title: v[0], Author: v[1], Publisher: v[2], ISBN: v[3]}
		var err error
		if out.Year, err = optionalInt("Year", v[4]); err != nil {
			return nil, err
		}
		if out.CategoryID, err = optionalInt("Category", v[5]); err != nil {
			return nil, err
		}
		if err := failure.Validate("save book", out); err != nil {
			return nil, err
		}
		if books == nil {
			return nil, nil
		}
		return runCmd(parent, epoch, func(ctx context.Context) error {
			return books.Save(ctx, out)
		}), nil
	})
}

func optionalInt(label, value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a whole number", strings.ToLower(label))
	}
	return n, nil
}

// --- Copies ---

// openCopies shows the copy list of book.
func (m *Model) openCopies(book gateway.Book) tea.Cmd {
	if m.inventory == nil {
		return nil
	}
	m.copiesBook = book
	m.copies = m.inventory(book.ID)
	m.selected[ViewCopies] = 0
	return m.switchView(ViewCopies)
}

func (m *Model) handleCopiesKey(msg tea.KeyMsg) tea.Cmd {
	if m.copies == nil {
		return nil
	}
	if m.moveSelection(msg) {
		return nil
	}
	view := m.copies
	switch {
	case key.Matches(msg, m.keys.New):
		m.modal = m.copyForm(view)
	case key.Matches(msg, m.keys.Delete):
		c, ok := selectedItem(m.visibleCopies(), m.selected[ViewCopies])
		if !ok {
			return nil
		}
		id := c.ID
		m.modal = newConfirmModal(inventory.RemovePrompt(c), m.run(func(ctx context.Context) error {
			return view.Remove(ctx, id, notify.Approved)
		}))
	}
	return nil
}

func (m *Model) copyForm(view *inventory.View) Modal {
	fields := []formField{
		newField("Barcode", "", "scan or type", 64),
		newField("Location", "", "blank for the default shelf", 120),
	}
	parent, epoch := m.ctx, m.epoch
	f := newFormModal("Add copy of "+truncate(m.copiesBook.Title, 30), fields, func(v []string) (tea.Cmd, error) {
		if v[0] == "" {
			return nil, errors.New("a barcode is required")
		}
		barcode, location := v[0], v[1]
		return runCmd(parent, epoch, func(ctx context.Context) error {
			return view.Add(ctx, barcode, location)
		}), nil
	})
	f.hint = "New copies start out available."
	return f
}

// --- Members ---

func (m *Model) handleMembersKey(msg tea.KeyMsg) tea.Cmd {
	if m.moveSelection(msg) {
		return nil
	}
	member, ok := selectedItem(m.visibleMembers(), m.selected[ViewMembers])
	switch {
	case key.Matches(msg, m.keys.New):
		m.modal = m.memberForm(catalog.MemberForm{MemberType: gateway.MemberStudent})
	case key.Matches(msg, m.keys.Edit):
		if ok {
			m.modal = m.memberForm(catalog.MemberFormFrom(member))
		}
	case key.Matches(msg, m.keys.Delete):
		if ok && m.members != nil {
			members, id := m.members, member.ID
			m.modal = newConfirmModal(catalog.MemberDeletePrompt(member), m.run(func(ctx context.Context) error {
				return members.Delete(ctx, id, notify.Approved)
			}))
		}
	}
	return nil
}

func memberTypeHint() string {
	labels := make([]string, len(gateway.MemberTypes))
	for i, t := range gateway.MemberTypes {
		labels[i] = t.Label()
	}
	return strings.Join(labels, ", ")
}

func (m *Model) memberForm(form catalog.MemberForm) Modal {
	title := "New member"
	if form.ID > 0 {
		title = "Edit member"
	}
	fields := []formField{
		newField("Code", form.Code, "", 32),
		newField("Full name", form.FullName, "", 200),
		newField("Email", form.Email, "optional", 200),
		newField("Type", form.MemberType.Label(), memberTypeHint(), 20),
	}
	members, parent, epoch, id := m.members, m.ctx, m.epoch, form.ID
	f := newFormModal(title, fields, func(v []string) (tea.Cmd, error) {
		mt, ok := gateway.ParseMemberType(v[3])
		if !ok {
			return nil, fmt.Errorf("type must be one of %s", memberTypeHint())
		}
		out := catalog.MemberForm{ID: id, Code: v[0], FullName: v[1], Email: v[2], MemberType: mt}
		if err := failure.Validate("save member", out); err != nil {
			return nil, err
		}
		if members == nil {
			return nil, nil
		}
		return runCmd(parent, epoch, func(ctx context.Context) error {
			return members.Save(ctx, out)
		}), nil
	})
	f.hint = "Types: " + memberTypeHint()
	return f
}

// --- Loans ---

func (m *Model) handleLoansKey(msg tea.KeyMsg) tea.Cmd {
	if m.moveSelection(msg) {
		return nil
	}
	switch {
	case key.Matches(msg, m.keys.LoanFilter):
		m.loanFilter = (m.loanFilter + 1) % 3
		m.selected[ViewLoans] = 0
	case key.Matches(msg, m.keys.New):
		return m.prepareLoan()
	case key.Matches(msg, m.keys.Return):
		l, ok := selectedItem(m.visibleLoans(), m.selected[ViewLoans])
		if !ok || m.loans == nil {
			return nil
		}
		if !l.Active() {
			m.notices.Push(notify.Transient(notify.Warning, "Already returned", "This loan was returned already."))
			m.notice, m.hasNotice = m.notices.Latest(m.now())
			return nil
		}
		wf, id := m.loans, l.ID
		m.modal = newConfirmModal(loans.ReturnPrompt(l), m.run(func(ctx context.Context) error {
			return wf.Return(ctx, id, notify.Approved)
		}))
	}
	return nil
}

// prepareLoan refreshes both candidate pools, then opens the loan form.
func (m *Model) prepareLoan() tea.Cmd {
	if m.loans == nil {
		return nil
	}
	wf, epoch, parent := m.loans, m.epoch, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, RequestTimeout)
		defer cancel()
		form, pool, err := wf.PrepareCreate(ctx)
		return loanFormMsg{epoch: epoch, form: form, pool: pool, err: err}
	}
}

func (m *Model) loanSubmitter() func(loans.Form) tea.Cmd {
	wf, parent, epoch := m.loans, m.ctx, m.epoch
	return func(form loans.Form) tea.Cmd {
		if wf == nil {
			return nil
		}
		return runCmd(parent, epoch, func(ctx context.Context) error {
			return wf.Create(ctx, form)
		})
	}
}
