package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/loans"
	"github.com/five82/biblio/internal/notify"
	"github.com/five82/biblio/internal/prefs"
	"github.com/five82/biblio/internal/session"
	"github.com/five82/biblio/internal/state"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	current  session.Session
	loginErr error
	logouts  int
}

func (a *fakeAuth) Login(_ context.Context, tenant, email, _ string) (session.Session, error) {
	if a.loginErr != nil {
		return session.Session{}, a.loginErr
	}
	a.current = session.Session{Token: "tok", TenantID: 1, TenantCode: tenant, Email: email, DisplayName: "Ana"}
	return a.current, nil
}

func (a *fakeAuth) Logout() error {
	a.logouts++
	a.current = session.Session{}
	return nil
}

func (a *fakeAuth) Current() (session.Session, bool) {
	return a.current, a.current.Valid()
}

func signedIn() *fakeAuth {
	return &fakeAuth{current: session.Session{Token: "tok", TenantID: 1, TenantCode: "BIB", DisplayName: "Ana"}}
}

func newTestModel(t *testing.T, auth *fakeAuth) Model {
	t.Helper()
	m := New(Options{
		Auth:      auth,
		PrefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
		Now:       func() time.Time { return testNow },
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "ctrl+s":
			msg = tea.KeyMsg{Type: tea.KeyCtrlS}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func withSnapshot(m Model, snap state.Snapshot) Model {
	next, _ := m.Update(snapshotMsg(snap))
	return next.(Model)
}

func sampleLoans() []gateway.Loan {
	day := func(d int) gateway.Date { return gateway.NewDate(testNow.AddDate(0, 0, d)) }
	return []gateway.Loan{
		{ID: 1, Status: gateway.LoanActive, LoanDate: day(-3), DueDate: day(4)},
		{ID: 2, Status: gateway.LoanActive, LoanDate: day(-20), DueDate: day(-6)},
		{ID: 3, Status: gateway.LoanReturned, LoanDate: day(-30), DueDate: day(-23)},
	}
}

func TestNew_StartsOnLoginWithoutSession(t *testing.T) {
	m := newTestModel(t, &fakeAuth{})
	if m.view != ViewLogin {
		t.Fatalf("view = %v, want %v", m.view, ViewLogin)
	}
	if !strings.Contains(m.View(), "Sign in") {
		t.Fatalf("login view missing heading:\n%s", m.View())
	}

	m = newTestModel(t, signedIn())
	if m.view != ViewDashboard {
		t.Fatalf("view = %v, want %v", m.view, ViewDashboard)
	}
}

func TestSwitchView_BumpsEpoch(t *testing.T) {
	m := newTestModel(t, signedIn())
	before := m.epoch

	m = press(t, m, "2")
	if m.view != ViewBooks {
		t.Fatalf("view = %v, want %v", m.view, ViewBooks)
	}
	if m.epoch != before+1 {
		t.Fatalf("epoch = %d, want %d", m.epoch, before+1)
	}

	m = press(t, m, "tab")
	if m.view != ViewMembers {
		t.Fatalf("after tab view = %v, want %v", m.view, ViewMembers)
	}
}

func TestResultMsg_StaleEpochIsDropped(t *testing.T) {
	auth := signedIn()
	m := newTestModel(t, auth)
	stale := m.epoch
	m = press(t, m, "3")

	next, cmd := m.Update(resultMsg{epoch: stale, err: failure.New(failure.Unauthorized, "list books", "expired")})
	m = next.(Model)
	if cmd != nil {
		t.Fatalf("stale result produced a command")
	}
	if m.view != ViewMembers {
		t.Fatalf("view = %v, want %v", m.view, ViewMembers)
	}
	if auth.logouts != 0 {
		t.Fatalf("logouts = %d, want 0", auth.logouts)
	}
}

func TestResultMsg_UnauthorizedReturnsToLogin(t *testing.T) {
	auth := signedIn()
	m := newTestModel(t, auth)
	m = press(t, m, "4")
	epoch := m.epoch

	next, _ := m.Update(resultMsg{epoch: epoch, err: failure.New(failure.Unauthorized, "list loans", "expired")})
	m = next.(Model)

	if m.view != ViewLogin {
		t.Fatalf("view = %v, want %v", m.view, ViewLogin)
	}
	if auth.logouts != 1 {
		t.Fatalf("logouts = %d, want 1", auth.logouts)
	}
	if m.epoch == epoch {
		t.Fatalf("epoch not bumped on session expiry")
	}
	if !strings.Contains(m.login.errMsg, "Session expired") {
		t.Fatalf("login error = %q", m.login.errMsg)
	}
}

func TestLogin_SwitchesToDashboard(t *testing.T) {
	auth := &fakeAuth{}
	m := newTestModel(t, auth)

	next, cmd := m.Update(loginSubmitMsg{tenant: "BIB", email: "ana@example.org", password: "pw"})
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("login submit produced no command")
	}
	next, _ = m.Update(cmd())
	m = next.(Model)

	if m.view != ViewDashboard {
		t.Fatalf("view = %v, want %v", m.view, ViewDashboard)
	}
	if m.session.TenantCode != "BIB" {
		t.Fatalf("session tenant = %q, want BIB", m.session.TenantCode)
	}
}

func TestLogin_FailureKeepsForm(t *testing.T) {
	auth := &fakeAuth{loginErr: failure.New(failure.Unauthorized, "login", "bad credentials")}
	m := newTestModel(t, auth)

	next, cmd := m.Update(loginSubmitMsg{tenant: "BIB", email: "ana@example.org", password: "nope"})
	m = next.(Model)
	next, _ = m.Update(cmd())
	m = next.(Model)

	if m.view != ViewLogin {
		t.Fatalf("view = %v, want %v", m.view, ViewLogin)
	}
	if m.login.errMsg != "Tenant, email or password not accepted." {
		t.Fatalf("errMsg = %q", m.login.errMsg)
	}
}

func TestLogout_ClearsDataAndSession(t *testing.T) {
	auth := signedIn()
	m := newTestModel(t, auth)
	m = withSnapshot(m, state.Snapshot{Books: state.Collection[gateway.Book]{Items: []gateway.Book{{ID: 1, Title: "Dune"}}}})

	m = press(t, m, "L")
	if m.view != ViewLogin || auth.logouts != 1 {
		t.Fatalf("view = %v logouts = %d, want login and 1", m.view, auth.logouts)
	}
	if len(m.snapshot.Books.Items) != 0 {
		t.Fatalf("books kept after logout: %d", len(m.snapshot.Books.Items))
	}
}

func TestCycleTheme_SavesPrefs(t *testing.T) {
	m := newTestModel(t, signedIn())
	start := m.theme.Name

	m = press(t, m, "T")
	want := NextTheme(start)
	if m.theme.Name != want {
		t.Fatalf("theme = %q, want %q", m.theme.Name, want)
	}
	p, err := prefs.Load(m.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if p.Theme != want {
		t.Fatalf("saved theme = %q, want %q", p.Theme, want)
	}
}

func TestSearch_FiltersBooks(t *testing.T) {
	m := newTestModel(t, signedIn())
	m = press(t, m, "2")
	m = withSnapshot(m, state.Snapshot{Books: state.Collection[gateway.Book]{Items: []gateway.Book{
		{ID: 1, Title: "Dune", Author: "Frank Herbert"},
		{ID: 2, Title: "Rayuela", Author: "Julio Cortázar"},
	}}})

	m = press(t, m, "/", "d", "u", "n", "e", "enter")
	if m.query != "dune" {
		t.Fatalf("query = %q, want dune", m.query)
	}
	if got := m.visibleBooks(); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("visible books = %+v", got)
	}
	if m.searching {
		t.Fatalf("still searching after enter")
	}

	m = press(t, m, "esc")
	if m.query != "" || len(m.visibleBooks()) != 2 {
		t.Fatalf("esc did not clear the search")
	}
}

func TestLoanFilter_Cycles(t *testing.T) {
	m := newTestModel(t, signedIn())
	m = press(t, m, "4")
	m = withSnapshot(m, state.Snapshot{Loans: state.Collection[gateway.Loan]{Items: sampleLoans()}})

	if n := len(m.visibleLoans()); n != 3 {
		t.Fatalf("all loans = %d, want 3", n)
	}
	m = press(t, m, "f")
	if m.loanFilter != LoanFilterActive || len(m.visibleLoans()) != 2 {
		t.Fatalf("active filter = %v with %d loans", m.loanFilter, len(m.visibleLoans()))
	}
	m = press(t, m, "f")
	got := m.visibleLoans()
	if m.loanFilter != LoanFilterOverdue || len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("overdue filter = %v with %+v", m.loanFilter, got)
	}
	m = press(t, m, "f")
	if m.loanFilter != LoanFilterAll {
		t.Fatalf("filter = %v, want All", m.loanFilter)
	}
}

func TestReturn_AlreadyReturnedIsRefused(t *testing.T) {
	store := &state.Store{}
	center := &notify.Center{}
	m := New(Options{
		Auth:    signedIn(),
		Store:   store,
		Notices: center,
		Loans:   loans.New(nil, loans.Options{Store: store, Notices: center}),
		Now:     func() time.Time { return testNow },
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	m = press(t, m, "4")
	m = withSnapshot(m, state.Snapshot{Loans: state.Collection[gateway.Loan]{Items: sampleLoans()}})

	m = press(t, m, "G", "R")
	if m.modal != nil {
		t.Fatalf("returned loan opened a confirmation")
	}
	if !m.hasNotice || m.notice.Title != "Already returned" {
		t.Fatalf("notice = %+v", m.notice)
	}

	m = press(t, m, "g", "R")
	if _, ok := m.modal.(confirmModal); !ok {
		t.Fatalf("active loan modal = %T, want confirmModal", m.modal)
	}
}

func TestConfirmModal_OnlyYesConfirms(t *testing.T) {
	ran := false
	onYes := func() tea.Msg { ran = true; return nil }
	var c Modal = newConfirmModal(notify.Prompt{Title: "Delete book", Text: "Delete Dune?"}, onYes)
	keys := DefaultKeyMap()

	_, cmd, closed := c.Update(tea.KeyMsg{Type: tea.KeyEnter}, keys)
	if closed || cmd != nil {
		t.Fatalf("enter closed=%v cmd=%v, want open and no command", closed, cmd != nil)
	}

	_, cmd, closed = c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}, keys)
	if !closed || cmd != nil {
		t.Fatalf("n closed=%v cmd=%v, want closed and no command", closed, cmd != nil)
	}

	_, cmd, closed = c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}, keys)
	if !closed || cmd == nil {
		t.Fatalf("y closed=%v cmd=%v, want closed with command", closed, cmd != nil)
	}
	cmd()
	if !ran {
		t.Fatalf("confirmed action did not run")
	}
}

func TestLoanModal_SubmitDisabledUntilReady(t *testing.T) {
	pool := loans.Candidates{
		Members: []gateway.Member{{ID: 7, Code: "S-01", FullName: "Ana Pérez"}},
		Copies:  []gateway.Copy{{ID: 9, Barcode: "BC-1", Status: gateway.CopyAvailable, Book: &gateway.BookRef{Title: "Dune"}}},
	}
	var submitted *loans.Form
	submit := func(f loans.Form) tea.Cmd {
		submitted = &f
		return func() tea.Msg { return nil }
	}
	keys := DefaultKeyMap()
	var modal Modal = newLoanModal(loans.NewForm(testNow, 7), pool, submit)

	modal, _, closed := modal.Update(tea.KeyMsg{Type: tea.KeyCtrlS}, keys)
	if closed || submitted != nil {
		t.Fatalf("submitted before a member and copy were chosen")
	}
	if got := modal.(*loanModal).errMsg; got == "" {
		t.Fatalf("no hint shown for disabled submit")
	}

	// Enter on the member list chooses the highlighted member, then the copy.
	modal, _, _ = modal.Update(tea.KeyMsg{Type: tea.KeyEnter}, keys)
	modal, _, _ = modal.Update(tea.KeyMsg{Type: tea.KeyEnter}, keys)
	if !modal.(*loanModal).Ready() {
		t.Fatalf("form not ready after choosing member and copy")
	}

	_, cmd, closed := modal.Update(tea.KeyMsg{Type: tea.KeyCtrlS}, keys)
	if !closed || cmd == nil || submitted == nil {
		t.Fatalf("submit closed=%v cmd=%v submitted=%v", closed, cmd != nil, submitted != nil)
	}
	if submitted.MemberID != 7 || submitted.CopyID != 9 {
		t.Fatalf("form = %+v, want member 7 copy 9", *submitted)
	}
	if submitted.DueDate != "2026-03-17" {
		t.Fatalf("due = %q, want 2026-03-17", submitted.DueDate)
	}
}

func TestLoanModal_FilterNarrowsCopies(t *testing.T) {
	pool := loans.Candidates{
		Copies: []gateway.Copy{
			{ID: 1, Barcode: "BC-1", Book: &gateway.BookRef{Title: "Dune"}},
			{ID: 2, Barcode: "BC-2", Book: &gateway.BookRef{Title: "Rayuela"}},
		},
	}
	keys := DefaultKeyMap()
	var modal Modal = newLoanModal(loans.Form{}, pool, func(loans.Form) tea.Cmd { return nil })
	modal, _, _ = modal.Update(tea.KeyMsg{Type: tea.KeyTab}, keys)
	for _, r := range "ray" {
		modal, _, _ = modal.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}, keys)
	}
	got := modal.(*loanModal).visibleCopies()
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("visible copies = %+v", got)
	}
}

func TestFormModal_ErrorKeepsFormOpen(t *testing.T) {
	keys := DefaultKeyMap()
	calls := 0
	var f Modal = newFormModal("New book", []formField{newField("Title", "", "", 10)}, func(v []string) (tea.Cmd, error) {
		calls++
		if v[0] == "" {
			return nil, errors.New("title is required")
		}
		return func() tea.Msg { return nil }, nil
	})

	f, _, closed := f.Update(tea.KeyMsg{Type: tea.KeyEnter}, keys)
	if closed || f.(*formModal).errMsg != "title is required" {
		t.Fatalf("closed=%v errMsg=%q", closed, f.(*formModal).errMsg)
	}
	f, _, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Dune")}, keys)
	_, cmd, closed := f.Update(tea.KeyMsg{Type: tea.KeyEnter}, keys)
	if !closed || cmd == nil || calls != 2 {
		t.Fatalf("closed=%v cmd=%v calls=%d", closed, cmd != nil, calls)
	}
}

func TestView_RendersEachView(t *testing.T) {
	m := newTestModel(t, signedIn())
	m = withSnapshot(m, state.Snapshot{
		Books:        state.Collection[gateway.Book]{Items: []gateway.Book{{ID: 1, Title: "Dune", Author: "Frank Herbert"}}},
		Members:      state.Collection[gateway.Member]{Items: []gateway.Member{{ID: 1, Code: "S-01", FullName: "Ana Pérez", MemberType: gateway.MemberStudent}}},
		Loans:        state.Collection[gateway.Loan]{Items: sampleLoans()},
		Dashboard:    gateway.Dashboard{TotalBooks: 1, TotalMembers: 1, ActiveLoans: 2, OverdueLoans: 1},
		HasDashboard: true,
	})

	cases := []struct {
		key  string
		want string
	}{
		{"1", "Active loans"},
		{"2", "Books (1)"},
		{"3", "Members (1)"},
		{"4", "Loans · All (3)"},
		{"l", "Logs"},
	}
	for _, tc := range cases {
		m = press(t, m, tc.key)
		if out := m.View(); !strings.Contains(out, tc.want) {
			t.Errorf("view %q missing %q", tc.key, tc.want)
		}
	}
}

func TestHelp_AnyKeyCloses(t *testing.T) {
	m := newTestModel(t, signedIn())
	m = press(t, m, "?")
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatalf("help not shown")
	}
	m = press(t, m, "x")
	if m.showHelp {
		t.Fatalf("help still shown")
	}
}
