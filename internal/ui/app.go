package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/five82/biblio/internal/catalog"
	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/inventory"
	"github.com/five82/biblio/internal/loans"
	"github.com/five82/biblio/internal/notify"
	"github.com/five82/biblio/internal/prefs"
	"github.com/five82/biblio/internal/session"
	"github.com/five82/biblio/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewLogin View = iota
	ViewDashboard
	ViewBooks
	ViewCopies
	ViewMembers
	ViewLoans
	ViewLogs
)

// viewCycle is the Tab order. The copy view is reached from a book.
var viewCycle = []View{ViewDashboard, ViewBooks, ViewMembers, ViewLoans, ViewLogs}

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "Sign in"
	case ViewDashboard:
		return "Dashboard"
	case ViewBooks:
		return "Books"
	case ViewCopies:
		return "Copies"
	case ViewMembers:
		return "Members"
	case ViewLoans:
		return "Loans"
	case ViewLogs:
		return "Logs"
	default:
		return "?"
	}
}

// LoanFilter narrows the loan table.
type LoanFilter int

const (
	LoanFilterAll LoanFilter = iota
	LoanFilterActive
	LoanFilterOverdue
)

func (f LoanFilter) String() string {
	switch f {
	case LoanFilterActive:
		return "Active"
	case LoanFilterOverdue:
		return "Overdue"
	default:
		return "All"
	}
}

// Authenticator signs the operator in and out.
type Authenticator interface {
	Login(ctx context.Context, tenantCode, email, password string) (session.Session, error)
	Logout() error
	Current() (session.Session, bool)
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Auth      Authenticator
	Backend   gateway.Backend
	Store     *state.Store
	Notices   *notify.Center
	Books     *catalog.Books
	Members   *catalog.Members
	Loans     *loans.Workflow
	Inventory func(bookID int) *inventory.View

	LogFile    string
	PollTick   time.Duration
	ThemeName  string
	PrefsPath  string
	LastTenant string
	LastEmail  string
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	auth      Authenticator
	backend   gateway.Backend
	store     *state.Store
	notices   *notify.Center
	books     *catalog.Books
	members   *catalog.Members
	loans     *loans.Workflow
	inventory func(int) *inventory.View
	logFile   string
	prefsPath string
	pollTick  time.Duration
	log       zerolog.Logger
	now       func() time.Time
	keys      keyMap

	// UI state
	theme    Theme
	view     View
	width    int
	height   int
	ready    bool
	showHelp bool
	modal    Modal

	// epoch changes whenever results of in-flight requests stop being
	// relevant (view switch, login, logout). Stale results are dropped.
	epoch uint64

	// Data state
	session   session.Session
	snapshot  state.Snapshot
	notice    notify.Notice
	hasNotice bool

	// Lists
	selected   map[View]int
	loanFilter LoanFilter
	search     textinput.Model
	searching  bool
	query      string

	// Copy view
	copies     *inventory.View
	copiesBook gateway.Book

	// Login form
	login *formModal

	// Logs
	logViewport viewport.Model
	logState    logState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = DefaultUIInterval
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = prefs.Default().Theme
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	search := textinput.New()
	search.Placeholder = "Filter..."
	search.CharLimit = 80
	search.Prompt = "/"

	m := Model{
		ctx:       ctx,
		auth:      opts.Auth,
		backend:   opts.Backend,
		store:     opts.Store,
		notices:   opts.Notices,
		books:     opts.Books,
		members:   opts.Members,
		loans:     opts.Loans,
		inventory: opts.Inventory,
		logFile:   opts.LogFile,
		prefsPath: prefsPath,
		pollTick:  pollTick,
		log:       opts.Logger,
		now:       now,
		keys:      DefaultKeyMap(),
		theme:     GetTheme(themeName),
		view:      ViewLogin,
		selected:  make(map[View]int),
		search:    search,
		logState:  logState{follow: true},
	}
	if m.store == nil {
		m.store = &state.Store{}
	}
	if m.notices == nil {
		m.notices = &notify.Center{}
	}
	m.login = newLoginForm(opts.LastTenant, opts.LastEmail)

	if m.auth != nil {
		if s, ok := m.auth.Current(); ok {
			m.session = s
			m.view = ViewDashboard
		}
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.pollTick),
		fetchSnapshotCmd(m.store),
	}
	if m.view != ViewLogin {
		cmds = append(cmds, m.loadView(m.view))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m, m.handleTick(time.Time(msg))

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.clampSelection()
		return m, nil

	case loginSubmitMsg:
		return m, m.startLogin(msg)

	case loginMsg:
		return m, m.handleLogin(msg)

	case resultMsg:
		if msg.epoch != m.epoch {
			return m, nil
		}
		if failure.KindOf(msg.err) == failure.Unauthorized {
			m.expireSession()
			return m, nil
		}
		return m, fetchSnapshotCmd(m.store)

	case loanFormMsg:
		if msg.epoch != m.epoch || m.view != ViewLoans {
			return m, nil
		}
		if failure.KindOf(msg.err) == failure.Unauthorized {
			m.expireSession()
			return m, nil
		}
		m.modal = newLoanModal(msg.form, msg.pool, m.loanSubmitter())
		return m, fetchSnapshotCmd(m.store)

	case logsMsg:
		m.handleLogs(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.view == ViewLogin {
		return m.renderLogin()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}

	if m.showHelp {
		m.showHelp = false
		return nil
	}

	if m.modal != nil {
		next, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = next
		}
		return cmd
	}

	if m.view == ViewLogin {
		_, cmd, _ := m.login.Update(msg, m.keys)
		return cmd
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.cycleTheme()
		return nil
	case key.Matches(msg, m.keys.Tab):
		return m.switchView(m.nextView(1))
	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView(m.nextView(-1))
	case key.Matches(msg, m.keys.ViewDashboard):
		return m.switchView(ViewDashboard)
	case key.Matches(msg, m.keys.ViewBooks):
		return m.switchView(ViewBooks)
	case key.Matches(msg, m.keys.ViewMembers):
		return m.switchView(ViewMembers)
	case key.Matches(msg, m.keys.ViewLoans):
		return m.switchView(ViewLoans)
	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)
	case key.Matches(msg, m.keys.Refresh):
		return m.loadView(m.view)
	case key.Matches(msg, m.keys.Logout):
		m.logout()
		return nil
	case key.Matches(msg, m.keys.Search):
		if m.view == ViewDashboard {
			return nil
		}
		m.searching = true
		m.search.SetValue(m.query)
		m.search.CursorEnd()
		return m.search.Focus()
	case key.Matches(msg, m.keys.Escape):
		if m.query != "" {
			m.query = ""
			m.clampSelection()
			m.updateLogViewport()
			return nil
		}
		if m.view == ViewCopies {
			return m.switchView(ViewBooks)
		}
		return nil
	}

	switch m.view {
	case ViewBooks:
		return m.handleBooksKey(msg)
	case ViewCopies:
		return m.handleCopiesKey(msg)
	case ViewMembers:
		return m.handleMembersKey(msg)
	case ViewLoans:
		return m.handleLoansKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	}
	return nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.query = ""
		m.selected[m.view] = 0
		m.updateLogViewport()
		return nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.query {
		m.query = m.search.Value()
		m.selected[m.view] = 0
		m.updateLogViewport()
	}
	return cmd
}

func (m *Model) nextView(delta int) View {
	current := m.view
	if current == ViewCopies {
		current = ViewBooks
	}
	idx := 0
	for i, v := range viewCycle {
		if v == current {
			idx = i
			break
		}
	}
	n := len(viewCycle)
	return viewCycle[((idx+delta)%n+n)%n]
}

// switchView activates v, abandons results still in flight for the previous
// view and starts loading v.
func (m *Model) switchView(v View) tea.Cmd {
	m.epoch++
	m.view = v
	m.query = ""
	m.searching = false
	m.search.Blur()
	if v != ViewCopies {
		m.copies = nil
	}
	return m.loadView(v)
}

// cycleTheme switches to the next palette and remembers it.
func (m *Model) cycleTheme() {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	if m.prefsPath == "" {
		return
	}
	name := m.theme.Name
	if err := prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = name }); err != nil {
		m.log.Debug().Err(err).Msg("theme not saved")
	}
}

func (m *Model) logout() {
	if m.auth != nil {
		if err := m.auth.Logout(); err != nil {
			m.log.Warn().Err(err).Msg("logout")
		}
	}
	m.resetToLogin("")
}

// expireSession handles a rejected token: the session is dropped and the
// operator is sent back to the login form.
func (m *Model) expireSession() {
	m.log.Info().Msg("session rejected by backend")
	if m.auth != nil {
		_ = m.auth.Logout()
	}
	m.resetToLogin("Session expired. Sign in again.")
}

func (m *Model) resetToLogin(reason string) {
	m.epoch++
	m.session = session.Session{}
	m.snapshot = state.Snapshot{}
	m.copies = nil
	m.modal = nil
	m.query = ""
	m.searching = false
	m.selected = make(map[View]int)
	m.view = ViewLogin
	m.login.fields[loginPassword].input.SetValue("")
	m.login.errMsg = reason
	m.login.setFocus(loginPassword)
	if m.login.fields[loginTenant].input.Value() == "" {
		m.login.setFocus(loginTenant)
	}
}

// handleTick processes the polling tick.
func (m *Model) handleTick(now time.Time) tea.Cmd {
	cmds := []tea.Cmd{fetchSnapshotCmd(m.store)}

	m.notice, m.hasNotice = m.notices.Latest(now)

	if m.view == ViewLogs && m.logState.follow {
		cmds = append(cmds, m.fetchLogs())
	}

	cmds = append(cmds, tickCmd(m.pollTick))
	return tea.Batch(cmds...)
}

// loadView fetches the data v shows.
func (m *Model) loadView(v View) tea.Cmd {
	switch v {
	case ViewDashboard:
		if m.backend == nil {
			return nil
		}
		backend, store := m.backend, m.store
		return m.run(func(ctx context.Context) error {
			gen := store.Generation()
			d, err := backend.Dashboard(ctx)
			if !store.CommitDashboard(gen, d, err) {
				return state.Superseded("load dashboard")
			}
			return err
		})
	case ViewBooks:
		if m.books == nil {
			return nil
		}
		books := m.books
		return m.run(func(ctx context.Context) error {
			_, err := books.List(ctx)
			return err
		})
	case ViewCopies:
		if m.copies == nil {
			return nil
		}
		copies := m.copies
		return m.run(copies.Load)
	case ViewMembers:
		if m.members == nil {
			return nil
		}
		members := m.members
		return m.run(func(ctx context.Context) error {
			_, err := members.List(ctx)
			return err
		})
	case ViewLoans:
		if m.loans == nil {
			return nil
		}
		wf := m.loans
		return m.run(func(ctx context.Context) error {
			_, err := wf.List(ctx)
			return err
		})
	case ViewLogs:
		return m.fetchLogs()
	}
	return nil
}

// run executes fn off the UI goroutine. The result is tagged with the
// current epoch.
func (m *Model) run(fn func(ctx context.Context) error) tea.Cmd {
	return runCmd(m.ctx, m.epoch, fn)
}

func runCmd(parent context.Context, epoch uint64, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, RequestTimeout)
		defer cancel()
		return resultMsg{epoch: epoch, err: fn(ctx)}
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type resultMsg struct {
	epoch uint64
	err   error
}

type loginMsg struct {
	epoch   uint64
	session session.Session
	err     error
}

type loanFormMsg struct {
	epoch uint64
	form  loans.Form
	pool  loans.Candidates
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	return err
}
