package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/biblio/internal/catalog"
	"github.com/five82/biblio/internal/config"
	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/inventory"
	"github.com/five82/biblio/internal/loans"
	"github.com/five82/biblio/internal/logging"
	"github.com/five82/biblio/internal/notify"
	"github.com/five82/biblio/internal/prefs"
	"github.com/five82/biblio/internal/session"
	"github.com/five82/biblio/internal/state"
	"github.com/five82/biblio/internal/ui"
)

// Options configure the biblio application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/biblio/prefs.toml
	APIURL     string // overrides api_url from the config file

	// Console receives human-readable logs. When nil, logs go to the
	// configured log file, which is what the TUI needs.
	Console io.Writer
}

// App holds every service of a running client.
type App struct {
	Config    config.Config
	Prefs     prefs.Prefs
	PrefsPath string
	Log       zerolog.Logger

	Session *session.Manager
	Client  *gateway.Client
	Store   *state.Store
	Notices *notify.Center

	Books   *catalog.Books
	Members *catalog.Members
	Loans   *loans.Workflow

	closeLog func() error
	now      func() time.Time
}

// New loads configuration, restores any saved session and wires the services.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	var (
		log      zerolog.Logger
		closeLog = func() error { return nil }
	)
	if opts.Console != nil {
		log = logging.Console(opts.Console, cfg.LogLevel)
	} else {
		log, closeLog, err = logging.File(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("init logging: %w", err)
		}
	}

	manager := session.NewManager(cfg.SessionPath)
	if _, _, err := manager.Restore(); err != nil {
		log.Warn().Err(err).Str("path", cfg.SessionPath).Msg("saved session unreadable; starting signed out")
	}

	client, err := gateway.NewClient(cfg.APIURL,
		gateway.WithSession(manager.Store),
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithInsecureTLS(cfg.InsecureTLS),
		gateway.WithLogger(log.With().Str("component", "gateway").Logger()),
	)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("init api client: %w", err)
	}

	store := &state.Store{}
	notices := &notify.Center{}
	catalogOpts := catalog.Options{Store: store, Notices: notices, Logger: log}

	return &App{
		Config:    cfg,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		Log:       log,
		Session:   manager,
		Client:    client,
		Store:     store,
		Notices:   notices,
		Books:     catalog.NewBooks(client, catalogOpts),
		Members:   catalog.NewMembers(client, catalogOpts),
		Loans: loans.New(client, loans.Options{
			LoanDays: cfg.LoanDays,
			Store:    store,
			Notices:  notices,
			Logger:   log,
		}),
		closeLog: closeLog,
		now:      time.Now,
	}, nil
}

// Close releases the log file.
func (a *App) Close() error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

// Inventory returns the copy view of one book.
func (a *App) Inventory(bookID int) *inventory.View {
	return inventory.NewView(a.Client, bookID, inventory.Options{
		DefaultLocation: a.Config.DefaultLocation,
		Store:           a.Store,
		Notices:         a.Notices,
		Logger:          a.Log,
	})
}

// Current returns the active session.
func (a *App) Current() (session.Session, bool) {
	return a.Session.Store.Current()
}

type credentials struct {
	TenantCode string `validate:"required"`
	Email      string `validate:"required,email"`
	Password   string `validate:"required"`
}

// Login authenticates against the backend, then populates and persists the
// session. The tenant and email are remembered for the next login form.
func (a *App) Login(ctx context.Context, tenantCode, email, password string) (session.Session, error) {
	const op = "login"
	creds := credentials{
		TenantCode: strings.TrimSpace(tenantCode),
		Email:      strings.TrimSpace(email),
		Password:   password,
	}
	if err := failure.Validate(op, creds); err != nil {
		return session.Session{}, err
	}

	resp, err := a.Client.Login(ctx, gateway.LoginRequest{
		TenantCode: creds.TenantCode,
		Email:      creds.Email,
		Password:   creds.Password,
	})
	if err != nil {
		a.Log.Warn().Err(err).Str("tenant", creds.TenantCode).Str("email", creds.Email).Msg("login failed")
		return session.Session{}, err
	}

	s := session.Session{
		Token:       resp.Token,
		DisplayName: resp.User,
		Role:        resp.Role,
		TenantID:    resp.TenantID,
		TenantCode:  creds.TenantCode,
		Email:       creds.Email,
		IssuedAt:    a.now().UTC(),
	}
	if !s.Valid() {
		return session.Session{}, failure.New(failure.Decode, op, "login response carried no token or tenant")
	}
	if err := a.Session.Login(s); err != nil {
		a.Log.Warn().Err(err).Msg("session not persisted")
	}
	a.Store.Reset()

	a.Prefs.LastTenant, a.Prefs.LastEmail = s.TenantCode, s.Email
	if err := prefs.Update(a.PrefsPath, func(p *prefs.Prefs) {
		p.LastTenant, p.LastEmail = s.TenantCode, s.Email
	}); err != nil {
		a.Log.Debug().Err(err).Msg("prefs not saved")
	}

	a.Log.Info().Str("tenant", s.TenantCode).Int("tenant_id", s.TenantID).Str("user", s.DisplayName).Msg("signed in")
	return s, nil
}

// Logout clears the session everywhere and drops every cached list.
func (a *App) Logout() error {
	err := a.Session.Logout()
	a.Store.Reset()
	a.Log.Info().Msg("signed out")
	return err
}

// RefreshDashboard loads the dashboard summary into the store.
func (a *App) RefreshDashboard(ctx context.Context) (gateway.Dashboard, error) {
	gen := a.Store.Generation()
	d, err := a.Client.Dashboard(ctx)
	if !a.Store.CommitDashboard(gen, d, err) {
		return gateway.Dashboard{}, state.Superseded("load dashboard")
	}
	return d, err
}

// Run boots the TUI until the context is cancelled or the operator quits.
func Run(ctx context.Context, opts Options) error {
	a, err := New(opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	interval := a.Config.RefreshInterval
	StartPoller(ctx, a.Client, a.Session.Store, a.Store, interval, a.Log)

	a.Log.Info().Str("api", a.Client.BaseURL()).Msg("biblio started")
	return ui.Run(ui.Options{
		Context:    ctx,
		Auth:       a,
		Backend:    a.Client,
		Store:      a.Store,
		Notices:    a.Notices,
		Books:      a.Books,
		Members:    a.Members,
		Loans:      a.Loans,
		Inventory:  a.Inventory,
		LogFile:    a.Config.LogFile,
		ThemeName:  a.Prefs.Theme,
		PrefsPath:  a.PrefsPath,
		LastTenant: a.Prefs.LastTenant,
		LastEmail:  a.Prefs.LastEmail,
		Logger:     a.Log.With().Str("component", "ui").Logger(),
	})
}
