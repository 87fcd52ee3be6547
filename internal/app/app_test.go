package app

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/five82/biblio/internal/devserver"
	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/prefs"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("HOME", t.TempDir())

	store, err := devserver.OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := devserver.Seed(context.Background(), store, time.Now()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	srv := httptest.NewServer(devserver.NewRouter(devserver.Config{JWTSecret: "app-test", Prefix: "/api"}, store, zerolog.Nop()))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("api_url = %q\nsession_path = %q\nloan_days = 14\n", srv.URL+"/api", filepath.Join(dir, "session.toml"))
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a, err := New(Options{ConfigPath: cfgPath, PrefsPath: filepath.Join(dir, "prefs.toml"), Console: io.Discard})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestLogin_PopulatesAndPersistsSession(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if _, ok := a.Current(); ok {
		t.Fatalf("session valid before login")
	}

	s, err := a.Login(ctx, " "+devserver.SeedTenantCode+" ", devserver.SeedEmail, devserver.SeedPassword)
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if !s.Valid() || s.TenantCode != devserver.SeedTenantCode {
		t.Fatalf("session = %+v", s)
	}
	if _, err := os.Stat(a.Config.SessionPath); err != nil {
		t.Fatalf("session file not written: %v", err)
	}

	p, _ := prefs.Load(a.PrefsPath)
	if p.LastTenant != devserver.SeedTenantCode || p.LastEmail != devserver.SeedEmail {
		t.Fatalf("prefs = %+v, want last tenant and email remembered", p)
	}

	books, err := a.Books.List(ctx)
	if err != nil {
		t.Fatalf("Books.List returned error: %v", err)
	}
	if len(books) != 4 {
		t.Fatalf("books = %d, want 4", len(books))
	}

	d, err := a.RefreshDashboard(ctx)
	if err != nil {
		t.Fatalf("RefreshDashboard returned error: %v", err)
	}
	if d.TotalBooks != 4 || !a.Store.Snapshot().HasDashboard {
		t.Fatalf("dashboard = %+v", d)
	}
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	a := newTestApp(t)

	_, err := a.Login(context.Background(), devserver.SeedTenantCode, devserver.SeedEmail, "wrong")
	if !failure.Is(err, failure.Unauthorized) {
		t.Fatalf("Login error kind = %v, want Unauthorized (err %v)", failure.KindOf(err), err)
	}
	if _, ok := a.Current(); ok {
		t.Fatalf("session valid after failed login")
	}
}

func TestLogin_ValidatesInput(t *testing.T) {
	a := newTestApp(t)

	_, err := a.Login(context.Background(), "", "not-an-email", "")
	if !failure.Is(err, failure.Validation) {
		t.Fatalf("Login error kind = %v, want Validation", failure.KindOf(err))
	}
}

func TestLogout_ClearsEverything(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if _, err := a.Login(ctx, devserver.SeedTenantCode, devserver.SeedEmail, devserver.SeedPassword); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if _, err := a.Loans.List(ctx); err != nil {
		t.Fatalf("Loans.List returned error: %v", err)
	}

	if err := a.Logout(); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if _, ok := a.Current(); ok {
		t.Fatalf("session valid after logout")
	}
	if _, err := os.Stat(a.Config.SessionPath); !os.IsNotExist(err) {
		t.Fatalf("session file still present: %v", err)
	}
	if n := len(a.Store.Snapshot().Loans.Items); n != 0 {
		t.Fatalf("loans after logout = %d, want 0", n)
	}

	_, err := a.Books.List(ctx)
	if !failure.Is(err, failure.Unauthorized) {
		t.Fatalf("list after logout kind = %v, want Unauthorized", failure.KindOf(err))
	}
}

func TestNew_RestoresSavedSession(t *testing.T) {
	a := newTestApp(t)
	if _, err := a.Login(context.Background(), devserver.SeedTenantCode, devserver.SeedEmail, devserver.SeedPassword); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	b, err := New(Options{ConfigPath: "", APIURL: a.Client.BaseURL(), Console: io.Discard})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer func() { _ = b.Close() }()
	// A different config means a different session path: nothing restored.
	if _, ok := b.Current(); ok {
		t.Fatalf("unexpected session restored from default path")
	}

	c, err := New(Options{ConfigPath: filepath.Join(filepath.Dir(a.Config.SessionPath), "config.toml"), Console: io.Discard})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer func() { _ = c.Close() }()
	s, ok := c.Current()
	if !ok || s.TenantCode != devserver.SeedTenantCode {
		t.Fatalf("restored session = %+v, %v", s, ok)
	}
	if c.Config.LoanDays != 14 {
		t.Fatalf("LoanDays = %d, want 14", c.Config.LoanDays)
	}
}
