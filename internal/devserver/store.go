package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

const dateLayout = "2006-01-02"

// Store is the SQLite persistence of the dev server.
type Store struct {
	db *sqlx.DB
}

// OpenStore opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func OpenStore(path string) (*Store, error) {
	dsn := "file::memory:?_foreign_keys=1"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: in-memory databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT NOT NULL UNIQUE COLLATE NOCASE,
            name TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tenant_id INTEGER NOT NULL REFERENCES tenants(id),
            email TEXT NOT NULL COLLATE NOCASE,
            name TEXT NOT NULL,
            role TEXT NOT NULL,
            password_hash TEXT NOT NULL,
            UNIQUE(tenant_id, email)
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tenant_id INTEGER NOT NULL REFERENCES tenants(id),
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            publisher TEXT NOT NULL DEFAULT '',
            isbn TEXT NOT NULL DEFAULT '',
            year INTEGER NOT NULL DEFAULT 0,
            category_id INTEGER NOT NULL DEFAULT 1
        );`,
		`CREATE TABLE IF NOT EXISTS copies (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tenant_id INTEGER NOT NULL REFERENCES tenants(id),
            book_id INTEGER NOT NULL REFERENCES books(id),
            barcode TEXT NOT NULL,
            location TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'Disponible',
            UNIQUE(tenant_id, barcode)
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tenant_id INTEGER NOT NULL REFERENCES tenants(id),
            code TEXT NOT NULL,
            full_name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            member_type TEXT NOT NULL,
            UNIQUE(tenant_id, code)
        );`,
		`CREATE TABLE IF NOT EXISTS loans (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tenant_id INTEGER NOT NULL REFERENCES tenants(id),
            copy_id INTEGER NOT NULL REFERENCES copies(id),
            member_id INTEGER NOT NULL REFERENCES members(id),
            user_id INTEGER NOT NULL DEFAULT 0,
            loan_date TEXT NOT NULL,
            due_date TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'Activo',
            returned_at TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_loans_copy ON loans(copy_id, status);`,
	}
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return tx.Commit()
}

func conflict(detail string) error { return &RuleError{Status: http.StatusConflict, Detail: detail} }
func notFound(detail string) error { return &RuleError{Status: http.StatusNotFound, Detail: detail} }

func uniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// CreateTenant registers a library and returns its id.
func (s *Store) CreateTenant(ctx context.Context, code, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tenants(code, name) VALUES(?, ?)`, strings.TrimSpace(code), name)
	if err != nil {
		if uniqueViolation(err) {
			return 0, conflict("tenant code already exists")
		}
		return 0, err
	}
	return res.LastInsertId()
}

// TenantByCode looks a tenant up case-insensitively.
func (s *Store) TenantByCode(ctx context.Context, code string) (Tenant, error) {
	var t Tenant
	err := s.db.GetContext(ctx, &t, `SELECT id, code, name FROM tenants WHERE code = ?`, strings.TrimSpace(code))
	if errors.Is(err, sql.ErrNoRows) {
		return Tenant{}, notFound("tenant not found")
	}
	return t, err
}

// CreateUser stores a staff account with an already hashed password.
func (s *Store) CreateUser(ctx context.Context, u User) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(tenant_id, email, name, role, password_hash) VALUES(?, ?, ?, ?, ?)`,
		u.TenantID, strings.TrimSpace(u.Email), u.Name, u.Role, u.PasswordHash)
	if err != nil {
		if uniqueViolation(err) {
			return 0, conflict("user already exists")
		}
		return 0, err
	}
	return res.LastInsertId()
}

// UserByEmail finds a tenant's staff account.
func (s *Store) UserByEmail(ctx context.Context, tenantID int64, email string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, tenant_id, email, name, role, password_hash FROM users WHERE tenant_id = ? AND email = ?`,
		tenantID, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, notFound("user not found")
	}
	return u, err
}

// ListBooks returns the tenant's books ordered by title.
func (s *Store) ListBooks(ctx context.Context, tenantID int64) ([]Book, error) {
	books := []Book{}
	err := s.db.SelectContext(ctx, &books,
		`SELECT id, tenant_id, title, author, publisher, isbn, year, category_id
           FROM books WHERE tenant_id = ? ORDER BY title COLLATE NOCASE, id`, tenantID)
	return books, err
}

// CreateBook inserts b. A non-zero b.ID is kept.
func (s *Store) CreateBook(ctx context.Context, tenantID int64, b Book) (int64, error) {
	if b.CategoryID == 0 {
		b.CategoryID = 1
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO books(id, tenant_id, title, author, publisher, isbn, year, category_id)
         VALUES(NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, tenantID, b.Title, b.Author, b.Publisher, b.ISBN, b.Year, b.CategoryID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateBook replaces the fields of an existing book.
func (s *Store) UpdateBook(ctx context.Context, tenantID int64, b Book) error {
	if b.CategoryID == 0 {
		b.CategoryID = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, publisher = ?, isbn = ?, year = ?, category_id = ?
          WHERE id = ? AND tenant_id = ?`,
		b.Title, b.Author, b.Publisher, b.ISBN, b.Year, b.CategoryID, b.ID, tenantID)
	if err != nil {
		return err
	}
	return expectOne(res, notFound("book not found"))
}

// DeleteBook removes a book that has no copies.
func (s *Store) DeleteBook(ctx context.Context, tenantID, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var copies int
	if err := tx.GetContext(ctx, &copies, `SELECT COUNT(*) FROM copies WHERE book_id = ? AND tenant_id = ?`, id, tenantID); err != nil {
		return err
	}
	if copies > 0 {
		return conflict("the book has copies and cannot be deleted")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return err
	}
	if err := expectOne(res, notFound("book not found")); err != nil {
		return err
	}
	return tx.Commit()
}

// ListCopies returns every copy of the tenant with its book title joined.
func (s *Store) ListCopies(ctx context.Context, tenantID int64) ([]Copy, error) {
	copies := []Copy{}
	err := s.db.SelectContext(ctx, &copies,
		`SELECT c.id, c.tenant_id, c.book_id, c.barcode, c.location, c.status, b.title AS book_title
           FROM copies c LEFT JOIN books b ON b.id = c.book_id
          WHERE c.tenant_id = ? ORDER BY c.book_id, c.id`, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range copies {
		if copies[i].BookTitle.Valid {
			copies[i].Book = &bookRef{Title: copies[i].BookTitle.String}
		}
	}
	return copies, nil
}

// CreateCopy inserts a copy of an existing book. A non-zero c.ID is kept.
// New copies are always available; only CreateLoan marks a copy loaned.
func (s *Store) CreateCopy(ctx context.Context, tenantID int64, c Copy) (int64, error) {
	if c.Status != "" && c.Status != copyAvailable {
		return 0, &RuleError{Status: http.StatusUnprocessableEntity, Detail: "a new copy must be available"}
	}
	c.Status = copyAvailable
	var books int
	if err := s.db.GetContext(ctx, &books, `SELECT COUNT(*) FROM books WHERE id = ? AND tenant_id = ?`, c.BookID, tenantID); err != nil {
		return 0, err
	}
	if books == 0 {
		return 0, notFound("book not found")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO copies(id, tenant_id, book_id, barcode, location, status) VALUES(NULLIF(?, 0), ?, ?, ?, ?, ?)`,
		c.ID, tenantID, c.BookID, strings.TrimSpace(c.Barcode), c.Location, c.Status)
	if err != nil {
		if uniqueViolation(err) {
			return 0, conflict("a copy with this barcode already exists")
		}
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteCopy removes a copy that was never loaned.
func (s *Store) DeleteCopy(ctx context.Context, tenantID, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var loans int
	if err := tx.GetContext(ctx, &loans, `SELECT COUNT(*) FROM loans WHERE copy_id = ? AND tenant_id = ?`, id, tenantID); err != nil {
		return err
	}
	if loans > 0 {
		return conflict("the copy has loans and cannot be deleted")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM copies WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return err
	}
	if err := expectOne(res, notFound("copy not found")); err != nil {
		return err
	}
	return tx.Commit()
}

// ListMembers returns the tenant's members ordered by name.
func (s *Store) ListMembers(ctx context.Context, tenantID int64) ([]Member, error) {
	members := []Member{}
	err := s.db.SelectContext(ctx, &members,
		`SELECT id, tenant_id, code, full_name, email, member_type
           FROM members WHERE tenant_id = ? ORDER BY full_name COLLATE NOCASE, id`, tenantID)
	return members, err
}

// CreateMember inserts m. A non-zero m.ID is kept.
func (s *Store) CreateMember(ctx context.Context, tenantID int64, m Member) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO members(id, tenant_id, code, full_name, email, member_type) VALUES(NULLIF(?, 0), ?, ?, ?, ?, ?)`,
		m.ID, tenantID, strings.TrimSpace(m.Code), m.FullName, m.Email, m.MemberType)
	if err != nil {
		if uniqueViolation(err) {
			return 0, conflict("a member with this code already exists")
		}
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateMember replaces the fields of an existing member.
func (s *Store) UpdateMember(ctx context.Context, tenantID int64, m Member) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET code = ?, full_name = ?, email = ?, member_type = ? WHERE id = ? AND tenant_id = ?`,
		strings.TrimSpace(m.Code), m.FullName, m.Email, m.MemberType, m.ID, tenantID)
	if err != nil {
		if uniqueViolation(err) {
			return conflict("a member with this code already exists")
		}
		return err
	}
	return expectOne(res, notFound("member not found"))
}

// DeleteMember removes a member without loan history.
func (s *Store) DeleteMember(ctx context.Context, tenantID, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var loans int
	if err := tx.GetContext(ctx, &loans, `SELECT COUNT(*) FROM loans WHERE member_id = ? AND tenant_id = ?`, id, tenantID); err != nil {
		return err
	}
	if loans > 0 {
		return conflict("the member has loan history and cannot be deleted")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return err
	}
	if err := expectOne(res, notFound("member not found")); err != nil {
		return err
	}
	return tx.Commit()
}

const loanSelect = `SELECT l.id, l.tenant_id, l.copy_id, l.member_id, l.user_id, l.loan_date, l.due_date,
       l.status, l.returned_at, c.barcode, b.title AS book_title, m.full_name AS member_name
  FROM loans l
  LEFT JOIN copies c ON c.id = l.copy_id
  LEFT JOIN books b ON b.id = c.book_id
  LEFT JOIN members m ON m.id = l.member_id`

// ListLoans returns the tenant's full loan history, newest first, with copy,
// book and member joined.
func (s *Store) ListLoans(ctx context.Context, tenantID int64) ([]Loan, error) {
	loans := []Loan{}
	if err := s.db.SelectContext(ctx, &loans, loanSelect+` WHERE l.tenant_id = ? ORDER BY l.id DESC`, tenantID); err != nil {
		return nil, err
	}
	for i := range loans {
		joinLoan(&loans[i])
	}
	return loans, nil
}

func joinLoan(l *Loan) {
	if l.Barcode.Valid {
		l.Copy = &loanCopy{Barcode: l.Barcode.String}
		if l.BookTitle.Valid {
			l.Copy.Book = &bookRef{Title: l.BookTitle.String}
		}
	}
	if l.MemberName.Valid {
		l.Member = &loanMember{FullName: l.MemberName.String}
	}
}

// CreateLoan claims the copy and records the loan in one transaction. The
// claim is a conditional update on the copy's status, so of two concurrent
// requests for the same copy exactly one succeeds and the other gets a
// conflict.
func (s *Store) CreateLoan(ctx context.Context, tenantID, userID int64, in LoanInput, today time.Time) (int64, error) {
	loanDate := strings.TrimSpace(in.LoanDate)
	if loanDate == "" {
		loanDate = today.Format(dateLayout)
	}
	dueDate := strings.TrimSpace(in.DueDate)
	if dueDate == "" {
		dueDate = today.AddDate(0, 0, 7).Format(dateLayout)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var members int
	if err := tx.GetContext(ctx, &members, `SELECT COUNT(*) FROM members WHERE id = ? AND tenant_id = ?`, in.MemberID, tenantID); err != nil {
		return 0, err
	}
	if members == 0 {
		return 0, notFound("member not found")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE copies SET status = ? WHERE id = ? AND tenant_id = ? AND status = ?`,
		copyLoaned, in.CopyID, tenantID, copyAvailable)
	if err != nil {
		return 0, err
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if claimed != 1 {
		var copies int
		if err := tx.GetContext(ctx, &copies, `SELECT COUNT(*) FROM copies WHERE id = ? AND tenant_id = ?`, in.CopyID, tenantID); err != nil {
			return 0, err
		}
		if copies == 0 {
			return 0, notFound("copy not found")
		}
		return 0, conflict("the copy is not available")
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO loans(id, tenant_id, copy_id, member_id, user_id, loan_date, due_date, status)
         VALUES(NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, tenantID, in.CopyID, in.MemberID, userID, loanDate, dueDate, loanActive)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// ReturnLoan moves an active loan to returned and frees its copy. A loan
// that is already returned is refused.
func (s *Store) ReturnLoan(ctx context.Context, tenantID, id int64, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE loans SET status = ?, returned_at = ? WHERE id = ? AND tenant_id = ? AND status = ?`,
		loanReturned, at.Format(time.RFC3339), id, tenantID, loanActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		var loans int
		if err := tx.GetContext(ctx, &loans, `SELECT COUNT(*) FROM loans WHERE id = ? AND tenant_id = ?`, id, tenantID); err != nil {
			return err
		}
		if loans == 0 {
			return notFound("loan not found")
		}
		return conflict("the loan is not active")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE copies SET status = ? WHERE id = (SELECT copy_id FROM loans WHERE id = ?) AND tenant_id = ?`,
		copyAvailable, id, tenantID); err != nil {
		return err
	}
	return tx.Commit()
}

// Dashboard computes the tenant's counters. Active loans count as overdue
// from the start of their due date, matching how clients derive it.
func (s *Store) Dashboard(ctx context.Context, tenantID int64, today time.Time) (Dashboard, error) {
	var d Dashboard
	day := today.Format(dateLayout)
	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&d.TotalBooks, `SELECT COUNT(*) FROM books WHERE tenant_id = ?`, []any{tenantID}},
		{&d.TotalMembers, `SELECT COUNT(*) FROM members WHERE tenant_id = ?`, []any{tenantID}},
		{&d.ActiveLoans, `SELECT COUNT(*) FROM loans WHERE tenant_id = ? AND status = ?`, []any{tenantID, loanActive}},
		{&d.OverdueLoans, `SELECT COUNT(*) FROM loans WHERE tenant_id = ? AND status = ? AND due_date <= ?`, []any{tenantID, loanActive, day}},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dest, c.query, c.args...); err != nil {
			return Dashboard{}, err
		}
	}
	d.Recent = []RecentLoan{}
	err := s.db.SelectContext(ctx, &d.Recent,
		`SELECT l.id, COALESCE(b.title, '') AS book, COALESCE(m.full_name, '') AS member, l.loan_date, l.status
           FROM loans l
           LEFT JOIN copies c ON c.id = l.copy_id
           LEFT JOIN books b ON b.id = c.book_id
           LEFT JOIN members m ON m.id = l.member_id
          WHERE l.tenant_id = ? ORDER BY l.id DESC LIMIT 5`, tenantID)
	if err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

func expectOne(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
