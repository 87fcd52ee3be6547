package gateway

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date form the backend accepts for loan dates.
const DateLayout = "2006-01-02"

// UnknownBook is rendered when a loan arrives without its joined book.
const UnknownBook = "Unknown book"

// CopyStatus is the availability state of a physical copy.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "Disponible"
	CopyLoaned    CopyStatus = "Prestado"
)

// Label returns the operator-facing name of the status.
func (s CopyStatus) Label() string {
	switch s {
	case CopyAvailable:
		return "Available"
	case CopyLoaned:
		return "Loaned"
	case "":
		return "Unknown"
	default:
		return string(s)
	}
}

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanActive   LoanStatus = "Activo"
	LoanReturned LoanStatus = "Devuelto"
)

// Label returns the operator-facing name of the status.
func (s LoanStatus) Label() string {
	switch s {
	case LoanActive:
		return "Active"
	case LoanReturned:
		return "Returned"
	case "":
		return "Unknown"
	default:
		return string(s)
	}
}

// MemberType classifies library members.
type MemberType string

const (
	MemberStudent    MemberType = "Estudiante"
	MemberFaculty    MemberType = "Docente"
	MemberStaff      MemberType = "Administrativo"
	MemberResearcher MemberType = "Investigador"
)

// MemberTypes lists the accepted member types in display order.
var MemberTypes = []MemberType{MemberStudent, MemberFaculty, MemberStaff, MemberResearcher}

// Label returns the operator-facing name of the member type.
func (t MemberType) Label() string {
	switch t {
	case MemberStudent:
		return "Student"
	case MemberFaculty:
		return "Faculty"
	case MemberStaff:
		return "Staff"
	case MemberResearcher:
		return "Researcher"
	default:
		return string(t)
	}
}

// ParseMemberType accepts either the wire value or the English label.
func ParseMemberType(value string) (MemberType, bool) {
	v := strings.TrimSpace(value)
	for _, t := range MemberTypes {
		if strings.EqualFold(v, string(t)) || strings.EqualFold(v, t.Label()) {
			return t, true
		}
	}
	return "", false
}

// Book mirrors /books entries.
type Book struct {
	ID         int    `json:"libroId"`
	TenantID   int    `json:"inquilinoId,omitempty"`
	Title      string `json:"titulo"`
	Author     string `json:"autor"`
	Publisher  string `json:"editorial"`
	ISBN       string `json:"isbn"`
	Year       int    `json:"anioPublicacion,omitempty"`
	CategoryID int    `json:"categoriaId"`
}

// BookRef is the joined book embedded in copies and loans.
type BookRef struct {
	Title string `json:"titulo"`
}

// Copy mirrors /copies entries.
type Copy struct {
	ID       int        `json:"ejemplarId"`
	TenantID int        `json:"inquilinoId,omitempty"`
	BookID   int        `json:"libroId"`
	Barcode  string     `json:"codigoBarras"`
	Location string     `json:"ubicacion"`
	Status   CopyStatus `json:"estado"`
	Book     *BookRef   `json:"libro,omitempty"`
}

// Available reports whether the copy can be loaned.
func (c Copy) Available() bool {
	return c.Status == CopyAvailable
}

// BookTitle returns the joined title or "".
func (c Copy) BookTitle() string {
	if c.Book == nil {
		return ""
	}
	return strings.TrimSpace(c.Book.Title)
}

// Member mirrors /members entries.
type Member struct {
	ID         int        `json:"socioId"`
	TenantID   int        `json:"inquilinoId,omitempty"`
	Code       string     `json:"codigo"`
	FullName   string     `json:"nombreCompleto"`
	Email      string     `json:"email"`
	MemberType MemberType `json:"tipoSocio"`
}

// LoanCopy is the joined copy embedded in a loan.
type LoanCopy struct {
	Barcode string   `json:"codigoBarras"`
	Book    *BookRef `json:"libro,omitempty"`
}

// LoanMember is the joined member embedded in a loan.
type LoanMember struct {
	FullName string `json:"nombreCompleto"`
}

// Loan mirrors /loans entries.
type Loan struct {
	ID       int         `json:"prestamoId"`
	TenantID int         `json:"inquilinoId,omitempty"`
	CopyID   int         `json:"ejemplarId"`
	MemberID int         `json:"socioId"`
	IssuedBy int         `json:"usuarioId,omitempty"`
	LoanDate Date        `json:"fechaPrestamo"`
	DueDate  Date        `json:"fechaVencimiento"`
	Status   LoanStatus  `json:"estado"`
	Copy     *LoanCopy   `json:"ejemplar,omitempty"`
	Member   *LoanMember `json:"socio,omitempty"`
}

// Active reports whether the loan has not been returned.
func (l Loan) Active() bool {
	return l.Status == LoanActive
}

// Overdue reports whether the loan is active and past its due date at now.
// It is derived on every call and never stored.
func (l Loan) Overdue(now time.Time) bool {
	return l.Active() && !l.DueDate.IsZero() && l.DueDate.Before(now)
}

// BookTitle returns the joined book title or the UnknownBook placeholder.
func (l Loan) BookTitle() string {
	if l.Copy != nil && l.Copy.Book != nil {
		if title := strings.TrimSpace(l.Copy.Book.Title); title != "" {
			return title
		}
	}
	return UnknownBook
}

// Barcode returns the joined copy barcode or "".
func (l Loan) Barcode() string {
	if l.Copy == nil {
		return ""
	}
	return l.Copy.Barcode
}

// MemberName returns the joined member name or "".
func (l Loan) MemberName() string {
	if l.Member == nil {
		return ""
	}
	return l.Member.FullName
}

// CreateLoanRequest is the body of POST /loans. Dates are sent exactly as
// entered.
type CreateLoanRequest struct {
	TenantID int    `json:"inquilinoId"`
	MemberID int    `json:"socioId"`
	CopyID   int    `json:"ejemplarId"`
	LoanDate string `json:"fechaPrestamo,omitempty"`
	DueDate  string `json:"fechaVencimiento,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	TenantCode string `json:"codigoTenant"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// LoginResponse mirrors the /auth/login payload.
type LoginResponse struct {
	Token    string `json:"token"`
	User     string `json:"usuario"`
	Role     string `json:"rol"`
	TenantID int    `json:"inquilinoId"`
}

// Dashboard mirrors /reports/dashboard.
type Dashboard struct {
	TotalBooks   int          `json:"totalLibros"`
	TotalMembers int          `json:"totalSocios"`
	ActiveLoans  int          `json:"prestamosActivos"`
	OverdueLoans int          `json:"prestamosVencidos"`
	Recent       []RecentLoan `json:"ultimosPrestamos"`
}

// RecentLoan is one row of the dashboard activity list.
type RecentLoan struct {
	ID     int        `json:"prestamoId"`
	Book   string     `json:"libro"`
	Member string     `json:"socio"`
	Date   Date       `json:"fecha"`
	Status LoanStatus `json:"estado"`
}

// Date is a timestamp that accepts the backend's several encodings and is
// sent back as a calendar date.
type Date struct {
	time.Time
}

// NewDate wraps t.
func NewDate(t time.Time) Date { return Date{Time: t} }

// MarshalJSON encodes the date as "2006-01-02", or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON accepts RFC3339, naive ISO timestamps and calendar dates.
func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		d.Time = time.Time{}
		return nil
	}
	t := parseTime(raw)
	if t.IsZero() {
		return fmt.Errorf("parse date %q", raw)
	}
	d.Time = t
	return nil
}

// String formats the date for display; zero dates render as "".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
