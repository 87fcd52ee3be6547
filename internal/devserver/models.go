package devserver

import "database/sql"

const (
	copyAvailable = "Disponible"
	copyLoaned    = "Prestado"
	loanActive    = "Activo"
	loanReturned  = "Devuelto"
)

// Tenant is one library.
type Tenant struct {
	ID   int64  `db:"id"`
	Code string `db:"code"`
	Name string `db:"name"`
}

// User is a staff account able to sign in.
type User struct {
	ID           int64  `db:"id"`
	TenantID     int64  `db:"tenant_id"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	Role         string `db:"role"`
	PasswordHash string `db:"password_hash"`
}

// Book is a catalog title.
type Book struct {
	ID         int64  `db:"id" json:"libroId"`
	TenantID   int64  `db:"tenant_id" json:"inquilinoId"`
	Title      string `db:"title" json:"titulo" validate:"required"`
	Author     string `db:"author" json:"autor" validate:"required"`
	Publisher  string `db:"publisher" json:"editorial"`
	ISBN       string `db:"isbn" json:"isbn"`
	Year       int    `db:"year" json:"anioPublicacion" validate:"gte=0,lte=9999"`
	CategoryID int64  `db:"category_id" json:"categoriaId"`
}

type bookRef struct {
	Title string `json:"titulo"`
}

// Copy is a physical copy of a book.
type Copy struct {
	ID        int64          `db:"id" json:"ejemplarId"`
	TenantID  int64          `db:"tenant_id" json:"inquilinoId"`
	BookID    int64          `db:"book_id" json:"libroId" validate:"gt=0"`
	Barcode   string         `db:"barcode" json:"codigoBarras" validate:"required"`
	Location  string         `db:"location" json:"ubicacion"`
	Status    string         `db:"status" json:"estado" validate:"omitempty,oneof=Disponible"`
	BookTitle sql.NullString `db:"book_title" json:"-"`
	Book      *bookRef       `db:"-" json:"libro,omitempty"`
}

// Member is a library patron.
type Member struct {
	ID         int64  `db:"id" json:"socioId"`
	TenantID   int64  `db:"tenant_id" json:"inquilinoId"`
	Code       string `db:"code" json:"codigo" validate:"required"`
	FullName   string `db:"full_name" json:"nombreCompleto" validate:"required"`
	Email      string `db:"email" json:"email" validate:"omitempty,email"`
	MemberType string `db:"member_type" json:"tipoSocio" validate:"required,oneof=Estudiante Docente Administrativo Investigador"`
}

type loanCopy struct {
	Barcode string   `json:"codigoBarras"`
	Book    *bookRef `json:"libro,omitempty"`
}

type loanMember struct {
	FullName string `json:"nombreCompleto"`
}

// Loan is one lending of a copy to a member.
type Loan struct {
	ID         int64          `db:"id" json:"prestamoId"`
	TenantID   int64          `db:"tenant_id" json:"inquilinoId"`
	CopyID     int64          `db:"copy_id" json:"ejemplarId"`
	MemberID   int64          `db:"member_id" json:"socioId"`
	UserID     int64          `db:"user_id" json:"usuarioId"`
	LoanDate   string         `db:"loan_date" json:"fechaPrestamo"`
	DueDate    string         `db:"due_date" json:"fechaVencimiento"`
	Status     string         `db:"status" json:"estado"`
	ReturnedAt sql.NullString `db:"returned_at" json:"-"`
	Barcode    sql.NullString `db:"barcode" json:"-"`
	BookTitle  sql.NullString `db:"book_title" json:"-"`
	MemberName sql.NullString `db:"member_name" json:"-"`
	Copy       *loanCopy      `db:"-" json:"ejemplar,omitempty"`
	Member     *loanMember    `db:"-" json:"socio,omitempty"`
}

// LoanInput is the create-loan request body. ID is honored only by seeding.
type LoanInput struct {
	ID       int64  `json:"-"`
	TenantID int64  `json:"inquilinoId"`
	MemberID int64  `json:"socioId" validate:"gt=0"`
	CopyID   int64  `json:"ejemplarId" validate:"gt=0"`
	LoanDate string `json:"fechaPrestamo" validate:"omitempty,datetime=2006-01-02"`
	DueDate  string `json:"fechaVencimiento" validate:"omitempty,datetime=2006-01-02"`
}

// Dashboard is the /reports/dashboard payload.
type Dashboard struct {
	TotalBooks   int          `json:"totalLibros"`
	TotalMembers int          `json:"totalSocios"`
	ActiveLoans  int          `json:"prestamosActivos"`
	OverdueLoans int          `json:"prestamosVencidos"`
	Recent       []RecentLoan `json:"ultimosPrestamos"`
}

// RecentLoan is one dashboard activity row.
type RecentLoan struct {
	ID     int64  `db:"id" json:"prestamoId"`
	Book   string `db:"book" json:"libro"`
	Member string `db:"member" json:"socio"`
	Date   string `db:"loan_date" json:"fecha"`
	Status string `db:"status" json:"estado"`
}

// LoginRequest is the /auth/login body.
type LoginRequest struct {
	TenantCode string `json:"codigoTenant" validate:"required"`
	Email      string `json:"email" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// LoginResponse is the /auth/login payload.
type LoginResponse struct {
	Token    string `json:"token"`
	User     string `json:"usuario"`
	Role     string `json:"rol"`
	TenantID int64  `json:"inquilinoId"`
}

// RuleError is a business-rule refusal with the status and message sent to
// the client.
type RuleError struct {
	Status int
	Detail string
}

func (e *RuleError) Error() string { return e.Detail }

type apiError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}
