package loans

import (
	"time"

	"github.com/five82/biblio/internal/gateway"
)

// Form is the create-loan input. Dates are kept as entered and forwarded
// unchanged.
type Form struct {
	MemberID  int    `validate:"gt=0"`
	CopyID    int    `validate:"gt=0"`
	IssueDate string `validate:"omitempty,datetime=2006-01-02"`
	DueDate   string `validate:"omitempty,datetime=2006-01-02"`
}

// NewForm returns a blank form issued today and due loanDays later.
func NewForm(now time.Time, loanDays int) Form {
	if loanDays <= 0 {
		loanDays = DefaultLoanDays
	}
	return Form{
		IssueDate: now.Format(gateway.DateLayout),
		DueDate:   now.AddDate(0, 0, loanDays).Format(gateway.DateLayout),
	}
}

// Ready reports whether the form may be submitted.
func (f Form) Ready() bool {
	return f.MemberID > 0 && f.CopyID > 0
}

// Row is one loan prepared for display.
type Row struct {
	Loan    gateway.Loan
	Title   string
	Barcode string
	Member  string
	Issued  string
	Due     string
	Status  string
	Overdue bool
}

// Rows derives display rows at now. Overdue is computed here on every call.
func Rows(loans []gateway.Loan, now time.Time) []Row {
	rows := make([]Row, 0, len(loans))
	for _, l := range loans {
		status := l.Status.Label()
		overdue := l.Overdue(now)
		if overdue {
			status = "Overdue"
		}
		rows = append(rows, Row{
			Loan:    l,
			Title:   l.BookTitle(),
			Barcode: l.Barcode(),
			Member:  memberLabel(l),
			Issued:  l.LoanDate.String(),
			Due:     l.DueDate.String(),
			Status:  status,
			Overdue: overdue,
		})
	}
	return rows
}

// Active returns the loans that have not been returned.
func Active(loans []gateway.Loan) []gateway.Loan {
	var out []gateway.Loan
	for _, l := range loans {
		if l.Active() {
			out = append(out, l)
		}
	}
	return out
}

// Overdue returns the active loans past due at now.
func Overdue(loans []gateway.Loan, now time.Time) []gateway.Loan {
	var out []gateway.Loan
	for _, l := range loans {
		if l.Overdue(now) {
			out = append(out, l)
		}
	}
	return out
}
