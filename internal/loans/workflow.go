package loans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/inventory"
	"github.com/five82/biblio/internal/notify"
	"github.com/five82/biblio/internal/state"
)

// DefaultLoanDays is the default length of a new loan.
const DefaultLoanDays = 7

const (
	msgLoadFailed   = "Could not load the loans."
	msgPoolFailed   = "Could not refresh the members and available copies."
	msgCreateFailed = "Could not create the loan."
	msgReturnFailed = "Could not register the return."
)

// Gateway is the subset of the backend the loan workflow needs.
type Gateway interface {
	ListLoans(ctx context.Context) ([]gateway.Loan, error)
	CreateLoan(ctx context.Context, req gateway.CreateLoanRequest) error
	ReturnLoan(ctx context.Context, id int) error
	ListMembers(ctx context.Context) ([]gateway.Member, error)
	ListCopies(ctx context.Context) ([]gateway.Copy, error)
}

// Options configure a Workflow.
type Options struct {
	LoanDays int
	Store    *state.Store
	Notices  *notify.Center
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Workflow creates loans from available copies and processes returns.
type Workflow struct {
	api      Gateway
	store    *state.Store
	notices  *notify.Center
	log      zerolog.Logger
	loanDays int
	now      func() time.Time
}

// New builds a Workflow.
func New(api Gateway, opts Options) *Workflow {
	w := &Workflow{
		api:      api,
		store:    opts.Store,
		notices:  opts.Notices,
		log:      opts.Logger.With().Str("component", "loans").Logger(),
		loanDays: opts.LoanDays,
		now:      opts.Now,
	}
	if w.store == nil {
		w.store = &state.Store{}
	}
	if w.loanDays <= 0 {
		w.loanDays = DefaultLoanDays
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Store returns the store the workflow writes into.
func (w *Workflow) Store() *state.Store { return w.store }

// Candidates are the pools a new loan is chosen from.
type Candidates struct {
	Members []gateway.Member
	Copies  []gateway.Copy // Available copies only
}

// List fetches the full loan history. On failure the previously loaded
// history is returned together with the error.
func (w *Workflow) List(ctx context.Context) ([]gateway.Loan, error) {
	gen := w.store.Generation()
	loans, err := w.api.ListLoans(ctx)
	if !w.store.CommitLoans(gen, loans, err) {
		w.log.Debug().Msg("loan load superseded by a session change")
		return nil, state.Superseded("list loans")
	}
	if err != nil {
		w.log.Warn().Err(err).Msg("loan load failed")
		w.notify(err, msgLoadFailed, false)
	}
	return w.store.Snapshot().Loans.Items, err
}

// PrepareCreate resets the form to today and today plus the loan length and
// refreshes both candidate pools from the backend.
func (w *Workflow) PrepareCreate(ctx context.Context) (Form, Candidates, error) {
	form := NewForm(w.now(), w.loanDays)
	err := w.refreshPools(ctx)
	if err != nil {
		w.notify(err, msgPoolFailed, false)
	}
	return form, w.Candidates(), err
}

// Candidates returns the pools from the last successful loads.
func (w *Workflow) Candidates() Candidates {
	snap := w.store.Snapshot()
	return Candidates{
		Members: snap.Members.Items,
		Copies:  inventory.Available(snap.Copies.Items),
	}
}

// Create submits a loan. Nothing is sent until both a member and a copy are
// chosen. The backend re-checks availability; its refusal is surfaced as is.
func (w *Workflow) Create(ctx context.Context, form Form) error {
	const op = "create loan"
	if !form.Ready() {
		err := failure.New(failure.Validation, op, "choose a member and a copy")
		w.notify(err, msgCreateFailed, false)
		return err
	}
	if err := failure.Validate(op, form); err != nil {
		w.notify(err, msgCreateFailed, false)
		return err
	}
	err := w.api.CreateLoan(ctx, gateway.CreateLoanRequest{
		MemberID: form.MemberID,
		CopyID:   form.CopyID,
		LoanDate: form.IssueDate,
		DueDate:  form.DueDate,
	})
	if err != nil {
		w.log.Warn().Err(err).Int("member_id", form.MemberID).Int("copy_id", form.CopyID).Msg("loan create failed")
		w.notify(err, msgCreateFailed, true)
		return err
	}
	w.log.Info().Int("member_id", form.MemberID).Int("copy_id", form.CopyID).Str("due", form.DueDate).Msg("loan created")
	w.reload(ctx)
	w.push(notify.Transient(notify.Success, "Loan created", fmt.Sprintf("Due %s.", form.DueDate)))
	return nil
}

// Return registers the return of an active loan once the operator confirms.
// A loan already known to be returned is refused without a request.
func (w *Workflow) Return(ctx context.Context, loanID int, confirm notify.Confirmer) error {
	const op = "return loan"
	target, known := w.find(loanID)
	if known && !target.Active() {
		err := failure.New(failure.Validation, op, "loan is already returned")
		w.notify(err, msgReturnFailed, false)
		return err
	}
	if !known {
		target = gateway.Loan{ID: loanID, Status: gateway.LoanActive}
	}
	if err := notify.Require(ctx, confirm, op, ReturnPrompt(target)); err != nil {
		return err
	}
	if err := w.api.ReturnLoan(ctx, loanID); err != nil {
		w.log.Warn().Err(err).Int("loan_id", loanID).Msg("loan return failed")
		w.notify(err, msgReturnFailed, false)
		return err
	}
	w.log.Info().Int("loan_id", loanID).Msg("loan returned")
	w.reload(ctx)
	w.push(notify.Transient(notify.Success, "Loan returned", ""))
	return nil
}

// reload refreshes the loan history and the copy pool after a successful
// mutation. Failures are reported but do not undo the mutation.
func (w *Workflow) reload(ctx context.Context) {
	gen := w.store.Generation()
	_, _ = w.List(ctx)
	copies, err := w.api.ListCopies(ctx)
	if w.store.CommitCopies(gen, copies, err) && err != nil {
		w.log.Warn().Err(err).Msg("copy pool reload failed")
	}
}

func (w *Workflow) refreshPools(ctx context.Context) error {
	gen := w.store.Generation()
	members, mErr := w.api.ListMembers(ctx)
	copies, cErr := w.api.ListCopies(ctx)
	if !w.store.CommitMembers(gen, members, mErr) || !w.store.CommitCopies(gen, copies, cErr) {
		return state.Superseded("refresh loan candidates")
	}
	err := errors.Join(mErr, cErr)
	if err != nil {
		w.log.Warn().Err(err).Msg("candidate pool refresh failed")
	}
	return err
}

func (w *Workflow) find(id int) (gateway.Loan, bool) {
	for _, l := range w.store.Snapshot().Loans.Items {
		if l.ID == id {
			return l, true
		}
	}
	return gateway.Loan{}, false
}

func (w *Workflow) notify(err error, generic string, verbatim bool) {
	if w.notices != nil {
		w.notices.PushError(err, generic, verbatim)
	}
}

func (w *Workflow) push(n notify.Notice) {
	if w.notices != nil {
		w.notices.Push(n)
	}
}

// ReturnPrompt is the confirmation shown before returning l.
func ReturnPrompt(l gateway.Loan) notify.Prompt {
	text := "Mark this loan as returned?"
	if l.Copy != nil || l.Member != nil {
		text = fmt.Sprintf("Mark %q borrowed by %s as returned?", l.BookTitle(), memberLabel(l))
	}
	return notify.Prompt{Title: "Return loan", Text: text, Confirm: "return"}
}

func memberLabel(l gateway.Loan) string {
	if name := l.MemberName(); name != "" {
		return name
	}
	return fmt.Sprintf("member #%d", l.MemberID)
}
