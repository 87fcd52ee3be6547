package loans

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/biblio/internal/devserver"
	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
	"github.com/five82/biblio/internal/notify"
	"github.com/five82/biblio/internal/session"
	"github.com/five82/biblio/internal/state"
)

type fakeGateway struct {
	loans    []gateway.Loan
	members  []gateway.Member
	copies   []gateway.Copy
	listErr  error
	created  []gateway.CreateLoanRequest
	returned []int
}

func (f *fakeGateway) ListLoans(context.Context) ([]gateway.Loan, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]gateway.Loan(nil), f.loans...), nil
}

func (f *fakeGateway) CreateLoan(_ context.Context, req gateway.CreateLoanRequest) error {
	f.created = append(f.created, req)
	return nil
}

func (f *fakeGateway) ReturnLoan(_ context.Context, id int) error {
	f.returned = append(f.returned, id)
	return nil
}

func (f *fakeGateway) ListMembers(context.Context) ([]gateway.Member, error) {
	return append([]gateway.Member(nil), f.members...), nil
}

func (f *fakeGateway) ListCopies(context.Context) ([]gateway.Copy, error) {
	return append([]gateway.Copy(nil), f.copies...), nil
}

func day(s string) gateway.Date {
	t, err := time.ParseInLocation(gateway.DateLayout, s, time.Local)
	if err != nil {
		panic(err)
	}
	return gateway.NewDate(t)
}

func TestCreate_DisabledWithoutMemberOrCopy(t *testing.T) {
	forms := []Form{
		{},
		{MemberID: 7},
		{CopyID: 42},
	}
	for _, form := range forms {
		api := &fakeGateway{}
		notices := &notify.Center{}
		w := New(api, Options{Notices: notices})

		assert.False(t, form.Ready())
		err := w.Create(context.Background(), form)
		require.Error(t, err)
		assert.Equal(t, failure.Validation, failure.KindOf(err))
		assert.Empty(t, api.created, "no request may be sent for %+v", form)

		n, ok := notices.Latest(time.Now())
		require.True(t, ok)
		assert.Equal(t, notify.Warning, n.Level)
	}
}

func TestCreate_RejectsMalformedDates(t *testing.T) {
	api := &fakeGateway{}
	w := New(api, Options{})

	err := w.Create(context.Background(), Form{MemberID: 7, CopyID: 42, DueDate: "08/01/2024"})
	require.Error(t, err)
	assert.Equal(t, failure.Validation, failure.KindOf(err))
	assert.Empty(t, api.created)
}

func TestPrepareCreate_DefaultsDates(t *testing.T) {
	now := time.Date(2024, 1, 1, 15, 0, 0, 0, time.Local)
	api := &fakeGateway{
		members: []gateway.Member{{ID: 7, FullName: "Ana Torres"}},
		copies: []gateway.Copy{
			{ID: 41, Status: gateway.CopyLoaned},
			{ID: 42, Status: gateway.CopyAvailable},
		},
	}
	w := New(api, Options{Now: func() time.Time { return now }})

	form, pools, err := w.PrepareCreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", form.IssueDate)
	assert.Equal(t, "2024-01-08", form.DueDate)
	assert.False(t, form.Ready())
	require.Len(t, pools.Members, 1)
	require.Len(t, pools.Copies, 1)
	assert.Equal(t, 42, pools.Copies[0].ID)

	w = New(api, Options{LoanDays: 14, Now: func() time.Time { return now }})
	form, _, err = w.PrepareCreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", form.DueDate)
}

func TestCreate_SendsDatesVerbatim(t *testing.T) {
	api := &fakeGateway{}
	w := New(api, Options{})

	require.NoError(t, w.Create(context.Background(), Form{MemberID: 7, CopyID: 42, IssueDate: "2024-01-01", DueDate: "2024-01-08"}))
	require.Len(t, api.created, 1)
	assert.Equal(t, gateway.CreateLoanRequest{MemberID: 7, CopyID: 42, LoanDate: "2024-01-01", DueDate: "2024-01-08"}, api.created[0])
}

func TestList_KeepsPreviousOnFailure(t *testing.T) {
	api := &fakeGateway{loans: []gateway.Loan{{ID: 1, Status: gateway.LoanActive}}}
	notices := &notify.Center{}
	w := New(api, Options{Notices: notices})

	loans, err := w.List(context.Background())
	require.NoError(t, err)
	require.Len(t, loans, 1)

	api.listErr = failure.Wrap(failure.Network, "list loans", errors.New("connection refused"))
	loans, err = w.List(context.Background())
	require.Error(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, 1, loans[0].ID)

	n, ok := notices.Latest(time.Now())
	require.True(t, ok)
	assert.Equal(t, msgLoadFailed, n.Text)
}

func TestReturn_DeclinedSendsNothing(t *testing.T) {
	api := &fakeGateway{}
	w := New(api, Options{})

	err := w.Return(context.Background(), 99, notify.Declined)
	require.Error(t, err)
	assert.Equal(t, failure.Cancelled, failure.KindOf(err))
	assert.Empty(t, api.returned)
}

func TestReturn_RefusesKnownReturnedLoan(t *testing.T) {
	api := &fakeGateway{loans: []gateway.Loan{{ID: 5, Status: gateway.LoanReturned}}}
	w := New(api, Options{})
	_, err := w.List(context.Background())
	require.NoError(t, err)

	err = w.Return(context.Background(), 5, notify.Approved)
	require.Error(t, err)
	assert.Equal(t, failure.Validation, failure.KindOf(err))
	assert.Empty(t, api.returned)
}

func TestRows_OverdueBoundary(t *testing.T) {
	due := day("2024-01-08")
	loan := gateway.Loan{ID: 1, Status: gateway.LoanActive, LoanDate: day("2024-01-01"), DueDate: due}

	before := Rows([]gateway.Loan{loan}, due.Add(-time.Nanosecond))
	at := Rows([]gateway.Loan{loan}, due.Time)
	after := Rows([]gateway.Loan{loan}, due.Add(time.Nanosecond))

	assert.False(t, before[0].Overdue)
	assert.False(t, at[0].Overdue)
	assert.True(t, after[0].Overdue)
	assert.Equal(t, "Active", before[0].Status)
	assert.Equal(t, "Overdue", after[0].Status)

	loan.Status = gateway.LoanReturned
	returned := Rows([]gateway.Loan{loan}, due.AddDate(1, 0, 0))
	assert.False(t, returned[0].Overdue)
	assert.Equal(t, "Returned", returned[0].Status)
}

func TestRows_Placeholders(t *testing.T) {
	rows := Rows([]gateway.Loan{{ID: 3, MemberID: 12, Status: gateway.LoanActive}}, time.Now())
	require.Len(t, rows, 1)
	assert.Equal(t, gateway.UnknownBook, rows[0].Title)
	assert.Equal(t, "member #12", rows[0].Member)
	assert.Equal(t, "", rows[0].Due)
}

func TestActiveAndOverdueFilters(t *testing.T) {
	now := day("2024-02-01").Time
	loans := []gateway.Loan{
		{ID: 1, Status: gateway.LoanActive, DueDate: day("2024-01-20")},
		{ID: 2, Status: gateway.LoanActive, DueDate: day("2024-02-10")},
		{ID: 3, Status: gateway.LoanReturned, DueDate: day("2024-01-05")},
	}
	assert.Len(t, Active(loans), 2)
	overdue := Overdue(loans, now)
	require.Len(t, overdue, 1)
	assert.Equal(t, 1, overdue[0].ID)
}

func TestReturnPrompt(t *testing.T) {
	p := ReturnPrompt(gateway.Loan{
		ID:     9,
		Copy:   &gateway.LoanCopy{Barcode: "BC-1", Book: &gateway.BookRef{Title: "Rayuela"}},
		Member: &gateway.LoanMember{FullName: "Ana Torres"},
	})
	assert.Equal(t, "Return loan", p.Title)
	assert.Contains(t, p.Text, "Rayuela")
	assert.Contains(t, p.Text, "Ana Torres")
}

// backend starts the dev server on an in-memory database holding member 7,
// available copy 42 and an earlier loan 98, and returns a signed-in client.
func backend(t *testing.T) *gateway.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store, err := devserver.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, devserver.Seed(ctx, store, time.Now()))

	_, err = store.CreateMember(ctx, 1, devserver.Member{ID: 7, Code: "S-007", FullName: "Ana Torres Vidal", MemberType: "Estudiante"})
	require.NoError(t, err)
	bookID, err := store.CreateBook(ctx, 1, devserver.Book{Title: "Pedro Páramo", Author: "Juan Rulfo"})
	require.NoError(t, err)
	_, err = store.CreateCopy(ctx, 1, devserver.Copy{ID: 41, BookID: bookID, Barcode: "PP-41"})
	require.NoError(t, err)
	_, err = store.CreateCopy(ctx, 1, devserver.Copy{ID: 42, BookID: bookID, Barcode: "PP-42"})
	require.NoError(t, err)
	_, err = store.CreateLoan(ctx, 1, 1, devserver.LoanInput{ID: 98, MemberID: 7, CopyID: 41}, time.Now())
	require.NoError(t, err)

	srv := httptest.NewServer(devserver.NewRouter(devserver.Config{JWTSecret: "loans-test", Prefix: "/api"}, store, zerolog.Nop()))
	t.Cleanup(srv.Close)

	sessions := session.NewStore(session.Session{})
	client, err := gateway.NewClient(srv.URL+"/api", gateway.WithSession(sessions))
	require.NoError(t, err)
	resp, err := client.Login(ctx, gateway.LoginRequest{
		TenantCode: devserver.SeedTenantCode,
		Email:      devserver.SeedEmail,
		Password:   devserver.SeedPassword,
	})
	require.NoError(t, err)
	sessions.Populate(session.Session{Token: resp.Token, TenantID: resp.TenantID, DisplayName: resp.User, Role: resp.Role})
	return client
}

func copyIDs(copies []gateway.Copy) []int {
	ids := make([]int, 0, len(copies))
	for _, c := range copies {
		ids = append(ids, c.ID)
	}
	return ids
}

func findLoan(t *testing.T, loans []gateway.Loan, id int) gateway.Loan {
	t.Helper()
	for _, l := range loans {
		if l.ID == id {
			return l
		}
	}
	t.Fatalf("loan %d not found", id)
	return gateway.Loan{}
}

// assertConsistent checks that every copy held by an active loan is loaned
// and absent from the candidate pool.
func assertConsistent(t *testing.T, w *Workflow) {
	t.Helper()
	snap := w.Store().Snapshot()
	status := map[int]gateway.CopyStatus{}
	for _, c := range snap.Copies.Items {
		status[c.ID] = c.Status
	}
	pool := copyIDs(w.Candidates().Copies)
	for _, l := range Active(snap.Loans.Items) {
		assert.Equal(t, gateway.CopyLoaned, status[l.CopyID], "copy %d of active loan %d", l.CopyID, l.ID)
		assert.NotContains(t, pool, l.CopyID)
	}
}

func TestCreateThenReturn_AgainstBackend(t *testing.T) {
	client := backend(t)
	ctx := context.Background()
	notices := &notify.Center{}
	store := &state.Store{}
	w := New(client, Options{Store: store, Notices: notices})

	_, err := w.List(ctx)
	require.NoError(t, err)
	_, pools, err := w.PrepareCreate(ctx)
	require.NoError(t, err)
	assert.Contains(t, copyIDs(pools.Copies), 42)
	assert.NotContains(t, copyIDs(pools.Copies), 41)
	before := len(store.Snapshot().Loans.Items)

	form := Form{MemberID: 7, CopyID: 42, IssueDate: "2024-01-01", DueDate: "2024-01-08"}
	require.NoError(t, w.Create(ctx, form))

	loans := store.Snapshot().Loans.Items
	require.Len(t, loans, before+1)
	created := findLoan(t, loans, 99)
	assert.Equal(t, gateway.LoanActive, created.Status)
	assert.Equal(t, 42, created.CopyID)
	assert.Equal(t, 7, created.MemberID)
	assert.Equal(t, "2024-01-01", created.LoanDate.String())
	assert.Equal(t, "2024-01-08", created.DueDate.String())
	assert.Equal(t, "Pedro Páramo", created.BookTitle())
	assert.True(t, created.Overdue(time.Now()))
	assert.NotContains(t, copyIDs(w.Candidates().Copies), 42)
	assertConsistent(t, w)

	n, ok := notices.Latest(time.Now())
	require.True(t, ok)
	assert.Equal(t, "Loan created", n.Title)

	// The backend refuses a second claim and the refusal is shown as sent.
	err = w.Create(ctx, form)
	require.Error(t, err)
	assert.Equal(t, failure.Rejected, failure.KindOf(err))
	n, ok = notices.Latest(time.Now())
	require.True(t, ok)
	assert.Equal(t, "the copy is not available", n.Text)

	require.NoError(t, w.Return(ctx, 99, notify.Approved))
	returned := findLoan(t, store.Snapshot().Loans.Items, 99)
	assert.Equal(t, gateway.LoanReturned, returned.Status)
	assert.False(t, returned.Overdue(time.Now()))
	assert.Contains(t, copyIDs(w.Candidates().Copies), 42)
	assertConsistent(t, w)

	// Returned is terminal.
	err = w.Return(ctx, 99, notify.Approved)
	require.Error(t, err)
	assert.Equal(t, failure.Validation, failure.KindOf(err))
	assert.Equal(t, gateway.LoanReturned, findLoan(t, store.Snapshot().Loans.Items, 99).Status)
}

func TestReturn_UnknownLoanRejectedByBackend(t *testing.T) {
	client := backend(t)
	w := New(client, Options{})

	err := w.Return(context.Background(), 12345, notify.Approved)
	require.Error(t, err)
	assert.Equal(t, failure.Rejected, failure.KindOf(err))
	assert.Equal(t, "loan not found", failure.MessageOf(err))
}

// blockingLoans holds ListLoans until release is closed.
type blockingLoans struct {
	fakeGateway
	started chan struct{}
	release chan struct{}
}

func (b *blockingLoans) ListLoans(ctx context.Context) ([]gateway.Loan, error) {
	close(b.started)
	<-b.release
	return b.fakeGateway.ListLoans(ctx)
}

func TestList_DroppedAfterSessionChange(t *testing.T) {
	api := &blockingLoans{
		fakeGateway: fakeGateway{loans: []gateway.Loan{{ID: 1, TenantID: 1, CopyID: 42, Status: gateway.LoanActive}}},
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	store := &state.Store{}
	notices := &notify.Center{}
	w := New(api, Options{Store: store, Notices: notices})

	type result struct {
		loans []gateway.Loan
		err   error
	}
	done := make(chan result, 1)
	go func() {
		loans, err := w.List(context.Background())
		done <- result{loans, err}
	}()

	<-api.started
	store.Reset() // logout
	store.Reset() // next login
	close(api.release)
	got := <-done

	require.Error(t, got.err)
	assert.Equal(t, failure.Cancelled, failure.KindOf(got.err))
	assert.Empty(t, got.loans)

	snap := store.Snapshot()
	assert.False(t, snap.Loans.Loaded)
	assert.Empty(t, snap.Loans.Items, "loans of the previous session must not reach the new one")
	_, ok := notices.Latest(time.Now())
	assert.False(t, ok, "a superseded load must not raise a notice")
}
