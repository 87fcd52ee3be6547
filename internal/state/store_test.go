package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
)

func TestStore_UpdateAndSnapshotClone(t *testing.T) {
	var s Store

	before := time.Now()
	s.UpdateLoans([]gateway.Loan{{ID: 1}, {ID: 2}}, nil)
	s.UpdateDashboard(gateway.Dashboard{TotalBooks: 3, Recent: []gateway.RecentLoan{{ID: 1}}}, nil)

	snap := s.Snapshot()
	if !snap.Loans.Loaded || len(snap.Loans.Items) != 2 || snap.Loans.Items[0].ID != 1 {
		t.Fatalf("snapshot loans = %#v, want 2 items", snap.Loans)
	}
	if !snap.HasDashboard || snap.Dashboard.TotalBooks != 3 {
		t.Fatalf("snapshot dashboard = %#v, want TotalBooks=3", snap.Dashboard)
	}
	if snap.LastUpdated.Before(before) || snap.Loans.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if snap.LastError != nil {
		t.Fatalf("LastError = %v, want nil", snap.LastError)
	}

	// Returned snapshot should be independent of the stored one.
	snap.Loans.Items[0].ID = 999
	snap.Dashboard.Recent[0].ID = 999
	snap2 := s.Snapshot()
	if snap2.Loans.Items[0].ID != 1 || snap2.Dashboard.Recent[0].ID != 1 {
		t.Fatalf("Snapshot should clone slices; got loan %d recent %d", snap2.Loans.Items[0].ID, snap2.Dashboard.Recent[0].ID)
	}
}

func TestStore_UpdateErrorKeepsPreviousData(t *testing.T) {
	var s Store

	s.UpdateCopies([]gateway.Copy{{ID: 1, Status: gateway.CopyAvailable}}, nil)
	s.UpdateMembers([]gateway.Member{{ID: 7}}, nil)

	origErr := failure.New(failure.Network, "list copies", "connection refused")
	s.UpdateCopies(nil, origErr)

	snap := s.Snapshot()
	if len(snap.Copies.Items) != 1 || snap.Copies.Items[0].ID != 1 {
		t.Fatalf("copies changed on error: got %#v", snap.Copies.Items)
	}
	if snap.Copies.LastError == nil || !failure.Is(snap.Copies.LastError, failure.Network) {
		t.Fatalf("Copies.LastError = %v, want network failure", snap.Copies.LastError)
	}
	if snap.Members.LastError != nil || len(snap.Members.Items) != 1 {
		t.Fatalf("members affected by copies failure: %#v", snap.Members)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(error(origErr)).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
	if !errors.Is(snap.LastError, origErr) {
		t.Fatalf("LastError should wrap the original error")
	}

	s.UpdateCopies([]gateway.Copy{}, nil)
	snap = s.Snapshot()
	if len(snap.Copies.Items) != 0 || snap.Copies.LastError != nil {
		t.Fatalf("successful empty load should replace copies: %#v", snap.Copies)
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	snap := s.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("fresh store: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.UpdateDashboard(gateway.Dashboard{}, errors.New("fail 1"))
	if snap = s.Snapshot(); snap.ConsecutiveFailures != 1 || snap.IsOffline() {
		t.Fatalf("after one failure: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}
	if snap.HasDashboard {
		t.Fatalf("HasDashboard = true after failed first load")
	}

	s.UpdateBooks(nil, errors.New("fail 2"))
	if snap = s.Snapshot(); snap.ConsecutiveFailures != 2 || !snap.IsOffline() {
		t.Fatalf("after two failures: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.UpdateDashboard(gateway.Dashboard{ActiveLoans: 1}, nil)
	if snap = s.Snapshot(); snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("after success: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}
}

func TestStore_Reset(t *testing.T) {
	var s Store
	s.UpdateBooks([]gateway.Book{{ID: 1}}, nil)
	s.UpdateDashboard(gateway.Dashboard{TotalBooks: 1}, nil)
	s.Reset()

	snap := s.Snapshot()
	if snap.Books.Loaded || len(snap.Books.Items) != 0 || snap.HasDashboard {
		t.Fatalf("Reset left data behind: %#v", snap)
	}
}

func TestStore_CommitAfterResetIsDropped(t *testing.T) {
	var s Store
	gen := s.Generation()

	// Logout and a new login happen while the old load is in flight.
	s.Reset()
	s.Reset()
	s.UpdateBooks([]gateway.Book{{ID: 7, Title: "new session"}}, nil)

	if s.CommitLoans(gen, []gateway.Loan{{ID: 1, TenantID: 1}}, nil) {
		t.Fatalf("CommitLoans with a stale generation reported success")
	}
	if s.CommitBooks(gen, nil, errors.New("unauthorized")) {
		t.Fatalf("CommitBooks with a stale generation reported success")
	}
	if s.CommitDashboard(gen, gateway.Dashboard{TotalBooks: 99}, nil) {
		t.Fatalf("CommitDashboard with a stale generation reported success")
	}

	snap := s.Snapshot()
	if snap.Loans.Loaded || len(snap.Loans.Items) != 0 {
		t.Fatalf("stale loans landed in the new session: %#v", snap.Loans.Items)
	}
	if len(snap.Books.Items) != 1 || snap.Books.Items[0].ID != 7 || snap.Books.LastError != nil {
		t.Fatalf("stale failure touched the new books: %#v", snap.Books)
	}
	if snap.HasDashboard || snap.ConsecutiveFailures != 0 {
		t.Fatalf("stale dashboard committed: %#v", snap)
	}

	if !s.CommitLoans(s.Generation(), []gateway.Loan{{ID: 2}}, nil) {
		t.Fatalf("CommitLoans with the current generation was dropped")
	}
}
