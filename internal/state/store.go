package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/biblio/internal/failure"
	"github.com/five82/biblio/internal/gateway"
)

// Superseded is returned by loads whose result was dropped because the
// store was reset while they ran.
func Superseded(op string) error {
	return failure.New(failure.Cancelled, op, "session changed while loading")
}

// Collection is one list loaded from the backend together with the outcome
// of the most recent load attempt.
type Collection[T any] struct {
	Items       []T
	Loaded      bool
	LastUpdated time.Time
	LastError   error
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Books   Collection[gateway.Book]
	Copies  Collection[gateway.Copy]
	Members Collection[gateway.Member]
	Loans   Collection[gateway.Loan]

	Dashboard    gateway.Dashboard
	HasDashboard bool

	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed loads
}

// IsOffline returns true when the API has been unreachable for multiple loads.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	gen      uint64
	now      func() time.Time
}

// Generation identifies the store contents between two resets. A load
// captures it before its request and commits with it afterwards.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// UpdateBooks replaces the stored books. When err is non-nil the previous
// books are kept and the error is recorded.
func (s *Store) UpdateBooks(items []gateway.Book, err error) {
	s.CommitBooks(s.Generation(), items, err)
}

// UpdateCopies replaces the stored copies, keeping them on error.
func (s *Store) UpdateCopies(items []gateway.Copy, err error) {
	s.CommitCopies(s.Generation(), items, err)
}

// UpdateMembers replaces the stored members, keeping them on error.
func (s *Store) UpdateMembers(items []gateway.Member, err error) {
	s.CommitMembers(s.Generation(), items, err)
}

// UpdateLoans replaces the stored loans, keeping them on error.
func (s *Store) UpdateLoans(items []gateway.Loan, err error) {
	s.CommitLoans(s.Generation(), items, err)
}

// UpdateDashboard replaces the dashboard summary, keeping it on error.
func (s *Store) UpdateDashboard(d gateway.Dashboard, err error) {
	s.CommitDashboard(s.Generation(), d, err)
}

// CommitBooks is UpdateBooks for a load started at generation gen. It
// reports false and changes nothing when the store was reset since.
func (s *Store) CommitBooks(gen uint64, items []gateway.Book, err error) bool {
	return s.update(gen, err, func(now time.Time) { apply(&s.snapshot.Books, items, err, now) })
}

// CommitCopies is the generation-checked UpdateCopies.
func (s *Store) CommitCopies(gen uint64, items []gateway.Copy, err error) bool {
	return s.update(gen, err, func(now time.Time) { apply(&s.snapshot.Copies, items, err, now) })
}

// CommitMembers is the generation-checked UpdateMembers.
func (s *Store) CommitMembers(gen uint64, items []gateway.Member, err error) bool {
	return s.update(gen, err, func(now time.Time) { apply(&s.snapshot.Members, items, err, now) })
}

// CommitLoans is the generation-checked UpdateLoans.
func (s *Store) CommitLoans(gen uint64, items []gateway.Loan, err error) bool {
	return s.update(gen, err, func(now time.Time) { apply(&s.snapshot.Loans, items, err, now) })
}

// CommitDashboard is the generation-checked UpdateDashboard.
func (s *Store) CommitDashboard(gen uint64, d gateway.Dashboard, err error) bool {
	return s.update(gen, err, func(time.Time) {
		if err != nil {
			return
		}
		d.Recent = cloneSlice(d.Recent)
		s.snapshot.Dashboard = d
		s.snapshot.HasDashboard = true
	})
}

// Reset discards everything, used when the session ends. Loads started
// before the reset can no longer commit.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
	s.gen++
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Books = cloneCollection(s.snapshot.Books)
	snap.Copies = cloneCollection(s.snapshot.Copies)
	snap.Members = cloneCollection(s.snapshot.Members)
	snap.Loans = cloneCollection(s.snapshot.Loans)
	snap.Dashboard.Recent = cloneSlice(s.snapshot.Dashboard.Recent)
	snap.LastError = cloneErr(s.snapshot.LastError)
	return snap
}

func (s *Store) update(gen uint64, err error, fn func(now time.Time)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}

	now := time.Now()
	if s.now != nil {
		now = s.now()
	}
	fn(now)
	s.snapshot.LastUpdated = now
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return true
	}
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	return true
}

func apply[T any](c *Collection[T], items []T, err error, now time.Time) {
	if err != nil {
		c.LastError = err
		return
	}
	c.Items = cloneSlice(items)
	c.Loaded = true
	c.LastUpdated = now
	c.LastError = nil
}

func cloneCollection[T any](c Collection[T]) Collection[T] {
	c.Items = cloneSlice(c.Items)
	c.LastError = cloneErr(c.LastError)
	return c
}

func cloneSlice[T any](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	dup := make([]T, len(items))
	copy(dup, items)
	return dup
}

func cloneErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w", err)
}
