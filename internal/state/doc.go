// Package state provides thread-safe storage for the lists the biblio client
// has loaded from the backend.
//
// # Overview
//
// Workflows and the dashboard poller write into a Store after each load;
// the UI and CLI read immutable Snapshots. The Store is the single place
// where "the last list the operator saw" lives.
//
// # Architecture
//
//	Producers:                     Consumer (UI):
//	┌──────────────────────┐      ┌──────────────────┐
//	│ inventory.View.Load  │      │                  │
//	│ loans.Workflow.List  │─────→│ store.Snapshot() │
//	│ catalog.Books.List   │      │       ↓          │
//	│ dashboard poller     │      │   render view    │
//	└──────────────────────┘      └──────────────────┘
//
// # Core Types
//
// Collection[T]:
//   - Items from the last successful load
//   - Loaded reports whether any load has ever succeeded
//   - LastError holds the outcome of the most recent attempt
//
// Snapshot:
//   - Books, Copies, Members and Loans collections plus the Dashboard
//   - Store-wide LastError and ConsecutiveFailures for the offline banner
//
// # Update Semantics
//
// Every UpdateX method takes the items and the error of one load:
//
//	// Success: replace the list
//	store.UpdateLoans(loans, nil)
//	→ Loans.Items = loans, Loans.LastError = nil
//	→ ConsecutiveFailures = 0
//
//	// Failure: keep the list, record the error
//	store.UpdateLoans(nil, err)
//	→ Loans.Items unchanged
//	→ Loans.LastError = err
//	→ ConsecutiveFailures++
//
// A failed load never overwrites a list that was loaded earlier. An empty
// successful load does replace it.
//
// # Generations
//
// Reset starts a new generation. Loads that may outlive a logout capture
// Generation() before the request and commit through the CommitX methods,
// which drop the result once the generation has moved on:
//
//	gen := store.Generation()
//	loans, err := api.ListLoans(ctx)
//	if !store.CommitLoans(gen, loans, err) {
//		// the session changed while the request was in flight
//	}
//
// # Offline Detection
//
// IsOffline reports two or more consecutive failed loads. The UI shows an
// offline banner and the poller backs off while it is true.
//
// # Thread Safety
//
// Update methods take the write lock, Snapshot takes the read lock, and both
// only copy memory while holding it. Snapshots deep copy every slice and wrap
// stored errors so callers can mutate what they receive.
//
// Reset clears the store on logout so the next tenant never sees the
// previous tenant's lists.
package state
