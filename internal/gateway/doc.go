// Package gateway provides an HTTP client for the library management API.
//
// # Overview
//
// The backend is the source of truth for books, copies, members and loans and
// the only enforcer of business rules: copy availability at loan creation,
// the Active to Returned transition, and referential checks on delete. This
// package only transports requests and classifies failures.
//
// # Architecture
//
//   - client.go: HTTP client, request construction and error classification
//   - types.go: wire types mirroring the backend's JSON schema plus small
//     derived helpers (availability, overdue, display labels)
//
// # Client Usage
//
//	store := &session.Store{}
//	client, err := gateway.NewClient("https://localhost:7263/api",
//		gateway.WithSession(store),
//		gateway.WithTimeout(10*time.Second),
//	)
//	if err != nil {
//		return err
//	}
//	loans, err := client.ListLoans(ctx)
//
// # Headers
//
// Every request carries Accept, User-Agent and a fresh X-Request-ID. Requests
// other than Login also carry "Authorization: Bearer <token>" from the
// session store; without a valid session they fail with failure.Unauthorized
// before anything is sent. Mutating payloads are stamped with the session's
// tenant id (inquilinoId).
//
// # Errors
//
// All errors are *failure.Error values:
//
//   - Validation: the request was refused locally
//   - Unauthorized: no session, or the backend answered 401/403
//   - Rejected: any other non-2xx status; Message holds the backend text when
//     the body carried one
//   - Network: the request produced no response
//   - Decode: the response body did not match the expected schema
//
// Nothing is retried.
//
// # Dates
//
// Date decodes RFC3339, naive ISO timestamps and plain calendar dates, and
// encodes as 2006-01-02. Loan creation forwards the operator's date strings
// unchanged.
package gateway
