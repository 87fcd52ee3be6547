// Package ui provides the Bubble Tea terminal interface for biblio.
//
// # Views
//
// After sign-in the operator moves between the Dashboard, Books, Members,
// Loans and Logs views with Tab or the number keys. The Copies view is opened
// from a book with c and closed with esc.
//
// # Data Flow
//
// The model never calls the backend from Update. Every request runs in a
// tea.Cmd through the catalog, inventory and loans workflows, which write to
// the shared state.Store and push notices. When a command finishes the model
// re-reads the store snapshot. Results carry the epoch they were started in;
// switching views, signing in or signing out bumps the epoch so late answers
// for a previous screen are ignored.
//
// A request rejected as unauthorized signs the operator out and returns to
// the login form.
//
// # Modals
//
// Forms, confirmations and the loan builder implement Modal and own the
// keyboard while open. Irreversible actions only run after an explicit y.
package ui
