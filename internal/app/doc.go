// Package app is the composition root of the biblio client.
//
// New loads the TOML configuration and preferences, sets up zerolog, restores
// the persisted session and builds the gateway client together with the
// services layered on it: the shared state.Store, the notify.Center and the
// catalog, inventory and loan workflows. Both the TUI (Run) and the cobra
// commands start from an *App.
//
// StartPoller keeps the dashboard summary fresh while a session is valid.
// Each consecutive failure doubles the wait between polls up to five
// minutes; a success resets it.
package app
