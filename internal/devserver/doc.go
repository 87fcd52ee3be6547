// Package devserver is a small multi-tenant library backend for local
// development and tests. It serves the same REST surface the client expects
// (books, copies, members, loans, dashboard and login) from a SQLite file.
package devserver
