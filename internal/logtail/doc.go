// Package logtail reads the tail of the biblio log file and decodes its
// zerolog JSON lines for display.
//
// Read keeps a ring buffer of the last n lines, so memory stays proportional
// to n regardless of file size. A missing log file is not an error: a fresh
// install simply has nothing to show yet.
//
// Parse turns a JSON line into an Entry (time, level, component, message and
// remaining fields); anything that is not JSON is returned as a raw message.
// Format renders an Entry on one line for the CLI and the TUI Logs view.
package logtail
