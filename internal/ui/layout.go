package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which optional columns and
	// header fields are hidden.
	LayoutCompactWidth = 100

	// LayoutWideWidth is the minimum width for the full loan table.
	LayoutWideWidth = 130
)

// Rows taken by the header, the command bar and the footer.
const chromeHeight = 3

// Log display limits.
const (
	// LogTailLines is how many lines of the log file the Logs view reads.
	LogTailLines = 2000
)

// Timing constants.
const (
	// DefaultUIInterval is how often the UI re-reads the shared store and
	// expires notices.
	DefaultUIInterval = time.Second

	// RequestTimeout bounds each backend call started by the UI.
	RequestTimeout = 15 * time.Second
)
