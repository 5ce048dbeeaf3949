package tui

import "errors"

var (
	// ErrAborted signals the respondent aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNotLoaded is returned when Run receives a session that has not
	// loaded a form.
	ErrNotLoaded = errors.New("tui: session not loaded")
	// ErrNoFileOpener is returned for upload questions when file access was
	// disabled.
	ErrNoFileOpener = errors.New("tui: uploads are not available")
)
