// Package ui renders CLI output for tuneblend with lipgloss styles.
//
// A [Palette] holds the named styles. [Tracks] and [Jobs] lay out search results and the
// playlist job ledger; both fall back to plain text when the palette is [Plain].
package ui
