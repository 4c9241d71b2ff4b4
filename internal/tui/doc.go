// Package tui renders the watch-box status panel: a live terminal view
// of a watched directory driven by bus events. It is the CLI's own
// status surface, not a general UI toolkit.
package tui
