// Package download fetches sample data over HTTP into a destination
// directory, publishing progress as events.
//
// Progress percentages come from the Content-Length header when the
// server sends one; otherwise only the byte count is reported. An
// existing non-empty destination file short-circuits the fetch, and
// cancellation through the context removes the partially written file.
package download
