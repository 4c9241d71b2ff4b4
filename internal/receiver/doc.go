// Package receiver combines a DCMTK storescp process with a timeout
// directory watcher to receive DICOM data.
//
// storescp gives no feedback about a finished transfer: it writes files
// into its output directory until the sender goes quiet. The [Receiver]
// therefore pairs the process with a watcher.TimeoutWatcher on the same
// directory and treats a stable file count as the end of the transfer.
// It re-publishes watcher activity as deduplicated human-readable status
// events so a display only updates when the status text actually changes.
//
// The receiver can also run without storescp (watching-only mode) when
// another process owns the DICOM listener and this toolkit only observes
// the destination directory.
package receiver
