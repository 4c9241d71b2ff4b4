// Package watcher provides polling directory watchers for incoming data.
//
// A [Watcher] polls a directory on a fixed interval, counts the files it
// holds (optionally filtered by a filename pattern) and publishes events
// when watching starts or stops and whenever the count changes. The
// [TimeoutWatcher] adds plateau detection on top: once the file count has
// been stable for a configured number of consecutive polls it declares the
// incoming transfer finished. That matters for DICOM reception, where
// storescp writes files without ever signalling the end of a transfer.
//
// # Events
//
// Watchers publish to an [event.Bus] rather than calling consumers
// directly:
//
//   - event.WatchStartedEvent, synchronously before the first poll
//   - event.WatchStoppedEvent, after the last tick has run
//   - event.FileCountChangedEvent, when a tick observes a new count
//   - event.ReceiveFinishedEvent, once per stable plateau (TimeoutWatcher)
//   - event.WatchFailedEvent, when consecutive read failures exceed the
//     retry ceiling
//
// # Lifecycle
//
// Start fails with errors.ErrAlreadyWatching on an active watcher. Stop is
// idempotent and synchronous: when it returns, no further tick will run.
// A transient directory read error is tolerated and retried on the next
// tick; once more than Config.RetryCeiling consecutive ticks have failed
// the watcher transitions to idle on its own and surfaces the failure
// through LastError and a WatchFailedEvent.
//
// Polling reads the filesystem through afero, so tests run against an
// in-memory filesystem. An optional fsnotify trigger nudges the poll loop
// when the directory changes so arrivals surface without waiting out the
// interval; polling stays the source of truth since inotify is unreliable
// on the network mounts DICOM data tends to arrive on.
package watcher
