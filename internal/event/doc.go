// Package event provides a pub-sub event bus for decoupled inter-component
// communication in inflow.
//
// The toolkit's watchers, the DICOM receiver and the downloader publish
// events rather than calling their consumers directly. A status display, a
// logger or an owning command subscribes by callback registration without
// the producer knowing who listens.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Directory watching:
//   - [WatchStartedEvent]: Emitted when a watcher begins polling a directory
//   - [WatchStoppedEvent]: Emitted when a watcher stops polling
//   - [FileCountChangedEvent]: Emitted when the observed file count changes
//   - [ReceiveFinishedEvent]: Emitted when the file count has been stable long enough
//   - [WatchFailedEvent]: Emitted when repeated directory reads fail
//
// DICOM reception:
//   - [ReceiverStartedEvent], [ReceiverStoppedEvent]: Receiver lifecycle
//   - [ReceiverStatusEvent]: Human-readable receiver status updates
//
// Downloads:
//   - [DownloadStatusEvent]: Progress and status text during a download
//   - [DownloadFinishedEvent], [DownloadFailedEvent], [DownloadCanceledEvent]
//
// # Ordering and Thread Safety
//
// The [Bus] is safe for concurrent use. Handlers are invoked synchronously
// on the publishing goroutine: handlers subscribed to the specific event
// type run first, then wildcard handlers, each group in registration order.
// A panicking handler is recovered and logged so it cannot prevent delivery
// to the remaining handlers.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe(event.TypeFileCountChanged, func(e event.Event) {
//	    changed := e.(event.FileCountChangedEvent)
//	    log.Printf("%s now holds %d files", changed.Directory, changed.Count)
//	})
//
//	bus.Publish(event.NewFileCountChangedEvent("/incoming", 12))
package event
