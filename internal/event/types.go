package event

import "time"

// Event type identifiers. Convention: "category.action".
const (
	TypeWatchStarted     = "watch.started"
	TypeWatchStopped     = "watch.stopped"
	TypeFileCountChanged = "watch.file_count_changed"
	TypeReceiveFinished  = "watch.receive_finished"
	TypeWatchFailed      = "watch.failed"

	TypeReceiverStarted = "receiver.started"
	TypeReceiverStopped = "receiver.stopped"
	TypeReceiverStatus  = "receiver.status_changed"

	TypeDownloadStatus   = "download.status_changed"
	TypeDownloadFinished = "download.finished"
	TypeDownloadFailed   = "download.failed"
	TypeDownloadCanceled = "download.canceled"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "watch.started").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Directory Watching Events
// -----------------------------------------------------------------------------

// WatchStartedEvent is emitted when a watcher begins polling a directory.
// It is published synchronously before the first poll tick.
type WatchStartedEvent struct {
	baseEvent
	Directory string // Directory being watched
}

// NewWatchStartedEvent creates a WatchStartedEvent.
func NewWatchStartedEvent(directory string) WatchStartedEvent {
	return WatchStartedEvent{
		baseEvent: newBaseEvent(TypeWatchStarted),
		Directory: directory,
	}
}

// WatchStoppedEvent is emitted when a watcher stops polling, either because
// Stop was called or because repeated read failures forced it idle.
type WatchStoppedEvent struct {
	baseEvent
	Directory string // Directory that was being watched
}

// NewWatchStoppedEvent creates a WatchStoppedEvent.
func NewWatchStoppedEvent(directory string) WatchStoppedEvent {
	return WatchStoppedEvent{
		baseEvent: newBaseEvent(TypeWatchStopped),
		Directory: directory,
	}
}

// FileCountChangedEvent is emitted when a poll tick observes a file count
// different from the immediately preceding tick.
type FileCountChangedEvent struct {
	baseEvent
	Directory string // Directory being watched
	Count     int    // File count observed on this tick
}

// NewFileCountChangedEvent creates a FileCountChangedEvent.
func NewFileCountChangedEvent(directory string, count int) FileCountChangedEvent {
	return FileCountChangedEvent{
		baseEvent: newBaseEvent(TypeFileCountChanged),
		Directory: directory,
		Count:     count,
	}
}

// ReceiveFinishedEvent is emitted when the file count has remained stable
// for the configured number of consecutive polls. It fires once per stable
// plateau; the watcher keeps running afterwards.
type ReceiveFinishedEvent struct {
	baseEvent
	Directory  string   // Directory being watched
	FinalCount int      // File count at the time the plateau was declared
	NewFiles   []string // Files that arrived since the previous plateau
}

// NewReceiveFinishedEvent creates a ReceiveFinishedEvent.
func NewReceiveFinishedEvent(directory string, finalCount int, newFiles []string) ReceiveFinishedEvent {
	return ReceiveFinishedEvent{
		baseEvent:  newBaseEvent(TypeReceiveFinished),
		Directory:  directory,
		FinalCount: finalCount,
		NewFiles:   newFiles,
	}
}

// WatchFailedEvent is emitted when consecutive directory read failures
// exceed the watcher's retry ceiling. The watcher transitions to idle; a
// WatchStoppedEvent follows.
type WatchFailedEvent struct {
	baseEvent
	Directory string // Directory that could not be read
	Err       error  // Last read error observed
	Failures  int    // Number of consecutive failed ticks
}

// NewWatchFailedEvent creates a WatchFailedEvent.
func NewWatchFailedEvent(directory string, err error, failures int) WatchFailedEvent {
	return WatchFailedEvent{
		baseEvent: newBaseEvent(TypeWatchFailed),
		Directory: directory,
		Err:       err,
		Failures:  failures,
	}
}

// -----------------------------------------------------------------------------
// Receiver Events
// -----------------------------------------------------------------------------

// ReceiverStartedEvent is emitted after the DICOM receiver has started,
// with or without a storescp process.
type ReceiverStartedEvent struct {
	baseEvent
	Directory   string // Destination directory for incoming data
	StoreSCPRun bool   // Whether a storescp process was launched
	Port        int    // Incoming port (zero when storescp is not running)
}

// NewReceiverStartedEvent creates a ReceiverStartedEvent.
func NewReceiverStartedEvent(directory string, storeSCPRun bool, port int) ReceiverStartedEvent {
	return ReceiverStartedEvent{
		baseEvent:   newBaseEvent(TypeReceiverStarted),
		Directory:   directory,
		StoreSCPRun: storeSCPRun,
		Port:        port,
	}
}

// ReceiverStoppedEvent is emitted after the DICOM receiver has stopped.
type ReceiverStoppedEvent struct {
	baseEvent
	Directory string // Destination directory that was being received into
}

// NewReceiverStoppedEvent creates a ReceiverStoppedEvent.
func NewReceiverStoppedEvent(directory string) ReceiverStoppedEvent {
	return ReceiverStoppedEvent{
		baseEvent: newBaseEvent(TypeReceiverStopped),
		Directory: directory,
	}
}

// ReceiverStatusEvent carries a human-readable receiver status line.
// The receiver deduplicates these: an event is only published when the
// status text differs from the previous one.
type ReceiverStatusEvent struct {
	baseEvent
	Status string // Current status text
}

// NewReceiverStatusEvent creates a ReceiverStatusEvent.
func NewReceiverStatusEvent(status string) ReceiverStatusEvent {
	return ReceiverStatusEvent{
		baseEvent: newBaseEvent(TypeReceiverStatus),
		Status:    status,
	}
}

// -----------------------------------------------------------------------------
// Download Events
// -----------------------------------------------------------------------------

// DownloadStatusEvent reports download progress and status text.
type DownloadStatusEvent struct {
	baseEvent
	Message string // Status text (e.g. "Downloaded 1.2 MB (40% of 3.0 MB)...")
	Percent int    // Progress percentage, -1 when total size is unknown
}

// NewDownloadStatusEvent creates a DownloadStatusEvent.
func NewDownloadStatusEvent(message string, percent int) DownloadStatusEvent {
	return DownloadStatusEvent{
		baseEvent: newBaseEvent(TypeDownloadStatus),
		Message:   message,
		Percent:   percent,
	}
}

// DownloadFinishedEvent is emitted when a download completes successfully.
type DownloadFinishedEvent struct {
	baseEvent
	Path string // Destination path of the downloaded file
}

// NewDownloadFinishedEvent creates a DownloadFinishedEvent.
func NewDownloadFinishedEvent(path string) DownloadFinishedEvent {
	return DownloadFinishedEvent{
		baseEvent: newBaseEvent(TypeDownloadFinished),
		Path:      path,
	}
}

// DownloadFailedEvent is emitted when a download fails.
type DownloadFailedEvent struct {
	baseEvent
	Path string // Intended destination path
	Err  error  // Failure cause
}

// NewDownloadFailedEvent creates a DownloadFailedEvent.
func NewDownloadFailedEvent(path string, err error) DownloadFailedEvent {
	return DownloadFailedEvent{
		baseEvent: newBaseEvent(TypeDownloadFailed),
		Path:      path,
		Err:       err,
	}
}

// DownloadCanceledEvent is emitted when a download is canceled by its
// context. Any partially written file has been removed by then.
type DownloadCanceledEvent struct {
	baseEvent
	Path string // Destination path whose partial content was removed
}

// NewDownloadCanceledEvent creates a DownloadCanceledEvent.
func NewDownloadCanceledEvent(path string) DownloadCanceledEvent {
	return DownloadCanceledEvent{
		baseEvent: newBaseEvent(TypeDownloadCanceled),
		Path:      path,
	}
}
