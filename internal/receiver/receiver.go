package receiver

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/openics/inflow/internal/errors"
	"github.com/openics/inflow/internal/event"
	"github.com/openics/inflow/internal/logging"
	"github.com/openics/inflow/internal/watcher"
)

// Receiver status texts. An event is only published when the text changes.
const (
	statusWaiting      = "Waiting for incoming DICOM data"
	statusWatchingOnly = "Watching incoming data directory only (no storescp running)"
	statusCompleted    = "DICOM data receive completed"
	statusStopped      = "Stopped DICOM receiver"
	statusSCPExited    = "storescp exited unexpectedly"
)

// Config holds the settings for a Receiver.
type Config struct {
	// Directory is the destination directory for incoming DICOM data.
	Directory string

	// Port is the incoming DICOM port. Defaults to DefaultPort.
	Port int

	// AETitle is the application entity title storescp announces.
	// Defaults to DefaultAETitle.
	AETitle string

	// FilePattern optionally restricts which file names count as
	// received instances (regexp on the file name).
	FilePattern string

	// PollInterval, StableRounds and RetryCeiling configure the
	// underlying watcher; zero values use the watcher defaults.
	PollInterval time.Duration
	StableRounds int
	RetryCeiling int

	// Fs is the filesystem the watcher polls. Defaults to the OS
	// filesystem.
	Fs afero.Fs
}

// Receiver pairs a storescp process with a timeout watcher on the
// destination directory and publishes deduplicated status events.
type Receiver struct {
	cfg Config
	bus *event.Bus
	log *logging.Logger

	watcher *watcher.TimeoutWatcher
	scp     *StoreSCP

	mu      sync.Mutex
	running bool
	status  string
	subs    []event.Subscription
}

// New creates a Receiver for the given configuration.
func New(cfg Config, bus *event.Bus, log *logging.Logger) (*Receiver, error) {
	if log == nil {
		log = logging.NopLogger()
	}

	tw, err := watcher.NewTimeout(watcher.Config{
		Directory:    cfg.Directory,
		FilePattern:  cfg.FilePattern,
		PollInterval: cfg.PollInterval,
		StableRounds: cfg.StableRounds,
		RetryCeiling: cfg.RetryCeiling,
		Fs:           cfg.Fs,
	}, bus, log)
	if err != nil {
		return nil, err
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	return &Receiver{
		cfg:     cfg,
		bus:     bus,
		log:     log.WithComponent("receiver").WithDirectory(cfg.Directory),
		watcher: tw,
		scp:     NewStoreSCP(cfg.Directory, cfg.Port, cfg.AETitle, log),
	}, nil
}

// StoreSCP exposes the wrapped process, e.g. to override the binary.
func (r *Receiver) StoreSCP() *StoreSCP {
	return r.scp
}

// IsRunning reports whether the receiver is active.
func (r *Receiver) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Status returns the current status text.
func (r *Receiver) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Start begins watching the destination directory and, when runStoreSCP
// is true, launches the storescp process. It publishes a
// ReceiverStartedEvent followed by the initial status.
func (r *Receiver) Start(runStoreSCP bool) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.ErrReceiverRunning
	}
	r.running = true
	r.status = ""
	r.mu.Unlock()

	r.subscribe()

	if err := r.watcher.Start(); err != nil {
		r.teardown()
		return err
	}

	if runStoreSCP {
		if err := r.scp.Start(); err != nil {
			r.watcher.Stop()
			r.teardown()
			return err
		}
		go r.monitorStoreSCP(r.scp.Exited())
	}

	port := 0
	if runStoreSCP {
		port = r.scp.Port()
	}
	r.log.Info("receiver started", "storescp", runStoreSCP, "port", port)
	r.bus.Publish(event.NewReceiverStartedEvent(r.cfg.Directory, runStoreSCP, port))

	if runStoreSCP {
		r.updateStatus(statusWaiting)
	} else {
		r.updateStatus(statusWatchingOnly)
	}
	return nil
}

// Stop halts the watcher and the storescp process. It is idempotent.
func (r *Receiver) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.watcher.Stop()
	r.scp.Stop()
	r.unsubscribe()

	r.setStatus(statusStopped)
	r.log.Info("receiver stopped")
	r.bus.Publish(event.NewReceiverStatusEvent(statusStopped))
	r.bus.Publish(event.NewReceiverStoppedEvent(r.cfg.Directory))
}

// teardown reverts a partially completed Start.
func (r *Receiver) teardown() {
	r.unsubscribe()
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// subscribe wires the receiver to its watcher's events. Events from
// watchers on other directories are ignored.
func (r *Receiver) subscribe() {
	r.subs = append(r.subs,
		r.bus.Subscribe(event.TypeFileCountChanged, func(e event.Event) {
			changed := e.(event.FileCountChangedEvent)
			if changed.Directory != r.cfg.Directory {
				return
			}
			r.updateStatus(fmt.Sprintf("Received %d files", changed.Count))
		}),
		r.bus.Subscribe(event.TypeReceiveFinished, func(e event.Event) {
			finished := e.(event.ReceiveFinishedEvent)
			if finished.Directory != r.cfg.Directory {
				return
			}
			r.updateStatus(statusCompleted)
		}),
		r.bus.Subscribe(event.TypeWatchFailed, func(e event.Event) {
			failed := e.(event.WatchFailedEvent)
			if failed.Directory != r.cfg.Directory {
				return
			}
			// The watcher is already idle; shut the rest down too.
			r.log.Error("destination watch failed", "error", failed.Err.Error())
			r.Stop()
		}),
	)
}

// unsubscribe removes the receiver's bus subscriptions.
func (r *Receiver) unsubscribe() {
	for _, sub := range r.subs {
		r.bus.Unsubscribe(sub)
	}
	r.subs = nil
}

// monitorStoreSCP watches for the process dying underneath us.
func (r *Receiver) monitorStoreSCP(exited <-chan struct{}) {
	if exited == nil {
		return
	}
	<-exited

	if r.scp.WasStopped() || !r.IsRunning() {
		// Expected exit during Stop.
		return
	}

	err := errors.NewReceiverError("storescp exited unexpectedly",
		errors.Join(errors.ErrStoreSCPExited, r.scp.ExitError())).WithPort(r.scp.Port())
	r.log.Error("storescp exited", "error", err.Error())
	r.updateStatus(statusSCPExited)
}

// setStatus records the status text without publishing.
func (r *Receiver) setStatus(text string) {
	r.mu.Lock()
	r.status = text
	r.mu.Unlock()
}

// updateStatus publishes a status event when the text changed.
func (r *Receiver) updateStatus(text string) {
	r.mu.Lock()
	if text == r.status {
		r.mu.Unlock()
		return
	}
	r.status = text
	r.mu.Unlock()

	r.bus.Publish(event.NewReceiverStatusEvent(text))
}
