package watcher

import (
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/openics/inflow/internal/errors"
	"github.com/openics/inflow/internal/event"
	"github.com/openics/inflow/internal/logging"
)

// Default configuration values applied by Config.applyDefaults.
const (
	DefaultPollInterval  = time.Second
	DefaultStableRounds  = 5
	DefaultRetryCeiling  = 3
	defaultNudgeDebounce = 100 * time.Millisecond
)

// Config holds the settings for a directory watcher.
type Config struct {
	// Directory is the directory whose file count is observed.
	Directory string

	// FilePattern is an optional regular expression matched against file
	// names (not full paths). Empty means every file counts.
	FilePattern string

	// PollInterval is the time between poll ticks. Must be positive;
	// defaults to DefaultPollInterval.
	PollInterval time.Duration

	// StableRounds is how many consecutive ticks must observe the same
	// file count before a TimeoutWatcher declares the transfer finished.
	// Must be at least one; defaults to DefaultStableRounds.
	StableRounds int

	// RetryCeiling is how many consecutive failed directory reads are
	// tolerated before the watcher gives up and goes idle.
	// Defaults to DefaultRetryCeiling.
	RetryCeiling int

	// NotifyNudge enables an fsnotify trigger that forces an immediate
	// poll when the directory changes. Only effective on the OS
	// filesystem.
	NotifyNudge bool

	// Fs is the filesystem to poll. Defaults to the OS filesystem.
	// Tests use afero's in-memory filesystem here.
	Fs afero.Fs
}

// applyDefaults fills zero values with defaults.
func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StableRounds == 0 {
		c.StableRounds = DefaultStableRounds
	}
	if c.RetryCeiling == 0 {
		c.RetryCeiling = DefaultRetryCeiling
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
}

// validate checks the configuration after defaults have been applied.
func (c *Config) validate() error {
	if c.Directory == "" {
		return errors.NewValidationError("directory", c.Directory, "must not be empty")
	}
	if c.PollInterval < 0 {
		return errors.NewValidationError("poll_interval", c.PollInterval, "must be greater than zero")
	}
	if c.StableRounds < 1 {
		return errors.NewValidationError("stable_rounds", c.StableRounds, "must be at least one")
	}
	if c.RetryCeiling < 0 {
		return errors.NewValidationError("retry_ceiling", c.RetryCeiling, "must not be negative")
	}
	return nil
}

// Watcher polls a directory and publishes events when the observed file
// count changes. It is safe for concurrent use; polling runs on a single
// goroutine owned by the watcher.
type Watcher struct {
	cfg     Config
	bus     *event.Bus
	log     *logging.Logger
	pattern *regexp.Regexp

	mu        sync.Mutex
	watching  bool
	lastCount int
	failures  int
	lastErr   error
	stopCh    chan struct{}
	doneCh    chan struct{}
	nudgeCh   chan struct{}
	trigger   *nudgeTrigger

	// afterTick is invoked on the poll goroutine after each successful
	// tick. TimeoutWatcher hooks its stability tracking in here.
	afterTick func(count int, files []string)
}

// New creates a Watcher for the given configuration. The bus receives all
// emitted events; a nil logger falls back to a no-op logger.
func New(cfg Config, bus *event.Bus, log *logging.Logger) (*Watcher, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var pattern *regexp.Regexp
	if cfg.FilePattern != "" {
		var err error
		pattern, err = regexp.Compile(cfg.FilePattern)
		if err != nil {
			return nil, errors.NewValidationError("file_pattern", cfg.FilePattern, err.Error())
		}
	}

	if log == nil {
		log = logging.NopLogger()
	}

	return &Watcher{
		cfg:     cfg,
		bus:     bus,
		log:     log.WithComponent("watcher").WithDirectory(cfg.Directory),
		pattern: pattern,
		nudgeCh: make(chan struct{}, 1),
	}, nil
}

// Directory returns the watched directory.
func (w *Watcher) Directory() string {
	return w.cfg.Directory
}

// IsWatching reports whether the watcher is currently polling.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// FileCount returns the file count observed on the most recent tick.
func (w *Watcher) FileCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastCount
}

// LastError returns the error that forced the watcher idle, if any.
// It is reset on Start.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Start begins periodic polling. It publishes a WatchStartedEvent
// synchronously before the first poll tick. Starting an active watcher
// fails with errors.ErrAlreadyWatching and leaves its state untouched.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return errors.ErrAlreadyWatching
	}
	w.watching = true
	w.lastCount = 0
	w.failures = 0
	w.lastErr = nil
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	if w.cfg.NotifyNudge {
		trigger, err := newNudgeTrigger(w.cfg.Directory, defaultNudgeDebounce, w.nudgeCh)
		if err != nil {
			// The trigger is an optimization; polling alone still
			// satisfies the watch contract.
			w.log.Warn("notify trigger unavailable, relying on polling", "error", err.Error())
		} else {
			w.trigger = trigger
		}
	}

	w.log.Info("watch started", "poll_interval", w.cfg.PollInterval.String())
	w.bus.Publish(event.NewWatchStartedEvent(w.cfg.Directory))

	go w.loop(stopCh, doneCh)
	return nil
}

// Stop halts polling and publishes a WatchStoppedEvent. It is idempotent:
// stopping an idle watcher is a no-op. When Stop returns, no further tick
// will run.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		return
	}
	w.watching = false
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
	w.closeTrigger()

	w.log.Info("watch stopped")
	w.bus.Publish(event.NewWatchStoppedEvent(w.cfg.Directory))
}

// closeTrigger shuts down the fsnotify trigger if one is running.
func (w *Watcher) closeTrigger() {
	if w.trigger != nil {
		w.trigger.Close()
		w.trigger = nil
	}
}

// loop drives poll ticks until the watcher is stopped or gives up.
func (w *Watcher) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !w.poll() {
				return
			}
		case <-w.nudgeCh:
			if !w.poll() {
				return
			}
		}
	}
}

// poll performs one tick: list the directory, compare the file count with
// the previous tick and publish a FileCountChangedEvent when it differs.
// Returns false when the watcher has transitioned to idle and the loop
// must exit.
func (w *Watcher) poll() bool {
	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		return false
	}
	w.mu.Unlock()

	files, err := w.listFiles()
	if err != nil {
		return w.handleReadFailure(err)
	}

	w.mu.Lock()
	w.failures = 0
	count := len(files)
	changed := count != w.lastCount
	if changed {
		w.lastCount = count
	}
	w.mu.Unlock()

	if changed {
		w.log.Debug("file count changed", "count", count)
		w.bus.Publish(event.NewFileCountChangedEvent(w.cfg.Directory, count))
	}

	if w.afterTick != nil {
		w.afterTick(count, files)
	}
	return true
}

// handleReadFailure tracks consecutive read failures. Within the retry
// ceiling the failure is logged and the next tick retries; beyond it the
// watcher publishes WatchFailedEvent, goes idle and stops its loop.
func (w *Watcher) handleReadFailure(err error) bool {
	w.mu.Lock()
	w.failures++
	failures := w.failures
	w.mu.Unlock()

	if failures <= w.cfg.RetryCeiling {
		w.log.Warn("directory read failed, retrying next tick",
			"error", err.Error(), "failures", failures)
		return true
	}

	watchErr := errors.NewWatchError("giving up after repeated read failures",
		errors.Join(errors.ErrWatchFailed, err)).
		WithDirectory(w.cfg.Directory).
		WithFailures(failures)

	w.mu.Lock()
	if !w.watching {
		// Lost the race against Stop; it owns the shutdown.
		w.mu.Unlock()
		return false
	}
	w.watching = false
	w.lastErr = watchErr
	close(w.stopCh)
	w.mu.Unlock()

	w.closeTrigger()
	w.log.Error("watch failed", "error", watchErr.Error())
	w.bus.Publish(event.NewWatchFailedEvent(w.cfg.Directory, watchErr, failures))
	w.bus.Publish(event.NewWatchStoppedEvent(w.cfg.Directory))
	return false
}

// listFiles returns the paths of the regular files in the watched
// directory that match the configured pattern.
func (w *Watcher) listFiles() ([]string, error) {
	entries, err := afero.ReadDir(w.cfg.Fs, w.cfg.Directory)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if w.pattern != nil && !w.pattern.MatchString(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(w.cfg.Directory, entry.Name()))
	}
	return files, nil
}
