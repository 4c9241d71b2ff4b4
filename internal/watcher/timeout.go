package watcher

import (
	"sync"

	"github.com/openics/inflow/internal/event"
	"github.com/openics/inflow/internal/logging"
)

// TimeoutWatcher is a Watcher that additionally declares "receive
// finished" once the observed file count has been stable for
// Config.StableRounds consecutive polls.
//
// The finished event is a level, not a terminal state: the watcher keeps
// polling afterwards and fires again if the count changes and
// re-stabilizes. Each finished event carries the files that arrived since
// the previous plateau.
type TimeoutWatcher struct {
	*Watcher

	mu       sync.Mutex
	tracker  *stabilityTracker
	baseline map[string]struct{}
}

// NewTimeout creates a TimeoutWatcher for the given configuration.
func NewTimeout(cfg Config, bus *event.Bus, log *logging.Logger) (*TimeoutWatcher, error) {
	inner, err := New(cfg, bus, log)
	if err != nil {
		return nil, err
	}

	tw := &TimeoutWatcher{
		Watcher:  inner,
		tracker:  newStabilityTracker(inner.cfg.StableRounds),
		baseline: make(map[string]struct{}),
	}
	inner.afterTick = tw.observeTick
	return tw, nil
}

// Start resets the stability state and begins polling.
func (tw *TimeoutWatcher) Start() error {
	tw.mu.Lock()
	tw.tracker.Reset()
	tw.baseline = make(map[string]struct{})
	tw.mu.Unlock()

	return tw.Watcher.Start()
}

// StableRounds returns how many consecutive ticks have observed the
// current file count.
func (tw *TimeoutWatcher) StableRounds() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.tracker.Rounds()
}

// observeTick runs on the poll goroutine after each successful tick and
// publishes a ReceiveFinishedEvent when a stable plateau is reached.
func (tw *TimeoutWatcher) observeTick(count int, files []string) {
	tw.mu.Lock()
	finished := tw.tracker.Observe(count)
	var newFiles []string
	if finished {
		for _, f := range files {
			if _, known := tw.baseline[f]; !known {
				newFiles = append(newFiles, f)
			}
		}
		tw.baseline = make(map[string]struct{}, len(files))
		for _, f := range files {
			tw.baseline[f] = struct{}{}
		}
	}
	tw.mu.Unlock()

	if finished {
		tw.log.Info("incoming data receive finished", "count", count, "new_files", len(newFiles))
		tw.bus.Publish(event.NewReceiveFinishedEvent(tw.cfg.Directory, count, newFiles))
	}
}
