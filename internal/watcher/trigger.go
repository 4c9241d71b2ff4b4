package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// nudgeTrigger forwards filesystem change notifications to a watcher's
// poll loop so arrivals surface without waiting out the poll interval.
// Notifications are debounced: a burst of writes (storescp flushing a
// series) collapses into a single nudge once the burst quiets down.
type nudgeTrigger struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	nudge    chan<- struct{}
	done     chan struct{}
}

// newNudgeTrigger starts watching dir and sends on nudge after changes.
func newNudgeTrigger(dir string, debounce time.Duration, nudge chan<- struct{}) (*nudgeTrigger, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	t := &nudgeTrigger{
		fsw:      fsw,
		debounce: debounce,
		nudge:    nudge,
		done:     make(chan struct{}),
	}
	go t.run()
	return t, nil
}

// run collapses bursts of filesystem events into single nudges.
func (t *nudgeTrigger) run() {
	defer close(t.done)

	timer := time.NewTimer(t.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case ev, ok := <-t.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if pending {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			timer.Reset(t.debounce)
			pending = true
		case <-timer.C:
			pending = false
			select {
			case t.nudge <- struct{}{}:
			default:
				// A nudge is already queued; one poll covers both.
			}
		case _, ok := <-t.fsw.Errors:
			if !ok {
				return
			}
			// Notification errors are non-fatal; polling still runs.
		}
	}
}

// Close stops the trigger and waits for its goroutine to exit.
func (t *nudgeTrigger) Close() error {
	err := t.fsw.Close()
	<-t.done
	return err
}
