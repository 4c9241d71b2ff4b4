package watcher

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/openics/inflow/internal/errors"
	"github.com/openics/inflow/internal/event"
)

// recorder collects every event published on a bus in order.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func newRecorder(bus *event.Bus) *recorder {
	r := &recorder{}
	bus.SubscribeAll(func(e event.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

// types returns the event type strings recorded so far.
func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// newTestWatcher builds a watcher over an in-memory filesystem with a poll
// interval long enough that ticks only happen when tests invoke poll
// directly.
func newTestWatcher(t *testing.T, cfg Config) (*Watcher, afero.Fs, *event.Bus, *recorder) {
	t.Helper()

	fs := afero.NewMemMapFs()
	if cfg.Directory == "" {
		cfg.Directory = "/incoming"
		if err := fs.MkdirAll("/incoming", 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
	}
	cfg.Fs = fs
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour
	}

	bus := event.NewBus()
	rec := newRecorder(bus)

	w, err := New(cfg, bus, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w, fs, bus, rec
}

func writeFiles(t *testing.T, fs afero.Fs, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := afero.WriteFile(fs, dir+"/"+name, []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile %s failed: %v", name, err)
		}
	}
}

func TestWatcher_ConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty directory", Config{}},
		{"negative interval", Config{Directory: "/d", PollInterval: -time.Second}},
		{"bad pattern", Config{Directory: "/d", FilePattern: "([unclosed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Fs = afero.NewMemMapFs()
			_, err := New(tt.cfg, event.NewBus(), nil)
			if err == nil {
				t.Fatal("New should reject the configuration")
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Expected a validation error, got %v", err)
			}
		})
	}
}

func TestWatcher_StartPublishesStartedBeforeFirstPoll(t *testing.T) {
	w, _, _, rec := newTestWatcher(t, Config{})
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	types := rec.types()
	if len(types) == 0 || types[0] != event.TypeWatchStarted {
		t.Fatalf("Expected %s as first event, got %v", event.TypeWatchStarted, types)
	}
	if !w.IsWatching() {
		t.Error("Watcher should report watching after Start")
	}
}

func TestWatcher_StartWhileWatchingFails(t *testing.T) {
	w, fs, _, _ := newTestWatcher(t, Config{})
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	writeFiles(t, fs, "/incoming", "a.dcm")
	w.poll()
	before := w.FileCount()

	err := w.Start()
	if !errors.Is(err, errors.ErrAlreadyWatching) {
		t.Fatalf("Expected ErrAlreadyWatching, got %v", err)
	}
	if w.FileCount() != before {
		t.Errorf("A failed Start must leave the file count unchanged: got %d, want %d",
			w.FileCount(), before)
	}
}

func TestWatcher_CountChangeFiresIffCountDiffers(t *testing.T) {
	w, fs, _, rec := newTestWatcher(t, Config{})
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	writeFiles(t, fs, "/incoming", "a.dcm")
	w.poll() // 1: changed
	w.poll() // 1: unchanged
	writeFiles(t, fs, "/incoming", "b.dcm", "c.dcm")
	w.poll() // 3: changed
	w.poll() // 3: unchanged

	var counts []int
	for _, e := range rec.all() {
		if changed, ok := e.(event.FileCountChangedEvent); ok {
			counts = append(counts, changed.Count)
		}
	}

	want := []int{1, 3}
	if len(counts) != len(want) {
		t.Fatalf("Expected %d count-changed events, got %d (%v)", len(want), len(counts), counts)
	}
	for i, c := range want {
		if counts[i] != c {
			t.Errorf("Event %d: expected count %d, got %d", i, c, counts[i])
		}
	}
}

func TestWatcher_FilePatternFiltersCount(t *testing.T) {
	w, fs, _, rec := newTestWatcher(t, Config{FilePattern: `\.dcm$`})
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	writeFiles(t, fs, "/incoming", "a.dcm", "b.dcm", "notes.txt")
	w.poll()

	if w.FileCount() != 2 {
		t.Errorf("Expected 2 matching files, got %d", w.FileCount())
	}

	for _, e := range rec.all() {
		if changed, ok := e.(event.FileCountChangedEvent); ok {
			if changed.Count != 2 {
				t.Errorf("Expected count 2 in event, got %d", changed.Count)
			}
		}
	}
}

func TestWatcher_SubdirectoriesAreNotCounted(t *testing.T) {
	w, fs, _, _ := newTestWatcher(t, Config{})
	defer w.Stop()

	if err := fs.MkdirAll("/incoming/nested", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	writeFiles(t, fs, "/incoming", "a.dcm")

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.poll()

	if w.FileCount() != 1 {
		t.Errorf("Expected 1 file (directories excluded), got %d", w.FileCount())
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, _, _, rec := newTestWatcher(t, Config{})

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.Stop()
	w.Stop()
	w.Stop()

	stopped := 0
	for _, typ := range rec.types() {
		if typ == event.TypeWatchStopped {
			stopped++
		}
	}
	if stopped != 1 {
		t.Errorf("Expected exactly one stopped event, got %d", stopped)
	}
}

func TestWatcher_NoEventsAfterStop(t *testing.T) {
	w, fs, _, rec := newTestWatcher(t, Config{})

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Stop()

	before := len(rec.types())

	writeFiles(t, fs, "/incoming", "late.dcm")
	w.poll()
	w.poll()

	if after := len(rec.types()); after != before {
		t.Errorf("Ticks after Stop must emit no events: had %d, now %d", before, after)
	}
}

func TestWatcher_RestartAfterStop(t *testing.T) {
	w, fs, _, _ := newTestWatcher(t, Config{})
	defer w.Stop()

	writeFiles(t, fs, "/incoming", "a.dcm")

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.poll()
	w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	defer w.Stop()

	if w.FileCount() != 0 {
		t.Errorf("Start must reset the file count, got %d", w.FileCount())
	}
}

func TestWatcher_TransientFailureRecovers(t *testing.T) {
	fs := afero.NewMemMapFs()
	bus := event.NewBus()
	rec := newRecorder(bus)

	// The directory does not exist yet; the first ticks fail.
	w, err := New(Config{
		Directory:    "/incoming",
		PollInterval: time.Hour,
		RetryCeiling: 3,
		Fs:           fs,
	}, bus, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.poll() // failure 1
	w.poll() // failure 2

	if err := fs.MkdirAll("/incoming", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	writeFiles(t, fs, "/incoming", "a.dcm")

	if !w.poll() {
		t.Fatal("Tick after recovery should keep the watcher running")
	}

	if !w.IsWatching() {
		t.Error("Watcher should survive failures within the retry ceiling")
	}
	if w.FileCount() != 1 {
		t.Errorf("Expected count 1 after recovery, got %d", w.FileCount())
	}
	for _, typ := range rec.types() {
		if typ == event.TypeWatchFailed {
			t.Error("No failure event expected within the retry ceiling")
		}
	}
}

func TestWatcher_FailureCeilingStopsWatcher(t *testing.T) {
	fs := afero.NewMemMapFs()
	bus := event.NewBus()
	rec := newRecorder(bus)

	w, err := New(Config{
		Directory:    "/missing",
		PollInterval: time.Hour,
		RetryCeiling: 2,
		Fs:           fs,
	}, bus, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// RetryCeiling+1 consecutive failing ticks exhaust the ceiling.
	w.poll()
	w.poll()
	if w.poll() {
		t.Fatal("The tick beyond the retry ceiling should stop the watcher")
	}

	if w.IsWatching() {
		t.Error("Watcher should be idle after exhausting the retry ceiling")
	}

	lastErr := w.LastError()
	if lastErr == nil {
		t.Fatal("LastError should report the failure")
	}
	if !errors.Is(lastErr, errors.ErrWatchFailed) {
		t.Errorf("Expected ErrWatchFailed, got %v", lastErr)
	}
	var watchErr *errors.WatchError
	if !errors.As(lastErr, &watchErr) {
		t.Fatal("LastError should be a *WatchError")
	}
	if watchErr.Failures != 3 {
		t.Errorf("Expected 3 recorded failures, got %d", watchErr.Failures)
	}

	types := rec.types()
	want := []string{event.TypeWatchStarted, event.TypeWatchFailed, event.TypeWatchStopped}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Errorf("Expected events %v, got %v", want, types)
	}

	// Stop after an internal failure is still a no-op.
	w.Stop()
	if got := rec.types(); len(got) != len(types) {
		t.Errorf("Stop on a failed watcher must not emit events: %v", got)
	}
}

func TestWatcher_PollingLoopRuns(t *testing.T) {
	// End-to-end through the timer loop rather than manual ticks.
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/incoming", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	bus := event.NewBus()

	countCh := make(chan int, 16)
	bus.Subscribe(event.TypeFileCountChanged, func(e event.Event) {
		countCh <- e.(event.FileCountChangedEvent).Count
	})

	w, err := New(Config{
		Directory:    "/incoming",
		PollInterval: 5 * time.Millisecond,
		Fs:           fs,
	}, bus, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	writeFiles(t, fs, "/incoming", "a.dcm", "b.dcm")

	select {
	case count := <-countCh:
		if count != 2 {
			t.Errorf("Expected count 2 from the poll loop, got %d", count)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the poll loop to observe the files")
	}
}
