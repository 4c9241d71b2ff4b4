package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/openics/inflow/internal/errors"
	"github.com/openics/inflow/internal/event"
)

// recorder collects bus events for assertions.
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

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

func (r *recorder) countType(typ string) int {
	n := 0
	for _, e := range r.all() {
		if e.EventType() == typ {
			n++
		}
	}
	return n
}

func newTestDownloader(client *http.Client) (*Downloader, afero.Fs, *recorder) {
	fs := afero.NewMemMapFs()
	bus := event.NewBus()
	rec := newRecorder(bus)
	return New(client, fs, bus, nil), fs, rec
}

func TestDownloader_FetchSucceeds(t *testing.T) {
	body := strings.Repeat("dicom", 20_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	d, fs, rec := newTestDownloader(srv.Client())

	path, err := d.Fetch(context.Background(), srv.URL, "/cache", "sample.nrrd")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if path != "/cache/sample.nrrd" {
		t.Errorf("Expected destination /cache/sample.nrrd, got %s", path)
	}

	got, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != body {
		t.Errorf("Downloaded content differs: %d bytes vs %d expected", len(got), len(body))
	}

	if rec.countType(event.TypeDownloadFinished) != 1 {
		t.Error("Expected exactly one finished event")
	}
	if rec.countType(event.TypeDownloadStatus) == 0 {
		t.Error("Expected progress status events")
	}

	final := -1
	for _, e := range rec.all() {
		if status, ok := e.(event.DownloadStatusEvent); ok {
			final = status.Percent
		}
	}
	if final != 100 {
		t.Errorf("Expected the last status at 100%%, got %d", final)
	}
}

func TestDownloader_ExistingFileShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	d, fs, rec := newTestDownloader(srv.Client())
	if err := afero.WriteFile(fs, "/cache/sample.nrrd", []byte("cached"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	path, err := d.Fetch(context.Background(), srv.URL, "/cache", "sample.nrrd")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if path != "/cache/sample.nrrd" {
		t.Errorf("Expected the cached path back, got %s", path)
	}
	if calls.Load() != 0 {
		t.Error("A non-empty destination file must skip the HTTP request")
	}
	if rec.countType(event.TypeDownloadFinished) != 1 {
		t.Error("Short-circuit should still publish a finished event")
	}
}

func TestDownloader_BadStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d, fs, rec := newTestDownloader(srv.Client())

	_, err := d.Fetch(context.Background(), srv.URL, "/cache", "missing.nrrd")
	if err == nil {
		t.Fatal("Fetch should fail on a 404")
	}
	var dlErr *errors.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("Expected a *DownloadError, got %T", err)
	}
	if rec.countType(event.TypeDownloadFailed) != 1 {
		t.Error("Expected exactly one failed event")
	}
	if exists, _ := afero.Exists(fs, "/cache/missing.nrrd"); exists {
		t.Error("No destination file should be created on a failed request")
	}
}

func TestDownloader_TruncatedBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	d, fs, rec := newTestDownloader(srv.Client())

	_, err := d.Fetch(context.Background(), srv.URL, "/cache", "truncated.nrrd")
	if err == nil {
		t.Fatal("Fetch should fail on a truncated body")
	}
	if rec.countType(event.TypeDownloadFailed) != 1 {
		t.Error("Expected exactly one failed event")
	}
	if exists, _ := afero.Exists(fs, "/cache/truncated.nrrd"); exists {
		t.Error("The partial file must be removed after a truncated transfer")
	}
}

func TestDownloader_CancelRemovesPartialFile(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		_, _ = w.Write([]byte(strings.Repeat("x", 70_000)))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d, fs, rec := newTestDownloader(srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := d.Fetch(ctx, srv.URL, "/cache", "partial.nrrd")
		errCh <- err
	}()

	// Give the transfer a moment to write the first chunk, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	var err error
	select {
	case err = <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the canceled fetch to return")
	}

	if !errors.Is(err, errors.ErrDownloadCanceled) {
		t.Fatalf("Expected ErrDownloadCanceled, got %v", err)
	}
	if exists, _ := afero.Exists(fs, "/cache/partial.nrrd"); exists {
		t.Error("Cancellation must remove the partially written file")
	}
	if rec.countType(event.TypeDownloadCanceled) != 1 {
		t.Error("Expected exactly one canceled event")
	}
	if rec.countType(event.TypeDownloadFailed) != 0 {
		t.Error("A canceled download must not also publish a failed event")
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.n); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
