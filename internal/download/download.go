package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/openics/inflow/internal/errors"
	"github.com/openics/inflow/internal/event"
	"github.com/openics/inflow/internal/logging"
)

// copyBlockSize is the chunk size for streaming the response body.
const copyBlockSize = 64 * 1024

// defaultTimeout bounds the whole HTTP exchange when the caller's
// context carries no deadline of its own.
const defaultTimeout = 30 * time.Minute

// Downloader fetches files over HTTP and publishes progress events.
type Downloader struct {
	client *http.Client
	fs     afero.Fs
	bus    *event.Bus
	log    *logging.Logger
}

// New creates a Downloader. A nil client uses http.DefaultClient and a
// nil fs uses the OS filesystem.
func New(client *http.Client, fs afero.Fs, bus *event.Bus, log *logging.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Downloader{
		client: client,
		fs:     fs,
		bus:    bus,
		log:    log.WithComponent("download"),
	}
}

// Fetch downloads url into destDir under filename and returns the
// destination path. When the destination already holds a non-empty
// file the fetch is skipped. Canceling the context aborts the transfer
// and removes the partial file.
func (d *Downloader) Fetch(ctx context.Context, url, destDir, filename string) (string, error) {
	path := filepath.Join(destDir, filename)

	if info, err := d.fs.Stat(path); err == nil && info.Size() > 0 {
		d.log.Info("destination already exists, skipping download", "path", path)
		d.publishStatus(fmt.Sprintf("%s already exists (%s), skipping download",
			filename, humanSize(info.Size())), 100)
		d.bus.Publish(event.NewDownloadFinishedEvent(path))
		return path, nil
	}

	if err := d.fs.MkdirAll(destDir, 0755); err != nil {
		return "", d.fail(path, errors.NewDownloadError("failed to create destination directory", err).WithURL(url))
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", d.fail(path, errors.NewDownloadError("invalid download request", err).WithURL(url))
	}

	d.log.Info("download started", "url", url, "path", path)
	d.publishStatus(fmt.Sprintf("Requesting download of %s...", filename), 0)

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", d.canceled(path, url, ctx.Err())
		}
		return "", d.fail(path, errors.NewDownloadError("request failed", err).WithURL(url))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", d.fail(path, errors.NewDownloadError(
			fmt.Sprintf("unexpected status %s", resp.Status), nil).WithURL(url))
	}

	written, err := d.copyBody(ctx, path, filename, resp)
	if err != nil {
		_ = d.fs.Remove(path)
		if errors.Is(err, errors.ErrDownloadCanceled) {
			return "", d.canceled(path, url, err)
		}
		return "", d.fail(path, err)
	}

	d.log.Info("download finished", "path", path, "bytes", written)
	d.publishStatus(fmt.Sprintf("Downloaded %s (%s)", filename, humanSize(written)), 100)
	d.bus.Publish(event.NewDownloadFinishedEvent(path))
	return path, nil
}

// copyBody streams the response into the destination file, publishing
// progress along the way.
func (d *Downloader) copyBody(ctx context.Context, path, filename string, resp *http.Response) (int64, error) {
	out, err := d.fs.Create(path)
	if err != nil {
		return 0, errors.NewDownloadError("failed to create destination file", err)
	}
	defer out.Close()

	total := resp.ContentLength
	var written int64
	lastPercent := -1
	buf := make([]byte, copyBlockSize)

	for {
		if ctx.Err() != nil {
			return written, errors.NewDownloadError("download canceled",
				errors.Join(errors.ErrDownloadCanceled, ctx.Err()))
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return written, errors.NewDownloadError("failed to write destination file", writeErr)
			}
			written += int64(n)
			lastPercent = d.publishProgress(filename, written, total, lastPercent)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return written, errors.NewDownloadError("download canceled",
					errors.Join(errors.ErrDownloadCanceled, ctx.Err()))
			}
			return written, errors.NewDownloadError("failed to read response body", readErr)
		}
	}

	if total > 0 && written < total {
		return written, errors.NewDownloadError(
			fmt.Sprintf("got %d of %d bytes", written, total),
			errors.ErrContentTooShort)
	}
	return written, nil
}

// publishProgress emits a status event when the visible progress moved.
// Without a total, every block reports the byte count at percent -1.
func (d *Downloader) publishProgress(filename string, written, total int64, lastPercent int) int {
	if total <= 0 {
		d.publishStatus(fmt.Sprintf("Downloaded %s of %s...", humanSize(written), filename), -1)
		return -1
	}

	percent := int(written * 100 / total)
	if percent == lastPercent {
		return lastPercent
	}
	d.publishStatus(fmt.Sprintf("Downloaded %s (%d%% of %s) of %s...",
		humanSize(written), percent, humanSize(total), filename), percent)
	return percent
}

func (d *Downloader) publishStatus(message string, percent int) {
	d.bus.Publish(event.NewDownloadStatusEvent(message, percent))
}

// fail logs, publishes a failure event and returns the error.
func (d *Downloader) fail(path string, err error) error {
	d.log.Error("download failed", "path", path, "error", err.Error())
	d.bus.Publish(event.NewDownloadFailedEvent(path, err))
	return err
}

// canceled publishes a cancellation event. The partial file has already
// been removed by the caller.
func (d *Downloader) canceled(path, url string, cause error) error {
	d.log.Info("download canceled", "path", path)
	d.bus.Publish(event.NewDownloadCanceledEvent(path))
	if errors.Is(cause, errors.ErrDownloadCanceled) {
		return cause
	}
	return errors.NewDownloadError("download canceled",
		errors.Join(errors.ErrDownloadCanceled, cause)).WithURL(url)
}

// humanSize renders a byte count the way a status line wants to read it.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
