package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openics/inflow/internal/config"
	"github.com/openics/inflow/internal/download"
	"github.com/openics/inflow/internal/event"
	"github.com/openics/inflow/internal/logging"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url> [filename]",
	Short: "Fetch sample data over HTTP",
	Long: `Fetch a file over HTTP into the download cache directory, with
progress reporting. When the destination file already exists and is
non-empty, the fetch is skipped.

The file name defaults to the last path segment of the URL.

Examples:
  # Fetch into the default cache directory
  inflow fetch https://example.org/samples/ct-chest.nrrd

  # Explicit file name and destination
  inflow fetch https://example.org/samples/data.bin scan.nrrd --dest /tmp/samples`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runFetch,
}

var fetchDest string

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchDest, "dest", "", "Destination directory (default: the download cache)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	rawURL := args[0]

	filename := ""
	if len(args) > 1 {
		filename = args[1]
	} else {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		filename = path.Base(parsed.Path)
		if filename == "" || filename == "." || filename == "/" {
			return fmt.Errorf("cannot derive a file name from %s, pass one explicitly", rawURL)
		}
	}

	cfg := config.Get()
	dest := cfg.Download.ResolveCacheDir()
	if fetchDest != "" {
		dest = fetchDest
	}

	log, err := logging.NewLogger(cfg.Logging.ResolveDir(), cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer log.Close()

	bus := event.NewBus()
	bus.Subscribe(event.TypeDownloadStatus, func(e event.Event) {
		status := e.(event.DownloadStatusEvent)
		// Progress updates rewrite the line; messages without a percent
		// get their own line.
		if status.Percent >= 0 {
			fmt.Printf("\r%-70s", status.Message)
		} else {
			fmt.Println(status.Message)
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if timeout := cfg.Download.Timeout(); timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dl := download.New(nil, nil, bus, log)
	dlPath, err := dl.Fetch(ctx, rawURL, dest, filename)
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("saved to %s\n", dlPath)
	return nil
}
