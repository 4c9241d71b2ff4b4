package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/openics/inflow/internal/config"
	"github.com/openics/inflow/internal/event"
	"github.com/openics/inflow/internal/logging"
	"github.com/openics/inflow/internal/tui"
	"github.com/openics/inflow/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory for incoming data",
	Long: `Watch a directory and report when a transfer has finished.

The directory is polled on an interval and the file count compared
between polls. Once the count has stayed the same for the configured
number of polls, the transfer is considered finished.

Examples:
  # Watch with defaults (1s polls, 5 stable rounds)
  inflow watch /data/incoming

  # Faster polls, only count DICOM files
  inflow watch /data/incoming --interval 250 --pattern '\.dcm$'

  # React to filesystem notifications between polls
  inflow watch /data/incoming --nudge`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchIntervalMs   int
	watchStableRounds int
	watchPattern      string
	watchNudge        bool
	watchPlain        bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().IntVar(&watchIntervalMs, "interval", 0, "Poll interval in milliseconds (default from config)")
	watchCmd.Flags().IntVar(&watchStableRounds, "stable-rounds", 0, "Unchanged polls before a transfer counts as finished")
	watchCmd.Flags().StringVar(&watchPattern, "pattern", "", "Only count file names matching this regular expression")
	watchCmd.Flags().BoolVar(&watchNudge, "nudge", false, "Poll immediately on filesystem notifications")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Print events as plain lines instead of the status panel")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}

	cfg := config.Get()
	watchCfg := buildWatchConfig(cfg, dir)

	log, err := logging.NewLogger(cfg.Logging.ResolveDir(), cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer log.Close()

	bus := event.NewBus()

	tw, err := watcher.NewTimeout(watchCfg, bus, log)
	if err != nil {
		return err
	}

	if watchPlain || !cfg.TUI.Enabled {
		return runWatchPlain(tw, bus, dir)
	}
	return runWatchPanel(tw, bus, dir, watchCfg.StableRounds)
}

// buildWatchConfig merges config file values with command line flags.
// Flags win when set.
func buildWatchConfig(cfg *config.Config, dir string) watcher.Config {
	watchCfg := watcher.Config{
		Directory:    dir,
		FilePattern:  cfg.Watch.FilePattern,
		PollInterval: cfg.Watch.PollInterval(),
		StableRounds: cfg.Watch.StableRounds,
		RetryCeiling: cfg.Watch.RetryCeiling,
		NotifyNudge:  cfg.Watch.NotifyNudge,
	}
	if watchIntervalMs > 0 {
		watchCfg.PollInterval = time.Duration(watchIntervalMs) * time.Millisecond
	}
	if watchStableRounds > 0 {
		watchCfg.StableRounds = watchStableRounds
	}
	if watchPattern != "" {
		watchCfg.FilePattern = watchPattern
	}
	if watchNudge {
		watchCfg.NotifyNudge = true
	}
	return watchCfg
}

// runWatchPanel drives the watcher under the interactive status panel.
func runWatchPanel(tw *watcher.TimeoutWatcher, bus *event.Bus, dir string, stableRounds int) error {
	events := tui.Listen(bus)

	if err := tw.Start(); err != nil {
		return err
	}
	defer tw.Stop()

	program := tea.NewProgram(tui.New(dir, stableRounds, events))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("status panel failed: %w", err)
	}
	return tw.LastError()
}

// runWatchPlain prints events as lines until interrupted.
func runWatchPlain(tw *watcher.TimeoutWatcher, bus *event.Bus, dir string) error {
	done := make(chan struct{})
	bus.SubscribeAll(func(e event.Event) {
		switch ev := e.(type) {
		case event.WatchStartedEvent:
			fmt.Printf("watching %s\n", ev.Directory)
		case event.FileCountChangedEvent:
			fmt.Printf("file count: %d\n", ev.Count)
		case event.ReceiveFinishedEvent:
			fmt.Printf("receive finished: %d files (%d new)\n", ev.FinalCount, len(ev.NewFiles))
		case event.WatchFailedEvent:
			fmt.Fprintf(os.Stderr, "watch failed: %v\n", ev.Err)
		case event.WatchStoppedEvent:
			fmt.Printf("stopped watching %s\n", ev.Directory)
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})

	if err := tw.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		tw.Stop()
	case <-done:
		// The watcher shut itself down (read failures past the ceiling).
	}
	return tw.LastError()
}
