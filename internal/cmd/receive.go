package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/openics/inflow/internal/config"
	"github.com/openics/inflow/internal/event"
	"github.com/openics/inflow/internal/logging"
	"github.com/openics/inflow/internal/receiver"
	"github.com/openics/inflow/internal/tui"
)

var receiveCmd = &cobra.Command{
	Use:   "receive <directory>",
	Short: "Receive DICOM data into a directory",
	Long: `Receive DICOM data by running a DCMTK storescp process and watching
its output directory. storescp gives no end-of-transfer signal, so the
transfer counts as finished once the file count has stayed stable
across consecutive polls.

Requires the DCMTK storescp executable on PATH unless --no-storescp
is given, in which case only the directory is watched.

Examples:
  # Listen on the default DICOM port 11112
  inflow receive /data/incoming

  # Custom port and AE title
  inflow receive /data/incoming --port 10404 --ae-title WORKSTATION

  # Another process owns the listener; just watch the directory
  inflow receive /data/incoming --no-storescp`,
	Args: cobra.ExactArgs(1),
	RunE: runReceive,
}

var (
	receivePort       int
	receiveAETitle    string
	receiveNoStoreSCP bool
	receivePlain      bool
)

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().IntVar(&receivePort, "port", 0, "Incoming DICOM port (default from config)")
	receiveCmd.Flags().StringVar(&receiveAETitle, "ae-title", "", "Application entity title (default from config)")
	receiveCmd.Flags().BoolVar(&receiveNoStoreSCP, "no-storescp", false, "Watch the directory without running storescp")
	receiveCmd.Flags().BoolVar(&receivePlain, "plain", false, "Print status lines instead of the status panel")
}

func runReceive(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	cfg := config.Get()

	port := cfg.Receiver.Port
	if receivePort > 0 {
		port = receivePort
	}
	aeTitle := cfg.Receiver.AETitle
	if receiveAETitle != "" {
		aeTitle = receiveAETitle
	}

	log, err := logging.NewLogger(cfg.Logging.ResolveDir(), cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer log.Close()

	bus := event.NewBus()

	recv, err := receiver.New(receiver.Config{
		Directory:    dir,
		Port:         port,
		AETitle:      aeTitle,
		FilePattern:  cfg.Watch.FilePattern,
		PollInterval: cfg.Watch.PollInterval(),
		StableRounds: cfg.Watch.StableRounds,
		RetryCeiling: cfg.Watch.RetryCeiling,
	}, bus, log)
	if err != nil {
		return err
	}
	if cfg.Receiver.StoreSCPBinary != "" {
		recv.StoreSCP().SetBinary(cfg.Receiver.StoreSCPBinary)
	}

	if receivePlain || !cfg.TUI.Enabled {
		return runReceivePlain(recv, bus, !receiveNoStoreSCP)
	}
	return runReceivePanel(recv, bus, dir, cfg.Watch.StableRounds, !receiveNoStoreSCP)
}

// runReceivePanel drives the receiver under the interactive status panel.
func runReceivePanel(recv *receiver.Receiver, bus *event.Bus, dir string, stableRounds int, runStoreSCP bool) error {
	events := tui.Listen(bus)

	if err := recv.Start(runStoreSCP); err != nil {
		return err
	}
	defer recv.Stop()

	program := tea.NewProgram(tui.New(dir, stableRounds, events))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("status panel failed: %w", err)
	}
	return nil
}

// runReceivePlain prints deduplicated status lines until interrupted.
func runReceivePlain(recv *receiver.Receiver, bus *event.Bus, runStoreSCP bool) error {
	done := make(chan struct{})
	bus.Subscribe(event.TypeReceiverStatus, func(e event.Event) {
		fmt.Println(e.(event.ReceiverStatusEvent).Status)
	})
	bus.Subscribe(event.TypeReceiverStopped, func(e event.Event) {
		select {
		case <-done:
		default:
			close(done)
		}
	})

	if err := recv.Start(runStoreSCP); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		recv.Stop()
	case <-done:
		// The receiver shut itself down (watch failure).
	}
	return nil
}
