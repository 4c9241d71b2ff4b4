package receiver

import (
	"os/exec"
	"strconv"
	"sync"

	"github.com/openics/inflow/internal/errors"
	"github.com/openics/inflow/internal/logging"
)

// DefaultPort is the conventional port for incoming DICOM associations.
const DefaultPort = 11112

// DefaultAETitle identifies this node to DICOM peers.
const DefaultAETitle = "INFLOW"

// defaultBinary is the DCMTK store SCP executable expected on PATH.
const defaultBinary = "storescp"

// StoreSCP wraps a DCMTK storescp child process that listens for DICOM
// associations and writes received instances into an output directory.
type StoreSCP struct {
	binary    string
	port      int
	outputDir string
	aeTitle   string
	log       *logging.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	exited   chan struct{}
	waitErr  error
	running  bool
	stopping bool
}

// NewStoreSCP creates a storescp wrapper writing into outputDir and
// listening on port. Zero or empty values fall back to defaults.
func NewStoreSCP(outputDir string, port int, aeTitle string, log *logging.Logger) *StoreSCP {
	if port == 0 {
		port = DefaultPort
	}
	if aeTitle == "" {
		aeTitle = DefaultAETitle
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &StoreSCP{
		binary:    defaultBinary,
		port:      port,
		outputDir: outputDir,
		aeTitle:   aeTitle,
		log:       log.WithComponent("storescp"),
	}
}

// SetBinary overrides the executable name. Used by tests and by hosts
// that ship their own DCMTK build.
func (s *StoreSCP) SetBinary(binary string) {
	s.binary = binary
}

// Port returns the port the process listens on.
func (s *StoreSCP) Port() int {
	return s.port
}

// args builds the storescp command line.
func (s *StoreSCP) args() []string {
	return []string{
		"--output-directory", s.outputDir,
		"--aetitle", s.aeTitle,
		strconv.Itoa(s.port),
	}
}

// Start launches the storescp process. It fails with ErrStoreSCPNotFound
// when the executable is not on PATH.
func (s *StoreSCP) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.NewReceiverError("storescp already running", nil).WithPort(s.port)
	}

	path, err := exec.LookPath(s.binary)
	if err != nil {
		return errors.NewReceiverError("failed to locate "+s.binary,
			errors.Join(errors.ErrStoreSCPNotFound, err)).WithPort(s.port)
	}

	cmd := exec.Command(path, s.args()...)
	if err := cmd.Start(); err != nil {
		return errors.NewReceiverError("failed to start storescp", err).WithPort(s.port)
	}

	s.cmd = cmd
	s.running = true
	s.stopping = false
	s.waitErr = nil
	s.exited = make(chan struct{})
	exited := s.exited
	s.log.Info("storescp started", "port", s.port, "output_dir", s.outputDir)

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.waitErr = err
		s.running = false
		s.mu.Unlock()
		close(exited)
	}()

	return nil
}

// Exited returns a channel that is closed once the process terminates.
// Nil before Start.
func (s *StoreSCP) Exited() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// ExitError returns the error cmd.Wait reported, once Exited is closed.
func (s *StoreSCP) ExitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitErr
}

// Running reports whether the process is believed to be alive.
func (s *StoreSCP) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// WasStopped reports whether the last exit was requested via Stop.
func (s *StoreSCP) WasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// Stop terminates the storescp process and waits for it to exit.
// It is idempotent.
func (s *StoreSCP) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	cmd := s.cmd
	exited := s.exited
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	<-exited
	s.log.Info("storescp stopped", "port", s.port)
}
