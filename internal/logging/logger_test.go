package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger_CreatesLogFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "INFO")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Info("watch started", "directory", "/incoming")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "inflow.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Log file should not be empty")
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("Log entry should be valid JSON: %v", err)
	}
	if entry["msg"] != "watch started" {
		t.Errorf("Expected msg 'watch started', got %v", entry["msg"])
	}
	if entry["directory"] != "/incoming" {
		t.Errorf("Expected directory '/incoming', got %v", entry["directory"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "WARN")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.Close()

	f, err := os.Open(filepath.Join(dir, "inflow.log"))
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	defer f.Close()

	var levels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("Invalid JSON line: %v", err)
		}
		levels = append(levels, entry["level"].(string))
	}

	expected := []string{"WARN", "ERROR"}
	if len(levels) != len(expected) {
		t.Fatalf("Expected %d entries, got %d: %v", len(expected), len(levels), levels)
	}
	for i, want := range expected {
		if levels[i] != want {
			t.Errorf("Entry %d: expected level %s, got %s", i, want, levels[i])
		}
	}
}

func TestLogger_ContextPropagation(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "DEBUG")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithComponent("watcher").WithDirectory("/incoming").With("port", 11112)
	child.Info("tick", "count", 3)
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, "inflow.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("Log entry should be valid JSON: %v", err)
	}

	if entry["component"] != "watcher" {
		t.Errorf("Expected component 'watcher', got %v", entry["component"])
	}
	if entry["directory"] != "/incoming" {
		t.Errorf("Expected directory '/incoming', got %v", entry["directory"])
	}
	if entry["port"] != float64(11112) {
		t.Errorf("Expected port 11112, got %v", entry["port"])
	}
	if entry["count"] != float64(3) {
		t.Errorf("Expected count 3, got %v", entry["count"])
	}
}

func TestLogger_ChildDoesNotMutateParent(t *testing.T) {
	logger := NopLogger()

	child := logger.WithComponent("receiver")
	if len(logger.attrs) != 0 {
		t.Error("Creating a child logger should not mutate the parent's attributes")
	}
	if len(child.attrs) != 1 {
		t.Errorf("Child should carry 1 attribute, got %d", len(child.attrs))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNopLogger_DoesNotPanic(t *testing.T) {
	logger := NopLogger()
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger should not fail: %v", err)
	}
}
