package config

import (
	"strings"
	"testing"
)

// validConfig returns a config that passes validation, for tests to break
// one field at a time.
func validConfig() *Config {
	return Default()
}

func TestValidate_Watch(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "poll interval too small",
			mutate:    func(c *Config) { c.Watch.PollIntervalMs = 5 },
			wantField: "watch.poll_interval_ms",
		},
		{
			name:      "poll interval too large",
			mutate:    func(c *Config) { c.Watch.PollIntervalMs = 700000 },
			wantField: "watch.poll_interval_ms",
		},
		{
			name:      "stable rounds zero",
			mutate:    func(c *Config) { c.Watch.StableRounds = 0 },
			wantField: "watch.stable_rounds",
		},
		{
			name:      "stable rounds excessive",
			mutate:    func(c *Config) { c.Watch.StableRounds = 5000 },
			wantField: "watch.stable_rounds",
		},
		{
			name:      "negative retry ceiling",
			mutate:    func(c *Config) { c.Watch.RetryCeiling = -1 },
			wantField: "watch.retry_ceiling",
		},
		{
			name:      "invalid file pattern",
			mutate:    func(c *Config) { c.Watch.FilePattern = "[unclosed" },
			wantField: "watch.file_pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assertSingleError(t, cfg.Validate(), tt.wantField)
		})
	}
}

func TestValidate_Receiver(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "port zero",
			mutate:    func(c *Config) { c.Receiver.Port = 0 },
			wantField: "receiver.port",
		},
		{
			name:      "port out of range",
			mutate:    func(c *Config) { c.Receiver.Port = 70000 },
			wantField: "receiver.port",
		},
		{
			name:      "ae title too long",
			mutate:    func(c *Config) { c.Receiver.AETitle = "THIS_TITLE_IS_FAR_TOO_LONG" },
			wantField: "receiver.ae_title",
		},
		{
			name:      "ae title with backslash",
			mutate:    func(c *Config) { c.Receiver.AETitle = `BAD\TITLE` },
			wantField: "receiver.ae_title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assertSingleError(t, cfg.Validate(), tt.wantField)
		})
	}
}

func TestValidate_Download(t *testing.T) {
	cfg := validConfig()
	cfg.Download.TimeoutMinutes = -1
	assertSingleError(t, cfg.Validate(), "download.timeout_minutes")

	cfg = validConfig()
	cfg.Download.CacheDir = "bad\x00path"
	assertSingleError(t, cfg.Validate(), "download.cache_dir")
}

func TestValidate_Logging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	assertSingleError(t, cfg.Validate(), "logging.level")

	// Empty level means "use the default", not an error
	cfg = validConfig()
	cfg.Logging.Level = ""
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("Empty log level should be valid, got: %v", ValidationErrors(errs))
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "watch.stable_rounds", Value: 0, Message: "must be at least 1"},
		{Field: "receiver.port", Value: 0, Message: "must be between 1 and 65535"},
	}

	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("Expected an error count header, got: %q", msg)
	}
	if !strings.Contains(msg, "watch.stable_rounds") || !strings.Contains(msg, "receiver.port") {
		t.Errorf("Expected both fields in the message, got: %q", msg)
	}

	single := ValidationErrors{errs[0]}
	if strings.Contains(single.Error(), "validation errors") {
		t.Errorf("A single error should not use the multi-error header, got: %q", single.Error())
	}

	if (ValidationErrors{}).Error() != "" {
		t.Error("Empty ValidationErrors should render as an empty string")
	}
}

func assertSingleError(t *testing.T, errs []ValidationError, wantField string) {
	t.Helper()
	if len(errs) != 1 {
		t.Fatalf("Expected exactly 1 validation error, got %d: %v", len(errs), ValidationErrors(errs))
	}
	if errs[0].Field != wantField {
		t.Errorf("Expected error on field %q, got %q", wantField, errs[0].Field)
	}
}
