package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "watch.poll_interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// aeTitleRegex validates DICOM application entity titles: up to 16
// characters, no backslash, no control characters. We restrict further
// to the printable subset senders actually use.
var aeTitleRegex = regexp.MustCompile(`^[A-Za-z0-9 _.-]{1,16}$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Watch config
	errors = append(errors, c.validateWatch()...)

	// Validate Receiver config
	errors = append(errors, c.validateReceiver()...)

	// Validate Download config
	errors = append(errors, c.validateDownload()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateWatch validates the WatchConfig
func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	// Poll interval bounds
	const minPollIntervalMs = 10     // 10ms minimum
	const maxPollIntervalMs = 600000 // 10 minutes maximum

	if c.Watch.PollIntervalMs < minPollIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "watch.poll_interval_ms",
			Value:   c.Watch.PollIntervalMs,
			Message: fmt.Sprintf("must be at least %dms", minPollIntervalMs),
		})
	}
	if c.Watch.PollIntervalMs > maxPollIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "watch.poll_interval_ms",
			Value:   c.Watch.PollIntervalMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxPollIntervalMs),
		})
	}

	// Stability rounds bounds
	const maxStableRounds = 1000

	if c.Watch.StableRounds < 1 {
		errors = append(errors, ValidationError{
			Field:   "watch.stable_rounds",
			Value:   c.Watch.StableRounds,
			Message: "must be at least 1",
		})
	}
	if c.Watch.StableRounds > maxStableRounds {
		errors = append(errors, ValidationError{
			Field:   "watch.stable_rounds",
			Value:   c.Watch.StableRounds,
			Message: fmt.Sprintf("exceeds maximum of %d", maxStableRounds),
		})
	}

	// Retry ceiling must be non-negative (0 means a single failure stops the watch)
	if c.Watch.RetryCeiling < 0 {
		errors = append(errors, ValidationError{
			Field:   "watch.retry_ceiling",
			Value:   c.Watch.RetryCeiling,
			Message: "must be non-negative",
		})
	}

	// File pattern must compile as a regular expression
	if c.Watch.FilePattern != "" {
		if _, err := regexp.Compile(c.Watch.FilePattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   "watch.file_pattern",
				Value:   c.Watch.FilePattern,
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	return errors
}

// validateReceiver validates the ReceiverConfig
func (c *Config) validateReceiver() []ValidationError {
	var errors []ValidationError

	if c.Receiver.Port < 1 || c.Receiver.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "receiver.port",
			Value:   c.Receiver.Port,
			Message: "must be between 1 and 65535",
		})
	}

	if c.Receiver.AETitle != "" && !aeTitleRegex.MatchString(c.Receiver.AETitle) {
		errors = append(errors, ValidationError{
			Field:   "receiver.ae_title",
			Value:   c.Receiver.AETitle,
			Message: "must be 1-16 characters of letters, digits, space, underscore, dot or hyphen",
		})
	}

	return errors
}

// validateDownload validates the DownloadConfig
func (c *Config) validateDownload() []ValidationError {
	var errors []ValidationError

	if c.Download.TimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "download.timeout_minutes",
			Value:   c.Download.TimeoutMinutes,
			Message: "must be non-negative (0 uses the built-in default)",
		})
	}

	// Check for null bytes which are invalid in paths
	if strings.ContainsRune(c.Download.CacheDir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "download.cache_dir",
			Value:   c.Download.CacheDir,
			Message: "path contains invalid null character",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
