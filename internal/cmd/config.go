package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openics/inflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify inflow configuration",
	Long: `View or modify inflow configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  inflow config set watch.stable_rounds 3
  inflow config set receiver.port 10404
  inflow config set logging.level debug

Valid keys:
  watch.poll_interval_ms  - Poll interval in milliseconds
  watch.stable_rounds     - Unchanged polls before a transfer counts as finished
  watch.retry_ceiling     - Consecutive failed polls tolerated before giving up
  watch.file_pattern      - Regular expression for counted file names
  watch.notify_nudge      - Poll immediately on filesystem notifications (true/false)
  receiver.port           - Incoming DICOM port
  receiver.ae_title       - Application entity title
  receiver.storescp_binary - storescp executable name or path
  download.cache_dir      - Download cache directory
  download.timeout_minutes - Download timeout in minutes
  tui.enabled             - Render the status panel (true/false)
  logging.enabled         - Enable file logging (true/false)
  logging.level           - Log level (debug/info/warn/error)
  logging.dir             - Log directory`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/inflow/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	// Watch settings
	fmt.Println("watch:")
	fmt.Printf("  poll_interval_ms: %d\n", cfg.Watch.PollIntervalMs)
	fmt.Printf("  stable_rounds: %d\n", cfg.Watch.StableRounds)
	fmt.Printf("  retry_ceiling: %d\n", cfg.Watch.RetryCeiling)
	fmt.Printf("  file_pattern: %q\n", cfg.Watch.FilePattern)
	fmt.Printf("  notify_nudge: %v\n", cfg.Watch.NotifyNudge)

	// Receiver settings
	fmt.Println("receiver:")
	fmt.Printf("  port: %d\n", cfg.Receiver.Port)
	fmt.Printf("  ae_title: %s\n", cfg.Receiver.AETitle)
	fmt.Printf("  storescp_binary: %q\n", cfg.Receiver.StoreSCPBinary)

	// Download settings
	fmt.Println("download:")
	fmt.Printf("  cache_dir: %s\n", cfg.Download.ResolveCacheDir())
	fmt.Printf("  timeout_minutes: %d\n", cfg.Download.TimeoutMinutes)

	// TUI settings
	fmt.Println("tui:")
	fmt.Printf("  enabled: %v\n", cfg.TUI.Enabled)

	// Logging settings
	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  dir: %s\n", cfg.Logging.ResolveDir())

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"watch.poll_interval_ms":   "int",
		"watch.stable_rounds":      "int",
		"watch.retry_ceiling":      "int",
		"watch.file_pattern":       "string",
		"watch.notify_nudge":       "bool",
		"receiver.port":            "int",
		"receiver.ae_title":        "string",
		"receiver.storescp_binary": "string",
		"download.cache_dir":       "string",
		"download.timeout_minutes": "int",
		"tui.enabled":              "bool",
		"logging.enabled":          "bool",
		"logging.level":            "string",
		"logging.dir":              "string",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'inflow config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue interface{}
	switch keyType {
	case "string":
		if key == "logging.level" && !strings.EqualFold(value, "") {
			valid := false
			for _, level := range config.ValidLogLevels() {
				if strings.EqualFold(value, level) {
					valid = true
					break
				}
			}
			if !valid {
				return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
					key, value, strings.Join(config.ValidLogLevels(), ", "))
			}
		}
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'inflow config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Inflow Configuration

# Directory watching
watch:
  # How often the watched directory is listed, in milliseconds
  poll_interval_ms: 1000
  # Number of unchanged polls before a transfer counts as finished
  stable_rounds: 5
  # Consecutive failed polls tolerated before the watch gives up
  retry_ceiling: 3
  # Only count file names matching this regular expression (empty = all)
  file_pattern: ""
  # Poll immediately on filesystem notifications
  notify_nudge: false

# DICOM receiver
receiver:
  # Incoming DICOM port
  port: 11112
  # Application entity title announced to peers
  ae_title: INFLOW
  # storescp executable name or path (empty = "storescp" on PATH)
  storescp_binary: ""

# Sample data downloads
download:
  # Destination directory (empty = <config dir>/cache)
  cache_dir: ""
  # Per-download timeout in minutes
  timeout_minutes: 30

# Terminal status panel
tui:
  enabled: true

# Logging
logging:
  enabled: true
  # debug, info, warn or error
  level: info
  # Log directory (empty = <config dir>/logs)
  dir: ""
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	fmt.Println("Edit this file to customize inflow's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Printf("  2. $HOME/.config/inflow/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: INFLOW_* (e.g., INFLOW_WATCH_STABLE_ROUNDS)")

	return nil
}
