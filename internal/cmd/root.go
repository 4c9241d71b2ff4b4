package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openics/inflow/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "inflow",
	Short: "Incoming-data watcher for imaging workstations",
	Long: `Inflow watches destination directories for incoming data and reports
when a transfer has finished, based on the file count staying stable
across consecutive polls. It can pair the watch with a DCMTK storescp
process to receive DICOM data, and fetch sample data sets over HTTP.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/inflow/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/inflow")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("INFLOW")
	// Replace dots with underscores for nested keys in env vars
	// e.g., INFLOW_WATCH_STABLE_ROUNDS for watch.stable_rounds
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
