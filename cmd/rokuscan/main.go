// Rokuscan finds Roku developer devices on the local network.
//
// It runs SSDP (and optionally mDNS) discovery rounds on an exponential
// backoff, keeps the devices it finds in a TTL cache and offers them
// through a terminal picker, a plain listing and a small HTTP/WebSocket
// server for editor integrations.
//
// Usage:
//
//	rokuscan [command] [flags]
//
// Running without arguments launches the interactive picker.
// See 'rokuscan --help' for available commands.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rokutools/rokuscan/internal/config"
	"github.com/rokutools/rokuscan/internal/logging"
	"github.com/rokutools/rokuscan/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	logLevel     string
	settingsPath string
)

var rootCmd = &cobra.Command{
	Use:   "rokuscan",
	Short: "Roku developer device discovery",
	Long: `Discover Roku devices on the local network and pick one to work with.

Discovery uses SSDP (roku:ecp) and, when enabled in the settings file,
mDNS. Each device is queried over ECP (/query/device-info on port 8060);
devices without developer mode are hidden unless configured otherwise.

If no command is specified, the interactive picker launches automatically.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPick(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset, see "+logging.LogLevelEnvVar)
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "Settings file (default: <config dir>/rokuscan/settings.yaml)")

	rootCmd.AddCommand(versionCmd)
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(version.Get())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rokuscan %s\n", version.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
}

// resolveSettingsPath returns --config or the default settings location
func resolveSettingsPath() (string, error) {
	if settingsPath != "" {
		return settingsPath, nil
	}
	return config.GetConfigPath()
}

// loadSettings reads the settings file, falling back to defaults when it
// does not exist
func loadSettings() (*config.Settings, string, error) {
	path, err := resolveSettingsPath()
	if err != nil {
		return nil, "", err
	}
	s, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return s, path, nil
}
