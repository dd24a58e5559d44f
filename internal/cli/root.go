package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	Verbose bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "ghlsync",
	Short: "ghlsync - GoHighLevel token lifecycle and knowledge-base publisher",
	Long: `ghlsync keeps an agency's GoHighLevel OAuth credentials fresh and
publishes generated knowledge-base documents into a sub-account's
custom values.

It refreshes the agency token, enumerates installed locations,
provisions a location-scoped token per sub-account, and upserts each
configured document as a named custom value.

Usage:
  ghlsync [command] [flags]

Available Commands:
  run        Execute the full pipeline once
  refresh    Refresh the agency access token
  locations  Sync the installed-locations record
  tokens     Provision location-scoped tokens
  publish    Publish configured documents to the target location
  serve      Run as a daemon with HTTP status API

Use "ghlsync [command] --help" for more information about a command.`,
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("GHLSYNC_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ghlsync",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

func printVersion() {
	info := GetVersionInfo()
	println("ghlsync Version:", info.Version)
	println("Go Version:", info.GoVersion)
	println("OS/Arch:", info.OS+"/"+info.Arch)
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
