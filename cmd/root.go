package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issuetracker/internal/client"
	"github.com/joescharf/issuetracker/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "issuetracker",
	Short: "Issue tracker - a small per-project issue API",
	Long: `issuetracker serves an in-memory issue tracking API over HTTP.
Issues are grouped by project and can be listed, filtered, created,
updated and deleted. The issue commands talk to a running server.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/issuetracker/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := defaultConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ISSUETRACKER")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default value.
func setDefaults() {
	stateDir, _ := defaultConfigDir()
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("server.cors_origin", "*")
	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// apiClient returns a client for the configured server.
func apiClient() *client.Client {
	return client.New(viper.GetString("server.url"))
}

// stateDir returns the directory for the pid and log files.
func stateDir() string {
	if dir := viper.GetString("state_dir"); dir != "" {
		return dir
	}
	dir, _ := defaultConfigDir()
	return filepath.Clean(dir)
}
