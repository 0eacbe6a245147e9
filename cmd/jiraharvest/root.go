package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"jiraharvest/pkg/config"
	"jiraharvest/pkg/logger"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	outputDir  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jiraharvest",
	Short: "Resumable bulk harvester for Jira issue data",
	Long: `jiraharvest incrementally downloads issues from a Jira instance and
converts them into a flattened JSONL dataset.

Progress is checkpointed after every stored issue, so interrupted runs
resume exactly where they left off: no duplicate downloads, no lost
progress, and fetch obligations survive crashes.

Typical flow:

  jiraharvest fetch SPARK HADOOP --limit 100   # fetch 100 new issues each
  jiraharvest transform SPARK HADOOP           # flatten raw issues to JSONL
  jiraharvest status                           # inspect checkpoints
  jiraharvest reset SPARK                      # start a project over`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .jiraharvest.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory (default ./outputs)")

	rootCmd.SetVersionTemplate(`jiraharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig builds the effective configuration from file, environment, and
// global flags, and initializes the global logger from it.
func loadConfig(extraFlags map[string]interface{}) (*config.Config, error) {
	flags := make(map[string]interface{}, len(extraFlags)+2)
	for k, v := range extraFlags {
		flags[k] = v
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return cfg, nil
}
