package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/config"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
	"github.com/jamesainslie/crxsrc/pkg/crxsrc/metrics"
)

var (
	cfgFile string
	cfg     *config.Config
	cfgErr  error
	rec     *metrics.Recorder

	rootCmd = &cobra.Command{
		Use:   "crxsrc",
		Short: "Recover readable source from browser extension packages",
		Long: `crxsrc unpacks CRX and zip extension packages, reformats the scripts,
markup and JSON inside them, and rebuilds module files from bundled scripts.

Examples:
  crxsrc inspect ext.crx              # Print the package tree
  crxsrc inspect -i ext.crx           # Browse the tree interactively
  crxsrc unpack ext.crx               # Extract scripts, JSON and HTML into ./output
  crxsrc unpack ext.crx -e main.js    # Extract one entry
  crxsrc split -p bundle.js           # Rebuild modules from a bundle
  crxsrc fetch <store-url>            # Download a package from the web store
  crxsrc history                      # View past runs`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/crxsrc/config.yaml)")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "override worker count (0=auto)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the normalization cache")
	rootCmd.PersistentFlags().String("metrics-file", "", "write prometheus metrics to this file after the command")

	// Bind flags to viper
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
	_ = viper.BindPFlag("metrics.file", rootCmd.PersistentFlags().Lookup("metrics-file"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	cfg, cfgErr = config.Load(viper.GetViper(), cfgFile)
}

// setup validates the loaded config and starts logging and metrics.
func setup(cmd *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}

	logCfg, err := cfg.LoggingOptions()
	if err != nil {
		return err
	}
	if getVerbose() {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		// A broken log file should not stop recovery work.
		printVerbose("logging disabled: %v", err)
	}

	rec = metrics.New()
	printVerbose("config: %s", viper.ConfigFileUsed())
	logging.Get("cli").Debug("command started", "command", cmd.CommandPath())
	return nil
}

// teardown flushes metrics and closes the log file.
func teardown(_ *cobra.Command, _ []string) error {
	defer func() { _ = logging.Close() }()
	if cfg == nil {
		return nil
	}
	if err := rec.WriteFile(cfg.Metrics.File); err != nil {
		return err
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && cfg != nil {
		// PersistentPostRunE is skipped when RunE fails; failed runs still
		// count in the metrics file.
		_ = rec.WriteFile(cfg.Metrics.File)
		_ = logging.Close()
	}
	return err
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
