package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/regenforce/internal/config"
	"github.com/joshuapare/regenforce/internal/logger"
	"github.com/joshuapare/regenforce/pkg/policy"
	"github.com/joshuapare/regenforce/pkg/store"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	noColor    bool
	configPath string
	policyDir  string
	snapshot   string

	// cfg is the effective configuration, loaded before every command.
	cfg = config.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "regenforce",
	Short: "Enforce registry policy documents",
	Long: `regenforce compares the registry with a folder of .reg policy documents,
reports values that drifted from what the documents require, and writes them
back on request. It can also keep watching the registry and correct drift as
it happens.`,
	Version:           "0.1.0",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <config dir>/regenforce/config.toml)")
	rootCmd.PersistentFlags().StringVar(&policyDir, "policy-dir", "", "Folder of .reg policy documents")
	rootCmd.PersistentFlags().
		StringVar(&snapshot, "snapshot", "", "Check against a .reg export instead of the live registry")
}

// exitError carries a process exit code. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				printError("%v\n", ee.err)
			}
			os.Exit(ee.code)
		}
		printError("%v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration, applies flag overrides and starts logging.
func setup(cmd *cobra.Command, args []string) error {
	loaded, _, err := config.Load(config.LoadOptions{ConfigFilePath: configPath})
	if err != nil {
		return err
	}
	if policyDir != "" {
		loaded.PolicyDir = policyDir
	}
	if snapshot != "" {
		loaded.Snapshot = snapshot
	}
	if verbose {
		loaded.Log.Level = "debug"
	}
	cfg = loaded

	setColor(!noColor && !jsonOut)
	return logger.Init(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		LogDir: cfg.Log.Dir,
	})
}

// openStore returns the snapshot store when one is configured, otherwise
// the live registry.
func openStore() (store.Accessor, error) {
	if cfg.Snapshot != "" {
		printVerbose("Using snapshot %s\n", cfg.Snapshot)
		return store.LoadSnapshotFile(cfg.Snapshot, cfg.Encoding)
	}
	return store.OpenRegistry()
}

// loadPolicy loads the documents named by args (files or folders), or the
// configured policy folder when args is empty.
func loadPolicy(args []string) (*policy.Set, error) {
	opts := policy.LoadOptions{Encoding: cfg.Encoding}
	if len(args) == 0 {
		printVerbose("Loading policy from %s\n", cfg.PolicyDir)
		return policy.LoadDir(cfg.PolicyDir, opts)
	}

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("policy source %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		docs, err := policy.DocumentPaths(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, docs...)
	}
	printVerbose("Loading %d policy document(s)\n", len(paths))
	return policy.LoadFiles(paths, opts)
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet && !jsonOut {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// printYAML outputs data as YAML
func printYAML(v interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

func displayPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
