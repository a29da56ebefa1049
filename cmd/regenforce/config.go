package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joshuapare/regenforce/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigPathCmd())
	rootCmd.AddCommand(cmd)
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `The config show command prints the configuration after defaults, the
config file, REGENFORCE_* environment variables and command-line flags have
been applied, as TOML (or JSON with --json).

Example:
  regenforce config show
  REGENFORCE_LOG_LEVEL=debug regenforce config show`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the config file is looked up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				fmt.Println(configPath)
				return nil
			}
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			fmt.Println(filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	}
}

func runConfigShow() error {
	if jsonOut {
		return printJSON(cfg)
	}
	out, err := config.Encode(cfg)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
