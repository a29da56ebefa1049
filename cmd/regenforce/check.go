package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/regenforce/pkg/drift"
)

// exitDrift is the exit status of check when any entry is out of policy.
const exitDrift = 2

var checkFormat string

func init() {
	cmd := newCheckCmd()
	cmd.Flags().StringVar(&checkFormat, "format", "text", "Output format (text, json, yaml)")
	rootCmd.AddCommand(cmd)
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [dir|file...]",
		Short: "Compare the registry with the policy once",
		Long: `The check command evaluates every policy entry against the registry (or a
snapshot) and reports drifted and missing values. It exits with status 2
when anything is out of policy, so it can gate scripts and scheduled tasks.

Example:
  regenforce check
  regenforce check --snapshot export.reg --format yaml
  regenforce check baseline.reg --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args)
		},
	}
	return cmd
}

func runCheck(args []string) error {
	format := checkFormat
	if jsonOut {
		format = "json"
	}
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format: %s (must be text, json, or yaml)", format)
	}

	set, err := loadPolicy(args)
	if err != nil {
		return err
	}
	acc, err := openStore()
	if err != nil {
		return err
	}

	start := time.Now()
	results := drift.NewDetector(acc).EvaluateAll(set)
	printVerbose("Evaluated %d entries in %s\n", len(results), time.Since(start).Round(time.Millisecond))

	switch format {
	case "json":
		err = printJSON(newCheckReport(results, set.Problems()))
	case "yaml":
		err = printYAML(newCheckReport(results, set.Problems()))
	default:
		printCheckText(results, set.Problems())
	}
	if err != nil {
		return err
	}

	if !results.Clean() {
		return &exitError{code: exitDrift}
	}
	return nil
}
