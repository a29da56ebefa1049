package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/regenforce/pkg/drift"
)

var fixDryRun bool

func init() {
	cmd := newFixCmd()
	cmd.Flags().BoolVar(&fixDryRun, "dry-run", false, "Show what would be written without writing")
	rootCmd.AddCommand(cmd)
}

func newFixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix [dir|file...]",
		Short: "Write every drifted value back to its policy value",
		Long: `The fix command evaluates the policy and writes each drifted or missing
value back, then reads it again to confirm the write held. Values that must
be absent are deleted. Keys are never created: an entry whose key does not
exist is reported and skipped.

Example:
  regenforce fix
  regenforce fix --dry-run
  regenforce fix baseline.reg --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(args)
		},
	}
	return cmd
}

type fixOutcome struct {
	Entry  entryReport `json:"entry"`
	Action string      `json:"action"`
	Error  string      `json:"error,omitempty"`
}

func runFix(args []string) error {
	set, err := loadPolicy(args)
	if err != nil {
		return err
	}
	acc, err := openStore()
	if err != nil {
		return err
	}

	results := drift.NewDetector(acc).EvaluateAll(set)
	pending := results.Drifted()
	if len(pending) == 0 {
		if jsonOut {
			return printJSON([]fixOutcome{})
		}
		printInfo("%s\n", matchedStyle.Render("Nothing to fix: all entries match"))
		return nil
	}

	if fixDryRun {
		planned := make([]fixOutcome, 0, len(pending))
		for _, r := range pending {
			planned = append(planned, fixOutcome{Entry: newEntryReport(r), Action: action(r)})
		}
		if jsonOut {
			return printJSON(planned)
		}
		printInfo("%s\n", headerStyle.Render("Dry run"))
		for _, r := range pending {
			printInfo("  would %s %s = %s\n", action(r), r.Entry, expectedText(r.Entry))
		}
		return nil
	}

	outcomes := drift.NewEnforcer(acc, nil).ApplyAll(set, pending)
	failed := 0
	report := make([]fixOutcome, 0, len(outcomes))
	for i, o := range outcomes {
		fo := fixOutcome{Entry: newEntryReport(pending[i]), Action: action(pending[i])}
		if o.Err != nil {
			failed++
			fo.Error = o.Err.Error()
		}
		report = append(report, fo)
	}

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		for i, o := range outcomes {
			if o.Err != nil {
				printInfo("  %s %s: %v\n", missingStyle.Render("failed  "), o.Entry, o.Err)
				continue
			}
			printInfo("  %s %s = %s\n", matchedStyle.Render(fmt.Sprintf("%-8s", pastTense(action(pending[i])))), o.Entry, expectedText(o.Entry))
		}
		printInfo("\n%d fixed, %d failed\n", len(outcomes)-failed, failed)
	}

	if failed > 0 {
		return &exitError{code: 1, err: fmt.Errorf("%d of %d value(s) could not be fixed", failed, len(outcomes))}
	}
	return nil
}

func action(r drift.Result) string {
	if r.Entry.Remove {
		return "delete"
	}
	return "set"
}

func pastTense(a string) string {
	if a == "delete" {
		return "deleted"
	}
	return "set"
}
