package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/regenforce/pkg/policy"
)

func init() {
	rootCmd.AddCommand(newLintCmd())
}

func newLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint [dir|file...]",
		Short: "Parse policy documents and report problems",
		Long: `The lint command parses policy documents without touching the registry.
It lists every entry with its decoded type and reports lines that could not
be used (unknown hives, malformed hex payloads, lines without '=').

With no arguments the configured policy folder is linted.

Example:
  regenforce lint
  regenforce lint policies/
  regenforce lint baseline.reg extra.reg --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(args)
		},
	}
	return cmd
}

type lintEntry struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

func runLint(args []string) error {
	set, err := loadPolicy(args)
	if err != nil {
		return err
	}
	problems := set.Problems()

	if jsonOut {
		result := map[string]interface{}{
			"documents": len(set.Documents()),
			"entries":   lintEntries(set),
			"problems":  newProblemReports(problems),
		}
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		for _, doc := range set.Documents() {
			printInfo("%s\n", headerStyle.Render(doc.Name))
			for _, e := range doc.Entries {
				printInfo("  %s  %s = %s\n", mutedStyle.Render(fmt.Sprintf("%4d", e.Line)), e, describeEntry(e))
			}
			for _, p := range doc.Problems {
				printInfo("  %s\n", formatProblem(p))
			}
		}
		printInfo("\n%d document(s), %d entries, %d problem(s)\n", len(set.Documents()), set.Len(), len(problems))
	}

	if len(problems) > 0 {
		return &exitError{code: 1, err: fmt.Errorf("%d problem(s) found", len(problems))}
	}
	return nil
}

func describeEntry(e *policy.Entry) string {
	if e.Remove {
		return "(must be absent)"
	}
	return fmt.Sprintf("%s %s", e.Expected.Type, e.Expected)
}

func lintEntries(set *policy.Set) []lintEntry {
	entries := set.Entries()
	out := make([]lintEntry, 0, len(entries))
	for _, e := range entries {
		le := lintEntry{
			Key:    e.Key.String(),
			Name:   e.DisplayName(),
			Type:   "REMOVE",
			Value:  e.Raw,
			Source: e.Source,
			Line:   e.Line,
		}
		if !e.Remove {
			le.Type = e.Expected.Type.String()
		}
		out = append(out, le)
	}
	return out
}
