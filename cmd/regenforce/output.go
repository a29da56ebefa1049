package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/joshuapare/regenforce/internal/regtext"
	"github.com/joshuapare/regenforce/pkg/drift"
	"github.com/joshuapare/regenforce/pkg/policy"
	"github.com/joshuapare/regenforce/pkg/watch"
)

var (
	// Color palette
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#04B575")
	warningColor = lipgloss.Color("#FFA500")
	errorColor   = lipgloss.Color("#FF4B4B")
	mutedColor   = lipgloss.Color("#666666")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	matchedStyle = lipgloss.NewStyle().Foreground(successColor)
	driftedStyle = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	missingStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	alertStyle   = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(errorColor).
			Padding(0, 1)
)

// setColor switches styled output on or off for the whole process.
func setColor(enabled bool) {
	if !enabled {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

func statusStyle(s drift.Status) lipgloss.Style {
	switch s {
	case drift.Matched:
		return matchedStyle
	case drift.Drifted:
		return driftedStyle
	}
	return missingStyle
}

// entryReport is the serialized form of one evaluated entry.
type entryReport struct {
	Key      string       `json:"key" yaml:"key"`
	Name     string       `json:"name" yaml:"name"`
	Source   string       `json:"source" yaml:"source"`
	Line     int          `json:"line" yaml:"line"`
	Expected string       `json:"expected" yaml:"expected"`
	Observed string       `json:"observed,omitempty" yaml:"observed,omitempty"`
	Status   drift.Status `json:"status" yaml:"status"`
	Changed  bool         `json:"changed,omitempty" yaml:"changed,omitempty"`
	Error    string       `json:"error,omitempty" yaml:"error,omitempty"`
}

type problemReport struct {
	Source string `json:"source" yaml:"source"`
	Line   int    `json:"line" yaml:"line"`
	Text   string `json:"text" yaml:"text"`
	Error  string `json:"error" yaml:"error"`
}

type checkReport struct {
	Matched  int             `json:"matched" yaml:"matched"`
	Drifted  int             `json:"drifted" yaml:"drifted"`
	Missing  int             `json:"missing" yaml:"missing"`
	Entries  []entryReport   `json:"entries" yaml:"entries"`
	Problems []problemReport `json:"problems,omitempty" yaml:"problems,omitempty"`
}

func expectedText(e *policy.Entry) string {
	if e.Remove {
		return "(absent)"
	}
	return regtext.Encode(e.Expected)
}

func newEntryReport(r drift.Result) entryReport {
	rep := entryReport{
		Key:      r.Entry.Key.String(),
		Name:     r.Entry.DisplayName(),
		Source:   r.Entry.Source,
		Line:     r.Entry.Line,
		Expected: expectedText(r.Entry),
		Status:   r.Status,
		Changed:  r.Changed,
	}
	if r.Observed != nil {
		rep.Observed = regtext.Encode(*r.Observed)
	}
	if r.Err != nil {
		rep.Error = r.Err.Error()
	}
	return rep
}

func newProblemReports(problems []policy.Problem) []problemReport {
	out := make([]problemReport, 0, len(problems))
	for _, p := range problems {
		out = append(out, problemReport{Source: p.Source, Line: p.Line, Text: p.Text, Error: p.Err.Error()})
	}
	return out
}

func newCheckReport(results drift.Results, problems []policy.Problem) checkReport {
	rep := checkReport{Entries: make([]entryReport, 0, len(results))}
	rep.Matched, rep.Drifted, rep.Missing = results.Counts()
	for _, r := range results {
		rep.Entries = append(rep.Entries, newEntryReport(r))
	}
	if len(problems) > 0 {
		rep.Problems = newProblemReports(problems)
	}
	return rep
}

// formatResult renders one result as a single text line.
func formatResult(r drift.Result) string {
	var b strings.Builder
	status := statusStyle(r.Status).Render(fmt.Sprintf("%-8s", r.Status))
	fmt.Fprintf(&b, "%s %s", status, r.Entry)
	switch {
	case r.Err != nil:
		fmt.Fprintf(&b, "  %s", mutedStyle.Render(r.Err.Error()))
	case r.Status == drift.Drifted:
		observed := "(absent)"
		if r.Observed != nil {
			observed = regtext.Encode(*r.Observed)
		}
		fmt.Fprintf(&b, "  want %s, have %s", expectedText(r.Entry), observed)
	case r.Status == drift.Missing:
		fmt.Fprintf(&b, "  want %s", expectedText(r.Entry))
	}
	return b.String()
}

func formatProblem(p policy.Problem) string {
	return fmt.Sprintf("%s %s:%d: %v", missingStyle.Render("problem "), p.Source, p.Line, p.Err)
}

// printCheckText writes the text form of a check report.
func printCheckText(results drift.Results, problems []policy.Problem) {
	printInfo("%s\n\n", headerStyle.Render("Policy check"))
	for _, r := range results {
		if r.Status == drift.Matched && !verbose {
			continue
		}
		printInfo("  %s\n", formatResult(r))
	}
	for _, p := range problems {
		printInfo("  %s\n", formatProblem(p))
	}

	matched, drifted, missing := results.Counts()
	printInfo("\n%d entries: %s, %s, %s\n",
		len(results),
		matchedStyle.Render(fmt.Sprintf("%d matched", matched)),
		driftedStyle.Render(fmt.Sprintf("%d drifted", drifted)),
		missingStyle.Render(fmt.Sprintf("%d missing", missing)),
	)
}

// printBatch writes a watch batch. Changed values raise an alert line;
// persistent drift is listed underneath.
func printBatch(b watch.Batch) {
	at := b.At.Format("15:04:05")
	if b.Alert() {
		printInfo("%s %s %d value(s) changed (%s)\n", mutedStyle.Render(at), alertStyle.Render("ALERT"), len(b.Changed), b.Source)
		for _, r := range b.Changed {
			printInfo("  %s\n", formatResult(r))
		}
	}
	if b.Clean() {
		printInfo("%s %s\n", mutedStyle.Render(at), matchedStyle.Render("all entries match"))
		return
	}
	printInfo("%s %d entr(ies) out of policy (%s)\n", mutedStyle.Render(at), len(b.Drifted), b.Source)
	if !b.Alert() || verbose {
		for _, r := range b.Drifted {
			printInfo("  %s\n", formatResult(r))
		}
	}
}

type batchReport struct {
	ID      string        `json:"id" yaml:"id"`
	Source  watch.Source  `json:"source" yaml:"source"`
	Path    string        `json:"path,omitempty" yaml:"path,omitempty"`
	At      string        `json:"at" yaml:"at"`
	Drifted []entryReport `json:"drifted" yaml:"drifted"`
	Changed []entryReport `json:"changed" yaml:"changed"`
}

func newBatchReport(b watch.Batch) batchReport {
	rep := batchReport{
		ID:      b.ID.String(),
		Source:  b.Source,
		At:      b.At.Format("2006-01-02T15:04:05.000Z07:00"),
		Drifted: make([]entryReport, 0, len(b.Drifted)),
		Changed: make([]entryReport, 0, len(b.Changed)),
	}
	if !b.Path.IsZero() {
		rep.Path = b.Path.String()
	}
	for _, r := range b.Drifted {
		rep.Drifted = append(rep.Drifted, newEntryReport(r))
	}
	for _, r := range b.Changed {
		rep.Changed = append(rep.Changed, newEntryReport(r))
	}
	return rep
}
