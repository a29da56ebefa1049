package regtext

import (
	"fmt"
	"strings"
)

// Record is one data line of a desired-state document, still in text form.
type Record struct {
	Line   int    // 1-based line number where the record starts
	Key    string // interior of the governing [section]
	Name   string // value name; "" is the default value
	Data   string // encoded expected value, one surrounding quote pair removed
	Quoted bool   // Data was written as a quoted string
}

// IsDelete reports whether the record declares the value absent ("Name"=-).
func (r Record) IsDelete() bool {
	return !r.Quoted && r.Data == DeleteValueToken
}

// LineError describes a data line the parser had to drop.
type LineError struct {
	Line int
	Text string
	Msg  string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// ParseLines turns document lines into records in file order. It depends on
// nothing but its input. Lines it cannot split are reported and skipped;
// they never stop the parse.
func ParseLines(lines []string) ([]Record, []*LineError) {
	var (
		records []Record
		errs    []*LineError
		current string
		haveKey bool
	)

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], CR)

		if i == 1 && strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, KeyOpenBracket) && strings.HasSuffix(line, KeyCloseBracket) {
			current = strings.TrimSpace(strings.Trim(line, KeyOpenBracket+KeyCloseBracket))
			haveKey = true
			continue
		}
		if strings.HasPrefix(line, RegFileHeader) || line == "" || !haveKey {
			continue
		}

		start := i + 1
		for strings.HasSuffix(line, Backslash) {
			line = strings.TrimSuffix(line, Backslash)
			if i+1 >= len(lines) {
				break
			}
			i++
			line += strings.TrimSpace(strings.TrimRight(lines[i], CR))
		}

		if strings.HasPrefix(line, CommentPrefix) {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		name, data, ok := strings.Cut(line, ValueAssignment)
		if !ok {
			errs = append(errs, &LineError{Line: start, Text: line, Msg: "no '=' in data line"})
			continue
		}

		// Only the bare @ is the default value; "@" names a value literally.
		name = strings.TrimSpace(name)
		if name == DefaultValueName {
			name = ""
		} else {
			name = unescapeRegString(unquote(name))
		}
		data = strings.TrimSpace(data)
		records = append(records, Record{
			Line:   start,
			Key:    current,
			Name:   name,
			Data:   unquote(data),
			Quoted: strings.HasPrefix(data, Quote),
		})
	}

	return records, errs
}

// Sections returns the interior of every [section] header in file order,
// including sections that carry no data lines.
func Sections(lines []string) []string {
	var out []string
	for _, raw := range lines {
		line := strings.TrimRight(raw, CR)
		if strings.HasPrefix(line, KeyOpenBracket) && strings.HasSuffix(line, KeyCloseBracket) {
			out = append(out, strings.TrimSpace(strings.Trim(line, KeyOpenBracket+KeyCloseBracket)))
		}
	}
	return out
}
