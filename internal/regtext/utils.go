package regtext

import (
	"fmt"
	"strings"

	"github.com/joshuapare/regenforce/pkg/types"
)

// unescapeRegString unescapes a string from .reg format.
// .reg files escape backslashes as \\ and quotes as \"
func unescapeRegString(s string) string {
	if strings.IndexByte(s, '\\') == -1 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '\\' || s[i+1] == '"') {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// escapeRegString is the inverse of unescapeRegString.
func escapeRegString(s string) string {
	s = strings.ReplaceAll(s, Backslash, EscapedBackslash)
	s = strings.ReplaceAll(s, Quote, EscapedQuote)
	return s
}

// unquote removes one surrounding pair of double quotes. A closing quote
// preceded by an odd run of backslashes is escaped and s is returned as is.
func unquote(s string) string {
	if len(s) < 2 || !strings.HasPrefix(s, Quote) || !strings.HasSuffix(s, Quote) {
		return s
	}
	inner := s[1 : len(s)-1]
	run := len(inner) - len(strings.TrimRight(inner, Backslash))
	if run%2 == 1 {
		return s
	}
	return inner
}

// parseHexBytes parses the comma-separated payload that follows a hex
// prefix (the prefix must already be removed). It skips whitespace and
// continuation backslashes, pads single-digit bytes, and rejects anything
// else as malformed.
func parseHexBytes(payload string) ([]byte, error) {
	parts := strings.Split(payload, HexByteSeparator)
	buf := make([]byte, 0, len(parts))

	for i, p := range parts {
		p = strings.Map(func(r rune) rune {
			if isHexSkipRune(r) {
				return -1
			}
			return r
		}, p)
		if p == "" {
			continue
		}
		if len(p) > 2 {
			return nil, types.Errorf(types.ErrKindMalformed, types.ErrMalformedBinary,
				"byte %d: %q is wider than one byte", i, p)
		}
		hi, lo := byte(0), hexCharToNibble(p[len(p)-1])
		if len(p) == 2 {
			hi = hexCharToNibble(p[0])
		}
		if hi == 0xFF || lo == 0xFF {
			return nil, types.Errorf(types.ErrKindMalformed, types.ErrMalformedBinary,
				"byte %d: %q is not hex", i, p)
		}
		buf = append(buf, (hi<<4)|lo)
	}

	return buf, nil
}

// formatHex renders bytes as lower-case comma-separated pairs.
func formatHex(data []byte) string {
	var b strings.Builder
	b.Grow(len(data) * 3)
	for i, c := range data {
		if i > 0 {
			b.WriteString(HexByteSeparator)
		}
		fmt.Fprintf(&b, HexByteFormat, c)
	}
	return b.String()
}

// hexCharToNibble converts a hex character to its 4-bit value
// Returns 0xFF for invalid characters.
func hexCharToNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0xFF
	}
}

// isHexSkipRune returns true for characters to skip during hex parsing.
func isHexSkipRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\\'
}
