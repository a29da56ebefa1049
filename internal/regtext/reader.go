package regtext

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Input encodings accepted by ReadLines.
const (
	EncodingAuto        = ""
	EncodingUTF8        = "UTF-8"
	EncodingUTF16LE     = "UTF-16LE"
	EncodingWindows1252 = "WINDOWS-1252"
)

var errUnsupportedEncoding = errors.New("regtext: unsupported encoding")

// ReadLines reads a desired-state document and returns its lines as UTF-8.
//
// regedit writes version 5.00 exports as UTF-16LE with a byte order mark;
// hand-written documents are usually UTF-8. A BOM always wins over enc.
// EncodingAuto assumes UTF-8 when no BOM is present.
func ReadLines(r io.Reader, enc string) ([]string, error) {
	fallback, err := fallbackDecoder(enc)
	if err != nil {
		return nil, err
	}
	decoded := transform.NewReader(r, unicode.BOMOverride(fallback))

	scanner := bufio.NewScanner(decoded)
	buf := make([]byte, 0, ScannerInitialBufferSize)
	scanner.Buffer(buf, ScannerMaxLineSize)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), CR))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning .reg document: %w", err)
	}
	return lines, nil
}

func fallbackDecoder(enc string) (transform.Transformer, error) {
	var e encoding.Encoding
	switch strings.ToUpper(enc) {
	case EncodingAuto, EncodingUTF8:
		e = unicode.UTF8
	case EncodingUTF16LE:
		e = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case EncodingWindows1252:
		e = charmap.Windows1252
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedEncoding, enc)
	}
	return e.NewDecoder(), nil
}
