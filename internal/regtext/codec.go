package regtext

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuapare/regenforce/pkg/types"
)

// Decode converts the data side of a desired-state line into a typed value.
// Prefixes are tried in a fixed order and the first match wins; text with
// no recognized prefix is a REG_SZ string.
func Decode(text string) (types.Value, error) {
	switch {
	case strings.HasPrefix(text, HexPrefix):
		data, err := parseHexBytes(text[len(HexPrefix):])
		if err != nil {
			return types.Value{}, fmt.Errorf("regtext: binary: %w", err)
		}
		return types.Binary(data), nil

	case strings.HasPrefix(text, DWORDPrefix):
		hexPart := strings.TrimSpace(text[len(DWORDPrefix):])
		if len(hexPart) != DWORDHexLength {
			return types.Value{}, types.Errorf(types.ErrKindMalformed, types.ErrMalformedBinary,
				"regtext: dword %q needs %d hex digits", hexPart, DWORDHexLength)
		}
		n, err := strconv.ParseUint(hexPart, 16, 32)
		if err != nil {
			return types.Value{}, types.Errorf(types.ErrKindMalformed, types.ErrMalformedBinary,
				"regtext: dword %q", hexPart)
		}
		return types.DWord(uint32(n)), nil

	case strings.HasPrefix(text, HexQWORDPrefix):
		data, err := parseHexBytes(text[len(HexQWORDPrefix):])
		if err != nil {
			return types.Value{}, fmt.Errorf("regtext: qword: %w", err)
		}
		if len(data) != QWORDSize {
			return types.Value{}, types.Errorf(types.ErrKindMalformed, types.ErrMalformedBinary,
				"regtext: qword has %d bytes, want %d", len(data), QWORDSize)
		}
		return types.QWord(binary.LittleEndian.Uint64(data)), nil

	case strings.HasPrefix(text, HexMultiSZPrefix):
		data, err := parseHexBytes(text[len(HexMultiSZPrefix):])
		if err != nil {
			return types.Value{}, fmt.Errorf("regtext: multi string: %w", err)
		}
		strs, err := decodeMultiString(data)
		if err != nil {
			return types.Value{}, fmt.Errorf("regtext: multi string: %w", err)
		}
		return types.MultiString(strs), nil

	case strings.HasPrefix(text, HexExpandSZPrefix):
		data, err := parseHexBytes(text[len(HexExpandSZPrefix):])
		if err != nil {
			return types.Value{}, fmt.Errorf("regtext: expand string: %w", err)
		}
		s, err := decodeUTF16LE(data)
		if err != nil {
			return types.Value{}, fmt.Errorf("regtext: expand string: %w", err)
		}
		return types.ExpandString(strings.TrimRight(s, "\x00")), nil

	default:
		return types.String(unescapeRegString(unquote(text))), nil
	}
}

// Encode is the inverse of Decode. Strings come back escaped but unquoted,
// matching the data text a parsed entry carries.
func Encode(v types.Value) string {
	switch v.Type {
	case types.REG_BINARY:
		return HexPrefix + formatHex(v.Bytes())
	case types.REG_DWORD:
		return DWORDPrefix + fmt.Sprintf(DWORDHexFormat, v.DWord())
	case types.REG_QWORD:
		buf := make([]byte, QWORDSize)
		binary.LittleEndian.PutUint64(buf, v.QWord())
		return HexQWORDPrefix + formatHex(buf)
	case types.REG_MULTI_SZ:
		return HexMultiSZPrefix + formatHex(encodeMultiString(v.Strings()))
	case types.REG_EXPAND_SZ:
		return HexExpandSZPrefix + formatHex(encodeUTF16LEZeroTerminated(v.Str()))
	case types.REG_SZ:
		s := escapeRegString(v.Str())
		if hasTypePrefix(s) {
			// Quoted so the text does not read back as a typed payload.
			return Quote + s + Quote
		}
		return s
	default:
		// Raw values render the way regedit exports them. Decode has no
		// branch for these; they only appear in reports.
		return fmt.Sprintf("hex(%x):", uint32(v.Type)) + formatHex(v.Bytes())
	}
}

var typePrefixes = []string{HexPrefix, DWORDPrefix, HexQWORDPrefix, HexMultiSZPrefix, HexExpandSZPrefix}

func hasTypePrefix(text string) bool {
	for _, prefix := range typePrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// Canonical normalizes encoded text for comparison: lower-case hex, no
// whitespace or continuation markers. String data is returned unchanged.
func Canonical(text string) string {
	if !hasTypePrefix(text) {
		return text
	}
	return strings.ToLower(strings.Map(func(r rune) rune {
		if isHexSkipRune(r) {
			return -1
		}
		return r
	}, text))
}
