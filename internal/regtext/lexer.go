package regtext

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"

	"github.com/joshuapare/regenforce/pkg/types"
)

// decodeUTF16LE converts little-endian UTF-16 bytes to a Go string.
// An odd trailing byte cannot belong to any code unit and is rejected.
func decodeUTF16LE(data []byte) (string, error) {
	if len(data)%UTF16CodeUnitSize != 0 {
		return "", types.Errorf(types.ErrKindMalformed, types.ErrMalformedBinary,
			"utf-16 payload has odd length %d", len(data))
	}
	words := make([]uint16, len(data)/UTF16CodeUnitSize)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(data[i*UTF16CodeUnitSize:])
	}
	return string(utf16.Decode(words)), nil
}

// encodeUTF16LE encodes a string to UTF-16LE without a terminator.
func encodeUTF16LE(s string) []byte {
	words := utf16.Encode([]rune(s))
	buf := make([]byte, len(words)*UTF16CodeUnitSize)
	for i, w := range words {
		binary.LittleEndian.PutUint16(buf[i*UTF16CodeUnitSize:], w)
	}
	return buf
}

// encodeUTF16LEZeroTerminated encodes a string to UTF-16LE with null terminator.
func encodeUTF16LEZeroTerminated(s string) []byte {
	return append(encodeUTF16LE(s), 0, 0)
}

// encodeMultiString lays out REG_MULTI_SZ data: every member NUL terminated,
// then one more NUL closing the list.
func encodeMultiString(values []string) []byte {
	var buf []byte
	for _, v := range values {
		buf = append(buf, encodeUTF16LEZeroTerminated(v)...)
	}
	return append(buf, 0, 0)
}

// decodeMultiString splits REG_MULTI_SZ data on NUL and drops empty members.
func decodeMultiString(data []byte) ([]string, error) {
	s, err := decodeUTF16LE(data)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, part := range strings.Split(s, "\x00") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}
