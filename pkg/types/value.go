package types

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Value is the in-memory form of a registry value, shared by the live store
// and decoded desired-state text. Exactly one payload field is meaningful,
// selected by Type.
type Value struct {
	Type RegType
	str  string
	strs []string
	num  uint64
	data []byte
}

// String returns a REG_SZ value.
func String(s string) Value { return Value{Type: REG_SZ, str: s} }

// ExpandString returns a REG_EXPAND_SZ value. The string is kept unexpanded.
func ExpandString(s string) Value { return Value{Type: REG_EXPAND_SZ, str: s} }

// DWord returns a REG_DWORD value.
func DWord(n uint32) Value { return Value{Type: REG_DWORD, num: uint64(n)} }

// QWord returns a REG_QWORD value.
func QWord(n uint64) Value { return Value{Type: REG_QWORD, num: n} }

// Binary returns a REG_BINARY value holding a copy of b.
func Binary(b []byte) Value {
	return Value{Type: REG_BINARY, data: bytes.Clone(nonNil(b))}
}

// MultiString returns a REG_MULTI_SZ value holding a copy of ss.
func MultiString(ss []string) Value {
	if ss == nil {
		ss = []string{}
	}
	return Value{Type: REG_MULTI_SZ, strs: slices.Clone(ss)}
}

// Raw returns a value of a type the engine does not model, such as REG_NONE
// or REG_DWORD_BIG_ENDIAN, holding a copy of its bytes. It compares by type
// and bytes, so it never equals a decoded desired value.
func Raw(t RegType, b []byte) Value {
	return Value{Type: t, data: bytes.Clone(nonNil(b))}
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// Str returns the payload of a REG_SZ or REG_EXPAND_SZ value.
func (v Value) Str() string { return v.str }

// Strings returns the members of a REG_MULTI_SZ value.
func (v Value) Strings() []string { return slices.Clone(v.strs) }

// DWord returns the payload of a REG_DWORD value.
func (v Value) DWord() uint32 { return uint32(v.num) }

// QWord returns the payload of a REG_QWORD value.
func (v Value) QWord() uint64 { return v.num }

// Bytes returns the payload of a REG_BINARY or Raw value.
func (v Value) Bytes() []byte { return bytes.Clone(v.data) }

// Equal reports whether a and b hold the same type and payload. Values of
// different types are never equal, even when they render the same.
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case REG_SZ, REG_EXPAND_SZ:
		return a.str == b.str
	case REG_DWORD, REG_QWORD:
		return a.num == b.num
	case REG_BINARY:
		return bytes.Equal(a.data, b.data)
	case REG_MULTI_SZ:
		return slices.Equal(a.strs, b.strs)
	default:
		return bytes.Equal(a.data, b.data)
	}
}

// EqualPtr compares two optional values; nil means absent.
func EqualPtr(a, b *Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Equal(*a, *b)
}

// String renders the value for reports.
func (v Value) String() string {
	switch v.Type {
	case REG_SZ, REG_EXPAND_SZ:
		return strconv.Quote(v.str)
	case REG_DWORD:
		return fmt.Sprintf("0x%08x (%d)", uint32(v.num), uint32(v.num))
	case REG_QWORD:
		return fmt.Sprintf("0x%016x (%d)", v.num, v.num)
	case REG_BINARY:
		return fmt.Sprintf("% x", v.data)
	case REG_MULTI_SZ:
		quoted := make([]string, len(v.strs))
		for i, s := range v.strs {
			quoted[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return fmt.Sprintf("%s % x", v.Type, v.data)
	}
}
