package types

import (
	"strings"
)

// Hive identifies a root namespace of the registry.
type Hive int

const (
	LocalMachine Hive = iota
	CurrentUser
	ClassesRoot
	Users
	CurrentConfig
)

var hiveNames = [...]string{
	LocalMachine:  "HKEY_LOCAL_MACHINE",
	CurrentUser:   "HKEY_CURRENT_USER",
	ClassesRoot:   "HKEY_CLASSES_ROOT",
	Users:         "HKEY_USERS",
	CurrentConfig: "HKEY_CURRENT_CONFIG",
}

// hiveTokens maps upper-cased root tokens (long and short forms) to hives.
var hiveTokens = map[string]Hive{
	"HKEY_LOCAL_MACHINE":  LocalMachine,
	"HKLM":                LocalMachine,
	"HKEY_CURRENT_USER":   CurrentUser,
	"HKCU":                CurrentUser,
	"HKEY_CLASSES_ROOT":   ClassesRoot,
	"HKCR":                ClassesRoot,
	"HKEY_USERS":          Users,
	"HKU":                 Users,
	"HKEY_CURRENT_CONFIG": CurrentConfig,
	"HKCC":                CurrentConfig,
}

func (h Hive) String() string {
	if h < 0 || int(h) >= len(hiveNames) {
		return "HKEY_UNKNOWN"
	}
	return hiveNames[h]
}

// RegistryPath is a resolved key location: a hive plus subkey segments.
// Build one with ResolvePath.
type RegistryPath struct {
	Hive   Hive
	Subkey []string
}

// ResolvePath parses "HIVE\sub\key". The string is split on its first
// backslash; the hive token is matched case-insensitively and the remainder
// must name at least one non-empty segment.
func ResolvePath(text string) (RegistryPath, error) {
	text = strings.TrimSpace(text)
	root, rest, ok := strings.Cut(text, `\`)
	if !ok {
		return RegistryPath{}, Errorf(ErrKindPath, ErrInvalidPath, "resolve %q: no subkey", text)
	}
	hive, known := hiveTokens[strings.ToUpper(root)]
	if !known {
		return RegistryPath{}, Errorf(ErrKindPath, ErrUnknownHive, "resolve %q: root %q", text, root)
	}
	rest = strings.TrimSuffix(rest, `\`)
	if rest == "" {
		return RegistryPath{}, Errorf(ErrKindPath, ErrInvalidPath, "resolve %q: empty subkey", text)
	}
	segments := strings.Split(rest, `\`)
	for _, s := range segments {
		if s == "" {
			return RegistryPath{}, Errorf(ErrKindPath, ErrInvalidPath, "resolve %q: empty segment", text)
		}
	}
	return RegistryPath{Hive: hive, Subkey: segments}, nil
}

// MustResolvePath is ResolvePath for literals known to be valid.
func MustResolvePath(text string) RegistryPath {
	p, err := ResolvePath(text)
	if err != nil {
		panic(err)
	}
	return p
}

// SubkeyPath joins the subkey segments with backslashes.
func (p RegistryPath) SubkeyPath() string {
	return strings.Join(p.Subkey, `\`)
}

// String returns the canonical "HKEY_...\sub\key" form.
func (p RegistryPath) String() string {
	return p.Hive.String() + `\` + p.SubkeyPath()
}

// Key returns a case-folded identity suitable for map keys; registry key
// names compare case-insensitively.
func (p RegistryPath) Key() string {
	return strings.ToLower(p.String())
}

// IsZero reports whether p was never resolved.
func (p RegistryPath) IsZero() bool {
	return len(p.Subkey) == 0
}

// Contains reports whether other is p itself or lies in p's subtree.
func (p RegistryPath) Contains(other RegistryPath) bool {
	if p.Hive != other.Hive || len(other.Subkey) < len(p.Subkey) {
		return false
	}
	for i, s := range p.Subkey {
		if !strings.EqualFold(s, other.Subkey[i]) {
			return false
		}
	}
	return true
}
