package storage

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// storedNameTimeLayout is the YYYYMMDDHHMMSS prefix of stored names
const storedNameTimeLayout = "20060102150405"

// fallbackName replaces names that sanitize to nothing
const fallbackName = "upload"

// MaxStoredNameLen is the common file name limit of filesystems and object keys we target
const MaxStoredNameLen = 255

// storedNamePrefixLen is the length of "YYYYMMDDHHMMSS_xxxxxxxx_"
const storedNamePrefixLen = len(storedNameTimeLayout) + 1 + 8 + 1

// maxKeptExtensionLen bounds the extension kept when a name has to be shortened
const maxKeptExtensionLen = 32

// GenerateStoredName builds a collision-resistant stored name for an already sanitized name.
// The timestamp keeps names sortable, the random part separates uploads of the same second.
// The result never exceeds MaxStoredNameLen bytes.
func GenerateStoredName(now time.Time, sanitized string) string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	name := truncateName(sanitized, MaxStoredNameLen-storedNamePrefixLen)
	return fmt.Sprintf("%s_%s_%s", now.Format(storedNameTimeLayout), random, name)
}

// truncateName shortens the stem of name so the whole name fits in limit bytes.
// The extension is kept when it is reasonably short. Sanitized names are ASCII,
// so cutting at a byte offset never splits a character.
func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}

	ext := ""
	if idx := strings.LastIndex(name, "."); idx > 0 && len(name)-idx <= maxKeptExtensionLen {
		ext = name[idx:]
	}
	stem := strings.TrimRight(name[:limit-len(ext)], "._")
	if stem == "" {
		stem = fallbackName
	}
	return stem + ext
}

// SanitizeFilename reduces a user supplied filename to a safe single path component.
//
// Accents are folded to ASCII, path separators and whitespace become underscores,
// every other character outside [A-Za-z0-9._-] is dropped and leading or trailing
// dots and underscores are trimmed. A name that sanitizes to nothing becomes "upload".
func SanitizeFilename(name string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	folded = strings.NewReplacer("/", " ", "\\", " ").Replace(folded)
	joined := strings.Join(strings.Fields(folded), "_")

	var b strings.Builder
	for _, r := range joined {
		if isSafeRune(r) {
			b.WriteRune(r)
		}
	}

	sanitized := strings.Trim(b.String(), "._")
	if sanitized == "" {
		return fallbackName
	}
	return sanitized
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '.', r == '-':
		return true
	default:
		return false
	}
}

// IsValidStoredName reports whether name is a single, non-special path component
func IsValidStoredName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// IsGeneratedName reports whether name has the shape produced by GenerateStoredName
func IsGeneratedName(name string) bool {
	if len(name) <= storedNamePrefixLen || !IsValidStoredName(name) {
		return false
	}
	if _, err := time.Parse(storedNameTimeLayout, name[:len(storedNameTimeLayout)]); err != nil {
		return false
	}
	if name[len(storedNameTimeLayout)] != '_' || name[storedNamePrefixLen-1] != '_' {
		return false
	}
	for _, c := range name[len(storedNameTimeLayout)+1 : storedNamePrefixLen-1] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
