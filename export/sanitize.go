package export

import (
	"path/filepath"
	"strings"
)

// Sanitize reduces text to what the WinAnsi fonts can show: carriage
// returns are dropped, line feeds and tabs become spaces, and other control
// characters and anything outside printable ASCII are removed.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\r':
		case r == '\n' || r == '\t':
			b.WriteByte(' ')
		case r < 0x20 || r > 0x7e:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DefaultOutputPrefix is prepended to the original file name on save.
const DefaultOutputPrefix = "edited_"

// OutputName is the suggested file name for an exported document.
func OutputName(original string) string { return PrefixedName(DefaultOutputPrefix, original) }

// PrefixedName prefixes the base name of original, or of "document.pdf"
// when there is none.
func PrefixedName(prefix, original string) string {
	base := filepath.Base(original)
	if original == "" || base == "." || base == string(filepath.Separator) {
		base = "document.pdf"
	}
	return prefix + base
}
