// Package fonts classifies document fonts and supplies the metrics and
// font programs used when edits are measured, previewed and written back.
package fonts

import "strings"

// Family is the coarse typeface class an edit is rendered with.
type Family int

const (
	Sans Family = iota
	Serif
	Mono
)

func (f Family) String() string {
	switch f {
	case Serif:
		return "serif"
	case Mono:
		return "mono"
	default:
		return "sans"
	}
}

// Valid reports whether f is one of the declared families.
func (f Family) Valid() bool { return f >= Sans && f <= Mono }

// ParseFamily accepts the names produced by String. Unknown names map to Sans.
func ParseFamily(s string) Family {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "serif", "times":
		return Serif
	case "mono", "monospace", "courier":
		return Mono
	default:
		return Sans
	}
}

type Emphasis struct {
	Bold   bool
	Italic bool
}

func (e Emphasis) String() string {
	switch {
	case e.Bold && e.Italic:
		return "bold-italic"
	case e.Bold:
		return "bold"
	case e.Italic:
		return "italic"
	}
	return "regular"
}

// StripSubset removes a six letter subset tag such as "ABCDEF+".
func StripSubset(name string) string {
	if len(name) > 7 && name[6] == '+' {
		for i := 0; i < 6; i++ {
			if name[i] < 'A' || name[i] > 'Z' {
				return name
			}
		}
		return name[7:]
	}
	return name
}

var (
	monoHints  = []string{"courier", "mono", "consol", "menlo", "typewriter", "fixed"}
	serifHints = []string{"times", "serif", "roman", "georgia", "garamond", "book", "palatino", "cambria", "minion"}
	boldHints  = []string{"bold", "black", "heavy", "semibold", "demi"}
)

// Classify derives family and emphasis from a base font name. Names are
// matched by substring after removing the subset prefix, so "ABCDEF+Arial-BoldMT"
// is a bold sans face.
func Classify(baseFont string) (Family, Emphasis) {
	name := strings.ToLower(StripSubset(baseFont))
	fam := Sans
	switch {
	case containsAny(name, monoHints):
		fam = Mono
	case strings.Contains(name, "sans"):
		fam = Sans
	case containsAny(name, serifHints):
		fam = Serif
	}
	var emph Emphasis
	emph.Bold = containsAny(name, boldHints)
	var style string
	if i := strings.IndexAny(name, "-,"); i >= 0 {
		style = name[i+1:]
	}
	emph.Italic = strings.Contains(name, "italic") || strings.Contains(name, "oblique") ||
		strings.HasSuffix(style, "it") || strings.HasSuffix(style, "itmt")
	return fam, emph
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Align positions a line of text inside its box.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

func (a Align) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// ParseAlign accepts left, center/centre and right. Unknown names map to left.
func ParseAlign(s string) Align {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "center", "centre", "middle":
		return AlignCenter
	case "right", "end":
		return AlignRight
	default:
		return AlignLeft
	}
}

// Offset is how far a line of width w starts from the left edge of a box
// of width box.
func (a Align) Offset(w, box float64) float64 {
	switch a {
	case AlignCenter:
		return (box - w) / 2
	case AlignRight:
		return box - w
	}
	return 0
}
