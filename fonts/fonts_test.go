package fonts

import (
	"math"
	"testing"

	"github.com/go-text/typesetting/language"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		fam  Family
		emph Emphasis
	}{
		{"Helvetica", Sans, Emphasis{}},
		{"ABCDEF+Arial-BoldMT", Sans, Emphasis{Bold: true}},
		{"Times-Italic", Serif, Emphasis{Italic: true}},
		{"TimesNewRomanPS-BoldItMT", Serif, Emphasis{Bold: true, Italic: true}},
		{"Courier-Oblique", Mono, Emphasis{Italic: true}},
		{"DejaVuSans", Sans, Emphasis{}},
		{"DejaVuSerif-Bold", Serif, Emphasis{Bold: true}},
		{"Consolas", Mono, Emphasis{}},
	}
	for _, tc := range cases {
		fam, emph := Classify(tc.name)
		if fam != tc.fam || emph != tc.emph {
			t.Fatalf("%s: got %s/%s, want %s/%s", tc.name, fam, emph, tc.fam, tc.emph)
		}
	}
}

func TestStripSubset(t *testing.T) {
	if got := StripSubset("QWERTY+Calibri"); got != "Calibri" {
		t.Fatalf("unexpected %q", got)
	}
	if got := StripSubset("abcdef+Calibri"); got != "abcdef+Calibri" {
		t.Fatalf("lowercase tag should be kept, got %q", got)
	}
}

func TestResolveCoversAllStyles(t *testing.T) {
	seen := map[string]bool{}
	for _, f := range []Family{Sans, Serif, Mono} {
		for _, e := range []Emphasis{{}, {Bold: true}, {Italic: true}, {Bold: true, Italic: true}} {
			name := Resolve(f, e)
			if !IsStandard(name) {
				t.Fatalf("%s is not a standard font", name)
			}
			if FamilyOf(name) != f {
				t.Fatalf("%s resolved outside family %s", name, f)
			}
			seen[name] = true
		}
	}
	if len(seen) != 12 {
		t.Fatalf("expected 12 distinct faces, got %d", len(seen))
	}
	if Resolve(Serif, Emphasis{Bold: true}) != TimesBold {
		t.Fatalf("unexpected serif bold face")
	}
}

func TestStandardWidths(t *testing.T) {
	if w := MeasureString(Helvetica, "Hello", 12); math.Abs(w-27.336) > 1e-9 {
		t.Fatalf("unexpected Helvetica width %v", w)
	}
	if w := MeasureString(Courier, "abc", 10); w != 18 {
		t.Fatalf("courier should be 600 per glyph, got %v", w)
	}
	if GlyphWidth(TimesRoman, ' ') != 250 || GlyphWidth(HelveticaBold, 'W') != 944 {
		t.Fatalf("unexpected standard glyph widths")
	}
	if GlyphWidth("UnknownFace", 'a') != GlyphWidth(Helvetica, 'a') {
		t.Fatalf("unknown fonts should measure as Helvetica")
	}
}

func TestLoadTrueTypeGoFont(t *testing.T) {
	tt, err := LoadTrueType("", GoFont(Sans, Emphasis{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tt.Name == "" || tt.Ascent <= 0 || tt.Descent >= 0 {
		t.Fatalf("unexpected metrics %+v", tt)
	}
	gid := tt.GlyphID('A')
	if gid == 0 || tt.Width(gid) <= 0 {
		t.Fatalf("glyph for A missing (gid %d)", gid)
	}
	if tt.Measure("AA", 10) <= tt.Measure("A", 10) {
		t.Fatalf("measure should grow with text")
	}
	if _, err := LoadTrueType("x", nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
}

func TestShaperAdvancesMatchMetrics(t *testing.T) {
	data := GoFont(Mono, Emphasis{})
	s, err := NewShaper(data)
	if err != nil {
		t.Fatalf("shaper: %v", err)
	}
	glyphs := s.Shape("abc")
	if len(glyphs) != 3 {
		t.Fatalf("expected 3 glyphs, got %d", len(glyphs))
	}
	tt, err := LoadTrueType("", data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := tt.Measure("abc", 12)
	if got := s.Advance("abc", 12); math.Abs(got-want) > 0.5 {
		t.Fatalf("shaped advance %v differs from hmtx %v", got, want)
	}
	if s.Shape("") != nil {
		t.Fatalf("empty text should shape to nothing")
	}
}

func TestDetectScript(t *testing.T) {
	cases := []struct {
		in   string
		want language.Script
	}{
		{"Hello, 2024!", language.Latin},
		{"\u05e9\u05dc\u05d5\u05dd 42", language.Hebrew},
		{"\u041f\u0440\u0438\u0432\u0435\u0442 ok", language.Cyrillic},
		{"123 ...", language.Latin},
	}
	for _, c := range cases {
		if got := detectScript([]rune(c.in)); got != c.want {
			t.Fatalf("%q: got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestAlignOffset(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"left", 0},
		{"center", 30},
		{"right", 60},
		{"bogus", 0},
	}
	for _, tc := range cases {
		a := ParseAlign(tc.in)
		if got := a.Offset(40, 100); got != tc.want {
			t.Fatalf("%s offset: got %v want %v", tc.in, got, tc.want)
		}
	}
	if ParseAlign(AlignRight.String()) != AlignRight {
		t.Fatalf("align round trip failed")
	}
}
