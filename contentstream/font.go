package contentstream

import (
	"context"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/ir/raw"
)

// Font decodes the strings shown with one font resource.
type Font struct {
	BaseFont string // subset prefix removed
	Subtype  string
	Family   fonts.Family
	Emphasis fonts.Emphasis

	composite bool
	encoding  *Encoding
	toUnicode *CMap
	// widths are glyph space advances (1/1000 em) keyed by code.
	widths       map[int]float64
	defaultWidth float64
	hasWidths    bool
}

// DecodedGlyph is one character code of a shown string.
type DecodedGlyph struct {
	Code  int
	Text  string
	Width float64 // glyph space, 1/1000 em
	// Space is set for the single-byte code 32, the only code word spacing applies to.
	Space bool
}

// LoadFont builds a Font from a font dictionary. Missing or broken entries
// degrade to standard font behaviour rather than failing.
func LoadFont(ctx context.Context, doc *raw.Document, dict *raw.DictObj, p *filters.Pipeline) *Font {
	f := &Font{widths: make(map[int]float64)}
	f.Subtype, _ = dict.Name("Subtype")
	base, _ := doc.Resolve(valueOf(dict, "BaseFont")).(raw.NameObj)
	f.BaseFont = fonts.StripSubset(base.Val)
	f.Family, f.Emphasis = fonts.Classify(f.BaseFont)

	if st, ok := doc.Resolve(valueOf(dict, "ToUnicode")).(*raw.StreamObj); ok {
		if data, err := p.DecodeStream(ctx, st); err == nil {
			if cm, err := ParseCMap(data); err == nil {
				f.toUnicode = cm
			}
		}
	}

	if f.Subtype == "Type0" {
		f.composite = true
		f.defaultWidth = 1000
		if arr, ok := doc.ResolveArray(valueOf(dict, "DescendantFonts")); ok && arr.Len() > 0 {
			if desc, ok := doc.ResolveDict(arr.Items[0]); ok {
				f.loadCIDWidths(doc, desc)
				if fd, ok := doc.ResolveDict(valueOf(desc, "FontDescriptor")); ok {
					f.applyDescriptorFlags(doc, fd)
				}
			}
		}
		return f
	}

	f.encoding = f.baseEncoding(doc, dict)
	f.loadSimpleWidths(doc, dict)
	if fd, ok := doc.ResolveDict(valueOf(dict, "FontDescriptor")); ok {
		if mw, ok := doc.ResolveNumber(valueOf(fd, "MissingWidth")); ok && mw > 0 {
			f.defaultWidth = mw
		}
		f.applyDescriptorFlags(doc, fd)
	}
	return f
}

// FixedPitch and Serif flags in the descriptor override name heuristics.
const (
	flagFixedPitch = 1 << 0
	flagSerif      = 1 << 1
	flagItalic     = 1 << 6
	flagForceBold  = 1 << 18
)

func (f *Font) applyDescriptorFlags(doc *raw.Document, fd *raw.DictObj) {
	flags, ok := doc.ResolveNumber(valueOf(fd, "Flags"))
	if !ok {
		return
	}
	v := int(flags)
	switch {
	case v&flagFixedPitch != 0:
		f.Family = fonts.Mono
	case v&flagSerif != 0 && f.Family == fonts.Sans:
		f.Family = fonts.Serif
	}
	if v&flagItalic != 0 {
		f.Emphasis.Italic = true
	}
	if v&flagForceBold != 0 {
		f.Emphasis.Bold = true
	}
	if w, ok := doc.ResolveNumber(valueOf(fd, "FontWeight")); ok && w >= 600 {
		f.Emphasis.Bold = true
	}
}

func (f *Font) baseEncoding(doc *raw.Document, dict *raw.DictObj) *Encoding {
	var enc Encoding
	base := StandardEncoding
	if f.Subtype == "TrueType" {
		base = WinAnsiEncoding
	}
	switch e := doc.Resolve(valueOf(dict, "Encoding")).(type) {
	case raw.NameObj:
		if named := EncodingByName(e.Val); named != nil {
			base = named
		}
		enc = *base
	case *raw.DictObj:
		if name, ok := e.Name("BaseEncoding"); ok {
			if named := EncodingByName(name); named != nil {
				base = named
			}
		}
		enc = *base
		if diffs, ok := doc.ResolveArray(valueOf(e, "Differences")); ok {
			code := 0
			for _, item := range diffs.Items {
				switch v := doc.Resolve(item).(type) {
				case raw.NumberObj:
					code = int(v.Int())
				case raw.NameObj:
					if code >= 0 && code < 256 {
						if r, ok := GlyphRune(v.Val); ok {
							enc[code] = r
						}
					}
					code++
				}
			}
		}
	default:
		enc = *base
	}
	return &enc
}

func (f *Font) loadSimpleWidths(doc *raw.Document, dict *raw.DictObj) {
	first, _ := doc.ResolveNumber(valueOf(dict, "FirstChar"))
	arr, ok := doc.ResolveArray(valueOf(dict, "Widths"))
	if !ok {
		return
	}
	f.hasWidths = true
	for i, item := range arr.Items {
		if w, ok := doc.ResolveNumber(item); ok {
			f.widths[int(first)+i] = w
		}
	}
}

func (f *Font) loadCIDWidths(doc *raw.Document, desc *raw.DictObj) {
	if dw, ok := doc.ResolveNumber(valueOf(desc, "DW")); ok {
		f.defaultWidth = dw
	}
	arr, ok := doc.ResolveArray(valueOf(desc, "W"))
	if !ok {
		return
	}
	f.hasWidths = true
	items := arr.Items
	for i := 0; i < len(items); {
		start, ok := doc.ResolveNumber(items[i])
		if !ok || i+1 >= len(items) {
			return
		}
		if list, ok := doc.ResolveArray(items[i+1]); ok {
			for j, item := range list.Items {
				if w, ok := doc.ResolveNumber(item); ok {
					f.widths[int(start)+j] = w
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(items) {
			return
		}
		end, ok1 := doc.ResolveNumber(items[i+1])
		w, ok2 := doc.ResolveNumber(items[i+2])
		if ok1 && ok2 && end >= start && end-start < maxRangeSize {
			for c := int(start); c <= int(end); c++ {
				f.widths[c] = w
			}
		}
		i += 3
	}
}

// Composite reports whether the font uses multi-byte codes.
func (f *Font) Composite() bool { return f.composite }

// Decode splits a shown string into codes and resolves text and widths.
func (f *Font) Decode(s []byte) []DecodedGlyph {
	out := make([]DecodedGlyph, 0, len(s))
	for i := 0; i < len(s); {
		n := 1
		if f.composite {
			n = 2
			if f.toUnicode != nil {
				n = f.toUnicode.CodeLength(s[i:], 2)
			}
		}
		if i+n > len(s) {
			n = len(s) - i
		}
		chunk := s[i : i+n]
		code := codeValue(chunk)
		g := DecodedGlyph{Code: code, Text: f.text(chunk, code), Width: f.width(code), Space: n == 1 && code == 32}
		out = append(out, g)
		i += n
	}
	return out
}

func (f *Font) text(code []byte, v int) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup(code); ok {
			return s
		}
	}
	if f.composite {
		if v == 0 {
			return ""
		}
		return string(rune(v))
	}
	if r := f.encoding[v&0xff]; r != 0 {
		return string(r)
	}
	return ""
}

func (f *Font) width(code int) float64 {
	if w, ok := f.widths[code]; ok {
		return w
	}
	if f.hasWidths || f.composite {
		if f.defaultWidth > 0 {
			return f.defaultWidth
		}
		return 0
	}
	// standard 14 fonts usually omit /Widths
	r := rune(code)
	if f.encoding != nil {
		if er := f.encoding[code&0xff]; er != 0 {
			r = er
		}
	}
	return fonts.GlyphWidth(f.BaseFont, r)
}

func valueOf(d *raw.DictObj, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}
