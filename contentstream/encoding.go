package contentstream

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Encoding maps single-byte codes to Unicode for simple fonts.
type Encoding [256]rune

func charmapEncoding(m *charmap.Charmap) *Encoding {
	var e Encoding
	for i := 0; i < 256; i++ {
		r := m.DecodeByte(byte(i))
		if r == '\uFFFD' {
			r = 0
		}
		e[i] = r
	}
	return &e
}

var (
	WinAnsiEncoding  = charmapEncoding(charmap.Windows1252)
	MacRomanEncoding = charmapEncoding(charmap.Macintosh)
	StandardEncoding = standardEncoding()
)

// standardHigh lists where StandardEncoding departs from ASCII.
var standardHigh = map[byte]rune{
	0x27: 0x2019,
	0x60: 0x2018,
	0xA1: 0x00A1,
	0xA2: 0x00A2,
	0xA3: 0x00A3,
	0xA4: 0x2044,
	0xA5: 0x00A5,
	0xA6: 0x0192,
	0xA7: 0x00A7,
	0xA8: 0x00A4,
	0xA9: 0x0027,
	0xAA: 0x201C,
	0xAB: 0x00AB,
	0xAC: 0x2039,
	0xAD: 0x203A,
	0xAE: 0xFB01,
	0xAF: 0xFB02,
	0xB1: 0x2013,
	0xB2: 0x2020,
	0xB3: 0x2021,
	0xB4: 0x00B7,
	0xB6: 0x00B6,
	0xB7: 0x2022,
	0xB8: 0x201A,
	0xB9: 0x201E,
	0xBA: 0x201D,
	0xBB: 0x00BB,
	0xBC: 0x2026,
	0xBD: 0x2030,
	0xBF: 0x00BF,
	0xC1: 0x0060,
	0xC2: 0x00B4,
	0xC3: 0x02C6,
	0xC4: 0x02DC,
	0xC5: 0x00AF,
	0xC6: 0x02D8,
	0xC7: 0x02D9,
	0xC8: 0x00A8,
	0xCA: 0x02DA,
	0xCB: 0x00B8,
	0xCD: 0x02DD,
	0xCE: 0x02DB,
	0xCF: 0x02C7,
	0xD0: 0x2014,
	0xE1: 0x00C6,
	0xE3: 0x00AA,
	0xE8: 0x0141,
	0xE9: 0x00D8,
	0xEA: 0x0152,
	0xEB: 0x00BA,
	0xF1: 0x00E6,
	0xF5: 0x0131,
	0xF8: 0x0142,
	0xF9: 0x00F8,
	0xFA: 0x0153,
	0xFB: 0x00DF,
}

func standardEncoding() *Encoding {
	var e Encoding
	for i := 0x20; i < 0x7f; i++ {
		e[i] = rune(i)
	}
	for code, r := range standardHigh {
		e[code] = r
	}
	return &e
}

// EncodingByName returns a predefined encoding, or nil.
func EncodingByName(name string) *Encoding {
	switch name {
	case "WinAnsiEncoding":
		return WinAnsiEncoding
	case "MacRomanEncoding":
		return MacRomanEncoding
	case "StandardEncoding":
		return StandardEncoding
	}
	return nil
}

// glyphNames covers the Latin glyph names that show up in /Differences arrays.
var glyphNames = map[string]rune{
	"space": 0x0020,
	"exclam": 0x0021,
	"quotedbl": 0x0022,
	"numbersign": 0x0023,
	"dollar": 0x0024,
	"percent": 0x0025,
	"ampersand": 0x0026,
	"quotesingle": 0x0027,
	"parenleft": 0x0028,
	"parenright": 0x0029,
	"asterisk": 0x002A,
	"plus": 0x002B,
	"comma": 0x002C,
	"hyphen": 0x002D,
	"period": 0x002E,
	"slash": 0x002F,
	"zero": 0x0030,
	"one": 0x0031,
	"two": 0x0032,
	"three": 0x0033,
	"four": 0x0034,
	"five": 0x0035,
	"six": 0x0036,
	"seven": 0x0037,
	"eight": 0x0038,
	"nine": 0x0039,
	"colon": 0x003A,
	"semicolon": 0x003B,
	"less": 0x003C,
	"equal": 0x003D,
	"greater": 0x003E,
	"question": 0x003F,
	"at": 0x0040,
	"bracketleft": 0x005B,
	"backslash": 0x005C,
	"bracketright": 0x005D,
	"asciicircum": 0x005E,
	"underscore": 0x005F,
	"grave": 0x0060,
	"braceleft": 0x007B,
	"bar": 0x007C,
	"braceright": 0x007D,
	"asciitilde": 0x007E,
	"nbspace": 0x00A0,
	"uni00A0": 0x00A0,
	"exclamdown": 0x00A1,
	"cent": 0x00A2,
	"sterling": 0x00A3,
	"currency": 0x00A4,
	"yen": 0x00A5,
	"brokenbar": 0x00A6,
	"section": 0x00A7,
	"dieresis": 0x00A8,
	"copyright": 0x00A9,
	"ordfeminine": 0x00AA,
	"guillemotleft": 0x00AB,
	"logicalnot": 0x00AC,
	"sfthyphen": 0x00AD,
	"registered": 0x00AE,
	"macron": 0x00AF,
	"degree": 0x00B0,
	"plusminus": 0x00B1,
	"twosuperior": 0x00B2,
	"threesuperior": 0x00B3,
	"acute": 0x00B4,
	"mu": 0x00B5,
	"paragraph": 0x00B6,
	"periodcentered": 0x00B7,
	"cedilla": 0x00B8,
	"onesuperior": 0x00B9,
	"ordmasculine": 0x00BA,
	"guillemotright": 0x00BB,
	"onequarter": 0x00BC,
	"onehalf": 0x00BD,
	"threequarters": 0x00BE,
	"questiondown": 0x00BF,
	"Agrave": 0x00C0,
	"Aacute": 0x00C1,
	"Acircumflex": 0x00C2,
	"Atilde": 0x00C3,
	"Adieresis": 0x00C4,
	"Aring": 0x00C5,
	"AE": 0x00C6,
	"Ccedilla": 0x00C7,
	"Egrave": 0x00C8,
	"Eacute": 0x00C9,
	"Ecircumflex": 0x00CA,
	"Edieresis": 0x00CB,
	"Igrave": 0x00CC,
	"Iacute": 0x00CD,
	"Icircumflex": 0x00CE,
	"Idieresis": 0x00CF,
	"Eth": 0x00D0,
	"Ntilde": 0x00D1,
	"Ograve": 0x00D2,
	"Oacute": 0x00D3,
	"Ocircumflex": 0x00D4,
	"Otilde": 0x00D5,
	"Odieresis": 0x00D6,
	"multiply": 0x00D7,
	"Oslash": 0x00D8,
	"Ugrave": 0x00D9,
	"Uacute": 0x00DA,
	"Ucircumflex": 0x00DB,
	"Udieresis": 0x00DC,
	"Yacute": 0x00DD,
	"Thorn": 0x00DE,
	"germandbls": 0x00DF,
	"agrave": 0x00E0,
	"aacute": 0x00E1,
	"acircumflex": 0x00E2,
	"atilde": 0x00E3,
	"adieresis": 0x00E4,
	"aring": 0x00E5,
	"ae": 0x00E6,
	"ccedilla": 0x00E7,
	"egrave": 0x00E8,
	"eacute": 0x00E9,
	"ecircumflex": 0x00EA,
	"edieresis": 0x00EB,
	"igrave": 0x00EC,
	"iacute": 0x00ED,
	"icircumflex": 0x00EE,
	"idieresis": 0x00EF,
	"eth": 0x00F0,
	"ntilde": 0x00F1,
	"ograve": 0x00F2,
	"oacute": 0x00F3,
	"ocircumflex": 0x00F4,
	"otilde": 0x00F5,
	"odieresis": 0x00F6,
	"divide": 0x00F7,
	"oslash": 0x00F8,
	"ugrave": 0x00F9,
	"uacute": 0x00FA,
	"ucircumflex": 0x00FB,
	"udieresis": 0x00FC,
	"yacute": 0x00FD,
	"thorn": 0x00FE,
	"ydieresis": 0x00FF,
	"dotlessi": 0x0131,
	"Lslash": 0x0141,
	"lslash": 0x0142,
	"OE": 0x0152,
	"oe": 0x0153,
	"Scaron": 0x0160,
	"scaron": 0x0161,
	"Ydieresis": 0x0178,
	"Zcaron": 0x017D,
	"zcaron": 0x017E,
	"florin": 0x0192,
	"circumflex": 0x02C6,
	"caron": 0x02C7,
	"breve": 0x02D8,
	"dotaccent": 0x02D9,
	"ring": 0x02DA,
	"ogonek": 0x02DB,
	"tilde": 0x02DC,
	"hungarumlaut": 0x02DD,
	"Omega": 0x03A9,
	"pi": 0x03C0,
	"endash": 0x2013,
	"emdash": 0x2014,
	"quoteleft": 0x2018,
	"quoteright": 0x2019,
	"quotesinglbase": 0x201A,
	"quotedblleft": 0x201C,
	"quotedblright": 0x201D,
	"quotedblbase": 0x201E,
	"dagger": 0x2020,
	"daggerdbl": 0x2021,
	"bullet": 0x2022,
	"ellipsis": 0x2026,
	"perthousand": 0x2030,
	"guilsinglleft": 0x2039,
	"guilsinglright": 0x203A,
	"fraction": 0x2044,
	"Euro": 0x20AC,
	"trademark": 0x2122,
	"partialdiff": 0x2202,
	"Delta": 0x2206,
	"product": 0x220F,
	"summation": 0x2211,
	"minus": 0x2212,
	"radical": 0x221A,
	"infinity": 0x221E,
	"integral": 0x222B,
	"approxequal": 0x2248,
	"notequal": 0x2260,
	"lessequal": 0x2264,
	"greaterequal": 0x2265,
	"lozenge": 0x25CA,
	"ff": 0xFB00,
	"fi": 0xFB01,
	"fl": 0xFB02,
	"ffi": 0xFB03,
	"ffl": 0xFB04,
}

// GlyphRune resolves a glyph name, including the uniXXXX and uXXXX forms and
// suffixed variants such as "a.sc".
func GlyphRune(name string) (rune, bool) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 && (name[0] >= 'A' && name[0] <= 'Z' || name[0] >= 'a' && name[0] <= 'z') {
		return rune(name[0]), true
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 {
		if v, err := strconv.ParseUint(name[3:7], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	return 0, false
}
