package contentstream

import (
	"errors"
	"io"

	"golang.org/x/text/encoding/unicode"

	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/scanner"
)

// maxRangeSize bounds a single bfrange so a hostile CMap cannot allocate
// without limit.
const maxRangeSize = 1 << 16

type codeRange struct {
	low, high []byte
}

// CMap is a parsed /ToUnicode program: codespace ranges plus code to text
// mappings.
type CMap struct {
	codespace []codeRange
	single    map[string]string
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// ParseCMap reads codespacerange, bfchar and bfrange sections. Everything
// else in the program is ignored.
func ParseCMap(data []byte) (*CMap, error) {
	cm := &CMap{single: make(map[string]string)}
	r := raw.NewObjectReader(scanner.New(data, scanner.Config{}))
	var pending []raw.Object
	for {
		tok, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cm, err
		}
		if tok.Type != scanner.TokenKeyword {
			obj, err := r.FromToken(tok)
			if err != nil {
				return cm, err
			}
			pending = append(pending, obj)
			continue
		}
		switch tok.Str {
		case "endcodespacerange":
			for i := 0; i+1 < len(pending); i += 2 {
				lo, ok1 := pending[i].(raw.StringObj)
				hi, ok2 := pending[i+1].(raw.StringObj)
				if ok1 && ok2 && len(lo.Bytes) == len(hi.Bytes) && len(lo.Bytes) > 0 {
					cm.codespace = append(cm.codespace, codeRange{low: lo.Bytes, high: hi.Bytes})
				}
			}
		case "endbfchar":
			for i := 0; i+1 < len(pending); i += 2 {
				src, ok1 := pending[i].(raw.StringObj)
				dst, ok2 := pending[i+1].(raw.StringObj)
				if ok1 && ok2 {
					cm.single[string(src.Bytes)] = decodeUTF16(dst.Bytes)
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(pending); i += 3 {
				cm.addRange(pending[i], pending[i+1], pending[i+2])
			}
		}
		pending = pending[:0]
	}
	if len(cm.single) == 0 && len(cm.codespace) == 0 {
		return nil, errors.New("cmap has no mappings")
	}
	return cm, nil
}

func (c *CMap) addRange(loObj, hiObj, dst raw.Object) {
	lo, ok1 := loObj.(raw.StringObj)
	hi, ok2 := hiObj.(raw.StringObj)
	if !ok1 || !ok2 || len(lo.Bytes) != len(hi.Bytes) || len(lo.Bytes) == 0 {
		return
	}
	start, end := codeValue(lo.Bytes), codeValue(hi.Bytes)
	if end < start || end-start >= maxRangeSize {
		return
	}
	width := len(lo.Bytes)
	switch d := dst.(type) {
	case raw.StringObj:
		base := append([]byte(nil), d.Bytes...)
		for code := start; code <= end; code++ {
			c.single[string(codeBytes(code, width))] = decodeUTF16(base)
			incrementLast(base)
		}
	case *raw.ArrayObj:
		for i, item := range d.Items {
			s, ok := item.(raw.StringObj)
			code := start + i
			if !ok || code > end {
				continue
			}
			c.single[string(codeBytes(code, width))] = decodeUTF16(s.Bytes)
		}
	}
}

// CodeLength returns how many bytes the code starting at b occupies, using
// the codespace ranges. It falls back to def.
func (c *CMap) CodeLength(b []byte, def int) int {
	for _, cr := range c.codespace {
		n := len(cr.low)
		if n > len(b) {
			continue
		}
		inside := true
		for i := 0; i < n; i++ {
			if b[i] < cr.low[i] || b[i] > cr.high[i] {
				inside = false
				break
			}
		}
		if inside {
			return n
		}
	}
	return def
}

// Lookup returns the text mapped to code.
func (c *CMap) Lookup(code []byte) (string, bool) {
	s, ok := c.single[string(code)]
	return s, ok
}

func codeValue(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

func codeBytes(v, width int) []byte {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func incrementLast(b []byte) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			return
		}
	}
}

func decodeUTF16(b []byte) string {
	if len(b) == 1 {
		return string(rune(b[0]))
	}
	out, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(out)
}
