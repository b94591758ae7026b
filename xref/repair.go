package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/scanner"
)

// repair scans the entire file to reconstruct the xref table.
// It looks for "<num> <gen> obj" patterns and "trailer" dictionaries; later
// definitions of the same object win, as they would in an incremental update.
func repair(ctx context.Context, data []byte) (Table, error) {
	s := scanner.New(data, scanner.Config{})
	reader := raw.NewObjectReader(s)
	t := &table{entries: make(map[int]Entry), kind: "repaired"}
	trailer := raw.Dict()

	var window [2]scanner.Token
	for i := 0; ; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// skip the offending byte and keep scanning
			if serr := s.Seek(s.Position() + 1); serr != nil {
				break
			}
			window = [2]scanner.Token{}
			continue
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "obj" &&
			window[0].Type == scanner.TokenNumber && window[0].IsInt &&
			window[1].Type == scanner.TokenNumber && window[1].IsInt {
			t.entries[int(window[0].Int)] = Entry{Kind: EntryInUse, Offset: window[0].Pos, Gen: int(window[1].Int)}
			// xref stream dictionaries double as trailers
			if obj, err := reader.ReadObject(); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					if typ, _ := d.Name("Type"); typ == "XRef" {
						for _, k := range []string{"Root", "Info", "ID"} {
							if v, ok := d.Get(k); ok {
								trailer.Set(k, v)
							}
						}
					}
				}
			}
			reader.Reset()
			window = [2]scanner.Token{}
			continue
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			if obj, err := reader.ReadObject(); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					for _, k := range d.Keys() {
						v, _ := d.Get(k)
						trailer.Set(k, v)
					}
				}
			}
			reader.Reset()
		}
		window[0], window[1] = window[1], tok
	}

	if len(t.entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	if _, ok := trailer.Get("Size"); !ok {
		trailer.Set("Size", raw.NumberInt(int64(maxKey(t.entries)+1)))
	}
	t.trailer = trailer
	return t, nil
}

func maxKey(m map[int]Entry) int {
	max := 0
	for k := range m {
		if k > max {
			max = k
		}
	}
	return max
}
