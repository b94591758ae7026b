package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/scanner"
)

type EntryKind int

const (
	EntryInUse      EntryKind = iota // object stored at a byte offset
	EntryCompressed                  // object stored inside an object stream
)

// Entry locates one indirect object.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int // object stream number, compressed entries only
	Index  int // index inside the object stream
}

// Table holds object locations merged across all xref sections of a file.
type Table interface {
	Lookup(objNum int) (Entry, bool)
	Objects() []int
	Trailer() *raw.DictObj
	// StartXRef is the offset of the newest xref section, used as /Prev by
	// incremental writers. Repaired tables report 0.
	StartXRef() int64
	Type() string
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, data []byte) (Table, error)
}

type ResolverConfig struct {
	MaxXRefDepth int
	// Repair rebuilds the table by scanning for "N G obj" headers when the
	// xref sections cannot be read.
	Repair  bool
	Filters *filters.Pipeline
}

// NewResolver returns a resolver for classic tables, xref streams and hybrid files.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	if cfg.Filters == nil {
		cfg.Filters = filters.NewDefaultPipeline(filters.Limits{})
	}
	return &sectionResolver{cfg: cfg}
}

type sectionResolver struct {
	cfg ResolverConfig
}

func (r *sectionResolver) Resolve(ctx context.Context, data []byte) (Table, error) {
	t, err := r.resolveSections(ctx, data)
	if err == nil {
		return t, nil
	}
	if !r.cfg.Repair {
		return nil, err
	}
	repaired, rerr := repair(ctx, data)
	if rerr != nil {
		return nil, fmt.Errorf("%v; %w", err, rerr)
	}
	return repaired, nil
}

func (r *sectionResolver) resolveSections(ctx context.Context, data []byte) (Table, error) {
	start, err := lastStartXRef(data)
	if err != nil {
		return nil, err
	}
	t := &table{entries: make(map[int]Entry), start: start, kind: "table"}
	visited := make(map[int64]bool)
	offset := start
	for depth := 0; offset >= 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= r.cfg.MaxXRefDepth {
			return nil, errors.New("xref chain too deep")
		}
		if visited[offset] {
			break
		}
		visited[offset] = true
		trailer, err := r.readSection(ctx, data, offset, t)
		if err != nil {
			return nil, fmt.Errorf("xref section at %d: %w", offset, err)
		}
		t.mergeTrailer(trailer)
		offset = -1
		if prev, ok := trailer.Int("Prev"); ok {
			offset = prev
		}
	}
	if _, ok := t.trailer.Get("Root"); !ok {
		return nil, errors.New("trailer has no /Root")
	}
	return t, nil
}

func (r *sectionResolver) readSection(ctx context.Context, data []byte, offset int64, t *table) (*raw.DictObj, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("offset out of range: %d", offset)
	}
	s := scanner.New(data, scanner.Config{})
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		trailer, err := readClassic(s, t)
		if err != nil {
			return nil, err
		}
		if stm, ok := trailer.Int("XRefStm"); ok {
			if _, err := r.readSection(ctx, data, stm, t); err != nil {
				return nil, fmt.Errorf("hybrid xref stream: %w", err)
			}
		}
		return trailer, nil
	}
	if tok.Type == scanner.TokenNumber {
		t.kind = "stream"
		return r.readStream(ctx, s, t)
	}
	return nil, errors.New("xref keyword not found at offset")
}

// readClassic parses subsections up to and including the trailer dictionary.
func readClassic(s scanner.Scanner, t *table) (*raw.DictObj, error) {
	reader := raw.NewObjectReader(s)
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("unexpected end of xref section: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := reader.ReadObject()
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			d, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, errors.New("trailer is not a dictionary")
			}
			return d, nil
		}
		if tok.Type != scanner.TokenNumber || !tok.IsInt {
			return nil, fmt.Errorf("invalid xref subsection header at %d", tok.Pos)
		}
		countTok, err := s.Next()
		if err != nil || countTok.Type != scanner.TokenNumber || !countTok.IsInt {
			return nil, errors.New("invalid xref subsection count")
		}
		first := int(tok.Int)
		for i := 0; i < int(countTok.Int); i++ {
			offTok, err1 := s.Next()
			genTok, err2 := s.Next()
			kindTok, err3 := s.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("xref entry: %w", err)
			}
			if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber || kindTok.Type != scanner.TokenKeyword {
				return nil, fmt.Errorf("invalid xref entry at %d", offTok.Pos)
			}
			if kindTok.Str != "n" {
				t.free(first + i)
				continue
			}
			t.add(first+i, Entry{Kind: EntryInUse, Offset: offTok.Int, Gen: int(genTok.Int)})
		}
	}
}

func (r *sectionResolver) readStream(ctx context.Context, s scanner.Scanner, t *table) (*raw.DictObj, error) {
	reader := raw.NewObjectReader(s)
	if tok, err := s.Next(); err != nil || tok.Type != scanner.TokenNumber {
		return nil, errors.New("expected generation number")
	}
	if tok, err := s.Next(); err != nil || tok.Str != "obj" {
		return nil, errors.New("expected obj keyword")
	}
	obj, err := reader.ReadObject()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("xref stream dictionary missing")
	}
	if typ, _ := dict.Name("Type"); typ != "XRef" {
		return nil, errors.New("object at startxref is not an xref stream")
	}
	if l, ok := dict.Int("Length"); ok {
		s.SetNextStreamLength(l)
	}
	tok, err := s.Next()
	if err != nil || tok.Type != scanner.TokenStream {
		return nil, errors.New("xref stream payload missing")
	}
	payload, err := r.cfg.Filters.DecodeStream(ctx, raw.NewStream(dict, tok.Bytes))
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}
	if err := decodeStreamEntries(dict, payload, t); err != nil {
		return nil, err
	}
	return dict, nil
}

func decodeStreamEntries(dict *raw.DictObj, payload []byte, t *table) error {
	wObj, _ := dict.Get("W")
	wArr, ok := wObj.(*raw.ArrayObj)
	if !ok || wArr.Len() != 3 {
		return errors.New("xref stream /W must have three entries")
	}
	var w [3]int
	for i, v := range wArr.Floats() {
		w[i] = int(v)
		if w[i] < 0 || w[i] > 8 {
			return errors.New("invalid /W field width")
		}
	}
	size, _ := dict.Int("Size")
	index := []int{0, int(size)}
	if idxObj, ok := dict.Get("Index"); ok {
		if arr, ok := idxObj.(*raw.ArrayObj); ok && arr.Len()%2 == 0 {
			index = index[:0]
			for _, v := range arr.Floats() {
				index = append(index, int(v))
			}
		}
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return errors.New("empty xref stream rows")
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for k := 0; k < count; k++ {
			if pos+rowLen > len(payload) {
				return nil
			}
			row := payload[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = readField(row[:w[0]])
			}
			f2 := readField(row[w[0] : w[0]+w[1]])
			f3 := readField(row[w[0]+w[1]:])
			switch typ {
			case 0:
				t.free(first + k)
			case 1:
				t.add(first+k, Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)})
			case 2:
				t.add(first+k, Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)})
			}
		}
	}
	return nil
}

func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// lastStartXRef returns the offset recorded after the final startxref keyword.
func lastStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := bytes.TrimLeft(data[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	val, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	return val, nil
}

type table struct {
	entries map[int]Entry
	freed   map[int]bool
	trailer *raw.DictObj
	start   int64
	kind    string
}

// add records an entry unless a newer section already described the object.
func (t *table) add(num int, e Entry) {
	if _, seen := t.entries[num]; seen || t.freed[num] {
		return
	}
	t.entries[num] = e
}

func (t *table) free(num int) {
	if _, seen := t.entries[num]; seen {
		return
	}
	if t.freed == nil {
		t.freed = make(map[int]bool)
	}
	t.freed[num] = true
}

func (t *table) mergeTrailer(d *raw.DictObj) {
	if t.trailer == nil {
		t.trailer = raw.Dict()
	}
	for _, k := range []string{"Root", "Info", "ID", "Encrypt", "Size"} {
		if _, ok := t.trailer.Get(k); ok {
			continue
		}
		if v, ok := d.Get(k); ok {
			t.trailer.Set(k, v)
		}
	}
}

func (t *table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() *raw.DictObj { return t.trailer }
func (t *table) StartXRef() int64      { return t.start }
func (t *table) Type() string          { return t.kind }
