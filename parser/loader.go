package parser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/scanner"
	"github.com/wudi/pdfedit/xref"
)

type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

var ErrObjectNotFound = errors.New("object not found in xref")

const maxLengthDepth = 8

type ObjectLoaderBuilder struct {
	data    []byte
	table   xref.Table
	filters *filters.Pipeline
	limits  scanner.Config
	cache   Cache
}

func (b *ObjectLoaderBuilder) WithData(data []byte) *ObjectLoaderBuilder {
	b.data = data
	return b
}
func (b *ObjectLoaderBuilder) WithXRef(table xref.Table) *ObjectLoaderBuilder {
	b.table = table
	return b
}
func (b *ObjectLoaderBuilder) WithFilters(p *filters.Pipeline) *ObjectLoaderBuilder {
	b.filters = p
	return b
}
func (b *ObjectLoaderBuilder) WithLimits(l scanner.Config) *ObjectLoaderBuilder {
	b.limits = l
	return b
}
func (b *ObjectLoaderBuilder) WithCache(c Cache) *ObjectLoaderBuilder { b.cache = c; return b }

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	if b.data == nil || b.table == nil {
		return nil, errors.New("data and xref table required")
	}
	p := b.filters
	if p == nil {
		p = filters.NewDefaultPipeline(filters.Limits{})
	}
	return &objectLoader{
		data:    b.data,
		table:   b.table,
		filters: p,
		limits:  b.limits,
		cache:   b.cache,
		objstm:  make(map[int]*objectStream),
	}, nil
}

type objectLoader struct {
	data    []byte
	table   xref.Table
	filters *filters.Pipeline
	limits  scanner.Config
	cache   Cache
	mu      sync.Mutex
	objstm  map[int]*objectStream
}

// objectStream is a decoded /Type /ObjStm with its offset header parsed.
type objectStream struct {
	data  []byte
	first int
	nums  []int
	offs  []int
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	if o.cache != nil {
		if obj, ok := o.cache.Get(ref); ok {
			return obj, nil
		}
	}
	o.mu.Lock()
	obj, err := o.load(ctx, ref, 0)
	o.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if o.cache != nil {
		o.cache.Put(ref, obj)
	}
	return obj, nil
}

// load assumes the caller holds the loader mutex.
func (o *objectLoader) load(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := o.table.Lookup(ref.Num)
	if !ok {
		return nil, ErrObjectNotFound
	}
	if e.Kind == xref.EntryCompressed {
		return o.loadFromObjectStream(ctx, ref.Num, e.Stream, e.Index)
	}
	return o.loadAtOffset(ctx, ref.Num, e.Offset, e.Gen, depth)
}

func (o *objectLoader) loadAtOffset(ctx context.Context, objNum int, offset int64, gen int, depth int) (raw.Object, error) {
	s := scanner.New(o.data, o.limits)
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tokNum, err := s.Next()
	if err != nil {
		return nil, err
	}
	if tokNum.Type != scanner.TokenNumber || !tokNum.IsInt || int(tokNum.Int) != objNum {
		return nil, errors.New("object header number mismatch")
	}
	tokGen, err := s.Next()
	if err != nil {
		return nil, err
	}
	if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt || int(tokGen.Int) != gen {
		return nil, errors.New("object header generation mismatch")
	}
	tokObj, err := s.Next()
	if err != nil {
		return nil, err
	}
	if tokObj.Type != scanner.TokenKeyword || tokObj.Str != "obj" {
		return nil, errors.New("expected obj keyword")
	}

	obj, err := raw.NewObjectReader(s).ReadObject()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return obj, nil
	}
	s.SetNextStreamLength(o.streamLength(ctx, dict, depth))
	tok, err := s.Next()
	if err == nil && tok.Type == scanner.TokenStream {
		return raw.NewStream(dict, tok.Bytes), nil
	}
	return dict, nil
}

// streamLength resolves /Length, following one level of indirection. A
// negative result lets the scanner search for endstream.
func (o *objectLoader) streamLength(ctx context.Context, dict *raw.DictObj, depth int) int64 {
	v, ok := dict.Get("Length")
	if !ok {
		return -1
	}
	if ref, isRef := v.(raw.RefObj); isRef {
		if depth >= maxLengthDepth {
			return -1
		}
		resolved, err := o.load(ctx, ref.R, depth+1)
		if err != nil {
			return -1
		}
		v = resolved
	}
	if n, ok := v.(raw.NumberObj); ok && n.Int() >= 0 {
		return n.Int()
	}
	return -1
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, objNum, streamNum, idx int) (raw.Object, error) {
	stm, ok := o.objstm[streamNum]
	if !ok {
		var err error
		stm, err = o.openObjectStream(ctx, streamNum)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
		}
		o.objstm[streamNum] = stm
	}
	if idx < 0 || idx >= len(stm.nums) || stm.nums[idx] != objNum {
		idx = -1
		for i, n := range stm.nums {
			if n == objNum {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, errors.New("object not found in object stream")
		}
	}
	start := int64(stm.first + stm.offs[idx])
	s := scanner.New(stm.data, o.limits)
	if err := s.Seek(start); err != nil {
		return nil, err
	}
	return raw.NewObjectReader(s).ReadObject()
}

func (o *objectLoader) openObjectStream(ctx context.Context, streamNum int) (*objectStream, error) {
	e, ok := o.table.Lookup(streamNum)
	if !ok || e.Kind != xref.EntryInUse {
		return nil, errors.New("object stream entry missing")
	}
	obj, err := o.loadAtOffset(ctx, streamNum, e.Offset, e.Gen, 0)
	if err != nil {
		return nil, err
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, errors.New("object stream is not a stream")
	}
	n, _ := st.Dict.Int("N")
	first, _ := st.Dict.Int("First")
	data, err := o.filters.DecodeStream(ctx, st)
	if err != nil {
		return nil, err
	}
	if first < 0 || int(first) > len(data) {
		return nil, errors.New("object stream First exceeds length")
	}
	stm := &objectStream{data: data, first: int(first)}
	hs := scanner.New(data[:first], o.limits)
	var pairs []int
	for len(pairs) < int(n)*2 {
		tok, err := hs.Next()
		if err != nil {
			break
		}
		if tok.Type == scanner.TokenNumber && tok.IsInt {
			pairs = append(pairs, int(tok.Int))
		}
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		stm.nums = append(stm.nums, pairs[i])
		stm.offs = append(stm.offs, pairs[i+1])
	}
	return stm, nil
}
