package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
)

var errNoRoot = errors.New("trailer has no /Root")

type impl struct{ interceptors []Interceptor }

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	if obj == nil {
		obj = raw.NullObj{}
	}
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes(), nil
}

func (w *impl) Write(ctx context.Context, out io.Writer, u *Update, cfg Config) error {
	root, ok := u.Doc.Trailer.Get("Root")
	if !ok {
		return errNoRoot
	}
	var (
		buf  bytes.Buffer
		refs []raw.ObjectRef
		prev int64
	)
	if cfg.Incremental {
		buf.Write(u.Original)
		if n := len(u.Original); n > 0 && u.Original[n-1] != '\n' && u.Original[n-1] != '\r' {
			buf.WriteByte('\n')
		}
		refs = u.Refs()
		prev = u.Doc.StartXRef
	} else {
		version := cfg.Version
		if version == "" {
			version = u.Doc.Version
		}
		if version == "" {
			version = "1.7"
		}
		fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)
		refs = fullRefs(u)
	}
	bodyStart := buf.Len()

	offsets := make(map[raw.ObjectRef]int64, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, _ := u.Object(ref)
		_, updated := u.objects[ref]
		obj, err := prepare(obj, cfg, updated)
		if err != nil {
			return fmt.Errorf("object %d: %w", ref.Num, err)
		}
		for _, it := range w.interceptors {
			if err := it.BeforeWrite(ctx, ref, obj); err != nil {
				return err
			}
		}
		offsets[ref] = int64(buf.Len())
		serialized, err := w.SerializeObject(ref, obj)
		if err != nil {
			return err
		}
		buf.Write(serialized)
		for _, it := range w.interceptors {
			if err := it.AfterWrite(ctx, ref, int64(len(serialized))); err != nil {
				return err
			}
		}
	}

	xrefOffset := int64(buf.Len())
	size := maxNum(refs) + 1
	if cfg.Incremental {
		if old, ok := u.Doc.Trailer.Int("Size"); ok && int(old) > size {
			size = int(old)
		}
	}
	writeXRef(&buf, offsets, !cfg.Incremental)

	ids := fileID(u.Doc.Trailer, u.Original, buf.Bytes()[bodyStart:])
	trailer := buildTrailer(size, root, u.Doc.Trailer, prev, ids)
	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

// fullRefs lists every live object of a rewrite. Object and xref streams
// are dropped since their members are written individually.
func fullRefs(u *Update) []raw.ObjectRef {
	seen := make(map[raw.ObjectRef]bool, len(u.Doc.Objects)+len(u.objects))
	var refs []raw.ObjectRef
	add := func(ref raw.ObjectRef, obj raw.Object) {
		if seen[ref] || isStructural(obj) {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	for ref, obj := range u.objects {
		add(ref, obj)
	}
	for ref, obj := range u.Doc.Objects {
		add(ref, obj)
	}
	sortRefs(refs)
	return refs
}

func isStructural(obj raw.Object) bool {
	s, ok := obj.(*raw.StreamObj)
	if !ok {
		return false
	}
	typ, _ := s.Dict.Name("Type")
	return typ == "XRef" || typ == "ObjStm"
}

// prepare fixes stream lengths and compresses new unfiltered streams. The
// source object is never modified.
func prepare(obj raw.Object, cfg Config, updated bool) (raw.Object, error) {
	s, ok := obj.(*raw.StreamObj)
	if !ok {
		return obj, nil
	}
	dict := s.Dict.Clone()
	data := s.Data
	if _, filtered := dict.Get("Filter"); cfg.Compress && updated && !filtered && len(data) > 0 {
		enc, err := filters.FlateEncode(data)
		if err != nil {
			return nil, fmt.Errorf("compress stream: %w", err)
		}
		data = enc
		dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	}
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return raw.NewStream(dict, data), nil
}

func maxNum(refs []raw.ObjectRef) int {
	max := 0
	for _, r := range refs {
		if r.Num > max {
			max = r.Num
		}
	}
	return max
}

// writeXRef writes a classic table. A full table lists every number from
// 0 with gaps marked free; an update lists only its own subsections.
func writeXRef(buf *bytes.Buffer, offsets map[raw.ObjectRef]int64, full bool) {
	byNum := make(map[int]raw.ObjectRef, len(offsets))
	refs := make([]raw.ObjectRef, 0, len(offsets))
	for ref := range offsets {
		byNum[ref.Num] = ref
		refs = append(refs, ref)
	}
	sortRefs(refs)
	buf.WriteString("xref\n")
	if full {
		max := maxNum(refs)
		fmt.Fprintf(buf, "0 %d\n", max+1)
		buf.WriteString("0000000000 65535 f \n")
		for i := 1; i <= max; i++ {
			if ref, ok := byNum[i]; ok {
				fmt.Fprintf(buf, "%010d %05d n \n", offsets[ref], ref.Gen)
			} else {
				buf.WriteString("0000000000 65535 f \n")
			}
		}
		return
	}
	buf.WriteString("0 1\n0000000000 65535 f \n")
	for i := 0; i < len(refs); {
		j := i
		for j+1 < len(refs) && refs[j+1].Num == refs[j].Num+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", refs[i].Num, j-i+1)
		for _, ref := range refs[i : j+1] {
			fmt.Fprintf(buf, "%010d %05d n \n", offsets[ref], ref.Gen)
		}
		i = j + 1
	}
}
