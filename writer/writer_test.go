package writer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/internal/testpdf"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/parser"
	"github.com/wudi/pdfedit/recovery"
)

func parse(t *testing.T, data []byte) *raw.Document {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.Config{Recovery: recovery.NewStrictStrategy()}).Parse(context.Background(), data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func pages(t *testing.T, doc *raw.Document) []parser.Page {
	t.Helper()
	ps, err := parser.Pages(context.Background(), doc, filters.NewDefaultPipeline(filters.Limits{}))
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	return ps
}

func fixture() []byte {
	return testpdf.Generate(
		testpdf.Page{Texts: []testpdf.Text{{X: 72, Y: 700, Str: "Hello"}}},
		testpdf.Page{Texts: []testpdf.Text{{X: 72, Y: 700, Str: "Second"}}},
	)
}

// markFirstPage appends a content stream to page one.
func markFirstPage(t *testing.T, u *Update) raw.ObjectRef {
	t.Helper()
	first := pages(t, u.Doc)[0]
	stream := u.Add(raw.NewStream(raw.Dict(), []byte("0 0 1 rg 10 10 20 20 re f\n")))
	page := first.Dict.Clone()
	contents := raw.NewArray()
	if c, ok := first.Dict.Get("Contents"); ok {
		if arr, isArr := c.(*raw.ArrayObj); isArr {
			contents.Items = append(contents.Items, arr.Items...)
		} else {
			contents.Append(c)
		}
	}
	contents.Append(raw.Ref(stream.Num, stream.Gen))
	page.Set("Contents", contents)
	u.Set(first.Ref, page)
	return stream
}

type counting struct {
	before, after int
	bytes         int64
	fail          error
}

func (c *counting) BeforeWrite(context.Context, raw.ObjectRef, raw.Object) error {
	c.before++
	return c.fail
}

func (c *counting) AfterWrite(_ context.Context, _ raw.ObjectRef, n int64) error {
	c.after++
	c.bytes += n
	return nil
}

func TestIncrementalKeepsOriginalBytes(t *testing.T) {
	original := fixture()
	doc := parse(t, original)
	u := NewUpdate(doc, original)
	stream := markFirstPage(t, u)
	if stream.Num <= doc.MaxObjectNum() {
		t.Fatalf("new object %d collides with existing objects", stream.Num)
	}

	counter := &counting{}
	w := (&WriterBuilder{}).WithInterceptor(counter).Build()
	var out bytes.Buffer
	if err := w.Write(context.Background(), &out, u, Config{Incremental: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), original) {
		t.Fatalf("incremental output must start with the original bytes")
	}
	if counter.before != 2 || counter.after != 2 || counter.bytes == 0 {
		t.Fatalf("interceptor saw before=%d after=%d bytes=%d", counter.before, counter.after, counter.bytes)
	}
	tail := string(out.Bytes()[len(original):])
	if !strings.Contains(tail, "/Prev ") || !strings.Contains(tail, "/ID [<") {
		t.Fatalf("trailer lacks /Prev or /ID:\n%s", tail)
	}

	updated := parse(t, out.Bytes())
	ps := pages(t, updated)
	if len(ps) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(ps))
	}
	if !bytes.Contains(ps[0].Contents, []byte("(Hello) Tj")) || !bytes.Contains(ps[0].Contents, []byte("10 10 20 20 re")) {
		t.Fatalf("page one contents not merged:\n%s", ps[0].Contents)
	}
	if bytes.Contains(ps[1].Contents, []byte("re f")) {
		t.Fatalf("page two must be untouched")
	}
	if size, _ := updated.Trailer.Int("Size"); int(size) != stream.Num+1 {
		t.Fatalf("trailer size %d, want %d", size, stream.Num+1)
	}
}

func TestIncrementalIDKeepsPermanentHalf(t *testing.T) {
	original := fixture()
	doc := parse(t, original)
	u := NewUpdate(doc, original)
	markFirstPage(t, u)

	var first bytes.Buffer
	if err := (&WriterBuilder{}).Build().Write(context.Background(), &first, u, Config{Incremental: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	once := parse(t, first.Bytes())
	id1 := idArray(t, once)

	u2 := NewUpdate(once, first.Bytes())
	markFirstPage(t, u2)
	var second bytes.Buffer
	if err := (&WriterBuilder{}).Build().Write(context.Background(), &second, u2, Config{Incremental: true}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	id2 := idArray(t, parse(t, second.Bytes()))
	if !bytes.Equal(id1[0], id2[0]) {
		t.Fatalf("permanent id changed: %x vs %x", id1[0], id2[0])
	}
	if bytes.Equal(id1[1], id2[1]) {
		t.Fatalf("changing id did not change")
	}
	if len(id1[0]) != 16 {
		t.Fatalf("expected 16-byte id, got %d", len(id1[0]))
	}
}

func idArray(t *testing.T, doc *raw.Document) [2][]byte {
	t.Helper()
	v, ok := doc.Trailer.Get("ID")
	if !ok {
		t.Fatalf("no /ID in trailer")
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok || arr.Len() != 2 {
		t.Fatalf("malformed /ID: %#v", v)
	}
	return [2][]byte{arr.Items[0].(raw.StringObj).Value(), arr.Items[1].(raw.StringObj).Value()}
}

func TestFullRewrite(t *testing.T) {
	original := fixture()
	doc := parse(t, original)
	u := NewUpdate(doc, original)
	markFirstPage(t, u)

	var out bytes.Buffer
	if err := (&WriterBuilder{}).Build().Write(context.Background(), &out, u, Config{Version: "1.6"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-1.6\n")) {
		t.Fatalf("unexpected header %q", out.Bytes()[:10])
	}
	if bytes.Count(out.Bytes(), []byte("startxref")) != 1 {
		t.Fatalf("a rewrite has a single xref section")
	}
	rewritten := parse(t, out.Bytes())
	if _, ok := rewritten.Trailer.Get("Prev"); ok {
		t.Fatalf("a rewrite has no /Prev")
	}
	ps := pages(t, rewritten)
	if len(ps) != 2 || !bytes.Contains(ps[0].Contents, []byte("10 10 20 20 re")) {
		t.Fatalf("rewrite lost content")
	}
}

func TestCompressUpdatedStreams(t *testing.T) {
	original := fixture()
	doc := parse(t, original)
	u := NewUpdate(doc, original)
	ref := markFirstPage(t, u)

	var out bytes.Buffer
	if err := (&WriterBuilder{}).Build().Write(context.Background(), &out, u, Config{Incremental: true, Compress: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	updated := parse(t, out.Bytes())
	s, ok := updated.Objects[ref].(*raw.StreamObj)
	if !ok {
		t.Fatalf("stream %v missing", ref)
	}
	if f, _ := s.Dict.Name("Filter"); f != "FlateDecode" {
		t.Fatalf("stream not compressed: %v", s.Dict.KV)
	}
	if !bytes.Contains(pages(t, updated)[0].Contents, []byte("10 10 20 20 re")) {
		t.Fatalf("compressed stream does not decode")
	}
	if _, ok := u.objects[ref].(*raw.StreamObj).Dict.Get("Filter"); ok {
		t.Fatalf("source stream was modified")
	}
}

func TestWriteErrors(t *testing.T) {
	original := fixture()
	doc := parse(t, original)
	u := NewUpdate(doc, original)
	markFirstPage(t, u)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (&WriterBuilder{}).Build().Write(ctx, &bytes.Buffer{}, u, Config{Incremental: true}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}

	boom := errors.New("boom")
	w := (&WriterBuilder{}).WithInterceptor(&counting{fail: boom}).Build()
	if err := w.Write(context.Background(), &bytes.Buffer{}, u, Config{Incremental: true}); !errors.Is(err, boom) {
		t.Fatalf("expected interceptor error, got %v", err)
	}

	noRoot := raw.NewDocument("1.7")
	if err := w.Write(context.Background(), &bytes.Buffer{}, NewUpdate(noRoot, nil), Config{}); err == nil {
		t.Fatalf("expected error without a catalog")
	}
}

func TestSerializePrimitive(t *testing.T) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Font"))
	d.Set("Odd Name", raw.NameLiteral("A/B"))
	d.Set("W", raw.NewArray(raw.NumberInt(3), raw.NumberFloat(0.25), raw.NumberFloat(-0.0000001)))
	d.Set("S", raw.Str([]byte("a(b)")))
	d.Set("H", raw.HexStr([]byte{0xab, 0x01}))
	d.Set("R", raw.Ref(4, 0))
	d.Set("N", raw.NullObj{})
	d.Set("B", raw.Bool(true))
	got := string(serializePrimitive(d))
	want := "<</B true/H <AB01>/N null/Odd#20Name /A#2FB/R 4 0 R/S (a\\(b\\))/Type /Font/W [3 0.25 0]>>"
	if got != want {
		t.Fatalf("serialize:\n got %s\nwant %s", got, want)
	}
}
