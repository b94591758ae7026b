package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/internal/testpdf"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/parser"
	"golang.org/x/crypto/blake2b"
)

func helloPDF() []byte {
	return testpdf.Generate(testpdf.Page{
		Width: 612, Height: 792,
		Texts: []testpdf.Text{
			{X: 72, Y: 700, Str: "Hello"},
			{X: 72, Y: 650, Str: "   "},
			{Font: "F2", Size: 18, X: 72, Y: 600, Str: "Title"},
		},
	}, testpdf.Page{Width: 300, Height: 400})
}

func mustLoad(t *testing.T, data []byte, opts ...Option) *Document {
	t.Helper()
	doc, err := Load(context.Background(), data, opts...)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return doc
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestLoadAndExtractRuns(t *testing.T) {
	doc := mustLoad(t, helloPDF(), WithName("hello.pdf"))
	if doc.PageCount() != 2 {
		t.Fatalf("pages: %d", doc.PageCount())
	}
	if doc.Name() != "hello.pdf" {
		t.Fatalf("name: %q", doc.Name())
	}
	runs, err := doc.TextRuns(context.Background(), 1)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected blank run dropped, got %+v", runs)
	}
	hello := runs[0]
	if hello.ID != "p1-r0" || hello.Page != 1 || hello.Text != "Hello" {
		t.Fatalf("hello run: %+v", hello)
	}
	if !near(hello.Origin.X, 72) || !near(hello.Origin.Y, 700) {
		t.Fatalf("origin: %+v", hello.Origin)
	}
	if !near(hello.FontSize, 12) || !near(hello.Size.Height, 12) {
		t.Fatalf("size: %+v font %v", hello.Size, hello.FontSize)
	}
	if want := fonts.MeasureString(fonts.Helvetica, "Hello", 12); !near(hello.Size.Width, want) {
		t.Fatalf("width: got %v want %v", hello.Size.Width, want)
	}
	if hello.FontName != "Helvetica" || hello.Family != fonts.Sans || hello.Emphasis != (fonts.Emphasis{}) {
		t.Fatalf("font: %+v", hello)
	}
	title := runs[1]
	if title.ID != "p1-r1" || title.Family != fonts.Serif || !title.Emphasis.Bold || !near(title.FontSize, 18) {
		t.Fatalf("title run: %+v", title)
	}
	r := hello.Rect()
	if !near(r.LLX, 72) || !near(r.URY, 712) {
		t.Fatalf("rect: %+v", r)
	}
}

func TestRunsAreRecomputed(t *testing.T) {
	doc := mustLoad(t, helloPDF())
	a, _ := doc.TextRuns(context.Background(), 1)
	a[0].Text = "mutated"
	b, _ := doc.TextRuns(context.Background(), 1)
	if b[0].Text != "Hello" {
		t.Fatalf("runs shared between calls")
	}
}

func TestPageSizeAndRange(t *testing.T) {
	doc := mustLoad(t, helloPDF())
	sz, err := doc.PageSize(2)
	if err != nil || sz != (coords.Size{Width: 300, Height: 400}) {
		t.Fatalf("page 2 size: %+v %v", sz, err)
	}
	for _, n := range []int{0, 3, -1} {
		_, err := doc.PageSize(n)
		if !errors.Is(err, ErrPageOutOfRange) {
			t.Fatalf("page %d: expected ErrPageOutOfRange, got %v", n, err)
		}
		var pe *PageOutOfRangeError
		if !errors.As(err, &pe) || pe.Page != n || pe.Count != 2 {
			t.Fatalf("page %d: typed error %+v", n, pe)
		}
		if _, err := doc.TextRuns(context.Background(), n); !errors.Is(err, ErrPageOutOfRange) {
			t.Fatalf("runs page %d: %v", n, err)
		}
		if _, err := doc.Render(context.Background(), n, 1); !errors.Is(err, ErrPageOutOfRange) {
			t.Fatalf("render page %d: %v", n, err)
		}
	}
}

func TestLoadFailures(t *testing.T) {
	cases := map[string][]byte{
		"garbage": []byte("definitely not a pdf"),
		"empty":   nil,
		"no pages": func() []byte {
			d := &testpdf.Doc{}
			pages := d.Add("<< /Type /Pages /Kids [] /Count 0 >>")
			return d.Build(d.Add(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages)))
		}(),
	}
	for name, data := range cases {
		_, err := Load(context.Background(), data)
		if !errors.Is(err, ErrDocumentLoad) {
			t.Fatalf("%s: expected ErrDocumentLoad, got %v", name, err)
		}
		var le *DocumentLoadError
		if !errors.As(err, &le) || le.Cause == nil {
			t.Fatalf("%s: missing cause", name)
		}
	}
}

func TestLoadRejectsEncrypted(t *testing.T) {
	d := &testpdf.Doc{}
	pages := d.Add("<< /Type /Pages /Kids [] /Count 0 >>")
	catalog := d.Add(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))
	enc := d.Add("<< /Filter /Standard /V 2 /R 3 >>")
	data := d.Build(catalog)
	data = bytes.Replace(data, []byte("/Root 2 0 R"), []byte(fmt.Sprintf("/Root 2 0 R /Encrypt %d 0 R", enc)), 1)

	_, err := Load(context.Background(), data)
	if !errors.Is(err, ErrDocumentLoad) || !errors.Is(err, parser.ErrEncrypted) {
		t.Fatalf("expected encrypted load error, got %v", err)
	}
}

func TestSourceBytesAreCopied(t *testing.T) {
	data := helloPDF()
	doc := mustLoad(t, data)
	want := blake2b.Sum256(data)
	data[0] = 'X'
	if doc.Bytes()[0] != '%' {
		t.Fatalf("document aliases caller bytes")
	}
	if doc.Fingerprint() != want {
		t.Fatalf("fingerprint mismatch")
	}
	if len(doc.ID()) != 16 {
		t.Fatalf("id: %q", doc.ID())
	}
}

func TestRender(t *testing.T) {
	mem := observability.NewMemoryLogger()
	doc := mustLoad(t, helloPDF(), WithLogger(mem))
	view, err := doc.Render(context.Background(), 1, 1.2)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b := view.Image.Bounds()
	if b.Dx() != 735 || b.Dy() != 951 {
		t.Fatalf("image size: %v", b)
	}
	if len(view.Runs) != 2 || view.Runs[0].ID != "p1-r0" {
		t.Fatalf("view runs: %+v", view.Runs)
	}
	vp := view.Viewport()
	box := vp.ScreenRect(view.Runs[0].Rect())
	ink := 0
	for y := int(box.LLY); y <= int(box.URY); y++ {
		for x := int(box.LLX); x <= int(box.URX); x++ {
			if c := view.Image.RGBAAt(x, y); c.R < 0x80 {
				ink++
			}
		}
	}
	if ink == 0 {
		t.Fatalf("no glyphs rendered inside %+v", box)
	}
	if mem.Count("info") == 0 {
		t.Fatalf("load not logged")
	}

	for _, z := range []float64{0, -1, math.Inf(1), math.NaN()} {
		if _, err := doc.Render(context.Background(), 1, z); !errors.Is(err, ErrInvalidZoom) {
			t.Fatalf("zoom %v: expected ErrInvalidZoom, got %v", z, err)
		}
	}
}

func TestRenderPixelBudget(t *testing.T) {
	doc := mustLoad(t, helloPDF())
	_, err := doc.Render(context.Background(), 1, 1e9)
	if !errors.Is(err, ErrRenderTooLarge) {
		t.Fatalf("expected ErrRenderTooLarge, got %v", err)
	}
	var tooLarge *RenderTooLargeError
	if !errors.As(err, &tooLarge) || tooLarge.Page != 1 || tooLarge.Limit != DefaultMaxRenderPixels {
		t.Fatalf("unexpected error detail: %#v", err)
	}

	small := mustLoad(t, helloPDF(), WithMaxRenderPixels(300*400))
	if _, err := small.Render(context.Background(), 2, 1); err != nil {
		t.Fatalf("page at the budget: %v", err)
	}
	if _, err := small.Render(context.Background(), 2, 1.01); !errors.Is(err, ErrRenderTooLarge) {
		t.Fatalf("page over the budget: expected ErrRenderTooLarge, got %v", err)
	}
}

func damagedPDF() []byte {
	d := &testpdf.Doc{}
	pages := d.Reserve()
	page := d.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 200 200] >>", pages))
	d.Set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R] /Count 1 >>", page))
	d.Add("<< /Broken (unterminated >>")
	return d.Build(d.Add(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages)))
}

func TestStrictLoad(t *testing.T) {
	mem := observability.NewMemoryLogger()
	doc := mustLoad(t, damagedPDF(), WithLogger(mem))
	if doc.PageCount() != 1 {
		t.Fatalf("lenient load kept %d pages", doc.PageCount())
	}
	if mem.Count("warn") != 1 || mem.Count("debug") != 1 {
		t.Fatalf("expected one skip warning and one detail line: %+v", mem.Entries())
	}

	_, err := Load(context.Background(), damagedPDF(), WithStrict(true))
	if !errors.Is(err, ErrDocumentLoad) {
		t.Fatalf("strict load: expected ErrDocumentLoad, got %v", err)
	}
}

func TestTracerSeesLoadAndRender(t *testing.T) {
	mem := observability.NewMemoryLogger()
	doc := mustLoad(t, helloPDF(), WithTracer(observability.LogTracer(mem)))
	if _, err := doc.Render(context.Background(), 2, 0.5); err != nil {
		t.Fatalf("render: %v", err)
	}
	spans := map[interface{}]bool{}
	for _, e := range mem.Entries() {
		if e.Message == "span finished" {
			spans[e.Fields["span"]] = true
		}
	}
	for _, name := range []string{observability.SpanLoad, observability.SpanRender} {
		if !spans[name] {
			t.Fatalf("span %s not logged: %+v", name, mem.Entries())
		}
	}
}

func TestCompressedContentAndMediaBoxOrigin(t *testing.T) {
	data := testpdf.GenerateWith(testpdf.Options{Compress: true}, testpdf.Page{
		Texts: []testpdf.Text{{X: 100, Y: 100, Str: "zip"}},
	})
	doc := mustLoad(t, data)
	runs, err := doc.TextRuns(context.Background(), 1)
	if err != nil || len(runs) != 1 || runs[0].Text != "zip" {
		t.Fatalf("compressed runs: %+v %v", runs, err)
	}

	shifted := bytes.Replace(helloPDF(), []byte("/MediaBox [0 0 612 792]"), []byte("/MediaBox [10 20 622 812]"), 1)
	doc = mustLoad(t, shifted)
	runs, err = doc.TextRuns(context.Background(), 1)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !near(runs[0].Origin.X, 62) || !near(runs[0].Origin.Y, 680) {
		t.Fatalf("origin not relative to MediaBox: %+v", runs[0].Origin)
	}
}

func TestCancelledContext(t *testing.T) {
	doc := mustLoad(t, helloPDF())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := doc.TextRuns(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestParseRunID(t *testing.T) {
	page, idx, ok := ParseRunID(RunID(12, 3))
	if !ok || page != 12 || idx != 3 {
		t.Fatalf("round trip: %d %d %v", page, idx, ok)
	}
	for _, bad := range []string{"r3", "p-r3", "px-r1", "p0-r1", "p3", "p1-rx", "p1-r-2"} {
		if _, _, ok := ParseRunID(bad); ok {
			t.Fatalf("%q accepted", bad)
		}
	}
}
