package export

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/internal/testpdf"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/loader"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/session"
	"github.com/wudi/pdfedit/writer"
)

func hello() []byte {
	return testpdf.Generate(
		testpdf.Page{Texts: []testpdf.Text{{X: 72, Y: 700, Str: "Hello"}}},
		testpdf.Page{Texts: []testpdf.Text{{X: 72, Y: 700, Str: "Second"}}},
	)
}

func plain() Config {
	cfg := DefaultConfig()
	cfg.Compress = false
	return cfg
}

func runs(t *testing.T, data []byte, page int) []loader.TextRun {
	t.Helper()
	doc, err := loader.Load(context.Background(), data)
	require.NoError(t, err)
	rs, err := doc.TextRuns(context.Background(), page)
	require.NoError(t, err)
	return rs
}

func findRun(rs []loader.TextRun, text string) (loader.TextRun, bool) {
	for _, r := range rs {
		if r.Text == text {
			return r, true
		}
	}
	return loader.TextRun{}, false
}

func TestReplaceText(t *testing.T) {
	original := hello()
	s := session.New()
	rs := runs(t, original, 1)
	require.Len(t, rs, 1)
	e := s.ActivateRun(rs[0])
	text, width := "Goodbye", 200.0
	require.True(t, s.UpdateEdit(e.ID, session.EditPatch{Text: &text, Width: &width}))

	log := observability.NewMemoryLogger()
	res, err := New(plain(), WithLogger(log)).Export(context.Background(), original, s.Snapshot())
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Zero(t, res.Skipped)
	assert.True(t, bytes.HasPrefix(res.Data, original), "incremental save keeps the original bytes")
	assert.Contains(t, string(res.Data), "72 700 27.336 12 re", "the cover keeps the source run bounds after a width change")
	assert.Contains(t, string(res.Data), "(Goodbye) Tj")
	assert.Equal(t, 1, log.Count("info"))

	after := runs(t, res.Data, 1)
	got, ok := findRun(after, "Goodbye")
	require.True(t, ok, "runs: %+v", after)
	assert.InDelta(t, 72, got.Origin.X, 1e-6)
	assert.InDelta(t, 700, got.Origin.Y, 1e-6)
	assert.Equal(t, fonts.Sans, got.Family)

	second := runs(t, res.Data, 2)
	require.Len(t, second, 1)
	assert.Equal(t, "Second", second[0].Text)
}

func TestStrokes(t *testing.T) {
	s := session.New()
	_, err := s.CommitStroke(session.DrawingStroke{
		Page: 1, Tool: session.ToolHighlight, Color: contentstream.Color{R: 1, G: 0.8},
		Width: 20, Opacity: 0.4, Points: []coords.Point{{X: 10, Y: 10}, {X: 50, Y: 10}},
	})
	require.NoError(t, err)
	_, err = s.CommitStroke(session.DrawingStroke{
		Page: 1, Tool: session.ToolPen, Color: contentstream.Black,
		Width: 3, Opacity: 1, Points: []coords.Point{{X: 200, Y: 200}},
	})
	require.NoError(t, err)

	res, err := New(plain()).Export(context.Background(), hello(), s.Snapshot())
	require.NoError(t, err)
	out := string(res.Data)
	assert.Contains(t, out, "/CA 0.2")
	assert.Contains(t, out, "/ca 0.2")
	assert.Contains(t, out, "/PEGS1 gs")
	assert.Contains(t, out, "200 200 m\n200 200 l\n", "a single point is a zero-length segment")
	assert.Contains(t, out, "1 J\n")
	assert.Contains(t, out, "1 j\n")
}

func TestBadEditsDoNotAbort(t *testing.T) {
	state := session.State{Pages: map[int]session.PageState{
		1: {Edits: []session.TextEdit{
			{ID: "blank", Page: 1, Text: "\x01\x02", Position: coords.Point{X: 10, Y: 10}, FontSize: 12, Width: 50, CoverBackground: true},
			{ID: "odd", Page: 1, Text: "odd family", Position: coords.Point{X: 10, Y: 40}, FontSize: 12, Width: 80, Family: fonts.Family(9)},
			{ID: "ok", Page: 1, Text: "fine\r\nline", Position: coords.Point{X: 10, Y: 70}, FontSize: 12, Width: 80},
		}},
		9: {Edits: []session.TextEdit{{ID: "lost", Page: 9, Text: "x"}}},
	}}
	log := observability.NewMemoryLogger()
	res, err := New(plain(), WithLogger(log)).Export(context.Background(), hello(), state)
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 3)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 3, log.Count("warn"))

	out := string(res.Data)
	assert.Contains(t, out, "10 10 50 12 re", "the blank edit still covers")
	assert.Contains(t, out, "(odd family) Tj")
	assert.Contains(t, out, "(fine line) Tj")
	assert.Contains(t, out, "/BaseFont /Helvetica")
}

func TestAlignment(t *testing.T) {
	state := session.State{Pages: map[int]session.PageState{
		1: {Edits: []session.TextEdit{
			{ID: "r", Page: 1, Text: "Right", Position: coords.Point{X: 100, Y: 100}, FontSize: 12, Width: 100, Align: fonts.AlignRight},
			{ID: "c", Page: 1, Text: "Middle", Position: coords.Point{X: 100, Y: 80}, FontSize: 12, Width: 100, Align: fonts.AlignCenter},
		}},
	}}
	res, err := New(plain()).Export(context.Background(), hello(), state)
	require.NoError(t, err)
	after := runs(t, res.Data, 1)

	right, ok := findRun(after, "Right")
	require.True(t, ok)
	assert.InDelta(t, 200-fonts.MeasureString(fonts.Helvetica, "Right", 12), right.Origin.X, 1e-3)
	middle, ok := findRun(after, "Middle")
	require.True(t, ok)
	assert.InDelta(t, 150-fonts.MeasureString(fonts.Helvetica, "Middle", 12)/2, middle.Origin.X, 1e-3)
}

func TestTrueTypeEmbedding(t *testing.T) {
	src := NewTrueTypeFonts(nil)
	require.NoError(t, src.Add("sans-regular", fonts.GoFont(fonts.Sans, fonts.Emphasis{})))

	state := session.State{Pages: map[int]session.PageState{
		1: {Edits: []session.TextEdit{
			{ID: "a", Page: 1, Text: "Embedded", Position: coords.Point{X: 72, Y: 500}, FontSize: 14, Width: 200},
			{ID: "b", Page: 1, Text: "Again", Position: coords.Point{X: 72, Y: 480}, FontSize: 14, Width: 200},
			{ID: "c", Page: 1, Text: "Bold", Position: coords.Point{X: 72, Y: 460}, FontSize: 14, Width: 200, Emphasis: fonts.Emphasis{Bold: true}},
		}},
	}}
	res, err := New(plain(), WithFontSource(src)).Export(context.Background(), hello(), state)
	require.NoError(t, err)
	out := string(res.Data)
	assert.Equal(t, 1, bytes.Count(res.Data, []byte("/FontFile2")), "one program per face")
	assert.Contains(t, out, "/Subtype /TrueType")
	assert.Contains(t, out, "/BaseFont /Helvetica-Bold", "faces without a program use the standard fonts")

	got, ok := findRun(runs(t, res.Data, 1), "Embedded")
	require.True(t, ok)
	tt, err := fonts.LoadTrueType("sans", fonts.GoFont(fonts.Sans, fonts.Emphasis{}))
	require.NoError(t, err)
	assert.InDelta(t, tt.Measure("Embedded", 14), got.Size.Width, 0.05)
}

func TestMissingFontFileSkipsText(t *testing.T) {
	src := NewTrueTypeFonts(map[string]string{"Mono-Regular": "/nonexistent/mono.ttf"})
	state := session.State{Pages: map[int]session.PageState{
		1: {Edits: []session.TextEdit{{ID: "m", Page: 1, Text: "code", Family: fonts.Mono, FontSize: 12, Width: 40}}},
	}}
	res, err := New(plain(), WithFontSource(src)).Export(context.Background(), hello(), state)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "m", res.Warnings[0].EditID)
	assert.Equal(t, 1, res.Skipped)
	assert.NotContains(t, string(res.Data), "(code) Tj")
}

// brokenFonts serves the standard faces except mono, whose embedding fails.
type brokenFonts struct{}

func (brokenFonts) Face(f fonts.Family, e fonts.Emphasis) (Face, error) {
	face, err := StandardFonts{}.Face(f, e)
	if err != nil || f != fonts.Mono {
		return face, err
	}
	return brokenFace{face}, nil
}

type brokenFace struct{ Face }

func (brokenFace) Key() string { return "broken" }

func (brokenFace) Embed(*writer.Update) (raw.ObjectRef, error) {
	return raw.ObjectRef{}, errors.New("cannot embed")
}

func TestEmbedFailureSkipsOnlyThatEdit(t *testing.T) {
	state := session.State{Pages: map[int]session.PageState{
		1: {Edits: []session.TextEdit{
			{ID: "sans", Page: 1, Text: "kept", Position: coords.Point{X: 100, Y: 400}, Family: fonts.Sans, FontSize: 12, Width: 60},
			{ID: "mono", Page: 1, Text: "code", Position: coords.Point{X: 100, Y: 300}, Family: fonts.Mono, FontSize: 12, Width: 60},
			{ID: "mono2", Page: 1, Text: "more", Position: coords.Point{X: 100, Y: 200}, Family: fonts.Mono, FontSize: 12, Width: 60},
		}},
	}}
	res, err := New(plain(), WithFontSource(brokenFonts{})).Export(context.Background(), hello(), state)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "mono", res.Warnings[0].EditID)
	assert.Contains(t, res.Warnings[0].Message, "cannot embed")
	assert.Equal(t, 2, res.Skipped)

	out := string(res.Data)
	assert.Contains(t, out, "(kept) Tj")
	assert.NotContains(t, out, "(code) Tj")
	assert.NotContains(t, out, "/broken")

	_, ok := findRun(runs(t, res.Data, 1), "kept")
	assert.True(t, ok)
}

func TestMediaBoxOrigin(t *testing.T) {
	d := &testpdf.Doc{}
	catalog := d.Reserve()
	tree := d.Reserve()
	font := d.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	content := d.Stream("", []byte("BT /F1 12 Tf 172 800 Td (Shifted) Tj ET"))
	page := d.Add("<< /Type /Page /Parent 2 0 R /MediaBox [100 100 712 892] /Resources << /Font << /F1 3 0 R >> >> /Contents 4 0 R >>")
	d.Set(tree, "<< /Type /Pages /Kids [5 0 R] /Count 1 >>")
	d.Set(catalog, "<< /Type /Catalog /Pages 2 0 R >>")
	require.Equal(t, 3, font)
	require.Equal(t, 4, content)
	require.Equal(t, 5, page)
	original := d.Build(catalog)

	s := session.New()
	rs := runs(t, original, 1)
	require.Len(t, rs, 1)
	assert.Equal(t, coords.Point{X: 72, Y: 700}, rs[0].Origin)
	e := s.ActivateRun(rs[0])
	text := "Moved"
	require.True(t, s.UpdateEdit(e.ID, session.EditPatch{Text: &text}))

	res, err := New(plain()).Export(context.Background(), original, s.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(res.Data), "1 0 0 1 100 100 cm")
	got, ok := findRun(runs(t, res.Data, 1), "Moved")
	require.True(t, ok)
	assert.InDelta(t, 72, got.Origin.X, 1e-6)
	assert.InDelta(t, 700, got.Origin.Y, 1e-6)
}

func TestCompressedFullRewrite(t *testing.T) {
	s := session.New()
	s.InsertNewText(2, coords.Point{X: 300, Y: 300})
	cfg := DefaultConfig()
	cfg.Incremental = false

	res, err := New(cfg).Export(context.Background(), hello(), s.Snapshot())
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(res.Data, hello()))
	assert.Equal(t, 1, bytes.Count(res.Data, []byte("startxref")))
	_, ok := findRun(runs(t, res.Data, 2), "New Text")
	assert.True(t, ok)
}

type countingInterceptor struct{ objects int }

func (c *countingInterceptor) BeforeWrite(context.Context, raw.ObjectRef, raw.Object) error {
	c.objects++
	return nil
}

func (c *countingInterceptor) AfterWrite(context.Context, raw.ObjectRef, int64) error { return nil }

func TestExportErrors(t *testing.T) {
	_, err := New(DefaultConfig()).Export(context.Background(), []byte("not a pdf"), session.State{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExport))
	assert.Equal(t, "error saving PDF", ErrExport.Error())

	c := &countingInterceptor{}
	res, err := New(DefaultConfig(), WithInterceptor(c)).Export(context.Background(), hello(), session.State{})
	require.NoError(t, err)
	assert.Zero(t, c.objects)
	assert.True(t, bytes.HasPrefix(res.Data, hello()))
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"plain":         "plain",
		"a\r\nb":        "a b",
		"tab\there":     "tab here",
		"caf\u00e9":     "caf",
		"\x00bell\x07":  "bell",
		"smile \u263a!": "smile !",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Sanitize(in), "input %q", in)
	}
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "edited_report.pdf", OutputName("/tmp/docs/report.pdf"))
	assert.Equal(t, "edited_document.pdf", OutputName(""))
	assert.Equal(t, "copy_a.pdf", PrefixedName("copy_", "a.pdf"))
}

func TestFaceKey(t *testing.T) {
	assert.Equal(t, "sans-regular", FaceKey(fonts.Sans, fonts.Emphasis{}))
	assert.Equal(t, "mono-bold-italic", FaceKey(fonts.Mono, fonts.Emphasis{Bold: true, Italic: true}))
	assert.Equal(t, "PDFEditSerifBold", baseFontName("serif-bold"))
	assert.False(t, math.IsNaN(standardFace(fonts.Courier).Measure("abc", 10)))
}
