package contentstream

import (
	"context"
	"math"
	"testing"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/ir/raw"
)

type recorder struct {
	texts  []TextShow
	paths  []PaintedPath
	images []coords.Matrix
}

func (r *recorder) Text(t TextShow)       { r.texts = append(r.texts, t) }
func (r *recorder) Path(p PaintedPath)    { r.paths = append(r.paths, p) }
func (r *recorder) Image(m coords.Matrix) { r.images = append(r.images, m) }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

// helveticaResources returns a document and resources with /F1 bound to
// an unembedded Helvetica.
func helveticaResources() (*raw.Document, *raw.DictObj) {
	doc := raw.NewDocument("1.7")
	font := raw.Dict()
	font.Set("Type", raw.NameLiteral("Font"))
	font.Set("Subtype", raw.NameLiteral("Type1"))
	font.Set("BaseFont", raw.NameLiteral("Helvetica"))
	font.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	doc.Objects[raw.ObjectRef{Num: 5}] = font
	fonts := raw.Dict()
	fonts.Set("F1", raw.Ref(5, 0))
	res := raw.Dict()
	res.Set("Font", fonts)
	return doc, res
}

func run(t *testing.T, doc *raw.Document, res *raw.DictObj, content string) *recorder {
	t.Helper()
	rec := &recorder{}
	in := NewInterpreter(doc, nil, rec)
	if err := in.Run(context.Background(), []byte(content), res, NewGraphicsState(coords.Identity())); err != nil {
		t.Fatalf("run: %v", err)
	}
	return rec
}

func TestParseOperations(t *testing.T) {
	ops, err := Parse([]byte("q 1 0 0 1 10 20 cm /F1 12 Tf [(A) -120 (B)] TJ 0 0 1 RG Q"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"q", "cm", "Tf", "TJ", "RG", "Q"}
	if len(ops) != len(want) {
		t.Fatalf("expected %d ops, got %d", len(want), len(ops))
	}
	for i, op := range ops {
		if op.Operator != want[i] {
			t.Fatalf("op %d: expected %s, got %s", i, want[i], op.Operator)
		}
	}
	if len(ops[4].Operands) != 3 {
		t.Fatalf("RG operands misread as reference: %v", ops[4].Operands)
	}
}

func TestParseSkipsInlineImageData(t *testing.T) {
	ops, err := Parse([]byte("q BI /W 2 /H 1 /BPC 8 /CS /G ID \x00\xffEI\x01 EI Q"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ops) != 3 || ops[1].Operator != "BI" || ops[2].Operator != "Q" {
		t.Fatalf("unexpected ops %+v", ops)
	}
	if string(ops[1].Inline) != "\x00\xffEI\x01" {
		t.Fatalf("unexpected inline payload %q", ops[1].Inline)
	}
}

func TestParseReturnsPartialOnError(t *testing.T) {
	ops, err := Parse([]byte("q 1 w (unterminated"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(ops) != 2 {
		t.Fatalf("expected the two complete ops, got %d", len(ops))
	}
}

func TestTextShowOriginWidthAndSize(t *testing.T) {
	doc, res := helveticaResources()
	rec := run(t, doc, res, "BT /F1 12 Tf 72 700 Td (Hello) Tj ET")
	if len(rec.texts) != 1 {
		t.Fatalf("expected one text show, got %d", len(rec.texts))
	}
	ts := rec.texts[0]
	if ts.Text != "Hello" {
		t.Fatalf("unexpected text %q", ts.Text)
	}
	if o := ts.Origin(); !near(o.X, 72) || !near(o.Y, 700) {
		t.Fatalf("unexpected origin %+v", o)
	}
	if !near(ts.Size(), 12) {
		t.Fatalf("unexpected size %v", ts.Size())
	}
	if !near(ts.Width(), 27.336) {
		t.Fatalf("unexpected width %v", ts.Width())
	}
	if ts.Font.Family.String() != "sans" {
		t.Fatalf("unexpected family %s", ts.Font.Family)
	}
}

func TestTextMatrixAdvancesBetweenShows(t *testing.T) {
	doc, res := helveticaResources()
	rec := run(t, doc, res, "BT /F1 10 Tf 100 100 Td (AB) Tj (C) Tj ET")
	if len(rec.texts) != 2 {
		t.Fatalf("expected two shows, got %d", len(rec.texts))
	}
	// A=667 B=667 at 10pt
	if o := rec.texts[1].Origin(); !near(o.X, 113.34) || !near(o.Y, 100) {
		t.Fatalf("second show should start after the first, got %+v", o)
	}
}

func TestTJSpacingAndScaledMatrix(t *testing.T) {
	doc, res := helveticaResources()
	rec := run(t, doc, res, "q 2 0 0 2 0 0 cm BT /F1 10 Tf 1 0 0 1 50 60 Tm [(Hi) -500 (there)] TJ ET Q")
	ts := rec.texts[0]
	if ts.Text != "Hi there" {
		t.Fatalf("expected word break from TJ gap, got %q", ts.Text)
	}
	if o := ts.Origin(); !near(o.X, 100) || !near(o.Y, 120) {
		t.Fatalf("origin should include the CTM, got %+v", o)
	}
	if !near(ts.Size(), 20) {
		t.Fatalf("size should be scaled by the CTM, got %v", ts.Size())
	}
	// H722 i222 t278 h556 e556 r333 e556 = 3223, plus 500 gap, at 10pt and 2x
	if !near(ts.Width(), (3223+500)/1000.0*10*2) {
		t.Fatalf("unexpected width %v", ts.Width())
	}
}

func TestQuoteOperatorsMoveToNextLine(t *testing.T) {
	doc, res := helveticaResources()
	rec := run(t, doc, res, "BT /F1 12 Tf 14 TL 10 500 Td (one) Tj (two) ' 2 1 (three) \" ET")
	if len(rec.texts) != 3 {
		t.Fatalf("expected 3 shows, got %d", len(rec.texts))
	}
	if y := rec.texts[1].Origin().Y; !near(y, 486) {
		t.Fatalf("' should move down one leading, got %v", y)
	}
	if y := rec.texts[2].Origin().Y; !near(y, 472) {
		t.Fatalf("\" should move down one leading, got %v", y)
	}
}

func TestPathsAndColors(t *testing.T) {
	doc, res := helveticaResources()
	rec := run(t, doc, res, "q 0 0 1 rg 1 0 0 RG 2 w 10 10 100 50 re B Q 0.5 g 0 0 m 10 0 l 10 10 20 20 30 30 c f* 0 0 m 5 5 l n")
	if len(rec.paths) != 2 {
		t.Fatalf("expected two painted paths, got %d", len(rec.paths))
	}
	box := rec.paths[0]
	if !box.Fill || !box.Stroke || box.LineWidth != 2 {
		t.Fatalf("unexpected box paint %+v", box)
	}
	if box.FillColor != (Color{B: 1}) || box.StrokeColor != (Color{R: 1}) {
		t.Fatalf("unexpected colours %+v %+v", box.FillColor, box.StrokeColor)
	}
	if sp := box.Path.Subpaths; len(sp) != 1 || len(sp[0].Points) != 4 || !sp[0].Closed {
		t.Fatalf("unexpected rectangle path %+v", sp)
	}
	curve := rec.paths[1]
	if !curve.EvenOdd || curve.Stroke || curve.FillColor != Gray(0.5) {
		t.Fatalf("unexpected curve paint %+v", curve)
	}
	if pts := curve.Path.Subpaths[0].Points; pts[2].Type != PathCurveTo || pts[2].X != 30 {
		t.Fatalf("unexpected curve points %+v", pts)
	}
}

func TestFormXObjectsRecurseWithMatrix(t *testing.T) {
	doc, res := helveticaResources()
	form := raw.Dict()
	form.Set("Subtype", raw.NameLiteral("Form"))
	form.Set("Matrix", raw.Floats(1, 0, 0, 1, 100, 0))
	doc.Objects[raw.ObjectRef{Num: 7}] = raw.NewStream(form, []byte("BT /F1 10 Tf 5 5 Td (in form) Tj ET /Fm0 Do /Im0 Do"))
	img := raw.Dict()
	img.Set("Subtype", raw.NameLiteral("Image"))
	doc.Objects[raw.ObjectRef{Num: 8}] = raw.NewStream(img, nil)
	xobj := raw.Dict()
	xobj.Set("Fm0", raw.Ref(7, 0))
	xobj.Set("Im0", raw.Ref(8, 0))
	res.Set("XObject", xobj)

	rec := run(t, doc, res, "/Fm0 Do")
	if len(rec.texts) != 1 {
		t.Fatalf("self-referencing form should run once, got %d shows", len(rec.texts))
	}
	if o := rec.texts[0].Origin(); !near(o.X, 105) || !near(o.Y, 5) {
		t.Fatalf("form matrix not applied: %+v", o)
	}
	if len(rec.images) != 1 || rec.images[0][4] != 100 {
		t.Fatalf("expected one image inside the form, got %+v", rec.images)
	}
}

func TestUnbalancedRestoreIsIgnored(t *testing.T) {
	doc, res := helveticaResources()
	gs := NewGraphicsState(coords.Identity())
	in := NewInterpreter(doc, nil, &recorder{})
	if err := in.Run(context.Background(), []byte("Q Q q 2 0 0 2 0 0 cm"), res, gs); err != nil {
		t.Fatalf("run: %v", err)
	}
	if gs.CTM != coords.Identity() || gs.Depth() != 0 {
		t.Fatalf("state should be restored at end of stream, got %+v depth %d", gs.CTM, gs.Depth())
	}
}
