package builder

import (
	"context"
	"strings"
	"testing"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/ir/raw"
)

type recorder struct {
	texts []contentstream.TextShow
	paths []contentstream.PaintedPath
}

func (r *recorder) Text(t contentstream.TextShow)    { r.texts = append(r.texts, t) }
func (r *recorder) Path(p contentstream.PaintedPath) { r.paths = append(r.paths, p) }
func (r *recorder) Image(coords.Matrix)              {}

func operators(t *testing.T, content []byte) []string {
	t.Helper()
	ops, err := contentstream.Parse(content)
	if err != nil {
		t.Fatalf("parse built stream: %v", err)
	}
	var out []string
	for _, op := range ops {
		out = append(out, op.Operator)
	}
	return out
}

func TestDrawTextRoundTrip(t *testing.T) {
	b := NewContent()
	b.DrawText("Good (bye)", 72, 700, TextOptions{Font: "Helvetica", FontSize: 12, Color: contentstream.RGB(1, 0, 0)})

	res := b.Resources()
	if len(res.Fonts) != 1 || res.Fonts["PEF1"] != "Helvetica" {
		t.Fatalf("unexpected font resources: %v", res.Fonts)
	}
	fontDict := raw.Dict()
	fontDict.Set("Type", raw.NameLiteral("Font"))
	fontDict.Set("Subtype", raw.NameLiteral("Type1"))
	fontDict.Set("BaseFont", raw.NameLiteral("Helvetica"))
	fonts := raw.Dict()
	fonts.Set("PEF1", fontDict)
	resources := raw.Dict()
	resources.Set("Font", fonts)

	rec := &recorder{}
	in := contentstream.NewInterpreter(raw.NewDocument("1.7"), nil, rec)
	if err := in.Run(context.Background(), b.Bytes(), resources, contentstream.NewGraphicsState(coords.Identity())); err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if len(rec.texts) != 1 {
		t.Fatalf("expected one text show, got %d", len(rec.texts))
	}
	got := rec.texts[0]
	if got.Text != "Good (bye)" {
		t.Fatalf("text mismatch: %q", got.Text)
	}
	if o := got.Origin(); o.X != 72 || o.Y != 700 {
		t.Fatalf("origin mismatch: %+v", o)
	}
	if got.Fill != contentstream.RGB(1, 0, 0) {
		t.Fatalf("fill mismatch: %+v", got.Fill)
	}
}

func TestPolylineStyles(t *testing.T) {
	b := NewContent()
	pts := []coords.Point{{X: 10, Y: 10}, {X: 20, Y: 15}, {X: 30, Y: 10}}
	b.DrawPolyline(pts, LineOptions{StrokeColor: contentstream.Black, LineWidth: 4, LineCap: RoundCap, LineJoin: RoundJoin, Alpha: 0.2})
	b.DrawPolyline(pts[:1], LineOptions{LineWidth: 3, LineCap: RoundCap})
	b.DrawPolyline(nil, LineOptions{})

	want := "q gs RG w J j m l l S Q q RG w J m l S Q"
	if got := strings.Join(operators(t, b.Bytes()), " "); got != want {
		t.Fatalf("operators:\n got %s\nwant %s", got, want)
	}
	if alpha := b.Resources().ExtGStates["PEGS1"]; alpha != 0.2 {
		t.Fatalf("alpha not registered: %v", b.Resources().ExtGStates)
	}

	rec := &recorder{}
	in := contentstream.NewInterpreter(raw.NewDocument("1.7"), nil, rec)
	if err := in.Run(context.Background(), b.Bytes(), raw.Dict(), contentstream.NewGraphicsState(coords.Identity())); err != nil {
		t.Fatalf("interpret: %v", err)
	}
	if len(rec.paths) != 2 {
		t.Fatalf("expected two paths, got %d", len(rec.paths))
	}
	if rec.paths[0].LineWidth != 4 || !rec.paths[0].Stroke {
		t.Fatalf("first path: %+v", rec.paths[0])
	}
	dot := rec.paths[1].Path.Subpaths[0].Points
	if len(dot) != 2 || dot[0].X != dot[1].X || dot[0].Y != dot[1].Y {
		t.Fatalf("single point should be a zero-length segment: %+v", dot)
	}
}

func TestExtGStatesAreShared(t *testing.T) {
	b := NewContent()
	line := []coords.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}
	b.DrawPolyline(line, LineOptions{Alpha: 0.5})
	b.DrawPolyline(line, LineOptions{Alpha: 0.5})
	b.DrawPolyline(line, LineOptions{Alpha: 0.25})
	b.DrawPolyline(line, LineOptions{Alpha: 1})
	if n := len(b.Resources().ExtGStates); n != 2 {
		t.Fatalf("expected two graphics states, got %d", n)
	}
	if names := b.Resources().ExtGStateNames(); names[0] != "PEGS1" || names[1] != "PEGS2" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestReservedNamesAreSkipped(t *testing.T) {
	b := NewContent(WithReserved("PEF1", "PEF2"), WithPrefix("PE"))
	if name := b.Font("Courier"); name != "PEF3" {
		t.Fatalf("expected PEF3, got %s", name)
	}
	if name := b.Font("Courier"); name != "PEF3" {
		t.Fatalf("font keys must be reused, got %s", name)
	}
	if name := b.Font("Times-Roman"); name != "PEF4" {
		t.Fatalf("expected PEF4, got %s", name)
	}
}

func TestRectangleAndTransform(t *testing.T) {
	b := NewContent()
	b.Save().Transform(coords.Translate(50, 60))
	b.DrawRectangle(coords.Rect{LLX: 70, LLY: 698, URX: 114, URY: 714}, RectOptions{Fill: true, FillColor: contentstream.White})
	b.Transform(coords.Identity())

	out := string(b.Bytes())
	for _, want := range []string{"1 0 0 1 50 60 cm\n", "70 698 44 16 re\n", "1 1 1 rg\n", "f\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if got := strings.Join(operators(t, []byte(out)), " "); got != "q cm q rg re f Q Q" {
		t.Fatalf("open saves must be closed: %s", got)
	}
	b.Restore().Restore().Restore()
	if len(b.Operations()) != 8 {
		t.Fatalf("unbalanced restore should be ignored: %d ops", len(b.Operations()))
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:           "0",
		-0.00001:    "0",
		12:          "12",
		0.5:         "0.5",
		1.23456789:  "1.2346",
		-3.25:       "-3.25",
		1e-7:        "0",
		123456789.5: "123456789.5",
	}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Fatalf("FormatNumber(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestEscapeString(t *testing.T) {
	got := string(EscapeString([]byte("a(b)\\c\n\x01\xe9")))
	want := `(a\(b\)\\c\n\001\351)`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
