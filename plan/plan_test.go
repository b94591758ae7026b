package plan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/internal/testpdf"
	"github.com/wudi/pdfedit/loader"
	"github.com/wudi/pdfedit/session"
)

func load(t *testing.T) *loader.Document {
	t.Helper()
	data := testpdf.Generate(
		testpdf.Page{Texts: []testpdf.Text{
			{X: 72, Y: 700, Str: "Hello"},
			{X: 72, Y: 650, Str: "World"},
		}},
		testpdf.Page{Texts: []testpdf.Text{{X: 72, Y: 700, Str: "Second"}}},
	)
	doc, err := loader.Load(context.Background(), data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return doc
}

func mustParse(t *testing.T, src string) *Plan {
	t.Helper()
	p, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p
}

func TestApplyPlan(t *testing.T) {
	p := mustParse(t, `
page: 1
steps:
  - activate: {run: p1-r0}
  - set_text: {run: p1-r0, text: "**Goodbye**"}
  - insert: {x: 50, y: 692, text: "New Text", size: 14, align: center, color: red}
  - draw: {tool: highlight, points: [[72,700],[90,702],[110,700]]}
  - draw: {tool: marker, page: 2, points: [[10,10]]}
`)
	s := session.New()
	if err := p.Apply(context.Background(), load(t), s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	edits := s.Edits(1)
	if len(edits) != 2 {
		t.Fatalf("expected 2 edits, got %d", len(edits))
	}
	if edits[0].Text != "Goodbye" || !edits[0].Emphasis.Bold {
		t.Fatalf("set_text not applied: %+v", edits[0])
	}
	if edits[1].Text != "New Text" || edits[1].FontSize != 14 || edits[1].Align != fonts.AlignCenter {
		t.Fatalf("insert not applied: %+v", edits[1])
	}
	hl := s.Strokes(1)
	if len(hl) != 1 || hl[0].Width != 20 || hl[0].Opacity != 0.4 || hl[0].Tool != session.ToolHighlight {
		t.Fatalf("highlight stroke: %+v", hl)
	}
	marker := s.Strokes(2)
	if len(marker) != 1 || marker[0].Width != 6 {
		t.Fatalf("marker stroke: %+v", marker)
	}

	undos := 0
	for s.Undo() {
		undos++
	}
	if undos != 5 {
		t.Fatalf("expected one history entry per step, got %d", undos)
	}
}

func TestApplyContinuesAfterFailures(t *testing.T) {
	p := mustParse(t, `
steps:
  - activate: {text: "Nowhere"}
  - select_all: {page: 1}
  - activate: {run: p9-r0}
  - delete: {edit: missing}
  - erase: {x: 0, y: 0}
`)
	s := session.New()
	err := p.Apply(context.Background(), load(t), s)
	if err == nil {
		t.Fatalf("expected step errors")
	}
	var se *StepError
	if !errors.As(err, &se) || se.Index != 0 || se.Action != "activate" {
		t.Fatalf("first error %v", err)
	}
	for _, want := range []string{"step 1 (activate)", "step 3 (activate)", "step 4 (delete)"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("%q missing from %v", want, err)
		}
	}
	if !errors.Is(err, loader.ErrPageOutOfRange) {
		t.Fatalf("page error lost: %v", err)
	}
	if n := len(s.Edits(1)); n != 2 {
		t.Fatalf("select_all converted %d runs", n)
	}
}

func TestInsertAndDrawCheckInputsFirst(t *testing.T) {
	p := mustParse(t, `
steps:
  - insert: {page: 9, x: 10, y: 10, text: lost}
  - draw: {page: 9, points: [[1,1]]}
  - insert: {x: 10, y: 10, text: tinted, color: "#12"}
  - insert: {page: 2, x: 10, y: 10, text: kept}
`)
	s := session.New()
	err := p.Apply(context.Background(), load(t), s)
	for _, want := range []string{"step 1 (insert)", "step 2 (draw)", "step 3 (insert)"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("%q missing from %v", want, err)
		}
	}
	if !errors.Is(err, loader.ErrPageOutOfRange) {
		t.Fatalf("page error lost: %v", err)
	}
	if pages := s.Pages(); len(pages) != 1 || pages[0] != 2 {
		t.Fatalf("failed steps left state behind: pages %v", pages)
	}
	if edits := s.Edits(2); len(edits) != 1 || edits[0].Text != "kept" {
		t.Fatalf("page 2 edits %+v", edits)
	}
	undos := 0
	for s.Undo() {
		undos++
	}
	if undos != 1 {
		t.Fatalf("failed steps recorded history: %d undos", undos)
	}
}

func TestSelectAllSkipsConverted(t *testing.T) {
	p := mustParse(t, `
steps:
  - activate: {text: World}
  - select_all: {}
  - select_all: {}
  - undo: 1
  - redo: 3
`)
	s := session.New()
	if err := p.Apply(context.Background(), load(t), s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n := len(s.Edits(1)); n != 2 {
		t.Fatalf("expected 2 edits, got %d", n)
	}
	if s.CanRedo() {
		t.Fatalf("redo past the end")
	}
}

func TestEraseAndDelete(t *testing.T) {
	s := session.New()
	e := s.InsertNewText(1, coords.Point{X: 10, Y: 10})
	p := mustParse(t, `
steps:
  - draw: {tool: pen, points: [[100,100],[120,100]]}
  - erase: {x: 101, y: 101}
  - delete: {edit: ` + e.ID + `}
`)
	if err := p.Apply(context.Background(), load(t), s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(s.Strokes(1)) != 0 || len(s.Edits(1)) != 0 {
		t.Fatalf("state not cleared: %+v %+v", s.Strokes(1), s.Edits(1))
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct{ src, want string }{
		{"", "no steps"},
		{"steps: []", "no steps"},
		{"steps:\n  - {}", "no action"},
		{"steps:\n  - {undo: 1, redo: 1}", "several actions"},
		{"steps:\n  - draw: {tool: brush, points: [[1,2]]}", "unknown tool"},
		{"steps:\n  - draw: {tool: pen, points: [[1]]}", "coordinates"},
		{"steps:\n  - draw: {tool: pen, points: []}", "no points"},
		{"steps:\n  - activate: {}", "needs run or text"},
		{"steps:\n  - wobble: {}", "wobble"},
		{"steps:\n  - insert: {x: 1, y: 1, color: nope}", "invalid colour"},
	}
	for _, c := range cases {
		_, err := Parse([]byte(c.src))
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%q: got %v, want %q", c.src, err, c.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte("steps:\n  - undo: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Steps) != 1 || p.Steps[0].Action() != "undo" || *p.Steps[0].Undo != 2 {
		t.Fatalf("steps %+v", p.Steps)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for a missing plan")
	}
}

func TestApplyCancelled(t *testing.T) {
	p := mustParse(t, "steps:\n  - select_all: {}\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Apply(ctx, load(t), session.New()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestParseStyledText(t *testing.T) {
	cases := []struct {
		in   string
		text string
		emph fonts.Emphasis
	}{
		{"plain", "plain", fonts.Emphasis{}},
		{"**Goodbye**", "Goodbye", fonts.Emphasis{Bold: true}},
		{"*lean*", "lean", fonts.Emphasis{Italic: true}},
		{"***both***", "both", fonts.Emphasis{Bold: true, Italic: true}},
		{"**half** done", "half done", fonts.Emphasis{}},
		{"a_b_c", "a_b_c", fonts.Emphasis{}},
		{"", "", fonts.Emphasis{}},
	}
	for _, c := range cases {
		text, emph := ParseStyledText(c.in)
		if text != c.text || emph != c.emph {
			t.Fatalf("%q: got %q %+v, want %q %+v", c.in, text, emph, c.text, c.emph)
		}
	}
}
