// Package plan reads YAML edit plans and applies them to an edit session,
// so edits can be scripted without an interactive view.
package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wudi/pdfedit/config"
	"github.com/wudi/pdfedit/controller"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/loader"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/session"
)

var ErrEmptyPlan = errors.New("plan has no steps")

// Plan is an ordered list of edit steps. Page is the default page of steps
// that name none.
type Plan struct {
	Page  int    `yaml:"page,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Step holds exactly one action.
type Step struct {
	SelectAll *PageRef `yaml:"select_all,omitempty"`
	Activate  *RunRef  `yaml:"activate,omitempty"`
	SetText   *SetText `yaml:"set_text,omitempty"`
	Insert    *Insert  `yaml:"insert,omitempty"`
	Draw      *Draw    `yaml:"draw,omitempty"`
	Erase     *Erase   `yaml:"erase,omitempty"`
	Delete    *EditRef `yaml:"delete,omitempty"`
	Undo      *int     `yaml:"undo,omitempty"`
	Redo      *int     `yaml:"redo,omitempty"`
}

type PageRef struct {
	Page int `yaml:"page,omitempty"`
}

// RunRef names a text run by ID ("p1-r0") or by its exact text.
type RunRef struct {
	Page int    `yaml:"page,omitempty"`
	Run  string `yaml:"run,omitempty"`
	Text string `yaml:"text,omitempty"`
}

type EditRef struct {
	Edit string `yaml:"edit"`
}

// SetText replaces the text of an edit, activating the run first when the
// target is a run given by ID or by its current text (Match). Inline
// markdown in Text sets the emphasis.
type SetText struct {
	Page  int    `yaml:"page,omitempty"`
	Edit  string `yaml:"edit,omitempty"`
	Run   string `yaml:"run,omitempty"`
	Match string `yaml:"match,omitempty"`
	Text  string `yaml:"text"`
}

type Insert struct {
	Page   int     `yaml:"page,omitempty"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Text   string  `yaml:"text,omitempty"`
	Size   float64 `yaml:"size,omitempty"`
	Width  float64 `yaml:"width,omitempty"`
	Family string  `yaml:"family,omitempty"`
	Align  string  `yaml:"align,omitempty"`
	Color  string  `yaml:"color,omitempty"`
}

type Draw struct {
	Page    int         `yaml:"page,omitempty"`
	Tool    string      `yaml:"tool"`
	Points  [][]float64 `yaml:"points"`
	Color   string      `yaml:"color,omitempty"`
	Width   float64     `yaml:"width,omitempty"`
	Opacity float64     `yaml:"opacity,omitempty"`
}

type Erase struct {
	Page   int     `yaml:"page,omitempty"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius,omitempty"`
}

// Action names the step's action.
func (s Step) Action() string {
	names := s.actions()
	if len(names) == 1 {
		return names[0]
	}
	return "invalid"
}

func (s Step) actions() []string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(s.SelectAll != nil, "select_all")
	add(s.Activate != nil, "activate")
	add(s.SetText != nil, "set_text")
	add(s.Insert != nil, "insert")
	add(s.Draw != nil, "draw")
	add(s.Erase != nil, "erase")
	add(s.Delete != nil, "delete")
	add(s.Undo != nil, "undo")
	add(s.Redo != nil, "redo")
	return names
}

// Load reads a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and checks a plan. Unknown keys are errors.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPlan
		}
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every step without touching a document.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return ErrEmptyPlan
	}
	var errs []error
	for i, s := range p.Steps {
		if err := s.validate(); err != nil {
			errs = append(errs, &StepError{Index: i, Action: s.Action(), Err: err})
		}
	}
	return errors.Join(errs...)
}

func (s Step) validate() error {
	switch names := s.actions(); len(names) {
	case 0:
		return errors.New("no action")
	case 1:
	default:
		return fmt.Errorf("several actions: %s", strings.Join(names, ", "))
	}
	switch {
	case s.Activate != nil && s.Activate.Run == "" && s.Activate.Text == "":
		return errors.New("activate needs run or text")
	case s.SetText != nil && s.SetText.Edit == "" && s.SetText.Run == "" && s.SetText.Match == "":
		return errors.New("set_text needs edit, run or match")
	case s.Delete != nil && s.Delete.Edit == "":
		return errors.New("delete needs edit")
	case s.Undo != nil && *s.Undo < 0, s.Redo != nil && *s.Redo < 0:
		return errors.New("count must not be negative")
	}
	if s.Draw != nil {
		if _, ok := session.ParseTool(s.Draw.Tool); !ok {
			return fmt.Errorf("unknown tool %q", s.Draw.Tool)
		}
		if len(s.Draw.Points) == 0 {
			return session.ErrEmptyStroke
		}
		for j, pt := range s.Draw.Points {
			if len(pt) != 2 {
				return fmt.Errorf("point %d has %d coordinates", j, len(pt))
			}
		}
		if s.Draw.Color != "" {
			if _, err := config.ParseHexColor(s.Draw.Color); err != nil {
				return err
			}
		}
	}
	if s.Insert != nil && s.Insert.Color != "" {
		if _, err := config.ParseHexColor(s.Insert.Color); err != nil {
			return err
		}
	}
	return nil
}

// StepError ties a failure to the step that caused it.
type StepError struct {
	Index  int
	Action string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Document is what a plan reads runs from. *loader.Document satisfies it.
type Document interface {
	PageCount() int
	TextRuns(ctx context.Context, page int) ([]loader.TextRun, error)
}

// Tools are the stroke and eraser settings draw and erase steps default
// to.
type Tools struct {
	Brush        controller.Brush
	Highlight    controller.HighlightStyle
	EraserRadius float64
}

func DefaultTools() Tools {
	return Tools{
		Brush:        controller.Brush{Color: session.Color{}, Size: controller.DefaultBrushSize},
		Highlight:    controller.DefaultHighlight,
		EraserRadius: controller.DefaultEraserRadius,
	}
}

type Option func(*applier)

func WithLogger(l observability.Logger) Option { return func(a *applier) { a.logger = l } }

func WithTools(t Tools) Option { return func(a *applier) { a.tools = t } }

type applier struct {
	plan   *Plan
	doc    Document
	sess   *session.EditSession
	logger observability.Logger
	tools  Tools
	runs   map[int][]loader.TextRun
}

// Apply runs the steps in order. A failing step is reported and skipped;
// the rest still run. Every step that changes the session records one
// history entry. The returned error joins the *StepError of each failed
// step, or is the context error when ctx ends first.
func (p *Plan) Apply(ctx context.Context, doc Document, sess *session.EditSession, opts ...Option) error {
	a := &applier{plan: p, doc: doc, sess: sess, tools: DefaultTools(), runs: map[int][]loader.TextRun{}}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = observability.OrNop(a.logger)

	var errs []error
	for i, s := range p.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.validate()
		if err == nil {
			err = a.step(ctx, s)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			se := &StepError{Index: i, Action: s.Action(), Err: err}
			a.logger.Warn("plan step failed", observability.Int("step", i+1), observability.String("action", se.Action), observability.Error("error", err))
			errs = append(errs, se)
			continue
		}
		a.logger.Debug("plan step applied", observability.Int("step", i+1), observability.String("action", s.Action()))
	}
	return errors.Join(errs...)
}

func (a *applier) step(ctx context.Context, s Step) error {
	switch {
	case s.SelectAll != nil:
		return a.selectAll(ctx, a.page(s.SelectAll.Page))
	case s.Activate != nil:
		run, err := a.resolve(ctx, *s.Activate)
		if err != nil {
			return err
		}
		if _, covered := a.sess.Covers(run); covered {
			return nil
		}
		a.sess.ActivateRun(run)
		a.sess.PushHistory()
	case s.SetText != nil:
		return a.setText(ctx, *s.SetText)
	case s.Insert != nil:
		return a.insert(*s.Insert)
	case s.Draw != nil:
		return a.draw(*s.Draw)
	case s.Erase != nil:
		r := s.Erase.Radius
		if r <= 0 {
			r = a.tools.EraserRadius
		}
		if a.sess.EraseNear(a.page(s.Erase.Page), coords.Point{X: s.Erase.X, Y: s.Erase.Y}, r) > 0 {
			a.sess.PushHistory()
		}
	case s.Delete != nil:
		if !a.sess.DeleteEdit(s.Delete.Edit) {
			return fmt.Errorf("no edit %q", s.Delete.Edit)
		}
		a.sess.PushHistory()
	case s.Undo != nil:
		for i := 0; i < *s.Undo; i++ {
			if !a.sess.Undo() {
				break
			}
		}
	case s.Redo != nil:
		for i := 0; i < *s.Redo; i++ {
			if !a.sess.Redo() {
				break
			}
		}
	}
	return nil
}

func (a *applier) page(n int) int {
	if n > 0 {
		return n
	}
	if a.plan.Page > 0 {
		return a.plan.Page
	}
	return 1
}

// pageInRange resolves n like page and checks it against the document.
func (a *applier) pageInRange(n int) (int, error) {
	page := a.page(n)
	if page > a.doc.PageCount() {
		return 0, &loader.PageOutOfRangeError{Page: page, Count: a.doc.PageCount()}
	}
	return page, nil
}

func (a *applier) pageRuns(ctx context.Context, page int) ([]loader.TextRun, error) {
	if runs, ok := a.runs[page]; ok {
		return runs, nil
	}
	if page < 1 || page > a.doc.PageCount() {
		return nil, &loader.PageOutOfRangeError{Page: page, Count: a.doc.PageCount()}
	}
	runs, err := a.doc.TextRuns(ctx, page)
	if err != nil {
		return nil, err
	}
	a.runs[page] = runs
	return runs, nil
}

// resolve finds a run by ID, whose page wins over the step's, or by text.
func (a *applier) resolve(ctx context.Context, ref RunRef) (loader.TextRun, error) {
	page := a.page(ref.Page)
	if ref.Run != "" {
		if p, _, ok := loader.ParseRunID(ref.Run); ok {
			page = p
		}
	}
	runs, err := a.pageRuns(ctx, page)
	if err != nil {
		return loader.TextRun{}, err
	}
	for _, r := range runs {
		if (ref.Run != "" && r.ID == ref.Run) || (ref.Run == "" && r.Text == ref.Text) {
			return r, nil
		}
	}
	if ref.Run != "" {
		return loader.TextRun{}, fmt.Errorf("no run %s on page %d", ref.Run, page)
	}
	return loader.TextRun{}, fmt.Errorf("no run with text %q on page %d", ref.Text, page)
}

func (a *applier) selectAll(ctx context.Context, page int) error {
	runs, err := a.pageRuns(ctx, page)
	if err != nil {
		return err
	}
	n := 0
	for _, r := range runs {
		if _, covered := a.sess.Covers(r); covered {
			continue
		}
		a.sess.ActivateRun(r)
		n++
	}
	if n > 0 {
		a.sess.PushHistory()
		a.logger.Info("runs converted", observability.Int("page", page), observability.Int("count", n))
	}
	return nil
}

func (a *applier) setText(ctx context.Context, st SetText) error {
	id := st.Edit
	if id == "" {
		run, err := a.resolve(ctx, RunRef{Page: st.Page, Run: st.Run, Text: st.Match})
		if err != nil {
			return err
		}
		id = a.sess.ActivateRun(run).ID
	}
	cur, ok := a.sess.Edit(id)
	if !ok {
		return fmt.Errorf("no edit %q", id)
	}
	text, emph := ParseStyledText(st.Text)
	patch := session.EditPatch{Text: &text}
	if emph != (fonts.Emphasis{}) {
		emph.Bold = emph.Bold || cur.Emphasis.Bold
		emph.Italic = emph.Italic || cur.Emphasis.Italic
		patch.Emphasis = &emph
	}
	a.sess.UpdateEdit(id, patch)
	a.sess.PushHistory()
	return nil
}

func (a *applier) insert(in Insert) error {
	page, err := a.pageInRange(in.Page)
	if err != nil {
		return err
	}
	var patch session.EditPatch
	if in.Color != "" {
		c, err := config.ParseHexColor(in.Color)
		if err != nil {
			return err
		}
		patch.Color = &c
	}
	if in.Text != "" {
		text, emph := ParseStyledText(in.Text)
		patch.Text = &text
		patch.Emphasis = &emph
	}
	if in.Size > 0 {
		patch.FontSize = &in.Size
	}
	if in.Width > 0 {
		patch.Width = &in.Width
	}
	if in.Family != "" {
		f := fonts.ParseFamily(in.Family)
		patch.Family = &f
	}
	if in.Align != "" {
		al := fonts.ParseAlign(in.Align)
		patch.Align = &al
	}
	e := a.sess.InsertNewText(page, coords.Point{X: in.X, Y: in.Y})
	a.sess.UpdateEdit(e.ID, patch)
	a.sess.PushHistory()
	return nil
}

func (a *applier) draw(d Draw) error {
	page, err := a.pageInRange(d.Page)
	if err != nil {
		return err
	}
	tool, _ := session.ParseTool(d.Tool)
	st := session.DrawingStroke{Page: page, Tool: tool, Color: a.tools.Brush.Color, Width: a.tools.Brush.Size, Opacity: 1}
	switch tool {
	case session.ToolMarker:
		st.Width = 2 * a.tools.Brush.Size
	case session.ToolHighlight:
		st.Color, st.Width, st.Opacity = a.tools.Highlight.Color, a.tools.Highlight.Width, a.tools.Highlight.Opacity
	}
	if d.Color != "" {
		c, err := config.ParseHexColor(d.Color)
		if err != nil {
			return err
		}
		st.Color = c
	}
	if d.Width > 0 {
		st.Width = d.Width
	}
	if d.Opacity > 0 {
		st.Opacity = d.Opacity
	}
	for _, pt := range d.Points {
		st.Points = append(st.Points, coords.Point{X: pt[0], Y: pt[1]})
	}
	if _, err := a.sess.CommitStroke(st); err != nil {
		return err
	}
	a.sess.PushHistory()
	return nil
}
