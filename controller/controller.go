// Package controller turns pointer and keyboard input on a rendered page
// into edit session operations.
package controller

import (
	"errors"
	"strings"
	"sync"

	"github.com/rivo/uniseg"
	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/loader"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/session"
)

// ErrBusy is returned by Begin and Load while another operation holds the
// controller.
var ErrBusy = errors.New("controller busy")

// Mode is the active tool.
type Mode int

const (
	ModeSelectEdit Mode = iota
	ModeDrawPen
	ModeDrawMarker
	ModeDrawHighlight
	ModeErase
)

func (m Mode) String() string {
	switch m {
	case ModeDrawPen:
		return "pen"
	case ModeDrawMarker:
		return "marker"
	case ModeDrawHighlight:
		return "highlight"
	case ModeErase:
		return "erase"
	default:
		return "select"
	}
}

// ParseMode accepts the names produced by String.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "select", "select-edit", "edit":
		return ModeSelectEdit, true
	case "pen":
		return ModeDrawPen, true
	case "marker":
		return ModeDrawMarker, true
	case "highlight", "highlighter":
		return ModeDrawHighlight, true
	case "erase", "eraser":
		return ModeErase, true
	}
	return ModeSelectEdit, false
}

func (m Mode) drawing() bool { return m >= ModeDrawPen && m <= ModeDrawHighlight }

const (
	DefaultBrushSize    = 3.0
	DefaultEraserRadius = 10.0
)

// Brush is the user-chosen colour and size for pen and marker strokes.
type Brush struct {
	Color session.Color
	Size  float64
}

// HighlightStyle is fixed per controller; the brush does not affect it.
type HighlightStyle struct {
	Color   session.Color
	Width   float64
	Opacity float64
}

// DefaultHighlight is amber (#f59e0b) at 40% opacity, 20 units wide.
var DefaultHighlight = HighlightStyle{
	Color:   contentstream.RGB(0xf5/255.0, 0x9e/255.0, 0x0b/255.0),
	Width:   20,
	Opacity: 0.4,
}

type Config struct {
	Session *session.EditSession
	// Page, View and Runs set the initial page context; see Load.
	Page         int
	View         coords.Viewport
	Runs         []loader.TextRun
	Logger       observability.Logger
	Brush        Brush
	Highlight    HighlightStyle
	EraserRadius float64
}

// Controller is safe for concurrent use, but events are expected to arrive
// in order from a single input source.
type Controller struct {
	mu     sync.Mutex
	sess   *session.EditSession
	logger observability.Logger

	mode      Mode
	brush     Brush
	highlight HighlightStyle
	eraser    float64

	page  int
	view  coords.Viewport
	runs  []loader.TextRun
	index *hitIndex

	armed     bool
	focus     string
	focusBase session.TextEdit

	pending *session.DrawingStroke
	erasing bool
	erased  int

	busy   bool
	busyOp string
}

func New(cfg Config) *Controller {
	if cfg.Session == nil {
		cfg.Session = session.New()
	}
	if cfg.Brush.Size <= 0 {
		cfg.Brush.Size = DefaultBrushSize
	}
	if cfg.Highlight.Width <= 0 {
		cfg.Highlight = DefaultHighlight
	}
	if cfg.EraserRadius <= 0 {
		cfg.EraserRadius = DefaultEraserRadius
	}
	c := &Controller{
		sess:      cfg.Session,
		logger:    observability.OrNop(cfg.Logger),
		brush:     cfg.Brush,
		highlight: cfg.Highlight,
		eraser:    cfg.EraserRadius,
	}
	if cfg.Page > 0 {
		c.loadLocked(cfg.Page, cfg.View, cfg.Runs)
	}
	return c
}

func (c *Controller) Session() *session.EditSession { return c.sess }

// Begin marks a long operation such as export or navigation as in flight.
// Input is ignored until release is called.
func (c *Controller) Begin(op string) (release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return nil, ErrBusy
	}
	c.busy, c.busyOp = true, op
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.busy, c.busyOp = false, ""
			c.mu.Unlock()
		})
	}, nil
}

// Busy reports the operation holding the controller, if any.
func (c *Controller) Busy() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busyOp, c.busy
}

// Load switches to a page. The runs are indexed for hit testing and never
// modified. Focus and any pending stroke are settled first.
func (c *Controller) Load(page int, view coords.Viewport, runs []loader.TextRun) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.settleLocked()
	c.loadLocked(page, view, runs)
	return nil
}

func (c *Controller) loadLocked(page int, view coords.Viewport, runs []loader.TextRun) {
	c.page, c.view, c.runs = page, view, runs
	c.index = newHitIndex(coords.Rect{URX: view.PageWidth, URY: view.PageHeight}, 0)
	for i, r := range runs {
		c.index.add(r.Rect(), i)
	}
	c.armed = false
}

// settleLocked commits focus and ends any drag in progress.
func (c *Controller) settleLocked() {
	c.blurLocked()
	c.pending = nil
	c.endEraseLocked()
}

func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

func (c *Controller) Viewport() coords.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetMode switches tools, committing focus and dropping a pending stroke.
// It is ignored while busy.
func (c *Controller) SetMode(m Mode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	if m == c.mode {
		return true
	}
	c.settleLocked()
	c.armed = false
	c.mode = m
	c.logger.Debug("mode changed", observability.String("mode", m.String()))
	return true
}

// ArmAddText makes the next select-mode pointer down insert a new text block.
func (c *Controller) ArmAddText() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return
	}
	if c.mode != ModeSelectEdit {
		c.settleLocked()
		c.mode = ModeSelectEdit
	}
	c.armed = true
}

func (c *Controller) SetBrushColor(col session.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.brush.Color = col
}

func (c *Controller) SetBrushSize(size float64) {
	if size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.brush.Size = size
}

func (c *Controller) Brush() Brush {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brush
}

func (c *Controller) PointerDown(screen coords.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || c.page == 0 || !c.view.Contains(screen) {
		return
	}
	doc := c.view.ToDocument(screen)
	switch {
	case c.mode == ModeSelectEdit:
		c.selectAtLocked(doc)
	case c.mode.drawing():
		s := c.strokeLocked()
		s.Points = []coords.Point{doc}
		c.pending = &s
	case c.mode == ModeErase:
		c.erasing = true
		c.eraseLocked(doc)
	}
}

func (c *Controller) PointerMove(screen coords.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || !c.view.Contains(screen) {
		return
	}
	doc := c.view.ToDocument(screen)
	switch {
	case c.pending != nil:
		c.pending.Points = append(c.pending.Points, doc)
	case c.erasing:
		c.eraseLocked(doc)
	}
}

func (c *Controller) PointerUp(coords.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return
	}
	if c.pending != nil {
		stroke := *c.pending
		c.pending = nil
		if _, err := c.sess.CommitStroke(stroke); err != nil {
			c.logger.Warn("stroke dropped", observability.Error("error", err))
			return
		}
		c.sess.PushHistory()
		return
	}
	c.endEraseLocked()
}

// CancelStroke discards the stroke being drawn.
func (c *Controller) CancelStroke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// Pending returns a copy of the stroke being drawn.
func (c *Controller) Pending() (session.DrawingStroke, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return session.DrawingStroke{}, false
	}
	s := *c.pending
	s.Points = append([]coords.Point(nil), s.Points...)
	return s, true
}

func (c *Controller) strokeLocked() session.DrawingStroke {
	s := session.DrawingStroke{Page: c.page, Color: c.brush.Color, Width: c.brush.Size, Opacity: 1}
	switch c.mode {
	case ModeDrawMarker:
		s.Tool = session.ToolMarker
		s.Width = 2 * c.brush.Size
	case ModeDrawHighlight:
		s.Tool = session.ToolHighlight
		s.Color, s.Width, s.Opacity = c.highlight.Color, c.highlight.Width, c.highlight.Opacity
	default:
		s.Tool = session.ToolPen
	}
	return s
}

func (c *Controller) eraseLocked(doc coords.Point) {
	c.erased += c.sess.EraseNear(c.page, doc, c.eraser)
}

func (c *Controller) endEraseLocked() {
	if c.erasing && c.erased > 0 {
		c.sess.PushHistory()
	}
	c.erasing, c.erased = false, 0
}

func (c *Controller) selectAtLocked(doc coords.Point) {
	if c.armed {
		c.armed = false
		c.blurLocked()
		e := c.sess.InsertNewText(c.page, doc)
		c.sess.PushHistory()
		c.focusLocked(*e)
		return
	}
	if e, ok := c.editAtLocked(doc); ok {
		if e.ID != c.focus {
			c.blurLocked()
			c.focusLocked(e)
		}
		return
	}
	if run, ok := c.runAtLocked(doc); ok {
		c.blurLocked()
		if e, covered := c.sess.Covers(run); covered {
			c.focusLocked(e)
			return
		}
		e := c.sess.ActivateRun(run)
		c.sess.PushHistory()
		c.focusLocked(*e)
		c.logger.Debug("run converted", observability.String("run", run.ID))
		return
	}
	c.blurLocked()
}

// editAtLocked finds the most recently added edit whose box holds doc.
func (c *Controller) editAtLocked(doc coords.Point) (session.TextEdit, bool) {
	edits := c.sess.Edits(c.page)
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		box := coords.Rect{LLX: e.Position.X, LLY: e.Position.Y, URX: e.Position.X + e.Width, URY: e.Position.Y + e.FontSize}
		if box.Contains(doc) {
			return e, true
		}
	}
	return session.TextEdit{}, false
}

// runAtLocked picks the last painted run under doc.
func (c *Controller) runAtLocked(doc coords.Point) (loader.TextRun, bool) {
	if c.index == nil {
		return loader.TextRun{}, false
	}
	best := -1
	for _, i := range c.index.at(doc) {
		best = max(best, i)
	}
	if best < 0 {
		return loader.TextRun{}, false
	}
	return c.runs[best], true
}

// RunAt hit-tests the current page's runs at a screen point.
func (c *Controller) RunAt(screen coords.Point) (loader.TextRun, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.view.Contains(screen) {
		return loader.TextRun{}, false
	}
	return c.runAtLocked(c.view.ToDocument(screen))
}

func (c *Controller) focusLocked(e session.TextEdit) {
	c.focus, c.focusBase = e.ID, e
}

// Focused returns the edit receiving typed text.
func (c *Controller) Focused() (session.TextEdit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.focus == "" {
		return session.TextEdit{}, false
	}
	return c.sess.Edit(c.focus)
}

// Blur ends text entry, recording history if the edit changed.
func (c *Controller) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blurLocked()
}

func (c *Controller) blurLocked() {
	if c.focus == "" {
		return
	}
	cur, ok := c.sess.Edit(c.focus)
	if ok && changed(c.focusBase, cur) {
		c.sess.PushHistory()
	}
	c.focus, c.focusBase = "", session.TextEdit{}
}

func changed(a, b session.TextEdit) bool {
	return a.Text != b.Text || a.Position != b.Position || a.FontSize != b.FontSize ||
		a.Family != b.Family || a.Emphasis != b.Emphasis || a.Align != b.Align ||
		a.Color != b.Color || a.Width != b.Width || a.CoverBackground != b.CoverBackground
}

// TypeText appends s to the focused edit.
func (c *Controller) TypeText(s string) bool {
	return c.editText(func(cur string) string { return cur + s })
}

// Backspace removes the last grapheme cluster of the focused edit.
func (c *Controller) Backspace() bool {
	return c.editText(dropLastGrapheme)
}

// SetText replaces the focused edit's text.
func (c *Controller) SetText(s string) bool {
	return c.editText(func(string) string { return s })
}

func (c *Controller) editText(f func(string) string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || c.focus == "" {
		return false
	}
	cur, ok := c.sess.Edit(c.focus)
	if !ok {
		c.focus = ""
		return false
	}
	next := f(cur.Text)
	return c.sess.UpdateEdit(c.focus, session.EditPatch{Text: &next})
}

func dropLastGrapheme(s string) string {
	last := 0
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		last, _ = gr.Positions()
	}
	return s[:last]
}

// Update patches the focused edit's attributes. History is recorded when
// focus ends.
func (c *Controller) Update(patch session.EditPatch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || c.focus == "" {
		return false
	}
	return c.sess.UpdateEdit(c.focus, patch)
}

// DeleteFocused removes the focused edit and records history.
func (c *Controller) DeleteFocused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || c.focus == "" {
		return false
	}
	id := c.focus
	c.focus, c.focusBase = "", session.TextEdit{}
	if !c.sess.DeleteEdit(id) {
		return false
	}
	c.sess.PushHistory()
	return true
}

// SelectAllOnPage converts every run on the page that no edit covers yet.
// History is pushed once when anything was converted.
func (c *Controller) SelectAllOnPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy || c.page == 0 {
		return 0
	}
	c.blurLocked()
	n := 0
	for _, run := range c.runs {
		if _, covered := c.sess.Covers(run); covered {
			continue
		}
		c.sess.ActivateRun(run)
		n++
	}
	if n > 0 {
		c.sess.PushHistory()
		c.logger.Info("runs converted", observability.Int("page", c.page), observability.Int("count", n))
	}
	return n
}

func (c *Controller) Undo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.settleLocked()
	return c.sess.Undo()
}

func (c *Controller) Redo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	c.settleLocked()
	return c.sess.Redo()
}
