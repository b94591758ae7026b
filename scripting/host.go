package scripting

import (
	"context"
	"fmt"
	"sync"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/loader"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/plan"
	"github.com/wudi/pdfedit/session"
)

type HostOption func(*SessionHost)

// WithTools sets the stroke and eraser defaults.
func WithTools(t plan.Tools) HostOption { return func(h *SessionHost) { h.tools = t } }

// SessionHost implements Host over an edit session.
type SessionHost struct {
	sess   *session.EditSession
	doc    plan.Document
	logger observability.Logger
	tools  plan.Tools

	mu    sync.Mutex
	runs  map[int][]loader.TextRun
	dirty bool
}

func NewSessionHost(sess *session.EditSession, doc plan.Document, logger observability.Logger, opts ...HostOption) *SessionHost {
	h := &SessionHost{
		sess:   sess,
		doc:    doc,
		logger: observability.OrNop(logger),
		tools:  plan.DefaultTools(),
		runs:   map[int][]loader.TextRun{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SessionHost) Pages() int { return h.doc.PageCount() }

func (h *SessionHost) pageRuns(ctx context.Context, page int) ([]loader.TextRun, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if runs, ok := h.runs[page]; ok {
		return runs, nil
	}
	if page < 1 || page > h.doc.PageCount() {
		return nil, &loader.PageOutOfRangeError{Page: page, Count: h.doc.PageCount()}
	}
	runs, err := h.doc.TextRuns(ctx, page)
	if err != nil {
		return nil, err
	}
	h.runs[page] = runs
	return runs, nil
}

func (h *SessionHost) Runs(ctx context.Context, page int) ([]RunInfo, error) {
	runs, err := h.pageRuns(ctx, page)
	if err != nil {
		return nil, err
	}
	out := make([]RunInfo, len(runs))
	for i, r := range runs {
		out[i] = RunInfo{
			ID:       r.ID,
			Text:     r.Text,
			X:        r.Origin.X,
			Y:        r.Origin.Y,
			Width:    r.Size.Width,
			Height:   r.Size.Height,
			FontSize: r.FontSize,
			Font:     r.FontName,
		}
	}
	return out, nil
}

func (h *SessionHost) Activate(ctx context.Context, runID string) (string, error) {
	page, _, ok := loader.ParseRunID(runID)
	if !ok {
		return "", fmt.Errorf("malformed run id %q", runID)
	}
	runs, err := h.pageRuns(ctx, page)
	if err != nil {
		return "", err
	}
	for _, r := range runs {
		if r.ID == runID {
			if e, covered := h.sess.Covers(r); covered {
				return e.ID, nil
			}
			h.markDirty()
			return h.sess.ActivateRun(r).ID, nil
		}
	}
	return "", fmt.Errorf("no run %s", runID)
}

func (h *SessionHost) SetText(editID, text string) error {
	if !h.sess.UpdateEdit(editID, session.EditPatch{Text: &text}) {
		return fmt.Errorf("no edit %q", editID)
	}
	h.markDirty()
	return nil
}

func (h *SessionHost) Insert(page int, x, y float64, text string) (string, error) {
	if page < 1 || page > h.doc.PageCount() {
		return "", &loader.PageOutOfRangeError{Page: page, Count: h.doc.PageCount()}
	}
	e := h.sess.InsertNewText(page, coords.Point{X: x, Y: y})
	if text != "" {
		h.sess.UpdateEdit(e.ID, session.EditPatch{Text: &text})
	}
	h.markDirty()
	return e.ID, nil
}

func (h *SessionHost) Draw(tool string, page int, points [][]float64) (string, error) {
	t, ok := session.ParseTool(tool)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", tool)
	}
	st := session.DrawingStroke{Page: page, Tool: t, Color: h.tools.Brush.Color, Width: h.tools.Brush.Size, Opacity: 1}
	switch t {
	case session.ToolMarker:
		st.Width = 2 * h.tools.Brush.Size
	case session.ToolHighlight:
		st.Color, st.Width, st.Opacity = h.tools.Highlight.Color, h.tools.Highlight.Width, h.tools.Highlight.Opacity
	}
	for i, p := range points {
		if len(p) != 2 {
			return "", fmt.Errorf("point %d has %d coordinates", i, len(p))
		}
		st.Points = append(st.Points, coords.Point{X: p[0], Y: p[1]})
	}
	out, err := h.sess.CommitStroke(st)
	if err != nil {
		return "", err
	}
	h.markDirty()
	return out.ID, nil
}

// Erase removes strokes near (x, y); a radius of zero or less uses the
// configured eraser.
func (h *SessionHost) Erase(page int, x, y, radius float64) int {
	if radius <= 0 {
		radius = h.tools.EraserRadius
	}
	n := h.sess.EraseNear(page, coords.Point{X: x, Y: y}, radius)
	if n > 0 {
		h.markDirty()
	}
	return n
}

// Undo and Redo first commit pending changes so they can be undone too.
func (h *SessionHost) Undo() bool {
	h.Commit()
	return h.sess.Undo()
}

func (h *SessionHost) Redo() bool {
	h.Commit()
	return h.sess.Redo()
}

func (h *SessionHost) Commit() bool {
	h.mu.Lock()
	dirty := h.dirty
	h.dirty = false
	h.mu.Unlock()
	if dirty {
		h.sess.PushHistory()
	}
	return dirty
}

func (h *SessionHost) Log(message string) {
	h.logger.Info("script", observability.String("message", message))
}

func (h *SessionHost) markDirty() {
	h.mu.Lock()
	h.dirty = true
	h.mu.Unlock()
}
