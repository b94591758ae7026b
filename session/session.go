package session

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/loader"
	"github.com/wudi/pdfedit/observability"
)

type Option func(*EditSession)

// WithIDGenerator replaces the uuid generator for edit and stroke IDs.
func WithIDGenerator(next func() string) Option {
	return func(s *EditSession) {
		if next != nil {
			s.nextID = next
		}
	}
}

// WithTolerance sets the per-axis distance under which two run origins are
// the same run.
func WithTolerance(tol float64) Option {
	return func(s *EditSession) {
		if tol > 0 {
			s.tolerance = tol
		}
	}
}

// WithHistoryLimit bounds the number of snapshots kept, including the
// initial empty one.
func WithHistoryLimit(n int) Option {
	return func(s *EditSession) {
		if n > 1 {
			s.limit = n
		}
	}
}

func WithLogger(l observability.Logger) Option {
	return func(s *EditSession) { s.logger = observability.OrNop(l) }
}

func WithTextDefaults(d TextDefaults) Option {
	return func(s *EditSession) { s.defaults = d }
}

// EditSession owns the edits, strokes and history of one document. It is
// safe for concurrent use.
type EditSession struct {
	mu        sync.Mutex
	state     State
	history   []State
	cursor    int
	limit     int
	tolerance float64
	nextID    func() string
	logger    observability.Logger
	defaults  TextDefaults
}

func New(opts ...Option) *EditSession {
	s := &EditSession{
		state:     State{Pages: map[int]PageState{}},
		limit:     DefaultHistoryLimit,
		tolerance: DefaultTolerance,
		nextID:    uuid.NewString,
		logger:    observability.NopLogger{},
		defaults:  DefaultTextDefaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history = []State{s.state.Clone()}
	return s
}

// ActivateRun converts a run into an edit, or returns the edit that already
// covers it.
func (s *EditSession) ActivateRun(run loader.TextRun) *TextEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.coveringLocked(run); e != nil {
		out := e.clone()
		return &out
	}
	src := run
	e := TextEdit{
		ID:              s.nextID(),
		Page:            run.Page,
		SourceRun:       &src,
		Text:            run.Text,
		Position:        run.Origin,
		FontSize:        run.FontSize,
		Family:          run.Family,
		Emphasis:        run.Emphasis,
		Color:           s.defaults.Color,
		Width:           run.Size.Width + ActivationPadding,
		CoverBackground: true,
	}
	s.appendEditLocked(e)
	s.logger.Debug("run activated", observability.String("run", run.ID), observability.String("edit", e.ID))
	out := e.clone()
	return &out
}

// InsertNewText adds a text block with the default attributes at pos.
func (s *EditSession) InsertNewText(page int, pos coords.Point) *TextEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.defaults
	e := TextEdit{
		ID:       s.nextID(),
		Page:     page,
		Text:     d.Text,
		Position: pos,
		FontSize: d.FontSize,
		Family:   d.Family,
		Emphasis: d.Emphasis,
		Align:    d.Align,
		Color:    d.Color,
		Width:    d.Width,
	}
	s.appendEditLocked(e)
	s.logger.Debug("text inserted", observability.Int("page", page), observability.String("edit", e.ID))
	out := e
	return &out
}

func (s *EditSession) appendEditLocked(e TextEdit) {
	p := s.state.Pages[e.Page]
	p.Edits = append(p.Edits, e)
	s.state.Pages[e.Page] = p
}

// UpdateEdit merges patch into the edit. History is not touched.
func (s *EditSession) UpdateEdit(id string, patch EditPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, i := s.findEditLocked(id)
	if i < 0 {
		return false
	}
	patch.apply(&s.state.Pages[p].Edits[i])
	return true
}

func (s *EditSession) DeleteEdit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, i := s.findEditLocked(id)
	if i < 0 {
		return false
	}
	ps := s.state.Pages[p]
	ps.Edits = append(ps.Edits[:i:i], ps.Edits[i+1:]...)
	s.state.Pages[p] = ps
	return true
}

func (s *EditSession) findEditLocked(id string) (int, int) {
	for n, p := range s.state.Pages {
		for i := range p.Edits {
			if p.Edits[i].ID == id {
				return n, i
			}
		}
	}
	return 0, -1
}

// CommitStroke stores a finished stroke, assigning an ID when it has none.
func (s *EditSession) CommitStroke(stroke DrawingStroke) (*DrawingStroke, error) {
	if len(stroke.Points) == 0 {
		return nil, ErrEmptyStroke
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stroke = stroke.clone()
	if stroke.ID == "" {
		stroke.ID = s.nextID()
	}
	p := s.state.Pages[stroke.Page]
	p.Strokes = append(p.Strokes, stroke)
	s.state.Pages[stroke.Page] = p
	out := stroke.clone()
	return &out, nil
}

// EraseNear removes every stroke on page with a point within radius of p
// and returns how many were removed.
func (s *EditSession) EraseNear(page int, p coords.Point, radius float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.state.Pages[page]
	if !ok {
		return 0
	}
	kept := ps.Strokes[:0:0]
	for _, st := range ps.Strokes {
		if !st.near(p, radius) {
			kept = append(kept, st)
		}
	}
	removed := len(ps.Strokes) - len(kept)
	if removed > 0 {
		ps.Strokes = kept
		s.state.Pages[page] = ps
		s.logger.Debug("strokes erased", observability.Int("page", page), observability.Int("count", removed))
	}
	return removed
}

// PushHistory records the current state, discarding anything that could
// have been redone.
func (s *EditSession) PushHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history[:s.cursor+1], s.state.Clone())
	if len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
	s.cursor = len(s.history) - 1
}

func (s *EditSession) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor <= 0 {
		return false
	}
	s.cursor--
	s.state = s.history[s.cursor].Clone()
	return true
}

func (s *EditSession) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.history)-1 {
		return false
	}
	s.cursor++
	s.state = s.history[s.cursor].Clone()
	return true
}

func (s *EditSession) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor > 0
}

func (s *EditSession) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor < len(s.history)-1
}

// Edits returns copies of a page's edits in insertion order.
func (s *EditSession) Edits(page int) []TextEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Pages[page].clone().Edits
}

// Strokes returns copies of a page's strokes in commit order.
func (s *EditSession) Strokes(page int) []DrawingStroke {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Pages[page].clone().Strokes
}

func (s *EditSession) Edit(id string) (TextEdit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, i := s.findEditLocked(id)
	if i < 0 {
		return TextEdit{}, false
	}
	return s.state.Pages[p].Edits[i].clone(), true
}

// Pages lists the pages holding edits or strokes.
func (s *EditSession) Pages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PageNumbers()
}

// Snapshot deep-copies the current state.
func (s *EditSession) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Restore replaces the current state. History is left as it is.
func (s *EditSession) Restore(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st.Clone()
}

// Covers returns the edit whose source run sits at run's origin.
func (s *EditSession) Covers(run loader.TextRun) (TextEdit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.coveringLocked(run); e != nil {
		return e.clone(), true
	}
	return TextEdit{}, false
}

func (s *EditSession) coveringLocked(run loader.TextRun) *TextEdit {
	p := s.state.Pages[run.Page]
	for i := range p.Edits {
		src := p.Edits[i].SourceRun
		if src == nil {
			continue
		}
		if math.Abs(src.Origin.X-run.Origin.X) < s.tolerance && math.Abs(src.Origin.Y-run.Origin.Y) < s.tolerance {
			return &p.Edits[i]
		}
	}
	return nil
}
