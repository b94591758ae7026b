package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/fonts"
)

// TextRun is the text shown by one text-showing operator. Runs are
// recomputed on every load and never modified.
type TextRun struct {
	ID   string
	Page int
	Text string
	// Origin is the baseline start in document space.
	Origin   coords.Point
	Size     coords.Size
	FontSize float64
	FontName string
	Family   fonts.Family
	Emphasis fonts.Emphasis
}

// RunID formats the identifier of the index-th run on a page.
func RunID(page, index int) string { return fmt.Sprintf("p%d-r%d", page, index) }

// ParseRunID is the inverse of RunID.
func ParseRunID(id string) (page, index int, ok bool) {
	rest, found := strings.CutPrefix(id, "p")
	if !found {
		return 0, 0, false
	}
	p, i, found := strings.Cut(rest, "-r")
	if !found {
		return 0, 0, false
	}
	page, err := strconv.Atoi(p)
	if err != nil || page < 1 {
		return 0, 0, false
	}
	index, err = strconv.Atoi(i)
	if err != nil || index < 0 {
		return 0, 0, false
	}
	return page, index, true
}

// Rect is the run's box from the baseline origin, Size.Width across and
// Size.Height up.
func (r TextRun) Rect() coords.Rect {
	return coords.Rect{
		LLX: r.Origin.X,
		LLY: r.Origin.Y,
		URX: r.Origin.X + r.Size.Width,
		URY: r.Origin.Y + r.Size.Height,
	}
}

// runCollector turns text shows into runs, dropping blank ones.
type runCollector struct {
	page int
	runs []TextRun
}

func (c *runCollector) Text(t contentstream.TextShow) {
	if strings.TrimSpace(t.Text) == "" {
		return
	}
	run := TextRun{
		ID:       RunID(c.page, len(c.runs)),
		Page:     c.page,
		Text:     t.Text,
		Origin:   t.Origin(),
		Size:     coords.Size{Width: t.Width(), Height: t.Size()},
		FontSize: t.Size(),
	}
	if t.Font != nil {
		run.FontName = fonts.StripSubset(t.Font.BaseFont)
		run.Family, run.Emphasis = t.Font.Family, t.Font.Emphasis
	}
	c.runs = append(c.runs, run)
}

func (c *runCollector) Path(contentstream.PaintedPath) {}
func (c *runCollector) Image(coords.Matrix)            {}

// tee forwards interpreter callbacks to several handlers.
type tee []contentstream.Handler

func (t tee) Text(s contentstream.TextShow) {
	for _, h := range t {
		h.Text(s)
	}
}

func (t tee) Path(p contentstream.PaintedPath) {
	for _, h := range t {
		h.Path(p)
	}
}

func (t tee) Image(m coords.Matrix) {
	for _, h := range t {
		h.Image(m)
	}
}
