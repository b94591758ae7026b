package contentstream

import (
	"errors"

	"github.com/wudi/pdfedit/coords"
)

// TextState holds the text parameters that q/Q save and restore.
type TextState struct {
	Font        *Font
	FontSize    float64
	CharSpacing float64
	WordSpacing float64
	Scale       float64 // Tz, percent
	Leading     float64
	Rise        float64
	RenderMode  TextRenderMode
}

type GraphicsState struct {
	CTM         coords.Matrix
	LineWidth   float64
	FillColor   Color
	StrokeColor Color
	Text        TextState
	stack       []GraphicsState
}

// NewGraphicsState returns the initial state for a page whose default user
// space is given by ctm.
func NewGraphicsState(ctm coords.Matrix) *GraphicsState {
	return &GraphicsState{CTM: ctm, LineWidth: 1, Text: TextState{Scale: 100}}
}

func (gs *GraphicsState) Save() {
	clone := *gs
	clone.stack = nil
	gs.stack = append(gs.stack, clone)
}

func (gs *GraphicsState) Restore() error {
	n := len(gs.stack)
	if n == 0 {
		return errors.New("state stack empty")
	}
	stack := gs.stack[:n-1]
	*gs = gs.stack[n-1]
	gs.stack = stack
	return nil
}

// Depth is the number of saved states.
func (gs *GraphicsState) Depth() int { return len(gs.stack) }
