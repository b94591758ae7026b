package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentLoad is the user-facing failure for unreadable input.
	ErrDocumentLoad   = errors.New("failed to load PDF")
	ErrPageOutOfRange = errors.New("page out of range")
	ErrInvalidZoom    = errors.New("zoom must be positive")
	ErrRenderTooLarge = errors.New("rendered page too large")
)

// DocumentLoadError wraps the parser failure behind ErrDocumentLoad.
type DocumentLoadError struct {
	Cause error
}

func (e *DocumentLoadError) Error() string {
	if e.Cause == nil {
		return ErrDocumentLoad.Error()
	}
	return fmt.Sprintf("%s: %v", ErrDocumentLoad, e.Cause)
}

func (e *DocumentLoadError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDocumentLoad}
	}
	return []error{ErrDocumentLoad, e.Cause}
}

type PageOutOfRangeError struct {
	Page  int
	Count int
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("page %d out of range (document has %d pages)", e.Page, e.Count)
}

func (e *PageOutOfRangeError) Is(target error) bool { return target == ErrPageOutOfRange }

// RenderTooLargeError reports a zoom whose image exceeds the pixel budget.
type RenderTooLargeError struct {
	Page          int
	Zoom          float64
	Width, Height float64
	Limit         int64
}

func (e *RenderTooLargeError) Error() string {
	return fmt.Sprintf("%s: page %d at zoom %g is %gx%g pixels (limit %d)", ErrRenderTooLarge, e.Page, e.Zoom, e.Width, e.Height, e.Limit)
}

func (e *RenderTooLargeError) Is(target error) bool { return target == ErrRenderTooLarge }
