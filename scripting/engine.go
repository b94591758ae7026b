// Package scripting runs JavaScript edit scripts against an edit session.
package scripting

import (
	"context"
)

// Engine represents a scripting engine (e.g., JavaScript).
type Engine interface {
	// Execute runs a script and returns its completion value.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterHost exposes the editing API to scripts.
	RegisterHost(host Host) error
}

// Host is the editing surface scripts see. Mutations are not recorded in
// the undo history until Commit.
type Host interface {
	Pages() int
	Runs(ctx context.Context, page int) ([]RunInfo, error)
	// Activate converts a run into an edit and returns the edit ID.
	Activate(ctx context.Context, runID string) (string, error)
	SetText(editID, text string) error
	Insert(page int, x, y float64, text string) (string, error)
	Draw(tool string, page int, points [][]float64) (string, error)
	Erase(page int, x, y, radius float64) int
	Undo() bool
	Redo() bool
	// Commit records one history entry if anything changed since the last.
	Commit() bool
	Log(message string)
}

// RunInfo is a text run as scripts see it.
type RunInfo struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"fontSize"`
	Font     string  `json:"font"`
}
