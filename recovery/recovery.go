// Package recovery decides how parsing proceeds past damaged objects.
package recovery

import (
	"fmt"

	"github.com/wudi/pdfedit/ir/raw"
)

type Strategy interface {
	OnError(err error, location Location) Action
}

// Repairer is implemented by strategies that allow a damaged
// cross-reference table to be rebuilt by scanning the file.
type Repairer interface {
	Repair() bool
}

type Location struct {
	Ref       raw.ObjectRef
	Component string
}

func (l Location) String() string {
	return fmt.Sprintf("%s %d %d R", l.Component, l.Ref.Num, l.Ref.Gen)
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
)
