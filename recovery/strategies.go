package recovery

import (
	"fmt"
	"sync"
)

// StrictStrategy fails on the first damaged object and never repairs.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(error, Location) Action { return ActionFail }

func (s *StrictStrategy) Repair() bool { return false }

// LenientStrategy skips damaged objects and records why.
type LenientStrategy struct {
	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(err error, location Location) Action {
	s.mu.Lock()
	s.errors = append(s.errors, fmt.Errorf("%s: %w", location, err))
	s.mu.Unlock()
	return ActionSkip
}

func (s *LenientStrategy) Repair() bool { return true }

// Errors returns the failures recorded so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}
