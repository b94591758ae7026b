package scripting

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/plan"
	"github.com/wudi/pdfedit/session"
)

// GojaEngine is not safe for concurrent use.
type GojaEngine struct {
	vm   *goja.Runtime
	host Host
	// ctx is the context of the running Execute call.
	ctx context.Context
}

// NewEngine binds a runtime to sess. doc supplies the text runs.
func NewEngine(sess *session.EditSession, doc plan.Document, logger observability.Logger, opts ...HostOption) *GojaEngine {
	e := &GojaEngine{vm: goja.New(), ctx: context.Background()}
	e.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	_ = e.RegisterHost(NewSessionHost(sess, doc, logger, opts...))
	return e
}

func (e *GojaEngine) Execute(ctx context.Context, script string) (result interface{}, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("script panicked: %v", r)
		}
	}()
	if e.host != nil {
		defer e.host.Commit()
	}
	e.ctx = ctx
	defer func() { e.ctx = context.Background() }()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := e.vm.RunString(script)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause := interrupted.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	return val.Export(), nil
}

func (e *GojaEngine) RegisterHost(host Host) error {
	e.host = host
	bindings := map[string]interface{}{
		"pages": host.Pages,
		"runs": func(page int) ([]RunInfo, error) {
			return host.Runs(e.ctx, page)
		},
		"activate": func(runID string) (string, error) {
			return host.Activate(e.ctx, runID)
		},
		"setText": host.SetText,
		"insert":  host.Insert,
		"draw": func(call goja.FunctionCall) goja.Value {
			var points [][]float64
			if err := e.vm.ExportTo(call.Argument(1), &points); err != nil {
				panic(e.vm.NewTypeError("draw: points must be [[x, y], ...]"))
			}
			page := 1
			if arg := call.Argument(2); !goja.IsUndefined(arg) {
				page = int(arg.ToInteger())
			}
			id, err := host.Draw(call.Argument(0).String(), page, points)
			if err != nil {
				panic(e.vm.NewGoError(err))
			}
			return e.vm.ToValue(id)
		},
		"erase":  host.Erase,
		"undo":   host.Undo,
		"redo":   host.Redo,
		"commit": host.Commit,
		"log":    host.Log,
	}
	for name, fn := range bindings {
		if err := e.vm.Set(name, fn); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return nil
}
