package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfedit/controller"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/export"
	"github.com/wudi/pdfedit/loader"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/plan"
	"github.com/wudi/pdfedit/render"
	"github.com/wudi/pdfedit/scripting"
	"github.com/wudi/pdfedit/session"
)

var errNoRecipe = errors.New("nothing to apply: pass --plan, --script or --select-all")

// faces is shared by every document a command opens.
var faces = render.NewFaceBank()

func openDocument(ctx context.Context, path string) (*loader.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", loader.ErrDocumentLoad, err)
	}
	opts := append(appCfg.LoaderOptions(logger, tracer, faces), loader.WithName(filepath.Base(path)))
	return loader.Load(ctx, data, opts...)
}

// workspace is an open document with its edit session and controller.
// Page loads and exports hold the controller while they run.
type workspace struct {
	doc  *loader.Document
	ctrl *controller.Controller
}

func newWorkspace(doc *loader.Document) *workspace {
	sess := session.New(appCfg.SessionOptions(logger)...)
	return &workspace{doc: doc, ctrl: controller.New(appCfg.ControllerConfig(sess, logger))}
}

func (w *workspace) session() *session.EditSession { return w.ctrl.Session() }

// showPage fetches page n and switches the controller to it.
func (w *workspace) showPage(ctx context.Context, n int) error {
	release, err := w.ctrl.Begin("navigate")
	if err != nil {
		return err
	}
	runs, err := w.doc.TextRuns(ctx, n)
	if err != nil {
		release()
		return err
	}
	size, err := w.doc.PageSize(n)
	release()
	if err != nil {
		return err
	}
	return w.ctrl.Load(n, coords.NewViewport(size, appCfg.View.Zoom), runs)
}

func (w *workspace) export(ctx context.Context) (*export.Result, error) {
	release, err := w.ctrl.Begin("export")
	if err != nil {
		return nil, err
	}
	defer release()
	opts := []export.Option{export.WithLogger(logger), export.WithFontSource(appCfg.FontSource())}
	if tracer != nil {
		opts = append(opts, export.WithTracer(tracer))
	}
	return export.New(appCfg.ExportConfig(), opts...).Export(ctx, w.doc.Bytes(), w.session().Snapshot())
}

// recipe is the set of edits applied to every input document.
type recipe struct {
	plan      *plan.Plan
	script    string
	selectAll bool
}

func loadRecipe(planPath, scriptPath string, selectAll bool) (*recipe, error) {
	r := &recipe{selectAll: selectAll}
	if planPath != "" {
		p, err := plan.Load(planPath)
		if err != nil {
			return nil, err
		}
		r.plan = p
	}
	if scriptPath != "" {
		src, err := os.ReadFile(scriptPath)
		if err != nil {
			return nil, fmt.Errorf("script: %w", err)
		}
		r.script = string(src)
	}
	if r.plan == nil && r.script == "" && !r.selectAll {
		return nil, errNoRecipe
	}
	return r, nil
}

func editorTools() plan.Tools {
	cc := appCfg.ControllerConfig(nil, logger)
	return plan.Tools{Brush: cc.Brush, Highlight: cc.Highlight, EraserRadius: cc.EraserRadius}
}

// apply opens a fresh workspace on doc: select-all first, then the plan,
// then the script. Failed plan steps are logged and the rest still run.
func (r *recipe) apply(ctx context.Context, doc *loader.Document) (*workspace, error) {
	w := newWorkspace(doc)
	sess := w.session()
	if r.selectAll {
		if err := convertAll(ctx, w); err != nil {
			return nil, err
		}
	}
	tools := editorTools()
	if r.plan != nil {
		if err := r.plan.Apply(ctx, doc, sess, plan.WithLogger(logger), plan.WithTools(tools)); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("plan steps failed", observability.String("document", doc.Name()), observability.Error("error", err))
		}
	}
	if r.script != "" {
		engine := scripting.NewEngine(sess, doc, logger, scripting.WithTools(tools))
		if _, err := engine.Execute(ctx, r.script); err != nil {
			return nil, fmt.Errorf("script: %w", err)
		}
	}
	return w, nil
}

// convertAll runs the controller's select-all on every page.
func convertAll(ctx context.Context, w *workspace) error {
	for n := 1; n <= w.doc.PageCount(); n++ {
		if err := w.showPage(ctx, n); err != nil {
			return err
		}
		w.ctrl.SelectAllOnPage()
	}
	return nil
}

// applyFile edits in and writes the flattened document to out.
func applyFile(ctx context.Context, r *recipe, in, out string) (*export.Result, error) {
	doc, err := openDocument(ctx, in)
	if err != nil {
		return nil, err
	}
	w, err := r.apply(ctx, doc)
	if err != nil {
		return nil, err
	}
	res, err := w.export(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %w", export.ErrExport, err)
	}
	return res, nil
}

func outputPath(in string) string {
	return filepath.Join(filepath.Dir(in), appCfg.OutputName(filepath.Base(in)))
}

// imagePath is the default PNG name for a page of in.
func imagePath(in string, page int) string {
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return fmt.Sprintf("%s-p%d.png", base, page)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
