// Package export flattens an edit session into the PDF: each edited page
// gets an overlay content stream drawn over its original content.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfedit/builder"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/fonts"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/parser"
	"github.com/wudi/pdfedit/session"
	"github.com/wudi/pdfedit/writer"
)

// ErrExport wraps every fatal export failure.
var ErrExport = errors.New("error saving PDF")

// HighlightOpacityFactor scales the opacity of highlight strokes in the
// saved file.
const HighlightOpacityFactor = 0.5

type Config struct {
	// Incremental appends to the original file instead of rewriting it.
	Incremental bool
	// Compress flate-encodes the new content streams.
	Compress bool
	// HighlightFactor multiplies highlight stroke opacity.
	HighlightFactor float64
	// CoverPadding grows cover rectangles on every side.
	CoverPadding float64
}

func DefaultConfig() Config {
	return Config{Incremental: true, Compress: true, HighlightFactor: HighlightOpacityFactor}
}

type Option func(*Exporter)

func WithLogger(l observability.Logger) Option { return func(e *Exporter) { e.logger = l } }

func WithTracer(t observability.Tracer) Option { return func(e *Exporter) { e.tracer = t } }

// WithFontSource replaces the standard 14 fonts.
func WithFontSource(s FontSource) Option { return func(e *Exporter) { e.fonts = s } }

// WithInterceptor observes every object written.
func WithInterceptor(i writer.Interceptor) Option {
	return func(e *Exporter) { e.interceptors = append(e.interceptors, i) }
}

// Warning is a problem that dropped part of an edit without failing the
// export.
type Warning struct {
	Page    int
	EditID  string
	Message string
}

func (w Warning) String() string {
	if w.EditID == "" {
		return fmt.Sprintf("page %d: %s", w.Page, w.Message)
	}
	return fmt.Sprintf("page %d, edit %s: %s", w.Page, w.EditID, w.Message)
}

type Result struct {
	Data     []byte
	Warnings []Warning
	// Skipped counts edits whose text was not drawn and pages that do not
	// exist in the document.
	Skipped int
}

type Exporter struct {
	cfg          Config
	logger       observability.Logger
	tracer       observability.Tracer
	fonts        FontSource
	interceptors []writer.Interceptor
}

func New(cfg Config, opts ...Option) *Exporter {
	e := &Exporter{cfg: cfg, fonts: StandardFonts{}, tracer: observability.NopTracer()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = observability.OrNop(e.logger)
	if e.cfg.HighlightFactor <= 0 {
		e.cfg.HighlightFactor = HighlightOpacityFactor
	}
	return e
}

// Export writes state over original and returns the new file. Only
// unreadable input and write failures are errors; problems with single
// edits become warnings.
func (x *Exporter) Export(ctx context.Context, original []byte, state session.State) (*Result, error) {
	ctx, span := x.tracer.StartSpan(ctx, observability.SpanExport)
	defer span.Finish()

	pipeline := filters.NewDefaultPipeline(filters.Limits{})
	doc, err := parser.NewDocumentParser(parser.Config{Filters: pipeline}).Parse(ctx, original)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	pages, err := parser.Pages(ctx, doc, pipeline)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("%w: page tree: %w", ErrExport, err)
	}

	run := &exportRun{
		Exporter: x,
		doc:      doc,
		update:   writer.NewUpdate(doc, original),
		fontRefs: map[string]raw.ObjectRef{},
		gsRefs:   map[float64]raw.ObjectRef{},
		fontErrs: map[string]error{},
		res:      &Result{},
	}
	for _, n := range state.PageNumbers() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n < 1 || n > len(pages) {
			run.warn(n, "", fmt.Sprintf("page does not exist (document has %d)", len(pages)))
			run.res.Skipped += len(state.Pages[n].Edits)
			continue
		}
		run.page(pages[n-1], state.Pages[n])
	}

	wb := &writer.WriterBuilder{}
	for _, i := range x.interceptors {
		wb.WithInterceptor(i)
	}
	wb.WithInterceptor(debugInterceptor{x.logger})
	var out bytes.Buffer
	wcfg := writer.Config{Incremental: x.cfg.Incremental, Compress: x.cfg.Compress}
	if err := wb.Build().Write(ctx, &out, run.update, wcfg); err != nil {
		span.SetError(err)
		x.logger.Error("export failed", observability.Error("error", err))
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	run.res.Data = out.Bytes()

	for _, w := range run.res.Warnings {
		x.logger.Warn("edit not fully exported", observability.Int("page", w.Page), observability.String("edit", w.EditID), observability.String("reason", w.Message))
	}
	span.SetTag("pages", len(state.PageNumbers()))
	span.SetTag("warnings", len(run.res.Warnings))
	x.logger.Info("document exported",
		observability.Int("pages", len(state.PageNumbers())),
		observability.Int("objects", run.update.Len()),
		observability.Int("bytes", len(run.res.Data)),
		observability.Int("skipped", run.res.Skipped),
		observability.Bool("incremental", x.cfg.Incremental))
	return run.res, nil
}

// exportRun carries the objects shared between pages of one export.
type exportRun struct {
	*Exporter
	doc      *raw.Document
	update   *writer.Update
	fontRefs map[string]raw.ObjectRef
	gsRefs   map[float64]raw.ObjectRef
	fontErrs map[string]error
	saveRef  *raw.ObjectRef
	res      *Result
}

func (r *exportRun) warn(page int, id, msg string) {
	r.res.Warnings = append(r.res.Warnings, Warning{Page: page, EditID: id, Message: msg})
}

func (r *exportRun) page(p parser.Page, ps session.PageState) {
	b := builder.NewContent(builder.WithReserved(r.existingNames(p.Resources)...))
	b.Save()
	if p.MediaBox.LLX != 0 || p.MediaBox.LLY != 0 {
		b.Transform(coords.Translate(p.MediaBox.LLX, p.MediaBox.LLY))
	}
	for _, st := range ps.Strokes {
		r.stroke(b, st)
	}
	for _, e := range ps.Edits {
		r.edit(b, p.Number, e)
	}
	b.Restore()

	fontRes := r.fontResources(b.Resources())
	overlay := append([]byte("Q\n"), b.Bytes()...)
	overlayRef := r.update.Add(raw.NewStream(raw.Dict(), overlay))

	page := p.Dict.Clone()
	page.Set("Resources", r.mergeResources(p.Resources, fontRes, b.Resources()))
	contents := raw.NewArray(raw.Ref(r.save().Num, 0))
	if c, ok := p.Dict.Get("Contents"); ok {
		if arr, isArr := r.doc.Resolve(c).(*raw.ArrayObj); isArr {
			contents.Items = append(contents.Items, arr.Items...)
		} else {
			contents.Append(c)
		}
	}
	contents.Append(raw.Ref(overlayRef.Num, overlayRef.Gen))
	page.Set("Contents", contents)
	r.update.Set(p.Ref, page)
}

// save is the stream that opens a graphics state before the original
// content. The overlay closes it, so drawing starts from the page defaults.
func (r *exportRun) save() raw.ObjectRef {
	if r.saveRef == nil {
		ref := r.update.Add(raw.NewStream(raw.Dict(), []byte("q\n")))
		r.saveRef = &ref
	}
	return *r.saveRef
}

func (r *exportRun) stroke(b *builder.ContentBuilder, st session.DrawingStroke) {
	alpha := st.Opacity
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	if st.Tool == session.ToolHighlight {
		alpha *= r.cfg.HighlightFactor
	}
	width := st.Width
	if width <= 0 {
		width = 1
	}
	b.DrawPolyline(st.Points, builder.LineOptions{
		StrokeColor: st.Color,
		LineWidth:   width,
		LineCap:     builder.RoundCap,
		LineJoin:    builder.RoundJoin,
		Alpha:       alpha,
	})
}

func (r *exportRun) edit(b *builder.ContentBuilder, page int, e session.TextEdit) {
	if e.CoverBackground {
		b.DrawRectangle(e.CoverRect(r.cfg.CoverPadding), builder.RectOptions{FillColor: builder.Color{R: 1, G: 1, B: 1}, Fill: true})
	}
	text := Sanitize(e.Text)
	if text == "" {
		r.warn(page, e.ID, "text is empty after removing unsupported characters")
		r.res.Skipped++
		return
	}
	if !e.Family.Valid() {
		r.warn(page, e.ID, fmt.Sprintf("unknown font family %d, using %s", int(e.Family), fonts.Helvetica))
	}
	face, err := r.fonts.Face(e.Family, e.Emphasis)
	if err != nil {
		r.warn(page, e.ID, fmt.Sprintf("font unavailable: %v", err))
		r.res.Skipped++
		return
	}
	if _, err := r.embed(face); err != nil {
		r.warn(page, e.ID, fmt.Sprintf("embed font %s: %v", face.Key(), err))
		r.res.Skipped++
		return
	}
	size := e.FontSize
	if size <= 0 {
		size = 12
	}
	x := e.Position.X + e.Align.Offset(face.Measure(text, size), e.Width)
	b.DrawText(text, x, e.Position.Y, builder.TextOptions{Font: face.Key(), FontSize: size, Color: e.Color})
}

// fontResources maps the overlay's font names of one page to the faces
// embedded for it.
func (r *exportRun) fontResources(res builder.Resources) map[string]raw.ObjectRef {
	out := make(map[string]raw.ObjectRef, len(res.Fonts))
	for _, name := range res.FontNames() {
		if ref, ok := r.fontRefs[res.Fonts[name]]; ok {
			out[name] = ref
		}
	}
	return out
}

// embed writes face once per export. A face that failed once is not
// retried.
func (r *exportRun) embed(face Face) (raw.ObjectRef, error) {
	key := face.Key()
	if ref, ok := r.fontRefs[key]; ok {
		return ref, nil
	}
	if err, ok := r.fontErrs[key]; ok {
		return raw.ObjectRef{}, err
	}
	ref, err := face.Embed(r.update)
	if err != nil {
		r.fontErrs[key] = err
		return raw.ObjectRef{}, err
	}
	r.fontRefs[key] = ref
	return ref, nil
}

func (r *exportRun) extGState(alpha float64) raw.ObjectRef {
	if ref, ok := r.gsRefs[alpha]; ok {
		return ref
	}
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("ExtGState"))
	d.Set("CA", raw.NumberFloat(alpha))
	d.Set("ca", raw.NumberFloat(alpha))
	ref := r.update.Add(d)
	r.gsRefs[alpha] = ref
	return ref
}

// mergeResources copies the page's effective resources and adds the
// overlay's fonts and graphics states.
func (r *exportRun) mergeResources(existing *raw.DictObj, fontRes map[string]raw.ObjectRef, res builder.Resources) *raw.DictObj {
	merged := raw.Dict()
	if existing != nil {
		merged = existing.Clone()
	}
	if len(fontRes) > 0 {
		fontDict := r.subDict(merged, "Font")
		for name, ref := range fontRes {
			fontDict.Set(name, raw.Ref(ref.Num, ref.Gen))
		}
		merged.Set("Font", fontDict)
	}
	if len(res.ExtGStates) > 0 {
		gsDict := r.subDict(merged, "ExtGState")
		for _, name := range res.ExtGStateNames() {
			ref := r.extGState(res.ExtGStates[name])
			gsDict.Set(name, raw.Ref(ref.Num, ref.Gen))
		}
		merged.Set("ExtGState", gsDict)
	}
	return merged
}

func (r *exportRun) subDict(res *raw.DictObj, key string) *raw.DictObj {
	if v, ok := res.Get(key); ok {
		if d, ok := r.doc.ResolveDict(v); ok {
			return d.Clone()
		}
	}
	return raw.Dict()
}

// existingNames lists the font and graphics state names a page already
// uses, so overlay names never shadow them.
func (r *exportRun) existingNames(res *raw.DictObj) []string {
	if res == nil {
		return nil
	}
	var names []string
	for _, key := range []string{"Font", "ExtGState"} {
		if v, ok := res.Get(key); ok {
			if d, ok := r.doc.ResolveDict(v); ok {
				names = append(names, d.Keys()...)
			}
		}
	}
	return names
}

type debugInterceptor struct{ logger observability.Logger }

func (d debugInterceptor) BeforeWrite(context.Context, raw.ObjectRef, raw.Object) error { return nil }

func (d debugInterceptor) AfterWrite(_ context.Context, ref raw.ObjectRef, n int64) error {
	d.logger.Debug("object written", observability.Int("object", ref.Num), observability.Int("bytes", int(n)))
	return nil
}
