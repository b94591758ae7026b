// Package loader opens PDF documents for editing: it extracts the text runs
// of each page and renders page previews.
package loader

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/parser"
	"github.com/wudi/pdfedit/recovery"
	"github.com/wudi/pdfedit/render"
	"github.com/wudi/pdfedit/scanner"
	"golang.org/x/crypto/blake2b"
)

const (
	// DefaultMaxDecompressedSize caps any single decoded stream.
	DefaultMaxDecompressedSize = 256 << 20
	// DefaultMaxRenderPixels caps a preview image, about 256 MiB of RGBA.
	DefaultMaxRenderPixels = 64 << 20
)

type options struct {
	name   string
	logger observability.Logger
	tracer observability.Tracer
	strict bool
	limits scanner.Config
	faces  *render.FaceBank
	maxRaw int64
	maxPix int64
}

type Option func(*options)

// WithName records the file name the bytes came from.
func WithName(name string) Option { return func(o *options) { o.name = name } }

func WithLogger(l observability.Logger) Option { return func(o *options) { o.logger = l } }

func WithTracer(t observability.Tracer) Option { return func(o *options) { o.tracer = t } }

// WithStrict fails the load on the first unreadable object instead of
// skipping it.
func WithStrict(strict bool) Option { return func(o *options) { o.strict = strict } }

// WithLimits bounds the lexer for hostile input.
func WithLimits(cfg scanner.Config) Option { return func(o *options) { o.limits = cfg } }

// WithMaxDecompressedSize caps decoded stream sizes.
func WithMaxDecompressedSize(n int64) Option { return func(o *options) { o.maxRaw = n } }

// WithMaxRenderPixels caps the width times height of rendered pages.
func WithMaxRenderPixels(n int64) Option { return func(o *options) { o.maxPix = n } }

// WithFaceBank shares preview fonts between documents.
func WithFaceBank(b *render.FaceBank) Option { return func(o *options) { o.faces = b } }

// Document is a parsed PDF. Its methods are safe for concurrent use.
type Document struct {
	data        []byte
	name        string
	fingerprint [32]byte
	raw         *raw.Document
	pages       []parser.Page
	pipeline    *filters.Pipeline
	logger      observability.Logger
	tracer      observability.Tracer
	faces       *render.FaceBank
	maxPixels   int64
}

// Load parses data. The bytes are copied, so the caller may reuse them.
func Load(ctx context.Context, data []byte, opts ...Option) (*Document, error) {
	o := options{maxRaw: DefaultMaxDecompressedSize, maxPix: DefaultMaxRenderPixels}
	for _, opt := range opts {
		opt(&o)
	}
	logger := observability.OrNop(o.logger)
	tracer := o.tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	ctx, span := tracer.StartSpan(ctx, observability.SpanLoad)
	defer span.Finish()

	buf := append([]byte(nil), data...)
	d := &Document{
		data:        buf,
		name:        o.name,
		fingerprint: blake2b.Sum256(buf),
		pipeline:    filters.NewDefaultPipeline(filters.Limits{MaxDecompressedSize: o.maxRaw}),
		tracer:      tracer,
		faces:       o.faces,
		maxPixels:   o.maxPix,
	}
	d.logger = logger.With(observability.String("document", d.ID()))
	if o.name != "" {
		d.logger = d.logger.With(observability.String("name", o.name))
	}

	var strategy recovery.Strategy = recovery.NewLenientStrategy()
	if o.strict {
		strategy = recovery.NewStrictStrategy()
	}
	p := parser.NewDocumentParser(parser.Config{Limits: o.limits, Filters: d.pipeline, Recovery: strategy})
	doc, err := p.Parse(ctx, buf)
	if err != nil {
		span.SetError(err)
		d.logger.Error("load failed", observability.Error("error", err))
		return nil, &DocumentLoadError{Cause: err}
	}
	if skipped := p.Skipped(); len(skipped) > 0 {
		d.logger.Warn("skipped unreadable objects", observability.Int("count", len(skipped)))
		if lenient, ok := strategy.(*recovery.LenientStrategy); ok {
			for _, e := range lenient.Errors() {
				d.logger.Debug("object skipped", observability.Error("error", e))
			}
		}
	}
	pages, err := parser.Pages(ctx, doc, d.pipeline)
	if err != nil {
		span.SetError(err)
		return nil, &DocumentLoadError{Cause: fmt.Errorf("page tree: %w", err)}
	}
	if len(pages) == 0 {
		return nil, &DocumentLoadError{Cause: errors.New("document has no pages")}
	}
	d.raw, d.pages = doc, pages
	span.SetTag("pages", len(pages))
	d.logger.Info("document loaded", observability.Int("pages", len(pages)), observability.String("version", doc.Version))
	return d, nil
}

func (d *Document) PageCount() int { return len(d.pages) }

// Bytes returns the original bytes. Callers must not modify them.
func (d *Document) Bytes() []byte { return d.data }

func (d *Document) Name() string { return d.name }

// Fingerprint is the BLAKE2b-256 digest of the original bytes.
func (d *Document) Fingerprint() [32]byte { return d.fingerprint }

// ID is a short hex form of the fingerprint for logs.
func (d *Document) ID() string { return hex.EncodeToString(d.fingerprint[:8]) }

func (d *Document) page(n int) (*parser.Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, &PageOutOfRangeError{Page: n, Count: len(d.pages)}
	}
	return &d.pages[n-1], nil
}

// PageSize is the MediaBox size of a 1-based page.
func (d *Document) PageSize(n int) (coords.Size, error) {
	p, err := d.page(n)
	if err != nil {
		return coords.Size{}, err
	}
	return p.MediaBox.Size(), nil
}

// TextRuns extracts the runs of a page in content order.
func (d *Document) TextRuns(ctx context.Context, n int) ([]TextRun, error) {
	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	ctx, span := d.tracer.StartSpan(ctx, observability.SpanRuns)
	defer span.Finish()
	runs := &runCollector{page: n}
	if err := d.interpret(ctx, p, runs); err != nil {
		span.SetError(err)
		return nil, err
	}
	return runs.runs, nil
}

// PageView is a rendered page and the runs found while rendering it.
type PageView struct {
	Page  int
	Image *image.RGBA
	Size  coords.Size
	Zoom  float64
	Runs  []TextRun
}

// Viewport describes the mapping between the page and Image.
func (v *PageView) Viewport() coords.Viewport { return coords.NewViewport(v.Size, v.Zoom) }

// Render rasterizes a page at zoom. The image is ceil(w*zoom) by
// ceil(h*zoom) pixels; larger images fail with ErrRenderTooLarge.
func (d *Document) Render(ctx context.Context, n int, zoom float64) (*PageView, error) {
	if zoom <= 0 || math.IsInf(zoom, 0) || math.IsNaN(zoom) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidZoom, zoom)
	}
	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	size := p.MediaBox.Size()
	w, h := math.Ceil(size.Width*zoom), math.Ceil(size.Height*zoom)
	if d.maxPixels > 0 && w*h > float64(d.maxPixels) {
		return nil, &RenderTooLargeError{Page: n, Zoom: zoom, Width: w, Height: h, Limit: d.maxPixels}
	}
	ctx, span := d.tracer.StartSpan(ctx, observability.SpanRender)
	defer span.Finish()
	canvas := render.NewCanvas(coords.NewViewport(size, zoom), render.WithFaceBank(d.faces))
	runs := &runCollector{page: n}
	if err := d.interpret(ctx, p, tee{canvas, runs}); err != nil {
		span.SetError(err)
		return nil, err
	}
	return &PageView{Page: n, Image: canvas.RGBA(), Size: size, Zoom: zoom, Runs: runs.runs}, nil
}

// interpret runs a page's content. Document space has its origin at the
// MediaBox's lower-left corner. Content errors are logged and whatever was
// interpreted before them is kept; only cancellation fails the call.
func (d *Document) interpret(ctx context.Context, p *parser.Page, h contentstream.Handler) error {
	if p.ContentErr != nil {
		d.logger.Warn("page content partially decoded", observability.Int("page", p.Number), observability.Error("error", p.ContentErr))
	}
	base := coords.Translate(-p.MediaBox.LLX, -p.MediaBox.LLY)
	in := contentstream.NewInterpreter(d.raw, d.pipeline, h)
	err := in.Run(ctx, p.Contents, p.Resources, contentstream.NewGraphicsState(base))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	d.logger.Warn("page content interrupted", observability.Int("page", p.Number), observability.Error("error", err))
	return nil
}
