package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/recovery"
	"github.com/wudi/pdfedit/scanner"
	"github.com/wudi/pdfedit/xref"
)

var (
	ErrEncrypted = errors.New("encrypted documents are not supported")
	ErrNoHeader  = errors.New("missing %PDF header")
	ErrNoCatalog = errors.New("document catalog not found")
)

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	XRef    xref.ResolverConfig
	Limits  scanner.Config
	Filters *filters.Pipeline
	Cache   Cache
	// Recovery decides what happens to objects that cannot be loaded.
	// The default skips them and reports them through Skipped.
	Recovery recovery.Strategy
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg     Config
	skipped []raw.ObjectRef
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.Filters == nil {
		cfg.Filters = filters.NewDefaultPipeline(filters.Limits{})
	}
	if cfg.XRef.Filters == nil {
		cfg.XRef.Filters = cfg.Filters
	}
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.NewLenientStrategy()
	}
	if r, ok := cfg.Recovery.(recovery.Repairer); ok {
		cfg.XRef.Repair = r.Repair()
	}
	return &DocumentParser{cfg: cfg}
}

// Skipped lists the objects dropped during the last lenient Parse.
func (p *DocumentParser) Skipped() []raw.ObjectRef { return p.skipped }

func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*raw.Document, error) {
	p.skipped = nil
	version, err := detectHeaderVersion(data)
	if err != nil {
		return nil, err
	}
	table, err := xref.NewResolver(p.cfg.XRef).Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}

	doc := raw.NewDocument(version)
	doc.Trailer = table.Trailer()
	doc.StartXRef = table.StartXRef()
	if _, ok := doc.Trailer.Get("Encrypt"); ok {
		doc.Encrypted = true
		return doc, ErrEncrypted
	}

	loader, err := (&ObjectLoaderBuilder{}).
		WithData(data).
		WithXRef(table).
		WithFilters(p.cfg.Filters).
		WithLimits(p.cfg.Limits).
		WithCache(p.cfg.Cache).
		Build()
	if err != nil {
		return nil, err
	}

	for _, objNum := range table.Objects() {
		if objNum == 0 {
			continue // free head entry
		}
		e, found := table.Lookup(objNum)
		if !found {
			continue
		}
		ref := raw.ObjectRef{Num: objNum, Gen: e.Gen}
		if e.Kind == xref.EntryCompressed {
			ref.Gen = 0
		}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("load object %d: %w", objNum, err)
			}
			if p.cfg.Recovery.OnError(err, recovery.Location{Ref: ref, Component: "object"}) == recovery.ActionFail {
				return nil, fmt.Errorf("load object %d: %w", objNum, err)
			}
			p.skipped = append(p.skipped, ref)
			continue
		}
		doc.Objects[ref] = obj
	}

	if _, ok := doc.Root(); !ok {
		return nil, ErrNoCatalog
	}
	return doc, nil
}

func detectHeaderVersion(data []byte) (string, error) {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	idx := bytes.Index(window, []byte("%PDF-"))
	if idx < 0 {
		return "", ErrNoHeader
	}
	line := string(data[idx+5:])
	if end := strings.IndexAny(line, "\r\n"); end >= 0 {
		line = line[:end]
	}
	if len(line) > 8 {
		line = line[:8]
	}
	return strings.TrimSpace(line), nil
}
