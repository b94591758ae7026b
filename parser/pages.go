package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfedit/coords"
	"github.com/wudi/pdfedit/filters"
	"github.com/wudi/pdfedit/ir/raw"
)

// maxTreeDepth bounds /Kids nesting.
const maxTreeDepth = 64

// DefaultMediaBox is used when neither a page nor its ancestors carry one.
var DefaultMediaBox = coords.Rect{URX: 612, URY: 792}

// Page is a leaf of the page tree with inherited attributes applied.
type Page struct {
	Number    int // 1-based
	Ref       raw.ObjectRef
	Dict      *raw.DictObj
	MediaBox  coords.Rect
	CropBox   coords.Rect
	Resources *raw.DictObj
	Rotate    int
	// Contents holds the decoded content streams joined by newlines.
	Contents []byte
	// ContentErr records a decode failure; Contents then holds what was recovered.
	ContentErr error
}

type inherited struct {
	resources *raw.DictObj
	mediaBox  *coords.Rect
	cropBox   *coords.Rect
	rotate    int
}

// Pages walks the page tree in document order.
func Pages(ctx context.Context, doc *raw.Document, p *filters.Pipeline) ([]Page, error) {
	if p == nil {
		p = filters.NewDefaultPipeline(filters.Limits{})
	}
	root, ok := doc.Root()
	if !ok {
		return nil, ErrNoCatalog
	}
	treeObj, ok := root.Get("Pages")
	if !ok {
		return nil, errors.New("catalog missing /Pages")
	}
	w := &treeWalker{doc: doc, filters: p, seen: make(map[raw.ObjectRef]bool)}
	if err := w.walk(ctx, treeObj, inherited{}, 0); err != nil {
		return nil, err
	}
	return w.pages, nil
}

type treeWalker struct {
	doc     *raw.Document
	filters *filters.Pipeline
	seen    map[raw.ObjectRef]bool
	pages   []Page
}

func (w *treeWalker) walk(ctx context.Context, node raw.Object, inh inherited, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > maxTreeDepth {
		return errors.New("page tree too deep")
	}
	var ref raw.ObjectRef
	if r, ok := node.(raw.RefObj); ok {
		if w.seen[r.R] {
			return fmt.Errorf("page tree cycle at %s", r.R)
		}
		w.seen[r.R] = true
		ref = r.R
	}
	dict, ok := w.doc.ResolveDict(node)
	if !ok {
		// dangling kids are skipped, as viewers do
		return nil
	}

	if res, ok := w.doc.ResolveDict(valueOf(dict, "Resources")); ok {
		inh.resources = res
	}
	if box, ok := w.rect(dict, "MediaBox"); ok {
		inh.mediaBox = &box
	}
	if box, ok := w.rect(dict, "CropBox"); ok {
		inh.cropBox = &box
	}
	if rot, ok := w.doc.ResolveNumber(valueOf(dict, "Rotate")); ok {
		inh.rotate = normalizeRotation(int(rot))
	}

	typ, _ := dict.Name("Type")
	kids, hasKids := w.doc.ResolveArray(valueOf(dict, "Kids"))
	if typ == "Pages" || (typ != "Page" && hasKids) {
		if !hasKids {
			return nil
		}
		for _, kid := range kids.Items {
			if err := w.walk(ctx, kid, inh, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	page := Page{
		Number:    len(w.pages) + 1,
		Ref:       ref,
		Dict:      dict,
		MediaBox:  DefaultMediaBox,
		Resources: inh.resources,
		Rotate:    inh.rotate,
	}
	if inh.mediaBox != nil {
		page.MediaBox = *inh.mediaBox
	}
	page.CropBox = page.MediaBox
	if inh.cropBox != nil {
		page.CropBox = *inh.cropBox
	}
	if page.Resources == nil {
		page.Resources = raw.Dict()
	}
	page.Contents, page.ContentErr = w.contents(ctx, valueOf(dict, "Contents"))
	w.pages = append(w.pages, page)
	return nil
}

func (w *treeWalker) contents(ctx context.Context, obj raw.Object) ([]byte, error) {
	if obj == nil {
		return nil, nil
	}
	var streams []raw.Object
	if arr, ok := w.doc.ResolveArray(obj); ok {
		streams = arr.Items
	} else {
		streams = []raw.Object{obj}
	}
	var buf bytes.Buffer
	var firstErr error
	for _, s := range streams {
		st, ok := w.doc.Resolve(s).(*raw.StreamObj)
		if !ok {
			continue
		}
		data, err := w.filters.DecodeStream(ctx, st)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), firstErr
}

func (w *treeWalker) rect(dict *raw.DictObj, key string) (coords.Rect, bool) {
	arr, ok := w.doc.ResolveArray(valueOf(dict, key))
	if !ok || arr.Len() != 4 {
		return coords.Rect{}, false
	}
	var v [4]float64
	for i, it := range arr.Items {
		n, ok := w.doc.ResolveNumber(it)
		if !ok {
			return coords.Rect{}, false
		}
		v[i] = n
	}
	r := coords.RectFromPoints(coords.Point{X: v[0], Y: v[1]}, coords.Point{X: v[2], Y: v[3]})
	if r.Width() <= 0 || r.Height() <= 0 {
		return coords.Rect{}, false
	}
	return r, true
}

func valueOf(d *raw.DictObj, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}

func normalizeRotation(r int) int {
	r %= 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}
