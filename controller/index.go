package controller

import "github.com/wudi/pdfedit/coords"

const (
	// hitCapacity is how many boxes a quad holds before it splits.
	hitCapacity = 8
	maxHitDepth = 8
)

// hitIndex is a quadtree over run boxes in document space. Boxes that do
// not fit a child stay on the parent.
type hitIndex struct {
	bounds   coords.Rect
	depth    int
	entries  []hitEntry
	children []*hitIndex
	// outside holds boxes that miss the page entirely; only the root uses it.
	outside []hitEntry
}

type hitEntry struct {
	box coords.Rect
	idx int
}

func newHitIndex(bounds coords.Rect, depth int) *hitIndex {
	return &hitIndex{bounds: bounds, depth: depth, entries: make([]hitEntry, 0, hitCapacity)}
}

// add indexes box under idx.
func (q *hitIndex) add(box coords.Rect, idx int) {
	if !q.insert(hitEntry{box: box, idx: idx}) {
		q.outside = append(q.outside, hitEntry{box: box, idx: idx})
	}
}

func (q *hitIndex) insert(e hitEntry) bool {
	if !q.bounds.Intersects(e.box) {
		return false
	}
	for _, child := range q.children {
		if encloses(child.bounds, e.box) && child.insert(e) {
			return true
		}
	}
	if q.children == nil && len(q.entries) >= hitCapacity && q.depth < maxHitDepth {
		q.split()
		return q.insert(e)
	}
	q.entries = append(q.entries, e)
	return true
}

func (q *hitIndex) split() {
	midX := (q.bounds.LLX + q.bounds.URX) / 2
	midY := (q.bounds.LLY + q.bounds.URY) / 2
	b, d := q.bounds, q.depth+1
	q.children = []*hitIndex{
		newHitIndex(coords.Rect{LLX: b.LLX, LLY: midY, URX: midX, URY: b.URY}, d),
		newHitIndex(coords.Rect{LLX: midX, LLY: midY, URX: b.URX, URY: b.URY}, d),
		newHitIndex(coords.Rect{LLX: b.LLX, LLY: b.LLY, URX: midX, URY: midY}, d),
		newHitIndex(coords.Rect{LLX: midX, LLY: b.LLY, URX: b.URX, URY: midY}, d),
	}
	old := q.entries
	q.entries = make([]hitEntry, 0, hitCapacity)
	for _, e := range old {
		q.insert(e)
	}
}

// at returns the indices of every box containing p, in no particular order.
func (q *hitIndex) at(p coords.Point) []int {
	var out []int
	for _, e := range q.outside {
		if e.box.Contains(p) {
			out = append(out, e.idx)
		}
	}
	return q.collect(p, out)
}

func (q *hitIndex) collect(p coords.Point, out []int) []int {
	if !q.bounds.Contains(p) {
		return out
	}
	for _, e := range q.entries {
		if e.box.Contains(p) {
			out = append(out, e.idx)
		}
	}
	for _, child := range q.children {
		out = child.collect(p, out)
	}
	return out
}

func encloses(outer, inner coords.Rect) bool {
	return inner.LLX >= outer.LLX && inner.URX <= outer.URX &&
		inner.LLY >= outer.LLY && inner.URY <= outer.URY
}
