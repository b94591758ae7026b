// Package writer serializes raw objects, either appended to the original
// file as an incremental update or as a complete rewrite.
package writer

import (
	"context"
	"io"
	"sort"

	"github.com/wudi/pdfedit/ir/raw"
)

type Config struct {
	// Incremental appends the update after the original bytes, leaving them
	// untouched. Otherwise every object is written to a fresh file.
	Incremental bool
	// Compress flate-encodes updated streams that carry no filter.
	Compress bool
	// Version is the header version of a full rewrite. The source
	// document's version is used when empty.
	Version string
}

type Writer interface {
	Write(ctx context.Context, out io.Writer, u *Update, cfg Config) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) ([]byte, error)
}

// Interceptor observes every object as it is written.
type Interceptor interface {
	BeforeWrite(ctx context.Context, ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ctx context.Context, ref raw.ObjectRef, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}
func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

// Update collects new and replaced objects on top of a parsed document.
type Update struct {
	Doc *raw.Document
	// Original is the file Doc was parsed from. Incremental writes copy it
	// verbatim.
	Original []byte
	objects  map[raw.ObjectRef]raw.Object
	next     int
}

func NewUpdate(doc *raw.Document, original []byte) *Update {
	next := doc.MaxObjectNum() + 1
	if size, ok := doc.Trailer.Int("Size"); ok && int(size) > next {
		next = int(size)
	}
	return &Update{Doc: doc, Original: original, objects: map[raw.ObjectRef]raw.Object{}, next: next}
}

// Add stores obj under a new object number.
func (u *Update) Add(obj raw.Object) raw.ObjectRef {
	ref := u.Reserve()
	u.objects[ref] = obj
	return ref
}

// Reserve allocates an object number to be filled with Set, for objects
// that refer to each other.
func (u *Update) Reserve() raw.ObjectRef {
	ref := raw.ObjectRef{Num: u.next}
	u.next++
	u.objects[ref] = raw.NullObj{}
	return ref
}

func (u *Update) Set(ref raw.ObjectRef, obj raw.Object) { u.objects[ref] = obj }

// Object returns the updated object for ref, or the original one.
func (u *Update) Object(ref raw.ObjectRef) (raw.Object, bool) {
	if obj, ok := u.objects[ref]; ok {
		return obj, true
	}
	obj, ok := u.Doc.Objects[ref]
	return obj, ok
}

// Len is the number of objects in the update.
func (u *Update) Len() int { return len(u.objects) }

// Refs returns the updated references in ascending order.
func (u *Update) Refs() []raw.ObjectRef {
	refs := make([]raw.ObjectRef, 0, len(u.objects))
	for ref := range u.objects {
		refs = append(refs, ref)
	}
	sortRefs(refs)
	return refs
}

func sortRefs(refs []raw.ObjectRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num == refs[j].Num {
			return refs[i].Gen < refs[j].Gen
		}
		return refs[i].Num < refs[j].Num
	})
}
