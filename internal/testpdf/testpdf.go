// Package testpdf writes small, well-formed PDF files for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wudi/pdfedit/filters"
)

// Doc accumulates indirect object bodies. Object numbers start at 1.
type Doc struct {
	objects []string
}

// Reserve allocates an object number whose body is set later.
func (d *Doc) Reserve() int {
	d.objects = append(d.objects, "null")
	return len(d.objects)
}

func (d *Doc) Add(body string) int {
	d.objects = append(d.objects, body)
	return len(d.objects)
}

func (d *Doc) Set(num int, body string) { d.objects[num-1] = body }

// Stream adds a stream object. dict holds extra entries without the << >>.
func (d *Doc) Stream(dict string, data []byte) int {
	return d.Add(streamBody(dict, data))
}

func streamBody(dict string, data []byte) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// Build serializes the objects with a classic xref table.
func (d *Doc) Build(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(d.objects))
	for i, body := range d.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(d.objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(d.objects)+1, root, xrefAt)
	return buf.Bytes()
}

// Text is one line drawn with Tj.
type Text struct {
	Font string // resource name, F1 when empty
	Size float64
	X, Y float64
	Str  string
}

// Page describes one generated page.
type Page struct {
	Width, Height float64
	Texts         []Text
	// Extra is appended verbatim to the content stream.
	Extra string
}

// Letter is an empty US Letter page.
var Letter = Page{Width: 612, Height: 792}

// Font resources shared by every generated page through the page tree.
var Fonts = map[string]string{
	"F1": "Helvetica",
	"F2": "Times-Bold",
	"F3": "Courier",
	"F4": "Helvetica-Oblique",
}

type Options struct {
	// Compress flate-encodes the content streams.
	Compress bool
}

// Generate builds an uncompressed document with the given pages.
func Generate(pages ...Page) []byte { return GenerateWith(Options{}, pages...) }

// GenerateWith builds a document. Resources are inherited from the /Pages node.
func GenerateWith(opts Options, pages ...Page) []byte {
	d := &Doc{}
	catalog := d.Reserve()
	tree := d.Reserve()

	var fonts strings.Builder
	for _, name := range []string{"F1", "F2", "F3", "F4"} {
		ref := d.Add(fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /%s /Encoding /WinAnsiEncoding >>", Fonts[name]))
		fmt.Fprintf(&fonts, "/%s %d 0 R ", name, ref)
	}

	var kids []string
	for _, p := range pages {
		content := []byte(Content(p.Texts) + p.Extra)
		var contentRef int
		if opts.Compress {
			enc, err := filters.FlateEncode(content)
			if err != nil {
				panic(err)
			}
			contentRef = d.Stream("/Filter /FlateDecode", enc)
		} else {
			contentRef = d.Stream("", content)
		}
		w, h := p.Width, p.Height
		if w == 0 || h == 0 {
			w, h = Letter.Width, Letter.Height
		}
		page := d.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %s %s] /Contents %d 0 R >>",
			tree, num(w), num(h), contentRef))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	d.Set(tree, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /Resources << /Font << %s>> >> >>",
		strings.Join(kids, " "), len(kids), fonts.String()))
	d.Set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", tree))
	return d.Build(catalog)
}

// Content renders texts as a content stream, one BT/ET block each.
func Content(texts []Text) string {
	var b strings.Builder
	for _, t := range texts {
		font := t.Font
		if font == "" {
			font = "F1"
		}
		size := t.Size
		if size == 0 {
			size = 12
		}
		fmt.Fprintf(&b, "BT /%s %s Tf %s %s Td (%s) Tj ET\n", font, num(size), num(t.X), num(t.Y), Escape(t.Str))
	}
	return b.String()
}

// Escape quotes a literal string body.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func num(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
