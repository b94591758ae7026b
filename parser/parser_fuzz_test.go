package parser

import (
	"context"
	"testing"

	"github.com/wudi/pdfedit/internal/testpdf"
)

func FuzzDocumentParser(f *testing.F) {
	f.Add(testpdf.Generate(testpdf.Page{Texts: []testpdf.Text{{X: 72, Y: 700, Str: "seed"}}}))
	f.Add([]byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n..."))

	f.Fuzz(func(t *testing.T, data []byte) {
		doc, err := NewDocumentParser(Config{}).Parse(context.Background(), data)
		if err != nil {
			return
		}
		_, _ = Pages(context.Background(), doc, nil)
	})
}
