package plan

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/wudi/pdfedit/fonts"
)

var markdown = goldmark.New()

// ParseStyledText strips inline markdown from s. Text wholly inside
// **strong** is bold and text wholly inside *emphasis* is italic. Partial
// styling is dropped since an edit has a single emphasis.
func ParseStyledText(s string) (string, fonts.Emphasis) {
	src := []byte(s)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	var bold, italic int
	allBold, allItalic, seen := true, true, false
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Emphasis:
			d := -1
			if entering {
				d = 1
			}
			if node.Level >= 2 {
				bold += d
			} else {
				italic += d
			}
		case *ast.Text:
			if !entering {
				return ast.WalkContinue, nil
			}
			seg := string(node.Segment.Value(src))
			b.WriteString(seg)
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
			if strings.TrimSpace(seg) != "" {
				seen = true
				allBold = allBold && bold > 0
				allItalic = allItalic && italic > 0
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		default:
			// separate paragraphs and other blocks
			if entering && n.Type() == ast.TypeBlock && n.PreviousSibling() != nil && b.Len() > 0 {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil || !seen {
		return s, fonts.Emphasis{}
	}
	return strings.TrimSpace(b.String()), fonts.Emphasis{Bold: allBold, Italic: allItalic}
}
