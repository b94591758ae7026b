package contentstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfedit/ir/raw"
	"github.com/wudi/pdfedit/scanner"
)

// Operation is one operator with the operands that preceded it.
type Operation struct {
	Operator string
	Operands []raw.Object
	// Inline holds the image data of a BI ... ID ... EI sequence, whose
	// dictionary is the single operand.
	Inline []byte
}

// parseLimits keeps hostile content streams from nesting without bound.
var parseLimits = scanner.Config{MaxArrayDepth: 64, MaxDictDepth: 64}

// Parse splits a content stream into operations. On a syntax error the
// operations read so far are returned along with the error.
func Parse(content []byte) ([]Operation, error) {
	r := raw.NewObjectReader(scanner.New(content, parseLimits))
	var ops []Operation
	var operands []raw.Object
	for {
		tok, err := r.Next()
		if errors.Is(err, io.EOF) {
			return ops, nil
		}
		if err != nil {
			return ops, fmt.Errorf("content stream: %w", err)
		}
		if tok.Type != scanner.TokenKeyword {
			obj, err := r.FromToken(tok)
			if err != nil {
				return ops, fmt.Errorf("content stream operand: %w", err)
			}
			operands = append(operands, obj)
			continue
		}
		switch tok.Str {
		case "BI":
			op, err := readInlineImage(r)
			if err != nil {
				return ops, err
			}
			ops = append(ops, op)
		case "]", ">>", ">", "{", "}", ")":
			// stray delimiters are dropped along with pending operands
		default:
			ops = append(ops, Operation{Operator: tok.Str, Operands: operands})
		}
		operands = nil
	}
}

func readInlineImage(r *raw.ObjectReader) (Operation, error) {
	dict := raw.Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			return Operation{}, fmt.Errorf("inline image: %w", err)
		}
		if tok.Type == scanner.TokenInlineImage {
			return Operation{Operator: "BI", Operands: []raw.Object{dict}, Inline: tok.Bytes}, nil
		}
		if tok.Type != scanner.TokenName {
			return Operation{}, fmt.Errorf("inline image: expected key, got %s", tok.Type)
		}
		val, err := r.ReadObject()
		if err != nil {
			return Operation{}, fmt.Errorf("inline image: %w", err)
		}
		dict.Set(tok.Str, val)
	}
}
