package raw

import (
	"fmt"

	"github.com/wudi/pdfedit/scanner"
)

// ObjectReader builds objects from a token stream. Tokens can be pushed back,
// which the indirect object loader and the content stream parser rely on.
type ObjectReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func NewObjectReader(s scanner.Scanner) *ObjectReader {
	return &ObjectReader{s: s}
}

// Scanner returns the underlying scanner.
func (r *ObjectReader) Scanner() scanner.Scanner { return r.s }

func (r *ObjectReader) Next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *ObjectReader) Unread(tok scanner.Token) {
	r.buf = append(r.buf, tok)
}

// Reset drops pushed back tokens, typically after a Seek.
func (r *ObjectReader) Reset() { r.buf = r.buf[:0] }

// ReadObject parses the next complete object.
func (r *ObjectReader) ReadObject() (Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	return r.FromToken(tok)
}

// FromToken parses an object whose first token has already been consumed.
func (r *ObjectReader) FromToken(tok scanner.Token) (Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberInt(tok.Int), nil
		}
		return NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenArray:
		return r.readArray()
	case scanner.TokenDict:
		return r.readDict()
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: tok.Ref.Num, Gen: tok.Ref.Gen}}, nil
	}
	return nil, fmt.Errorf("unexpected %s token %q at %d", tok.Type, tok.Str, tok.Pos)
}

func (r *ObjectReader) readArray() (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("array: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		item, err := r.FromToken(tok)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func (r *ObjectReader) readDict() (Object, error) {
	d := Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("dict: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("expected name in dict, got %s", tok.Type)
		}
		val, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		// null values are equivalent to absent keys
		if _, isNull := val.(NullObj); isNull {
			continue
		}
		d.Set(tok.Str, val)
	}
}
