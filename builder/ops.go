package builder

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Operation is one content stream operator with its operands.
type Operation struct {
	Operator string
	Operands []Operand
}

// Operand is a content stream operand: Number, Name, String or Array.
type Operand interface{ appendTo(*bytes.Buffer) }

type (
	Number float64
	Name   string
	String string
	Array  []Operand
)

func (n Number) appendTo(b *bytes.Buffer) { b.WriteString(FormatNumber(float64(n))) }
func (n Name) appendTo(b *bytes.Buffer)   { b.WriteString("/" + string(n)) }
func (s String) appendTo(b *bytes.Buffer) { b.Write(EscapeString([]byte(s))) }

func (a Array) appendTo(b *bytes.Buffer) {
	b.WriteByte('[')
	for i, it := range a {
		if i > 0 {
			b.WriteByte(' ')
		}
		it.appendTo(b)
	}
	b.WriteByte(']')
}

// Serialize writes ops one per line.
func Serialize(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		for _, operand := range op.Operands {
			operand.appendTo(&buf)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// FormatNumber renders v with at most four decimals and never in exponent
// form, which PDF does not allow.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	v = math.Round(v*1e4) / 1e4
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EscapeString renders a literal string with its parentheses.
func EscapeString(raw []byte) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, ch := range raw {
		switch ch {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(ch)
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		case '\b':
			b.WriteString("\\b")
		case '\f':
			b.WriteString("\\f")
		default:
			if ch < 0x20 || ch >= 0x80 {
				fmt.Fprintf(&b, "\\%03o", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}
