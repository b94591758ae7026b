package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"context"
	"errors"
	"testing"

	"github.com/wudi/pdfedit/ir/raw"
)

func TestFlateDecode(t *testing.T) {
	enc, err := FlateEncode([]byte("hello world"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := NewFlateDecoder().Decode(context.Background(), enc, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeRawDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("BT /F1 12 Tf ET"))
	w.Close()

	out, err := NewFlateDecoder().Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "BT /F1 12 Tf ET" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeWithPredictor(t *testing.T) {
	// PNG predictor row: filter byte 1 (Sub), then row bytes.
	comp, _ := FlateEncode([]byte{1, 10, 12, 20, 2, 1, 1, 1})

	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(12))
	params.Set("Colors", raw.NumberInt(1))
	params.Set("BitsPerComponent", raw.NumberInt(8))
	params.Set("Columns", raw.NumberInt(3))

	out, err := NewFlateDecoder().Decode(context.Background(), comp, params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{10, 22, 42, 11, 23, 43}
	if !bytes.Equal(out, want) {
		t.Fatalf("predictor output mismatch: got %v want %v", out, want)
	}
}

func TestLZWDecode(t *testing.T) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	input := []byte("hello hello hello")
	if _, err := w.Write(input); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	out, err := NewLZWDecoder().Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCIIDecoders(t *testing.T) {
	ctx := context.Background()
	out, err := NewASCIIHexDecoder().Decode(ctx, []byte("48 65 6c\n6c 6f 3>"), nil)
	if err != nil || string(out) != "Hello0" {
		t.Fatalf("hex decode: %q %v", out, err)
	}
	out, err = NewASCII85Decoder().Decode(ctx, []byte("<~87cURD]i,\"Ebo80~>"), nil)
	if err != nil || string(out) != "Hello World" {
		t.Fatalf("ascii85 decode: %q %v", out, err)
	}
}

func TestRunLengthDecode(t *testing.T) {
	in := []byte{2, 'a', 'b', 'c', 254, 'z', 128, 'q'}
	out, err := NewRunLengthDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "abczzz" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestPipelineChainsAndLimits(t *testing.T) {
	comp, _ := FlateEncode(bytes.Repeat([]byte("x"), 4096))
	dict := raw.Dict()
	dict.Set("Filter", raw.NewArray(raw.NameLiteral("FlateDecode")))
	stream := raw.NewStream(dict, comp)

	p := NewDefaultPipeline(Limits{})
	out, err := p.DecodeStream(context.Background(), stream)
	if err != nil || len(out) != 4096 {
		t.Fatalf("decode stream: %d bytes, %v", len(out), err)
	}

	limited := NewDefaultPipeline(Limits{MaxDecompressedSize: 1024})
	if _, err := limited.DecodeStream(context.Background(), stream); !errors.Is(err, ErrSizeLimit) {
		t.Fatalf("expected size limit error, got %v", err)
	}

	if _, err := p.Decode(context.Background(), comp, []string{"Bogus"}, nil); err == nil {
		t.Fatalf("expected unknown filter error")
	}

	out, err = p.Decode(context.Background(), []byte("414243>"), []string{"AHx"}, nil)
	if err != nil || string(out) != "ABC" {
		t.Fatalf("short filter name: %q %v", out, err)
	}
}
