package filters

import (
	"errors"

	"github.com/wudi/pdfedit/ir/raw"
)

type predictorParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func readPredictorParams(params *raw.DictObj) predictorParams {
	p := predictorParams{predictor: 1, colors: 1, bpc: 8, columns: 1}
	if params == nil {
		return p
	}
	if v, ok := params.Int("Predictor"); ok {
		p.predictor = int(v)
	}
	if v, ok := params.Int("Colors"); ok && v > 0 {
		p.colors = int(v)
	}
	if v, ok := params.Int("BitsPerComponent"); ok && v > 0 {
		p.bpc = int(v)
	}
	if v, ok := params.Int("Columns"); ok && v > 0 {
		p.columns = int(v)
	}
	return p
}

// applyPredictor undoes TIFF (2) and PNG (10-15) predictors.
func applyPredictor(data []byte, params *raw.DictObj) ([]byte, error) {
	p := readPredictorParams(params)
	switch {
	case p.predictor <= 1:
		return data, nil
	case p.predictor == 2:
		return tiffPredictor(data, p), nil
	case p.predictor >= 10:
		return pngPredictor(data, p)
	default:
		return nil, errors.New("unsupported predictor")
	}
}

func pngPredictor(data []byte, p predictorParams) ([]byte, error) {
	bpp := (p.colors*p.bpc + 7) / 8
	rowLen := (p.colors*p.bpc*p.columns + 7) / 8
	if rowLen <= 0 {
		return nil, errors.New("invalid predictor columns")
	}
	prev := make([]byte, rowLen)
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i += rowLen + 1 {
		filter := data[i]
		end := i + 1 + rowLen
		if end > len(data) {
			end = len(data)
		}
		row := make([]byte, rowLen)
		copy(row, data[i+1:end])
		for x := 0; x < rowLen; x++ {
			var left, upLeft byte
			if x >= bpp {
				left = row[x-bpp]
				upLeft = prev[x-bpp]
			}
			up := prev[x]
			switch filter {
			case 0:
			case 1:
				row[x] += left
			case 2:
				row[x] += up
			case 3:
				row[x] += byte((int(left) + int(up)) / 2)
			case 4:
				row[x] += paeth(left, up, upLeft)
			default:
				return nil, errors.New("invalid png filter type")
			}
		}
		out = append(out, row[:end-i-1]...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// tiffPredictor handles 8-bit components only, which covers xref and object streams.
func tiffPredictor(data []byte, p predictorParams) []byte {
	if p.bpc != 8 {
		return data
	}
	rowLen := p.colors * p.columns
	out := append([]byte(nil), data...)
	for start := 0; start < len(out); start += rowLen {
		end := start + rowLen
		if end > len(out) {
			end = len(out)
		}
		for x := start + p.colors; x < end; x++ {
			out[x] += out[x-p.colors]
		}
	}
	return out
}
