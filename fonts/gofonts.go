package fonts

import (
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// GoFont returns the bundled Go font program closest to a family and
// emphasis. The Go fonts have no serif design, so Serif shares the
// proportional faces.
func GoFont(f Family, e Emphasis) []byte {
	if f == Mono {
		switch {
		case e.Bold && e.Italic:
			return gomonobolditalic.TTF
		case e.Bold:
			return gomonobold.TTF
		case e.Italic:
			return gomonoitalic.TTF
		}
		return gomono.TTF
	}
	switch {
	case e.Bold && e.Italic:
		return gobolditalic.TTF
	case e.Bold:
		return gobold.TTF
	case e.Italic:
		return goitalic.TTF
	}
	return goregular.TTF
}
