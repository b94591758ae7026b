package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wudi/pdfedit/contentstream"
	"github.com/wudi/pdfedit/session"
)

// ParseHexColor reads #rgb or #rrggbb, with or without the '#', or one of
// the palette names.
func ParseHexColor(s string) (session.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range Palette {
		if p.Name == s {
			return p.Color, nil
		}
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return session.Color{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return session.Color{}, fmt.Errorf("invalid colour %q", s)
	}
	return contentstream.RGB(float64(v>>16&0xff)/255, float64(v>>8&0xff)/255, float64(v&0xff)/255), nil
}

// HexColor formats c as #rrggbb.
func HexColor(c session.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) int {
	n := int(v*255 + 0.5)
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return n
}

type NamedColor struct {
	Name  string
	Color session.Color
}

// Palette holds the preset brush colours.
var Palette = []NamedColor{
	{"black", contentstream.Black},
	{"blue", contentstream.RGB(0x25/255.0, 0x63/255.0, 0xeb/255.0)},
	{"red", contentstream.RGB(0xdc/255.0, 0x26/255.0, 0x26/255.0)},
	{"green", contentstream.RGB(0x16/255.0, 0xa3/255.0, 0x4a/255.0)},
	{"amber", contentstream.RGB(0xf5/255.0, 0x9e/255.0, 0x0b/255.0)},
	{"white", contentstream.White},
}
