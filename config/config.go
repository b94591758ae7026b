// Package config reads the pdfedit TOML settings file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/wudi/pdfedit/controller"
	"github.com/wudi/pdfedit/export"
	"github.com/wudi/pdfedit/loader"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/render"
	"github.com/wudi/pdfedit/scanner"
	"github.com/wudi/pdfedit/session"
)

const (
	AppName               = "pdfedit"
	DefaultConfigFileName = "config.toml"
	DefaultZoom           = 1.2

	DefaultMaxStringLength = 16 << 20
	DefaultMaxNestingDepth = 64
)

type Config struct {
	Log    LogConfig    `toml:"log"`
	View   ViewConfig   `toml:"view"`
	Editor EditorConfig `toml:"editor"`
	Export ExportConfig `toml:"export"`
	Load   LoadConfig   `toml:"load"`

	// Warnings lists problems that did not stop the file from loading,
	// such as unknown keys.
	Warnings []string `toml:"-"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type ViewConfig struct {
	Zoom float64 `toml:"zoom"`
}

type EditorConfig struct {
	Tolerance        float64 `toml:"tolerance"`
	EraserRadius     float64 `toml:"eraser_radius"`
	BrushSize        float64 `toml:"brush_size"`
	BrushColor       string  `toml:"brush_color"`
	HighlightColor   string  `toml:"highlight_color"`
	HighlightOpacity float64 `toml:"highlight_opacity"`
	HistoryLimit     int     `toml:"history_limit"`
}

type ExportConfig struct {
	Incremental     bool    `toml:"incremental"`
	OutputPrefix    string  `toml:"output_prefix"`
	HighlightFactor float64 `toml:"highlight_factor"`
	CoverPadding    float64 `toml:"cover_padding"`
	Compress        bool    `toml:"compress"`
	// Fonts maps face keys such as "serif-bold" to TrueType files.
	Fonts map[string]string `toml:"fonts"`
}

type LoadConfig struct {
	// Strict fails a load on the first unreadable object.
	Strict              bool  `toml:"strict"`
	MaxDecompressedSize int64 `toml:"max_decompressed_size"`
	MaxStringLength     int64 `toml:"max_string_length"`
	MaxNestingDepth     int   `toml:"max_nesting_depth"`
	MaxRenderPixels     int64 `toml:"max_render_pixels"`
}

func Default() *Config {
	return &Config{
		Log:  LogConfig{Level: "info"},
		View: ViewConfig{Zoom: DefaultZoom},
		Editor: EditorConfig{
			Tolerance:        session.DefaultTolerance,
			EraserRadius:     controller.DefaultEraserRadius,
			BrushSize:        controller.DefaultBrushSize,
			BrushColor:       "#000000",
			HighlightColor:   "#f59e0b",
			HighlightOpacity: controller.DefaultHighlight.Opacity,
			HistoryLimit:     session.DefaultHistoryLimit,
		},
		Export: ExportConfig{
			Incremental:     true,
			OutputPrefix:    export.DefaultOutputPrefix,
			HighlightFactor: export.HighlightOpacityFactor,
			Compress:        true,
		},
		Load: LoadConfig{
			MaxDecompressedSize: loader.DefaultMaxDecompressedSize,
			MaxStringLength:     DefaultMaxStringLength,
			MaxNestingDepth:     DefaultMaxNestingDepth,
			MaxRenderPixels:     loader.DefaultMaxRenderPixels,
		},
	}
}

// DefaultPath is the config file under the user config directory, or ""
// when there is none.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, AppName, DefaultConfigFileName)
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Warnings = undecoded(meta)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults.
func Parse(text string) (*Config, error) {
	cfg := Default()
	meta, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, err
	}
	cfg.Warnings = undecoded(meta)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func undecoded(meta toml.MetaData) []string {
	var out []string
	for _, key := range meta.Undecoded() {
		out = append(out, fmt.Sprintf("unknown key %q", key.String()))
	}
	return out
}

var faceKeys = map[string]bool{}

func init() {
	for _, fam := range []string{"sans", "serif", "mono"} {
		for _, style := range []string{"regular", "bold", "italic", "bold-italic"} {
			faceKeys[fam+"-"+style] = true
		}
	}
}

// Validate reports every out-of-range value.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.View.Zoom <= 0 {
		errs = append(errs, fmt.Errorf("view.zoom must be positive, got %v", c.View.Zoom))
	}
	e := c.Editor
	if e.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("editor.tolerance must be positive, got %v", e.Tolerance))
	}
	if e.EraserRadius <= 0 {
		errs = append(errs, fmt.Errorf("editor.eraser_radius must be positive, got %v", e.EraserRadius))
	}
	if e.BrushSize <= 0 {
		errs = append(errs, fmt.Errorf("editor.brush_size must be positive, got %v", e.BrushSize))
	}
	if e.HighlightOpacity <= 0 || e.HighlightOpacity > 1 {
		errs = append(errs, fmt.Errorf("editor.highlight_opacity must be in (0,1], got %v", e.HighlightOpacity))
	}
	if e.HistoryLimit < 2 {
		errs = append(errs, fmt.Errorf("editor.history_limit must be at least 2, got %d", e.HistoryLimit))
	}
	for key, val := range map[string]string{"editor.brush_color": e.BrushColor, "editor.highlight_color": e.HighlightColor} {
		if _, err := ParseHexColor(val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	x := c.Export
	if x.HighlightFactor <= 0 || x.HighlightFactor > 1 {
		errs = append(errs, fmt.Errorf("export.highlight_factor must be in (0,1], got %v", x.HighlightFactor))
	}
	if x.CoverPadding < 0 {
		errs = append(errs, fmt.Errorf("export.cover_padding must not be negative, got %v", x.CoverPadding))
	}
	l := c.Load
	for key, val := range map[string]int64{
		"load.max_decompressed_size": l.MaxDecompressedSize,
		"load.max_string_length":     l.MaxStringLength,
		"load.max_nesting_depth":     int64(l.MaxNestingDepth),
		"load.max_render_pixels":     l.MaxRenderPixels,
	} {
		if val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, val))
		}
	}
	keys := make([]string, 0, len(x.Fonts))
	for k := range x.Fonts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !faceKeys[strings.ToLower(k)] {
			errs = append(errs, fmt.Errorf("export.fonts: unknown face %q", k))
		}
	}
	return errors.Join(errs...)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// SessionOptions configures an edit session.
func (c *Config) SessionOptions(logger observability.Logger) []session.Option {
	return []session.Option{
		session.WithTolerance(c.Editor.Tolerance),
		session.WithHistoryLimit(c.Editor.HistoryLimit),
		session.WithLogger(logger),
	}
}

// ControllerConfig fills the tool settings of a controller for sess.
func (c *Config) ControllerConfig(sess *session.EditSession, logger observability.Logger) controller.Config {
	brush, _ := ParseHexColor(c.Editor.BrushColor)
	hl, _ := ParseHexColor(c.Editor.HighlightColor)
	return controller.Config{
		Session: sess,
		Logger:  logger,
		Brush:   controller.Brush{Color: brush, Size: c.Editor.BrushSize},
		Highlight: controller.HighlightStyle{
			Color:   hl,
			Width:   controller.DefaultHighlight.Width,
			Opacity: c.Editor.HighlightOpacity,
		},
		EraserRadius: c.Editor.EraserRadius,
	}
}

// LoaderOptions configures document loading. faces may be nil.
func (c *Config) LoaderOptions(logger observability.Logger, tracer observability.Tracer, faces *render.FaceBank) []loader.Option {
	opts := []loader.Option{
		loader.WithLogger(logger),
		loader.WithStrict(c.Load.Strict),
		loader.WithMaxDecompressedSize(c.Load.MaxDecompressedSize),
		loader.WithMaxRenderPixels(c.Load.MaxRenderPixels),
		loader.WithLimits(scanner.Config{
			MaxStringLength: c.Load.MaxStringLength,
			MaxArrayDepth:   c.Load.MaxNestingDepth,
			MaxDictDepth:    c.Load.MaxNestingDepth,
		}),
	}
	if tracer != nil {
		opts = append(opts, loader.WithTracer(tracer))
	}
	if faces != nil {
		opts = append(opts, loader.WithFaceBank(faces))
	}
	return opts
}

func (c *Config) ExportConfig() export.Config {
	return export.Config{
		Incremental:     c.Export.Incremental,
		Compress:        c.Export.Compress,
		HighlightFactor: c.Export.HighlightFactor,
		CoverPadding:    c.Export.CoverPadding,
	}
}

// FontSource is the exporter font source: the standard fonts, or TrueType
// files when any are configured.
func (c *Config) FontSource() export.FontSource {
	if len(c.Export.Fonts) == 0 {
		return export.StandardFonts{}
	}
	return export.NewTrueTypeFonts(c.Export.Fonts)
}

// OutputName is the file name an export of original is saved under.
func (c *Config) OutputName(original string) string {
	return export.PrefixedName(c.Export.OutputPrefix, original)
}
