package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kpauljoseph/pagecompose/internal/assembly"
	"github.com/kpauljoseph/pagecompose/internal/classify"
	"github.com/kpauljoseph/pagecompose/internal/layout"
	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/pkg/models"
)

const (
	DefaultOutput       = "composed.pdf"
	DefaultLayoutMargin = 18.0
	EnvPrefix           = "PAGECOMPOSE_"
)

var ErrInvalidConfig = errors.New("invalid config")

type Input struct {
	Path  string `yaml:"path"`
	Pages string `yaml:"pages"`
}

type Invert struct {
	Mode string `yaml:"mode"`
}

type Numbering struct {
	Enabled    bool    `yaml:"enabled"`
	Format     string  `yaml:"format"`
	Position   string  `yaml:"position"`
	FontSizePt float64 `yaml:"font_size_pt"`
	MarginPt   float64 `yaml:"margin_pt"`
}

type Watermark struct {
	Enabled         bool    `yaml:"enabled"`
	Kind            string  `yaml:"kind"`
	Text            string  `yaml:"text"`
	ImagePath       string  `yaml:"image_path"`
	Opacity         float64 `yaml:"opacity"`
	RotationDegrees float64 `yaml:"rotation_degrees"`
	Scale           float64 `yaml:"scale"`
	FontSizePt      float64 `yaml:"font_size_pt"`
}

type Classifier struct {
	classify.Thresholds `yaml:",inline"`
	DPI                 float64 `yaml:"dpi"`
	MaxSide             int     `yaml:"max_side"`
}

// Config is one composition job.
type Config struct {
	Output      string            `yaml:"output"`
	Inputs      []Input           `yaml:"inputs"`
	Layout      models.LayoutSpec `yaml:"layout"`
	Invert      Invert            `yaml:"invert"`
	Numbering   Numbering         `yaml:"numbering"`
	Watermark   Watermark         `yaml:"watermark"`
	Classifier  Classifier        `yaml:"classifier"`
	Workers     int               `yaml:"workers"`
	MetricsFile string            `yaml:"metrics_file"`
	LogLevel    string            `yaml:"log_level"`
}

// Default returns a job with every default filled in and no inputs.
func Default() *Config {
	cfg := &Config{}
	// Zero is a valid choice for these, so they are only seeded here and a
	// document can still set them to 0.
	cfg.Layout.MarginPt = DefaultLayoutMargin
	cfg.Numbering.MarginPt = pdf.DefaultNumberMargin
	cfg.Watermark.Opacity = pdf.DefaultWatermarkOpacity
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML job from path, fills defaults, applies PAGECOMPOSE_*
// environment overrides (a .env file next to the process is honoured) and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	// Keys missing from the document keep their defaults, so an explicit
	// margin_pt: 0 or opacity: 0 stays 0.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv reads .env into the process environment if it exists. Variables
// already set win.
func LoadEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Layout.PagesPerSheet == 0 {
		c.Layout.PagesPerSheet = 1
	}
	if c.Layout.Orientation == "" {
		c.Layout.Orientation = models.Portrait
	}
	if c.Invert.Mode == "" {
		c.Invert.Mode = string(assembly.InvertNone)
	}

	if c.Numbering.Format == "" {
		c.Numbering.Format = pdf.DefaultNumberFormat
	}
	if c.Numbering.Position == "" {
		c.Numbering.Position = string(pdf.BottomCenter)
	}
	if c.Numbering.FontSizePt == 0 {
		c.Numbering.FontSizePt = pdf.DefaultNumberFontSize
	}

	if c.Watermark.Kind == "" {
		c.Watermark.Kind = string(pdf.TextWatermark)
	}
	if c.Watermark.FontSizePt == 0 {
		c.Watermark.FontSizePt = pdf.DefaultWatermarkFont
	}
	if c.Watermark.Scale == 0 {
		c.Watermark.Scale = pdf.DefaultWatermarkScale
	}

	defaults := classify.DefaultThresholds()
	t := &c.Classifier.Thresholds
	if t.DarkLuma == 0 {
		t.DarkLuma = defaults.DarkLuma
	}
	if t.LightLuma == 0 {
		t.LightLuma = defaults.LightLuma
	}
	if t.MinDarkRatio == 0 {
		t.MinDarkRatio = defaults.MinDarkRatio
	}
	if t.MaxLightRatio == 0 {
		t.MaxLightRatio = defaults.MaxLightRatio
	}
	if t.MaxMeanLuma == 0 {
		t.MaxMeanLuma = defaults.MaxMeanLuma
	}
	if c.Classifier.DPI == 0 {
		c.Classifier.DPI = pdf.DefaultRasterDPI
	}
	if c.Classifier.MaxSide == 0 {
		c.Classifier.MaxSide = pdf.DefaultMaxSide
	}

	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv overrides workers, metrics file and log level from
// PAGECOMPOSE_WORKERS, PAGECOMPOSE_METRICS_FILE and PAGECOMPOSE_LOG_LEVEL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sWORKERS=%q: %v", ErrInvalidConfig, EnvPrefix, v, err)
		}
		c.Workers = n
	}
	if v, ok := lookup(EnvPrefix + "METRICS_FILE"); ok {
		c.MetricsFile = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := layout.NewComposer().Validate(c.Layout); err != nil {
		return err
	}
	if _, err := assembly.ParseInvertMode(c.Invert.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := pdf.ParseAnchor(c.Numbering.Position); err != nil {
		return err
	}
	if c.Numbering.FontSizePt <= 0 || c.Numbering.MarginPt < 0 {
		return fmt.Errorf("%w: numbering font size %g, margin %g", ErrInvalidConfig, c.Numbering.FontSizePt, c.Numbering.MarginPt)
	}
	if c.Watermark.Enabled {
		switch pdf.WatermarkKind(c.Watermark.Kind) {
		case pdf.TextWatermark:
			if c.Watermark.Text == "" {
				return fmt.Errorf("%w: text watermark without text", ErrInvalidConfig)
			}
		case pdf.ImageWatermark:
			if c.Watermark.ImagePath == "" {
				return fmt.Errorf("%w: image watermark without image_path", ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: unknown watermark kind %q", ErrInvalidConfig, c.Watermark.Kind)
		}
		if c.Watermark.Opacity < 0 || c.Watermark.Opacity > 1 {
			return fmt.Errorf("%w: watermark opacity %g not in [0,1]", ErrInvalidConfig, c.Watermark.Opacity)
		}
	}
	if err := c.Classifier.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	switch c.LogLevel {
	case "info", "debug", "trace":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// Transforms builds the per-page transforms the job asks for, in the
// order inversion, numbering, watermark. Inversion requested through
// layout.invert_colors is handled by the pipeline itself.
func (c *Config) Transforms(analyzer pdf.PageAnalyzer) ([]assembly.Transform, error) {
	var out []assembly.Transform

	mode, err := assembly.ParseInvertMode(c.Invert.Mode)
	if err != nil {
		return nil, err
	}
	if mode != assembly.InvertNone && !(mode == assembly.InvertAll && c.Layout.InvertColors) {
		out = append(out, assembly.Invert{Mode: mode, Analyzer: analyzer})
	}

	if c.Numbering.Enabled {
		anchor, err := pdf.ParseAnchor(c.Numbering.Position)
		if err != nil {
			return nil, err
		}
		out = append(out, assembly.Numbering{Options: pdf.NumberingOptions{
			Format:     c.Numbering.Format,
			Position:   anchor,
			FontSizePt: c.Numbering.FontSizePt,
			MarginPt:   c.Numbering.MarginPt,
		}})
	}

	if c.Watermark.Enabled {
		opts := pdf.WatermarkOptions{
			Kind:            pdf.WatermarkKind(c.Watermark.Kind),
			Text:            c.Watermark.Text,
			Opacity:         c.Watermark.Opacity,
			RotationDegrees: c.Watermark.RotationDegrees,
			Scale:           c.Watermark.Scale,
			FontSizePt:      c.Watermark.FontSizePt,
		}
		if opts.Kind == pdf.ImageWatermark {
			img, err := os.ReadFile(c.Watermark.ImagePath)
			if err != nil {
				return nil, fmt.Errorf("failed to read watermark image: %w", err)
			}
			opts.Image = img
		}
		if err := opts.Validate(); err != nil {
			return nil, err
		}
		out = append(out, assembly.Watermark{Options: opts})
	}
	return out, nil
}
