package classify

import (
	"fmt"
	"image"

	"github.com/kpauljoseph/pagecompose/pkg/models"
)

// Empirically tuned defaults. Keep them fixed unless there is data showing a
// better split; Thresholds exists so tests can probe the boundaries.
const (
	DefaultDarkLuma      = 50.0
	DefaultLightLuma     = 205.0
	DefaultMinDarkRatio  = 0.70
	DefaultMaxLightRatio = 0.10
	DefaultMaxMeanLuma   = 80.0
)

type Thresholds struct {
	DarkLuma      float64 `yaml:"dark_luma"`
	LightLuma     float64 `yaml:"light_luma"`
	MinDarkRatio  float64 `yaml:"dark_ratio"`
	MaxLightRatio float64 `yaml:"light_ratio"`
	MaxMeanLuma   float64 `yaml:"mean_luma"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DarkLuma:      DefaultDarkLuma,
		LightLuma:     DefaultLightLuma,
		MinDarkRatio:  DefaultMinDarkRatio,
		MaxLightRatio: DefaultMaxLightRatio,
		MaxMeanLuma:   DefaultMaxMeanLuma,
	}
}

func (t Thresholds) Validate() error {
	if t.DarkLuma < 0 || t.DarkLuma > 255 || t.LightLuma < 0 || t.LightLuma > 255 {
		return fmt.Errorf("luma thresholds must be within [0,255], got dark=%v light=%v", t.DarkLuma, t.LightLuma)
	}
	if t.DarkLuma >= t.LightLuma {
		return fmt.Errorf("dark luma %v must be below light luma %v", t.DarkLuma, t.LightLuma)
	}
	if t.MinDarkRatio < 0 || t.MinDarkRatio >= 1 {
		return fmt.Errorf("dark ratio must be within [0,1), got %v", t.MinDarkRatio)
	}
	if t.MaxLightRatio < 0 || t.MaxLightRatio > 1 {
		return fmt.Errorf("light ratio must be within [0,1], got %v", t.MaxLightRatio)
	}
	return nil
}

// Stats are the raw raster measurements a decision is made from.
type Stats struct {
	Pixels     int
	DarkRatio  float64
	LightRatio float64
	MeanLuma   float64
}

// Classifier decides whether a page raster has a dark background. It holds
// no mutable state and is safe for concurrent use.
type Classifier struct {
	thresholds Thresholds
}

func New(thresholds Thresholds) *Classifier {
	return &Classifier{thresholds: thresholds}
}

func NewDefault() *Classifier {
	return New(DefaultThresholds())
}

func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify requires all three of: mostly dark pixels, almost no light pixels
// and a low mean. Dense black text on white can push DarkRatio up on its
// own; the other two conditions keep such pages light.
func (c *Classifier) Classify(img image.Image) models.ClassificationResult {
	return c.Decide(c.Measure(img))
}

func (c *Classifier) Measure(img image.Image) Stats {
	bounds := img.Bounds()
	var dark, light, total int
	var sum float64

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := Luma(img.At(x, y).RGBA())
			sum += l
			if l < c.thresholds.DarkLuma {
				dark++
			}
			if l > c.thresholds.LightLuma {
				light++
			}
			total++
		}
	}

	if total == 0 {
		return Stats{}
	}
	return Stats{
		Pixels:     total,
		DarkRatio:  float64(dark) / float64(total),
		LightRatio: float64(light) / float64(total),
		MeanLuma:   sum / float64(total),
	}
}

func (c *Classifier) Decide(s Stats) models.ClassificationResult {
	if s.Pixels == 0 {
		return models.ClassificationResult{}
	}

	t := c.thresholds
	isDark := s.DarkRatio > t.MinDarkRatio &&
		s.LightRatio < t.MaxLightRatio &&
		s.MeanLuma < t.MaxMeanLuma
	if !isDark {
		return models.ClassificationResult{IsDark: false, Confidence: 0}
	}

	return models.ClassificationResult{
		IsDark:     true,
		Confidence: clamp((s.DarkRatio-t.MinDarkRatio)/(1-t.MinDarkRatio), 0, 1),
	}
}

// Luma takes the 16-bit premultiplied channels returned by color.Color.RGBA
// and returns Rec. 601 luma on a 0-255 scale. Translucent pixels are
// composited over white, the colour of an unpainted page.
func Luma(r, g, b, a uint32) float64 {
	if a < 0xffff {
		bg := 0xffff - a
		r, g, b = r+bg, g+bg, b+bg
	}
	return 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
