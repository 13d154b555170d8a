package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const (
	DefaultNumberFormat     = "page {p} of {n}"
	DefaultNumberFontSize   = 12.0
	DefaultNumberMargin     = 36.0
	DefaultWatermarkOpacity = 0.5
	DefaultWatermarkFont    = 48.0
	DefaultWatermarkScale   = 0.5
)

var ErrInvalidStamp = errors.New("invalid stamp options")

// Anchor is one of the six places a page number can sit.
type Anchor string

const (
	TopLeft      Anchor = "top-left"
	TopCenter    Anchor = "top-center"
	TopRight     Anchor = "top-right"
	BottomLeft   Anchor = "bottom-left"
	BottomCenter Anchor = "bottom-center"
	BottomRight  Anchor = "bottom-right"
)

var anchors = map[Anchor]struct {
	pos    string
	dx, dy float64
}{
	TopLeft:      {"tl", 1, -1},
	TopCenter:    {"tc", 0, -1},
	TopRight:     {"tr", -1, -1},
	BottomLeft:   {"bl", 1, 1},
	BottomCenter: {"bc", 0, 1},
	BottomRight:  {"br", -1, 1},
}

func ParseAnchor(s string) (Anchor, error) {
	a := Anchor(s)
	if a == "" {
		return BottomCenter, nil
	}
	if _, ok := anchors[a]; !ok {
		return "", fmt.Errorf("%w: unknown position %q", ErrInvalidStamp, s)
	}
	return a, nil
}

type NumberingOptions struct {
	Format     string
	Position   Anchor
	FontSizePt float64
	MarginPt   float64
}

func DefaultNumbering() NumberingOptions {
	return NumberingOptions{
		Format:     DefaultNumberFormat,
		Position:   BottomCenter,
		FontSizePt: DefaultNumberFontSize,
		MarginPt:   DefaultNumberMargin,
	}
}

// FormatPageNumber substitutes the first {p} with the 1-based page number and
// the first {n} with the total. Anything else, including unmatched or
// repeated tokens, is left as written.
func FormatPageNumber(format string, page, total int) string {
	s := strings.Replace(format, "{p}", strconv.Itoa(page), 1)
	return strings.Replace(s, "{n}", strconv.Itoa(total), 1)
}

// AddPageNumbers stamps every page of data with its formatted number.
func AddPageNumbers(data []byte, opts NumberingOptions) ([]byte, error) {
	a, ok := anchors[opts.Position]
	if !ok {
		return nil, fmt.Errorf("%w: unknown position %q", ErrInvalidStamp, opts.Position)
	}
	if opts.FontSizePt <= 0 || opts.MarginPt < 0 {
		return nil, fmt.Errorf("%w: font size %g, margin %g", ErrInvalidStamp, opts.FontSizePt, opts.MarginPt)
	}
	if strings.TrimSpace(opts.Format) == "" {
		return data, nil
	}

	total, err := pageCount(data)
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("font:Helvetica, points:%g, scale:1 abs, pos:%s, off:%g %g, rot:0, op:1, fillcolor:#000000",
		opts.FontSizePt, a.pos, a.dx*opts.MarginPt, a.dy*opts.MarginPt)

	stamps := make(map[int]*model.Watermark, total)
	for p := 1; p <= total; p++ {
		wm, err := api.TextWatermark(FormatPageNumber(opts.Format, p, total), desc, true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to build page number for page %d: %w", p, err)
		}
		stamps[p] = wm
	}
	return applyStamps(data, stamps)
}

type WatermarkKind string

const (
	TextWatermark  WatermarkKind = "text"
	ImageWatermark WatermarkKind = "image"
)

// WatermarkOptions describes a centred watermark. Image holds PNG or JPEG
// bytes for ImageWatermark.
type WatermarkOptions struct {
	Kind            WatermarkKind
	Text            string
	Image           []byte
	Opacity         float64
	RotationDegrees float64
	Scale           float64
	FontSizePt      float64
}

func (o WatermarkOptions) Validate() error {
	if o.Opacity < 0 || o.Opacity > 1 {
		return fmt.Errorf("%w: opacity %g not in [0,1]", ErrInvalidStamp, o.Opacity)
	}
	switch o.Kind {
	case TextWatermark:
		if o.Text == "" {
			return fmt.Errorf("%w: text watermark without text", ErrInvalidStamp)
		}
		if o.FontSizePt <= 0 {
			return fmt.Errorf("%w: font size %g", ErrInvalidStamp, o.FontSizePt)
		}
	case ImageWatermark:
		if len(o.Image) == 0 {
			return fmt.Errorf("%w: image watermark without image", ErrInvalidStamp)
		}
		if o.Scale <= 0 {
			return fmt.Errorf("%w: image scale %g", ErrInvalidStamp, o.Scale)
		}
		if _, err := DetectImageType(o.Image); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown watermark kind %q", ErrInvalidStamp, o.Kind)
	}
	return nil
}

// AddWatermark draws the watermark at the centre of every page.
func AddWatermark(data []byte, opts WatermarkOptions) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	total, err := pageCount(data)
	if err != nil {
		return nil, err
	}

	stamps := make(map[int]*model.Watermark, total)
	for p := 1; p <= total; p++ {
		wm, err := newWatermark(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to build watermark: %w", err)
		}
		stamps[p] = wm
	}
	return applyStamps(data, stamps)
}

func newWatermark(opts WatermarkOptions) (*model.Watermark, error) {
	if opts.Kind == ImageWatermark {
		desc := fmt.Sprintf("pos:c, rot:%g, op:%g, scale:%g abs", opts.RotationDegrees, opts.Opacity, opts.Scale)
		return api.ImageWatermarkForReader(bytes.NewReader(opts.Image), desc, true, false, types.POINTS)
	}
	desc := fmt.Sprintf("font:Helvetica-Bold, points:%g, scale:1 abs, pos:c, rot:%g, op:%g, fillcolor:#808080",
		opts.FontSizePt, opts.RotationDegrees, opts.Opacity)
	return api.TextWatermark(opts.Text, desc, true, false, types.POINTS)
}

func applyStamps(data []byte, stamps map[int]*model.Watermark) ([]byte, error) {
	var out bytes.Buffer
	if err := api.AddWatermarksMap(bytes.NewReader(data), &out, stamps, newConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to stamp pages: %w", err)
	}
	return out.Bytes(), nil
}

func pageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return n, nil
}
