package models

import "fmt"

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(s) {
	case Portrait, "":
		return Portrait, nil
	case Landscape:
		return Landscape, nil
	}
	return "", fmt.Errorf("unknown orientation %q", s)
}

type LayoutSpec struct {
	PagesPerSheet int         `yaml:"pages_per_sheet"`
	Orientation   Orientation `yaml:"orientation"`
	MarginPt      float64     `yaml:"margin_pt"`
	InvertColors  bool        `yaml:"invert_colors"`
}

// Rect is an axis-aligned rectangle in PDF user space (origin bottom-left).
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (r Rect) MaxX() float64 { return r.X + r.Width }
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Contains reports whether o lies inside r, allowing eps for rounding.
func (r Rect) Contains(o Rect, eps float64) bool {
	return o.X >= r.X-eps && o.Y >= r.Y-eps &&
		o.MaxX() <= r.MaxX()+eps && o.MaxY() <= r.MaxY()+eps
}

// Placement assigns the Page-th input page to a grid cell. Content is the
// scaled, centred page rectangle inside Cell. Ref is the sequence entry the
// page came from once the sheets are bound to refs; Page is then its
// position in the ordered refs.
type Placement struct {
	Page    int
	Ref     PageRef
	Cell    Rect
	Content Rect
	Scale   float64
}

// Sheet is one page of the assembled output.
type Sheet struct {
	Index      int
	Width      float64
	Height     float64
	Placements []Placement
}
