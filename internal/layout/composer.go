package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/kpauljoseph/pagecompose/pkg/models"
	"github.com/kpauljoseph/pagecompose/pkg/utils"
)

var ErrInvalidLayoutSpec = errors.New("invalid layout spec")

// Grid is a cols x rows arrangement of cells on one sheet.
type Grid struct {
	Cols int
	Rows int
}

func (g Grid) Cells() int { return g.Cols * g.Rows }

// The natural grid shape depends on which sheet side is longer, so it is
// looked up rather than derived.
var grids = map[models.Orientation]map[int]Grid{
	models.Portrait: {
		1: {Cols: 1, Rows: 1},
		2: {Cols: 1, Rows: 2},
		4: {Cols: 2, Rows: 2},
		8: {Cols: 2, Rows: 4},
	},
	models.Landscape: {
		1: {Cols: 1, Rows: 1},
		2: {Cols: 2, Rows: 1},
		4: {Cols: 2, Rows: 2},
		8: {Cols: 4, Rows: 2},
	},
}

func SupportedPagesPerSheet() []int {
	return []int{1, 2, 4, 8}
}

// GridFor resolves the grid; an empty orientation means portrait.
func GridFor(pagesPerSheet int, orientation models.Orientation) (Grid, error) {
	if orientation == "" {
		orientation = models.Portrait
	}
	byCount, ok := grids[orientation]
	if !ok {
		return Grid{}, fmt.Errorf("%w: unknown orientation %q", ErrInvalidLayoutSpec, orientation)
	}
	g, ok := byCount[pagesPerSheet]
	if !ok {
		return Grid{}, fmt.Errorf("%w: pages per sheet must be one of %v, got %d",
			ErrInvalidLayoutSpec, SupportedPagesPerSheet(), pagesPerSheet)
	}
	return g, nil
}

type Composer struct {
	base models.PageDimensions
}

// NewComposer lays sheets out on an ISO A4 base.
func NewComposer() *Composer {
	return &Composer{base: models.PageDimensions{Width: utils.A4_WIDTH_PT, Height: utils.A4_HEIGHT_PT}}
}

// NewComposerWithBase uses a portrait base size other than A4.
func NewComposerWithBase(base models.PageDimensions) *Composer {
	return &Composer{base: base}
}

// SheetSize orients the base size: portrait keeps the long side vertical.
func (c *Composer) SheetSize(orientation models.Orientation) models.PageDimensions {
	short, long := math.Min(c.base.Width, c.base.Height), math.Max(c.base.Width, c.base.Height)
	if orientation == models.Landscape {
		return models.PageDimensions{Width: long, Height: short}
	}
	return models.PageDimensions{Width: short, Height: long}
}

// Validate checks spec on its own, before any page is looked at.
func (c *Composer) Validate(spec models.LayoutSpec) error {
	if _, err := GridFor(spec.PagesPerSheet, spec.Orientation); err != nil {
		return err
	}
	if spec.MarginPt < 0 || math.IsNaN(spec.MarginPt) || math.IsInf(spec.MarginPt, 0) {
		return fmt.Errorf("%w: margin must be a finite value >= 0, got %v", ErrInvalidLayoutSpec, spec.MarginPt)
	}
	return nil
}

// Cells returns the empty grid of one sheet, row 0 at the top, in reading
// order. Margin is applied at the sheet edges and between cells.
func (c *Composer) Cells(spec models.LayoutSpec) ([]models.Rect, error) {
	if err := c.Validate(spec); err != nil {
		return nil, err
	}
	grid, _ := GridFor(spec.PagesPerSheet, spec.Orientation)
	sheet := c.SheetSize(spec.Orientation)
	m := spec.MarginPt

	cellWidth := (sheet.Width - float64(grid.Cols+1)*m) / float64(grid.Cols)
	cellHeight := (sheet.Height - float64(grid.Rows+1)*m) / float64(grid.Rows)
	if cellWidth <= 0 || cellHeight <= 0 {
		return nil, fmt.Errorf("%w: margin %v leaves no room for a %dx%d grid on a %.2fx%.2f sheet",
			ErrInvalidLayoutSpec, m, grid.Cols, grid.Rows, sheet.Width, sheet.Height)
	}

	cells := make([]models.Rect, 0, grid.Cells())
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			cells = append(cells, models.Rect{
				X:      m + float64(col)*(cellWidth+m),
				Y:      sheet.Height - m - float64(row+1)*cellHeight - float64(row)*m,
				Width:  cellWidth,
				Height: cellHeight,
			})
		}
	}
	return cells, nil
}

// ComputeSheets packs pages into consecutive chunks of spec.PagesPerSheet,
// one sheet per chunk. Cells past the end of a trailing partial chunk stay
// empty. Placement.Page is the index into pages; when pages were measured
// from an ordered ref list, BindRefs attaches the matching refs.
func (c *Composer) ComputeSheets(pages []models.PageDimensions, spec models.LayoutSpec) ([]models.Sheet, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages to lay out", ErrInvalidLayoutSpec)
	}
	cells, err := c.Cells(spec)
	if err != nil {
		return nil, err
	}
	for i, p := range pages {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: page %d has non-positive size %.2fx%.2f", ErrInvalidLayoutSpec, i, p.Width, p.Height)
		}
	}

	size := c.SheetSize(spec.Orientation)
	per := spec.PagesPerSheet
	sheets := make([]models.Sheet, 0, (len(pages)+per-1)/per)

	for start := 0; start < len(pages); start += per {
		end := start + per
		if end > len(pages) {
			end = len(pages)
		}

		sheet := models.Sheet{
			Index:      len(sheets),
			Width:      size.Width,
			Height:     size.Height,
			Placements: make([]models.Placement, 0, end-start),
		}
		for i := start; i < end; i++ {
			sheet.Placements = append(sheet.Placements, Fit(i, pages[i], cells[i-start]))
		}
		sheets = append(sheets, sheet)
	}

	return sheets, nil
}

// BindRefs sets each placement's Ref to refs[Page]. refs must be the list
// the measured pages were taken from, in the same order.
func BindRefs(sheets []models.Sheet, refs []models.PageRef) error {
	for si := range sheets {
		for pi := range sheets[si].Placements {
			pl := &sheets[si].Placements[pi]
			if pl.Page < 0 || pl.Page >= len(refs) {
				return fmt.Errorf("%w: placement for page %d but only %d refs", ErrInvalidLayoutSpec, pl.Page, len(refs))
			}
			pl.Ref = refs[pl.Page]
		}
	}
	return nil
}

// Fit scales page uniformly to the largest size that fits cell and centres
// it. The limiting axis touches the cell boundary.
func Fit(index int, page models.PageDimensions, cell models.Rect) models.Placement {
	scale := math.Min(cell.Width/page.Width, cell.Height/page.Height)
	w := page.Width * scale
	h := page.Height * scale

	return models.Placement{
		Page: index,
		Cell: cell,
		Content: models.Rect{
			X:      cell.X + (cell.Width-w)/2,
			Y:      cell.Y + (cell.Height-h)/2,
			Width:  w,
			Height: h,
		},
		Scale: scale,
	}
}
