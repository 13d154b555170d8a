package layout_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagecompose/internal/layout"
	"github.com/kpauljoseph/pagecompose/pkg/models"
	"github.com/kpauljoseph/pagecompose/pkg/utils"
)

const eps = 1e-9

func a4Pages(n int) []models.PageDimensions {
	pages := make([]models.PageDimensions, n)
	for i := range pages {
		pages[i] = models.PageDimensions{Width: utils.A4_WIDTH_PT, Height: utils.A4_HEIGHT_PT}
	}
	return pages
}

func spec(perSheet int, orientation models.Orientation, margin float64) models.LayoutSpec {
	return models.LayoutSpec{PagesPerSheet: perSheet, Orientation: orientation, MarginPt: margin}
}

var _ = Describe("Layout Composer", func() {
	var composer *layout.Composer

	BeforeEach(func() {
		composer = layout.NewComposer()
	})

	DescribeTable("grid lookup",
		func(perSheet int, orientation models.Orientation, cols, rows int) {
			grid, err := layout.GridFor(perSheet, orientation)
			Expect(err).NotTo(HaveOccurred())
			Expect(grid).To(Equal(layout.Grid{Cols: cols, Rows: rows}))
		},
		Entry("portrait 1-up", 1, models.Portrait, 1, 1),
		Entry("portrait 2-up", 2, models.Portrait, 1, 2),
		Entry("portrait 4-up", 4, models.Portrait, 2, 2),
		Entry("portrait 8-up", 8, models.Portrait, 2, 4),
		Entry("landscape 1-up", 1, models.Landscape, 1, 1),
		Entry("landscape 2-up", 2, models.Landscape, 2, 1),
		Entry("landscape 4-up", 4, models.Landscape, 2, 2),
		Entry("landscape 8-up", 8, models.Landscape, 4, 2),
		Entry("empty orientation means portrait", 8, models.Orientation(""), 2, 4),
	)

	Context("sheet size", func() {
		It("should keep the long side vertical in portrait", func() {
			size := composer.SheetSize(models.Portrait)
			Expect(size.Width).To(Equal(utils.A4_WIDTH_PT))
			Expect(size.Height).To(Equal(utils.A4_HEIGHT_PT))
		})

		It("should swap sides in landscape", func() {
			size := composer.SheetSize(models.Landscape)
			Expect(size.Width).To(Equal(utils.A4_HEIGHT_PT))
			Expect(size.Height).To(Equal(utils.A4_WIDTH_PT))
		})

		It("should use a custom base sheet", func() {
			letter := layout.NewComposerWithBase(models.PageDimensions{Width: 612, Height: 792})
			Expect(letter.SheetSize(models.Landscape)).To(Equal(models.PageDimensions{Width: 792, Height: 612}))

			cells, err := letter.Cells(spec(1, models.Portrait, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(cells).To(ConsistOf(models.Rect{X: 0, Y: 0, Width: 612, Height: 792}))
		})
	})

	Context("cell geometry", func() {
		It("should apply the margin at the edges and between cells", func() {
			cells, err := composer.Cells(spec(4, models.Portrait, 18))
			Expect(err).NotTo(HaveOccurred())
			Expect(cells).To(HaveLen(4))

			cellWidth := (utils.A4_WIDTH_PT - 3*18) / 2
			cellHeight := (utils.A4_HEIGHT_PT - 3*18) / 2

			By("placing the first cell at the top left")
			Expect(cells[0].X).To(BeNumerically("~", 18, eps))
			Expect(cells[0].Y).To(BeNumerically("~", utils.A4_HEIGHT_PT-18-cellHeight, eps))
			Expect(cells[0].Width).To(BeNumerically("~", cellWidth, eps))
			Expect(cells[0].Height).To(BeNumerically("~", cellHeight, eps))

			By("placing the second cell to its right")
			Expect(cells[1].X).To(BeNumerically("~", 18+cellWidth+18, eps))
			Expect(cells[1].Y).To(BeNumerically("~", cells[0].Y, eps))

			By("placing the last cell at the bottom right, one margin from the edges")
			Expect(cells[3].Y).To(BeNumerically("~", 18, eps))
			Expect(cells[3].MaxX()).To(BeNumerically("~", utils.A4_WIDTH_PT-18, eps))
		})

		It("should use the whole sheet for a single page without margin", func() {
			cells, err := composer.Cells(spec(1, models.Landscape, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(cells).To(ConsistOf(models.Rect{X: 0, Y: 0, Width: utils.A4_HEIGHT_PT, Height: utils.A4_WIDTH_PT}))
		})

		It("should order eight landscape cells row by row from the top", func() {
			cells, err := composer.Cells(spec(8, models.Landscape, 10))
			Expect(err).NotTo(HaveOccurred())
			Expect(cells).To(HaveLen(8))
			for i := 1; i < 4; i++ {
				Expect(cells[i].X).To(BeNumerically(">", cells[i-1].X))
				Expect(cells[i].Y).To(BeNumerically("~", cells[0].Y, eps))
			}
			Expect(cells[4].X).To(BeNumerically("~", cells[0].X, eps))
			Expect(cells[4].Y).To(BeNumerically("<", cells[0].Y))
		})
	})

	Context("partitioning pages into sheets", func() {
		It("should produce 4, 4 and 1 pages for nine pages 4-up", func() {
			s := spec(4, models.Portrait, 18)
			sheets, err := composer.ComputeSheets(a4Pages(9), s)
			Expect(err).NotTo(HaveOccurred())
			Expect(sheets).To(HaveLen(3))
			Expect(sheets[0].Placements).To(HaveLen(4))
			Expect(sheets[1].Placements).To(HaveLen(4))
			Expect(sheets[2].Placements).To(HaveLen(1))

			inner := models.Rect{
				X:      s.MarginPt,
				Y:      s.MarginPt,
				Width:  utils.A4_WIDTH_PT - 2*s.MarginPt,
				Height: utils.A4_HEIGHT_PT - 2*s.MarginPt,
			}
			next := 0
			for i, sheet := range sheets {
				Expect(sheet.Index).To(Equal(i))
				for _, p := range sheet.Placements {
					Expect(p.Page).To(Equal(next))
					next++
					Expect(inner.Contains(p.Cell, eps)).To(BeTrue(), "cell %+v escapes %+v", p.Cell, inner)
					Expect(p.Cell.Contains(p.Content, eps)).To(BeTrue())
				}
			}
			Expect(next).To(Equal(9))
		})

		It("should keep a trailing partial sheet in the leading cells", func() {
			sheets, err := composer.ComputeSheets(a4Pages(3), spec(8, models.Portrait, 12))
			Expect(err).NotTo(HaveOccurred())
			Expect(sheets).To(HaveLen(1))

			cells, err := composer.Cells(spec(8, models.Portrait, 12))
			Expect(err).NotTo(HaveOccurred())
			for i, p := range sheets[0].Placements {
				Expect(p.Cell).To(Equal(cells[i]))
			}
		})

		It("should pair every placement with the ref of the same position", func() {
			refs := make([]models.PageRef, 5)
			for i := range refs {
				refs[i] = models.PageRef{StableID: fmt.Sprintf("p%d", i+1), SourceID: "src", OriginalIndex: 4 - i}
			}
			sheets, err := composer.ComputeSheets(a4Pages(5), spec(2, models.Landscape, 18))
			Expect(err).NotTo(HaveOccurred())
			Expect(layout.BindRefs(sheets, refs)).To(Succeed())

			Expect(sheets).To(HaveLen(3))
			Expect(sheets[1].Placements[0].Ref).To(Equal(refs[2]))
			Expect(sheets[2].Placements[0].Ref).To(Equal(refs[4]))
			for _, sheet := range sheets {
				for _, p := range sheet.Placements {
					Expect(p.Ref).To(Equal(refs[p.Page]))
				}
			}

			Expect(layout.BindRefs(sheets, refs[:4])).To(MatchError(layout.ErrInvalidLayoutSpec))
		})

		It("should emit one sheet per page when packing one page per sheet", func() {
			sheets, err := composer.ComputeSheets(a4Pages(5), spec(1, models.Portrait, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(sheets).To(HaveLen(5))
			Expect(sheets[4].Placements[0].Scale).To(BeNumerically("~", 1, eps))
		})
	})

	Context("scale to fit", func() {
		DescribeTable("fits inside the cell and touches it on the limiting axis",
			func(page models.PageDimensions, cell models.Rect) {
				p := layout.Fit(0, page, cell)
				Expect(p.Content.Width).To(BeNumerically("<=", cell.Width+eps))
				Expect(p.Content.Height).To(BeNumerically("<=", cell.Height+eps))

				touchesWidth := cell.Width-p.Content.Width < 1e-6
				touchesHeight := cell.Height-p.Content.Height < 1e-6
				Expect(touchesWidth || touchesHeight).To(BeTrue())

				Expect(p.Content.Width / p.Content.Height).To(BeNumerically("~", page.Width/page.Height, 1e-9))
				Expect(cell.Contains(p.Content, eps)).To(BeTrue())
			},
			Entry("portrait page in portrait cell", models.PageDimensions{Width: 595.28, Height: 841.89}, models.Rect{X: 18, Y: 18, Width: 270.64, Height: 393.945}),
			Entry("portrait page in landscape cell", models.PageDimensions{Width: 595.28, Height: 841.89}, models.Rect{X: 0, Y: 0, Width: 400, Height: 200}),
			Entry("landscape page in portrait cell", models.PageDimensions{Width: 841.89, Height: 595.28}, models.Rect{X: 5, Y: 7, Width: 200, Height: 400}),
			Entry("square page in wide cell", models.PageDimensions{Width: 100, Height: 100}, models.Rect{X: 0, Y: 0, Width: 300, Height: 120}),
			Entry("tiny page is scaled up to fit", models.PageDimensions{Width: 10, Height: 20}, models.Rect{X: 0, Y: 0, Width: 100, Height: 100}),
			Entry("very tall page", models.PageDimensions{Width: 50, Height: 5000}, models.Rect{X: 0, Y: 0, Width: 250, Height: 300}),
		)

		It("should centre the scaled page inside its cell", func() {
			p := layout.Fit(3, models.PageDimensions{Width: 100, Height: 100}, models.Rect{X: 10, Y: 20, Width: 300, Height: 100})
			Expect(p.Page).To(Equal(3))
			Expect(p.Scale).To(Equal(1.0))
			Expect(p.Content).To(Equal(models.Rect{X: 110, Y: 20, Width: 100, Height: 100}))
		})
	})

	Context("invalid specs", func() {
		DescribeTable("rejects with ErrInvalidLayoutSpec",
			func(pages []models.PageDimensions, s models.LayoutSpec) {
				_, err := composer.ComputeSheets(pages, s)
				Expect(err).To(MatchError(layout.ErrInvalidLayoutSpec))
			},
			Entry("three pages per sheet", a4Pages(2), spec(3, models.Portrait, 0)),
			Entry("zero pages per sheet", a4Pages(2), spec(0, models.Portrait, 0)),
			Entry("negative margin", a4Pages(2), spec(2, models.Portrait, -1)),
			Entry("unknown orientation", a4Pages(2), spec(2, models.Orientation("diagonal"), 0)),
			Entry("no pages", []models.PageDimensions{}, spec(4, models.Portrait, 18)),
			Entry("margin larger than the sheet", a4Pages(2), spec(8, models.Landscape, 200)),
			Entry("zero-sized page", []models.PageDimensions{{Width: 0, Height: 10}}, spec(2, models.Portrait, 0)),
		)
	})
})
