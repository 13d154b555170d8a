package workspace_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kpauljoseph/pagecompose/internal/assembly"
	"github.com/kpauljoseph/pagecompose/internal/classify"
	"github.com/kpauljoseph/pagecompose/internal/layout"
	"github.com/kpauljoseph/pagecompose/internal/metrics"
	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/internal/pdf/pdftest"
	"github.com/kpauljoseph/pagecompose/internal/sequence"
	"github.com/kpauljoseph/pagecompose/internal/workspace"
	"github.com/kpauljoseph/pagecompose/pkg/logger"
	"github.com/kpauljoseph/pagecompose/pkg/models"
)

var _ = Describe("Workspace", func() {
	var (
		ws        *workspace.Workspace
		collector *metrics.Metrics
		log       *logger.Logger
		observer  func(from, to assembly.State)
		modified  time.Time
		threePage []byte
	)

	spec := models.LayoutSpec{PagesPerSheet: 1, Orientation: models.Portrait}

	file := func(name string, data []byte) workspace.File {
		return workspace.File{Name: name, Data: data, LastModified: modified}
	}

	BeforeEach(func() {
		log = logger.New(logger.WithOutput(GinkgoWriter), logger.WithTimestamp(false))
		collector = metrics.New()
		observer = nil
		modified = time.Date(2024, 6, 2, 8, 30, 0, 0, time.UTC)
		threePage = pdftest.Build(
			pdftest.Sized(100, 100, pdftest.White),
			pdftest.Sized(200, 100, pdftest.Black),
			pdftest.Sized(300, 100, pdftest.Gray),
		)

		ws = workspace.New(log,
			workspace.WithMetrics(collector),
			workspace.WithAnalyzer(pdf.NewProcessor(classify.NewDefault(), log, pdf.WithWorkers(2))),
			workspace.WithObserver(func(from, to assembly.State) {
				if observer != nil {
					observer(from, to)
				}
			}),
		)
	})

	Context("uploading", func() {
		It("should keep going past bad files and say why they failed", func() {
			report := ws.Upload(
				file("good.pdf", threePage),
				file("photo.pdf", pdftest.PNG(8, 8, pdftest.White)),
				file("broken.pdf", []byte("%PDF-1.5\nnot really")),
				file("other.pdf", pdftest.Build(pdftest.A4(pdftest.White))),
			)

			Expect(report.HasErrors()).To(BeTrue())
			Expect(report.Loaded).To(HaveLen(2))
			Expect(report.Pages).To(HaveLen(4))
			Expect(report.Failed).To(HaveLen(2))
			Expect(report.Failed[0].Name).To(Equal("photo.pdf"))
			Expect(report.Failed[0].Err).To(MatchError(pdf.ErrUnsupportedFileType))
			Expect(report.Failed[1].Name).To(Equal("broken.pdf"))
			Expect(report.Failed[1].Err).To(MatchError(pdf.ErrCorruptDocument))

			Expect(ws.Pages()).To(HaveLen(4))
			Expect(ws.Sources()).To(HaveLen(2))

			expected := `
# HELP pagecompose_uploads_total Uploaded files by result (loaded, duplicate, unsupported, corrupt)
# TYPE pagecompose_uploads_total counter
pagecompose_uploads_total{result="corrupt"} 1
pagecompose_uploads_total{result="loaded"} 2
pagecompose_uploads_total{result="unsupported"} 1
`
			Expect(testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "pagecompose_uploads_total")).To(Succeed())
		})

		It("should add the pages of a repeated file again without loading it twice", func() {
			first := ws.Upload(file("notes.pdf", threePage))
			second := ws.Upload(file("notes.pdf", threePage))

			Expect(first.Loaded).To(HaveLen(1))
			Expect(second.Loaded).To(BeEmpty())
			Expect(second.Duplicates).To(HaveLen(1))
			Expect(second.Duplicates[0].ID).To(Equal(first.Loaded[0].ID))
			Expect(ws.Sources()).To(HaveLen(1))
			Expect(ws.Pages()).To(HaveLen(6))
		})

		It("should honour page selections", func() {
			f := file("notes.pdf", threePage)
			f.Pages = "3,1"
			report := ws.Upload(f)
			Expect(report.HasErrors()).To(BeFalse())

			pages := ws.Pages()
			Expect(pages).To(HaveLen(2))
			Expect(pages[0].OriginalIndex).To(Equal(2))
			Expect(pages[1].OriginalIndex).To(Equal(0))
		})

		It("should not keep a source whose selection was invalid", func() {
			f := file("notes.pdf", threePage)
			f.Pages = "7"
			report := ws.Upload(f)

			Expect(report.Failed).To(HaveLen(1))
			Expect(report.Failed[0].Err).To(MatchError(sequence.ErrPageIndex))
			Expect(ws.Sources()).To(BeEmpty())
		})
	})

	Context("editing", func() {
		var refs []models.PageRef

		BeforeEach(func() {
			report := ws.Upload(file("notes.pdf", threePage))
			Expect(report.HasErrors()).To(BeFalse())
			refs = report.Pages
		})

		It("should release a source once all its pages are gone", func() {
			for _, r := range refs {
				Expect(ws.Remove(r.StableID)).To(Succeed())
			}
			Expect(ws.Pages()).To(BeEmpty())
			Expect(ws.Sources()).To(BeEmpty())
		})

		It("should reorder pages", func() {
			Expect(ws.Move(refs[2].StableID, 0)).To(Succeed())
			Expect(ws.Pages()[0]).To(Equal(refs[2]))
		})

		It("should clear everything", func() {
			Expect(ws.Clear()).To(Succeed())
			Expect(ws.Pages()).To(BeEmpty())
			Expect(ws.Sources()).To(BeEmpty())

			_, err := ws.Export(context.Background(), spec)
			Expect(err).To(MatchError(layout.ErrInvalidLayoutSpec))
		})
	})

	Context("analyzing", func() {
		It("should classify each page of a source", func() {
			report := ws.Upload(file("notes.pdf", threePage))
			results, err := ws.Analyze(context.Background(), report.Loaded[0].ID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[1].Classification.IsDark).To(BeTrue())
			Expect(results[0].Classification.IsDark).To(BeFalse())
		})

		It("should fail for an unknown source", func() {
			_, err := ws.Analyze(context.Background(), "missing", nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("exporting", func() {
		It("should export the sequence in its current order", func() {
			report := ws.Upload(file("notes.pdf", threePage))
			Expect(ws.Move(report.Pages[0].StableID, 2)).To(Succeed())

			data, err := ws.Export(context.Background(), spec)
			Expect(err).NotTo(HaveOccurred())

			doc, err := pdf.Load(data)
			Expect(err).NotTo(HaveOccurred())
			sizes, err := doc.PageSizes()
			Expect(err).NotTo(HaveOccurred())
			Expect([]float64{sizes[0].Width, sizes[1].Width, sizes[2].Width}).To(Equal([]float64{200, 300, 100}))
		})

		It("should not see edits made while it runs", func() {
			ws.Upload(file("notes.pdf", threePage))

			observer = func(_, to assembly.State) {
				if to == assembly.LoadingSources {
					Expect(ws.Clear()).To(Succeed())
				}
			}

			data, err := ws.Export(context.Background(), spec)
			Expect(err).NotTo(HaveOccurred())
			Expect(ws.Pages()).To(BeEmpty())

			doc, err := pdf.Load(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.PageCount()).To(Equal(3))
		})
	})
})
