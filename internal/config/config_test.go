package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagecompose/internal/assembly"
	"github.com/kpauljoseph/pagecompose/internal/config"
	"github.com/kpauljoseph/pagecompose/internal/layout"
	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/internal/pdf/pdftest"
	"github.com/kpauljoseph/pagecompose/pkg/models"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

var _ = Describe("Config", func() {
	Context("defaults", func() {
		It("should fill every default", func() {
			cfg, err := config.Parse([]byte("inputs:\n  - path: a.pdf\n"))
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.Output).To(Equal(config.DefaultOutput))
			Expect(cfg.Inputs).To(Equal([]config.Input{{Path: "a.pdf"}}))
			Expect(cfg.Layout).To(Equal(models.LayoutSpec{PagesPerSheet: 1, Orientation: models.Portrait, MarginPt: 18}))
			Expect(cfg.Invert.Mode).To(Equal("none"))
			Expect(cfg.Numbering.Format).To(Equal("page {p} of {n}"))
			Expect(cfg.Numbering.Position).To(Equal("bottom-center"))
			Expect(cfg.Numbering.FontSizePt).To(Equal(12.0))
			Expect(cfg.Numbering.MarginPt).To(Equal(36.0))
			Expect(cfg.Watermark.Opacity).To(Equal(0.5))
			Expect(cfg.Watermark.FontSizePt).To(Equal(48.0))
			Expect(cfg.Watermark.Scale).To(Equal(0.5))
			Expect(cfg.Classifier.DarkLuma).To(Equal(50.0))
			Expect(cfg.Classifier.MaxMeanLuma).To(Equal(80.0))
			Expect(cfg.Workers).To(BeNumerically(">=", 1))
		})

		It("should keep an explicit zero margin", func() {
			cfg, err := config.Parse([]byte("layout:\n  pages_per_sheet: 4\n  margin_pt: 0\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Layout.MarginPt).To(BeZero())
			Expect(cfg.Layout.PagesPerSheet).To(Equal(4))
		})

		It("should keep an explicit zero opacity and numbering margin", func() {
			cfg, err := config.Parse([]byte(
				"numbering:\n  enabled: true\n  margin_pt: 0\n" +
					"watermark:\n  enabled: true\n  text: DRAFT\n  opacity: 0\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Numbering.MarginPt).To(BeZero())
			Expect(cfg.Watermark.Opacity).To(BeZero())
			Expect(cfg.Watermark.FontSizePt).To(Equal(48.0))

			transforms, err := cfg.Transforms(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(transforms).To(HaveLen(2))
			Expect(transforms[0]).To(Equal(assembly.Numbering{Options: pdf.NumberingOptions{
				Format:     "page {p} of {n}",
				Position:   pdf.BottomCenter,
				FontSizePt: 12,
				MarginPt:   0,
			}}))
			Expect(transforms[1].(assembly.Watermark).Options.Opacity).To(BeZero())
		})

		It("should read a full job from disk", func() {
			dir, err := os.MkdirTemp("", "pagecompose-config-*")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)

			path := filepath.Join(dir, "job.yaml")
			Expect(os.WriteFile(path, []byte(`
output: out/handout.pdf
inputs:
  - path: slides.pdf
    pages: "1-4"
  - path: appendix.pdf
layout:
  pages_per_sheet: 8
  orientation: landscape
  margin_pt: 12
  invert_colors: true
invert:
  mode: dark
numbering:
  enabled: true
  format: "{p}/{n}"
  position: top-right
watermark:
  enabled: true
  text: DRAFT
  rotation_degrees: 45
classifier:
  dark_luma: 40
  dpi: 24
workers: 3
metrics_file: /tmp/pagecompose.prom
`), 0644)).To(Succeed())

			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Output).To(Equal("out/handout.pdf"))
			Expect(cfg.Inputs).To(HaveLen(2))
			Expect(cfg.Inputs[0].Pages).To(Equal("1-4"))
			Expect(cfg.Layout).To(Equal(models.LayoutSpec{PagesPerSheet: 8, Orientation: models.Landscape, MarginPt: 12, InvertColors: true}))
			Expect(cfg.Invert.Mode).To(Equal("dark"))
			Expect(cfg.Numbering.Position).To(Equal("top-right"))
			Expect(cfg.Watermark.Kind).To(Equal("text"))
			Expect(cfg.Watermark.RotationDegrees).To(Equal(45.0))
			Expect(cfg.Classifier.DarkLuma).To(Equal(40.0))
			Expect(cfg.Classifier.LightLuma).To(Equal(205.0))
			Expect(cfg.Classifier.DPI).To(Equal(24.0))
			Expect(cfg.Workers).To(Equal(3))
			Expect(cfg.MetricsFile).To(Equal("/tmp/pagecompose.prom"))
		})

		It("should fail for a missing file", func() {
			_, err := config.Load("/nonexistent/job.yaml")
			Expect(err).To(HaveOccurred())
		})
	})

	DescribeTable("validation",
		func(doc string, expected error) {
			_, err := config.Parse([]byte(doc))
			Expect(err).To(MatchError(expected))
		},
		Entry("three per sheet", "layout:\n  pages_per_sheet: 3\n", layout.ErrInvalidLayoutSpec),
		Entry("negative margin", "layout:\n  margin_pt: -2\n", layout.ErrInvalidLayoutSpec),
		Entry("bad orientation", "layout:\n  orientation: sideways\n", layout.ErrInvalidLayoutSpec),
		Entry("bad invert mode", "invert:\n  mode: some\n", config.ErrInvalidConfig),
		Entry("bad position", "numbering:\n  position: middle\n", pdf.ErrInvalidStamp),
		Entry("text watermark without text", "watermark:\n  enabled: true\n", config.ErrInvalidConfig),
		Entry("image watermark without image", "watermark:\n  enabled: true\n  kind: image\n", config.ErrInvalidConfig),
		Entry("opacity out of range", "watermark:\n  enabled: true\n  text: x\n  opacity: 2\n", config.ErrInvalidConfig),
		Entry("negative workers", "workers: -1\n", config.ErrInvalidConfig),
		Entry("unknown log level", "log_level: loud\n", config.ErrInvalidConfig),
		Entry("light below dark", "classifier:\n  dark_luma: 210\n", config.ErrInvalidConfig),
	)

	It("should reject malformed YAML", func() {
		_, err := config.Parse([]byte("layout: [1, 2"))
		Expect(err).To(HaveOccurred())
	})

	Context("environment overrides", func() {
		It("should override workers, metrics file and log level", func() {
			cfg := config.Default()
			Expect(cfg.ApplyEnv(env(map[string]string{
				"PAGECOMPOSE_WORKERS":      "7",
				"PAGECOMPOSE_METRICS_FILE": "/var/lib/node_exporter/pagecompose.prom",
				"PAGECOMPOSE_LOG_LEVEL":    "TRACE",
			}))).To(Succeed())

			Expect(cfg.Workers).To(Equal(7))
			Expect(cfg.MetricsFile).To(Equal("/var/lib/node_exporter/pagecompose.prom"))
			Expect(cfg.LogLevel).To(Equal("trace"))
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject a non-numeric worker count", func() {
			cfg := config.Default()
			err := cfg.ApplyEnv(env(map[string]string{"PAGECOMPOSE_WORKERS": "many"}))
			Expect(err).To(MatchError(config.ErrInvalidConfig))
		})

		It("should leave values alone when nothing is set", func() {
			cfg := config.Default()
			before := *cfg
			Expect(cfg.ApplyEnv(env(nil))).To(Succeed())
			Expect(*cfg).To(Equal(before))
		})
	})

	Context("transforms", func() {
		It("should build nothing by default", func() {
			transforms, err := config.Default().Transforms(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(transforms).To(BeEmpty())
		})

		It("should build inversion, numbering and watermark in order", func() {
			cfg := config.Default()
			cfg.Invert.Mode = "dark"
			cfg.Numbering.Enabled = true
			cfg.Watermark.Enabled = true
			cfg.Watermark.Text = "DRAFT"

			transforms, err := cfg.Transforms(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(transforms).To(HaveLen(3))
			Expect(transforms[0]).To(Equal(assembly.Invert{Mode: assembly.InvertDark}))
			Expect(transforms[1].Name()).To(Equal("numbering"))
			Expect(transforms[2].Name()).To(Equal("watermark(text)"))
		})

		It("should not invert twice when the layout already inverts", func() {
			cfg := config.Default()
			cfg.Invert.Mode = "all"
			cfg.Layout.InvertColors = true

			transforms, err := cfg.Transforms(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(transforms).To(BeEmpty())
		})

		It("should read an image watermark from disk", func() {
			dir, err := os.MkdirTemp("", "pagecompose-config-*")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)

			path := filepath.Join(dir, "logo.png")
			Expect(os.WriteFile(path, pdftest.PNG(16, 16, pdftest.Gray), 0644)).To(Succeed())

			cfg := config.Default()
			cfg.Watermark.Enabled = true
			cfg.Watermark.Kind = "image"
			cfg.Watermark.ImagePath = path

			transforms, err := cfg.Transforms(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(transforms).To(HaveLen(1))
			Expect(transforms[0].Name()).To(Equal("watermark(image)"))
		})
	})
})
