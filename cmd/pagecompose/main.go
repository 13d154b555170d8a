package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kpauljoseph/pagecompose/internal/assembly"
	"github.com/kpauljoseph/pagecompose/internal/classify"
	"github.com/kpauljoseph/pagecompose/internal/config"
	"github.com/kpauljoseph/pagecompose/internal/metrics"
	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/internal/scanner"
	"github.com/kpauljoseph/pagecompose/internal/workspace"
	"github.com/kpauljoseph/pagecompose/pkg/logger"
	"github.com/kpauljoseph/pagecompose/pkg/models"
	"github.com/kpauljoseph/pagecompose/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML job file")
	output := flag.String("out", "", "output PDF path (overrides config)")
	inputDir := flag.String("dir", "", "also take every PDF below this directory, sorted by path")
	perSheet := flag.Int("per-sheet", 0, "pages per sheet: 1, 2, 4 or 8 (overrides config)")
	orientation := flag.String("orientation", "", "sheet orientation: portrait or landscape (overrides config)")
	margin := flag.Float64("margin", -1, "sheet margin in points (overrides config)")
	invert := flag.String("invert", "", "invert colours: none, all or dark (overrides config)")
	number := flag.Bool("number", false, "stamp page numbers")
	numberFormat := flag.String("number-format", "", "page number format with {p} and {n}")
	watermark := flag.String("watermark", "", "text watermark")
	watermarkImage := flag.String("watermark-image", "", "PNG or JPEG watermark")
	metricsFile := flag.String("metrics-file", "", "write prometheus metrics to this textfile")
	logFile := flag.String("log-file", "", "also write JSON logs to this file, rotated")
	pretty := flag.Bool("pretty", true, "human readable console logs")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	debug := flag.Bool("debug", false, "enable debug mode with trace logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pagecompose [flags] file.pdf[:pages] ...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Print(version.GetDetailedVersionInfo())
		return
	}

	log := logger.New(
		logger.WithPrefix("pagecompose"),
		logger.WithPretty(*pretty),
		logger.WithFile(*logFile, 10, 3),
	)
	defer log.Close()
	log.SetVerbose(*verbose)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal("Error loading config: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output = *output
		case "per-sheet":
			cfg.Layout.PagesPerSheet = *perSheet
		case "orientation":
			cfg.Layout.Orientation = models.Orientation(*orientation)
		case "margin":
			cfg.Layout.MarginPt = *margin
		case "invert":
			cfg.Invert.Mode = *invert
		case "number":
			cfg.Numbering.Enabled = *number
		case "number-format":
			cfg.Numbering.Enabled = true
			cfg.Numbering.Format = *numberFormat
		case "watermark":
			cfg.Watermark.Enabled = true
			cfg.Watermark.Kind = string(pdf.TextWatermark)
			cfg.Watermark.Text = *watermark
		case "watermark-image":
			cfg.Watermark.Enabled = true
			cfg.Watermark.Kind = string(pdf.ImageWatermark)
			cfg.Watermark.ImagePath = *watermarkImage
		case "metrics-file":
			cfg.MetricsFile = *metricsFile
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: %v", err)
	}

	switch {
	case *debug || cfg.LogLevel == "trace":
		log.SetLevel(logger.LevelTrace)
	case cfg.LogLevel == "debug":
		log.SetLevel(logger.LevelDebug)
	}
	log.Debug("%s", version.GetVersionInfo())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dirScanner := scanner.New(log)
	paths := make([]string, 0, len(cfg.Inputs)+flag.NArg())
	for _, in := range cfg.Inputs {
		if in.Pages != "" {
			paths = append(paths, in.Path+":"+in.Pages)
		} else {
			paths = append(paths, in.Path)
		}
	}
	paths = append(paths, flag.Args()...)
	if *inputDir != "" {
		log.Info("Scanning directory: %s", *inputDir)
		found, err := dirScanner.FindPDFs(ctx, *inputDir)
		if err != nil {
			log.Fatal("Error finding PDFs: %v", err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	files, err := dirScanner.ReadFiles(ctx, paths)
	if err != nil {
		log.Fatal("Error reading inputs: %v", err)
	}

	collector := metrics.New()
	processor := pdf.NewProcessor(
		classify.New(cfg.Classifier.Thresholds),
		log,
		pdf.WithWorkers(cfg.Workers),
		pdf.WithDPI(cfg.Classifier.DPI),
		pdf.WithMaxSide(cfg.Classifier.MaxSide),
	)

	run := &runReport{StartTime: time.Now()}
	ws := workspace.New(log,
		workspace.WithAnalyzer(processor),
		workspace.WithMetrics(collector),
		workspace.WithObserver(func(_, to assembly.State) {
			run.LastState = to
		}),
	)

	upload := ws.Upload(files...)
	run.Files = len(files)
	run.Upload = upload
	for _, f := range upload.Failed {
		log.Warn("Skipped %s: %v", f.Name, f.Err)
	}
	if len(ws.Pages()) == 0 {
		log.Fatal("No pages to compose")
	}

	transforms, err := cfg.Transforms(processor)
	if err != nil {
		log.Fatal("Error preparing transforms: %v", err)
	}

	data, err := ws.Export(ctx, cfg.Layout, transforms...)
	if err != nil {
		writeMetrics(collector, cfg.MetricsFile, log)
		log.Fatal("Error composing document: %v", err)
	}

	if err := writeOutput(cfg.Output, data); err != nil {
		log.Fatal("Error writing %s: %v", cfg.Output, err)
	}
	writeMetrics(collector, cfg.MetricsFile, log)

	out, err := pdf.Load(data)
	if err == nil {
		run.OutputPages = out.PageCount()
	}
	run.Pages = len(ws.Pages())
	run.Output = cfg.Output
	run.Bytes = len(data)
	run.EndTime = time.Now()
	run.Print(log)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// writeOutput writes next to the target and renames, so a failed write
// never leaves a truncated PDF behind.
func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := path + ".partial"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeMetrics(m *metrics.Metrics, path string, log *logger.Logger) {
	if err := m.WriteTextfile(path); err != nil {
		log.Error(err, "Failed to write metrics")
	}
}

type runReport struct {
	StartTime   time.Time
	EndTime     time.Time
	Files       int
	Upload      workspace.UploadReport
	Pages       int
	OutputPages int
	Output      string
	Bytes       int
	LastState   assembly.State
}

func (r *runReport) Print(log *logger.Logger) {
	log.Zerolog().Info().
		Str("state", r.LastState.String()).
		Int("output_pages", r.OutputPages).
		Dur("took", r.EndTime.Sub(r.StartTime)).
		Msg("Composition complete:")
	log.Info("- Files read: %d (%d loaded, %d duplicate, %d skipped)",
		r.Files, len(r.Upload.Loaded), len(r.Upload.Duplicates), len(r.Upload.Failed))
	log.Info("- Pages in sequence: %d", r.Pages)
	log.Info("- Output pages: %d", r.OutputPages)
	log.Info("- Written to: %s (%d bytes)", r.Output, r.Bytes)
	log.Info("- Took: %s", r.EndTime.Sub(r.StartTime).Round(time.Millisecond))
	if len(r.Upload.Failed) > 0 {
		names := make([]string, len(r.Upload.Failed))
		for i, f := range r.Upload.Failed {
			names[i] = f.Name
		}
		log.Warn("- Skipped files: %s", strings.Join(names, ", "))
	}
}
