package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kpauljoseph/pagecompose/internal/classify"
	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/pkg/logger"
	"github.com/kpauljoseph/pagecompose/pkg/utils"
)

func main() {
	pdfPath := flag.String("file", "", "Path to PDF file")
	thumbs := flag.Bool("thumbs", false, "Write PNG previews of every page")
	thumbDir := flag.String("thumb-dir", "", "Directory for previews (default: a new temp directory)")
	thumbSide := flag.Int("thumb-side", pdf.DefaultThumbnailSide, "Longest thumbnail side in pixels")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	if *pdfPath == "" {
		fmt.Println("Please provide a PDF file path using -file flag")
		os.Exit(1)
	}

	log := logger.New(logger.WithPrefix("inspect"), logger.WithPretty(true))
	log.SetVerbose(*verbose)

	data, err := os.ReadFile(*pdfPath)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	if _, err := pdf.DetectFileType(data); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Analyzing PDF: %s\n", *pdfPath)
	fmt.Printf("Content hash: %s\n", utils.ContentHash(data))

	doc, err := pdf.Load(data)
	if err != nil {
		fmt.Printf("Error loading PDF: %v\n", err)
		os.Exit(1)
	}
	dims, err := doc.PageSizes()
	if err != nil {
		fmt.Printf("Error getting page dimensions: %v\n", err)
		os.Exit(1)
	}

	processor := pdf.NewProcessor(classify.NewDefault(), log)
	ctx := context.Background()
	pages, err := processor.ProcessPDF(ctx, data, nil)
	if err != nil {
		fmt.Printf("Error classifying pages: %v\n", err)
		os.Exit(1)
	}

	for i, dim := range dims {
		fmt.Printf("\nPage %d:\n", i+1)
		fmt.Printf("Dimensions (Width x Height): %.3f x %.3f points\n", dim.Width, dim.Height)
		if i < len(pages) {
			c := pages[i].Classification
			background := "light"
			if c.IsDark {
				background = "dark"
			}
			fmt.Printf("Background: %s (confidence %.2f)\n", background, c.Confidence)
			fmt.Printf("Raster hash: %s\n", pages[i].Hash)
		}
	}

	if !*thumbs {
		return
	}
	dir := *thumbDir
	if dir == "" {
		dir = utils.GetDefaultOutputDir()
	}
	thumbnailer, err := pdf.NewThumbnailer(dir, *thumbSide, processor, log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	paths, err := thumbnailer.Write(ctx, data, utils.BaseName(*pdfPath), func(done, total int) {
		log.Debug("Rendered %d/%d thumbnails", done, total)
	})
	if err != nil {
		fmt.Printf("Error writing thumbnails: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nWrote %d thumbnails to %s\n", len(paths), dir)
}
