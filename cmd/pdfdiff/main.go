package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kpauljoseph/pagecompose/internal/classify"
	"github.com/kpauljoseph/pagecompose/internal/pdf"
	"github.com/kpauljoseph/pagecompose/pkg/logger"
	"github.com/kpauljoseph/pagecompose/pkg/models"
)

// pdfdiff renders two PDFs and reports where their pages differ. It exits 1
// on any difference, so it can gate a regression check on composed output.
func main() {
	if len(os.Args) != 3 {
		fmt.Println("Usage: pdfdiff file1.pdf file2.pdf")
		os.Exit(2)
	}

	processor := pdf.NewProcessor(classify.NewDefault(), logger.Nop())
	ctx := context.Background()

	pages1, err := analyze(ctx, processor, os.Args[1])
	if err != nil {
		fmt.Printf("Error analyzing first PDF: %v\n", err)
		os.Exit(2)
	}
	pages2, err := analyze(ctx, processor, os.Args[2])
	if err != nil {
		fmt.Printf("Error analyzing second PDF: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("\nBasic Properties:\n")
	fmt.Printf("PDF 1 pages: %d\n", len(pages1))
	fmt.Printf("PDF 2 pages: %d\n", len(pages2))
	same := len(pages1) == len(pages2)

	maxPages := min(len(pages1), len(pages2))
	for i := 0; i < maxPages; i++ {
		p1, p2 := pages1[i], pages2[i]
		fmt.Printf("\nPage %d:\n", i+1)
		fmt.Printf("PDF 1 dimensions: %.2f x %.2f\n", p1.Dimensions.Width, p1.Dimensions.Height)
		fmt.Printf("PDF 2 dimensions: %.2f x %.2f\n", p2.Dimensions.Width, p2.Dimensions.Height)
		fmt.Printf("Background: %s / %s\n", background(p1), background(p2))
		fmt.Printf("Hashes match: %v\n", p1.Hash == p2.Hash)

		if p1.Dimensions != p2.Dimensions || p1.Hash != p2.Hash {
			same = false
		}
	}

	if !same {
		fmt.Println("\nDocuments differ")
		os.Exit(1)
	}
	fmt.Println("\nDocuments match")
}

func analyze(ctx context.Context, processor *pdf.Processor, path string) ([]models.PageAnalysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return processor.ProcessPDF(ctx, data, nil)
}

func background(p models.PageAnalysis) string {
	if p.Classification.IsDark {
		return "dark"
	}
	return "light"
}
