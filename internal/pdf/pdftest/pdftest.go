// Package pdftest builds small PDF and image fixtures for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	Black = color.Gray{Y: 0}
	White = color.Gray{Y: 255}
	Gray  = color.Gray{Y: 128}
)

// Page is one fixture page: a media box filled with a single colour, plus an
// optional square of Mark in the top-left corner so orientation and order
// are visible in rasters.
type Page struct {
	Width  float64
	Height float64
	Fill   color.Color
	Mark   color.Color
	Rotate int
}

func A4(fill color.Color) Page {
	return Page{Width: 595.28, Height: 841.89, Fill: fill}
}

func Sized(w, h float64, fill color.Color) Page {
	return Page{Width: w, Height: h, Fill: fill}
}

// Build writes a minimal uncompressed PDF with one page per entry.
func Build(pages ...Page) []byte {
	var buf bytes.Buffer
	offsets := []int{0}
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets)-1, body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	var kids bytes.Buffer
	for i := range pages {
		fmt.Fprintf(&kids, "%d 0 R ", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), len(pages)))

	for i, p := range pages {
		content := pageContent(p)
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] /Rotate %d /Resources << >> /Contents %d 0 R >>",
			p.Width, p.Height, p.Rotate, 4+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), xref)
	return buf.Bytes()
}

func pageContent(p Page) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s 0 0 %.2f %.2f re f\n", rgb(p.Fill), p.Width, p.Height)
	if p.Mark != nil {
		side := p.Width / 4
		fmt.Fprintf(&b, "%s 0 %.2f %.2f %.2f re f\n", rgb(p.Mark), p.Height-side, side, side)
	}
	return b.String()
}

func rgb(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("%.3f %.3f %.3f rg", float64(r)/0xffff, float64(g)/0xffff, float64(b)/0xffff)
}

// Solid returns a w×h image of one colour.
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func PNG(w, h int, c color.Color) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Solid(w, h, c)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func JPEG(w, h int, c color.Color) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Solid(w, h, c), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// FromImages converts images into a PDF, one page per image, the way a
// scanner export would.
func FromImages(images ...[]byte) ([]byte, error) {
	readers := make([]io.Reader, len(images))
	for i, img := range images {
		readers[i] = bytes.NewReader(img)
	}

	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, readers, pdfcpu.DefaultImportConfig(), model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to import images: %w", err)
	}
	return out.Bytes(), nil
}
