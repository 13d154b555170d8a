package assembly

import (
	"context"
	"fmt"

	"github.com/kpauljoseph/pagecompose/internal/pdf"
)

// Output is the document under construction. It is held either parsed or
// serialised and converts lazily between the two, so consecutive
// transforms of the same kind do not round-trip through bytes.
type Output struct {
	doc  *pdf.Document
	data []byte
}

func (o *Output) Document() (*pdf.Document, error) {
	if o.doc == nil {
		doc, err := pdf.Load(o.data)
		if err != nil {
			return nil, err
		}
		o.doc, o.data = doc, nil
	}
	return o.doc, nil
}

func (o *Output) Bytes() ([]byte, error) {
	if o.data == nil {
		data, err := o.doc.Bytes()
		if err != nil {
			return nil, err
		}
		o.doc, o.data = nil, data
	}
	return o.data, nil
}

// Replace swaps in a new serialised document.
func (o *Output) Replace(data []byte) {
	o.doc, o.data = nil, data
}

func (o *Output) PageCount() (int, error) {
	doc, err := o.Document()
	if err != nil {
		return 0, err
	}
	return doc.PageCount(), nil
}

// Transform changes every output page. Transforms run in the order given.
type Transform interface {
	Name() string
	Apply(ctx context.Context, out *Output) error
}

type InvertMode string

const (
	InvertNone InvertMode = "none"
	InvertAll  InvertMode = "all"
	InvertDark InvertMode = "dark"
)

func ParseInvertMode(s string) (InvertMode, error) {
	switch m := InvertMode(s); m {
	case "":
		return InvertNone, nil
	case InvertNone, InvertAll, InvertDark:
		return m, nil
	}
	return "", fmt.Errorf("unknown invert mode %q", s)
}

// Invert blends a white difference rectangle over pages. InvertDark only
// touches pages the analyzer classifies as dark.
type Invert struct {
	Mode     InvertMode
	Analyzer pdf.PageAnalyzer
}

func (t Invert) Name() string { return "invert(" + string(t.Mode) + ")" }

func (t Invert) Apply(ctx context.Context, out *Output) error {
	var pages []int

	switch t.Mode {
	case InvertNone, "":
		return nil
	case InvertAll:
		n, err := out.PageCount()
		if err != nil {
			return err
		}
		pages = make([]int, n)
		for i := range pages {
			pages[i] = i
		}
	case InvertDark:
		if t.Analyzer == nil {
			return fmt.Errorf("dark-page inversion needs a page analyzer")
		}
		data, err := out.Bytes()
		if err != nil {
			return err
		}
		results, err := t.Analyzer.ProcessPDF(ctx, data, nil)
		if err != nil {
			return fmt.Errorf("failed to classify pages: %w", err)
		}
		for _, r := range results {
			if r.Classification.IsDark {
				pages = append(pages, r.Index)
			}
		}
	default:
		return fmt.Errorf("unknown invert mode %q", t.Mode)
	}

	if len(pages) == 0 {
		return nil
	}
	doc, err := out.Document()
	if err != nil {
		return err
	}
	return doc.Invert(pages)
}

type Numbering struct {
	Options pdf.NumberingOptions
}

func (t Numbering) Name() string { return "numbering" }

func (t Numbering) Apply(_ context.Context, out *Output) error {
	data, err := out.Bytes()
	if err != nil {
		return err
	}
	stamped, err := pdf.AddPageNumbers(data, t.Options)
	if err != nil {
		return err
	}
	out.Replace(stamped)
	return nil
}

type Watermark struct {
	Options pdf.WatermarkOptions
}

func (t Watermark) Name() string { return "watermark(" + string(t.Options.Kind) + ")" }

func (t Watermark) Apply(_ context.Context, out *Output) error {
	data, err := out.Bytes()
	if err != nil {
		return err
	}
	stamped, err := pdf.AddWatermark(data, t.Options)
	if err != nil {
		return err
	}
	out.Replace(stamped)
	return nil
}
