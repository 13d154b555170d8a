package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/kpauljoseph/pagecompose/pkg/models"
)

// ComposeSheets replaces the document's pages with the given sheets. Every
// placement draws one existing page (by 0-based index) as a form XObject,
// scaled into its content rectangle. Pages not placed on any sheet are
// dropped.
func (d *Document) ComposeSheets(sheets []models.Sheet) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to compose")
	}

	forms := make(map[int]*types.IndirectRef)
	formFor := func(page int) (*types.IndirectRef, error) {
		if ref, ok := forms[page]; ok {
			return ref, nil
		}
		ref, err := d.pageForm(page + 1)
		if err != nil {
			return nil, err
		}
		forms[page] = ref
		return ref, nil
	}

	pages := types.Dict(map[string]types.Object{
		"Type":  types.Name("Pages"),
		"Count": types.Integer(len(sheets)),
		"Kids":  types.Array{},
	})
	pagesRef, err := d.ctx.IndRefForNewObject(pages)
	if err != nil {
		return fmt.Errorf("failed to create page tree: %w", err)
	}

	kids := make(types.Array, 0, len(sheets))
	for _, sheet := range sheets {
		xobjects := types.Dict(map[string]types.Object{})
		var content bytes.Buffer

		for i, pl := range sheet.Placements {
			if pl.Page < 0 || pl.Page >= d.ctx.PageCount {
				return fmt.Errorf("sheet %d places page %d, document has %d", sheet.Index, pl.Page, d.ctx.PageCount)
			}
			ref, err := formFor(pl.Page)
			if err != nil {
				return err
			}
			box, rotate, err := d.pageGeometry(pl.Page + 1)
			if err != nil {
				return err
			}

			name := fmt.Sprintf("Fm%d", i)
			xobjects[name] = *ref
			writePlacement(&content, name, pl, box, rotate)
		}

		contentRef, err := d.newStream(content.Bytes())
		if err != nil {
			return fmt.Errorf("failed to write sheet %d content: %w", sheet.Index, err)
		}

		page := types.Dict(map[string]types.Object{
			"Type":      types.Name("Page"),
			"Parent":    *pagesRef,
			"MediaBox":  types.RectForWidthAndHeight(0, 0, sheet.Width, sheet.Height).Array(),
			"Resources": types.Dict(map[string]types.Object{"XObject": xobjects}),
			"Contents":  *contentRef,
		})
		pageRef, err := d.ctx.IndRefForNewObject(page)
		if err != nil {
			return fmt.Errorf("failed to create sheet %d: %w", sheet.Index, err)
		}
		kids = append(kids, *pageRef)
	}
	pages["Kids"] = kids

	catalog, err := d.ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	catalog["Pages"] = *pagesRef
	d.ctx.PageCount = len(sheets)
	return nil
}

// pageForm wraps a 1-based page's content and resources into a form
// XObject whose bounding box is the page's visible box.
func (d *Document) pageForm(nr int) (*types.IndirectRef, error) {
	pageDict, _, inh, err := d.ctx.PageDict(nr, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d: %w", nr-1, err)
	}
	box, _, err := d.pageGeometry(nr)
	if err != nil {
		return nil, err
	}

	var content []byte
	if _, found := pageDict.Find("Contents"); found {
		if content, err = d.ctx.PageContent(pageDict); err != nil {
			return nil, fmt.Errorf("failed to read content of page %d: %w", nr-1, err)
		}
	}

	sd, err := d.ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	sd.Dict["Type"] = types.Name("XObject")
	sd.Dict["Subtype"] = types.Name("Form")
	sd.Dict["BBox"] = box.Array()
	if res, found := pageDict.Find("Resources"); found {
		sd.Dict["Resources"] = res
	} else if inh.Resources != nil {
		sd.Dict["Resources"] = inh.Resources
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return d.ctx.IndRefForNewObject(*sd)
}

// writePlacement emits the operators drawing form name into pl.Content.
// The page box is first moved to the origin, then turned by its /Rotate
// so the visible orientation is kept, then scaled and translated.
func writePlacement(buf *bytes.Buffer, name string, pl models.Placement, box *types.Rectangle, rotate int) {
	w, h := box.Width(), box.Height()

	buf.WriteString("q\n")
	fmt.Fprintf(buf, "%.5f 0 0 %.5f %.5f %.5f cm\n", pl.Scale, pl.Scale, pl.Content.X, pl.Content.Y)
	switch rotate {
	case 90:
		fmt.Fprintf(buf, "0 -1 1 0 0 %.5f cm\n", w)
	case 180:
		fmt.Fprintf(buf, "-1 0 0 -1 %.5f %.5f cm\n", w, h)
	case 270:
		fmt.Fprintf(buf, "0 1 -1 0 %.5f 0 cm\n", h)
	}
	fmt.Fprintf(buf, "1 0 0 1 %.5f %.5f cm\n", -box.LL.X, -box.LL.Y)
	fmt.Fprintf(buf, "/%s Do\n", name)
	buf.WriteString("Q\n")
}
