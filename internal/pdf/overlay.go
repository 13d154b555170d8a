package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const invertGState = "GSpcInvert"

// Invert paints a white rectangle in Difference blend mode over each listed
// 0-based page, which inverts every colour underneath it.
func (d *Document) Invert(pages []int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(pages) == 0 {
		return nil
	}

	gs := types.Dict(map[string]types.Object{
		"Type": types.Name("ExtGState"),
		"BM":   types.Name("Difference"),
	})
	gsRef, err := d.ctx.IndRefForNewObject(gs)
	if err != nil {
		return fmt.Errorf("failed to create blend state: %w", err)
	}

	for _, index := range pages {
		if index < 0 || index >= d.ctx.PageCount {
			return fmt.Errorf("page %d out of range [0,%d)", index, d.ctx.PageCount)
		}
		if err := d.invertPage(index+1, gsRef); err != nil {
			return fmt.Errorf("failed to invert page %d: %w", index, err)
		}
	}
	return nil
}

func (d *Document) invertPage(nr int, gsRef *types.IndirectRef) error {
	pageDict, _, inh, err := d.ctx.PageDict(nr, true)
	if err != nil {
		return err
	}
	box, _, err := d.pageGeometry(nr)
	if err != nil {
		return err
	}

	res, err := d.ownResources(pageDict, inh.Resources)
	if err != nil {
		return err
	}
	ext, err := d.ownSubDict(res, "ExtGState")
	if err != nil {
		return err
	}
	ext[invertGState] = *gsRef
	res["ExtGState"] = ext
	pageDict["Resources"] = res

	open, err := d.newStream([]byte("q\n"))
	if err != nil {
		return err
	}
	overlay := fmt.Sprintf("Q\nq /%s gs 1 1 1 rg %.5f %.5f %.5f %.5f re f Q\n",
		invertGState, box.LL.X, box.LL.Y, box.Width(), box.Height())
	closeRef, err := d.newStream([]byte(overlay))
	if err != nil {
		return err
	}

	contents := types.Array{*open}
	existing, err := d.contentParts(pageDict)
	if err != nil {
		return err
	}
	contents = append(contents, existing...)
	contents = append(contents, *closeRef)
	pageDict["Contents"] = contents
	return nil
}

// ownResources returns a private copy of the page's resource dictionary so
// pages sharing resources are not changed together.
func (d *Document) ownResources(pageDict, inherited types.Dict) (types.Dict, error) {
	obj, found := pageDict.Find("Resources")
	if !found {
		if inherited == nil {
			return types.Dict(map[string]types.Object{}), nil
		}
		return inherited.Clone().(types.Dict), nil
	}
	res, err := d.ctx.DereferenceDict(obj)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return types.Dict(map[string]types.Object{}), nil
	}
	return res.Clone().(types.Dict), nil
}

func (d *Document) ownSubDict(parent types.Dict, key string) (types.Dict, error) {
	obj, found := parent.Find(key)
	if !found {
		return types.Dict(map[string]types.Object{}), nil
	}
	sub, err := d.ctx.DereferenceDict(obj)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return types.Dict(map[string]types.Object{}), nil
	}
	return sub.Clone().(types.Dict), nil
}

func (d *Document) contentParts(pageDict types.Dict) (types.Array, error) {
	obj, found := pageDict.Find("Contents")
	if !found {
		return nil, nil
	}
	if ref, ok := obj.(types.IndirectRef); ok {
		target, err := d.ctx.Dereference(ref)
		if err != nil {
			return nil, err
		}
		if arr, ok := target.(types.Array); ok {
			return arr, nil
		}
		return types.Array{ref}, nil
	}
	if arr, ok := obj.(types.Array); ok {
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected contents entry %T", obj)
}
