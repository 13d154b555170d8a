package pdf

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

const mimePDF = "application/pdf"

// DetectFileType sniffs the leading bytes of an upload and accepts only PDF.
// The filename extension is not trusted.
func DetectFileType(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !mt.Is(mimePDF) {
		return mt.String(), fmt.Errorf("%w: %s", ErrUnsupportedFileType, mt.String())
	}
	return mimePDF, nil
}

// DetectImageType accepts PNG and JPEG watermark images.
func DetectImageType(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	for _, ok := range []string{"image/png", "image/jpeg"} {
		if mt.Is(ok) {
			return ok, nil
		}
	}
	return mt.String(), fmt.Errorf("%w: watermark image is %s", ErrUnsupportedFileType, mt.String())
}
