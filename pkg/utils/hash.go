package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/draw"
)

// ContentHash returns the hex SHA-256 of data. Source documents are keyed by it.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateImageHash hashes the raster's size and its 8-bit RGBA pixels, so
// two renders hash equal exactly when they look identical.
func GenerateImageHash(img image.Image) (string, error) {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	hasher := sha256.New()
	var size [8]byte
	binary.BigEndian.PutUint32(size[:4], uint32(bounds.Dx()))
	binary.BigEndian.PutUint32(size[4:], uint32(bounds.Dy()))
	hasher.Write(size[:])
	hasher.Write(rgba.Pix[:4*bounds.Dx()*bounds.Dy()])

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
