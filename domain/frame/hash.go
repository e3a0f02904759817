package frame

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
)

const (
	hashPatch  = 16 // sample patch side
	hashInset  = 40 // corner inset
	hashDigits = 12 // hex chars kept
)

// LayoutHash returns a short digest of four fixed corner samples of img.
// It identifies the visual layout version: a changed hash invalidates caches
// keyed by it without touching entries cached under other hashes. Returns ""
// for a nil or empty image.
func LayoutHash(img *image.RGBA) string {
	if img == nil {
		return ""
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return ""
	}
	inset := hashInset
	if inset > w/4 {
		inset = w / 4
	}
	if inset > h/4 {
		inset = h / 4
	}
	corners := [4]image.Point{
		{b.Min.X + inset, b.Min.Y + inset},
		{b.Max.X - inset - hashPatch, b.Min.Y + inset},
		{b.Min.X + inset, b.Max.Y - inset - hashPatch},
		{b.Max.X - inset - hashPatch, b.Max.Y - inset - hashPatch},
	}
	d := sha256.New()
	for _, c := range corners {
		r := image.Rect(c.X, c.Y, c.X+hashPatch, c.Y+hashPatch).Intersect(b)
		if r.Empty() {
			continue
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			off := img.PixOffset(r.Min.X, y)
			end := off + r.Dx()*4
			d.Write(img.Pix[off:end])
		}
	}
	sum := d.Sum(nil)
	return hex.EncodeToString(sum)[:hashDigits]
}
