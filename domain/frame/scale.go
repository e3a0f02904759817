package frame

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// ScaleToFit scales src with nearest-neighbour so that both dimensions fit
// within maxW/maxH, preserving aspect ratio. If the source already fits, the
// original is returned. Scaled results come from the frame pool; callers
// that use them transiently should RecycleFrame them when the result is not
// the source.
func ScaleToFit(src *image.RGBA, maxW, maxH int) *image.RGBA {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return src
	}
	if maxW < 1 {
		maxW = 1
	}
	if maxH < 1 {
		maxH = 1
	}
	ratioW := float64(maxW) / float64(w)
	ratioH := float64(maxH) / float64(h)
	ratio := ratioW
	if ratioH < ratio {
		ratio = ratioH
	}
	newW := int(float64(w)*ratio + 0.5)
	newH := int(float64(h)*ratio + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	// Scale with Src, so the pooled buffer needs no clearing first.
	dst := AcquireFrame(image.Rect(0, 0, newW, newH))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
