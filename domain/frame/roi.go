package frame

import (
	"errors"
	"image"
	"image/draw"
)

// ExtractRegion produces the sub-image of frame covered by r, clamped to the
// frame bounds and guaranteed to be at least 1x1. Returns the region image
// (always *image.RGBA) and the clamped rectangle relative to frame.
func ExtractRegion(frame *image.RGBA, r image.Rectangle) (*image.RGBA, image.Rectangle, error) {
	if frame == nil {
		return nil, image.Rectangle{}, errors.New("nil frame")
	}
	b := frame.Bounds()
	r = r.Intersect(b)
	if r.Empty() {
		// Clamp a degenerate request to a 1x1 region inside the frame.
		x := min(max(r.Min.X, b.Min.X), b.Max.X-1)
		y := min(max(r.Min.Y, b.Min.Y), b.Max.Y-1)
		r = image.Rect(x, y, x+1, y+1)
	}
	sub := frame.SubImage(r)
	if rgba, ok := sub.(*image.RGBA); ok {
		return rgba, r, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), sub, r.Min, draw.Src)
	return out, r, nil
}

// ExtractROI produces a square region centered at (cx, cy) with desired side
// size, clamped to frame bounds.
func ExtractROI(frame *image.RGBA, cx, cy, size int) (*image.RGBA, image.Rectangle, error) {
	if size < 1 {
		size = 1
	}
	half := size / 2
	return ExtractRegion(frame, image.Rect(cx-half, cy-half, cx-half+size, cy-half+size))
}
