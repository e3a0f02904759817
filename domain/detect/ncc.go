package detect

import (
	"image"
	"math"
)

// matchOptions configures one normalized cross-correlation pass.
type matchOptions struct {
	threshold      float64 // min score for found
	stride         int     // coarse scan stride
	refine         bool    // rescan around the coarse best at stride 1
	returnBestEven bool    // keep best coordinates even when below threshold
}

// matchResult is the outcome of one template match. Coordinates are only
// meaningful when found is set or returnBestEven was requested.
type matchResult struct {
	x, y  int
	score float64
	found bool
}

// framePlane holds a frame's grayscale pixels plus summed-area tables so any
// window mean and variance is an O(1) lookup.
type framePlane struct {
	gray       []float64
	integral   []float64
	integralSq []float64
	w, h       int
}

// newFramePlane converts the frame to grayscale and builds its integrals.
// Fully transparent pixels contribute zero.
func newFramePlane(frame *image.RGBA) *framePlane {
	if frame == nil {
		return nil
	}
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	p := &framePlane{
		gray:       make([]float64, w*h),
		integral:   make([]float64, w*h),
		integralSq: make([]float64, w*h),
		w:          w,
		h:          h,
	}
	for y := 0; y < h; y++ {
		var rowSum, rowSum2 float64
		for x := 0; x < w; x++ {
			c := frame.RGBAAt(b.Min.X+x, b.Min.Y+y)
			var g float64
			if c.A != 0 {
				g = 0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)
			}
			off := y*w + x
			p.gray[off] = g
			rowSum += g
			rowSum2 += g * g
			if y == 0 {
				p.integral[off] = rowSum
				p.integralSq[off] = rowSum2
			} else {
				p.integral[off] = p.integral[off-w] + rowSum
				p.integralSq[off] = p.integralSq[off-w] + rowSum2
			}
		}
	}
	return p
}

// patchPlane holds grayscale pixels and summary statistics for the reference
// patch at one scale.
type patchPlane struct {
	gray []float32
	w, h int
	mean float64
	std  float64
}

// newPatchPlane converts an arbitrary image into a patch plane. It returns
// nil for degenerate sizes.
func newPatchPlane(img image.Image) *patchPlane {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 2 || h < 2 {
		return nil
	}
	gray := make([]float32, w*h)
	var sum, sum2 float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			var gv float64
			if a != 0 {
				gv = (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(bl)) / 257
			}
			gray[y*w+x] = float32(gv)
			sum += gv
			sum2 += gv * gv
		}
	}
	return finishPatchPlane(gray, w, h, sum, sum2)
}

// rescale produces the patch at a new scale with bilinear interpolation on
// the grayscale plane, avoiding a fresh color conversion per scale. It
// returns nil when the result would be degenerate.
func (p *patchPlane) rescale(factor float64) *patchPlane {
	if p == nil || factor <= 0 {
		return nil
	}
	if factor == 1 {
		return p
	}
	w := int(float64(p.w) * factor)
	h := int(float64(p.h) * factor)
	if w < 2 || h < 2 {
		return nil
	}
	gray := make([]float32, w*h)
	var sum, sum2 float64
	fx := float64(p.w) / float64(w)
	fy := float64(p.h) / float64(h)
	for y := 0; y < h; y++ {
		ys := (float64(y)+0.5)*fy - 0.5
		if ys < 0 {
			ys = 0
		} else if ys > float64(p.h-1) {
			ys = float64(p.h - 1)
		}
		y0 := int(math.Floor(ys))
		y1 := y0 + 1
		if y1 >= p.h {
			y1 = p.h - 1
		}
		dy := ys - float64(y0)
		for x := 0; x < w; x++ {
			xs := (float64(x)+0.5)*fx - 0.5
			if xs < 0 {
				xs = 0
			} else if xs > float64(p.w-1) {
				xs = float64(p.w - 1)
			}
			x0 := int(math.Floor(xs))
			x1 := x0 + 1
			if x1 >= p.w {
				x1 = p.w - 1
			}
			dx := xs - float64(x0)
			g00 := float64(p.gray[y0*p.w+x0])
			g10 := float64(p.gray[y0*p.w+x1])
			g01 := float64(p.gray[y1*p.w+x0])
			g11 := float64(p.gray[y1*p.w+x1])
			top := g00*(1-dx) + g10*dx
			bottom := g01*(1-dx) + g11*dx
			gv := top*(1-dy) + bottom*dy
			gray[y*w+x] = float32(gv)
			sum += gv
			sum2 += gv * gv
		}
	}
	return finishPatchPlane(gray, w, h, sum, sum2)
}

func finishPatchPlane(gray []float32, w, h int, sum, sum2 float64) *patchPlane {
	n := float64(w * h)
	mean := sum / n
	std := 0.0
	if v := (sum2 - sum*sum/n) / n; v > 0 {
		std = math.Sqrt(v)
	}
	return &patchPlane{gray: gray, w: w, h: h, mean: mean, std: std}
}

// matchPatch slides the patch over the frame and returns the position with
// the highest normalized cross-correlation. A flat patch cannot correlate
// with anything and scores -1.
func matchPatch(fp *framePlane, pp *patchPlane, opts matchOptions) matchResult {
	res := matchResult{score: -1}
	if fp == nil || pp == nil {
		return res
	}
	W, H := fp.w, fp.h
	w, h := pp.w, pp.h
	if w == 0 || h == 0 || W < w || H < h {
		return res
	}
	if pp.std <= 1e-9 {
		return res
	}
	n := float64(w * h)

	scoreAt := func(x, y int) float64 {
		sumF := planeSum(fp.integral, W, x, y, x+w-1, y+h-1)
		sumF2 := planeSum(fp.integralSq, W, x, y, x+w-1, y+h-1)
		meanF := sumF / n
		varF := (sumF2 - sumF*sumF/n) / n
		if varF <= 1e-9 {
			return -2
		}
		var sumFT float64
		for i := 0; i < len(pp.gray); i++ {
			py := i / w
			px := i % w
			sumFT += fp.gray[(y+py)*W+(x+px)] * float64(pp.gray[i])
		}
		denom := n * math.Sqrt(varF) * pp.std
		if denom <= 0 {
			return -2
		}
		return (sumFT - n*meanF*pp.mean) / denom
	}

	stride := opts.stride
	if stride <= 0 {
		stride = 1
	}
	bestX, bestY, bestScore := 0, 0, -1.0
	for y := 0; y <= H-h; y += stride {
		for x := 0; x <= W-w; x += stride {
			if s := scoreAt(x, y); s > bestScore {
				bestScore, bestX, bestY = s, x, y
			}
		}
	}
	if opts.refine && stride > 1 {
		for y := max(0, bestY-stride); y <= min(H-h, bestY+stride); y++ {
			for x := max(0, bestX-stride); x <= min(W-w, bestX+stride); x++ {
				if s := scoreAt(x, y); s > bestScore {
					bestScore, bestX, bestY = s, x, y
				}
			}
		}
	}
	res.x, res.y, res.score = bestX, bestY, bestScore
	res.found = bestScore >= opts.threshold
	if !res.found && !opts.returnBestEven {
		res.x, res.y = 0, 0
	}
	return res
}

// planeSum returns the inclusive sum over rectangle [x0..x1] x [y0..y1] from
// an integral plane stored row-major with width W.
func planeSum(integral []float64, W, x0, y0, x1, y1 int) float64 {
	if x0 > x1 || y0 > y1 {
		return 0
	}
	at := func(x, y int) float64 {
		if x < 0 || y < 0 {
			return 0
		}
		return integral[y*W+x]
	}
	return at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
}
