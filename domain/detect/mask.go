package detect

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// sobelLevel is the edge magnitude above which a pixel counts as an edge in
// the shared binary mask.
const sobelLevel = 96

// scene bundles a frame with shared preprocessing results so extractors do
// not redo the same edge pass. It is built per Detect call and must not be
// retained afterwards.
type scene struct {
	img     *image.RGBA
	edgeMap *image.Gray
}

func newScene(img *image.RGBA) *scene {
	return &scene{img: img}
}

// edges lazily computes the binary edge mask of the frame.
func (s *scene) edges() *image.Gray {
	if s.edgeMap == nil {
		s.edgeMap = binaryEdges(s.img, sobelLevel)
	}
	return s.edgeMap
}

// binaryEdges runs a Sobel pass over the grayscale image and thresholds the
// magnitudes into a black and white mask.
func binaryEdges(img image.Image, level uint8) *image.Gray {
	return segment.Threshold(effect.Sobel(effect.Grayscale(img)), level)
}

// EdgeDensity returns the fraction of edge pixels in the frame's binary edge
// mask. Flat frames score zero; cluttered UI surfaces score high. A nil or
// empty image yields zero.
func EdgeDensity(img *image.RGBA) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	mask := binaryEdges(img, sobelLevel)
	mb := mask.Bounds()
	if mb.Empty() {
		return 0
	}
	on := 0
	for y := mb.Min.Y; y < mb.Max.Y; y++ {
		for x := mb.Min.X; x < mb.Max.X; x++ {
			if maskOn(mask, x, y) {
				on++
			}
		}
	}
	return float64(on) / float64(mb.Dx()*mb.Dy())
}

// maskOn reports whether the mask pixel at absolute coordinates is set.
func maskOn(m *image.Gray, x, y int) bool {
	return m.GrayAt(x, y).Y > 0
}

// maskIntegral builds a summed-area table of set mask pixels, row-major with
// the mask's own width.
func maskIntegral(mask *image.Gray) []int {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	integ := make([]int, w*h)
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			if maskOn(mask, b.Min.X+x, b.Min.Y+y) {
				rowSum++
			}
			off := y*w + x
			integ[off] = rowSum
			if y > 0 {
				integ[off] += integ[off-w]
			}
		}
	}
	return integ
}

// maskWindowSum returns the number of set pixels inside the w by h window at
// mask-relative origin (x, y).
func maskWindowSum(integ []int, maskW, x, y, w, h int) int {
	x1, y1 := x+w-1, y+h-1
	at := func(xx, yy int) int {
		if xx < 0 || yy < 0 {
			return 0
		}
		return integ[yy*maskW+xx]
	}
	return at(x1, y1) - at(x-1, y1) - at(x1, y-1) + at(x-1, y-1)
}

// lumaStats returns the mean and standard deviation of pixel luma over the
// whole image.
func lumaStats(img *image.RGBA) (mean, std float64) {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0, 0
	}
	var sum, sum2 float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			l := float64((77*int(c.R) + 150*int(c.G) + 29*int(c.B)) >> 8)
			sum += l
			sum2 += l * l
		}
	}
	mean = sum / float64(n)
	if v := sum2/float64(n) - mean*mean; v > 0 {
		std = math.Sqrt(v)
	}
	return mean, std
}
