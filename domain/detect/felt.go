package detect

import (
	"image"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Felt mask thresholds. A pixel belongs to the felt when green clearly
// dominates both other channels.
const (
	feltGreenMargin  = 10
	feltGreenFloor   = 50
	feltMinCoverage  = 5.0  // percent of the frame needed to trust the felt
	feltFullCoverage = 15.0 // percent at which confidence saturates
	feltHueMin       = 60.0
	feltHueMax       = 180.0
	feltSatFloor     = 0.15
	potWidthFrac     = 0.12
	potHeightFrac    = 0.05
	potMinSide       = 8
)

// isFelt reports whether a pixel color belongs to the felt mask.
func isFelt(r, g, b uint8) bool {
	return int(g) > int(r)+feltGreenMargin && int(g) > int(b)+feltGreenMargin && g > feltGreenFloor
}

// FeltFraction samples every stride-th pixel and returns the fraction that
// matches the felt mask. It is the cheap first-pass table signal; a nil or
// empty image yields zero.
func FeltFraction(img *image.RGBA, stride int) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	if stride < 1 {
		stride = 1
	}
	var sampled, matched int
	for y := b.Min.Y; y < b.Max.Y; y += stride {
		for x := b.Min.X; x < b.Max.X; x += stride {
			off := img.PixOffset(x, y)
			sampled++
			if isFelt(img.Pix[off], img.Pix[off+1], img.Pix[off+2]) {
				matched++
			}
		}
	}
	if sampled == 0 {
		return 0
	}
	return float64(matched) / float64(sampled)
}

// feltExtractor finds the table felt by green channel dominance and anchors a
// pot candidate above the felt centroid, where the pot amount is rendered on
// most tables.
type feltExtractor struct{}

func (feltExtractor) name() string { return "felt_color" }

func (feltExtractor) extract(sc *scene) []Region {
	img := sc.img
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	var matched, sumR, sumG, sumB int
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			r := img.Pix[off]
			g := img.Pix[off+1]
			bl := img.Pix[off+2]
			off += 4
			if isFelt(r, g, bl) {
				matched++
				sumR += int(r)
				sumG += int(g)
				sumB += int(bl)
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	coverage := 100 * float64(matched) / float64(w*h)
	if coverage < feltMinCoverage {
		return nil
	}
	conf := coverage / feltFullCoverage
	if conf > 1 {
		conf = 1
	}

	// Channel dominance alone also fires on olive or teal UI chrome, so the
	// mean masked color must additionally sit in the green hue band.
	mean := colorful.Color{
		R: float64(sumR) / float64(matched) / 255,
		G: float64(sumG) / float64(matched) / 255,
		B: float64(sumB) / float64(matched) / 255,
	}
	hue, sat, _ := mean.Hsl()
	if hue < feltHueMin || hue > feltHueMax || sat < feltSatFloor {
		conf *= 0.5
	}

	pw := int(float64(w) * potWidthFrac)
	ph := int(float64(h) * potHeightFrac)
	if pw < potMinSide {
		pw = potMinSide
	}
	if ph < potMinSide {
		ph = potMinSide
	}
	cx := (minX + maxX) / 2
	py := minY + (maxY-minY)/3
	rect := image.Rect(cx-pw/2, py-ph/2, cx+pw/2, py+ph/2).Intersect(b)
	if rect.Empty() {
		return nil
	}
	return []Region{NewRegion(rect, KindPot, conf)}
}
