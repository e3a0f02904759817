package detect

import (
	"image"
	"math"
)

// Sliding window shapes scanned for text-like edge texture, sized for the
// labels a table client renders (stack sizes, pot amounts, player names).
var textWindowSizes = [...]image.Point{
	{X: 100, Y: 30},
	{X: 150, Y: 40},
	{X: 200, Y: 50},
	{X: 80, Y: 25},
}

const (
	textMinDensity   = 0.05
	textMaxDensity   = 0.40
	textIdealDensity = 0.20
	textMinScore     = 0.30
	textMaxConf      = 0.90
	textMaxRegions   = 48
	textRowRuns      = 2 // on/off run pairs a row needs to look glyph-bearing
)

// textZoneExtractor scores sliding windows by edge density and horizontal
// glyph run structure. It has no notion of characters; actual reading is the
// text reader's job.
type textZoneExtractor struct{}

func (textZoneExtractor) name() string { return "text_density" }

func (textZoneExtractor) extract(sc *scene) []Region {
	mask := sc.edges()
	b := mask.Bounds()
	integ := maskIntegral(mask)
	var out []Region
scan:
	for _, size := range textWindowSizes {
		ww, wh := size.X, size.Y
		if ww > b.Dx() || wh > b.Dy() {
			continue
		}
		for y := 0; y+wh <= b.Dy(); y += wh / 2 {
			for x := 0; x+ww <= b.Dx(); x += ww / 2 {
				on := maskWindowSum(integ, b.Dx(), x, y, ww, wh)
				density := float64(on) / float64(ww*wh)
				if density < textMinDensity || density > textMaxDensity {
					continue
				}
				rows := glyphRows(mask, b.Min.X+x, b.Min.Y+y, ww, wh)
				score := (float64(rows) / float64(wh)) * (1 - math.Abs(density-textIdealDensity)/textIdealDensity)
				if score < textMinScore {
					continue
				}
				if score > textMaxConf {
					score = textMaxConf
				}
				rect := image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+ww, b.Min.Y+y+wh)
				out = append(out, NewRegion(rect, KindText, score))
				if len(out) >= textMaxRegions {
					break scan
				}
			}
		}
	}
	return Dedup(out)
}

// glyphRows counts rows inside the window whose on/off transitions suggest a
// line of glyphs rather than a solid edge.
func glyphRows(mask *image.Gray, x0, y0, w, h int) int {
	rows := 0
	for y := 0; y < h; y++ {
		trans := 0
		prev := false
		for x := 0; x < w; x++ {
			cur := maskOn(mask, x0+x, y0+y)
			if cur != prev {
				trans++
			}
			prev = cur
		}
		if trans >= 2*textRowRuns {
			rows++
		}
	}
	return rows
}
